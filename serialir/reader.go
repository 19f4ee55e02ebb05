package serialir

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"libdb.so/irrelay"
)

type lineReader struct {
	logger  *slog.Logger
	events  chan irrelay.RawEvent
	replies chan Reply
}

func newLineReader(logger *slog.Logger, events chan irrelay.RawEvent, replies chan Reply) *lineReader {
	return &lineReader{
		logger:  logger,
		events:  events,
		replies: replies,
	}
}

func (r *lineReader) lineError(err string, attrs ...any) {
	r.logger.
		With("err", err).
		Error("serial line error", attrs...)
}

func (r *lineReader) read(ctx context.Context, line string) {
	payload, err := decodeLine(line)
	if err != nil {
		r.lineError(
			"dropping corrupt line",
			"line", line,
			"cause", err)
		return
	}

	w := strings.Fields(payload)
	if len(w) == 0 {
		return
	}

	switch w[0] {
	case "DECODE":
		event, err := parseDecode(w[1:])
		if err != nil {
			r.lineError(
				"decode event not parseable",
				"line", payload,
				"cause", err)
			return
		}

		select {
		case <-ctx.Done():
		case r.events <- event:
		}

	case "REPLY":
		reply, err := parseReply(w[1:])
		if err != nil {
			r.lineError(
				"reply not parseable",
				"line", payload,
				"cause", err)
			return
		}

		select {
		case <-ctx.Done():
		case r.replies <- reply:
		}

	case "LOG":
		r.logger.Debug(
			"device log",
			"msg", strings.Join(w[1:], " "))

	default:
		r.lineError(
			"unknown message type",
			"type", w[0])
	}
}

// parseDecode parses "<protocol> <value> <bits> [<tick>...]".
func parseDecode(w []string) (irrelay.RawEvent, error) {
	if len(w) < 3 {
		return irrelay.RawEvent{}, fmt.Errorf("want at least 3 fields, got %d", len(w))
	}

	protocol, err := irrelay.ParseProtocol(w[0])
	if err != nil {
		return irrelay.RawEvent{}, err
	}

	value, err := strconv.ParseUint(w[1], 0, 64)
	if err != nil {
		return irrelay.RawEvent{}, fmt.Errorf("invalid value %q", w[1])
	}

	bits, err := strconv.Atoi(w[2])
	if err != nil || bits < 0 {
		return irrelay.RawEvent{}, fmt.Errorf("invalid bit count %q", w[2])
	}

	event := irrelay.RawEvent{
		Protocol: protocol,
		Value:    value,
		Bits:     bits,
	}

	if ticks := w[3:]; len(ticks) > 0 {
		event.Ticks = make([]uint16, len(ticks))
		for i, t := range ticks {
			n, err := strconv.ParseUint(t, 10, 16)
			if err != nil {
				return irrelay.RawEvent{}, fmt.Errorf("invalid tick %q at %d", t, i)
			}
			event.Ticks[i] = uint16(n)
		}
		event.Samples = len(event.Ticks)
	}

	return event, nil
}

// parseReply parses "<command> OK|ERR [message...]".
func parseReply(w []string) (Reply, error) {
	if len(w) < 2 {
		return Reply{}, fmt.Errorf("want at least 2 fields, got %d", len(w))
	}

	reply := Reply{Command: w[0], Message: strings.Join(w[2:], " ")}
	switch w[1] {
	case "OK":
		reply.Success = true
	case "ERR":
	default:
		return Reply{}, fmt.Errorf("invalid status %q", w[1])
	}
	return reply, nil
}
