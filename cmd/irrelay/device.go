package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libdb.so/irrelay"
	"libdb.so/irrelay/serialir"
)

const pollInterval = 20 * time.Millisecond

// withDevice connects to the IR device and calls f while the connection is
// up. The context given to f is canceled if the connection drops.
func withDevice(c *Context, f func(context.Context, irrelay.Transmitter, irrelay.Decoder) error) error {
	conn := serialir.NewSerial(c.Config.Serial.Port, c.Config.Serial.Baud)
	logger := c.Logger.With("port", c.Config.Serial.Port)

	ctx, cancel := context.WithCancelCause(c)
	defer cancel(nil)

	done := make(chan error, 1)
	go func() {
		err := conn.Start(ctx, logger)
		cancel(err)
		done <- err
	}()

	err := f(ctx, conn, conn)
	if err != nil && ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			err = cause
		}
	}

	cancel(nil)
	if connErr := <-done; err == nil && connErr != nil && !errors.Is(connErr, context.Canceled) {
		err = connErr
	}
	return err
}

// nextEvent polls dec until it has a decode event.
func nextEvent(ctx context.Context, dec irrelay.Decoder) (irrelay.RawEvent, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if ev, ok := dec.Poll(); ok {
			return ev, nil
		}

		select {
		case <-ctx.Done():
			return irrelay.RawEvent{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

type LearnCmd struct {
	Slot    irrelay.Slot  `arg:"" enum:"${slots}" help:"Key slot to learn into (${enum})."`
	Timeout time.Duration `default:"30s" help:"How long to wait for a key press."`
}

func (l *LearnCmd) Run(c *Context) error {
	return withDevice(c, func(ctx context.Context, tx irrelay.Transmitter, dec irrelay.Decoder) error {
		session := c.session(tx)

		ctx, cancel := context.WithTimeout(ctx, l.Timeout)
		defer cancel()

		c.Logger.Info(
			"press a key on the remote",
			"slot", l.Slot)

		for {
			ev, err := nextEvent(ctx, dec)
			if err != nil {
				return fmt.Errorf("no key received: %w", err)
			}

			// The current code starts out with no value, so a zero value
			// means nothing was captured yet.
			code, err := session.Learn(l.Slot, ev)
			if value, _ := session.Keys().Get(l.Slot); code.Value == 0 || value != code.Value {
				c.Logger.Debug(
					"nothing learned, waiting for another key press",
					"err", err)
				continue
			}

			if err := session.Save(c.keyStore()); err != nil {
				return err
			}

			fmt.Printf("%s: %v 0x%X (%d bits)\n", l.Slot, code.Protocol, code.Value, code.Bits)
			return nil
		}
	})
}
