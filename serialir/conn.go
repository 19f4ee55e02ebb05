// Package serialir talks to the microcontroller that owns the IR receiver,
// the IR LED and the relays over a serial line.
//
// Every line in both directions is a space separated payload followed by '*'
// and its CRC-16/XMODEM in hexadecimal.
package serialir

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tarm/serial"
	"libdb.so/irrelay"
)

// replyTimeout bounds how long a command waits for its reply. It covers the
// longest waveform the device can send.
const replyTimeout = 10 * time.Second

// Conn is a connection to the IR device.
type Conn struct {
	// Events is a channel that will receive decode events.
	// These events are received asynchronously for as long as [Start] is
	// running. This channel is never closed.
	Events chan irrelay.RawEvent

	send   chan irrelay.Command
	reply  chan Reply
	opener func(context.Context) (io.ReadWriteCloser, error)
}

var (
	_ irrelay.Transmitter = (*Conn)(nil)
	_ irrelay.Decoder     = (*Conn)(nil)
)

// NewSerial creates a new connection to the device on the given serial port.
// The port will not be opened; you must call Start to connect.
func NewSerial(name string, baud int) *Conn {
	return NewStream(func(context.Context) (io.ReadWriteCloser, error) {
		return serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	})
}

// NewStream creates a new connection over any byte stream, such as a TCP
// serial bridge. open is called once by Start.
func NewStream(open func(context.Context) (io.ReadWriteCloser, error)) *Conn {
	return &Conn{
		Events: make(chan irrelay.RawEvent, 16),
		send:   make(chan irrelay.Command),
		reply:  make(chan Reply),
		opener: open,
	}
}

// SendCommand sends a command to the device and waits for its reply.
func (c *Conn) SendCommand(ctx context.Context, command irrelay.Command) (Reply, error) {
	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case c.send <- command:
		// safe to continue
	}

	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case reply := <-c.reply:
		if reply.Command != command.EncodeCommand()[0] {
			return reply, fmt.Errorf("unexpected reply command: %q", reply.Command)
		}
		if !reply.Success {
			return reply, fmt.Errorf("%w: %s", ErrUnsuccessfulCommand, reply.Message)
		}
		return reply, nil
	}
}

// Transmit implements [irrelay.Transmitter].
func (c *Conn) Transmit(ctx context.Context, command irrelay.Command) error {
	_, err := c.SendCommand(ctx, command)
	return err
}

// Poll implements [irrelay.Decoder]. It returns the oldest buffered decode
// event, if any.
func (c *Conn) Poll() (irrelay.RawEvent, bool) {
	select {
	case event := <-c.Events:
		return event, true
	default:
		return irrelay.RawEvent{}, false
	}
}

// Start opens the connection. It blocks until the connection is closed or
// ctx is done.
func (c *Conn) Start(ctx context.Context, logger *slog.Logger) error {
	port, err := c.opener(ctx)
	if err != nil {
		return fmt.Errorf("cannot open device connection: %w", err)
	}

	repliesCh := make(chan Reply)
	sendingCh := c.send

	reader := newLineReader(logger, c.Events, repliesCh)

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancelCause(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel(nil)

		scanner := bufio.NewScanner(port)
		for scanner.Scan() {
			reader.read(ctx, scanner.Text())
		}

		if err := scanner.Err(); err != nil && !isClosed(err) {
			logger.Error(
				"error reading from device",
				"err", err)
			cancel(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel(nil)

		var cmd irrelay.Command
		for {
			select {
			case <-ctx.Done():
				return

			case cmd = <-sendingCh:
				if _, err := io.WriteString(port, encodeLine(cmd.EncodeCommand())); err != nil {
					logger.Error(
						"error writing to device",
						"err", err)
					cancel(err)
					return
				}

				// Prevent the user from sending any other commands until we've
				// received the reply for this one.
				sendingCh = nil

			case reply := <-repliesCh:
				if reply.Command == "BOOT" {
					logger.InfoContext(ctx, "device has been restarted")
					continue
				}

				select {
				case <-ctx.Done():
					return
				case c.reply <- reply:
					// Reinstate the ability to send commands.
					sendingCh = c.send
				}
			}
		}
	}()

	<-ctx.Done()

	if err := port.Close(); err != nil {
		return fmt.Errorf("error closing device connection: %w", err)
	}

	wg.Wait()
	return context.Cause(ctx)
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
