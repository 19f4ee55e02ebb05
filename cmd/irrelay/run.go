package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
	"unicode"

	"github.com/mattn/go-tty"
	"libdb.so/irrelay"
	"libdb.so/irrelay/keystore"
	"libdb.so/irrelay/provision"
)

var errRestart = errors.New("restart requested")

type RunCmd struct {
	Addr        string `help:"Provisioning listen address. Overrides the configuration file."`
	Interactive bool   `short:"i" help:"Replay keys from the keyboard: a-d relays, e device E, f/g device F on/off, q quits."`
}

func (r *RunCmd) Run(c *Context) error {
	if r.Addr != "" {
		c.Config.HTTP.Addr = r.Addr
	}

	for {
		err := withDevice(c, r.serve(c))
		if !errors.Is(err, errRestart) {
			return err
		}
		c.Logger.Info("restarting")
	}
}

func (r *RunCmd) serve(c *Context) func(context.Context, irrelay.Transmitter, irrelay.Decoder) error {
	return func(ctx context.Context, tx irrelay.Transmitter, dec irrelay.Decoder) error {
		ctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		session := c.session(tx)
		restart := func() { cancel(errRestart) }

		captures := make(chan irrelay.Capture, 8)
		session.OnCapture(func(capture irrelay.Capture) {
			select {
			case captures <- capture:
			default:
				c.Logger.Warn("router is behind, dropping capture")
			}
		})

		go irrelay.RouteCodes(ctx, captures, session.Keys, r.handlers(ctx, c, tx, restart))

		var wg sync.WaitGroup
		defer wg.Wait()

		if c.Config.HTTP.Addr != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.serveProvisioning(ctx, c, session, restart)
			}()
		}

		if r.Interactive {
			go r.readKeyboard(ctx, c, session, func() { cancel(context.Canceled) })
		}

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if cause := context.Cause(ctx); !errors.Is(cause, context.Canceled) {
					return cause
				}
				return nil
			case <-ticker.C:
			}

			for {
				ev, ok := dec.Poll()
				if !ok {
					break
				}
				if _, _, err := session.Capture(ev); err != nil {
					c.Logger.Debug(
						"capture incomplete",
						"err", err)
				}
			}
		}
	}
}

// handlers toggles the configured relays when their key is pressed. The
// reset key restarts the service.
func (r *RunCmd) handlers(ctx context.Context, c *Context, tx irrelay.Transmitter, restart func()) irrelay.SlotHandlers {
	handlers := irrelay.SlotHandlers{
		string(irrelay.ResetKey): func(irrelay.Slot, irrelay.Capture) {
			c.Logger.Info("reset key pressed")
			restart()
		},
		"dev*": func(slot irrelay.Slot, capture irrelay.Capture) {
			c.Logger.Info(
				"device key pressed",
				"slot", slot,
				"protocol", capture.Code.Protocol)
		},
	}

	for slot, relay := range c.Config.Relays {
		handlers[string(slot)] = func(slot irrelay.Slot, _ irrelay.Capture) {
			if err := tx.Transmit(ctx, irrelay.ToggleRelay{Relay: relay}); err != nil {
				c.Logger.Error(
					"cannot toggle relay",
					"slot", slot,
					"relay", relay,
					"err", err)
				return
			}
			c.Logger.Info(
				"toggled relay",
				"slot", slot,
				"relay", relay)
		}
	}

	return handlers
}

func (r *RunCmd) serveProvisioning(ctx context.Context, c *Context, session *irrelay.Session, restart func()) {
	handler := provision.NewHandler(session, provision.Options{
		Keys:           c.keyStore(),
		Credentials:    keystore.NewCredentials(c.Config.Storage.Credentials),
		Restart:        restart,
		OriginPatterns: c.Config.HTTP.OriginPatterns,
	}, c.Logger.With("component", "provision"))

	server := &http.Server{
		Addr:        c.Config.HTTP.Addr,
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	c.Logger.Info(
		"serving provisioning",
		"addr", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		c.Logger.Error(
			"provisioning server failed",
			"err", err)
	}
}

var keyboardSlots = map[rune]irrelay.Slot{
	'a': irrelay.RelayA,
	'b': irrelay.RelayB,
	'c': irrelay.RelayC,
	'd': irrelay.RelayD,
	'e': irrelay.DeviceE,
	'f': irrelay.DeviceFOn,
	'g': irrelay.DeviceFOff,
}

// readKeyboard replays the key slot bound to every key typed on the
// terminal. An upper case key sends a repeat frame.
func (r *RunCmd) readKeyboard(ctx context.Context, c *Context, session *irrelay.Session, quit func()) {
	t, err := tty.Open()
	if err != nil {
		c.Logger.Error(
			"cannot open terminal",
			"err", err)
		return
	}

	restore, err := t.Raw()
	if err != nil {
		c.Logger.Error(
			"cannot switch terminal to raw mode",
			"err", err)
		t.Close()
		return
	}

	go func() {
		<-ctx.Done()
		restore()
		t.Close()
	}()

	for {
		key, err := t.ReadRune()
		if err != nil {
			if ctx.Err() == nil {
				c.Logger.Error(
					"cannot read terminal",
					"err", err)
			}
			return
		}

		if key == 'q' || key == 3 { // ^C is not delivered as a signal in raw mode.
			quit()
			return
		}

		repeat := unicode.IsUpper(key)
		slot, ok := keyboardSlots[unicode.ToLower(key)]
		if !ok {
			continue
		}

		logger := c.Logger.With("slot", slot, "repeat", repeat)
		if err := session.Fire(ctx, slot, repeat); err != nil {
			logger.Warn(
				"cannot replay key",
				"err", err)
			continue
		}
		logger.Debug("replayed key")
	}
}
