package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"libdb.so/irrelay"
	"libdb.so/irrelay/internal/config"
	"libdb.so/irrelay/keystore"
)

const slotEnum = "relaya,relayb,relayc,relayd,deve,devfon,devfoff,reset"

type CLI struct {
	Config  string `short:"c" help:"Configuration file." default:"irrelay.yaml" type:"path"`
	Port    string `short:"p" help:"Serial port of the IR device. Overrides the configuration file."`
	Baud    int    `help:"Serial baud rate. Overrides the configuration file."`
	Keys    string `help:"Key file. Overrides the configuration file." type:"path"`
	Verbose bool   `short:"v" help:"Log debug messages."`

	Run       RunCmd       `cmd:"" help:"Capture codes, toggle relays and serve provisioning."`
	Learn     LearnCmd     `cmd:"" help:"Learn the next received code into a key slot."`
	Send      SendCmd      `cmd:"" help:"Replay the code learned for a key slot."`
	List      ListCmd      `cmd:"" name:"keys" help:"List the learned keys."`
	Forget    ForgetCmd    `cmd:"" help:"Forget every learned key."`
	Protocols ProtocolsCmd `cmd:"" help:"List the known protocols."`
}

// Context is passed to every command.
type Context struct {
	context.Context
	Config config.Config
	Logger *slog.Logger
}

func (c *Context) keyStore() *keystore.File {
	return keystore.New(c.Config.Storage.Keys)
}

// session creates a session transmitting through tx with the keys restored
// from the key file. A malformed key file is logged and starts with no keys.
func (c *Context) session(tx irrelay.Transmitter) *irrelay.Session {
	session := irrelay.NewSession(tx, c.Config.CaptureConfig(), c.Logger)
	session.Restore(c.keyStore())
	return session
}

var options = []kong.Option{
	kong.Name("irrelay"),
	kong.Description("Learn IR remote codes and replay them or toggle relays with them."),
	kong.UsageOnError(),
	kong.Vars{"slots": slotEnum},
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, options...)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(cli.Config)
	kctx.FatalIfErrorf(err)

	if cli.Port != "" {
		cfg.Serial.Port = cli.Port
	}
	if cli.Baud != 0 {
		cfg.Serial.Baud = cli.Baud
	}
	if cli.Keys != "" {
		cfg.Storage.Keys = cli.Keys
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = kctx.Run(&Context{
		Context: ctx,
		Config:  cfg,
		Logger:  logger,
	})
	kctx.FatalIfErrorf(err)
}

type SendCmd struct {
	Slot   irrelay.Slot `arg:"" enum:"${slots}" help:"Key slot to replay (${enum})."`
	Repeat bool         `short:"r" help:"Send a repeat frame instead of a new key press."`
}

func (s *SendCmd) Run(c *Context) error {
	return withDevice(c, func(ctx context.Context, dev irrelay.Transmitter, _ irrelay.Decoder) error {
		session := c.session(dev)
		return session.Fire(ctx, s.Slot, s.Repeat)
	})
}

type ListCmd struct{}

func (ListCmd) Run(c *Context) error {
	keys, err := c.keyStore().Load()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "protocol\t%v\n", keys.CodeType)
	fmt.Fprintf(w, "bits\t%d\n", keys.CodeLen)
	for _, slot := range irrelay.Slots {
		value, _ := keys.Get(slot)
		fmt.Fprintf(w, "%s\t0x%08X\n", slot, value)
	}
	return nil
}

type ForgetCmd struct{}

func (ForgetCmd) Run(c *Context) error {
	return irrelay.NewSession(nil, c.Config.CaptureConfig(), c.Logger).Forget(c.keyStore())
}

type ProtocolsCmd struct{}

func (ProtocolsCmd) Run(c *Context) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "tag\tprotocol\treplay\tflags")
	for _, codec := range irrelay.Codecs() {
		replay := "native"
		if codec.Partial {
			replay = "fallback"
		}

		var flags string
		if codec.UsesToggleBit {
			flags = "toggle"
		}
		if codec.HasRepeatSentinel {
			flags = fmt.Sprintf("repeat=0x%X", codec.Sentinel)
		}

		fmt.Fprintf(w, "%d\t%v\t%s\t%s\n", int(codec.Protocol), codec.Protocol, replay, flags)
	}
	return nil
}
