// Command relay subscribes to an agent server's event stream, reconciles the
// snapshot/delta firehose into consistent per-session state, and fans replies
// out to destination channels.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/williamcory/relay/internal/channels/chat"
	"github.com/williamcory/relay/internal/config"
	"github.com/williamcory/relay/internal/engine"
	"github.com/williamcory/relay/internal/mock"
	"github.com/williamcory/relay/internal/watch"
	"github.com/williamcory/relay/sdk/agent"
)

func main() {
	app := &cli.App{
		Name:  "relay",
		Usage: "Reconcile an agent event stream into per-session state and channel replies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Agent server base URL (overrides config)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Channel policy config file (YAML)",
			},
			&cli.StringFlag{
				Name:  "debug-log",
				Usage: "Append engine debug entries to this file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the relay engine, printing channel sends to stdout",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Scope the subscription to one session ID",
					},
				},
				Action: runAction,
			},
			{
				Name:  "watch",
				Usage: "Run the engine with a live terminal view of the reconciled store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session ID to watch (defaults to the first one seen)",
					},
				},
				Action: watchAction,
			},
			{
				Name:  "mock",
				Usage: "Run a scripted mock agent server for demos",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Value: 4096,
						Usage: "Port to listen on",
					},
				},
				Action: func(c *cli.Context) error {
					return mock.NewServer(c.Int("port")).Start()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if server := c.String("server"); server != "" {
		cfg.ServerURL = server
	}
	return cfg, nil
}

func buildEngine(c *cli.Context, cfg *config.Config, client *agent.Client, sendText engine.SendTextFunc) (*engine.Engine, error) {
	var debug agent.DebugSink = agent.NopDebugSink{}
	if path := c.String("debug-log"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
		debug = agent.NewWriterDebugSink(f)
	}

	// Sessions show up on the stream before anyone attaches them, so the
	// default channel's policy governs their run state.
	auto := agent.PermissionReject
	interactive := false
	peer := ""
	if def := cfg.ChannelByName(cfg.DefaultChannel); def != nil {
		if def.Permissions == config.PermissionAllow {
			auto = agent.PermissionAllow
		}
		interactive = def.Interactive
		peer = def.Peer
	}

	eng := engine.New(engine.Options{
		Logger:             agent.GetLogger(),
		Debug:              debug,
		MaxPending:         cfg.MaxPending,
		DefaultChannel:     cfg.DefaultChannel,
		DefaultInteractive: interactive,
		DefaultPeer:        peer,
		AutoPermission:     auto,
		SendText:           sendText,
		Respond:            client.RespondToPermission,
	})

	for _, ch := range cfg.Channels {
		eng.Coordinators().Register(ch.Name, chat.NewCoordinator(ch.Name, chat.Sender(sendText)))
		eng.Hooks().Register(ch.Name, chat.NewHooks(ch.Name, chat.ReasoningMode(ch.Reasoning), chat.Sender(sendText)))
	}

	return eng, nil
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	agent.SetLogger(agent.NewLoggerFromEnv())
	client := agent.NewClient(cfg.ServerURL)

	sendText := func(channel, peer, text, kind string) {
		if peer == "" {
			peer = "-"
		}
		fmt.Printf("[%s %s %s] %s\n", channel, peer, kind, text)
	}

	eng, err := buildEngine(c, cfg, client, sendText)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := engine.NewSubscriber(client, engine.WithScope(c.String("session")))
	sub.Run(ctx, eng.HandleEvent)
	return nil
}

func watchAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	client := agent.NewClient(cfg.ServerURL)

	eng, err := buildEngine(c, cfg, client, func(string, string, string, string) {})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Follow the first session the stream produces unless one was pinned.
	var current atomic.Value
	current.Store(c.String("session"))

	sub := engine.NewSubscriber(client, engine.WithScope(c.String("session")))
	go sub.Run(ctx, func(ctx context.Context, ev *agent.StreamEvent) {
		if current.Load().(string) == "" {
			if id := sessionOf(ev); id != "" {
				current.Store(id)
			}
		}
		eng.HandleEvent(ctx, ev)
	})

	err = watch.Run(eng.Store(), func() string {
		return current.Load().(string)
	})
	stop()
	return err
}

func sessionOf(ev *agent.StreamEvent) string {
	switch {
	case ev.Part != nil:
		return ev.Part.SessionID
	case ev.Message != nil:
		return ev.Message.SessionID
	case ev.Delta != nil:
		return ev.Delta.SessionID
	case ev.Status != nil:
		return ev.Status.SessionID
	}
	return ""
}
