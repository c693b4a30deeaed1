// Command relay is a terminal client for streamed assistant conversations.
//
// Usage:
//
//	RELAY_BACKEND_URL=https://... relay [flags]
//	GEMINI_API_KEY=gk-...        relay -transport gemini [flags]
//
// Flags:
//
//	-config string        Path to YAML config (default: ~/.relay/config.yaml)
//	-conversation string  Conversation ID to continue
//	-transport string     Transport: http, gemini (overrides config)
//	-store string         Store for the gemini transport: json, sqlite (overrides config)
//	-agent string         Agent for new conversations (overrides config)
//	-list                 List conversations and exit
//	-prompt string        Send one message, print the reply and exit
//
// Environment variables, optionally loaded from ./.env: RELAY_BACKEND_URL,
// RELAY_TOKEN, GEMINI_API_KEY.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fwojciec/relay"
	bt "github.com/fwojciec/relay/bubbletea"
	"github.com/fwojciec/relay/session"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	var (
		configPath   = flag.String("config", filepath.Join(home, ".relay", "config.yaml"), "Path to YAML config")
		conversation = flag.String("conversation", "", "Conversation ID to continue")
		transport    = flag.String("transport", "", "Transport: http, gemini (overrides config)")
		store        = flag.String("store", "", "Store for the gemini transport: json, sqlite (overrides config)")
		agent        = flag.String("agent", "", "Agent for new conversations (overrides config)")
		list         = flag.Bool("list", false, "List conversations and exit")
		prompt       = flag.String("prompt", "", "Send one message, print the reply and exit")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Env is only read here and passed on as values.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	configSet := false
	flag.Visit(func(f *flag.Flag) { configSet = configSet || f.Name == "config" })

	cfg, err := LoadConfig(*configPath, configSet, home)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(Env{
		BackendURL:   os.Getenv("RELAY_BACKEND_URL"),
		BackendToken: os.Getenv("RELAY_TOKEN"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
	})
	cfg.ApplyFlags(*transport, *store, *agent)
	cfg.fillDefaults(home)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	tp, shutdownTracer, err := newTracerProvider(cfg.Trace, cfg.Log.Output)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	if *list {
		return listConversations(ctx, b.lister, os.Stdout)
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithTracerProvider(tp),
		session.WithAgent(cfg.Agent),
	}
	if cfg.Session.ReconcileTimeout > 0 {
		opts = append(opts, session.WithReconcileTimeout(cfg.Session.ReconcileTimeout))
	}
	if cfg.Session.MaxLineSize > 0 {
		opts = append(opts, session.WithMaxLineSize(cfg.Session.MaxLineSize))
	}
	ctrl := session.New(b.transport, b.store, opts...)

	if *prompt != "" {
		return runPrompt(ctx, ctrl, *conversation, *prompt, os.Stdout, os.Stderr, logger)
	}

	logger.Info("starting", "transport", cfg.Transport, "store", cfg.Store.Kind, "conversation", *conversation)
	m := bt.New(ctrl, b.store, relay.DefaultTheme(), bt.WithConversation(*conversation))
	final, err := bt.Run(ctx, m)
	if err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	if id := final.ConversationID(); id != "" {
		fmt.Fprintf(os.Stderr, "conversation: %s\n", id)
	}
	return nil
}
