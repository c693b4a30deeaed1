package main

import (
	"context"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"path/filepath"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/gemini"
	"github.com/fwojciec/relay/http"
	relayjson "github.com/fwojciec/relay/json"
	"github.com/fwojciec/relay/sqlite"
)

// backend is the transport and store pair a run talks to.
type backend struct {
	transport relay.Transport
	store     relay.Store
	lister    relay.Lister
	close     func() error
}

// localStore is what the gemini transport needs from a local store.
type localStore interface {
	gemini.Recorder
	relay.Lister
}

// openBackend builds the transport and store for a validated cfg.
func openBackend(ctx context.Context, cfg Config, logger *slog.Logger) (backend, error) {
	switch cfg.Transport {
	case transportHTTP:
		client := http.New(cfg.Backend.URL,
			http.WithToken(cfg.Backend.Token),
			http.WithLogger(logger),
			http.WithHTTPClient(&nethttp.Client{Transport: backendTransport(cfg.Backend)}),
			http.WithBreaker(http.BreakerConfig{
				MaxFailures: cfg.Backend.Breaker.MaxFailures,
				Timeout:     cfg.Backend.Breaker.Timeout,
				Interval:    cfg.Backend.Breaker.Interval,
			}),
		)
		return backend{transport: client, store: client, lister: client, close: func() error { return nil }}, nil

	case transportGemini:
		store, closeStore, err := openLocalStore(cfg.Store)
		if err != nil {
			return backend{}, err
		}
		opts := []gemini.Option{
			gemini.WithLogger(logger),
			gemini.WithWebSearch(cfg.Gemini.WebSearch),
		}
		if cfg.Gemini.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Gemini.Model))
		}
		if cfg.Gemini.MaxTokens > 0 {
			opts = append(opts, gemini.WithMaxTokens(cfg.Gemini.MaxTokens))
		}
		if cfg.Gemini.Effort != "" {
			effort, err := relay.ParseReasoningEffort(cfg.Gemini.Effort)
			if err != nil {
				_ = closeStore()
				return backend{}, err
			}
			opts = append(opts, gemini.WithReasoningEffort(effort))
		}
		if cfg.Gemini.SystemPrompt != "" {
			opts = append(opts, gemini.WithSystemPrompt(cfg.Gemini.SystemPrompt))
		}
		transport, err := gemini.New(ctx, cfg.Gemini.APIKey, store, opts...)
		if err != nil {
			_ = closeStore()
			return backend{}, err
		}
		return backend{transport: transport, store: store, lister: store, close: closeStore}, nil

	default:
		return backend{}, fmt.Errorf("unknown transport %q: %w", cfg.Transport, relay.ErrValidation)
	}
}

func openLocalStore(cfg StoreConfig) (localStore, func() error, error) {
	switch cfg.Kind {
	case storeJSON:
		return relayjson.NewStore(cfg.Path), func() error { return nil }, nil
	case storeSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q: %w", cfg.Kind, relay.ErrValidation)
	}
}

// backendTransport bounds the wait for response headers only, so long
// streams are not cut off.
func backendTransport(cfg BackendConfig) nethttp.RoundTripper {
	t := nethttp.DefaultTransport.(*nethttp.Transport).Clone()
	t.ResponseHeaderTimeout = cfg.Timeout
	return t
}
