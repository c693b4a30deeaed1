package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// newTracerProvider installs the provider described by cfg and returns it
// with its shutdown function. Spans go to the log output when
// cfg.Output is empty.
func newTracerProvider(cfg TraceConfig, logOutput string) (trace.TracerProvider, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	switch cfg.Exporter {
	case "", "none":
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, noopShutdown, nil
	case "stdout":
	default:
		return nil, nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}

	output := cfg.Output
	if output == "" {
		output = logOutput
	}
	w, closer, err := openOutput(output)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace output: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		_ = closer()
		return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := closer(); err == nil {
			err = cerr
		}
		return err
	}
	return tp, shutdown, nil
}
