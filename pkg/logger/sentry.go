package logger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string
	Environment string
	// MinLevel determines which log levels are mirrored to Sentry.
	// slog.LevelError narrows the mirror to errors only; anything lower
	// includes warnings too.
	MinLevel slog.Level
}

// NewWithSentry creates a logger that writes to both stdout and Sentry.
// An empty DSN falls back to stdout only, so local development needs no
// Sentry project. Context extractors apply to both destinations.
func NewWithSentry(cfg SentryConfig, extractors ...ContextExtractor) *slog.Logger {
	stdoutHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	if cfg.DSN == "" {
		return slog.New(NewLogHandlerDecorator(stdoutHandler, extractors...))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		EnableLogs:  true,
	}); err != nil {
		// Degrade to stdout rather than failing startup.
		slog.New(stdoutHandler).Error("failed to initialize Sentry", slog.String("error", err.Error()))
		return slog.New(NewLogHandlerDecorator(stdoutHandler, extractors...))
	}

	// Errors create Sentry issues; warnings are kept as searchable logs
	// unless MinLevel narrows the mirror.
	eventLevel := []slog.Level{slog.LevelError}
	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.MinLevel == slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}

	sentryHandler := sentryslog.Option{
		EventLevel: eventLevel,
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background())

	combined := &teeHandler{children: []slog.Handler{stdoutHandler, sentryHandler}}

	return slog.New(NewLogHandlerDecorator(combined, extractors...))
}

// teeHandler delivers each record to every child that accepts its level.
// One failing destination does not stop delivery to the others.
type teeHandler struct {
	children []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, c := range t.children {
		if c.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for _, c := range t.children {
		if !c.Enabled(ctx, rec.Level) {
			continue
		}
		if err := c.Handle(ctx, rec.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	children := make([]slog.Handler, len(t.children))
	for i, c := range t.children {
		children[i] = c.WithAttrs(attrs)
	}
	return &teeHandler{children: children}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	children := make([]slog.Handler, len(t.children))
	for i, c := range t.children {
		children[i] = c.WithGroup(name)
	}
	return &teeHandler{children: children}
}

// Flush drains buffered Sentry events, blocking up to timeout. Call it on
// shutdown after the cache layer has been closed so teardown warnings are
// delivered.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
