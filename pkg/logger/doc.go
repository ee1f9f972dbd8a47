// Package logger provides structured logging with context extraction and
// optional Sentry mirroring for the assistant cache layer.
//
// It extends log/slog in two ways: attributes can be pulled from context (or
// any per-call getter) on every log call, and records can be fanned out to
// stdout and Sentry simultaneously. Every component in this module takes a
// *slog.Logger through an option and defaults to the silent NewNope logger,
// so logging stays injected rather than global.
//
// # Basic Usage
//
// Create a logger with context extractors:
//
//	reqIDExtractor := func(ctx context.Context) (slog.Attr, bool) {
//		if reqID, ok := ctx.Value(requestIDKey{}).(string); ok && reqID != "" {
//			return slog.String("request_id", reqID), true
//		}
//		return slog.Attr{}, false
//	}
//
//	log := logger.New(reqIDExtractor)
//
//	ctx := context.WithValue(context.Background(), requestIDKey{}, "abc-123")
//	log.InfoContext(ctx, "itinerary cached", slog.String("namespace", "itineraries"))
//	// Output: {"level":"INFO","msg":"itinerary cached","namespace":"itineraries","request_id":"abc-123"}
//
// # Identity stamping
//
// IdentityExtractor reads the active identity through a getter instead of
// context, so cache and coordinator logs always carry the traveler they
// ran under:
//
//	log := logger.New(logger.IdentityExtractor(client.ActiveIdentity))
//
// The getter runs per log call. Records written after an identity switch
// carry the new identity without any re-wiring.
//
// # Sentry Integration
//
// NewWithSentry mirrors warnings and errors to Sentry while keeping the
// stdout stream intact:
//
//	cfg := logger.SentryConfig{
//		DSN:         os.Getenv("SENTRY_DSN"),
//		Environment: "production",
//		MinLevel:    slog.LevelWarn,
//	}
//	log := logger.NewWithSentry(cfg, reqIDExtractor)
//
// An empty DSN falls back to stdout only, so the same code path serves
// development and production. Call Flush on shutdown to drain buffered
// events.
//
// # Handler Decoration
//
// NewLogHandlerDecorator wraps any slog.Handler, so extractors compose with
// handlers created elsewhere. The cache client uses this to stamp an
// injected logger with its own identity getter:
//
//	decorated := logger.NewLogHandlerDecorator(log.Handler(),
//		logger.IdentityExtractor(activeIdentity))
//	log = slog.New(decorated)
package logger
