package observability

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/rs/zerolog/log"
)

// InitSentry wires error capture when a DSN is configured. Returns a flush
// func to defer in main; a no-op when disabled.
func InitSentry(dsn, env string) func() {
	if dsn == "" {
		return func() {}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
	})
	if err != nil {
		log.Warn().Err(err).Msg("sentry init failed; continuing without it")
		return func() {}
	}
	log.Info().Msg("sentry enabled")
	return func() { sentry.Flush(2 * time.Second) }
}

// SentryHandler captures request panics before the router's recoverer turns
// them into a 500. A passthrough when no DSN is configured.
func SentryHandler(dsn string) func(http.Handler) http.Handler {
	if dsn == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle
}
