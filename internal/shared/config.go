package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	SentryDSN   string

	MySQLDSN string

	RedisAddr string
	RedisPass string
	RedisDB   int

	// Outbound platform endpoints. Overridable so tests and sandboxes can
	// point adapters at stubs.
	GoogleBase         string
	GoogleTokenURL     string
	GoogleClientID     string
	GoogleClientSecret string
	FacebookBase       string
	YelpBase           string
	YelpAPIKey         string

	// AI generation step. Empty AIBaseURL switches the API to the static
	// generator.
	AIBaseURL string
	AIKey     string
	AIModel   string

	Workers       int // batch fan-out width
	AdapterRPS    int // per-client outbound rate
	RateLimit     int // human-triggered calls per window per identity
	RateWindow    time.Duration
	RateBackend   string // memory | redis
	AuditBuffer   int
	RequestExpiry time.Duration // HTTP handler timeout

	CrisisKeywords []string
	BannedPhrases  []string
	MaxReplyLen    int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	list := func(k string) []string {
		v := os.Getenv(k)
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		SentryDSN:   env("SENTRY_DSN", ""),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/aleev?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		GoogleBase:         env("GOOGLE_API_BASE", "https://mybusiness.googleapis.com/v4"),
		GoogleTokenURL:     env("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		GoogleClientID:     env("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: env("GOOGLE_CLIENT_SECRET", ""),
		FacebookBase:       env("FACEBOOK_API_BASE", "https://graph.facebook.com/v19.0"),
		YelpBase:           env("YELP_API_BASE", "https://api.yelp.com/v3"),
		YelpAPIKey:         env("YELP_API_KEY", ""),

		AIBaseURL: env("AI_BASE_URL", ""),
		AIKey:     env("AI_API_KEY", ""),
		AIModel:   env("AI_MODEL", "gpt-4o-mini"),

		Workers:       atoi("BATCH_WORKERS", 8),
		AdapterRPS:    atoi("ADAPTER_RPS", 5),
		RateLimit:     atoi("RATE_LIMIT", 30),
		RateWindow:    time.Duration(atoi("RATE_WINDOW_SECONDS", 60)) * time.Second,
		RateBackend:   env("RATE_BACKEND", "memory"),
		AuditBuffer:   atoi("AUDIT_BUFFER", 256),
		RequestExpiry: time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,

		CrisisKeywords: list("POLICY_CRISIS_KEYWORDS"),
		BannedPhrases:  list("POLICY_BANNED_PHRASES"),
		MaxReplyLen:    atoi("POLICY_MAX_REPLY_LEN", 0),
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		log.Warn().Msg("google oauth client credentials are empty; token refresh will fail")
	}
	if c.AIBaseURL == "" {
		log.Warn().Msg("AI_BASE_URL is empty; replies will use the static generator")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
