package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string

	IssuerURL       string
	Audience        string
	JWKSURL         string
	ClockSkewSecs   int
	AssertionHeader string

	// AdminEmails is the global-admin allow-list, fixed at startup.
	// Changing it means redeploying, not calling an API.
	AdminEmails []string

	TunnelDomain    string
	SubdomainHeader string

	LookupTimeoutSecs int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	return Config{
		HTTPAddr:               envDefault("HTTP_ADDR", ":8080"),
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		IssuerURL:              os.Getenv("AUTH_ISSUER_URL"),
		Audience:               os.Getenv("AUTH_AUDIENCE"),
		JWKSURL:                os.Getenv("AUTH_JWKS_URL"),
		ClockSkewSecs:          envIntDefault("AUTH_CLOCK_SKEW_SECONDS", 60),
		AssertionHeader:        envDefault("AUTH_ASSERTION_HEADER", "Cf-Access-Jwt-Assertion"),
		AdminEmails:            splitCSV(os.Getenv("ADMIN_EMAILS")),
		TunnelDomain:           envDefault("TUNNEL_DOMAIN", "trycloudflare.com"),
		SubdomainHeader:        envDefault("SUBDOMAIN_HEADER", "X-Subdomain"),
		LookupTimeoutSecs:      envIntDefault("STORE_LOOKUP_TIMEOUT_SECONDS", 3),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func (c Config) LookupTimeout() time.Duration {
	if c.LookupTimeoutSecs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.LookupTimeoutSecs) * time.Second
}

func (c Config) ClockSkew() time.Duration {
	if c.ClockSkewSecs <= 0 {
		return 0
	}
	return time.Duration(c.ClockSkewSecs) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
