// Package config loads this module's runtime configuration from the
// environment: per-venue stream endpoints, key material, logging, and
// rate/backoff tunables.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/epic1st/xchg/logging"
)

// Config holds every tunable this module reads from the environment.
type Config struct {
	Log LogConfig

	Binance StreamConfig
	GDAX    StreamConfig
	HitBTC  StreamConfig

	Keys KeyConfig

	Rate RateConfig
}

// LogConfig selects the logger's verbosity and the environment tag
// attached to every entry. LogFilePath and SentryDSN are both optional:
// empty means stdout-only logging with no external error-tracking hook.
type LogConfig struct {
	Level       logging.LogLevel
	Environment string
	LogFilePath string
	SentryDSN   string
}

// StreamConfig is one venue's WebSocket/REST endpoint pair and the
// single symbol this client trades against it.
type StreamConfig struct {
	WSEndpoint   string
	RESTEndpoint string
	Symbol       string
}

// KeyConfig carries the optional authenticated-mode credentials for
// every venue. A venue whose fields are empty runs in public/unauthenticated
// mode: no order placement, cancellation, or private user-data channel.
type KeyConfig struct {
	BinanceAPIKey    string
	BinanceSecretKey string

	GDAXAPIKey     string
	GDAXSecretKey  string
	GDAXPassPhrase string

	HitBTCPublicKey string
	HitBTCSecretKey string
}

// RateConfig holds REST timeout/retry/backoff and keep-alive tunables read
// from the environment. No package in this module reads them: the REST
// client uses a fixed 10s timeout and never retries, and the ping and
// listen-key refresh cadences are constants of xchg and venue/binance.
type RateConfig struct {
	RestTimeout       time.Duration
	MaxRetries        int
	BackoffBase       time.Duration
	KeepAliveInterval time.Duration
}

// Load reads configuration from the environment, best-effort-loading a
// `.env` file first; a missing file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Log: LogConfig{
			Level:       parseLogLevel(getEnv("LOG_LEVEL", "info")),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", ""),
			SentryDSN:   getEnv("SENTRY_DSN", ""),
		},

		Binance: StreamConfig{
			WSEndpoint:   getEnv("BINANCE_WS_ENDPOINT", "wss://stream.binance.com:9443"),
			RESTEndpoint: getEnv("BINANCE_REST_ENDPOINT", "https://api.binance.com"),
			Symbol:       getEnv("BINANCE_SYMBOL", "BTCUSDT"),
		},

		GDAX: StreamConfig{
			WSEndpoint:   getEnv("GDAX_WS_ENDPOINT", "wss://ws-feed.pro.coinbase.com"),
			RESTEndpoint: getEnv("GDAX_REST_ENDPOINT", "https://api.pro.coinbase.com"),
			Symbol:       getEnv("GDAX_SYMBOL", "BTC-USD"),
		},

		HitBTC: StreamConfig{
			WSEndpoint:   getEnv("HITBTC_WS_ENDPOINT", "wss://api.hitbtc.com/api/2/ws"),
			RESTEndpoint: getEnv("HITBTC_REST_ENDPOINT", "https://api.hitbtc.com"),
			Symbol:       getEnv("HITBTC_SYMBOL", "ETHBTC"),
		},

		Keys: KeyConfig{
			BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
			BinanceSecretKey: getEnv("BINANCE_SECRET_KEY", ""),

			GDAXAPIKey:     getEnv("GDAX_API_KEY", ""),
			GDAXSecretKey:  getEnv("GDAX_SECRET_KEY", ""),
			GDAXPassPhrase: getEnv("GDAX_PASSPHRASE", ""),

			HitBTCPublicKey: getEnv("HITBTC_PUBLIC_KEY", ""),
			HitBTCSecretKey: getEnv("HITBTC_SECRET_KEY", ""),
		},

		Rate: RateConfig{
			RestTimeout:       getEnvAsDuration("REST_TIMEOUT", 10*time.Second),
			MaxRetries:        getEnvAsInt("REST_MAX_RETRIES", 3),
			BackoffBase:       getEnvAsDuration("REST_BACKOFF_BASE", 500*time.Millisecond),
			KeepAliveInterval: getEnvAsDuration("KEEP_ALIVE_INTERVAL", 30*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants this configuration must satisfy: none of
// the streaming endpoints may be empty, and a venue with a partial key
// set (some but not all of its credential fields populated) is rejected
// outright rather than silently running half-authenticated.
func (c *Config) Validate() error {
	for name, s := range map[string]StreamConfig{"binance": c.Binance, "gdax": c.GDAX, "hitbtc": c.HitBTC} {
		if s.WSEndpoint == "" || s.RESTEndpoint == "" || s.Symbol == "" {
			return fmt.Errorf("config: %s stream endpoints/symbol must not be empty", name)
		}
	}

	binanceKeys := c.Keys.BinanceAPIKey != "" || c.Keys.BinanceSecretKey != ""
	if binanceKeys && (c.Keys.BinanceAPIKey == "" || c.Keys.BinanceSecretKey == "") {
		return fmt.Errorf("config: BINANCE_API_KEY and BINANCE_SECRET_KEY must both be set or both be empty")
	}

	gdaxKeys := c.Keys.GDAXAPIKey != "" || c.Keys.GDAXSecretKey != "" || c.Keys.GDAXPassPhrase != ""
	if gdaxKeys && (c.Keys.GDAXAPIKey == "" || c.Keys.GDAXSecretKey == "" || c.Keys.GDAXPassPhrase == "") {
		return fmt.Errorf("config: GDAX_API_KEY, GDAX_SECRET_KEY and GDAX_PASSPHRASE must all be set or all be empty")
	}

	hitbtcKeys := c.Keys.HitBTCPublicKey != "" || c.Keys.HitBTCSecretKey != ""
	if hitbtcKeys && (c.Keys.HitBTCPublicKey == "" || c.Keys.HitBTCSecretKey == "") {
		return fmt.Errorf("config: HITBTC_PUBLIC_KEY and HITBTC_SECRET_KEY must both be set or both be empty")
	}

	return nil
}

// BuildLogger constructs the *logging.Logger this configuration
// describes: stdout plus, if LogFilePath is set, a rotating file writer
// alongside it; if SentryDSN is set, a Sentry hook is registered for
// ERROR/FATAL entries.
func (c *Config) BuildLogger() (*logging.Logger, error) {
	outputs := []io.Writer{os.Stdout}

	if c.Log.LogFilePath != "" {
		rotating, err := logging.NewRotatingFileWriter(logging.RotationConfig{
			Filename:           c.Log.LogFilePath,
			MaxSizeMB:          100,
			MaxAge:             7 * 24 * time.Hour,
			MaxBackups:         5,
			CompressionEnabled: true,
		})
		if err != nil {
			return nil, fmt.Errorf("config: building rotating log writer: %w", err)
		}
		outputs = append(outputs, rotating)
	}

	logger := logging.NewLogger(c.Log.Level, outputs...)

	if c.Log.SentryDSN != "" {
		hook, err := logging.NewSentryHook(c.Log.SentryDSN, c.Log.Environment)
		if err != nil {
			return nil, fmt.Errorf("config: building sentry hook: %w", err)
		}
		logger.AddHook(hook)
	}

	return logger, nil
}

func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	case "fatal":
		return logging.FATAL
	default:
		return logging.INFO
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	return defaultVal
}
