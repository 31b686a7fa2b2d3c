package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearVenueEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BINANCE_WS_ENDPOINT", "GDAX_WS_ENDPOINT", "HITBTC_WS_ENDPOINT",
		"BINANCE_API_KEY", "BINANCE_SECRET_KEY",
		"GDAX_API_KEY", "GDAX_SECRET_KEY", "GDAX_PASSPHRASE",
		"HITBTC_PUBLIC_KEY", "HITBTC_SECRET_KEY",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	clearVenueEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Binance.WSEndpoint == "" || cfg.GDAX.RESTEndpoint == "" || cfg.HitBTC.Symbol == "" {
		t.Fatal("expected Load() to populate default stream endpoints")
	}
}

func TestLoadRejectsPartialKeySet(t *testing.T) {
	clearVenueEnv(t)
	os.Setenv("BINANCE_API_KEY", "only-the-key")
	defer os.Unsetenv("BINANCE_API_KEY")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to reject a partial Binance key set")
	}
}

func TestBuildLoggerWithRotation(t *testing.T) {
	clearVenueEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Log.LogFilePath = filepath.Join(t.TempDir(), "xchg.log")

	logger, err := cfg.BuildLogger()
	if err != nil {
		t.Fatalf("BuildLogger() error = %v", err)
	}
	logger.Info("test entry")

	if _, err := os.Stat(cfg.Log.LogFilePath); err != nil {
		t.Fatalf("expected rotating log file to exist: %v", err)
	}
}
