// Command stream wires one venue's client, the symbol cache, the fills
// recorder, and the audit trail together and streams its order book until
// interrupted. It mirrors the shape of the original trading engine's test_*
// commands: load config, stand up a client, subscribe, log what comes in.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/epic1st/xchg"
	"github.com/epic1st/xchg/config"
	"github.com/epic1st/xchg/fills"
	"github.com/epic1st/xchg/logging"
	"github.com/epic1st/xchg/symbol"
	"github.com/epic1st/xchg/venue/binance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := cfg.BuildLogger()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}

	var keys *binance.Keys
	if cfg.Keys.BinanceAPIKey != "" {
		keys = &binance.Keys{APIKey: cfg.Keys.BinanceAPIKey, SecretKey: cfg.Keys.BinanceSecretKey}
	}

	client, err := binance.New(binance.Params{
		WSEndpoint:   cfg.Binance.WSEndpoint,
		RESTEndpoint: cfg.Binance.RESTEndpoint,
		Symbol:       cfg.Binance.Symbol,
	}, keys, logger)
	if err != nil {
		logger.Fatal("constructing binance client", err, logging.Component("cmd/stream"))
	}
	defer client.Close()

	// Warm a Redis-backed copy of the symbol list (fetching it from the
	// client on a cache miss). binance.New has already fetched the list for
	// this client, and the registry loaded here is not used by this process.
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		cache := symbol.NewCachingRegistry(rdb, 10*time.Minute, logger)
		if _, err := cache.Load(context.Background(), "binance", client); err != nil {
			logger.Warn("symbol cache load failed", logging.Component("cmd/stream"),
				logging.String("error", err.Error()))
		}
	}

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			logger.Fatal("connecting to postgres", err, logging.Component("cmd/stream"))
		}
		defer pool.Close()

		recorder := fills.NewRecorder(pool, "binance", cfg.Binance.Symbol, logger)
		if err := recorder.CreateTable(context.Background()); err != nil {
			logger.Fatal("creating fills table", err, logging.Component("cmd/stream"))
		}
		defer startRecorder(recorder, client, cfg, logger)()
	}

	if dir := os.Getenv("AUDIT_LOG_DIR"); dir != "" {
		audit, err := logging.NewAuditLogger(dir)
		if err != nil {
			logger.Fatal("constructing audit logger", err, logging.Component("cmd/stream"))
		}
		defer audit.Close()
		client.SetAuditLogger(audit)
	}

	sym, ok := client.FindSymbol(cfg.Binance.Symbol)
	if !ok {
		logger.Fatal("symbol not found", nil, logging.Component("cmd/stream"),
			logging.Symbol(cfg.Binance.Symbol))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifications, err := client.StreamWithFlags(ctx, sym, xchg.AllFlags)
	if err != nil {
		logger.Fatal("dialing stream", err, logging.Component("cmd/stream"))
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	logger.Info("streaming", logging.Component("cmd/stream"), logging.Symbol(sym.Name()))
	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				logger.Warn("stream closed", logging.Component("cmd/stream"))
				return
			}
			logNotification(logger, n)
		case <-interrupt:
			logger.Info("shutting down", logging.Component("cmd/stream"))
			return
		}
	}
}

func startRecorder(recorder *fills.Recorder, client *binance.Client, cfg *config.Config, logger *logging.Logger) func() {
	ctx, cancel := context.WithCancel(context.Background())
	sym, ok := client.FindSymbol(cfg.Binance.Symbol)
	if !ok {
		cancel()
		return func() {}
	}
	notifications, err := client.StreamWithFlags(ctx, sym, xchg.FlagOrders)
	if err != nil {
		logger.Warn("fills recorder stream failed", logging.Component("cmd/stream"), logging.String("error", err.Error()))
		cancel()
		return func() {}
	}
	go recorder.Run(ctx, notifications)
	return cancel
}

func logNotification(logger *logging.Logger, n xchg.Notification) {
	switch {
	case n.OrderConfirmation != nil:
		c := n.OrderConfirmation
		logger.Info("order confirmed", logging.Component("cmd/stream"), logging.OrderID(c.Inner.OrderID))
	case n.OrderUpdate != nil:
		u := n.OrderUpdate
		logger.Info("order fill", logging.Component("cmd/stream"), logging.OrderID(u.Inner.OrderID))
	case n.OrderExpiration != nil:
		e := n.OrderExpiration
		logger.Info("order expired", logging.Component("cmd/stream"), logging.OrderID(e.Inner.OrderID))
	case n.Trade != nil:
		logger.Debug("trade", logging.Component("cmd/stream"))
	case len(n.LimitUpdates) > 0:
		logger.Debug("book update", logging.Component("cmd/stream"), logging.Int("updates", len(n.LimitUpdates)))
	}
}
