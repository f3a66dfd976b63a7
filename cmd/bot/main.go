package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quadra/internal/bot"
	"quadra/internal/config"
	"quadra/internal/events"
	"quadra/internal/flow"
	"quadra/internal/lockmgr"
	"quadra/internal/metrics"
	"quadra/internal/notify"
	"quadra/internal/schedule"
	"quadra/internal/session"
	"quadra/internal/store"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("QUADRA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid unit catalog")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st    store.Store
		sqldb *sql.DB
	)
	switch cfg.Store.Backend {
	case config.BackendFile:
		locks := lockmgr.New(lockmgr.Config{
			WaitTimeout: cfg.LockWaitTimeout(),
			MaxPending:  cfg.Lock.MaxPending,
		})
		st, err = store.OpenFileStore(cfg.Store.AgendaDir, locks, &logger)
	default:
		var sqlite *store.SQLiteStore
		// A migration failure aborts startup: serving on a half-applied
		// schema is worse than not serving.
		sqlite, err = store.OpenSQLite(ctx, cfg.Store.Path, &logger)
		if err == nil {
			st = sqlite
			sqldb = sqlite.DB()
		}
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("open store error")
	}
	defer st.Close()

	var sessions session.Manager = session.NewMemoryManager(cfg.SessionTTL())
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		primary := session.NewRedisManager(rdb, cfg.SessionTTL())
		sessions = session.NewFailoverManager(primary, sessions, &logger)
	}

	calc := schedule.NewCalculator(catalog, st)
	bus := events.NewBus()

	controller := flow.New(sessions, st, calc, bus, &logger)
	controller.DaysAhead = cfg.Booking.DaysAhead

	b, err := bot.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, controller, st, calc,
		cfg.Managers, cfg.Export.Dir, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	if len(cfg.Notifications.Chats) > 0 {
		notifier := notify.NewService(notify.Config{
			Targets:           cfg.Notifications.Chats,
			MessagesPerSecond: cfg.Notifications.MessagesPerSecond,
		}, b, &logger)
		notifier.Attach(bus)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, sqldb, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Retention.Enabled {
		go startRetentionLoop(ctx, st, cfg, &logger)
	}

	logger.Info().Str("backend", cfg.Store.Backend).Msg("booking bot started")
	b.Start(ctx)
}

func startRetentionLoop(ctx context.Context, st store.Store, cfg *config.Config, logger *zerolog.Logger) {
	ticker := time.NewTicker(cfg.RetentionInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -cfg.Retention.Days).Format("2006-01-02")
			purged, err := st.PurgeBefore(ctx, cutoff)
			if err != nil {
				logger.Error().Err(err).Msg("retention purge failed")
			} else if purged > 0 {
				logger.Info().Int64("purged", purged).Str("before", cutoff).Msg("old bookings purged")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, db *sql.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if db != nil {
			if err := db.PingContext(ctxPing); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
