package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	httpapi "github.com/immxrtalbeast/supportchat/internal/api/http"
	"github.com/immxrtalbeast/supportchat/internal/api/ws"
	"github.com/immxrtalbeast/supportchat/internal/auth"
	"github.com/immxrtalbeast/supportchat/internal/config"
	"github.com/immxrtalbeast/supportchat/internal/hub"
	"github.com/immxrtalbeast/supportchat/internal/metrics"
	"github.com/immxrtalbeast/supportchat/internal/presence"
	"github.com/immxrtalbeast/supportchat/internal/ratelimit"
	"github.com/immxrtalbeast/supportchat/internal/repository"
	"github.com/immxrtalbeast/supportchat/internal/repository/model"
	"github.com/immxrtalbeast/supportchat/internal/service"
	"github.com/immxrtalbeast/supportchat/internal/storage"
	"github.com/immxrtalbeast/supportchat/lib/logger/sl"
	"github.com/immxrtalbeast/supportchat/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const limiterTTL = 10 * time.Minute

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("application stopped", sl.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := connectDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	visitorRepo := repository.NewGormVisitorRepository(db)
	roomRepo := repository.NewGormRoomRepository(db)

	store, err := storage.NewLocalStore(cfg.Storage.UploadDir, cfg.Storage.PublicPrefix, cfg.Storage.MaxUploadBytes, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	tracker, closePresence, err := setupPresence(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("init presence: %w", err)
	}
	// Runs after g.Wait, once every handler that touches presence is done.
	defer func() {
		if err := closePresence(); err != nil {
			log.Error("failed to close presence store", sl.Err(err))
		}
	}()

	jwt, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	broadcastHub := hub.New(log, m)
	lifecycle := service.NewRoomLifecycle(roomRepo, log)
	chatService := service.NewChatService(visitorRepo, lifecycle, broadcastHub, log,
		service.WithAttachmentStore(store),
		service.WithMetrics(m),
		service.WithMaxMessageLength(cfg.Chat.MaxMessageLength),
	)

	limiter := ratelimit.NewPool(cfg.Chat.SendRPS, cfg.Chat.SendBurst, limiterTTL)

	chatController := httpapi.NewChatController(chatService, tracker, limiter, cfg.Storage.MaxUploadBytes, log)
	realtime := ws.NewController(chatService, tracker, limiter, cfg.HTTP.AllowedOrigins, cfg.Chat.EndpointBuffer, log)

	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.SetupRouter(httpapi.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		UploadDir:      cfg.Storage.UploadDir,
		UploadPrefix:   cfg.Storage.PublicPrefix,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, jwt, chatController, realtime, log)

	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting application", slog.String("addr", cfg.HTTP.Address), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(limiterTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := limiter.Sweep(); n > 0 {
					log.Debug("evicted idle rate limiters", slog.Int("count", n))
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// setupPresence shares presence through redis when configured and keeps it
// in process otherwise. The returned func releases the backing connection.
func setupPresence(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (presence.Tracker, func() error, error) {
	if cfg.Addr == "" {
		log.Info("presence kept in memory")
		return presence.NewMemoryTracker(), func() error { return nil }, nil
	}
	client, err := presence.Connect(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	log.Info("presence stored in redis", slog.String("addr", cfg.Addr))
	return presence.NewRedisTracker(client), client.Close, nil
}
