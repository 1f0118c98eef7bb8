package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtoyanMikhail/taskmanager/internal/auth"
	"github.com/AtoyanMikhail/taskmanager/internal/cache"
	"github.com/AtoyanMikhail/taskmanager/internal/cleanup"
	"github.com/AtoyanMikhail/taskmanager/internal/config"
	"github.com/AtoyanMikhail/taskmanager/internal/handler"
	"github.com/AtoyanMikhail/taskmanager/internal/logger"
	"github.com/AtoyanMikhail/taskmanager/internal/password"
	"github.com/AtoyanMikhail/taskmanager/internal/refresh"
	"github.com/AtoyanMikhail/taskmanager/internal/repository"
	"github.com/AtoyanMikhail/taskmanager/internal/token"
	"github.com/gin-gonic/gin"
)

const dayDuration = 24 * time.Hour

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal(err.Error())
	}

	logger.Initialize(logger.ParseLevel(cfg.LogLevel), os.Stdout)
	l := logger.Global()
	defer func() { _ = l.Sync() }()

	signer, err := token.NewSigner(cfg.JWT.SecretKey)
	if err != nil {
		l.Fatal("Invalid JWT signing key", logger.Error(err))
	}

	db, err := repository.Open(cfg.Database)
	if err != nil {
		l.Fatal("Failed to connect to database", logger.Error(err))
	}
	defer db.Close()

	if err := repository.RunMigrations(db); err != nil {
		l.Fatal("Failed to apply migrations", logger.Error(err))
	}
	l.Info("Database ready", logger.String("host", cfg.Database.Host), logger.String("db", cfg.Database.DBName))

	var redisCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err = cache.NewRedisCache(cfg.Redis, l)
		if err != nil {
			l.Fatal("Failed to connect to Redis", logger.Error(err))
		}
		defer redisCache.Close()
	} else {
		l.Info("Redis not configured, login throttling and cleanup lock disabled")
	}

	tokens := repository.NewRefreshTokenRepository(db, l)
	accounts := repository.NewAccountRepository(db, l)

	store := refresh.NewStore(tokens, accounts, signer, cfg.JWT.RefreshTokenTTL.Std(), l)
	guard := cache.NewLoginGuard(redisCache, cfg.Login.MaxAttempts, cfg.Login.AttemptWindow.Std(), l)
	svc := auth.NewService(accounts, password.NewBcrypt(0), signer, store, guard, cfg.JWT.AccessTokenTTL.Std(), l)

	sweeper := cleanup.NewSweeper(tokens, cfg.Refresh.CleanupBatchSize,
		time.Duration(cfg.Refresh.StaleTimeDays)*dayDuration, l)
	var schedulerOpts []cleanup.SchedulerOption
	if redisCache != nil {
		schedulerOpts = append(schedulerOpts,
			cleanup.WithLocker(cache.NewLocker(redisCache, l), cfg.Refresh.CleanupLockTTL.Std()))
	}
	scheduler, err := cleanup.NewScheduler(sweeper, cfg.Refresh.CleanupCron, l, schedulerOpts...)
	if err != nil {
		l.Fatal("Invalid cleanup schedule", logger.Error(err))
	}
	scheduler.Start()

	if logger.ParseLevel(cfg.LogLevel) != logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := handler.New(svc, signer, l).Router()
	if err != nil {
		l.Fatal("Failed to build router", logger.Error(err))
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		l.Info("HTTP server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("HTTP server failed", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error("HTTP server shutdown failed", logger.Error(err))
	}
	if err := scheduler.Stop(ctx); err != nil {
		l.Error("Cleanup scheduler did not stop in time", logger.Error(err))
	}
	l.Info("Stopped")
}
