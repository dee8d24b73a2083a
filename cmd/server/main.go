package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/task-manager/internal/config"
	"github.com/iliyamo/task-manager/internal/database"
	"github.com/iliyamo/task-manager/internal/logger"
	"github.com/iliyamo/task-manager/internal/metrics"
	"github.com/iliyamo/task-manager/internal/queue"
	"github.com/iliyamo/task-manager/internal/repository"
	"github.com/iliyamo/task-manager/internal/router"
	"github.com/iliyamo/task-manager/internal/service"
	"github.com/iliyamo/task-manager/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", logger.Err(err))
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	log.Info("starting task manager", slog.String("env", cfg.Env), slog.String("db_driver", cfg.DB.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := database.Open(cfg.DB)
	if err != nil {
		log.Error("open database", logger.Err(err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db, dialect); err != nil {
			log.Error("migrate database", logger.Err(err))
			os.Exit(1)
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	} else {
		log.Warn("redis unavailable: cache disabled, rate limiting is per process")
	}

	var events service.EventPublisher = queue.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		events = queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, log)
		consumer := queue.NewAuditConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.RabbitMQ.AuditLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", logger.Err(err))
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokens, err := utils.NewTokenService(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	if err != nil {
		log.Error("build token service", logger.Err(err))
		os.Exit(1)
	}

	users := repository.NewUserRepo(db, dialect)
	tasks := repository.NewTaskRepo(db, dialect)

	e := router.New(router.Deps{
		Log:     log,
		Config:  cfg,
		Auth:    service.NewAuthService(log, users, tokens, events, m, cfg.BcryptCost),
		Users:   service.NewUserService(log, users, events),
		Tasks:   service.NewTaskService(tasks),
		Metrics: m,
		Redis:   rdb,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown", logger.Err(err))
	}
}
