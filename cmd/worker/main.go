package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/nikhilbhutani/tableside/internal/config"
	"github.com/nikhilbhutani/tableside/internal/database"
	"github.com/nikhilbhutani/tableside/internal/logger"
	"github.com/nikhilbhutani/tableside/internal/notify"
	"github.com/nikhilbhutani/tableside/internal/queue"
	"github.com/nikhilbhutani/tableside/internal/queue/workers"
	"github.com/nikhilbhutani/tableside/internal/session"
)

const (
	concurrency   = 10
	purgeSchedule = "@hourly"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "tableside-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("worker exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}

	ctx := context.Background()
	redisOpt := queue.RedisOpt(cfg.Redis)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue.QueueCritical: 6,
			queue.QueueDefault:  3,
		},
		Logger: log.Named("asynq").Sugar(),
	})

	registry := queue.NewHandlersRegistry(log.Named("tasks"))

	mailer, err := notify.NewDeliveryMailer(cfg.Mail, log.Named("mail"))
	if err != nil {
		return err
	}
	if cfg.Mail.Mode == config.MailModeLog {
		log.Warn("registration codes are written to the log; do not use in production")
	}
	registry.Register(queue.TypeOTPEmail, workers.NewOTPEmailWorker(mailer, log.Named("otp_email")))

	var scheduler *asynq.Scheduler
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, session purge disabled")
	} else {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		registry.Register(queue.TypeSessionPurge, workers.NewSessionPurgeWorker(session.NewStore(db), log.Named("session_purge")))

		scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: log.Named("scheduler").Sugar()})
		if _, err := scheduler.Register(purgeSchedule, queue.NewSessionPurgeTask()); err != nil {
			return fmt.Errorf("schedule session purge: %w", err)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer scheduler.Shutdown()
	}

	log.Info("starting worker", zap.Int("concurrency", concurrency))
	if err := srv.Start(registry.Mux()); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	srv.Shutdown()
	return nil
}
