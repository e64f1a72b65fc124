package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nikhilbhutani/tableside/internal/api"
	"github.com/nikhilbhutani/tableside/internal/audit"
	"github.com/nikhilbhutani/tableside/internal/auth"
	"github.com/nikhilbhutani/tableside/internal/cache"
	"github.com/nikhilbhutani/tableside/internal/config"
	"github.com/nikhilbhutani/tableside/internal/database"
	"github.com/nikhilbhutani/tableside/internal/logger"
	"github.com/nikhilbhutani/tableside/internal/notify"
	"github.com/nikhilbhutani/tableside/internal/otp"
	"github.com/nikhilbhutani/tableside/internal/password"
	"github.com/nikhilbhutani/tableside/internal/queue"
	"github.com/nikhilbhutani/tableside/internal/session"
	"github.com/nikhilbhutani/tableside/internal/tenant"
	"github.com/nikhilbhutani/tableside/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "tableside-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	// Redis is required: pending registrations live only there.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	sender, closeSender, err := newSender(cfg, log)
	if err != nil {
		return err
	}
	defer closeSender()

	hasher, err := password.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := token.NewIssuer(token.Config{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return err
	}
	gen, err := otp.NewGenerator(cfg.Auth.OTPDigits)
	if err != nil {
		return err
	}

	deps := auth.Deps{
		Accounts:      st.accounts,
		Sessions:      st.sessions,
		Registrations: cache.NewRegistrationStore(cache.NewCache(rdb)),
		Sender:        sender,
		Hasher:        hasher,
		Tokens:        tokens,
		OTP:           gen,
		Logger:        log.Named("auth"),
	}
	if st.audit != nil {
		deps.Audit = st.audit
	}
	authSvc, err := auth.NewService(deps, auth.Options{
		RegistrationTTL: cfg.Auth.RegistrationTTL,
		SessionTTL:      cfg.Auth.SessionTTL,
	})
	if err != nil {
		return err
	}
	defer authSvc.Close()

	router := api.NewRouter(api.Deps{
		Config: cfg,
		Logger: log.Named("http"),
		DB:     st.db,
		Redis:  rdb,
		Auth:   authSvc,
		Tokens: tokens,
		Audit:  st.audit,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server", zap.String("addr", cfg.Addr()), zap.String("mail_mode", cfg.Mail.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}

// stores holds the account and session backends. db and audit are nil when
// accounts live in memory.
type stores struct {
	db       *pgxpool.Pool
	accounts auth.AccountStore
	sessions auth.SessionStore
	audit    *audit.Service
}

func (st *stores) close() {
	if st.db != nil {
		st.db.Close()
	}
}

// openStores uses Postgres whenever DATABASE_URL is set and refuses to start
// if it cannot be reached. Memory stores are only used without a URL.
func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, accounts and sessions live in memory; do not use in production")
		return &stores{
			accounts: tenant.NewMemoryStore(),
			sessions: session.NewMemoryStore(),
		}, nil
	}

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.RunMigrations(ctx, db, database.Migrations(), log); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &stores{
		db:       db,
		accounts: tenant.NewService(db),
		sessions: session.NewStore(db),
		audit:    audit.NewService(db),
	}, nil
}

// newSender picks how registration codes leave the process.
func newSender(cfg *config.Config, log *zap.Logger) (auth.OTPSender, func(), error) {
	switch cfg.Mail.Mode {
	case config.MailModeQueue:
		qc := queue.NewClient(cfg.Redis)
		return notify.NewQueueSender(qc, cfg.Auth.RegistrationTTL), func() { _ = qc.Close() }, nil
	case config.MailModeDirect:
		mc, err := notify.NewMailClient(cfg.Mail)
		if err != nil {
			return nil, nil, err
		}
		return mc, func() {}, nil
	default:
		log.Warn("registration codes are written to the log; do not use in production")
		return notify.NewLogSender(log.Named("mail")), func() {}, nil
	}
}
