package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/auth"
	userDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/user"
	"github.com/frahmantamala/leaf/internal/mailer"
	"github.com/frahmantamala/leaf/internal/media"
	"github.com/frahmantamala/leaf/internal/tasks"
	userPostgres "github.com/frahmantamala/leaf/internal/user/postgres"
	"github.com/frahmantamala/leaf/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// queue is what the commands need from either broker.
type queue interface {
	tasks.Queue
	PingContext(ctx context.Context) error
}

func newLogger(cfg *internal.Config) *slog.Logger {
	return logger.Configure(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm opens gorm over the pool owned by db.
func initGorm(db *sqlx.DB, appEnv string) (*gorm.DB, error) {
	level := gormLogger.Warn
	if appEnv == "production" {
		level = gormLogger.Error
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	if err := userDatamodel.SetupJoinTables(gdb); err != nil {
		return nil, fmt.Errorf("failed to set up join tables: %w", err)
	}
	return gdb, nil
}

// initStorage returns the configured media storage plus a handler serving
// it when files live on the local disk.
func initStorage(ctx context.Context, cfg internal.MediaConfig) (media.Storage, http.Handler, error) {
	switch cfg.Driver {
	case "s3":
		s, err := media.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init s3 storage: %w", err)
		}
		return s, nil, nil
	default:
		s := media.NewLocalStorage(cfg.Folder)
		return s, s.FileServer(), nil
	}
}

func initQueue(ctx context.Context, cfg internal.QueueConfig) (queue, error) {
	switch cfg.Driver {
	case "redis":
		q, err := tasks.NewRedisQueue(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to connect task broker: %w", err)
		}
		return q, nil
	default:
		return tasks.NewMemoryQueue(cfg.Buffer), nil
	}
}

// newWorkerPool builds a pool with the send_mail and resize_image handlers.
func newWorkerPool(q tasks.Queue, cfg *internal.Config, storage media.Storage, lg *slog.Logger) *tasks.Pool {
	pool := tasks.NewPool(q, tasks.PoolConfig{MaxWorkers: cfg.Queue.Workers}, lg)
	tasks.Register(pool, mailer.NewSMTPSender(cfg.Mail), storage, lg)
	return pool
}

// initAuth builds the auth service over the user repository.
func initAuth(cfg *internal.Config, users *userPostgres.UserRepository, lg *slog.Logger) (*auth.Service, error) {
	tokens, err := auth.NewJWTTokenGenerator(cfg.Security.SecretKey, cfg.Security.Algorithm, cfg.Security.AccessTokenTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to init token generator: %w", err)
	}
	confirmations, err := auth.NewConfirmationSigner(cfg.Security.SecretKey, cfg.Security.SecurityPasswordSalt, cfg.Security.ConfirmationMaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to init confirmation signer: %w", err)
	}
	return auth.NewService(users, tokens, confirmations, cfg.Security.BCryptCost, lg), nil
}
