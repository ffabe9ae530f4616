package cmd

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

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/auth"
	"github.com/frahmantamala/leaf/internal/core/events"
	"github.com/frahmantamala/leaf/internal/mailer"
	"github.com/frahmantamala/leaf/internal/media"
	"github.com/frahmantamala/leaf/internal/notification"
	"github.com/frahmantamala/leaf/internal/tasks"
	"github.com/frahmantamala/leaf/internal/threat"
	threatPostgres "github.com/frahmantamala/leaf/internal/threat/postgres"
	"github.com/frahmantamala/leaf/internal/transport"
	"github.com/frahmantamala/leaf/internal/transport/rest"
	"github.com/frahmantamala/leaf/internal/user"
	userPostgres "github.com/frahmantamala/leaf/internal/user/postgres"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router *chi.Mux
	Queue  queue
	// Pool is only set with the memory queue, where the server runs the
	// workers itself.
	Pool   *tasks.Pool
	Bus    *events.EventBus
	Logger *slog.Logger
}

func startHTTPServer() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	lg := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := initializeDependencies(ctx, cfg, lg)
	if err != nil {
		lg.Error("Failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("Starting HTTP server", "address", addr, "env", cfg.AppEnv)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed to start", "error", err)
			deps.close(context.Background())
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server shutdown error", "error", err)
	}
	deps.close(shutdownCtx)

	lg.Info("Server stopped")
}

// close releases everything in reverse order of construction.
func (d *Dependencies) close(ctx context.Context) {
	if d.Pool != nil {
		if err := d.Pool.Shutdown(ctx); err != nil {
			d.Logger.Error("Worker pool shutdown error", "error", err)
		}
	}
	if err := d.Queue.Close(); err != nil {
		d.Logger.Error("Task queue close error", "error", err)
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func initializeDependencies(ctx context.Context, cfg *internal.Config, lg *slog.Logger) (*Dependencies, error) {
	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gdb, err := initGorm(db, cfg.AppEnv)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	users := userPostgres.NewUserRepository(gdb)
	authService, err := initAuth(cfg, users, lg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sizes, err := media.NewSizes(cfg.Media.AvailableImageSizes, cfg.Media.ImageSizes)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to parse image sizes: %w", err)
	}
	storage, mediaHandler, err := initStorage(ctx, cfg.Media)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	images := media.NewImages(storage, sizes, cfg.Media.BaseURL)

	q, err := initQueue(ctx, cfg.Queue)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	client := tasks.NewClient(q, lg)

	var pool *tasks.Pool
	if cfg.Queue.Driver == "memory" {
		pool = newWorkerPool(q, cfg, storage, lg)
		pool.Start(ctx)
	}

	bus := events.NewEventBus(lg)
	notification.NewEventHandler(mailer.NewComposer(cfg.Mail), client, lg).RegisterEventHandlers(bus)

	base := transport.NewBaseHandler(lg)

	userService := user.NewService(users, authService, images, client, bus, user.ServiceConfig{
		AccessTokenTTL:     cfg.Security.AccessTokenTTL(),
		ConfirmationMaxAge: cfg.Security.ConfirmationMaxAge,
	}, lg)

	threatService := threat.NewService(
		threatPostgres.NewCategoryRepository(gdb),
		threatPostgres.NewThreatRepository(db),
		lg,
	)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Routes{
		Auth: auth.NewMiddleware(base, authService),
		Health: rest.NewHealthHandler(base, map[string]rest.Pinger{
			"database": db,
			"queue":    q,
		}),
		Users:          user.NewHandler(base, userService, images, cfg.Server.MaxUploadSize),
		Threats:        threat.NewHandler(base, threatService),
		Media:          mediaHandler,
		MediaBaseURL:   cfg.Media.BaseURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, lg)

	return &Dependencies{
		Config: cfg,
		DB:     db,
		Router: router,
		Queue:  q,
		Pool:   pool,
		Bus:    bus,
		Logger: lg,
	}, nil
}
