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

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"copydesk/internal/api"
	"copydesk/internal/auth"
	"copydesk/internal/chat"
	"copydesk/internal/config"
	"copydesk/internal/logger"
	"copydesk/internal/n8n"
	"copydesk/internal/notify"
	"copydesk/internal/redis"
	"copydesk/internal/session"
	"copydesk/internal/storage"
	"copydesk/internal/worker"
)

var (
	configFlag string
	rootCmd    = &cobra.Command{
		Use:           "copydesk",
		Short:         "Marketing copy chat backend for n8n workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", os.Getenv("COPYDESK_CONFIG"), "config file (json or yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	})
	rootCmd.AddCommand(newChatCmd(), newAgentsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every command builds from the configuration.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	client  *n8n.Client
	kv      storage.KV
	redis   *redis.Client
	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg, log: logger.New("copydesk", cfg.BasicConfig.Debug)}
	a.client = n8n.New(cfg.N8N, a.log, n8n.WithDebugLogging(cfg.BasicConfig.Debug))
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	driver := a.cfg.BasicConfig.StoreDriver
	ttl := time.Duration(a.cfg.BasicConfig.StoreTTL) * time.Hour
	a.log.Info().Str("driver", driver).Msg("opening scoped store")

	switch driver {
	case "memory":
		a.kv = storage.NewMemoryStore()
	case "redis":
		rc, err := a.redisClient()
		if err != nil {
			return err
		}
		a.kv = rc
	default:
		db, err := storage.Open(driver, a.cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := storage.Migrate(db, driver); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		store := storage.NewSQLStore(db, driver)
		store.StartJanitor(ctx, storage.DefaultJanitorInterval, ttl, a.log)
		a.kv = store
	}
	return nil
}

func (a *app) redisClient() (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	rc, err := redis.NewRedisClient(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	a.redis = rc
	a.closers = append(a.closers, rc.Close)
	return rc, nil
}

// orchestrator builds the chat orchestrator of scope.
func (a *app) orchestrator(scope, token string) *chat.Orchestrator {
	notes := notify.NewCenter(time.Duration(a.cfg.BasicConfig.NotificationTTL) * time.Second)
	return chat.New(a.client.WithToken(token), session.NewStore(a.kv, scope, a.log), notes, a.log,
		chat.WithRetryDelay(a.cfg.N8N.HistoryRetryDelayDuration()))
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	basic := a.cfg.BasicConfig

	opts := []worker.Option{worker.WithIdle(time.Duration(basic.OrchestratorIdle) * time.Minute)}
	if basic.InvalidateAcrossNodes {
		rc, err := a.redisClient()
		if err != nil {
			return err
		}
		opts = append(opts, worker.WithInvalidation(worker.NewInvalidationBus(rc, a.log)))
	}
	workers := worker.NewManager(a.orchestrator, a.log, opts...)
	go workers.Run(ctx)

	if !basic.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(a.log))
	handlers := api.NewHandler(auth.NewService(24*time.Hour), workers, a.client, a.log, api.Options{
		MaxUploadBytes: int64(basic.MaxUploadMegabytes) << 20,
		SecureCookies:  basic.SecureCookies,
	})
	handlers.RegisterRoutes(router)

	srv := &http.Server{Addr: basic.ServerAddress, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
