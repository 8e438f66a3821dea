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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // алиас, чтобы не конфликтовать с internal/middleware
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"task-planner/internal/ai"
	"task-planner/internal/app"
	"task-planner/internal/config"
	"task-planner/internal/middleware"
	"task-planner/internal/session"
	"task-planner/internal/tasks"
)

// Здесь только:
// - разбор команд и флагов;
// - создание зависимостей;
// - запуск HTTP-сервера или разовой команды.
func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "task-server",
		Short:         "Task planner with deadline alerts and AI daily plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (yaml, json, toml or env)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), cfgPath)
			},
		},
		listCmd(&cfgPath),
		alertsCmd(&cfgPath),
		planCmd(&cfgPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func listCmd(cfgPath *string) *cobra.Command {
	var store string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print tasks ordered by priority and deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, closeFn, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer closeFn()
			list, err := a.ListRanked(cmd.Context(), store)
			if err != nil {
				return err
			}
			for _, t := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%s - %s - Due %s  [%s]\n", t.Title, t.Priority, t.Deadline, t.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&store, "store", "s", tasks.DefaultStore, "Task store name")
	return cmd
}

func alertsCmd(cfgPath *string) *cobra.Command {
	var (
		store  string
		window int
	)
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Print tasks due within the alert window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, closeFn, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer closeFn()
			alerts, err := a.ListAlerts(cmd.Context(), store, window)
			if err != nil {
				return err
			}
			for _, al := range alerts {
				fmt.Fprintln(cmd.OutOrStdout(), al.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&store, "store", "s", tasks.DefaultStore, "Task store name")
	cmd.Flags().IntVarP(&window, "window", "w", -1, "Alert window in days (default from config)")
	return cmd
}

func planCmd(cfgPath *string) *cobra.Command {
	var store string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Ask the AI for a daily plan based on current tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, closeFn, err := build(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer closeFn()
			plan, err := a.RequestPlan(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	cmd.Flags().StringVarP(&store, "store", "s", tasks.DefaultStore, "Task store name")
	return cmd
}

func serve(ctx context.Context, cfgPath string) error {
	a, cfg, closeFn, err := build(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer closeFn()
	logger := log.StandardLogger()

	handler := app.NewHandler(a, logger, cfg.RequestTimeout)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           chiWithMiddleware(handler.Router(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server start error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// build собирает App из конфигурации. Отсутствие ключа AI не ошибка:
// AI-функции просто выключаются. closeFn освобождает внешние соединения (Redis).
func build(ctx context.Context, cfgPath string) (a *app.App, cfg config.Config, closeFn func(), err error) {
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	logger := log.StandardLogger()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	stores, err := tasks.NewRegistry(ctx, cfg.StoreFiles(), logger)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	key, keyErr := config.ReadAPIKey(cfg.KeyFile)
	client := ai.New(ai.Options{
		APIKey:        key,
		Model:         cfg.AIModel,
		BaseURL:       cfg.AIBaseURL,
		Timeout:       cfg.AITimeout,
		CredentialErr: keyErr,
	}, logger)

	sessions, closeFn, err := sessionStore(cfg, logger)
	if err != nil {
		return nil, config.Config{}, nil, err
	}

	return app.New(stores, client, sessions, logger, app.WithAlertWindow(cfg.AlertWindowDays)), cfg, closeFn, nil
}

// sessionStore выбирает хранилище чат-сессий: Redis, если задан redis_url, иначе память.
func sessionStore(cfg config.Config, logger *log.Logger) (session.Store, func(), error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryStore(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Warn("close redis client")
		}
	}
	return session.NewRedisStore(client, cfg.SessionTTL), closeFn, nil
}

// chiWithMiddleware навешивает базовые middleware на уже собранный роутер.
func chiWithMiddleware(h http.Handler, logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.LoggingMiddleware(logger))

	r.Mount("/", h)
	return r
}
