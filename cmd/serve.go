package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Vovarama1992/whatsapp-family-router/internal/ai"
	"github.com/Vovarama1992/whatsapp-family-router/internal/config"
	"github.com/Vovarama1992/whatsapp-family-router/internal/logutil"
	"github.com/Vovarama1992/whatsapp-family-router/internal/whatsapp"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logutil.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// --- Directory ---
	dir, err := cfg.Directory()
	if err != nil {
		return err
	}
	reg := cfg.Registry()
	if missing := reg.Missing(dir); len(missing) > 0 {
		logger.Warn("agents without assistant binding", "agents", missing)
	}

	// --- Events ---
	var events whatsapp.EventSink = whatsapp.NewLogSink(logger)
	if cfg.DatabaseURL != "" {
		db, err := openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		events = whatsapp.NewPostgresSink(db)
		logger.Info("routing events stored in postgres")
	}

	// --- WhatsApp module wiring ---
	orchestrator := ai.NewOrchestrator(ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), ai.Options{
		PollInterval:  cfg.PollInterval,
		RunTimeout:    cfg.RunTimeout,
		DeleteThreads: cfg.DeleteThreads,
		Logger:        logger,
	})
	outbound := whatsapp.NewTwilioOutbound(whatsapp.TwilioConfig{
		BaseURL:    cfg.TwilioBaseURL,
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioFromNumber,
	}, logger)
	svc := whatsapp.NewService(dir, reg, orchestrator, whatsapp.NewRelay(outbound), events, logger)
	handler := whatsapp.NewHandler(svc, dir, cfg.BotNumber, logger)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Twilio-Signature"},
	}))
	whatsapp.RegisterRoutes(r, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("WhatsApp Family Router listening",
			"port", cfg.Port,
			"bot_number", cfg.BotNumber,
			"agents", dir.Len(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	// in-flight webhooks may be waiting on an assistant run
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout+15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := whatsapp.NewPostgresSink(db).EnsureSchema(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db schema error: %w", err)
	}
	return db, nil
}
