package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/govstack-ph/be-sglgb-assessments/internal/client"
	"github.com/govstack-ph/be-sglgb-assessments/internal/handler"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/config"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/database"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/events"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/logger"
	"github.com/govstack-ph/be-sglgb-assessments/internal/platform/middleware"
	"github.com/govstack-ph/be-sglgb-assessments/internal/repository"
	"github.com/govstack-ph/be-sglgb-assessments/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Str("database", cfg.Database.Database).Msg("connected to database")

	// NATS is optional: without it the workflow still runs, only the
	// notification events are skipped.
	var natsClient *events.Client
	if cfg.NATS.URL != "" {
		natsClient, err = events.Connect(cfg.NATS.URL, cfg.NATS.Name)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("failed to connect to NATS, events disabled")
			natsClient = nil
		} else {
			defer natsClient.Close()
			log.Info().Str("url", cfg.NATS.URL).Msg("connected to NATS")
		}
	}

	assessmentRepo := repository.NewAssessmentRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	schemaRepo := repository.NewSchemaRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	notifier := client.NewNotificationPublisher(natsClient, log.Logger)

	assessmentService := service.NewAssessmentService(
		assessmentRepo,
		evidenceRepo,
		schemaRepo,
		auditRepo,
		notifier,
		log,
	)

	httpHandler := handler.NewHTTPHandler(assessmentService, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/assessments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			httpHandler.OpenAssessment(w, r)
		case http.MethodGet:
			httpHandler.ListAssessments(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/assessments/get", httpHandler.GetAssessment)
	mux.HandleFunc("/api/v1/assessments/history", httpHandler.GetHistory)
	mux.HandleFunc("/api/v1/assessments/validate", httpHandler.ValidatorDecision)
	mux.HandleFunc("/api/v1/assessments/finalize", httpHandler.FinalDecision)
	mux.HandleFunc("/api/v1/assessments/revert-rework", httpHandler.RevertRework)
	mux.HandleFunc("/api/v1/areas/submit", httpHandler.SubmitArea)
	mux.HandleFunc("/api/v1/areas/claim", httpHandler.ClaimArea)
	mux.HandleFunc("/api/v1/areas/review", httpHandler.ReviewArea)
	mux.HandleFunc("/api/v1/indicators/completion", httpHandler.EvaluateCompletion)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"service": cfg.Service.Name,
			"version": cfg.Service.Version,
		})
	})

	chain := middleware.RequestID(
		middleware.Logger(&log.Logger)(
			middleware.Recovery(&log.Logger)(
				middleware.CORS([]string{"*"})(
					middleware.Timeout(cfg.Server.WriteTimeout)(mux),
				),
			),
		),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("HTTP server failed")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
