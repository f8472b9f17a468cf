package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"admitcast/internal/config"
	"admitcast/internal/engine"
	"admitcast/internal/handler"
	"admitcast/internal/middleware"
	"admitcast/internal/models"
	"admitcast/internal/queue"
	"admitcast/internal/repository"
	"admitcast/internal/service"
	"admitcast/internal/transport"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Msg("connected to database")

	// RabbitMQ is optional for the API: without it only the async
	// dispatch endpoint is unavailable.
	var queueConn *queue.Connection
	var publisher *queue.Publisher
	if conn, err := queue.NewConnection(cfg.GetRabbitMQURL(), log.Logger); err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, async dispatch disabled")
	} else {
		queueConn = conn
		defer queueConn.Close()
		publisher, err = queue.NewPublisher(queueConn, queue.BroadcastQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create publisher")
		}
	}

	tr := buildTransport(cfg)

	settingsRepo := repository.NewSettingsRepository(db)
	settings, err := settingsRepo.Load(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load settings")
	}

	store := engine.NewStore()
	dispatcher := engine.NewDispatcher(store, tr, *settings, log.Logger)

	sendLogRepo := repository.NewSendLogRepository(db)
	dispatcher.SetJournal(sendLogRepo)

	studentRepo := repository.NewStudentRepository(db)
	templateSvc := service.NewTemplateService()

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)

	healthH := handler.NewHealthHandler(db, queueConn, tr)
	router.HandleFunc("/health", healthH.Check).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	studentH := handler.NewStudentHandler(studentRepo)
	api.HandleFunc("/students", studentH.List).Methods("GET")
	api.HandleFunc("/students", studentH.Create).Methods("POST")
	api.HandleFunc("/students/{id}", studentH.GetByID).Methods("GET")

	settingsH := handler.NewSettingsHandler(settingsRepo, dispatcher)
	api.HandleFunc("/settings", settingsH.Get).Methods("GET")
	api.HandleFunc("/settings", settingsH.Update).Methods("PUT")

	broadcastH := handler.NewBroadcastHandler(dispatcher, studentRepo, templateSvc, publisher)
	api.HandleFunc("/broadcasts", broadcastH.Assemble).Methods("POST")
	api.HandleFunc("/broadcasts/preview", broadcastH.Preview).Methods("POST")
	api.HandleFunc("/broadcasts/dispatch", broadcastH.Dispatch).Methods("POST")
	api.HandleFunc("/broadcasts/start", broadcastH.Start).Methods("POST")
	api.HandleFunc("/broadcasts/pause", broadcastH.Pause).Methods("POST")
	api.HandleFunc("/broadcasts/resume", broadcastH.Resume).Methods("POST")
	api.HandleFunc("/broadcasts/cancel", broadcastH.Cancel).Methods("POST")
	api.HandleFunc("/broadcasts/reset", broadcastH.Reset).Methods("POST")
	api.HandleFunc("/broadcasts/current", broadcastH.Current).Methods("GET")
	api.HandleFunc("/broadcasts/items/{id}/skip", broadcastH.Skip).Methods("POST")

	sendLogH := handler.NewSendLogHandler(sendLogRepo)
	api.HandleFunc("/send-log", sendLogH.List).Methods("GET")

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Env).Msg("api server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")

	// An in-flight broadcast is suspended, not torn down: the store
	// keeps queued items so a restart can reassemble and resume.
	if dispatcher.State() == models.BroadcastRunning {
		_ = dispatcher.Pause()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("api server stopped")
}

// setupLogger configures zerolog: console output in development, JSON
// otherwise
func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// buildTransport selects the configured transport implementation
func buildTransport(cfg *config.Config) transport.Transport {
	if cfg.Transport.Kind == "simulated" {
		log.Info().Float64("success_rate", cfg.Transport.SimulatedSuccessRate).Msg("using simulated transport")
		return transport.NewSimulated(cfg.Transport.SimulatedSuccessRate)
	}
	return transport.NewDeepLink(log.Logger)
}
