package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"admitcast/internal/config"
	"admitcast/internal/engine"
	"admitcast/internal/models"
	"admitcast/internal/queue"
	"admitcast/internal/repository"
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

	tr := buildTransport(cfg)

	studentRepo := repository.NewStudentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	sendLogRepo := repository.NewSendLogRepository(db)

	settings, err := settingsRepo.Load(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load settings")
	}

	store := engine.NewStore()
	dispatcher := engine.NewDispatcher(store, tr, *settings, log.Logger)
	dispatcher.SetJournal(sendLogRepo)
	dispatcher.SetProgressFunc(func(p models.Progress) {
		log.Info().
			Str("name", p.DisplayName).
			Str("status", string(p.Status)).
			Int("processed", p.Processed).
			Int("total", p.Total).
			Msg("broadcast progress")
	})

	conn, err := queue.NewConnection(cfg.GetRabbitMQURL(), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer conn.Close()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	runner := &broadcastRunner{
		ctx:         runCtx,
		dispatcher:  dispatcher,
		studentRepo: studentRepo,
	}

	consumer, err := queue.NewConsumer(conn, queue.BroadcastQueue, runner.handle, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer")
	}
	if err := consumer.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}
	log.Info().Str("queue", queue.BroadcastQueue).Msg("worker started")

	// The send log is capped: drop the oldest entries beyond the
	// retention count every hour.
	pruner := cron.New()
	_, err = pruner.AddFunc("@hourly", func() {
		deleted, err := sendLogRepo.Prune(context.Background(), cfg.SendLog.Retention)
		if err != nil {
			log.Error().Err(err).Msg("failed to prune send log")
			return
		}
		if deleted > 0 {
			log.Info().Int64("deleted", deleted).Msg("pruned send log")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule send log pruning")
	}
	pruner.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully")

	// Cancel the in-flight run first so the consumer can nack its job
	// and drain quickly; the job is redelivered on the next start.
	cancelRun()
	if err := consumer.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping consumer")
	}
	<-pruner.Stop().Done()

	log.Info().Msg("worker stopped")
}

// broadcastRunner executes one queued broadcast job at a time through
// the in-process engine
type broadcastRunner struct {
	ctx         context.Context
	dispatcher  *engine.Dispatcher
	studentRepo repository.StudentRepository
}

// handle processes one broadcast job. Infrastructure failures return an
// error (nack-requeue); malformed jobs are logged and acked so they do
// not poison the queue.
func (r *broadcastRunner) handle(job *queue.BroadcastJob) error {
	logger := log.With().Str("broadcast", job.BroadcastID).Logger()
	logger.Info().Int("students", len(job.StudentIDs)).Msg("processing broadcast job")

	students, err := r.studentRepo.GetByIDs(r.ctx, job.StudentIDs)
	if err != nil {
		return fmt.Errorf("failed to load students: %w", err)
	}
	if len(students) == 0 {
		logger.Warn().Msg("no matching students, dropping job")
		return nil
	}

	// The engine runs one broadcast at a time; clear any finished one.
	if r.dispatcher.State() != models.BroadcastIdle {
		if err := r.dispatcher.Reset(); err != nil {
			return fmt.Errorf("engine busy: %w", err)
		}
	}

	queued, warnings, err := r.dispatcher.Assemble(toRecipients(students, job.StudentIDs, job.AttachReceipts), job.Template)
	if err != nil {
		logger.Error().Err(err).Msg("invalid broadcast job, dropping")
		return nil
	}
	for _, warning := range warnings {
		logger.Warn().
			Int("recipient", warning.RecipientID).
			Str("reason", warning.Reason).
			Msg("recipient excluded")
	}
	if queued == 0 {
		logger.Warn().Msg("nothing to send after exclusions")
		return nil
	}

	if err := r.dispatcher.Run(r.ctx); err != nil {
		// Transport not ready or shutdown mid-run: leave the job in the
		// queue for a later attempt.
		return fmt.Errorf("broadcast run aborted: %w", err)
	}

	stats := r.dispatcher.Stats()
	logger.Info().
		Int("sent", stats.Sent).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Int("cancelled", stats.Cancelled).
		Msg("broadcast finished")

	return r.dispatcher.Reset()
}

// toRecipients converts student records into broadcast candidates, in
// the order the job listed them: the repository sorts by id, but
// enqueue order follows the job's student list.
func toRecipients(students []*models.Student, order []int, attachReceipts bool) []engine.Recipient {
	byID := make(map[int]*models.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	recipients := make([]engine.Recipient, 0, len(students))
	for _, id := range order {
		s, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)

		r := engine.Recipient{
			ID:     s.ID,
			Name:   s.Name,
			Phone:  s.Phone,
			Tokens: s.Tokens(),
		}
		if attachReceipts && s.ReceiptPath != nil {
			r.Attachment = *s.ReceiptPath
		}
		recipients = append(recipients, r)
	}
	return recipients
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
