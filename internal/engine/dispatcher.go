package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"admitcast/internal/models"
	"admitcast/internal/service"
	"admitcast/internal/transport"
)

// ErrInvalidState is returned when a control operation is not allowed
// in the current broadcast state.
var ErrInvalidState = errors.New("operation not allowed in current broadcast state")

const (
	// pausePoll bounds how often the loop re-checks state while paused
	// or while every queued item sits inside its retry backoff window.
	pausePoll = 200 * time.Millisecond

	// defaultSendTimeout bounds a single transport call. A timed-out
	// call flows into the ordinary retry path.
	defaultSendTimeout = 30 * time.Second
)

// Journal receives terminal item transitions for audit/history. Append
// failures are logged, never escalated into the run.
type Journal interface {
	Append(ctx context.Context, entry models.SendLogEntry) error
}

// ProgressFunc is called after every item transition so an external
// observer can render live progress
type ProgressFunc func(models.Progress)

// Recipient is one candidate entry for a broadcast assembly
type Recipient struct {
	ID         int
	Name       string
	Phone      string
	Tokens     map[string]string
	Attachment string
}

// ExclusionWarning explains why a candidate recipient was not enqueued
type ExclusionWarning struct {
	RecipientID int    `json:"recipient_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Reason      string `json:"reason"`
}

// Dispatcher drives the broadcast: it assembles queue items from
// candidate recipients, then processes them one at a time with pacing
// and retry. Exactly one broadcast is active per dispatcher.
type Dispatcher struct {
	store     *Store
	transport transport.Transport
	templates *service.TemplateService
	dedupe    *service.DedupeService
	limiter   *rate.Limiter
	log       zerolog.Logger

	mu     sync.Mutex // guards the settings-derived fields below
	phones *service.PhoneService
	pacer  *Pacer
	retry  RetryPolicy

	journal     Journal
	onProgress  ProgressFunc
	sendTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time

	running atomic.Bool
}

// NewDispatcher creates a dispatcher over the given store and transport
func NewDispatcher(store *Store, tr transport.Transport, settings models.Settings, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		transport: tr,
		templates: service.NewTemplateService(),
		dedupe:    service.NewDedupeService(),
		// Hard floor on the send rate, independent of the pacer
		// arithmetic: no two transport calls start less than
		// MinSendDelay apart.
		limiter:     rate.NewLimiter(rate.Every(MinSendDelay), 1),
		log:         log.With().Str("component", "dispatcher").Logger(),
		sendTimeout: defaultSendTimeout,
		sleep:       sleepCtx,
		now:         time.Now,
	}
	d.ApplySettings(settings)
	return d
}

// SetJournal wires an audit journal for terminal transitions
func (d *Dispatcher) SetJournal(journal Journal) {
	d.journal = journal
}

// SetProgressFunc wires a live progress observer
func (d *Dispatcher) SetProgressFunc(fn ProgressFunc) {
	d.onProgress = fn
}

// ApplySettings rebuilds the settings-derived collaborators. Takes
// effect from the next loop iteration.
func (d *Dispatcher) ApplySettings(settings models.Settings) {
	settings.Clamp()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.phones = service.NewPhoneService(settings.DefaultCountryCode)
	d.pacer = NewPacer(settings.SendInterval(), settings.EnableJitter)
	d.retry = RetryPolicy{
		MaxAttempts: settings.RetryAttempts,
		BaseBackoff: settings.RetryBackoff(),
	}
}

// Assemble normalizes, personalizes and enqueues one queue item per
// valid candidate recipient, in list order. Candidates with an invalid
// phone or a duplicate (recipient, message) hash are excluded with a
// warning, not enqueued and not counted.
func (d *Dispatcher) Assemble(recipients []Recipient, template string) (int, []ExclusionWarning, error) {
	if d.running.Load() {
		return 0, nil, ErrBroadcastActive
	}
	if state := d.store.State(); state != models.BroadcastIdle {
		return 0, nil, fmt.Errorf("cannot assemble in state %q: %w", state, ErrInvalidState)
	}
	if err := d.templates.ValidateTemplate(template); err != nil {
		return 0, nil, &service.ValidationError{Message: err.Error()}
	}

	d.mu.Lock()
	phones := d.phones
	d.mu.Unlock()

	queued := 0
	var warnings []ExclusionWarning
	for _, r := range recipients {
		canonical := phones.Normalize(r.Phone)
		if canonical == "" {
			// Silent-skip policy: an unreachable contact was never
			// actionable, so it is excluded rather than failed.
			warnings = append(warnings, ExclusionWarning{
				RecipientID: r.ID, Name: r.Name, Phone: r.Phone,
				Reason: "invalid phone number",
			})
			continue
		}

		rendered, err := d.templates.Render(template, r.Tokens)
		if err != nil {
			return queued, warnings, &service.ValidationError{Message: err.Error()}
		}

		item := models.QueueItem{
			ID:             uuid.NewString(),
			RecipientID:    r.ID,
			DisplayName:    r.Name,
			RawPhone:       r.Phone,
			CanonicalPhone: canonical,
			FinalMessage:   rendered,
			Attachment:     r.Attachment,
			MessageHash:    d.dedupe.Hash(r.ID, rendered),
		}

		if err := d.store.Enqueue(item); err != nil {
			if errors.Is(err, ErrDuplicateItem) {
				warnings = append(warnings, ExclusionWarning{
					RecipientID: r.ID, Name: r.Name, Phone: r.Phone,
					Reason: "duplicate of an already queued message",
				})
				continue
			}
			return queued, warnings, err
		}
		queued++
	}

	d.log.Info().Int("queued", queued).Int("excluded", len(warnings)).Msg("broadcast assembled")
	return queued, warnings, nil
}

// Start launches Run on its own goroutine after verifying the fatal
// precondition synchronously, so callers get the readiness error
// immediately. The readiness probe uses the caller's context; the run
// itself is detached from it, because the caller is typically an HTTP
// request whose context dies as soon as the response is written.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.running.Load() {
		return ErrBroadcastActive
	}
	if err := d.transport.Ready(ctx); err != nil {
		return fmt.Errorf("transport not ready: %w", err)
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		if err := d.Run(runCtx); err != nil {
			d.log.Error().Err(err).Msg("broadcast run ended with error")
		}
	}()
	return nil
}

// Run executes the dispatch loop until the broadcast completes, is
// cancelled, or the context is torn down. Only one item is ever in
// flight: the transport is a single shared channel and concurrent sends
// would defeat pacing.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrBroadcastActive
	}
	defer d.running.Store(false)

	if state := d.store.State(); state != models.BroadcastIdle {
		return fmt.Errorf("cannot start broadcast in state %q: %w", state, ErrInvalidState)
	}

	// Fatal precondition: an unavailable transport aborts the run before
	// any item is marked Sending and leaves everything Queued for a
	// later attempt.
	if err := d.transport.Ready(ctx); err != nil {
		return fmt.Errorf("transport not ready: %w", err)
	}

	d.store.SetState(models.BroadcastRunning)
	d.log.Info().Int("queued", d.store.QueuedCount()).Msg("broadcast started")

	for {
		// Cancellation and pause are cooperative, observed at iteration
		// boundaries and never mid-send.
		switch d.store.State() {
		case models.BroadcastCancelled:
			d.finishCancelled(ctx)
			return nil
		case models.BroadcastPaused:
			if err := d.sleep(ctx, pausePoll); err != nil {
				return err
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return d.suspend(err)
		}

		if d.store.QueuedCount() == 0 {
			d.store.SetState(models.BroadcastCompleted)
			stats := d.store.Stats()
			d.log.Info().
				Int("sent", stats.Sent).
				Int("failed", stats.Failed).
				Int("skipped", stats.Skipped).
				Msg("broadcast completed")
			return nil
		}

		item, ok := d.store.PopEligible(d.now())
		if !ok {
			// Everything still queued sits inside its retry backoff
			// window; wait for the earliest one to become eligible.
			wait := pausePoll
			if at, found := d.store.NextEligibleAt(); found {
				if until := at.Sub(d.now()); until > 0 && until < wait {
					wait = until
				}
			}
			if err := d.sleep(ctx, wait); err != nil {
				return d.suspend(err)
			}
			continue
		}

		d.dispatchOne(ctx, item)

		// Pacing applies to successes and failures alike so a string of
		// failures cannot bypass throttling protection.
		if err := d.sleep(ctx, d.nextDelay()); err != nil {
			return d.suspend(err)
		}

		if d.store.State() == models.BroadcastCancelled {
			d.finishCancelled(ctx)
			return nil
		}
	}
}

// dispatchOne performs a single transport attempt for one item and
// applies the retry policy to the outcome
func (d *Dispatcher) dispatchOne(ctx context.Context, item models.QueueItem) {
	if err := d.limiter.Wait(ctx); err != nil {
		// Shutdown while waiting for the rate floor: the item was never
		// touched, put it back as-is.
		d.store.Restore(item.ID)
		return
	}

	if err := d.store.MarkSending(item.ID); err != nil {
		d.log.Error().Err(err).Str("item", item.ID).Msg("failed to mark item sending")
		return
	}
	attempts := item.Attempts + 1

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	err := d.transport.Send(sendCtx, item.CanonicalPhone, item.FinalMessage, item.Attachment)
	cancel()

	if err == nil {
		if markErr := d.store.MarkSent(item.ID); markErr != nil {
			d.log.Error().Err(markErr).Str("item", item.ID).Msg("failed to mark item sent")
		}
		d.log.Debug().Str("phone", item.CanonicalPhone).Int("attempts", attempts).Msg("message sent")
		d.emit(item, models.ItemStatusSent, "")
		d.journalEntry(ctx, item, models.ItemStatusSent, "")
		return
	}

	retry := d.retryPolicy()
	if retry.ShouldRetry(attempts) {
		notBefore := d.now().Add(retry.BackoffDelay(attempts))
		if markErr := d.store.Requeue(item.ID, err.Error(), notBefore); markErr != nil {
			d.log.Error().Err(markErr).Str("item", item.ID).Msg("failed to requeue item")
			return
		}
		d.log.Warn().Err(err).
			Str("phone", item.CanonicalPhone).
			Int("attempts", attempts).
			Int("budget", retry.MaxAttempts).
			Msg("send failed, item requeued")
		d.emit(item, models.ItemStatusQueued, err.Error())
		return
	}

	if markErr := d.store.MarkFailed(item.ID, err.Error()); markErr != nil {
		d.log.Error().Err(markErr).Str("item", item.ID).Msg("failed to mark item failed")
		return
	}
	d.log.Warn().Err(err).
		Str("phone", item.CanonicalPhone).
		Int("attempts", attempts).
		Msg("retry budget exhausted, item failed")
	d.emit(item, models.ItemStatusFailed, err.Error())
	d.journalEntry(ctx, item, models.ItemStatusFailed, err.Error())
}

// Pause suspends the loop before the next item selection. An in-flight
// send is never interrupted.
func (d *Dispatcher) Pause() error {
	if d.store.State() != models.BroadcastRunning {
		return fmt.Errorf("cannot pause in state %q: %w", d.store.State(), ErrInvalidState)
	}
	d.store.SetState(models.BroadcastPaused)
	d.log.Info().Msg("broadcast paused")
	return nil
}

// Resume continues a paused broadcast
func (d *Dispatcher) Resume() error {
	if d.store.State() != models.BroadcastPaused {
		return fmt.Errorf("cannot resume in state %q: %w", d.store.State(), ErrInvalidState)
	}
	d.store.SetState(models.BroadcastRunning)
	d.log.Info().Msg("broadcast resumed")
	return nil
}

// Cancel stops the broadcast: the loop observes the state at the next
// iteration boundary and bulk-cancels everything still queued. A
// cancelled broadcast cannot resume; a new one must be assembled.
func (d *Dispatcher) Cancel() error {
	switch d.store.State() {
	case models.BroadcastRunning, models.BroadcastPaused:
		d.store.SetState(models.BroadcastCancelled)
		d.log.Info().Msg("broadcast cancel requested")
		return nil
	case models.BroadcastIdle:
		if d.store.QueuedCount() > 0 && !d.running.Load() {
			// Assembled but never started: cancel directly.
			d.store.SetState(models.BroadcastCancelled)
			d.finishCancelled(context.Background())
			return nil
		}
	}
	return fmt.Errorf("cannot cancel in state %q: %w", d.store.State(), ErrInvalidState)
}

// Skip excludes a still-queued item from the run (operator
// deselection). Items already picked up cannot be skipped.
func (d *Dispatcher) Skip(itemID string) error {
	item, err := d.store.MarkSkipped(itemID)
	if err != nil {
		return err
	}
	d.log.Info().Str("item", itemID).Str("phone", item.CanonicalPhone).Msg("item skipped")
	d.emit(item, models.ItemStatusSkipped, "")
	d.journalEntry(context.Background(), item, models.ItemStatusSkipped, "")
	return nil
}

// Reset clears the finished broadcast and returns the engine to Idle
func (d *Dispatcher) Reset() error {
	if d.running.Load() {
		return ErrBroadcastActive
	}
	d.store.Reset()
	d.log.Info().Msg("broadcast reset")
	return nil
}

// State returns the current broadcast state
func (d *Dispatcher) State() models.BroadcastState {
	return d.store.State()
}

// Stats returns a snapshot of the aggregate statistics
func (d *Dispatcher) Stats() models.BroadcastStats {
	return d.store.Stats()
}

// Items returns snapshot copies of all queue items in enqueue order
func (d *Dispatcher) Items() []models.QueueItem {
	return d.store.Items()
}

// finishCancelled bulk-cancels the remaining queued items and records
// the transitions
func (d *Dispatcher) finishCancelled(ctx context.Context) {
	cancelled := d.store.CancelRemaining()
	for _, item := range cancelled {
		d.emit(item, models.ItemStatusCancelled, "")
		d.journalEntry(ctx, item, models.ItemStatusCancelled, "")
	}
	d.log.Info().Int("cancelled", len(cancelled)).Msg("broadcast cancelled")
}

// suspend marks a run torn down by context cancellation as Paused so
// the remaining items stay queued
func (d *Dispatcher) suspend(err error) error {
	if d.store.State() == models.BroadcastRunning {
		d.store.SetState(models.BroadcastPaused)
	}
	return err
}

func (d *Dispatcher) retryPolicy() RetryPolicy {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retry
}

func (d *Dispatcher) nextDelay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pacer.NextDelay()
}

func (d *Dispatcher) emit(item models.QueueItem, status models.ItemStatus, errMsg string) {
	if d.onProgress == nil {
		return
	}
	stats := d.store.Stats()
	d.onProgress(models.Progress{
		ItemID:      item.ID,
		DisplayName: item.DisplayName,
		Phone:       item.CanonicalPhone,
		Status:      status,
		Error:       errMsg,
		Processed:   stats.Processed,
		Total:       stats.Total,
	})
}

func (d *Dispatcher) journalEntry(ctx context.Context, item models.QueueItem, status models.ItemStatus, errMsg string) {
	if d.journal == nil {
		return
	}

	entry := models.SendLogEntry{
		Timestamp:   d.now(),
		RecipientID: item.RecipientID,
		DisplayName: item.DisplayName,
		Phone:       item.CanonicalPhone,
		Status:      status,
		MessageHash: item.MessageHash,
	}
	if errMsg != "" {
		entry.Error = &errMsg
	}

	if err := d.journal.Append(ctx, entry); err != nil {
		d.log.Error().Err(err).Msg("failed to append send log entry")
	}
}

// sleepCtx waits for the given duration or until the context is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
