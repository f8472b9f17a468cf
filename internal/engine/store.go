package engine

import (
	"errors"
	"sync"
	"time"

	"admitcast/internal/models"
)

var (
	// ErrBroadcastActive is returned when an operation requires an idle
	// engine but a broadcast is assembled or running.
	ErrBroadcastActive = errors.New("a broadcast is already active")
	// ErrDuplicateItem is returned when an identical (recipient, message)
	// pair is already covered by a live item in the current broadcast.
	ErrDuplicateItem = errors.New("identical message already queued for recipient")
	// ErrUnknownItem is returned for transitions on an unknown item ID.
	ErrUnknownItem = errors.New("unknown queue item")
	// ErrItemNotQueued is returned for transitions that require the item
	// to still be waiting in the queue.
	ErrItemNotQueued = errors.New("item is not in queued state")
	// ErrBadTransition is returned when an item is not in the status a
	// transition requires.
	ErrBadTransition = errors.New("invalid item status transition")
)

// Store is the authoritative in-memory table of queue items for the
// current broadcast. The dispatcher is the only writer; HTTP readers
// only ever receive snapshot copies. Items are never deleted during a
// broadcast, they persist until Reset.
type Store struct {
	mu     sync.RWMutex
	state  models.BroadcastState
	items  []*models.QueueItem
	byID   map[string]*models.QueueItem
	byHash map[string]string // live dedupe hash -> item ID
	queued []string          // item IDs in dispatch order; retries re-append at the back
	now    func() time.Time
}

// NewStore creates an empty store in the Idle state
func NewStore() *Store {
	return &Store{
		state:  models.BroadcastIdle,
		byID:   make(map[string]*models.QueueItem),
		byHash: make(map[string]string),
		now:    time.Now,
	}
}

// State returns the current broadcast state
func (s *Store) State() models.BroadcastState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState transitions the broadcast as a whole
func (s *Store) SetState(state models.BroadcastState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Enqueue appends a new item in Queued state, preserving recipient-list
// order. It rejects the item if another live item in this broadcast
// carries the same dedupe hash.
func (s *Store) Enqueue(item models.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byHash[item.MessageHash]; ok {
		if existing := s.byID[existingID]; existing != nil && !existing.Status.IsTerminal() {
			return ErrDuplicateItem
		}
	}

	item.Status = models.ItemStatusQueued
	item.LastUpdate = s.now()

	stored := &item
	s.items = append(s.items, stored)
	s.byID[stored.ID] = stored
	s.byHash[stored.MessageHash] = stored.ID
	s.queued = append(s.queued, stored.ID)
	return nil
}

// PopEligible removes and returns the head of the queued items whose
// retry backoff (if any) has elapsed. The returned value is a copy.
func (s *Store) PopEligible(now time.Time) (models.QueueItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range s.queued {
		item := s.byID[id]
		if item == nil || item.Status != models.ItemStatusQueued {
			continue
		}
		if item.NotBefore.After(now) {
			continue
		}
		s.queued = append(s.queued[:i], s.queued[i+1:]...)
		return *item, true
	}
	return models.QueueItem{}, false
}

// Restore returns a popped-but-unprocessed item to the queued pool.
// Used when a run is torn down between pop and dispatch.
func (s *Store) Restore(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.byID[id]
	if item == nil || item.Status != models.ItemStatusQueued {
		return
	}
	s.queued = append(s.queued, id)
}

// NextEligibleAt returns the earliest instant at which a queued item
// becomes eligible, if any items are queued at all
func (s *Store) NextEligibleAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest time.Time
	found := false
	for _, id := range s.queued {
		item := s.byID[id]
		if item == nil || item.Status != models.ItemStatusQueued {
			continue
		}
		if !found || item.NotBefore.Before(earliest) {
			earliest = item.NotBefore
			found = true
		}
	}
	return earliest, found
}

// QueuedCount returns how many items still wait for dispatch
func (s *Store) QueuedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queued)
}

// MarkSending transitions a queued item to Sending and counts the
// transport attempt
func (s *Store) MarkSending(id string) error {
	return s.transition(id, models.ItemStatusQueued, func(item *models.QueueItem) {
		item.Status = models.ItemStatusSending
		item.Attempts++
	})
}

// MarkSent transitions a sending item to Sent
func (s *Store) MarkSent(id string) error {
	return s.transition(id, models.ItemStatusSending, func(item *models.QueueItem) {
		item.Status = models.ItemStatusSent
		item.Error = ""
	})
}

// MarkFailed transitions a sending item to terminal Failed with the
// final error recorded
func (s *Store) MarkFailed(id, errMsg string) error {
	return s.transition(id, models.ItemStatusSending, func(item *models.QueueItem) {
		item.Status = models.ItemStatusFailed
		item.Error = errMsg
	})
}

// Requeue puts a failed-but-retryable item back at the end of the
// queued set. The error is kept for diagnostics and notBefore gates the
// next attempt.
func (s *Store) Requeue(id, errMsg string, notBefore time.Time) error {
	err := s.transition(id, models.ItemStatusSending, func(item *models.QueueItem) {
		item.Status = models.ItemStatusQueued
		item.Error = errMsg
		item.NotBefore = notBefore
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.queued = append(s.queued, id)
	s.mu.Unlock()
	return nil
}

// MarkSkipped excludes a still-queued item from the run (operator
// deselection). Items already picked up cannot be skipped.
func (s *Store) MarkSkipped(id string) (models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.byID[id]
	if !ok {
		return models.QueueItem{}, ErrUnknownItem
	}
	if item.Status != models.ItemStatusQueued {
		return models.QueueItem{}, ErrItemNotQueued
	}

	item.Status = models.ItemStatusSkipped
	item.LastUpdate = s.now()
	s.removeQueuedLocked(id)
	return *item, nil
}

// CancelRemaining bulk-transitions every queued item to Cancelled and
// returns copies of the newly cancelled items
func (s *Store) CancelRemaining() []models.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := make([]models.QueueItem, 0, len(s.queued))
	for _, id := range s.queued {
		item := s.byID[id]
		if item == nil || item.Status != models.ItemStatusQueued {
			continue
		}
		item.Status = models.ItemStatusCancelled
		item.LastUpdate = s.now()
		cancelled = append(cancelled, *item)
	}
	s.queued = s.queued[:0]
	return cancelled
}

// Stats folds the current item statuses into a BroadcastStats snapshot
func (s *Store) Stats() models.BroadcastStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ComputeStats(s.items)
}

// Items returns snapshot copies of all items in enqueue order
func (s *Store) Items() []models.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.QueueItem, len(s.items))
	for i, item := range s.items {
		out[i] = *item
	}
	return out
}

// Item returns a snapshot copy of a single item
func (s *Store) Item(id string) (models.QueueItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.byID[id]
	if !ok {
		return models.QueueItem{}, false
	}
	return *item, true
}

// Reset clears all items and returns the store to Idle
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = models.BroadcastIdle
	s.items = nil
	s.byID = make(map[string]*models.QueueItem)
	s.byHash = make(map[string]string)
	s.queued = nil
}

func (s *Store) transition(id string, from models.ItemStatus, apply func(*models.QueueItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.byID[id]
	if !ok {
		return ErrUnknownItem
	}
	if item.Status != from {
		if from == models.ItemStatusQueued {
			return ErrItemNotQueued
		}
		return ErrBadTransition
	}

	apply(item)
	item.LastUpdate = s.now()
	return nil
}

func (s *Store) removeQueuedLocked(id string) {
	for i, queuedID := range s.queued {
		if queuedID == id {
			s.queued = append(s.queued[:i], s.queued[i+1:]...)
			return
		}
	}
}
