package models

import "time"

// ItemStatus represents valid queue item statuses
type ItemStatus string

const (
	ItemStatusQueued    ItemStatus = "queued"
	ItemStatusSending   ItemStatus = "sending"
	ItemStatusSent      ItemStatus = "sent"
	ItemStatusFailed    ItemStatus = "failed"
	ItemStatusSkipped   ItemStatus = "skipped"
	ItemStatusCancelled ItemStatus = "cancelled"
)

// IsTerminal reports whether the status is final for the item
func (s ItemStatus) IsTerminal() bool {
	switch s {
	case ItemStatusSent, ItemStatusFailed, ItemStatusSkipped, ItemStatusCancelled:
		return true
	}
	return false
}

// BroadcastState represents the life-cycle of a broadcast run as a whole
type BroadcastState string

const (
	BroadcastIdle      BroadcastState = "idle"
	BroadcastRunning   BroadcastState = "running"
	BroadcastPaused    BroadcastState = "paused"
	BroadcastCancelled BroadcastState = "cancelled"
	BroadcastCompleted BroadcastState = "completed"
)

// QueueItem represents one message to be delivered to one recipient
type QueueItem struct {
	ID             string     `json:"id"`
	RecipientID    int        `json:"recipient_id"`
	DisplayName    string     `json:"display_name"`
	RawPhone       string     `json:"raw_phone"`
	CanonicalPhone string     `json:"canonical_phone"`
	FinalMessage   string     `json:"final_message"`
	Attachment     string     `json:"attachment,omitempty"`
	MessageHash    string     `json:"message_hash"`
	Status         ItemStatus `json:"status"`
	Attempts       int        `json:"attempts"`
	LastUpdate     time.Time  `json:"last_update"`
	Error          string     `json:"error,omitempty"`

	// NotBefore gates a retried item: the dispatcher will not pick it
	// up again until this instant has passed.
	NotBefore time.Time `json:"-"`
}

// BroadcastStats is a derived aggregate over the queue item table.
// It is always recomputed from item statuses, never stored.
type BroadcastStats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
	Remaining int `json:"remaining"`
}

// ComputeStats folds the current item statuses into a BroadcastStats.
// Invariants: Processed = Sent + Failed + Skipped + Cancelled and
// Remaining = Total - Processed.
func ComputeStats(items []*QueueItem) BroadcastStats {
	stats := BroadcastStats{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case ItemStatusSent:
			stats.Sent++
		case ItemStatusFailed:
			stats.Failed++
		case ItemStatusSkipped:
			stats.Skipped++
		case ItemStatusCancelled:
			stats.Cancelled++
		}
	}
	stats.Processed = stats.Sent + stats.Failed + stats.Skipped + stats.Cancelled
	stats.Remaining = stats.Total - stats.Processed
	return stats
}

// Progress is emitted after every item transition so an external
// observer can render live progress without touching the store.
type Progress struct {
	ItemID      string     `json:"item_id"`
	DisplayName string     `json:"display_name"`
	Phone       string     `json:"phone"`
	Status      ItemStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	Processed   int        `json:"processed"`
	Total       int        `json:"total"`
}
