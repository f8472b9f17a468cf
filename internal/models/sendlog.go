package models

import "time"

// SendLogEntry is one audit record, appended when a queue item reaches
// a terminal status
type SendLogEntry struct {
	ID          int64      `json:"id" db:"id"`
	Timestamp   time.Time  `json:"timestamp" db:"timestamp"`
	RecipientID int        `json:"recipient_id" db:"recipient_id"`
	DisplayName string     `json:"display_name" db:"display_name"`
	Phone       string     `json:"phone" db:"phone"`
	Status      ItemStatus `json:"status" db:"status"`
	MessageHash string     `json:"message_hash" db:"message_hash"`
	Error       *string    `json:"error,omitempty" db:"error"`
}
