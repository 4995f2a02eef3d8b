package models

import "time"

// Stream record statuses.
const (
	StreamStatusStreaming = "streaming"
	StreamStatusCompleted = "completed"
	StreamStatusError     = "error"
)

// StreamRecord is the persisted state of one streaming turn. It outlives
// the turn so a popup that reopens after the worker was suspended can
// recover the last response.
type StreamRecord struct {
	StreamID  string    `gorm:"primaryKey" json:"streamId"`
	Status    string    `gorm:"index" json:"status"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Content   string    `gorm:"type:text" json:"content"`
	Error     string    `json:"error,omitempty"`
	Timestamp int64     `gorm:"index" json:"timestamp"`
	UpdatedAt time.Time `json:"-"`
}
