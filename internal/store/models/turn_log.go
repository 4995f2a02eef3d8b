package models

// TurnStatusCancelled marks a user-cancelled turn in the monitoring log.
// The stream record itself persists as completed-with-partial-content;
// only the log keeps the distinction.
const TurnStatusCancelled = "cancelled"

// TurnLog stores per-turn monitoring records.
type TurnLog struct {
	ID         string `gorm:"primaryKey" json:"id"`
	Timestamp  int64  `gorm:"index" json:"timestamp"`
	StreamID   string `gorm:"index" json:"stream_id"`
	Provider   string `gorm:"index" json:"provider"`
	Model      string `gorm:"index" json:"model"`
	Source     string `json:"source,omitempty"`
	Status     string `json:"status"`
	Duration   int64  `json:"duration"` // milliseconds
	ChunkCount int    `json:"chunk_count"`
	Chars      int    `json:"chars"`
	Error      string `json:"error,omitempty"`
	Prompt     string `gorm:"type:text" json:"prompt,omitempty"`
}

// TurnStats holds aggregated statistics for turn logs.
type TurnStats struct {
	TotalTurns     int64 `json:"total_turns"`
	CompletedCount int64 `json:"completed_count"`
	ErrorCount     int64 `json:"error_count"`
	CancelledCount int64 `json:"cancelled_count"`
}
