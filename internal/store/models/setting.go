package models

import "time"

// Setting stores small keyed state: user parameter overrides, model
// preferences, and the process-wide last-error field. Values are plain
// strings or JSON blobs depending on the key.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
