// Package monitor keeps a per-turn request log: which provider and model
// served each turn, how long it ran, how many chunks it produced, and how
// it ended. The extension's debug panel reads it over the monitor
// endpoints.
package monitor

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pagelens/relay/internal/store/models"
	"github.com/pagelens/relay/internal/util"
)

const (
	// MaxPromptSize caps the stored prompt per turn log.
	MaxPromptSize = 64 * 1024
	// DefaultMemoryLogs caps the in-memory cache when the config gives
	// no limit.
	DefaultMemoryLogs = 200
)

// Monitor manages turn logging and statistics.
type Monitor struct {
	db      *gorm.DB
	enabled atomic.Bool
	limit   int

	// In-memory cache for recent logs, newest first.
	recentLogs []models.TurnLog
	logsMu     sync.RWMutex

	totalTurns     atomic.Int64
	completedCount atomic.Int64
	errorCount     atomic.Int64
	cancelledCount atomic.Int64
}

// New creates a Monitor. The turn_logs table is migrated by store.Open;
// initial stats come from whatever is already persisted.
func New(db *gorm.DB, limit int, enabled bool) *Monitor {
	if limit <= 0 {
		limit = DefaultMemoryLogs
	}
	m := &Monitor{
		db:         db,
		limit:      limit,
		recentLogs: make([]models.TurnLog, 0, limit),
	}
	m.loadStatsFromDB()
	m.enabled.Store(enabled)
	return m
}

// SetEnabled enables or disables turn logging.
func (m *Monitor) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
	log.Printf("[Monitor] Logging %s", map[bool]string{true: "enabled", false: "disabled"}[enabled])
}

// IsEnabled returns whether turn logging is enabled.
func (m *Monitor) IsEnabled() bool {
	return m.enabled.Load()
}

// Record logs one finished turn (async, non-blocking).
func (m *Monitor) Record(entry models.TurnLog) {
	if !m.IsEnabled() {
		return
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}
	entry.Prompt = util.TruncateLog(entry.Prompt, MaxPromptSize)

	m.totalTurns.Add(1)
	switch entry.Status {
	case models.StreamStatusCompleted:
		m.completedCount.Add(1)
	case models.StreamStatusError:
		m.errorCount.Add(1)
	case models.TurnStatusCancelled:
		m.cancelledCount.Add(1)
	}

	m.logsMu.Lock()
	m.recentLogs = append([]models.TurnLog{entry}, m.recentLogs...)
	if len(m.recentLogs) > m.limit {
		m.recentLogs = m.recentLogs[:m.limit]
	}
	m.logsMu.Unlock()

	// Async save so a slow disk never stalls a turn's terminal path.
	go func(entry models.TurnLog) {
		if err := m.db.Create(&entry).Error; err != nil {
			log.Printf("[Monitor] Failed to save turn log: %v", err)
		}
	}(entry)
}

// Recent returns recent turn logs, newest first, with an optional time
// filter in minutes.
func (m *Monitor) Recent(limit int, sinceMinutes int) []models.TurnLog {
	if limit <= 0 {
		limit = m.limit
	}

	var logs []models.TurnLog
	query := m.db.Order("timestamp DESC").Limit(limit)
	if sinceMinutes > 0 {
		sinceTime := time.Now().Add(-time.Duration(sinceMinutes) * time.Minute).UnixMilli()
		query = query.Where("timestamp >= ?", sinceTime)
	}

	if err := query.Find(&logs).Error; err != nil {
		log.Printf("[Monitor] Failed to get turn logs from DB: %v", err)
		// Fallback to memory.
		m.logsMu.RLock()
		defer m.logsMu.RUnlock()
		if limit > len(m.recentLogs) {
			limit = len(m.recentLogs)
		}
		return append([]models.TurnLog(nil), m.recentLogs[:limit]...)
	}
	return logs
}

// Stats returns aggregated turn statistics.
func (m *Monitor) Stats() models.TurnStats {
	return models.TurnStats{
		TotalTurns:     m.totalTurns.Load(),
		CompletedCount: m.completedCount.Load(),
		ErrorCount:     m.errorCount.Load(),
		CancelledCount: m.cancelledCount.Load(),
	}
}

// Clear removes all turn logs from memory and database.
func (m *Monitor) Clear() error {
	m.logsMu.Lock()
	m.recentLogs = m.recentLogs[:0]
	m.logsMu.Unlock()

	m.totalTurns.Store(0)
	m.completedCount.Store(0)
	m.errorCount.Store(0)
	m.cancelledCount.Store(0)

	if err := m.db.Exec("DELETE FROM turn_logs").Error; err != nil {
		log.Printf("[Monitor] Failed to clear turn logs: %v", err)
		return err
	}

	log.Printf("[Monitor] All turn logs cleared")
	return nil
}

func (m *Monitor) loadStatsFromDB() {
	var total, completed, errs, cancelled int64

	m.db.Model(&models.TurnLog{}).Count(&total)
	m.db.Model(&models.TurnLog{}).Where("status = ?", models.StreamStatusCompleted).Count(&completed)
	m.db.Model(&models.TurnLog{}).Where("status = ?", models.StreamStatusError).Count(&errs)
	m.db.Model(&models.TurnLog{}).Where("status = ?", models.TurnStatusCancelled).Count(&cancelled)

	m.totalTurns.Store(total)
	m.completedCount.Store(completed)
	m.errorCount.Store(errs)
	m.cancelledCount.Store(cancelled)

	if total > 0 {
		log.Printf("[Monitor] Loaded stats: total=%d, completed=%d, errors=%d, cancelled=%d",
			total, completed, errs, cancelled)
	}
}
