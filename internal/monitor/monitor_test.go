package monitor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pagelens/relay/internal/store"
	"github.com/pagelens/relay/internal/store/models"
)

func newTestMonitor(t *testing.T, enabled bool) *Monitor {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "monitor.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return New(s.DB(), 10, enabled)
}

// waitForLogs polls until the async writer has landed n rows.
func waitForLogs(t *testing.T, m *Monitor, n int) []models.TurnLog {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		logs := m.Recent(0, 0)
		if len(logs) >= n {
			return logs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("turn logs never reached %d entries", n)
	return nil
}

func TestMonitorRecordAndStats(t *testing.T) {
	m := newTestMonitor(t, true)

	m.Record(models.TurnLog{
		StreamID: "stream_1_abc",
		Provider: "openai",
		Model:    "gpt-4o",
		Status:   models.StreamStatusCompleted,
		Duration: 120,
	})
	m.Record(models.TurnLog{
		StreamID: "stream_2_def",
		Provider: "anthropic",
		Model:    "claude-3-5-sonnet-latest",
		Status:   models.StreamStatusError,
		Error:    "API error (401): Incorrect API key",
	})
	m.Record(models.TurnLog{
		StreamID: "stream_3_ghi",
		Provider: "openai",
		Model:    "gpt-4o",
		Status:   models.TurnStatusCancelled,
	})

	stats := m.Stats()
	if stats.TotalTurns != 3 {
		t.Errorf("TotalTurns = %d, want 3", stats.TotalTurns)
	}
	if stats.CompletedCount != 1 || stats.ErrorCount != 1 || stats.CancelledCount != 1 {
		t.Errorf("stats = %+v", stats)
	}

	logs := waitForLogs(t, m, 3)
	if logs[0].ID == "" || logs[0].Timestamp == 0 {
		t.Errorf("log missing generated id/timestamp: %+v", logs[0])
	}
}

func TestMonitorDisabledRecordsNothing(t *testing.T) {
	m := newTestMonitor(t, false)

	m.Record(models.TurnLog{StreamID: "stream_1_abc", Status: models.StreamStatusCompleted})

	if stats := m.Stats(); stats.TotalTurns != 0 {
		t.Errorf("TotalTurns = %d, want 0 while disabled", stats.TotalTurns)
	}
	if logs := m.Recent(0, 0); len(logs) != 0 {
		t.Errorf("Recent returned %d logs while disabled", len(logs))
	}
}

func TestMonitorStatsSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "monitor.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	m := New(s.DB(), 10, true)
	m.Record(models.TurnLog{StreamID: "stream_1_abc", Status: models.StreamStatusCompleted})
	waitForLogs(t, m, 1)

	// A fresh monitor on the same DB picks the stats back up.
	m2 := New(s.DB(), 10, true)
	if stats := m2.Stats(); stats.TotalTurns != 1 || stats.CompletedCount != 1 {
		t.Errorf("reloaded stats = %+v", stats)
	}
}

func TestMonitorClear(t *testing.T) {
	m := newTestMonitor(t, true)

	m.Record(models.TurnLog{StreamID: "stream_1_abc", Status: models.StreamStatusCompleted})
	waitForLogs(t, m, 1)

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if stats := m.Stats(); stats.TotalTurns != 0 {
		t.Errorf("TotalTurns after clear = %d", stats.TotalTurns)
	}
	if logs := m.Recent(0, 0); len(logs) != 0 {
		t.Errorf("Recent after clear returned %d logs", len(logs))
	}
}

func TestMonitorRecentLimit(t *testing.T) {
	m := newTestMonitor(t, true)

	for i := 0; i < 5; i++ {
		m.Record(models.TurnLog{
			StreamID:  "stream",
			Status:    models.StreamStatusCompleted,
			Timestamp: time.Now().UnixMilli() + int64(i),
		})
	}
	waitForLogs(t, m, 5)

	if logs := m.Recent(2, 0); len(logs) != 2 {
		t.Errorf("Recent(2) returned %d logs", len(logs))
	}
}
