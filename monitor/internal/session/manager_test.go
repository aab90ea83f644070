package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Krimson/posture-monitory/monitor/internal/clock"
	"github.com/Krimson/posture-monitory/monitor/internal/posture"
)

func newTestManager(t *testing.T) (*Manager, *MemoryStore, *MemoryRepository, *clock.FakeClock) {
	t.Helper()

	clk := clock.Fake(epoch)
	cache := NewMemoryStore(clk, time.Hour)
	repo := NewMemoryRepository()
	manager := NewManager(cache, repo, ManagerConfig{
		Clock:      clk,
		AlertDelay: 2 * time.Second,
	})
	t.Cleanup(manager.CloseAll)

	return manager, cache, repo, clk
}

// waitFor ждет, пока насос доставит кадр в монитор
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestManager_OpenRestoresFromCache(t *testing.T) {
	manager, cache, _, _ := newTestManager(t)
	ctx := context.Background()

	cache.SetBaseline(ctx, "desk-1", goodFrame())
	cache.SetAlertDelay(ctx, "desk-1", 7*time.Second)
	cache.AppendEvidence(ctx, "desk-1", Evidence{ID: "ev-1", MonitorID: "desk-1"})

	monitor, err := manager.Open(ctx, "desk-1")
	if err != nil {
		t.Fatalf("Failed to open monitor: %v", err)
	}

	if monitor.Baseline() == nil {
		t.Error("Expected baseline to be restored")
	}
	if monitor.AlertDelay() != 7*time.Second {
		t.Errorf("Expected alert delay 7s, got %s", monitor.AlertDelay())
	}
	if len(monitor.Evidence()) != 1 {
		t.Errorf("Expected 1 restored evidence, got %d", len(monitor.Evidence()))
	}

	again, _ := manager.Open(ctx, "desk-1")
	if again != monitor {
		t.Error("Open must return the existing monitor")
	}
}

func TestManager_OpenRequiresID(t *testing.T) {
	manager, _, _, _ := newTestManager(t)

	if _, err := manager.Open(context.Background(), ""); !errors.Is(err, ErrInvalidMonitorID) {
		t.Errorf("Expected ErrInvalidMonitorID, got %v", err)
	}
}

func TestManager_CommandsOnUnknownMonitor(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.StartSession(ctx, "ghost"); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("StartSession: expected ErrMonitorNotFound, got %v", err)
	}
	if _, err := manager.SaveBaseline(ctx, "ghost"); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("SaveBaseline: expected ErrMonitorNotFound, got %v", err)
	}
	if err := manager.SetAlertDelay(ctx, "ghost", time.Second); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("SetAlertDelay: expected ErrMonitorNotFound, got %v", err)
	}
	if err := manager.Close(ctx, "ghost", false); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("Close: expected ErrMonitorNotFound, got %v", err)
	}
}

func TestManager_BaselinePersistence(t *testing.T) {
	manager, cache, _, _ := newTestManager(t)
	ctx := context.Background()

	monitor, _ := manager.Open(ctx, "desk-1")

	if _, err := manager.Baseline("desk-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound before baseline, got %v", err)
	}

	monitor.Observe(goodFrame())
	if _, err := manager.SaveBaseline(ctx, "desk-1"); err != nil {
		t.Fatalf("Failed to save baseline: %v", err)
	}
	if _, err := cache.GetBaseline(ctx, "desk-1"); err != nil {
		t.Errorf("Expected baseline in cache: %v", err)
	}

	if err := manager.ResetBaseline(ctx, "desk-1"); err != nil {
		t.Fatalf("Failed to reset baseline: %v", err)
	}
	if _, err := cache.GetBaseline(ctx, "desk-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected cached baseline to be deleted, got %v", err)
	}
}

func TestManager_AlertDelayPersistence(t *testing.T) {
	manager, cache, _, _ := newTestManager(t)
	ctx := context.Background()
	manager.Open(ctx, "desk-1")

	if err := manager.SetAlertDelay(ctx, "desk-1", 100*time.Millisecond); !errors.Is(err, ErrInvalidAlertDelay) {
		t.Errorf("Expected ErrInvalidAlertDelay, got %v", err)
	}
	if _, err := cache.GetAlertDelay(ctx, "desk-1"); !errors.Is(err, ErrNotFound) {
		t.Error("Rejected delay must not be persisted")
	}

	if err := manager.SetAlertDelay(ctx, "desk-1", 3*time.Second); err != nil {
		t.Fatalf("Failed to set alert delay: %v", err)
	}
	if delay, _ := cache.GetAlertDelay(ctx, "desk-1"); delay != 3*time.Second {
		t.Errorf("Expected cached delay 3s, got %s", delay)
	}
}

func TestManager_PublishAlertAndArchive(t *testing.T) {
	manager, cache, repo, clk := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.Publish(ctx, "desk-1", goodFrame(), []byte("img-good")); err != nil {
		t.Fatalf("Failed to publish frame: %v", err)
	}
	waitFor(t, func() bool {
		view, err := manager.View("desk-1")
		return err == nil && view.Verdict == posture.AwaitingBaseline
	})

	if _, err := manager.SaveBaseline(ctx, "desk-1"); err != nil {
		t.Fatalf("Failed to save baseline: %v", err)
	}
	if _, err := manager.StartSession(ctx, "desk-1"); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	manager.Publish(ctx, "desk-1", badFrame(), []byte("img-bad"))
	waitFor(t, func() bool {
		view, _ := manager.View("desk-1")
		return view.State == StateMonitoringBad
	})

	clk.Advance(2 * time.Second)

	if alerts := repo.Alerts("desk-1"); len(alerts) != 1 {
		t.Fatalf("Expected 1 archived alert, got %d", len(alerts))
	}
	cached, _ := cache.GetEvidence(ctx, "desk-1")
	if len(cached) != 1 || string(cached[0].Image) != "img-bad" {
		t.Fatalf("Expected cached evidence with latest image, got %+v", cached)
	}

	record, err := manager.EndSession(ctx, "desk-1")
	if err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}

	history, err := manager.History(ctx, "desk-1", 10, 0)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(history) != 1 || history[0].ID != record.ID || history[0].Alerts != 1 {
		t.Errorf("Unexpected history: %+v", history)
	}

	archived, _ := manager.SessionEvidence(ctx, "desk-1", record.ID)
	if len(archived) != 1 {
		t.Errorf("Expected 1 archived evidence, got %d", len(archived))
	}

	// Новая сессия очищает снимки в кэше
	manager.StartSession(ctx, "desk-1")
	if cached, _ := cache.GetEvidence(ctx, "desk-1"); len(cached) != 0 {
		t.Errorf("Expected cached evidence to be cleared, got %d", len(cached))
	}
}

func TestManager_CloseArchivesActiveSession(t *testing.T) {
	manager, _, repo, _ := newTestManager(t)
	ctx := context.Background()

	manager.Open(ctx, "desk-1")
	if _, err := manager.StartSession(ctx, "desk-1"); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	if err := manager.Close(ctx, "desk-1", false); err != nil {
		t.Fatalf("Failed to close monitor: %v", err)
	}
	if _, err := manager.Get("desk-1"); !errors.Is(err, ErrMonitorNotFound) {
		t.Errorf("Expected closed monitor to be removed, got %v", err)
	}

	records, _ := repo.ListSessions(ctx, "desk-1", 10, 0)
	if len(records) != 1 {
		t.Fatalf("Expected active session to be archived on close, got %d", len(records))
	}

	if err := manager.Close(ctx, "desk-1", true); err != nil {
		t.Fatalf("Failed to purge monitor: %v", err)
	}
	records, _ = repo.ListSessions(ctx, "desk-1", 10, 0)
	if len(records) != 0 {
		t.Errorf("Expected purge to delete archive, got %d", len(records))
	}
}
