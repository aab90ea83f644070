package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AdvanceFiresInOrder(t *testing.T) {
	clock := Fake(epoch)

	var order []int
	clock.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	clock.AfterFunc(1*time.Second, func() { order = append(order, 1) })

	clock.Advance(2 * time.Second)
	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("Expected only the 1s callback, got %v", order)
	}

	clock.Advance(time.Second)
	if len(order) != 2 || order[1] != 3 {
		t.Fatalf("Expected 3s callback after second advance, got %v", order)
	}

	if got := clock.Now(); !got.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("Now() = %v, want %v", got, epoch.Add(3*time.Second))
	}
}

func TestFakeClock_StopIsIdempotent(t *testing.T) {
	clock := Fake(epoch)

	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	if clock.PendingCount() != 1 {
		t.Fatalf("Expected 1 pending timer, got %d", clock.PendingCount())
	}
	if !timer.Stop() {
		t.Error("First Stop should report an active timer")
	}
	if timer.Stop() {
		t.Error("Second Stop should be a no-op")
	}

	clock.Advance(2 * time.Second)
	if fired {
		t.Error("Stopped timer fired")
	}
	if clock.PendingCount() != 0 {
		t.Errorf("Expected no pending timers, got %d", clock.PendingCount())
	}
}

func TestFakeClock_StopAfterFire(t *testing.T) {
	clock := Fake(epoch)

	timer := clock.AfterFunc(time.Second, func() {})
	clock.Advance(time.Second)

	if timer.Stop() {
		t.Error("Stop after fire should return false")
	}
}

func TestRealClock_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Real AfterFunc did not fire")
	}
}
