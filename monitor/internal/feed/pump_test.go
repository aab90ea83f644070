package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
)

// TestSink для тестирования - собирает все кадры, может блокироваться до release
type TestSink struct {
	mu      sync.Mutex
	items   []Item
	started chan struct{}
	release chan struct{}
}

func (ts *TestSink) Consume(ctx context.Context, item Item) error {
	if ts.started != nil {
		ts.started <- struct{}{}
	}
	if ts.release != nil {
		<-ts.release
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.items = append(ts.items, item)
	return nil
}

func (ts *TestSink) GetItems() []Item {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	result := make([]Item, len(ts.items))
	copy(result, ts.items)
	return result
}

func frameWithNose(x float64) *pose.Frame {
	return &pose.Frame{Keypoints: []pose.Keypoint{{Name: pose.Nose, X: x}}}
}

func TestPump_DeliversInOrder(t *testing.T) {
	sink := &TestSink{}
	pump := NewPump("desk-1", sink, 0)

	pump.Publish(Item{Frame: frameWithNose(1)})
	time.Sleep(50 * time.Millisecond)
	pump.Publish(Item{Frame: frameWithNose(2)})
	pump.Stop()

	items := sink.GetItems()
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Frame.Keypoints[0].X != 1 || items[1].Frame.Keypoints[0].X != 2 {
		t.Errorf("Items delivered out of order")
	}
	if items[0].MonitorID != "desk-1" || items[0].ReceivedAt.IsZero() {
		t.Errorf("Expected monitor id and receive time to be filled, got %+v", items[0])
	}
}

func TestPump_OverwritesUnconsumedFrame(t *testing.T) {
	sink := &TestSink{
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
	pump := NewPump("desk-1", sink, 0)

	pump.Publish(Item{Frame: frameWithNose(1)})
	<-sink.started // Воркер занят первым кадром

	if !pump.Publish(Item{Frame: frameWithNose(2)}) {
		t.Error("Publish into empty slot should not report a drop")
	}
	if pump.Publish(Item{Frame: frameWithNose(3)}) {
		t.Error("Publish over unconsumed frame should report a drop")
	}

	close(sink.release)
	pump.Stop()

	items := sink.GetItems()
	if len(items) != 2 {
		t.Fatalf("Expected 2 processed items, got %d", len(items))
	}
	if items[1].Frame.Keypoints[0].X != 3 {
		t.Errorf("Expected latest frame to win, got nose.x=%v", items[1].Frame.Keypoints[0].X)
	}

	stats := pump.GetStats()
	if stats.Received != 3 || stats.Dropped != 1 || stats.Processed != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestPump_InjectsIdleFrame(t *testing.T) {
	sink := &TestSink{}
	pump := NewPump("desk-1", sink, 40*time.Millisecond)
	defer pump.Stop()

	pump.Publish(Item{Frame: frameWithNose(1)})
	time.Sleep(200 * time.Millisecond)

	items := sink.GetItems()
	if len(items) != 2 {
		t.Fatalf("Expected real frame plus one idle frame, got %d", len(items))
	}
	if !items[1].Idle || items[1].Frame != nil {
		t.Errorf("Expected idle no-pose frame, got %+v", items[1])
	}
	if pump.GetStats().Idle != 1 {
		t.Errorf("Expected idle counter 1, got %d", pump.GetStats().Idle)
	}
}

func TestPump_StopIsIdempotent(t *testing.T) {
	pump := NewPump("desk-1", &TestSink{}, 10*time.Millisecond)
	pump.Stop()
	pump.Stop()
}
