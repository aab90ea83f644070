package session

import (
	"testing"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
)

func TestBaselineStore_SaveGetReset(t *testing.T) {
	store := NewBaselineStore()

	if store.IsSet() || store.Get() != nil {
		t.Fatal("New store must be empty")
	}

	frame := goodFrame()
	store.Save(frame)

	if !store.IsSet() {
		t.Fatal("Expected baseline to be set")
	}

	// Изменение исходного кадра не затрагивает эталон
	frame.Keypoints[0].X = 500
	if got := store.Get(); got.Keypoints[0].X != 100 {
		t.Errorf("Baseline aliased caller frame: nose.x=%v", got.Keypoints[0].X)
	}

	// Изменение возвращенной копии тоже
	got := store.Get()
	got.Keypoints[0].X = 700
	if store.Get().Keypoints[0].X != 100 {
		t.Error("Get returned shared snapshot")
	}

	store.Reset()
	if store.IsSet() {
		t.Error("Expected baseline to be cleared")
	}
}

func TestBaselineStore_SaveOverwrites(t *testing.T) {
	store := NewBaselineStore()
	store.Save(goodFrame())
	store.Save(frameAt(300, 120, 120))

	got := store.Get()
	nose, ok := got.Lookup(pose.Nose, 0)
	if !ok || nose.X != 300 {
		t.Errorf("Expected overwritten baseline, got %+v", got)
	}
}

func TestBaselineStore_IncompleteFrameAccepted(t *testing.T) {
	store := NewBaselineStore()
	store.Save(&pose.Frame{Keypoints: []pose.Keypoint{{Name: pose.Nose, X: 1, Y: 1}}})

	if !store.IsSet() {
		t.Error("Incomplete frame must still be stored")
	}
}
