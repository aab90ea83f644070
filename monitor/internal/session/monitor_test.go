package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Krimson/posture-monitory/monitor/internal/clock"
	"github.com/Krimson/posture-monitory/monitor/internal/pose"
	"github.com/Krimson/posture-monitory/monitor/internal/posture"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// TestSink собирает оповещения и запросы снимков
type TestSink struct {
	mu         sync.Mutex
	alerts     []Alert
	captures   int
	captureErr error
}

func (ts *TestSink) NotifyBadPosture(ctx context.Context, alert Alert) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.alerts = append(ts.alerts, alert)
}

func (ts *TestSink) Capture(ctx context.Context) ([]byte, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.captures++
	if ts.captureErr != nil {
		return nil, ts.captureErr
	}
	return []byte("jpeg"), nil
}

func (ts *TestSink) Counts() (alerts, captures int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.alerts), ts.captures
}

// TestObserver собирает события
type TestObserver struct {
	mu     sync.Mutex
	events []Event
}

func (to *TestObserver) OnEvent(ev Event) {
	to.mu.Lock()
	defer to.mu.Unlock()
	to.events = append(to.events, ev)
}

func (to *TestObserver) Types() []EventType {
	to.mu.Lock()
	defer to.mu.Unlock()
	types := make([]EventType, 0, len(to.events))
	for _, ev := range to.events {
		types = append(types, ev.Type)
	}
	return types
}

func frameAt(noseX, leftY, rightY float64) *pose.Frame {
	return &pose.Frame{Keypoints: []pose.Keypoint{
		{Name: pose.Nose, X: noseX, Y: 50, Score: 0.9},
		{Name: pose.LeftShoulder, X: 80, Y: leftY, Score: 0.9},
		{Name: pose.RightShoulder, X: 120, Y: rightY, Score: 0.9},
	}}
}

func goodFrame() *pose.Frame { return frameAt(100, 100, 100) }
func badFrame() *pose.Frame  { return frameAt(161, 100, 100) }

type fixture struct {
	clock    *clock.FakeClock
	sink     *TestSink
	observer *TestObserver
	monitor  *Monitor
}

// newMonitoringFixture возвращает монитор с эталоном и активной сессией
func newMonitoringFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:    clock.Fake(epoch),
		sink:     &TestSink{},
		observer: &TestObserver{},
	}
	f.monitor = NewMonitor("desk-1", MonitorConfig{
		Clock:      f.clock,
		AlertDelay: 5 * time.Second,
		Alerts:     f.sink,
		Capture:    f.sink,
		Observer:   f.observer,
	})
	t.Cleanup(f.monitor.Close)

	f.monitor.Observe(goodFrame())
	if _, err := f.monitor.SaveBaseline(); err != nil {
		t.Fatalf("Failed to save baseline: %v", err)
	}
	if _, err := f.monitor.StartSession(); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	return f
}

func TestMonitor_SingleTimerPerEpisode(t *testing.T) {
	f := newMonitoringFixture(t)

	verdict := f.monitor.Observe(badFrame())
	if !verdict.IsBad() {
		t.Fatalf("Expected BadPosture verdict, got %v", verdict)
	}
	if f.monitor.State() != StateMonitoringBad {
		t.Errorf("Expected MONITORING_BAD, got %s", f.monitor.State())
	}
	if f.clock.PendingCount() != 1 {
		t.Fatalf("Expected exactly 1 pending timer, got %d", f.clock.PendingCount())
	}

	f.clock.Advance(2 * time.Second)
	f.monitor.Observe(badFrame())
	if f.clock.PendingCount() != 1 {
		t.Errorf("Repeated bad verdict started another timer: %d pending", f.clock.PendingCount())
	}

	f.monitor.Observe(goodFrame())
	if f.monitor.State() != StateMonitoringGood {
		t.Errorf("Expected MONITORING_GOOD, got %s", f.monitor.State())
	}
	if f.clock.PendingCount() != 0 {
		t.Errorf("Good verdict did not cancel the timer: %d pending", f.clock.PendingCount())
	}

	f.clock.Advance(10 * time.Second)
	if alerts, captures := f.sink.Counts(); alerts != 0 || captures != 0 {
		t.Errorf("Expected no alert after cancel, got alerts=%d captures=%d", alerts, captures)
	}
}

func TestMonitor_SustainedBadFiresOnce(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(badFrame())
	f.clock.Advance(4 * time.Second)
	f.monitor.Observe(badFrame())

	if alerts, _ := f.sink.Counts(); alerts != 0 {
		t.Fatalf("Alert fired before delay elapsed")
	}

	f.clock.Advance(time.Second)
	alerts, captures := f.sink.Counts()
	if alerts != 1 || captures != 1 {
		t.Fatalf("Expected 1 alert and 1 capture, got alerts=%d captures=%d", alerts, captures)
	}

	// Эпизод продолжается, повторных оповещений нет
	for i := 0; i < 5; i++ {
		f.monitor.Observe(badFrame())
		f.clock.Advance(5 * time.Second)
	}
	alerts, captures = f.sink.Counts()
	if alerts != 1 || captures != 1 {
		t.Errorf("Expected alert not to repeat, got alerts=%d captures=%d", alerts, captures)
	}

	status := f.monitor.Status()
	if status.State != StateMonitoringBad || status.AlertPending {
		t.Errorf("Unexpected status after alert: %+v", status)
	}

	evidence := f.monitor.Evidence()
	if len(evidence) != 1 || string(evidence[0].Image) != "jpeg" {
		t.Fatalf("Expected 1 evidence image, got %+v", evidence)
	}
	if !evidence[0].Reasons.Has(posture.LeaningForward) {
		t.Errorf("Expected evidence reasons to include leaning_forward, got %v", evidence[0].Reasons)
	}

	alert := f.sink.alerts[0]
	if !alert.BadSince.Equal(epoch) || !alert.FiredAt.Equal(epoch.Add(5*time.Second)) {
		t.Errorf("Unexpected alert timing: %+v", alert)
	}
}

func TestMonitor_NewEpisodeGetsNewAlert(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(badFrame())
	f.clock.Advance(5 * time.Second)
	f.monitor.Observe(goodFrame())
	f.monitor.Observe(badFrame())
	f.clock.Advance(5 * time.Second)

	if alerts, _ := f.sink.Counts(); alerts != 2 {
		t.Errorf("Expected 2 alerts for 2 episodes, got %d", alerts)
	}
}

func TestMonitor_InconclusiveVerdictsAreNoOps(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(badFrame())

	inconclusive := []*pose.Frame{
		nil,
		{Keypoints: []pose.Keypoint{{Name: pose.Nose, X: 100, Y: 50}}},
	}
	for _, frame := range inconclusive {
		verdict := f.monitor.Observe(frame)
		if !verdict.IsInconclusive() {
			t.Fatalf("Expected inconclusive verdict, got %v", verdict)
		}
		if f.monitor.State() != StateMonitoringBad {
			t.Errorf("Inconclusive verdict changed state to %s", f.monitor.State())
		}
		if f.clock.PendingCount() != 1 {
			t.Errorf("Inconclusive verdict touched the timer: %d pending", f.clock.PendingCount())
		}
	}

	f.clock.Advance(5 * time.Second)
	if alerts, _ := f.sink.Counts(); alerts != 1 {
		t.Errorf("Expected pending alert to fire, got %d alerts", alerts)
	}
}

func TestMonitor_InconclusiveDoesNotStartEpisode(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(nil)
	if f.monitor.State() != StateMonitoringGood || f.clock.PendingCount() != 0 {
		t.Errorf("No-pose verdict must not start an episode")
	}
}

func TestMonitor_ResetBaselineWhileBad(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(badFrame())
	f.monitor.ResetBaseline()

	verdict := f.monitor.Observe(badFrame())
	if verdict != posture.AwaitingBaseline {
		t.Fatalf("Expected AwaitingBaseline after reset, got %v", verdict)
	}
	if f.monitor.State() != StateMonitoringBad {
		t.Errorf("Reset baseline should not change state, got %s", f.monitor.State())
	}
	if f.monitor.Baseline() != nil {
		t.Error("Expected baseline to be cleared")
	}
}

func TestMonitor_EndSessionCancelsTimer(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(badFrame())
	f.clock.Advance(2 * time.Second)

	record, err := f.monitor.EndSession()
	if err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}
	if record.Episodes != 1 || record.BadDurationMs != 2000 {
		t.Errorf("Unexpected session record: %+v", record)
	}
	if f.monitor.State() != StateIdle {
		t.Errorf("Expected IDLE, got %s", f.monitor.State())
	}

	f.clock.Advance(10 * time.Second)
	if alerts, captures := f.sink.Counts(); alerts != 0 || captures != 0 {
		t.Errorf("Timer fired after session end: alerts=%d captures=%d", alerts, captures)
	}
}

func TestMonitor_RestartClearsEvidenceKeepsBaseline(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(badFrame())
	f.clock.Advance(5 * time.Second)

	if _, err := f.monitor.EndSession(); err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}
	if len(f.monitor.Evidence()) != 1 {
		t.Fatalf("Evidence should survive session end, got %d", len(f.monitor.Evidence()))
	}

	if _, err := f.monitor.StartSession(); err != nil {
		t.Fatalf("Failed to restart session: %v", err)
	}
	if len(f.monitor.Evidence()) != 0 {
		t.Errorf("Expected evidence to be cleared on start, got %d", len(f.monitor.Evidence()))
	}
	if f.monitor.Baseline() == nil {
		t.Error("Baseline must survive session restart")
	}
}

func TestMonitor_IdleDoesNotTransition(t *testing.T) {
	clk := clock.Fake(epoch)
	monitor := NewMonitor("desk-1", MonitorConfig{Clock: clk})
	defer monitor.Close()

	monitor.Observe(goodFrame())
	if _, err := monitor.SaveBaseline(); err != nil {
		t.Fatalf("Failed to save baseline: %v", err)
	}

	verdict := monitor.Observe(badFrame())
	if !verdict.IsBad() {
		t.Errorf("Idle monitor should still classify, got %v", verdict)
	}
	if monitor.State() != StateIdle || clk.PendingCount() != 0 {
		t.Errorf("Idle monitor must not start a timer")
	}
}

func TestMonitor_CommandErrors(t *testing.T) {
	monitor := NewMonitor("desk-1", MonitorConfig{Clock: clock.Fake(epoch)})
	defer monitor.Close()

	if _, err := monitor.SaveBaseline(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame before any frame, got %v", err)
	}
	monitor.Observe(nil)
	if _, err := monitor.SaveBaseline(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame after no-pose frame, got %v", err)
	}

	if _, err := monitor.EndSession(); !errors.Is(err, ErrNotMonitoring) {
		t.Errorf("Expected ErrNotMonitoring, got %v", err)
	}
	if _, err := monitor.StartSession(); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	if _, err := monitor.StartSession(); !errors.Is(err, ErrAlreadyMonitoring) {
		t.Errorf("Expected ErrAlreadyMonitoring, got %v", err)
	}

	if err := monitor.SetAlertDelay(500 * time.Millisecond); !errors.Is(err, ErrInvalidAlertDelay) {
		t.Errorf("Expected ErrInvalidAlertDelay, got %v", err)
	}
	if err := monitor.SetAlertDelay(time.Second); err != nil {
		t.Errorf("1s alert delay should be accepted, got %v", err)
	}

	monitor.Close()
	if _, err := monitor.StartSession(); !errors.Is(err, ErrMonitorClosed) {
		t.Errorf("Expected ErrMonitorClosed, got %v", err)
	}
}

func TestMonitor_AlertDelayAppliesToNextEpisode(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(badFrame())
	if err := f.monitor.SetAlertDelay(10 * time.Second); err != nil {
		t.Fatalf("Failed to set alert delay: %v", err)
	}

	f.clock.Advance(5 * time.Second)
	if alerts, _ := f.sink.Counts(); alerts != 1 {
		t.Fatalf("Pending timer should keep its original delay")
	}

	f.monitor.Observe(goodFrame())
	f.monitor.Observe(badFrame())
	f.clock.Advance(5 * time.Second)
	if alerts, _ := f.sink.Counts(); alerts != 1 {
		t.Errorf("New delay not applied to next episode")
	}
	f.clock.Advance(5 * time.Second)
	if alerts, _ := f.sink.Counts(); alerts != 2 {
		t.Errorf("Expected second alert after 10s")
	}
}

func TestMonitor_CaptureFailureKeepsAlert(t *testing.T) {
	f := newMonitoringFixture(t)
	f.sink.captureErr = ErrNoImage

	f.monitor.Observe(badFrame())
	f.clock.Advance(5 * time.Second)

	alerts, captures := f.sink.Counts()
	if alerts != 1 || captures != 1 {
		t.Errorf("Expected alert and capture attempt, got alerts=%d captures=%d", alerts, captures)
	}
	if len(f.monitor.Evidence()) != 0 {
		t.Errorf("Failed capture must not add evidence")
	}
}

func TestMonitor_CloseReleasesTimer(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(badFrame())
	f.monitor.Close()
	f.monitor.Close()

	if f.clock.PendingCount() != 0 {
		t.Errorf("Close left %d pending timers", f.clock.PendingCount())
	}
	f.clock.Advance(10 * time.Second)
	if alerts, _ := f.sink.Counts(); alerts != 0 {
		t.Errorf("Closed monitor fired an alert")
	}
}

func TestMonitor_Events(t *testing.T) {
	f := newMonitoringFixture(t)

	f.monitor.Observe(badFrame())
	f.clock.Advance(5 * time.Second)
	f.monitor.Observe(goodFrame())

	want := []EventType{
		EventVerdictChanged, // AWAITING_BASELINE, кадр до эталона
		EventStateChanged,   // start
		EventVerdictChanged, // bad
		EventStateChanged,   // good -> bad
		EventAlert,
		EventEvidenceCaptured,
		EventVerdictChanged, // good
		EventStateChanged,   // bad -> good
	}

	got := f.observer.Types()
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
