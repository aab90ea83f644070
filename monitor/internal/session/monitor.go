package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Krimson/posture-monitory/monitor/internal/clock"
	"github.com/Krimson/posture-monitory/monitor/internal/pose"
	"github.com/Krimson/posture-monitory/monitor/internal/posture"
)

const captureTimeout = 5 * time.Second

// MonitorConfig содержит зависимости монитора
type MonitorConfig struct {
	Classifier *posture.Classifier
	Clock      clock.Clock
	AlertDelay time.Duration
	Alerts     AlertSink
	Capture    CaptureSink
	Observer   Observer
}

// alertTimer токен отмены единственного таймера эпизода.
// Таймер действителен, пока монитор ссылается на этот же токен.
type alertTimer struct {
	timer     clock.Timer
	sessionID string
}

// Monitor реализует конечный автомат сессии: IDLE, MONITORING_GOOD, MONITORING_BAD.
// Классификация и переход выполняются под одной блокировкой вместе с командами.
type Monitor struct {
	id         string
	classifier *posture.Classifier
	clock      clock.Clock
	alerts     AlertSink
	capture    CaptureSink
	observer   Observer

	baseline *BaselineStore

	mu             sync.Mutex
	lastFrame      *pose.Frame
	lastVerdict    posture.Verdict
	active         bool
	closed         bool
	sessionID      string
	startedAt      time.Time
	badSince       *time.Time
	episodeReasons posture.ReasonSet
	alertDelay     time.Duration
	pending        *alertTimer
	evidence       []Evidence

	episodes    int
	alertsFired int
	badTotal    time.Duration
}

// NewMonitor создает монитор в состоянии IDLE без эталона
func NewMonitor(id string, cfg MonitorConfig) *Monitor {
	if cfg.Classifier == nil {
		cfg.Classifier = posture.NewClassifier(posture.DefaultOptions())
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.AlertDelay < MinAlertDelay {
		cfg.AlertDelay = DefaultAlertDelay
	}
	if cfg.Alerts == nil {
		cfg.Alerts = nopAlertSink{}
	}
	if cfg.Observer == nil {
		cfg.Observer = Observers(nil)
	}

	return &Monitor{
		id:         id,
		classifier: cfg.Classifier,
		clock:      cfg.Clock,
		alerts:     cfg.Alerts,
		capture:    cfg.Capture,
		observer:   cfg.Observer,
		baseline:   NewBaselineStore(),
		alertDelay: cfg.AlertDelay,
	}
}

// ID возвращает идентификатор монитора
func (m *Monitor) ID() string {
	return m.id
}

// Observe классифицирует кадр и продвигает автомат. nil означает, что поза не найдена.
func (m *Monitor) Observe(frame *pose.Frame) posture.Verdict {
	m.mu.Lock()
	m.lastFrame = frame
	verdict := m.classifier.Classify(frame, m.baseline.current())
	events := m.transitionLocked(verdict)
	m.mu.Unlock()

	m.emit(events)
	return verdict
}

// transitionLocked применяет вердикт к состоянию. Неопределенные вердикты ничего не меняют.
func (m *Monitor) transitionLocked(verdict posture.Verdict) []Event {
	var events []Event
	now := m.clock.Now()

	if verdict != m.lastVerdict {
		v := verdict
		events = append(events, Event{
			Type:    EventVerdictChanged,
			Verdict: &v,
			Message: verdict.Message(),
		})
	}
	m.lastVerdict = verdict

	if !m.active {
		return m.stampLocked(events, now)
	}

	switch {
	case verdict.IsBad():
		if m.badSince != nil {
			m.episodeReasons |= verdict.Reasons
			break
		}
		m.badSince = &now
		m.episodeReasons = verdict.Reasons
		m.episodes++
		m.startTimerLocked()
		events = append(events, Event{Type: EventStateChanged})

	case verdict.IsGood():
		if m.badSince == nil {
			break
		}
		m.badTotal += now.Sub(*m.badSince)
		m.badSince = nil
		m.cancelTimerLocked()
		events = append(events, Event{Type: EventStateChanged})
	}

	return m.stampLocked(events, now)
}

func (m *Monitor) stampLocked(events []Event, now time.Time) []Event {
	state := m.stateLocked()
	for i := range events {
		events[i].MonitorID = m.id
		events[i].At = now
		events[i].State = state
	}
	return events
}

func (m *Monitor) startTimerLocked() {
	t := &alertTimer{sessionID: m.sessionID}
	m.pending = t
	t.timer = m.clock.AfterFunc(m.alertDelay, func() {
		m.fire(t)
	})
}

// cancelTimerLocked отменяет ожидающий таймер. Повторная отмена ничего не делает.
func (m *Monitor) cancelTimerLocked() {
	if m.pending == nil {
		return
	}
	if m.pending.timer != nil {
		m.pending.timer.Stop()
	}
	m.pending = nil
}

// fire срабатывает по истечении задержки: оповещение и снимок кадра
func (m *Monitor) fire(t *alertTimer) {
	m.mu.Lock()
	if m.pending != t {
		m.mu.Unlock()
		return
	}
	m.pending = nil
	m.alertsFired++

	alert := Alert{
		MonitorID: m.id,
		SessionID: m.sessionID,
		FiredAt:   m.clock.Now(),
		Reasons:   m.episodeReasons,
	}
	if m.badSince != nil {
		alert.BadSince = *m.badSince
	}
	alertEvents := m.stampLocked([]Event{{Type: EventAlert, Alert: &alert}}, alert.FiredAt)
	capture := m.capture
	m.mu.Unlock()

	log.Printf("[SESSION] Bad posture sustained: monitor=%s session=%s reasons=%s",
		alert.MonitorID, alert.SessionID, alert.Reasons)

	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	m.alerts.NotifyBadPosture(ctx, alert)
	m.emit(alertEvents)

	if capture == nil {
		return
	}

	image, err := capture.Capture(ctx)
	if err != nil {
		log.Printf("[WARN] Evidence capture failed for monitor %s: %v", m.id, err)
		return
	}

	evidence := Evidence{
		ID:         uuid.New().String(),
		MonitorID:  m.id,
		SessionID:  alert.SessionID,
		CapturedAt: m.clock.Now(),
		Reasons:    alert.Reasons,
		Image:      image,
	}

	m.mu.Lock()
	// Новая сессия уже очистила список, снимок прошлой сессии в нее не попадает
	if m.closed || m.sessionID != t.sessionID {
		m.mu.Unlock()
		return
	}
	m.evidence = append(m.evidence, evidence)
	evidenceEvents := m.stampLocked([]Event{{Type: EventEvidenceCaptured, Evidence: &evidence}}, evidence.CapturedAt)
	m.mu.Unlock()

	m.emit(evidenceEvents)
}

func (m *Monitor) emit(events []Event) {
	for _, ev := range events {
		m.observer.OnEvent(ev)
	}
}

// StartSession переводит монитор из IDLE в MONITORING_GOOD и очищает список снимков
func (m *Monitor) StartSession() (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrMonitorClosed
	}
	if m.active {
		m.mu.Unlock()
		return "", ErrAlreadyMonitoring
	}

	now := m.clock.Now()
	m.active = true
	m.sessionID = uuid.New().String()
	m.startedAt = now
	m.badSince = nil
	m.episodeReasons = 0
	m.evidence = nil
	m.episodes = 0
	m.alertsFired = 0
	m.badTotal = 0
	sessionID := m.sessionID
	events := m.stampLocked([]Event{{Type: EventStateChanged}}, now)
	m.mu.Unlock()

	log.Printf("[SESSION] Started session %s on monitor %s", sessionID, m.id)
	m.emit(events)
	return sessionID, nil
}

// EndSession возвращает монитор в IDLE, отменяет таймер и сохраняет снимки до следующего старта
func (m *Monitor) EndSession() (*SessionRecord, error) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil, ErrNotMonitoring
	}

	record := m.endLocked()
	events := m.stampLocked([]Event{{Type: EventStateChanged, Record: record}}, *record.EndedAt)
	m.mu.Unlock()

	log.Printf("[SESSION] Ended session %s on monitor %s: episodes=%d alerts=%d bad_ms=%d",
		record.ID, m.id, record.Episodes, record.Alerts, record.BadDurationMs)
	m.emit(events)
	return record, nil
}

func (m *Monitor) endLocked() *SessionRecord {
	now := m.clock.Now()
	m.cancelTimerLocked()
	if m.badSince != nil {
		m.badTotal += now.Sub(*m.badSince)
		m.badSince = nil
	}
	m.active = false

	return &SessionRecord{
		ID:            m.sessionID,
		MonitorID:     m.id,
		StartedAt:     m.startedAt,
		EndedAt:       &now,
		Episodes:      m.episodes,
		Alerts:        m.alertsFired,
		BadDurationMs: m.badTotal.Milliseconds(),
		EvidenceCount: len(m.evidence),
	}
}

// SaveBaseline сохраняет последний кадр как эталон
func (m *Monitor) SaveBaseline() (*pose.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastFrame == nil {
		return nil, ErrNoFrame
	}
	m.baseline.Save(m.lastFrame)
	return m.baseline.Get(), nil
}

// RestoreBaseline устанавливает эталон из внешнего хранилища
func (m *Monitor) RestoreBaseline(frame *pose.Frame) {
	if frame == nil {
		return
	}
	m.mu.Lock()
	m.baseline.Save(frame)
	m.mu.Unlock()
}

// ResetBaseline удаляет эталон. Следующий кадр получит AWAITING_BASELINE, состояние не меняется.
func (m *Monitor) ResetBaseline() {
	m.mu.Lock()
	m.baseline.Reset()
	m.mu.Unlock()
}

// Baseline возвращает копию эталона или nil
func (m *Monitor) Baseline() *pose.Frame {
	return m.baseline.Get()
}

// SetAlertDelay задает задержку для следующего эпизода. Уже запущенный таймер не меняется.
func (m *Monitor) SetAlertDelay(d time.Duration) error {
	if d < MinAlertDelay {
		return ErrInvalidAlertDelay
	}
	m.mu.Lock()
	m.alertDelay = d
	m.mu.Unlock()
	return nil
}

// AlertDelay возвращает текущую задержку оповещения
func (m *Monitor) AlertDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alertDelay
}

// Evidence возвращает копию списка снимков
func (m *Monitor) Evidence() []Evidence {
	m.mu.Lock()
	defer m.mu.Unlock()

	evidence := make([]Evidence, len(m.evidence))
	copy(evidence, m.evidence)
	return evidence
}

// RestoreEvidence восстанавливает снимки последней сессии после перезапуска. Активную сессию не трогает.
func (m *Monitor) RestoreEvidence(evidence []Evidence) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active || len(m.evidence) > 0 {
		return
	}
	m.evidence = append([]Evidence(nil), evidence...)
}

// State возвращает текущее состояние автомата
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Monitor) stateLocked() State {
	switch {
	case !m.active:
		return StateIdle
	case m.badSince != nil:
		return StateMonitoringBad
	default:
		return StateMonitoringGood
	}
}

// Status возвращает снимок состояния монитора
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		MonitorID:     m.id,
		State:         m.stateLocked(),
		Verdict:       m.lastVerdict,
		Message:       m.lastVerdict.Message(),
		BaselineSet:   m.baseline.IsSet(),
		AlertDelayMs:  m.alertDelay.Milliseconds(),
		AlertPending:  m.pending != nil,
		EvidenceCount: len(m.evidence),
	}
	if m.lastVerdict.Kind == "" {
		status.Message = ""
	}
	if m.active {
		status.SessionID = m.sessionID
	}
	if m.badSince != nil {
		badSince := *m.badSince
		status.BadSince = &badSince
	}
	return status
}

// Close останавливает монитор и освобождает таймер. Повторный вызов безопасен.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.cancelTimerLocked()
	m.active = false
	m.badSince = nil
}
