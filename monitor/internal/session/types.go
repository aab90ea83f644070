package session

import (
	"errors"
	"time"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
	"github.com/Krimson/posture-monitory/monitor/internal/posture"
)

// Ошибки команд пользователя
var (
	ErrAlreadyMonitoring = errors.New("session already active")
	ErrNotMonitoring     = errors.New("session is not active")
	ErrInvalidAlertDelay = errors.New("alert delay must be at least 1s")
	ErrNoFrame           = errors.New("no pose in the latest frame")
	ErrMonitorClosed     = errors.New("monitor is closed")
	ErrMonitorNotFound   = errors.New("monitor not found")
	ErrInvalidMonitorID  = errors.New("monitor id is required")
	ErrNotFound          = errors.New("not found")
)

// MinAlertDelay минимальная задержка оповещения
const MinAlertDelay = time.Second

// DefaultAlertDelay задержка оповещения по умолчанию
const DefaultAlertDelay = 5 * time.Second

// State представляет состояние сессии мониторинга
type State string

const (
	StateIdle           State = "IDLE"
	StateMonitoringGood State = "MONITORING_GOOD"
	StateMonitoringBad  State = "MONITORING_BAD"
)

// Alert представляет оповещение о затянувшейся плохой осанке
type Alert struct {
	MonitorID string            `json:"monitor_id"`
	SessionID string            `json:"session_id"`
	BadSince  time.Time         `json:"bad_since"`
	FiredAt   time.Time         `json:"fired_at"`
	Reasons   posture.ReasonSet `json:"reasons"`
}

// Evidence представляет снимок кадра, сделанный при оповещении
type Evidence struct {
	ID         string            `json:"id"`
	MonitorID  string            `json:"monitor_id"`
	SessionID  string            `json:"session_id"`
	CapturedAt time.Time         `json:"captured_at"`
	Reasons    posture.ReasonSet `json:"reasons"`
	Image      []byte            `json:"image,omitempty"`
}

// SessionRecord представляет завершенную сессию мониторинга
type SessionRecord struct {
	ID            string     `json:"id"`
	MonitorID     string     `json:"monitor_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Episodes      int        `json:"episodes"`
	Alerts        int        `json:"alerts"`
	BadDurationMs int64      `json:"bad_duration_ms"`
	EvidenceCount int        `json:"evidence_count"`
}

// Status представляет текущее состояние монитора
type Status struct {
	MonitorID     string          `json:"monitor_id"`
	State         State           `json:"state"`
	SessionID     string          `json:"session_id,omitempty"`
	Verdict       posture.Verdict `json:"verdict"`
	Message       string          `json:"message"`
	BaselineSet   bool            `json:"baseline_set"`
	AlertDelayMs  int64           `json:"alert_delay_ms"`
	BadSince      *time.Time      `json:"bad_since,omitempty"`
	AlertPending  bool            `json:"alert_pending"`
	EvidenceCount int             `json:"evidence_count"`
}

// EventType представляет тип события монитора
type EventType string

const (
	EventVerdictChanged   EventType = "verdict_changed"
	EventStateChanged     EventType = "state_changed"
	EventAlert            EventType = "alert"
	EventEvidenceCaptured EventType = "evidence_captured"
)

// Event представляет событие монитора для подписчиков
type Event struct {
	Type      EventType        `json:"type"`
	MonitorID string           `json:"monitor_id"`
	At        time.Time        `json:"at"`
	State     State            `json:"state"`
	Verdict   *posture.Verdict `json:"verdict,omitempty"`
	Message   string           `json:"message,omitempty"`
	Alert     *Alert           `json:"alert,omitempty"`
	Evidence  *Evidence        `json:"evidence,omitempty"`
	Record    *SessionRecord   `json:"record,omitempty"`
}

// Observer получает события монитора. Вызывается вне блокировки монитора.
type Observer interface {
	OnEvent(ev Event)
}

// ObserverFunc адаптирует функцию к Observer
type ObserverFunc func(ev Event)

func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

// Observers рассылает событие нескольким подписчикам по порядку
type Observers []Observer

func (o Observers) OnEvent(ev Event) {
	for _, observer := range o {
		if observer != nil {
			observer.OnEvent(ev)
		}
	}
}

// BaselineResponse представляет ответ с эталонной позой
type BaselineResponse struct {
	MonitorID string      `json:"monitor_id"`
	Baseline  *pose.Frame `json:"baseline"`
}

// AlertDelayRequest представляет запрос на изменение задержки оповещения
type AlertDelayRequest struct {
	Seconds float64 `json:"seconds"`
}
