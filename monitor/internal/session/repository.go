package session

import (
	"context"
	"time"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
)

// Repository определяет интерфейс архива завершенных сессий (Domain Layer)
type Repository interface {
	// Сессии
	SaveSession(ctx context.Context, record *SessionRecord) error
	ListSessions(ctx context.Context, monitorID string, limit, offset int) ([]*SessionRecord, error)

	// Оповещения и снимки
	SaveAlert(ctx context.Context, alert Alert) error
	SaveEvidence(ctx context.Context, evidence Evidence) error
	ListEvidence(ctx context.Context, monitorID, sessionID string) ([]Evidence, error)

	DeleteMonitor(ctx context.Context, monitorID string) error
	Ping(ctx context.Context) error
}

// CacheStore определяет интерфейс оперативного состояния мониторов (Redis)
type CacheStore interface {
	// Эталонная поза, хранится с TTL
	SetBaseline(ctx context.Context, monitorID string, frame *pose.Frame) error
	GetBaseline(ctx context.Context, monitorID string) (*pose.Frame, error)
	DeleteBaseline(ctx context.Context, monitorID string) error

	// Задержка оповещения
	SetAlertDelay(ctx context.Context, monitorID string, delay time.Duration) error
	GetAlertDelay(ctx context.Context, monitorID string) (time.Duration, error)

	// Снимки текущей сессии (append-only, очищаются при старте)
	AppendEvidence(ctx context.Context, monitorID string, evidence Evidence) error
	GetEvidence(ctx context.Context, monitorID string) ([]Evidence, error)
	ClearEvidence(ctx context.Context, monitorID string) error

	DeleteMonitor(ctx context.Context, monitorID string) error
	Ping(ctx context.Context) error
}
