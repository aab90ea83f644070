package feed

import (
	"context"
	"time"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
)

// Item представляет один кадр, полученный от клиента
type Item struct {
	MonitorID  string      // Идентификатор монитора
	Frame      *pose.Frame // nil, если поза не найдена
	ReceivedAt time.Time   // Время приема кадра сервером
	Idle       bool        // Синтетический кадр: клиент молчит дольше IdleTimeout
}

// Sink интерфейс для обработки кадров
type Sink interface {
	Consume(ctx context.Context, item Item) error
}

// SinkFunc адаптирует функцию к Sink
type SinkFunc func(ctx context.Context, item Item) error

func (f SinkFunc) Consume(ctx context.Context, item Item) error { return f(ctx, item) }

// Stats статистика насоса
type Stats struct {
	Received  int64 `json:"received"`
	Dropped   int64 `json:"dropped"`
	Processed int64 `json:"processed"`
	Idle      int64 `json:"idle"`
}
