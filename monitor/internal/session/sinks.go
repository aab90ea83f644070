package session

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrNoImage возвращается, когда клиент еще не прислал ни одного видеокадра
var ErrNoImage = errors.New("no video frame available")

// AlertSink доставляет оповещение пользователю. Ошибки доставки остаются на стороне sink.
type AlertSink interface {
	NotifyBadPosture(ctx context.Context, alert Alert)
}

// CaptureSink возвращает изображение текущего видеокадра
type CaptureSink interface {
	Capture(ctx context.Context) ([]byte, error)
}

// LogSink пишет оповещения в лог
type LogSink struct{}

func (LogSink) NotifyBadPosture(ctx context.Context, alert Alert) {
	log.Printf("[ALERT] monitor=%s session=%s reasons=%s bad_for=%s",
		alert.MonitorID,
		alert.SessionID,
		alert.Reasons,
		alert.FiredAt.Sub(alert.BadSince))
}

// AlertSinks рассылает оповещение нескольким sink
type AlertSinks []AlertSink

func (s AlertSinks) NotifyBadPosture(ctx context.Context, alert Alert) {
	for _, sink := range s {
		if sink != nil {
			sink.NotifyBadPosture(ctx, alert)
		}
	}
}

type nopAlertSink struct{}

func (nopAlertSink) NotifyBadPosture(context.Context, Alert) {}

// LatestImage хранит последний присланный клиентом видеокадр и отдает его как доказательство
type LatestImage struct {
	mu    sync.RWMutex
	image []byte
}

// NewLatestImage создает пустой буфер кадра
func NewLatestImage() *LatestImage {
	return &LatestImage{}
}

// Update заменяет сохраненный кадр
func (l *LatestImage) Update(image []byte) {
	if len(image) == 0 {
		return
	}
	imageCopy := make([]byte, len(image))
	copy(imageCopy, image)

	l.mu.Lock()
	l.image = imageCopy
	l.mu.Unlock()
}

// Capture возвращает копию последнего кадра
func (l *LatestImage) Capture(ctx context.Context) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.image) == 0 {
		return nil, ErrNoImage
	}
	imageCopy := make([]byte, len(l.image))
	copy(imageCopy, l.image)
	return imageCopy, nil
}
