package senders

import (
	"errors"
	"fmt"

	"github.com/Krimson/posture-monitory/proto/keypoint"
)

// Ошибки отправителей
var (
	ErrSendFailed = errors.New("failed to send frame")
	ErrClosed     = errors.New("sender closed")
)

// FrameSender интерфейс для отправки кадров
type FrameSender interface {
	// Send отправляет один кадр
	Send(frame *keypoint.FrameMessage) error

	// Close освобождает ресурсы
	Close() error
}

// MultiSender отправляет кадр во все отправители по очереди
type MultiSender []FrameSender

func (m MultiSender) Send(frame *keypoint.FrameMessage) error {
	var errs []error
	for _, sender := range m {
		if err := sender.Send(frame); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrSendFailed, errors.Join(errs...))
	}
	return nil
}

func (m MultiSender) Close() error {
	var errs []error
	for _, sender := range m {
		if err := sender.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
