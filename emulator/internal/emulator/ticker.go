package emulator

import (
	"context"
	"math/rand"
	"time"
)

// Ticker задает ритм кадров со случайным отклонением
type Ticker struct {
	interval time.Duration
	jitter   time.Duration // Случайное отклонение для реалистичности
}

func NewTicker(interval, jitter time.Duration) *Ticker {
	if jitter >= interval {
		jitter = interval / 2
	}
	return &Ticker{
		interval: interval,
		jitter:   jitter,
	}
}

// Tick возвращает канал, который отправляет метки времени с заданным интервалом.
// Канал закрывается при отмене контекста.
func (t *Ticker) Tick(ctx context.Context) <-chan time.Time {
	tickChan := make(chan time.Time)

	go func() {
		defer close(tickChan)

		// Первый тик сразу
		select {
		case tickChan <- time.Now():
		case <-ctx.Done():
			return
		}

		for {
			timer := time.NewTimer(t.next())
			select {
			case tickTime := <-timer.C:
				select {
				case tickChan <- tickTime:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()

	return tickChan
}

// next интервал до следующего тика с учетом отклонения
func (t *Ticker) next() time.Duration {
	if t.jitter <= 0 {
		return t.interval
	}
	return t.interval + time.Duration(float64(t.jitter)*(rand.Float64()*2-1))
}
