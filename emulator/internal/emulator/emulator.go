package emulator

import (
	"context"
	"log"
	"time"

	"github.com/Krimson/posture-monitory/emulator/internal/profile"
	"github.com/Krimson/posture-monitory/emulator/internal/senders"
)

// Config параметры прогона эмулятора
type Config struct {
	Rate     time.Duration // интервал между кадрами
	Jitter   time.Duration
	Duration time.Duration // 0 - до отмены контекста
}

// Stats итог прогона
type Stats struct {
	Sent   int64
	Failed int64
	Absent int64
}

type Emulator struct {
	generator *profile.Generator
	sender    senders.FrameSender
	config    Config
}

func NewEmulator(generator *profile.Generator, sender senders.FrameSender, cfg Config) *Emulator {
	return &Emulator{
		generator: generator,
		sender:    sender,
		config:    cfg,
	}
}

// Run генерирует и отправляет кадры, пока не истечет время или не отменят контекст
func (e *Emulator) Run(ctx context.Context) Stats {
	if e.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Duration)
		defer cancel()
	}

	log.Printf("[INFO] Starting emulator for %v with rate %v", e.config.Duration, e.config.Rate)

	var (
		stats     Stats
		started   time.Time
		lastPhase string
	)

	for tick := range NewTicker(e.config.Rate, e.config.Jitter).Tick(ctx) {
		if started.IsZero() {
			started = tick
		}

		frame, phase := e.generator.Next(tick, tick.Sub(started))
		if phase.Name != lastPhase {
			log.Printf("[PHASE] %s", phase.Name)
			lastPhase = phase.Name
		}
		if phase.Absent {
			stats.Absent++
		}

		if err := e.sender.Send(frame); err != nil {
			stats.Failed++
			log.Printf("[ERROR] Send error: %v", err)
			continue
		}
		stats.Sent++
	}

	log.Printf("[STATS] Emulator stopped: sent=%d failed=%d absent=%d", stats.Sent, stats.Failed, stats.Absent)
	return stats
}
