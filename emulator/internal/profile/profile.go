package profile

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Krimson/posture-monitory/proto/keypoint"
)

var ErrUnknownProfile = errors.New("unknown profile")

// Phase отрезок сценария с постоянным смещением позы относительно нейтральной
type Phase struct {
	Name     string
	Duration time.Duration
	NoseDX   float64 // наклон вбок, пиксели
	TiltDY   float64 // разница высот плеч
	SinkDY   float64 // оседание корпуса вниз по кадру
	Absent   bool    // человек вне кадра
}

// Profile сценарий, который повторяется по кругу
type Profile struct {
	Name   string
	Phases []Phase
}

// Total длительность одного круга сценария
func (p Profile) Total() time.Duration {
	var total time.Duration
	for _, phase := range p.Phases {
		total += phase.Duration
	}
	return total
}

// PhaseAt возвращает фазу для времени от начала эмуляции
func (p Profile) PhaseAt(elapsed time.Duration) Phase {
	total := p.Total()
	if total <= 0 || len(p.Phases) == 0 {
		return Phase{Name: "good"}
	}

	offset := elapsed % total
	for _, phase := range p.Phases {
		if offset < phase.Duration {
			return phase
		}
		offset -= phase.Duration
	}
	return p.Phases[len(p.Phases)-1]
}

var profiles = map[string]Profile{
	"default": {
		Name: "default",
		Phases: []Phase{
			{Name: "good", Duration: 10 * time.Second},
			{Name: "leaning", Duration: 8 * time.Second, NoseDX: 90},
			{Name: "good", Duration: 5 * time.Second},
			{Name: "tilting", Duration: 8 * time.Second, TiltDY: 45},
			{Name: "good", Duration: 10 * time.Second},
		},
	},
	"slouch": {
		Name: "slouch",
		Phases: []Phase{
			{Name: "good", Duration: 5 * time.Second},
			{Name: "slouch", Duration: 15 * time.Second, SinkDY: 50},
			{Name: "slouch+lean", Duration: 5 * time.Second, SinkDY: 50, NoseDX: 70},
			{Name: "good", Duration: 5 * time.Second},
		},
	},
	"absent": {
		Name: "absent",
		Phases: []Phase{
			{Name: "good", Duration: 5 * time.Second},
			{Name: "away", Duration: 10 * time.Second, Absent: true},
			{Name: "leaning", Duration: 10 * time.Second, NoseDX: -90},
		},
	},
}

// Lookup находит сценарий по имени
func Lookup(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// Names список доступных сценариев
func Names() []string {
	return []string{"default", "slouch", "absent"}
}

// GeneratorConfig параметры синтеза кадров
type GeneratorConfig struct {
	MonitorID string
	Width     float64
	Height    float64
	Noise     float64 // амплитуда дрожания точек, пиксели
	Score     float64
	Seed      int64
	Image     []byte // прикладывается к каждому кадру с позой
}

// Generator синтезирует кадры с ключевыми точками по сценарию
type Generator struct {
	profile Profile
	config  GeneratorConfig
	rng     *rand.Rand
}

func NewGenerator(p Profile, cfg GeneratorConfig) *Generator {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	if cfg.Score <= 0 {
		cfg.Score = 0.9
	}
	return &Generator{
		profile: p,
		config:  cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Next возвращает кадр для момента now, elapsed отсчитывается от старта
func (g *Generator) Next(now time.Time, elapsed time.Duration) (*keypoint.FrameMessage, Phase) {
	phase := g.profile.PhaseAt(elapsed)

	msg := &keypoint.FrameMessage{
		MonitorID: g.config.MonitorID,
		TsMS:      now.UnixMilli(),
		Width:     g.config.Width,
		Height:    g.config.Height,
	}
	if phase.Absent {
		return msg, phase
	}

	// Нейтральная поза: нос по центру, плечи на 60% высоты
	centerX := g.config.Width / 2
	shoulderY := g.config.Height*0.6 + phase.SinkDY
	noseY := g.config.Height*0.35 + phase.SinkDY
	halfSpan := g.config.Width * 0.15

	msg.Detected = true
	msg.Image = g.config.Image
	msg.Keypoints = []keypoint.Keypoint{
		g.point(keypoint.NoseName, centerX+phase.NoseDX, noseY),
		g.point(keypoint.LeftShoulderName, centerX-halfSpan, shoulderY-phase.TiltDY/2),
		g.point(keypoint.RightShoulderName, centerX+halfSpan, shoulderY+phase.TiltDY/2),
	}
	return msg, phase
}

func (g *Generator) point(name string, x, y float64) keypoint.Keypoint {
	return keypoint.Keypoint{
		Name:  name,
		X:     x + g.jitter(),
		Y:     y + g.jitter(),
		Score: g.config.Score,
	}
}

func (g *Generator) jitter() float64 {
	if g.config.Noise <= 0 {
		return 0
	}
	return g.config.Noise * (g.rng.Float64()*2 - 1)
}
