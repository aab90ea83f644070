package posture

import (
	"math"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
)

// Thresholds задает допуски отклонения от эталона в пикселях исходного разрешения
type Thresholds struct {
	Horizontal float64 `yaml:"horizontal" json:"horizontal"`
	Level      float64 `yaml:"level" json:"level"`
	Vertical   float64 `yaml:"vertical" json:"vertical"`
}

// DefaultThresholds возвращает допуски по умолчанию
func DefaultThresholds() Thresholds {
	return Thresholds{
		Horizontal: 60,
		Level:      30,
		Vertical:   30,
	}
}

// ScaledTo пересчитывает допуски из эталонного разрешения в фактическое.
// Горизонтальный допуск масштабируется по ширине, вертикальные по высоте.
func (t Thresholds) ScaledTo(ref, actual pose.Dimensions) Thresholds {
	if ref.IsZero() || actual.IsZero() {
		return t
	}
	sx := actual.Width / ref.Width
	sy := actual.Height / ref.Height

	return Thresholds{
		Horizontal: t.Horizontal * sx,
		Level:      t.Level * sy,
		Vertical:   t.Vertical * sy,
	}
}

// Options настраивает классификатор
type Options struct {
	Thresholds Thresholds
	// MinKeypointScore отбрасывает точки с меньшей уверенностью. 0 отключает фильтр.
	MinKeypointScore float64
	// ScaleToFrame включает пересчет допусков под разрешение текущего кадра
	ScaleToFrame bool
	Reference    pose.Dimensions
}

// DefaultOptions возвращает настройки по умолчанию (эталон 640x480, без масштабирования)
func DefaultOptions() Options {
	return Options{
		Thresholds: DefaultThresholds(),
		Reference:  pose.Dimensions{Width: 640, Height: 480},
	}
}

// Classifier сравнивает текущий кадр с эталонным. Не хранит состояния между вызовами.
type Classifier struct {
	opts Options
}

// NewClassifier создает классификатор
func NewClassifier(opts Options) *Classifier {
	return &Classifier{opts: opts}
}

// Options возвращает настройки классификатора
func (c *Classifier) Options() Options {
	return c.opts
}

// Measurements содержит производные величины одного кадра
type Measurements struct {
	ShoulderMidX     float64 `json:"shoulder_mid_x"`
	HorizontalOffset float64 `json:"horizontal_offset"`
	ShoulderLevelGap float64 `json:"shoulder_level_gap"`
	AvgShoulderY     float64 `json:"avg_shoulder_y"`
}

// Measure вычисляет производные величины кадра. ok=false, если не хватает суставов.
func (c *Classifier) Measure(frame *pose.Frame) (Measurements, bool) {
	nose, ok := frame.Lookup(pose.Nose, c.opts.MinKeypointScore)
	if !ok {
		return Measurements{}, false
	}
	left, ok := frame.Lookup(pose.LeftShoulder, c.opts.MinKeypointScore)
	if !ok {
		return Measurements{}, false
	}
	right, ok := frame.Lookup(pose.RightShoulder, c.opts.MinKeypointScore)
	if !ok {
		return Measurements{}, false
	}

	midX := (left.X + right.X) / 2
	return Measurements{
		ShoulderMidX:     midX,
		HorizontalOffset: math.Abs(nose.X - midX),
		ShoulderLevelGap: math.Abs(left.Y - right.Y),
		AvgShoulderY:     (left.Y + right.Y) / 2,
	}, true
}

// Classify выносит вердикт по текущему кадру относительно эталона.
// current == nil означает, что поза не обнаружена.
func (c *Classifier) Classify(current, baseline *pose.Frame) Verdict {
	if current == nil {
		return NoPoseDetected
	}
	if baseline == nil {
		return AwaitingBaseline
	}

	cur, ok := c.Measure(current)
	if !ok {
		return KeypointsMissing
	}
	base, ok := c.Measure(baseline)
	if !ok {
		return KeypointsMissing
	}

	th := c.opts.Thresholds
	if c.opts.ScaleToFrame {
		th = th.ScaledTo(c.opts.Reference, current.Dimensions())
	}

	var reasons ReasonSet

	if cur.AvgShoulderY > base.AvgShoulderY+th.Vertical {
		reasons = reasons.With(ShouldersLower)
	}

	// Поднятые плечи сами по себе не причина, они засчитываются как наклон вперед
	shoulderHigher := cur.AvgShoulderY+th.Vertical < base.AvgShoulderY
	if cur.HorizontalOffset > base.HorizontalOffset+th.Horizontal || shoulderHigher {
		reasons = reasons.With(LeaningForward)
	}

	if cur.ShoulderLevelGap > base.ShoulderLevelGap+th.Level {
		reasons = reasons.With(Tilting)
	}

	if reasons.IsEmpty() {
		return Good
	}
	return BadPosture(reasons)
}
