package pose

import "time"

// Имена суставов, без которых оценка осанки невозможна
const (
	Nose          = "nose"
	LeftShoulder  = "left_shoulder"
	RightShoulder = "right_shoulder"
)

// RequiredJoints перечисляет обязательные суставы кадра
var RequiredJoints = []string{Nose, LeftShoulder, RightShoulder}

// Keypoint представляет одну точку скелета в координатах видеокадра (пиксели, y вниз)
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Dimensions описывает разрешение видеокадра
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero сообщает, что разрешение неизвестно
func (d Dimensions) IsZero() bool {
	return d.Width <= 0 || d.Height <= 0
}

// Frame представляет набор ключевых точек за один момент времени.
// nil *Frame означает, что поза в кадре не обнаружена.
type Frame struct {
	Keypoints  []Keypoint `json:"keypoints"`
	Width      float64    `json:"width,omitempty"`
	Height     float64    `json:"height,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
}

// Dimensions возвращает разрешение кадра
func (f *Frame) Dimensions() Dimensions {
	if f == nil {
		return Dimensions{}
	}
	return Dimensions{Width: f.Width, Height: f.Height}
}

// Lookup ищет точку по имени. Точка со score ниже minScore считается отсутствующей.
func (f *Frame) Lookup(name string, minScore float64) (Keypoint, bool) {
	if f == nil {
		return Keypoint{}, false
	}
	for _, kp := range f.Keypoints {
		if kp.Name == name {
			if kp.Score < minScore {
				return Keypoint{}, false
			}
			return kp, true
		}
	}
	return Keypoint{}, false
}

// HasRequired проверяет наличие всех обязательных суставов
func (f *Frame) HasRequired(minScore float64) bool {
	for _, name := range RequiredJoints {
		if _, ok := f.Lookup(name, minScore); !ok {
			return false
		}
	}
	return true
}

// Clone создает независимую копию кадра
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	keypoints := make([]Keypoint, len(f.Keypoints))
	copy(keypoints, f.Keypoints)

	return &Frame{
		Keypoints:  keypoints,
		Width:      f.Width,
		Height:     f.Height,
		CapturedAt: f.CapturedAt,
	}
}
