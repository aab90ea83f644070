package posture

import (
	"encoding/json"
	"strings"
)

// Kind представляет категорию вердикта классификатора
type Kind string

const (
	KindGood             Kind = "GOOD"
	KindBadPosture       Kind = "BAD_POSTURE"
	KindNoPoseDetected   Kind = "NO_POSE_DETECTED"
	KindKeypointsMissing Kind = "KEYPOINTS_MISSING"
	KindAwaitingBaseline Kind = "AWAITING_BASELINE"
)

// Reason представляет одно отклонение от эталонной осанки
type Reason uint8

const (
	LeaningForward Reason = 1 << iota
	Tilting
	ShouldersLower
)

var reasonNames = []struct {
	reason Reason
	name   string
}{
	{LeaningForward, "leaning_forward"},
	{Tilting, "tilting"},
	{ShouldersLower, "shoulders_lower"},
}

func (r Reason) String() string {
	for _, rn := range reasonNames {
		if rn.reason == r {
			return rn.name
		}
	}
	return "unknown"
}

// ReasonSet хранит набор одновременных отклонений. Комбинации не схлопываются.
type ReasonSet uint8

// Has проверяет наличие причины в наборе
func (s ReasonSet) Has(r Reason) bool {
	return s&ReasonSet(r) != 0
}

// With возвращает набор с добавленной причиной
func (s ReasonSet) With(r Reason) ReasonSet {
	return s | ReasonSet(r)
}

// IsEmpty сообщает, что отклонений нет
func (s ReasonSet) IsEmpty() bool {
	return s == 0
}

// Reasons возвращает причины в каноническом порядке
func (s ReasonSet) Reasons() []Reason {
	reasons := make([]Reason, 0, len(reasonNames))
	for _, rn := range reasonNames {
		if s.Has(rn.reason) {
			reasons = append(reasons, rn.reason)
		}
	}
	return reasons
}

// Strings возвращает имена причин в каноническом порядке
func (s ReasonSet) Strings() []string {
	names := make([]string, 0, len(reasonNames))
	for _, r := range s.Reasons() {
		names = append(names, r.String())
	}
	return names
}

func (s ReasonSet) String() string {
	return strings.Join(s.Strings(), "+")
}

// MarshalJSON сериализует набор как массив имен
func (s ReasonSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON разбирает массив имен причин
func (s *ReasonSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set ReasonSet
	for _, name := range names {
		for _, rn := range reasonNames {
			if rn.name == name {
				set = set.With(rn.reason)
			}
		}
	}
	*s = set
	return nil
}

// Verdict представляет результат классификации одного кадра
type Verdict struct {
	Kind    Kind      `json:"kind"`
	Reasons ReasonSet `json:"reasons"`
}

var (
	Good             = Verdict{Kind: KindGood}
	NoPoseDetected   = Verdict{Kind: KindNoPoseDetected}
	KeypointsMissing = Verdict{Kind: KindKeypointsMissing}
	AwaitingBaseline = Verdict{Kind: KindAwaitingBaseline}
)

// BadPosture создает вердикт плохой осанки с непустым набором причин
func BadPosture(reasons ReasonSet) Verdict {
	return Verdict{Kind: KindBadPosture, Reasons: reasons}
}

// IsGood сообщает, что осанка в норме
func (v Verdict) IsGood() bool {
	return v.Kind == KindGood
}

// IsBad сообщает, что осанка отклонилась от эталона
func (v Verdict) IsBad() bool {
	return v.Kind == KindBadPosture
}

// IsInconclusive сообщает, что кадр не позволяет судить об осанке
func (v Verdict) IsInconclusive() bool {
	return !v.IsGood() && !v.IsBad()
}

// Message возвращает текст для пользователя. Приоритет сообщений повторяет
// исходный интерфейс: наклон и перекос вместе, затем по отдельности.
func (v Verdict) Message() string {
	switch v.Kind {
	case KindGood:
		return "Good posture"
	case KindNoPoseDetected:
		return "No pose detected"
	case KindKeypointsMissing:
		return "Essential keypoints missing"
	case KindAwaitingBaseline:
		return "Set your ideal posture"
	}

	lean := v.Reasons.Has(LeaningForward)
	tilt := v.Reasons.Has(Tilting)
	lower := v.Reasons.Has(ShouldersLower)

	switch {
	case lean && tilt:
		return "Leaning forward and tilting"
	case lean:
		return "Leaning forward"
	case tilt:
		return "Tilting"
	case lower:
		return "Shoulders lower"
	}
	return "Bad posture"
}

func (v Verdict) String() string {
	if v.IsBad() {
		return string(v.Kind) + "{" + v.Reasons.String() + "}"
	}
	return string(v.Kind)
}
