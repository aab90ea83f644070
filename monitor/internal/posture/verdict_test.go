package posture

import (
	"encoding/json"
	"testing"
)

func TestVerdict_Message(t *testing.T) {
	tests := []struct {
		verdict Verdict
		want    string
	}{
		{Good, "Good posture"},
		{NoPoseDetected, "No pose detected"},
		{KeypointsMissing, "Essential keypoints missing"},
		{AwaitingBaseline, "Set your ideal posture"},
		{BadPosture(ReasonSet(LeaningForward).With(Tilting)), "Leaning forward and tilting"},
		{BadPosture(ReasonSet(LeaningForward).With(ShouldersLower)), "Leaning forward"},
		{BadPosture(ReasonSet(Tilting)), "Tilting"},
		{BadPosture(ReasonSet(ShouldersLower)), "Shoulders lower"},
	}

	for _, tt := range tests {
		if got := tt.verdict.Message(); got != tt.want {
			t.Errorf("%v.Message() = %q, want %q", tt.verdict, got, tt.want)
		}
	}
}

func TestReasonSet_JSON(t *testing.T) {
	set := ReasonSet(ShouldersLower).With(LeaningForward)

	data, err := json.Marshal(BadPosture(set))
	if err != nil {
		t.Fatalf("Failed to marshal verdict: %v", err)
	}

	want := `{"kind":"BAD_POSTURE","reasons":["leaning_forward","shoulders_lower"]}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}

	var decoded Verdict
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal verdict: %v", err)
	}
	if decoded.Reasons != set {
		t.Errorf("Expected reasons %v, got %v", set, decoded.Reasons)
	}
}

func TestVerdict_Predicates(t *testing.T) {
	if !Good.IsGood() || Good.IsInconclusive() {
		t.Error("Good verdict predicates are wrong")
	}
	if !BadPosture(ReasonSet(Tilting)).IsBad() {
		t.Error("BadPosture verdict should be bad")
	}
	for _, v := range []Verdict{NoPoseDetected, KeypointsMissing, AwaitingBaseline} {
		if !v.IsInconclusive() {
			t.Errorf("%v should be inconclusive", v)
		}
	}
}
