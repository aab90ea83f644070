// Package keypoint описывает поток кадров с ключевыми точками от клиента к монитору.
// Сообщения передаются как google.protobuf.Struct и разбираются через protojson.
package keypoint

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Имена точек, которые использует монитор осанки
const (
	NoseName          = "nose"
	LeftShoulderName  = "left_shoulder"
	RightShoulderName = "right_shoulder"
)

// Keypoint ключевая точка в пикселях кадра
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score,omitempty"`
}

// FrameMessage один кадр от клиента
type FrameMessage struct {
	MonitorID string     `json:"monitor_id"`
	TsMS      int64      `json:"ts_ms"`
	Detected  bool       `json:"detected"` // false - поза не найдена, точки игнорируются
	Width     float64    `json:"width,omitempty"`
	Height    float64    `json:"height,omitempty"`
	Keypoints []Keypoint `json:"keypoints,omitempty"`
	Image     []byte     `json:"image,omitempty"` // JPEG текущего видеокадра, необязателен
}

// Ack подтверждение приема, отправляется каждые N кадров
type Ack struct {
	MonitorID string `json:"monitor_id"`
	Received  uint64 `json:"received"`
	Verdict   string `json:"verdict"`
	Message   string `json:"message"`
	State     string `json:"state"`
}

// ToStruct кодирует сообщение в google.protobuf.Struct
func ToStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return s, nil
}

// FromStruct декодирует google.protobuf.Struct в сообщение
func FromStruct(s *structpb.Struct, v interface{}) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}
