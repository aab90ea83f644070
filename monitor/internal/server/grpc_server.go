package server

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
	"github.com/Krimson/posture-monitory/monitor/internal/session"
	"github.com/Krimson/posture-monitory/proto/keypoint"
)

// FramePublisher принимает кадры и отдает состояние монитора
type FramePublisher interface {
	Publish(ctx context.Context, monitorID string, frame *pose.Frame, image []byte) (bool, error)
	View(monitorID string) (*session.MonitorView, error)
}

// KeypointServer реализует keypoint.KeypointServiceServer
type KeypointServer struct {
	ackEveryN int
	publisher FramePublisher
}

// NewKeypointServer создает новый экземпляр KeypointServer
func NewKeypointServer(ackEveryN int, publisher FramePublisher) *KeypointServer {
	if ackEveryN <= 0 {
		ackEveryN = 1
	}
	return &KeypointServer{
		ackEveryN: ackEveryN,
		publisher: publisher,
	}
}

// PushFrames обрабатывает стрим кадров от клиента
func (s *KeypointServer) PushFrames(stream keypoint.KeypointService_PushFramesServer) error {
	log.Printf("[INFO] New PushFrames stream started")

	// Счетчики для Ack по мониторам
	counters := make(map[string]uint64)

	for {
		msg, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				log.Printf("[INFO] PushFrames stream finished normally")
				return nil
			}
			if stream.Context().Err() != nil {
				log.Printf("[INFO] PushFrames stream context cancelled")
				return stream.Context().Err()
			}
			log.Printf("[ERROR] Failed to receive frame: %v", err)
			return err
		}

		if msg.MonitorID == "" {
			return status.Error(codes.InvalidArgument, "monitor_id is required")
		}

		if _, err := s.publisher.Publish(stream.Context(), msg.MonitorID, ToFrame(msg), msg.Image); err != nil {
			if errors.Is(err, session.ErrInvalidMonitorID) {
				return status.Error(codes.InvalidArgument, err.Error())
			}
			log.Printf("[WARN] Failed to publish frame for monitor %s: %v", msg.MonitorID, err)
			continue
		}

		counters[msg.MonitorID]++
		received := counters[msg.MonitorID]

		// Отправляем Ack каждые ackEveryN кадров монитора
		if received%uint64(s.ackEveryN) != 0 {
			continue
		}

		ack := s.buildAck(msg.MonitorID, received)
		if err := stream.Send(ack); err != nil {
			log.Printf("[ERROR] Failed to send ack: %v", err)
			return err
		}
	}
}

func (s *KeypointServer) buildAck(monitorID string, received uint64) *keypoint.Ack {
	ack := &keypoint.Ack{
		MonitorID: monitorID,
		Received:  received,
	}

	view, err := s.publisher.View(monitorID)
	if err != nil {
		return ack
	}
	ack.State = string(view.State)
	ack.Verdict = view.Verdict.String()
	ack.Message = view.Message
	return ack
}

// ToFrame переводит сообщение в кадр. Кадр без позы превращается в nil.
func ToFrame(msg *keypoint.FrameMessage) *pose.Frame {
	if !msg.Detected {
		return nil
	}

	frame := &pose.Frame{
		Keypoints: make([]pose.Keypoint, 0, len(msg.Keypoints)),
		Width:     msg.Width,
		Height:    msg.Height,
	}
	if msg.TsMS > 0 {
		frame.CapturedAt = time.UnixMilli(msg.TsMS)
	}
	for _, kp := range msg.Keypoints {
		frame.Keypoints = append(frame.Keypoints, pose.Keypoint{
			Name:  kp.Name,
			X:     kp.X,
			Y:     kp.Y,
			Score: kp.Score,
		})
	}
	return frame
}
