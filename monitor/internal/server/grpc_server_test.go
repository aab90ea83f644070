package server

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Krimson/posture-monitory/monitor/internal/pose"
	"github.com/Krimson/posture-monitory/monitor/internal/posture"
	"github.com/Krimson/posture-monitory/monitor/internal/session"
	"github.com/Krimson/posture-monitory/proto/keypoint"
)

// TestPublisher собирает опубликованные кадры
type TestPublisher struct {
	mu     sync.Mutex
	frames []*pose.Frame
	images [][]byte
}

func (tp *TestPublisher) Publish(ctx context.Context, monitorID string, frame *pose.Frame, image []byte) (bool, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.frames = append(tp.frames, frame)
	tp.images = append(tp.images, image)
	return true, nil
}

func (tp *TestPublisher) View(monitorID string) (*session.MonitorView, error) {
	return &session.MonitorView{Status: session.Status{
		MonitorID: monitorID,
		State:     session.StateMonitoringGood,
		Verdict:   posture.Good,
		Message:   posture.Good.Message(),
	}}, nil
}

func startServer(t *testing.T, ackEveryN int, publisher FramePublisher) keypoint.KeypointServiceClient {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	keypoint.RegisterKeypointServiceServer(server, NewKeypointServer(ackEveryN, publisher))
	go server.Serve(listener)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return keypoint.NewKeypointServiceClient(conn)
}

func TestKeypointServer_AckEveryN(t *testing.T) {
	publisher := &TestPublisher{}
	client := startServer(t, 3, publisher)

	stream, err := client.PushFrames(context.Background())
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}

	for i := 0; i < 6; i++ {
		msg := &keypoint.FrameMessage{
			MonitorID: "desk-1",
			TsMS:      int64(1000 + i),
			Detected:  i%2 == 0,
			Keypoints: []keypoint.Keypoint{{Name: pose.Nose, X: 100, Y: 50, Score: 0.9}},
			Image:     []byte{byte(i)},
		}
		if err := stream.Send(msg); err != nil {
			t.Fatalf("Failed to send frame: %v", err)
		}
	}
	stream.CloseSend()

	var acks []*keypoint.Ack
	for {
		ack, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to receive ack: %v", err)
		}
		acks = append(acks, ack)
	}

	if len(acks) != 2 {
		t.Fatalf("Expected 2 acks for 6 frames, got %d", len(acks))
	}
	if acks[0].Received != 3 || acks[1].Received != 6 {
		t.Errorf("Unexpected ack counters: %d, %d", acks[0].Received, acks[1].Received)
	}
	if acks[1].State != string(session.StateMonitoringGood) || acks[1].Message != "Good posture" {
		t.Errorf("Unexpected ack status: %+v", acks[1])
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if len(publisher.frames) != 6 {
		t.Fatalf("Expected 6 published frames, got %d", len(publisher.frames))
	}
	if publisher.frames[0] == nil || publisher.frames[1] != nil {
		t.Error("Expected undetected frames to be published as nil")
	}
	if publisher.images[5][0] != 5 {
		t.Error("Expected image to be forwarded")
	}
}

func TestKeypointServer_RejectsMissingMonitorID(t *testing.T) {
	client := startServer(t, 1, &TestPublisher{})

	stream, err := client.PushFrames(context.Background())
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	stream.Send(&keypoint.FrameMessage{Detected: false})

	_, err = stream.Recv()
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
}

func TestToFrame(t *testing.T) {
	if ToFrame(&keypoint.FrameMessage{Detected: false, Keypoints: []keypoint.Keypoint{{Name: "nose"}}}) != nil {
		t.Error("Undetected pose must map to nil frame")
	}

	frame := ToFrame(&keypoint.FrameMessage{
		Detected:  true,
		TsMS:      1500,
		Width:     1280,
		Height:    960,
		Keypoints: []keypoint.Keypoint{{Name: pose.LeftShoulder, X: 1, Y: 2, Score: 0.5}},
	})
	if frame.Width != 1280 || frame.CapturedAt.UnixMilli() != 1500 {
		t.Errorf("Unexpected frame: %+v", frame)
	}
	if kp, ok := frame.Lookup(pose.LeftShoulder, 0); !ok || kp.Y != 2 {
		t.Errorf("Expected left shoulder keypoint, got %+v", frame.Keypoints)
	}
}
