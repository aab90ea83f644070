package keypoint

import (
	"context"
	"io"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

// echoServer подтверждает каждый кадр
type echoServer struct {
	frames []*FrameMessage
}

func (s *echoServer) PushFrames(stream KeypointService_PushFramesServer) error {
	for {
		frame, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		s.frames = append(s.frames, frame)

		if err := stream.Send(&Ack{
			MonitorID: frame.MonitorID,
			Received:  uint64(len(s.frames)),
			State:     "IDLE",
		}); err != nil {
			return err
		}
	}
}

func TestKeypointService_PushFrames(t *testing.T) {
	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	echo := &echoServer{}
	RegisterKeypointServiceServer(server, echo)
	go server.Serve(listener)
	defer server.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer conn.Close()

	stream, err := NewKeypointServiceClient(conn).PushFrames(context.Background())
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}

	frame := &FrameMessage{
		MonitorID: "desk-1",
		TsMS:      1767258000123,
		Detected:  true,
		Width:     640,
		Height:    480,
		Keypoints: []Keypoint{
			{Name: "nose", X: 320.5, Y: 120, Score: 0.98},
			{Name: "left_shoulder", X: 250, Y: 260, Score: 0.9},
		},
		Image: []byte{0xff, 0xd8, 0xff},
	}
	if err := stream.Send(frame); err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}

	ack, err := stream.Recv()
	if err != nil {
		t.Fatalf("Failed to receive ack: %v", err)
	}
	if ack.MonitorID != "desk-1" || ack.Received != 1 || ack.State != "IDLE" {
		t.Errorf("Unexpected ack: %+v", ack)
	}

	stream.CloseSend()
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("Expected EOF after close, got %v", err)
	}

	got := echo.frames[0]
	if got.TsMS != frame.TsMS || !got.Detected || len(got.Keypoints) != 2 {
		t.Errorf("Frame changed in transit: %+v", got)
	}
	if got.Keypoints[0].X != 320.5 || string(got.Image) != string(frame.Image) {
		t.Errorf("Keypoint or image changed in transit: %+v", got)
	}
}
