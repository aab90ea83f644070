package senders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Krimson/posture-monitory/proto/keypoint"
)

// GRPCSender передает кадры в монитор через поток PushFrames
type GRPCSender struct {
	conn   *grpc.ClientConn
	stream keypoint.KeypointService_PushFramesClient
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	acks   chan *keypoint.Ack
	done   chan struct{}
}

// NewGRPCSender подключается к серверу и открывает поток
func NewGRPCSender(ctx context.Context, serverAddr string) (*GRPCSender, error) {
	conn, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gRPC server: %w", err)
	}

	sender, err := NewGRPCSenderFromConn(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sender.conn = conn
	return sender, nil
}

// NewGRPCSenderFromConn открывает поток поверх готового соединения
func NewGRPCSenderFromConn(ctx context.Context, cc grpc.ClientConnInterface) (*GRPCSender, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	stream, err := keypoint.NewKeypointServiceClient(cc).PushFrames(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	g := &GRPCSender{
		stream: stream,
		cancel: cancel,
		acks:   make(chan *keypoint.Ack, 16),
		done:   make(chan struct{}),
	}
	go g.receiveAcks()
	return g, nil
}

func (g *GRPCSender) Send(frame *keypoint.FrameMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	if err := g.stream.Send(frame); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// Acks канал подтверждений. Закрывается, когда сервер завершает поток.
func (g *GRPCSender) Acks() <-chan *keypoint.Ack {
	return g.acks
}

func (g *GRPCSender) receiveAcks() {
	defer close(g.done)
	defer close(g.acks)

	for {
		ack, err := g.stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("[WARN] Ack stream ended: %v", err)
			}
			return
		}
		log.Printf("[ACK] monitor=%s received=%d state=%s verdict=%s",
			ack.MonitorID, ack.Received, ack.State, ack.Message)

		select {
		case g.acks <- ack:
		default:
			// никто не читает подтверждения
		}
	}
}

// Close завершает отправку и дожидается закрытия потока сервером
func (g *GRPCSender) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	err := g.stream.CloseSend()
	g.mu.Unlock()

	<-g.done
	g.cancel()

	if g.conn != nil {
		if cerr := g.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
