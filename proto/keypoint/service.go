package keypoint

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "posture.v1.KeypointService"

	pushFramesMethod = "/posture.v1.KeypointService/PushFrames"
)

// KeypointServiceServer серверная часть сервиса
type KeypointServiceServer interface {
	PushFrames(KeypointService_PushFramesServer) error
}

// KeypointService_PushFramesServer двунаправленный поток на стороне сервера
type KeypointService_PushFramesServer interface {
	Send(*Ack) error
	Recv() (*FrameMessage, error)
	grpc.ServerStream
}

var KeypointService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KeypointServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "PushFrames",
			Handler:       _KeypointService_PushFrames_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "posture/v1/keypoint.proto",
}

// RegisterKeypointServiceServer регистрирует сервис на gRPC сервере
func RegisterKeypointServiceServer(s grpc.ServiceRegistrar, srv KeypointServiceServer) {
	s.RegisterService(&KeypointService_ServiceDesc, srv)
}

func _KeypointService_PushFrames_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(KeypointServiceServer).PushFrames(&pushFramesServer{stream})
}

type pushFramesServer struct {
	grpc.ServerStream
}

func (x *pushFramesServer) Send(ack *Ack) error {
	s, err := ToStruct(ack)
	if err != nil {
		return err
	}
	return x.ServerStream.SendMsg(s)
}

func (x *pushFramesServer) Recv() (*FrameMessage, error) {
	s := &structpb.Struct{}
	if err := x.ServerStream.RecvMsg(s); err != nil {
		return nil, err
	}

	frame := &FrameMessage{}
	if err := FromStruct(s, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// KeypointServiceClient клиентская часть сервиса
type KeypointServiceClient interface {
	PushFrames(ctx context.Context, opts ...grpc.CallOption) (KeypointService_PushFramesClient, error)
}

// KeypointService_PushFramesClient двунаправленный поток на стороне клиента
type KeypointService_PushFramesClient interface {
	Send(*FrameMessage) error
	Recv() (*Ack, error)
	grpc.ClientStream
}

type keypointServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewKeypointServiceClient(cc grpc.ClientConnInterface) KeypointServiceClient {
	return &keypointServiceClient{cc}
}

func (c *keypointServiceClient) PushFrames(ctx context.Context, opts ...grpc.CallOption) (KeypointService_PushFramesClient, error) {
	stream, err := c.cc.NewStream(ctx, &KeypointService_ServiceDesc.Streams[0], pushFramesMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &pushFramesClient{stream}, nil
}

type pushFramesClient struct {
	grpc.ClientStream
}

func (x *pushFramesClient) Send(frame *FrameMessage) error {
	s, err := ToStruct(frame)
	if err != nil {
		return err
	}
	return x.ClientStream.SendMsg(s)
}

func (x *pushFramesClient) Recv() (*Ack, error) {
	s := &structpb.Struct{}
	if err := x.ClientStream.RecvMsg(s); err != nil {
		return nil, err
	}

	ack := &Ack{}
	if err := FromStruct(s, ack); err != nil {
		return nil, err
	}
	return ack, nil
}
