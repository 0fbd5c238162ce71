package gameserver

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AbilityServiceName is the fully-qualified gRPC service name.
const AbilityServiceName = "actioncore.ability.v1.AbilityService"

const (
	methodPerform       = "/" + AbilityServiceName + "/Perform"
	methodListActions   = "/" + AbilityServiceName + "/ListActions"
	methodReloadCatalog = "/" + AbilityServiceName + "/ReloadCatalog"
	methodCommand       = "/" + AbilityServiceName + "/Command"
	methodConnect       = "/" + AbilityServiceName + "/Connect"
)

// AbilityServer is the server API for AbilityService. Every message is a
// google.protobuf.Struct.
type AbilityServer interface {
	Perform(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReloadCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Command(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Connect(*structpb.Struct, grpc.ServerStream) error
}

// RegisterAbilityServer registers srv on s.
func RegisterAbilityServer(s grpc.ServiceRegistrar, srv AbilityServer) {
	s.RegisterService(&AbilityServiceDesc, srv)
}

func unaryHandler(method string, call func(AbilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AbilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AbilityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AbilityServer).Connect(in, stream)
}

// AbilityServiceDesc describes AbilityService for grpc.Server.RegisterService.
var AbilityServiceDesc = grpc.ServiceDesc{
	ServiceName: AbilityServiceName,
	HandlerType: (*AbilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Perform", Handler: unaryHandler(methodPerform, AbilityServer.Perform)},
		{MethodName: "ListActions", Handler: unaryHandler(methodListActions, AbilityServer.ListActions)},
		{MethodName: "ReloadCatalog", Handler: unaryHandler(methodReloadCatalog, AbilityServer.ReloadCatalog)},
		{MethodName: "Command", Handler: unaryHandler(methodCommand, AbilityServer.Command)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Connect", Handler: connectHandler, ServerStreams: true},
	},
}

// AbilityClient is a client for AbilityService.
type AbilityClient struct {
	cc grpc.ClientConnInterface
}

// NewAbilityClient creates a client over cc.
func NewAbilityClient(cc grpc.ClientConnInterface) *AbilityClient {
	return &AbilityClient{cc: cc}
}

func (c *AbilityClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Perform calls AbilityService.Perform.
func (c *AbilityClient) Perform(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodPerform, in, opts...)
}

// ListActions calls AbilityService.ListActions.
func (c *AbilityClient) ListActions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListActions, in, opts...)
}

// ReloadCatalog calls AbilityService.ReloadCatalog.
func (c *AbilityClient) ReloadCatalog(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodReloadCatalog, in, opts...)
}

// Command calls AbilityService.Command.
func (c *AbilityClient) Command(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCommand, in, opts...)
}

// EventStream receives the events of a Connect call.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv returns the next event, or io.EOF when the server ended the stream.
func (s *EventStream) Recv() (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Connect opens AbilityService.Connect.
func (c *AbilityClient) Connect(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &AbilityServiceDesc.Streams[0], methodConnect, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil && err != io.EOF {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}
