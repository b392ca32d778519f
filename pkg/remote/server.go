package remote

import (
	"context"

	"google.golang.org/grpc"
)

// GatewayServer is the server side of the gateway service. thumbgate only
// consumes it; the registration exists for in-process fakes and adapters.
type GatewayServer interface {
	JoinSession(context.Context, *JoinSessionRequest) (*JoinSessionReply, error)
	FindImages(context.Context, *FindImagesRequest) (*FindImagesReply, error)
	GetThumbnailByLongestSideSet(context.Context, *ThumbnailsRequest) (*ThumbnailsReply, error)
	CloseSession(context.Context, *CloseSessionRequest) (*CloseSessionReply, error)
}

// RegisterGatewayServer registers srv on s.
func RegisterGatewayServer(s grpc.ServiceRegistrar, srv GatewayServer) {
	s.RegisterService(&gatewayServiceDesc, srv)
}

var gatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodJoinSession, Handler: unary(MethodJoinSession, func(srv GatewayServer, ctx context.Context, in *JoinSessionRequest) (any, error) {
			return srv.JoinSession(ctx, in)
		})},
		{MethodName: MethodFindImages, Handler: unary(MethodFindImages, func(srv GatewayServer, ctx context.Context, in *FindImagesRequest) (any, error) {
			return srv.FindImages(ctx, in)
		})},
		{MethodName: MethodThumbnails, Handler: unary(MethodThumbnails, func(srv GatewayServer, ctx context.Context, in *ThumbnailsRequest) (any, error) {
			return srv.GetThumbnailByLongestSideSet(ctx, in)
		})},
		{MethodName: MethodCloseSession, Handler: unary(MethodCloseSession, func(srv GatewayServer, ctx context.Context, in *CloseSessionRequest) (any, error) {
			return srv.CloseSession(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omero/gateway/v1/gateway.proto",
}

// unary adapts a typed handler to grpc.MethodDesc.Handler.
func unary[Req any](method string, call func(GatewayServer, context.Context, *Req) (any, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GatewayServer), ctx, req.(*Req))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, in, info, handler)
	}
}
