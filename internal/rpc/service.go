package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName           = "rtdcs.CompensationController"
	ApplyDistortionMethod = "/" + ServiceName + "/ApplyDistortion"
)

// CompensationControllerServer handles relayed distortion vectors.
type CompensationControllerServer interface {
	ApplyDistortion(ctx context.Context, in *DistortionVector) (*Ack, error)
}

// RegisterCompensationControllerServer attaches srv to a gRPC registrar.
func RegisterCompensationControllerServer(r grpc.ServiceRegistrar, srv CompensationControllerServer) {
	r.RegisterService(&serviceDesc, srv)
}

func applyDistortionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DistortionVector)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompensationControllerServer).ApplyDistortion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ApplyDistortionMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompensationControllerServer).ApplyDistortion(ctx, req.(*DistortionVector))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CompensationControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ApplyDistortion",
			Handler:    applyDistortionHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rtdcs/compensation.proto",
}
