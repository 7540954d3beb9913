// Package rpc serves the recognizer over gRPC.
//
// The service has a single unary method taking the encoded image as a
// google.protobuf.BytesValue and answering with a google.protobuf.Struct
// holding the recognize.Report fields, so neither side needs generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service and method names on the wire.
const (
	ServiceName     = "glyphscan.v1.Recognizer"
	RecognizeMethod = "/" + ServiceName + "/Recognize"
)

// RecognizerServer is the server API for the Recognizer service.
type RecognizerServer interface {
	Recognize(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error)
}

func recognizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecognizerServer).Recognize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecognizeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecognizerServer).Recognize(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the Recognizer service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecognizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recognize", Handler: recognizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "glyphscan/v1/recognizer.proto",
}

// RegisterRecognizerServer registers srv on s.
func RegisterRecognizerServer(s grpc.ServiceRegistrar, srv RecognizerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// RecognizerClient is the client API for the Recognizer service.
type RecognizerClient interface {
	Recognize(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type recognizerClient struct {
	cc grpc.ClientConnInterface
}

// NewRecognizerClient returns a client over cc.
func NewRecognizerClient(cc grpc.ClientConnInterface) RecognizerClient {
	return &recognizerClient{cc}
}

func (c *recognizerClient) Recognize(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RecognizeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
