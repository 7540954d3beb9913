package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/GriffinCanCode/glyphscan/internal/errors"
	"github.com/GriffinCanCode/glyphscan/internal/recognize"
	"github.com/GriffinCanCode/glyphscan/internal/trace"
)

// MaxImageBytes bounds request messages.
const MaxImageBytes = 8 << 20

// Recognizer recognizes one encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) (*recognize.Result, error)
}

type recognizerService struct {
	rec Recognizer
}

func (s *recognizerService) Recognize(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if len(in.GetValue()) == 0 {
		return nil, apperrors.New(apperrors.InvalidInput, "empty image")
	}
	res, err := s.rec.Recognize(ctx, in.GetValue())
	if err != nil {
		return nil, apperrors.FromCore(err)
	}
	out, err := ToStruct(res.Report())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "encode response")
	}
	return out, nil
}

// Server is a gRPC server exposing the Recognizer and health services.
type Server struct {
	*grpc.Server
	health *health.Server
}

// NewServer creates a server answering Recognize calls with rec.
func NewServer(rec Recognizer, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxImageBytes + 1024),
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor(), logInterceptor()),
		grpc.ChainStreamInterceptor(trace.StreamServerInterceptor()),
	}, opts...)

	s := &Server{Server: grpc.NewServer(opts...), health: health.NewServer()}
	RegisterRecognizerServer(s.Server, &recognizerService{rec: rec})
	healthpb.RegisterHealthServer(s.Server, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Shutdown reports NOT_SERVING to health checks and stops gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.GracefulStop()
}

// logInterceptor logs every call with its status code.
func logInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log := trace.Logger(ctx).With("method", info.FullMethod, "duration", time.Since(start))
		if err != nil {
			log.Warn("rpc failed", "code", status.Code(err).String(), "error", err)
		} else {
			log.Debug("rpc served")
		}
		return resp, err
	}
}
