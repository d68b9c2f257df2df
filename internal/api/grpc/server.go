package grpcapi

import (
	"context"
	"errors"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"measurements-service/internal/api/payload"
	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "measurements.v1.MeasurementService"

const (
	methodCreate = "/" + ServiceName + "/CreateMeasurement"
	methodList   = "/" + ServiceName + "/ListMeasurements"
	methodGet    = "/" + ServiceName + "/GetMeasurement"
)

// measurementServer is the contract served through serviceDesc.
type measurementServer interface {
	CreateMeasurement(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMeasurements(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetMeasurement(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*measurementServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateMeasurement", Handler: unaryHandler(methodCreate, func(s measurementServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.CreateMeasurement(ctx, in)
		})},
		{MethodName: "ListMeasurements", Handler: unaryHandler(methodList, func(s measurementServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.ListMeasurements(ctx, in)
		})},
		{MethodName: "GetMeasurement", Handler: unaryHandler(methodGet, func(s measurementServer, ctx context.Context, in *wrapperspb.Int64Value) (any, error) {
			return s.GetMeasurement(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "measurements/v1/measurements.proto",
}

// unaryHandler adapts a typed method to the grpc.MethodDesc handler shape.
func unaryHandler[Req any, PReq interface {
	*Req
}](fullMethod string, call func(measurementServer, context.Context, PReq) (any, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(measurementServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(measurementServer), ctx, req.(PReq))
		})
	}
}

// NewServer constructs a gRPC server exposing the measurement operations.
func NewServer(service domain.MeasurementService, logger *infra.Logger) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{
		loggingInterceptor(logger),
		grpc_prometheus.UnaryServerInterceptor,
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	server.RegisterService(&serviceDesc, &measurementsServer{service: service})
	grpc_prometheus.Register(server)
	return server
}

type measurementsServer struct {
	service domain.MeasurementService
}

func (s *measurementsServer) CreateMeasurement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request must not be nil")
	}

	body, err := req.MarshalJSON()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request body")
	}

	input, err := payload.Parse(body)
	if err != nil {
		return nil, translateServiceError(err)
	}

	created, err := s.service.Create(ctx, input)
	if err != nil {
		return nil, translateServiceError(err)
	}

	return toStruct(created)
}

func (s *measurementsServer) ListMeasurements(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	items, err := s.service.List(ctx, req.GetValue())
	if err != nil {
		return nil, translateServiceError(err)
	}

	values := make([]*structpb.Value, 0, len(items))
	for _, m := range items {
		st, err := toStruct(m)
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(st))
	}
	return &structpb.ListValue{Values: values}, nil
}

func (s *measurementsServer) GetMeasurement(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request must not be nil")
	}

	m, err := s.service.Get(ctx, req.GetValue())
	if err != nil {
		return nil, translateServiceError(err)
	}
	return toStruct(m)
}

func toStruct(m domain.Measurement) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(map[string]any{
		"id":          m.ID,
		"device_id":   m.DeviceID,
		"temperature": m.Temperature,
		"humidity":    m.Humidity,
		"timestamp":   m.Timestamp,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return st, nil
}

func translateServiceError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return status.Error(codes.NotFound, notFound.Error())
		}
		return status.Error(codes.NotFound, "Measurement not found")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func loggingInterceptor(logger *infra.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)
		if err != nil {
			logger.Printf(ctx, "gRPC %s failed in %s: %v", info.FullMethod, duration, err)
		} else {
			logger.Debugf(ctx, "gRPC %s completed in %s", info.FullMethod, duration)
		}
		return resp, err
	}
}
