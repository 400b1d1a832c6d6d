package grpc

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/turtacn/ChargeMatch/internal/domain/charge"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// Trailer keys carrying the application error across the wire.
const (
	MetadataErrorCode       = "x-error-code"
	MetadataErrorDetail     = "x-error-detail"
	MetadataUnresolvedAtoms = "x-unresolved-atoms"
)

// Recorder receives one observation per finished unary call.
type Recorder interface {
	RecordGRPCRequest(service, method, code string, d time.Duration)
}

// Validator is implemented by request messages that can check themselves.
type Validator interface {
	Validate() error
}

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

func recoveryUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprintf("%v", r)),
					logging.String("stack", string(debug.Stack())),
				)
				err = status.Error(codes.Internal, errors.DefaultMessageForCode(errors.CodeInternal))
			}
		}()
		return handler(ctx, req)
	}
}

func recoveryStreamInterceptor(logger logging.Logger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc stream panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprintf("%v", r)),
					logging.String("stack", string(debug.Stack())),
				)
				err = status.Error(codes.Internal, errors.DefaultMessageForCode(errors.CodeInternal))
			}
		}()
		return handler(srv, ss)
	}
}

// ---------------------------------------------------------------------------
// Logging
// ---------------------------------------------------------------------------

func isHealthCheck(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/")
}

func loggingUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if isHealthCheck(info.FullMethod) {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		fields := []logging.Field{
			logging.String("method", info.FullMethod),
			logging.Int64("duration_ms", time.Since(start).Milliseconds()),
			logging.String("code", code.String()),
		}
		switch code {
		case codes.OK:
			logger.Info("grpc request", fields...)
		case codes.Internal, codes.Unknown, codes.Unavailable:
			logger.Error("grpc request failed", append(fields, logging.Err(err))...)
		default:
			logger.Warn("grpc request rejected", append(fields, logging.Err(err))...)
		}
		return resp, err
	}
}

func loggingStreamInterceptor(logger logging.Logger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if isHealthCheck(info.FullMethod) {
			return handler(srv, ss)
		}

		start := time.Now()
		err := handler(srv, ss)
		logger.Info("grpc stream",
			logging.String("method", info.FullMethod),
			logging.Int64("duration_ms", time.Since(start).Milliseconds()),
			logging.String("code", status.Code(err).String()),
		)
		return err
	}
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

func metricsUnaryInterceptor(m Recorder) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if m == nil || isHealthCheck(info.FullMethod) {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		service, method := splitMethodName(info.FullMethod)
		m.RecordGRPCRequest(service, method, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// splitMethodName splits "/package.Service/Method" into its two halves.
func splitMethodName(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[:i], fullMethod[i+1:]
	}
	return "unknown", fullMethod
}

// ---------------------------------------------------------------------------
// Validation and error mapping
// ---------------------------------------------------------------------------

func validationUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if v, ok := req.(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, errors.Wrap(err, errors.CodeInvalidParam, "invalid request").WithDetail(err.Error())
			}
		}
		return handler(ctx, req)
	}
}

// errorUnaryInterceptor turns application errors into gRPC statuses and
// attaches the error code to the trailer.
func errorUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return resp, err
		}
		return resp, toStatus(ctx, err)
	}
}

func toStatus(ctx context.Context, err error) error {
	body := charge.ErrorResponse(err)
	code := errors.GetCode(err)
	if code == errors.CodeUnknown || code == errors.CodeInternal {
		code = errors.CodeInternal
		body.Code = code.String()
		body.Message = errors.DefaultMessageForCode(code)
		body.Detail = ""
	}

	md := metadata.Pairs(MetadataErrorCode, body.Code)
	if body.Detail != "" {
		md.Append(MetadataErrorDetail, body.Detail)
	}
	for _, id := range body.UnresolvedAtoms {
		md.Append(MetadataUnresolvedAtoms, strconv.Itoa(id))
	}
	// Fails only outside a server handler; the status still carries the message.
	_ = grpc.SetTrailer(ctx, md)

	return status.Error(grpcCodeForHTTPStatus(errors.HTTPStatusForCode(code)), body.Message)
}

func grpcCodeForHTTPStatus(httpStatus int) codes.Code {
	switch httpStatus {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusUnprocessableEntity:
		return codes.FailedPrecondition
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	case http.StatusNotImplemented:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

//Personal.AI order the ending
