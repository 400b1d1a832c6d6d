package grpc

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
	ctypes "github.com/turtacn/ChargeMatch/pkg/types/charge"
)

const (
	ChargeServiceName  = "chargematch.v1.ChargeService"
	chargeMethodName   = "Charge"
	chargeFullMethod   = "/" + ChargeServiceName + "/" + chargeMethodName
	variantsMethodName = "Variants"
	variantsFullMethod = "/" + ChargeServiceName + "/" + variantsMethodName
)

// Charger is the charge service as seen by the gRPC layer.
type Charger interface {
	Charge(ctx context.Context, req *ctypes.ChargeRequest) (*ctypes.ChargeResponse, error)
}

// VariantsRequest is empty; it exists so the method has a message type.
type VariantsRequest struct{}

// VariantsResponse lists the accepted charger variants.
type VariantsResponse struct {
	Variants []ctypes.Variant `json:"variants"`
}

// ChargeServiceServer is the server API of chargematch.v1.ChargeService.
type ChargeServiceServer interface {
	Charge(ctx context.Context, req *ctypes.ChargeRequest) (*ctypes.ChargeResponse, error)
	Variants(ctx context.Context, req *VariantsRequest) (*VariantsResponse, error)
}

// ChargeServiceDesc describes the service for grpc.Server.RegisterService.
var ChargeServiceDesc = grpc.ServiceDesc{
	ServiceName: ChargeServiceName,
	HandlerType: (*ChargeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: chargeMethodName, Handler: chargeHandler},
		{MethodName: variantsMethodName, Handler: variantsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chargematch/v1/charge.proto",
}

func chargeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ctypes.ChargeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChargeServiceServer).Charge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: chargeFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChargeServiceServer).Charge(ctx, req.(*ctypes.ChargeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func variantsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(VariantsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChargeServiceServer).Variants(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: variantsFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChargeServiceServer).Variants(ctx, req.(*VariantsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ChargeService adapts a Charger to ChargeServiceServer.
type ChargeService struct {
	svc    Charger
	logger logging.Logger
}

// NewChargeService creates a ChargeService.
func NewChargeService(svc Charger, logger logging.Logger) *ChargeService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ChargeService{svc: svc, logger: logger}
}

// Charge runs the requested charger.  Request validation has already been
// done by the interceptor chain.
func (s *ChargeService) Charge(ctx context.Context, req *ctypes.ChargeRequest) (*ctypes.ChargeResponse, error) {
	resp, err := s.svc.Charge(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("charged molecule",
		logging.String(logging.FieldRunID, resp.RunID),
		logging.String(logging.FieldVariant, string(resp.Variant)),
		logging.Int("atoms", len(resp.Molecule.Atoms)))
	return resp, nil
}

// Variants lists the accepted charger variants.
func (s *ChargeService) Variants(context.Context, *VariantsRequest) (*VariantsResponse, error) {
	return &VariantsResponse{Variants: ctypes.Variants()}, nil
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// ChargeClient calls chargematch.v1.ChargeService over an existing connection.
type ChargeClient struct {
	cc grpc.ClientConnInterface
}

// NewChargeClient wraps cc.
func NewChargeClient(cc grpc.ClientConnInterface) *ChargeClient {
	return &ChargeClient{cc: cc}
}

// Charge calls the remote charger.  Failures come back as *RemoteError,
// which unwraps to an *errors.AppError carrying the server's code.
func (c *ChargeClient) Charge(ctx context.Context, req *ctypes.ChargeRequest, opts ...grpc.CallOption) (*ctypes.ChargeResponse, error) {
	var trailer metadata.MD
	out := new(ctypes.ChargeResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName), grpc.Trailer(&trailer)}, opts...)
	if err := c.cc.Invoke(ctx, chargeFullMethod, req, out, opts...); err != nil {
		return nil, fromStatus(err, trailer)
	}
	return out, nil
}

// Variants lists the variants the remote service accepts.
func (c *ChargeClient) Variants(ctx context.Context, opts ...grpc.CallOption) ([]ctypes.Variant, error) {
	var trailer metadata.MD
	out := new(VariantsResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName), grpc.Trailer(&trailer)}, opts...)
	if err := c.cc.Invoke(ctx, variantsFullMethod, &VariantsRequest{}, out, opts...); err != nil {
		return nil, fromStatus(err, trailer)
	}
	return out.Variants, nil
}

// RemoteError is a server-side failure decoded from a gRPC status.
type RemoteError struct {
	*errors.AppError
	GRPCCode        codes.Code
	UnresolvedAtoms []int
}

// Unwrap exposes the AppError so errors.GetCode sees the server's code.
func (e *RemoteError) Unwrap() error { return e.AppError }

func fromStatus(err error, trailer metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok {
		return errors.Wrap(err, errors.CodeInternal, "grpc call failed")
	}

	code := errors.ErrorCode(first(trailer, MetadataErrorCode))
	if code == "" {
		code = codeForGRPC(st.Code())
	}
	ae := errors.New(code, st.Message()).WithDetail(first(trailer, MetadataErrorDetail)).WithCause(err)

	re := &RemoteError{AppError: ae, GRPCCode: st.Code()}
	for _, v := range trailer.Get(MetadataUnresolvedAtoms) {
		if id, perr := strconv.Atoi(v); perr == nil {
			re.UnresolvedAtoms = append(re.UnresolvedAtoms, id)
		}
	}
	return re
}

func first(md metadata.MD, key string) string {
	if vs := md.Get(key); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// codeForGRPC covers statuses raised by the transport itself, which carry no
// application code.
func codeForGRPC(c codes.Code) errors.ErrorCode {
	switch c {
	case codes.InvalidArgument:
		return errors.CodeInvalidParam
	case codes.NotFound:
		return errors.CodeNotFound
	case codes.DeadlineExceeded:
		return errors.ErrCodeTimeout
	case codes.Unavailable:
		return errors.ErrCodeServiceUnavailable
	case codes.ResourceExhausted:
		return errors.ErrCodeTooManyRequests
	case codes.Unimplemented:
		return errors.CodeNotImplemented
	default:
		return errors.CodeInternal
	}
}

//Personal.AI order the ending
