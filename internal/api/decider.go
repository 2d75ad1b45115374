package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tin/internal/domain"
	"tin/internal/engine"
	"tin/internal/quote"
)

// DecideMethod is the full gRPC method name of Decider.Decide.
const DecideMethod = "/tin.v1.Decider/Decide"

// Request and response field names.
const (
	FieldTicker          = "ticker"
	FieldCurrentQuantity = "current_quantity"
	FieldAction          = "action"
	FieldQuantity        = "quantity"
	FieldTargetQuantity  = "target_quantity"
)

// DeciderServer is the server API for the tin.v1.Decider service.
type DeciderServer interface {
	Decide(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// DeciderServiceDesc describes the tin.v1.Decider service. Messages are
// google.protobuf.Struct values so no generated code is required.
var DeciderServiceDesc = grpc.ServiceDesc{
	ServiceName: "tin.v1.Decider",
	HandlerType: (*DeciderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decide", Handler: decideHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tin/v1/decider",
}

func decideHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DeciderServer).Decide(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DecideMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DeciderServer).Decide(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// DeciderService answers decision requests without submitting orders.
type DeciderService struct {
	engine *engine.Engine
	log    *slog.Logger
}

// NewDeciderService creates a DeciderService backed by eng.
func NewDeciderService(eng *engine.Engine, log *slog.Logger) *DeciderService {
	if log == nil {
		log = slog.Default()
	}
	return &DeciderService{engine: eng, log: log.With("component", "decider")}
}

// Register adds the service to gs.
func (s *DeciderService) Register(gs *grpc.Server) {
	gs.RegisterService(&DeciderServiceDesc, s)
}

// Decide reconciles the target for the requested ticker. When the request
// carries current_quantity the broker is not consulted.
func (s *DeciderService) Decide(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	ticker := fields[FieldTicker].GetStringValue()
	if err := domain.ValidateTicker(ticker); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var (
		res engine.Result
		err error
	)
	if v, ok := fields[FieldCurrentQuantity]; ok {
		current, perr := quantityValue(v)
		if perr != nil {
			return nil, status.Error(codes.InvalidArgument, perr.Error())
		}
		res, err = s.engine.DecideWithHolding(ctx, ticker, current)
	} else {
		res, err = s.engine.Decide(ctx, ticker)
	}
	if err != nil {
		s.log.Warn("decide failed", "ticker", ticker, "error", err)
		return nil, statusFromError(err)
	}

	return structpb.NewStruct(map[string]any{
		FieldTicker:          res.Ticker,
		FieldAction:          string(res.Decision.Action),
		FieldQuantity:        res.Decision.Quantity,
		FieldTargetQuantity:  res.Target,
		FieldCurrentQuantity: res.Current,
	})
}

// quantityValue accepts a non-negative whole number.
func quantityValue(v *structpb.Value) (int64, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", FieldCurrentQuantity)
	}
	f := n.NumberValue
	if f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s must be a non-negative whole number, got %v", FieldCurrentQuantity, f)
	}
	return int64(f), nil
}

func statusFromError(err error) error {
	var (
		transport  *quote.TransportError
		unexpected *quote.UnexpectedStatusError
		malformed  *quote.MalformedResponseError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrEmptyTicker):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &transport), errors.As(err, &unexpected):
		return status.Error(codes.Unavailable, err.Error())
	case errors.As(err, &malformed):
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
