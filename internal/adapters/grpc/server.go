package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/users-service/internal/app/logging"
	"github.com/viralforge/users-service/internal/application"
	"github.com/viralforge/users-service/internal/domain"
)

const (
	serviceName      = "viralforge.users.v1.UsersInternalService"
	getAccountMethod = "/" + serviceName + "/GetAccount"
)

type UsersInternalService interface {
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type AccountReader interface {
	CurrentAccount(ctx context.Context, principal domain.Principal) (application.AccountView, error)
}

// UsersInternalServer lets other services resolve an account id to its summary.
type UsersInternalServer struct {
	accounts AccountReader
}

func NewUsersInternalServer(accounts AccountReader) *UsersInternalServer {
	return &UsersInternalServer{accounts: accounts}
}

func Register(server grpc.ServiceRegistrar, svc UsersInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*UsersInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetAccount",
				Handler:    getAccountHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "users/v1/users_internal.proto",
	}, svc)
}

func (s *UsersInternalServer) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw := req.GetFields()["account_id"].GetStringValue()
	if raw == "" {
		return nil, status.Error(codes.InvalidArgument, "missing account_id")
	}
	accountID, err := uuid.Parse(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "account_id must be a uuid")
	}

	view, err := s.accounts.CurrentAccount(ctx, domain.Principal{AccountID: accountID})
	if err != nil {
		return nil, grpcError(err)
	}
	resp, err := structpb.NewStruct(map[string]any{
		"account_id":      view.AccountID.String(),
		"email":           view.Email,
		"account_type":    string(view.AccountType),
		"onboarding_step": view.OnboardingStep,
		"is_active":       view.IsActive,
		"created_at":      view.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return status.Error(codes.NotFound, "account not found")
	case errors.Is(err, domain.ErrAccountDisabled):
		return status.Error(codes.FailedPrecondition, "account disabled")
	case errors.Is(err, domain.ErrPersistenceFailure):
		return status.Error(codes.Unavailable, "account store unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// RequestIDInterceptor copies x-request-id from incoming metadata onto the context.
func RequestIDInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(logging.RequestIDHeader); len(values) > 0 {
			id = values[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	return handler(logging.WithRequestID(ctx, id), req)
}

func getAccountHandler(svc UsersInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetAccount(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: getAccountMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetAccount(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
