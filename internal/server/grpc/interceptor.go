package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	authorizationHeader = "authorization"
	healthServicePrefix = "/grpc.health.v1.Health/"
)

func firstMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// requestInfoInterceptor makes the caller's address, user agent and method
// available to security events.
func (s *GRPCServer) requestInfoInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ri := audit.RequestInfo{
		UserAgent: firstMetadata(ctx, "user-agent"),
		Resource:  info.FullMethod,
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ri.IP = p.Addr.String()
	}
	return handler(audit.WithRequestInfo(ctx, ri), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "grpc call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

// sessionInterceptor requires a bearer token in the "authorization" metadata
// for every method except the health service.
func (s *GRPCServer) sessionInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
		return handler(ctx, req)
	}

	session, err := s.sessions.CheckAndParseSession(ctx, firstMetadata(ctx, authorizationHeader))
	if err != nil {
		return nil, toStatus(err)
	}

	return handler(auth.WithSession(ctx, session), req)
}

func toStatus(err error) error {
	msg := "internal error"
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}

	switch common.KindOf(err) {
	case common.ErrorUnauthorized:
		return status.Error(codes.Unauthenticated, msg)
	case common.ErrorForbidden:
		return status.Error(codes.PermissionDenied, msg)
	case common.ErrorValidation:
		return status.Error(codes.InvalidArgument, msg)
	case common.ErrorNotFound:
		return status.Error(codes.NotFound, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}
