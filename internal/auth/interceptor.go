package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Методы health и reflection доступны без токена.
var publicMethodPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

// UnaryServerInterceptor проверяет metadata "authorization: Bearer <token>".
func (a *Authenticator) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.Enabled() || isPublicMethod(info.FullMethod) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var token string
		if values := md.Get("authorization"); len(values) > 0 {
			token = bearerToken(values[0])
		}
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, ErrMissingToken.Error())
		}

		claims, err := a.Verify(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, ErrInvalidToken.Error())
		}
		return handler(ContextWithClaims(ctx, claims), req)
	}
}

// StreamServerInterceptor — то же для потоковых методов.
func (a *Authenticator) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !a.Enabled() || isPublicMethod(info.FullMethod) {
			return handler(srv, ss)
		}
		md, _ := metadata.FromIncomingContext(ss.Context())
		var token string
		if values := md.Get("authorization"); len(values) > 0 {
			token = bearerToken(values[0])
		}
		if _, err := a.Verify(token); err != nil {
			return status.Error(codes.Unauthenticated, ErrInvalidToken.Error())
		}
		return handler(srv, ss)
	}
}

// BearerCredentials добавляет токен к каждому вызову клиента.
type BearerCredentials struct {
	Token    string
	Insecure bool
}

func (c BearerCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + c.Token}, nil
}

func (c BearerCredentials) RequireTransportSecurity() bool {
	return !c.Insecure
}

func isPublicMethod(method string) bool {
	for _, prefix := range publicMethodPrefixes {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}
