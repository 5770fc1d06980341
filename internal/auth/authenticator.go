package auth

import (
	"context"
	"strings"
)

type contextKey struct{}

// Authenticator проверяет токены общим секретом.
// С пустым секретом проверка отключена и любой запрос пропускается.
type Authenticator struct {
	secret string
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

// Enabled сообщает, включена ли проверка.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.secret != ""
}

// Verify проверяет токен. При выключенной проверке возвращает nil claims без ошибки.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	if !a.Enabled() {
		return nil, nil
	}
	return ValidateToken(a.secret, token)
}

// ContextWithClaims кладёт claims в контекст запроса.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext возвращает claims текущего запроса или nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextKey{}).(*Claims)
	return claims
}

// bearerToken извлекает токен из значения "Bearer <token>".
func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
