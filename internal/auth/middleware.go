package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. TenantID comes from the
// verified token, never from request input, so a handler cannot be tricked
// into crossing tenants.
type Principal struct {
	TenantID string
	ActorID  string
}

// TenantMiddleware validates bearer tokens and binds the tenant principal.
type TenantMiddleware struct {
	tokens *TokenManager
}

// NewTenantMiddleware constructs middleware.
func NewTenantMiddleware(tokens *TokenManager) *TenantMiddleware {
	return &TenantMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *TenantMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.TenantID == "" {
		return apperrors.NewUnauthorized("token carries no tenant")
	}

	c.Locals(principalKey, &Principal{TenantID: claims.TenantID, ActorID: claims.ActorID})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
