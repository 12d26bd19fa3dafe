package authn

import (
	"context"

	"github.com/krancour/identity/apiserver/internal/sessions"
)

// Principal is the authenticated caller of an API request.
type Principal struct {
	UserID    string
	Role      sessions.Role
	SessionID string
}

// IsAdmin returns true if the Principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == sessions.RoleAdmin
}

// CanActFor returns true if the Principal may view or manage the sessions of
// the specified user.
func (p *Principal) CanActFor(userID string) bool {
	return p != nil && (p.UserID == userID || p.IsAdmin())
}

type principalContextKey struct{}

// ContextWithPrincipal returns a copy of the context carrying the Principal.
func ContextWithPrincipal(
	ctx context.Context,
	principal *Principal,
) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the Principal carried by the context, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(principalContextKey{}).(*Principal)
	return principal
}
