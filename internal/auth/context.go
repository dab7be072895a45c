package auth

import (
	"context"
	"slices"

	"github.com/e2dconnect/e2d/internal/model"
)

type contextKey struct{}

type AuthContext struct {
	UserID      int64
	Email       string
	Name        string
	Role        string
	Permissions []string
	SessionID   int64
}

// Can reports whether the user holds perm. The admin permission grants
// every other one.
func (ac AuthContext) Can(perm string) bool {
	return slices.Contains(ac.Permissions, model.PermAdmin) || slices.Contains(ac.Permissions, perm)
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func Can(ctx context.Context, perm string) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Can(perm)
}

func IsAdmin(ctx context.Context) bool {
	return Can(ctx, model.PermAdmin)
}
