package privacy

import (
	"context"
	"fmt"
	"slices"

	"github.com/crudox/crudox/compose"
)

// Viewer is the authenticated identity an operation runs on behalf of.
// Applications implement it on their own user type.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier, or an empty
	// string outside multi-tenant setups.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext returns the viewer attached to the context, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a plain-struct Viewer for tests and simple setups.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

func (v SimpleViewer) GetID() string       { return v.UserID }
func (v SimpleViewer) GetRoles() []string  { return v.Roles }
func (v SimpleViewer) GetTenantID() string { return v.TenantID }

var _ Viewer = SimpleViewer{}

// DenyIfNoViewer rejects when no viewer is attached to the context. Place
// it first in a chain that requires authentication.
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("crudox/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole permits when the viewer carries the role, and skips otherwise.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole permits when the viewer carries any of the roles, and skips
// otherwise.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// InputMatchesViewer permits a write whose input field equals the viewer's
// id, and skips when the field is absent or differs. Use it to let users
// touch only their own rows.
func InputMatchesViewer(field string) Rule {
	return RuleFunc(func(ctx context.Context, _ compose.Operation, req compose.Request) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := req.Input[field]
		if !ok {
			return Skip
		}
		if fmt.Sprint(value) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantInputRule permits a write whose input tenant field matches the
// viewer's tenant and rejects a mismatch. Absent viewers, tenants, or
// fields skip.
func TenantInputRule(field string) Rule {
	return RuleFunc(func(ctx context.Context, _ compose.Operation, req compose.Request) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		value, ok := req.Input[field]
		if !ok {
			return Skip
		}
		if fmt.Sprint(value) == viewer.GetTenantID() {
			return Allow
		}
		return Denyf("crudox/privacy: tenant mismatch")
	})
}

// RequireTenantRule rejects when the context has no viewer or the viewer
// has no tenant. Use it as a guard in front of tenant-scoped reads.
func RequireTenantRule() Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("crudox/privacy: viewer required for tenant-scoped access")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("crudox/privacy: tenant required")
		}
		return Skip
	})
}
