// Package identity carries the authenticated actor supplied by the upstream
// identity collaborator and the ownership predicate the lifecycles consume.
package identity

import (
	"context"

	"batchtrack-backend/internal/apperr"
)

// Role names understood by the default authorizer.
const (
	RoleAdmin     = "admin"
	RoleCollector = "collector"
	RoleOperator  = "operator"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role string
}

// IsZero reports whether no actor was supplied.
func (a Actor) IsZero() bool { return a.ID == "" }

// Authorizer decides whether an actor may act on an entity owned by ownerID.
type Authorizer interface {
	CanAccess(actor Actor, ownerID string) bool
	IsAdmin(actor Actor) bool
}

// OwnerOrAdmin grants access to the entity's creator and to actors holding
// the admin role.
type OwnerOrAdmin struct {
	AdminRole string
}

// NewOwnerOrAdmin returns an authorizer using adminRole, or RoleAdmin when empty.
func NewOwnerOrAdmin(adminRole string) OwnerOrAdmin {
	if adminRole == "" {
		adminRole = RoleAdmin
	}
	return OwnerOrAdmin{AdminRole: adminRole}
}

// IsAdmin implements Authorizer.
func (o OwnerOrAdmin) IsAdmin(actor Actor) bool {
	return !actor.IsZero() && actor.Role == o.AdminRole
}

// CanAccess implements Authorizer.
func (o OwnerOrAdmin) CanAccess(actor Actor, ownerID string) bool {
	if actor.IsZero() {
		return false
	}
	return o.IsAdmin(actor) || actor.ID == ownerID
}

// Require returns a forbidden error unless authz grants actor access to the
// entity described by what.
func Require(authz Authorizer, actor Actor, ownerID, what string) error {
	if !authz.CanAccess(actor, ownerID) {
		return apperr.Forbidden("actor %q may not access %s", actor.ID, what)
	}
	return nil
}

type ctxKey struct{}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// FromContext returns the actor stored in ctx, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ctxKey{}).(Actor)
	return actor, ok && !actor.IsZero()
}
