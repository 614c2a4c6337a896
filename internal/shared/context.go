// Package shared holds cross-cutting helpers used by every domain module.
package shared

import (
	"context"
	"net/http"
	"strconv"
)

// Role identifies the kind of user performing an action.
type Role string

const (
	RoleCliente    Role = "cliente"
	RoleVendedor   Role = "vendedor"
	RoleBodega     Role = "bodega"
	RoleSupervisor Role = "supervisor"
	RoleConductor  Role = "conductor"
	RoleSistema    Role = "sistema"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCliente, RoleVendedor, RoleBodega, RoleSupervisor, RoleConductor, RoleSistema:
		return true
	default:
		return false
	}
}

// Actor identifies who performs a mutation. Authentication itself lives at
// the gateway; this service trusts the forwarded identity headers.
type Actor struct {
	ID   int64
	Role Role
}

type actorContextKey struct{}

// ContextWithActor stores the actor in the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor stored in the context, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ActorFromRequest reads the forwarded identity headers.
func ActorFromRequest(r *http.Request) (Actor, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-Actor-Id"), 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, false
	}
	role := Role(r.Header.Get("X-Actor-Role"))
	if !role.Valid() {
		return Actor{}, false
	}
	return Actor{ID: id, Role: role}, true
}
