package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
)

// Authentication sources recorded on an ActorContext
const (
	SourceAPIKey = "api_key"
	SourceJWT    = "jwt"
)

// ActorContext identifies the employee on whose behalf a request runs
type ActorContext struct {
	ProfileID   uuid.UUID
	DisplayName string
	Email       string
	Roles       []domain.ProfileRole
	Source      string
}

type contextKey string

const actorContextKey contextKey = "actorContext"

// WithActor adds the actor to the context
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// FromContext extracts the actor from the context
func FromContext(ctx context.Context) (*ActorContext, bool) {
	actor, ok := ctx.Value(actorContextKey).(*ActorContext)
	return actor, ok && actor != nil
}

// MustFromContext extracts the actor or panics
func MustFromContext(ctx context.Context) *ActorContext {
	actor, ok := FromContext(ctx)
	if !ok {
		panic("actor context not found in context")
	}
	return actor
}

// HasRole checks if the actor has a specific role
func (a *ActorContext) HasRole(role domain.ProfileRole) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the actor has any of the specified roles.
// Admins pass every check.
func (a *ActorContext) HasAnyRole(roles ...domain.ProfileRole) bool {
	if a.IsAdmin() {
		return true
	}
	for _, role := range roles {
		if a.HasRole(role) {
			return true
		}
	}
	return false
}

func (a *ActorContext) IsAdmin() bool {
	return a.HasRole(domain.ProfileRoleAdmin)
}

// RolesAsStrings returns roles for logging
func (a *ActorContext) RolesAsStrings() []string {
	out := make([]string, len(a.Roles))
	for i, r := range a.Roles {
		out[i] = string(r)
	}
	return out
}
