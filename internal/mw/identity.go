package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"batchtrack-backend/internal/identity"
)

// Headers set by the authenticating gateway in front of the service.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

const actorKey = "actor"

// Identity reads the authenticated actor from the gateway headers. Requests
// without an actor are rejected with 401.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := identity.Actor{
			ID:   c.GetHeader(HeaderActorID),
			Role: c.GetHeader(HeaderActorRole),
		}
		if actor.IsZero() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing actor identity"})
			return
		}
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// Actor returns the actor stored by Identity.
func Actor(c *gin.Context) identity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(identity.Actor); ok {
			return actor
		}
	}
	actor, _ := identity.FromContext(c.Request.Context())
	return actor
}
