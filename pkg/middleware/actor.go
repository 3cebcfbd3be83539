package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Headers set by the portal gateway after it authenticates the caller.
const (
	HeaderActorID   = "X-ACTOR-ID"
	HeaderActorRole = "X-ACTOR-ROLE"
)

const actorKey = "points.actor"

type Actor struct {
	ID   string
	Role string
}

// Identify copies the gateway identity headers into the request context.
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(actorKey, Actor{
			ID:   strings.TrimSpace(c.GetHeader(HeaderActorID)),
			Role: strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole))),
		})
		c.Next()
	}
}

func ActorFrom(c *gin.Context) Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(Actor); ok {
			return a
		}
	}
	return Actor{}
}
