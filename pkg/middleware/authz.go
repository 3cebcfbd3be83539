package middleware

import (
	"sundayschool-points/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
)

var (
	ErrUnauthenticated = errutil.Unauthorized("missing caller identity", nil)
	ErrForbidden       = errutil.Forbidden("caller is not allowed to perform this action", nil)
)

// Authorize rejects the request unless the caller's role may perform act on obj.
func Authorize(e casbin.IEnforcer, obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := Enforce(c, e, obj, act); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func Enforce(c *gin.Context, e casbin.IEnforcer, obj, act string) error {
	actor := ActorFrom(c)
	if actor.Role == "" {
		return ErrUnauthenticated
	}

	ok, err := e.Enforce(actor.Role, obj, act)
	if err != nil {
		return errutil.Internal("authorization check failed", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// SelfOnly stops callers with role from reaching another user's resources,
// identified by the path parameter param. Other roles pass through.
func SelfOnly(role, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor.Role == role && actor.ID != c.Param(param) {
			_ = c.Error(ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
