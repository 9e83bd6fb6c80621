package authz

import (
	"letscrap-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// Require rejects callers whose role may not perform action on resource.
// It must run after auth.JWTMiddleware.
func (e *Enforcer) Require(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		me, err := auth.Current(c)
		if err != nil {
			return err
		}
		if !e.Allowed(me.Role, resource, action) {
			return fiber.NewError(fiber.StatusForbidden, "You are not allowed to perform this action")
		}
		return c.Next()
	}
}
