package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// IdentityHeader carries the authenticated principal for API calls. In
// production this is set by the auth proxy in front of the gateway.
const IdentityHeader = "X-User-ID"

// RequireIdentity extracts the caller's identity and stores it in locals.
// Requests without an identity are rejected before reaching handlers, since
// usage records and session history are both scoped to it.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := c.Get(IdentityHeader)
		if identity == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "Missing " + IdentityHeader + " header",
			})
		}
		c.Locals("identity", identity)
		return c.Next()
	}
}

// Identity returns the identity stored by RequireIdentity, or "" when the
// route is not identity-scoped.
func Identity(c *fiber.Ctx) string {
	if identity, ok := c.Locals("identity").(string); ok {
		return identity
	}
	return ""
}
