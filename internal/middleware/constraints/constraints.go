package constraints

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid"
)

// RequireUUID is a route constraint: when any of the named path parameters is
// present but not a UUID it answers 404 without calling the handler.
func RequireUUID(params ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, param := range params {
			value := c.Params(param)
			if value == "" {
				continue
			}
			if _, err := uuid.FromString(value); err != nil {
				return c.SendStatus(fiber.StatusNotFound)
			}
		}
		return c.Next()
	}
}
