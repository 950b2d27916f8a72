package middleware

import (
	"relay/config"
	"relay/internal/database"
	"relay/internal/logger"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Middleware struct {
	db     database.DB
	config config.Config
	log    logger.Logger
}

func New(db database.DB, config config.Config) Middleware {
	return Middleware{
		db:     db,
		config: config,
		log:    logger.New("middleware"),
	}
}

// RequestLogger logs every request with its duration and status.
func (m Middleware) RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		m.log.Function("RequestLogger").Debug("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start).String(),
		)

		return err
	}
}

// Recover converts handler panics into 500 responses instead of dropping the
// connection.
func (m Middleware) Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				m.log.Function("Recover").Error("panic in handler", "panic", r, "path", c.Path())
				err = c.Status(fiber.StatusInternalServerError).
					JSON(fiber.Map{"message": "internal server error"})
			}
		}()
		return c.Next()
	}
}
