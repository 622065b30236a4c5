package middleware

import (
	"github.com/labstack/echo/v4"
)

// HeaderAPIID carries the instance id on every response
const HeaderAPIID = "X-Tripsnap-API-ID"

// APIIDMiddleware adds the X-Tripsnap-API-ID header to all responses
// This lets clients notice when they are routed to a different instance (and a cold cache)
func APIIDMiddleware(instanceID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(HeaderAPIID, instanceID)
			return next(c)
		}
	}
}
