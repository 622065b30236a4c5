package middleware

import (
	"github.com/labstack/echo/v4"
)

// HeaderAPIVersion carries the build version on authenticated responses
const HeaderAPIVersion = "X-Tripsnap-API-Version"

// VersionMiddleware adds the X-Tripsnap-API-Version header to all responses
func VersionMiddleware(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(HeaderAPIVersion, version)
			return next(c)
		}
	}
}
