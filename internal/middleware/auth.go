package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	authpkg "github.com/tripsnap/api/pkg/auth"
	"github.com/tripsnap/api/pkg/config"
	"github.com/tripsnap/api/pkg/logging"
	"github.com/tripsnap/api/pkg/response"
)

// User represents an authenticated principal
type User struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Role authpkg.Role `json:"role"`
	// Viewer is the identity images are signed for when a request names none
	Viewer string `json:"viewer,omitempty"`
}

// Claims are the JWT claims accepted on bearer tokens. The subject is the viewer.
type Claims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// KeySource returns the API keys accepted at the time of the call
type KeySource func() []config.APIKey

// StaticKeys serves a fixed key list
func StaticKeys(keys []config.APIKey) KeySource {
	return func() []config.APIKey { return keys }
}

// Authenticator validates X-API-Key headers and HMAC-signed bearer tokens
type Authenticator struct {
	keys      KeySource
	jwtSecret []byte
}

// NewAuthenticator creates an authenticator. An empty jwtSecret disables bearer tokens.
func NewAuthenticator(keys KeySource, jwtSecret string) *Authenticator {
	return &Authenticator{keys: keys, jwtSecret: []byte(jwtSecret)}
}

// Middleware authenticates the request and stores the *User under "user"
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if apiKey := req.Header.Get("X-API-Key"); apiKey != "" {
				keyData, found := config.FindAPIKeyByKey(a.keys(), apiKey)
				if !found {
					logging.LogDenied("invalid_api_key", "", req.URL.Path, c.RealIP())
					return response.Unauthorized(c, "Invalid API key")
				}
				c.Set("user", &User{
					ID:   keyData.Name,
					Name: keyData.Name,
					Role: authpkg.ParseRole(keyData.Role),
				})
				return next(c)
			}

			authHeader := req.Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return response.Unauthorized(c, "API key or bearer token required")
			}

			user, err := a.verifyBearer(authHeader)
			if err != nil {
				logging.LogDenied(err.Error(), "", req.URL.Path, c.RealIP())
				return response.Unauthorized(c, err.Error())
			}
			c.Set("user", user)
			return next(c)
		}
	}
}

func (a *Authenticator) verifyBearer(header string) (*User, error) {
	if len(a.jwtSecret) == 0 {
		return nil, errors.New("bearer tokens are not accepted")
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, errors.New("invalid Authorization header format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, errors.New("token has expired")
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("token is malformed")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("token signature is invalid")
		default:
			return nil, errors.New("token validation failed")
		}
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	if claims.Subject == "" {
		return nil, errors.New("token subject missing")
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	return &User{
		ID:     claims.Subject,
		Name:   name,
		Role:   authpkg.ParseRole(claims.Role),
		Viewer: claims.Subject,
	}, nil
}

// RequireRole middleware checks if user has sufficient role permissions
func RequireRole(requiredRole authpkg.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := GetUserFromContext(c)
			if !ok {
				return response.Unauthorized(c, "User not authenticated")
			}
			if !user.Role.HasPermission(requiredRole) {
				logging.LogDenied("insufficient_role", user.Name, c.Request().URL.Path, c.RealIP())
				return response.Forbidden(c, "Insufficient permissions. Required: "+requiredRole.String())
			}
			return next(c)
		}
	}
}

// GetUserFromContext extracts user from Echo context
func GetUserFromContext(c echo.Context) (*User, bool) {
	user, ok := c.Get("user").(*User)
	return user, ok && user != nil
}

// SignToken issues an HS256 token for subject. Used by imgctl and tests.
func SignToken(secret, subject, role string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: role, RegisteredClaims: claims})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
