package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"clinicfiles/internal/config"
)

const (
	// ActorLocalKey holds the identity performing the request.
	ActorLocalKey = "actor"
	// ActorHeader supplies the actor when session verification is disabled.
	ActorHeader = "X-Actor"
)

// SessionClaims is the payload of the session token issued at login.
type SessionClaims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Session resolves the actor of a request.
//
// With a JWT secret configured, the HS256 token is read from the session cookie or an
// Authorization bearer header; a present but invalid token is rejected with 401. The
// actor is the subject claim, falling back to username. Without a secret the X-Actor
// header is trusted as is. Requests without credentials pass through with no actor.
func Session(cfg config.AuthConfig) fiber.Handler {
	secret := []byte(cfg.JWTSecret)
	cookie := cfg.CookieName
	if cookie == "" {
		cookie = "token"
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(c *fiber.Ctx) error {
		if len(secret) == 0 {
			if actor := strings.TrimSpace(c.Get(ActorHeader)); actor != "" {
				c.Locals(ActorLocalKey, actor)
			}
			return c.Next()
		}

		raw := c.Cookies(cookie)
		if raw == "" {
			if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
				raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
		}
		if raw == "" {
			return c.Next()
		}

		claims := &SessionClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid session")
		}

		actor := claims.Subject
		if actor == "" {
			actor = claims.Username
		}
		if actor == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "session has no subject")
		}
		c.Locals(ActorLocalKey, actor)
		return c.Next()
	}
}

// ActorFrom returns the actor resolved by Session, or "".
func ActorFrom(c *fiber.Ctx) string {
	actor, _ := c.Locals(ActorLocalKey).(string)
	return actor
}
