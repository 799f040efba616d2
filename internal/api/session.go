package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const sessionLocal = "session_id"

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// SessionMiddleware ensures every request carries a session id. A missing or
// malformed cookie is replaced with a fresh UUID.
func SessionMiddleware(cfg SessionConfig) fiber.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "pf_session"
	}
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(cfg.CookieName)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
		}
		// sliding expiry, matching the history key TTL
		c.Cookie(&fiber.Cookie{
			Name:     cfg.CookieName,
			Value:    sid,
			Path:     "/",
			MaxAge:   int(cfg.TTL.Seconds()),
			HTTPOnly: true,
			Secure:   cfg.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		c.Locals(sessionLocal, sid)
		return c.Next()
	}
}

// SessionID returns the id set by SessionMiddleware.
func SessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(sessionLocal).(string)
	return sid
}
