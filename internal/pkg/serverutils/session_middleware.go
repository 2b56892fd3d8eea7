package serverutils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	SessionCookieName = "session_id"

	// SessionIDKey is the Locals key the middleware stores the identity under.
	SessionIDKey = "session_id"

	sessionCookieMaxAge = 2 * 60 * 60 // seconds
)

// SessionMiddleware issues an anonymous session identity cookie on first
// contact and exposes it via Locals for handlers and the websocket upgrade.
func SessionMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		sessionID := ctx.Cookies(SessionCookieName)
		if sessionID == "" {
			sessionID = uuid.NewString()
			ctx.Cookie(&fiber.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				MaxAge:   sessionCookieMaxAge,
				HTTPOnly: false,
				Path:     "/",
			})
		}
		ctx.Locals(SessionIDKey, sessionID)
		return ctx.Next()
	}
}

// SessionID reads the identity the middleware attached to this request.
func SessionID(ctx *fiber.Ctx) string {
	if id, ok := ctx.Locals(SessionIDKey).(string); ok {
		return id
	}
	return ""
}
