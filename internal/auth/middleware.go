// ABOUTME: Fiber middleware that authenticates requests via bearer tokens.
// ABOUTME: Stores the verified account address in request locals for handlers.

package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// LocalsAccountKey is the fiber locals key holding the authenticated account.
const LocalsAccountKey = "account"

// Middleware returns a fiber handler that verifies the bearer token on every
// request and stores the authenticated account in c.Locals. Websocket clients
// cannot always set headers, so a "token" query parameter is accepted as a
// fallback.
func Middleware(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		account, err := verifier.Verify(tokenString)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(LocalsAccountKey, account)
		return c.Next()
	}
}

// AccountFromCtx returns the authenticated account stored by Middleware,
// or "" if the request was not authenticated.
func AccountFromCtx(c *fiber.Ctx) string {
	account, _ := c.Locals(LocalsAccountKey).(string)
	return account
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
