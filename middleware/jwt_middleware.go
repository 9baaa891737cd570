package middleware

import (
	"strings"

	"timecapsule/config"
	"timecapsule/models"
	"timecapsule/utils"

	"github.com/gofiber/fiber/v2"
)

// currentUser resolves the caller from a Bearer header or the
// access_token cookie. Returns nil when no valid identity is present.
func currentUser(c *fiber.Ctx) *models.User {
	var token string
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return nil
		}
		token = tokenParts[1]
	} else {
		token = c.Cookies("access_token")
		if token == "" {
			return nil
		}
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		return nil
	}

	if claims.SessionID != "" {
		var session models.Session
		if err := config.DB.First(&session, "id = ?", claims.SessionID).Error; err != nil {
			return nil
		}
		if session.RevokedAt != nil {
			return nil
		}
	}

	var user models.User
	if err := config.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil
	}
	if !user.IsActive {
		return nil
	}

	c.Locals("sessionID", claims.SessionID)
	return &user
}

// Protected rejects requests without a valid session.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized,
				"Authentication required", utils.CodeUnauthorized)
		}

		c.Locals("user", user)
		c.Locals("userID", user.ID)
		return c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present but
// never rejects. Used by endpoints with the emergency-access trapdoor,
// where the handler decides between 401/403 and a public read.
func OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user := currentUser(c); user != nil {
			c.Locals("user", user)
			c.Locals("userID", user.ID)
		}
		return c.Next()
	}
}

// UserFromContext returns the authenticated user, or nil under OptionalAuth.
func UserFromContext(c *fiber.Ctx) *models.User {
	if u, ok := c.Locals("user").(*models.User); ok {
		return u
	}
	return nil
}

// SessionIDFromContext returns the session behind the presented token,
// or "" for tokens issued without a session.
func SessionIDFromContext(c *fiber.Ctx) string {
	if s, ok := c.Locals("sessionID").(string); ok {
		return s
	}
	return ""
}
