package handler

import (
	"net/http"

	"github.com/aichukanov/docta-auth/internal/domain"
	"github.com/aichukanov/docta-auth/internal/dto"
	"github.com/aichukanov/docta-auth/internal/service"
	"github.com/gin-gonic/gin"
)

const contextUserKey = "current_user"

// SessionMiddleware resolves the session cookie to a user and stores it in
// the request context. Requests without a valid session pass through as
// anonymous; store failures degrade to anonymous as well.
func SessionMiddleware(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(CookieSession)
		if err == nil && sessionID != "" {
			user, err := sessions.Validate(c.Request.Context(), sessionID)
			if err == nil && user != nil {
				c.Set(contextUserKey, user)
			}
		}

		c.Next()
	}
}

// RequireAuth aborts with 401 unless SessionMiddleware resolved a user
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Authentication required",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests
func CurrentUser(c *gin.Context) *domain.User {
	value, exists := c.Get(contextUserKey)
	if !exists {
		return nil
	}

	user, ok := value.(*domain.User)
	if !ok {
		return nil
	}

	return user
}
