package auth

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Context keys set by RequireAuth.
const (
	ContextOwnerID   = "owner_id"
	ContextUserEmail = "user_email"
	ContextUserName  = "user_name"
)

// Session keys written by HandleCallback.
const (
	sessionOwnerID   = "owner_id"
	sessionUserEmail = "user_email"
	sessionUserName  = "user_name"
	sessionAvatar    = "user_avatar"
)

// RequireAuth is a middleware that ensures the user is authenticated
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		ownerID, ok := session.Get(sessionOwnerID).(uint)

		if !ok || ownerID == 0 {
			// User is not authenticated
			if c.GetHeader("HX-Request") == "true" {
				// HTMX request: send HX-Redirect header
				c.Header("HX-Redirect", "/login")
				c.AbortWithStatus(http.StatusUnauthorized)
			} else {
				// Normal request: redirect to login
				c.Redirect(http.StatusFound, "/login")
				c.Abort()
			}
			return
		}

		// Briefing queries are scoped by this id
		c.Set(ContextOwnerID, ownerID)
		c.Set(ContextUserEmail, session.Get(sessionUserEmail))
		c.Set(ContextUserName, session.Get(sessionUserName))

		c.Next()
	}
}

// OwnerID returns the authenticated owner id placed by RequireAuth.
func OwnerID(c *gin.Context) (uint, bool) {
	id, ok := c.Get(ContextOwnerID)
	if !ok {
		return 0, false
	}
	ownerID, ok := id.(uint)
	return ownerID, ok && ownerID != 0
}
