package auth

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jimdaga/briefdesk/internal/models"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"gorm.io/gorm"
)

// HandleLogin initiates the Google OAuth flow
func HandleLogin(c *gin.Context) {
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// HandleCallback completes the OAuth flow, upserts the user, and stores the
// owner id in the session
func HandleCallback(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
		if err != nil {
			log.Printf("Auth error: %v", err)
			c.Redirect(http.StatusFound, "/login?error=auth_failed")
			return
		}

		user, err := UpsertUser(db, gothUser, time.Now())
		if err != nil {
			log.Printf("User upsert error: %v", err)
			c.Redirect(http.StatusFound, "/login?error=user_failed")
			return
		}

		if err := Login(c, user, gothUser.AvatarURL); err != nil {
			log.Printf("Session save error: %v", err)
			c.Redirect(http.StatusFound, "/login?error=session_failed")
			return
		}

		log.Printf("User authenticated: %s (%s)", user.Name, user.Email)
		c.Redirect(http.StatusFound, "/briefings")
	}
}

// Login stores user in the session.
func Login(c *gin.Context, user *models.User, avatarURL string) error {
	session := sessions.Default(c)
	session.Set(sessionOwnerID, user.ID)
	session.Set(sessionUserEmail, user.Email)
	session.Set(sessionUserName, user.Name)
	session.Set(sessionAvatar, avatarURL)
	return session.Save()
}

// UpsertUser creates or refreshes the user row for an OAuth login and stores
// the provider tokens on its auth identity.
func UpsertUser(db *gorm.DB, gothUser goth.User, now time.Time) (*models.User, error) {
	if gothUser.Email == "" {
		return nil, errors.New("oauth user has no email")
	}

	var user models.User
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("email = ?", gothUser.Email).First(&user)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			user = models.User{
				Email:       gothUser.Email,
				Name:        gothUser.Name,
				LastLoginAt: &now,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		} else if result.Error != nil {
			return result.Error
		} else {
			if err := tx.Model(&user).Updates(map[string]interface{}{
				"name":          gothUser.Name,
				"last_login_at": now,
			}).Error; err != nil {
				return err
			}
		}

		var identity models.AuthIdentity
		result = tx.Where("provider = ? AND provider_user_id = ?", gothUser.Provider, gothUser.UserID).First(&identity)
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		identity.UserID = user.ID
		identity.Provider = gothUser.Provider
		identity.ProviderUserID = gothUser.UserID
		identity.AccessToken = gothUser.AccessToken
		identity.RefreshToken = gothUser.RefreshToken
		if !gothUser.ExpiresAt.IsZero() {
			expiry := gothUser.ExpiresAt
			identity.TokenExpiry = &expiry
		}
		return tx.Omit("User").Save(&identity).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// HandleLogout clears the session and redirects to login
func HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()

	if err := session.Save(); err != nil {
		log.Printf("Session clear error: %v", err)
	}

	c.Redirect(http.StatusFound, "/login")
}
