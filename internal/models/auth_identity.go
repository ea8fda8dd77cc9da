package models

import (
	"time"

	"github.com/jimdaga/briefdesk/internal/crypto"
	"gorm.io/gorm"
)

var sealer *crypto.Sealer

// InitEncryption sets up token sealing for AuthIdentity rows. Without it
// tokens are stored as given (tests, local development).
func InitEncryption(encryptionKey string) error {
	s, err := crypto.NewSealer(encryptionKey)
	if err != nil {
		return err
	}
	sealer = s
	return nil
}

// AuthIdentity links a user to an OAuth provider account.
type AuthIdentity struct {
	gorm.Model
	UserID         uint   `gorm:"not null;index"`
	User           User   `gorm:"constraint:OnDelete:CASCADE;"`
	Provider       string `gorm:"not null"`                                                                        // e.g., "google"
	ProviderUserID string `gorm:"not null;uniqueIndex:idx_auth_identities_provider_user,where:deleted_at IS NULL"` // partial unique index
	AccessToken    string `gorm:"type:text"`                                                                       // sealed
	RefreshToken   string `gorm:"type:text"`                                                                       // sealed
	TokenExpiry    *time.Time
}

// BeforeSave seals both tokens.
func (a *AuthIdentity) BeforeSave(tx *gorm.DB) error {
	if sealer == nil {
		return nil
	}
	for _, tok := range []*string{&a.AccessToken, &a.RefreshToken} {
		sealed, err := sealer.Seal(*tok)
		if err != nil {
			return err
		}
		*tok = sealed
	}
	return nil
}

// AfterFind opens both tokens.
func (a *AuthIdentity) AfterFind(tx *gorm.DB) error {
	if sealer == nil {
		return nil
	}
	for _, tok := range []*string{&a.AccessToken, &a.RefreshToken} {
		plain, err := sealer.Open(*tok)
		if err != nil {
			return err
		}
		*tok = plain
	}
	return nil
}
