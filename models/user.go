package models

import (
	"time"
)

// Roles a user profile may carry. Informational only: no capsule
// operation is gated on role.
var ValidRoles = []string{"user", "family", "doctor", "admin"}

func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a user account in the system
type User struct {
	// IDs are either UUID-v4 strings or opaque alphanumeric ids minted
	// by the sign-up and OAuth paths.
	ID string `gorm:"primaryKey" json:"id"`

	// Authentication fields
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string `gorm:"not null" json:"-"`
	EmailVerified bool   `gorm:"default:false" json:"emailVerified"`

	// Google OAuth fields
	GoogleID       *string `gorm:"uniqueIndex" json:"googleId,omitempty"`
	GoogleImageURL *string `json:"googleImageUrl,omitempty"`

	// Profile information
	FullName  string  `gorm:"not null" json:"fullName"`
	Role      string  `gorm:"not null;default:'user'" json:"role"`
	AvatarURL *string `json:"avatarUrl,omitempty"`

	// Account status
	IsActive bool `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Capsules []Capsule `gorm:"foreignKey:UserID" json:"capsules,omitempty"`
	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`
}

// Session represents a refresh-token session for one device/browser
type Session struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"not null;index" json:"userId"`

	Token     string    `gorm:"uniqueIndex;not null" json:"-"` // sha256 of the refresh token
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`

	IPAddress string     `json:"ipAddress,omitempty"`
	UserAgent string     `json:"userAgent,omitempty"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User User `json:"-"`
}

func (s *Session) IsValid() bool {
	return s.RevokedAt == nil && time.Now().Before(s.ExpiresAt)
}
