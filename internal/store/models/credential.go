package models

import "time"

// Credential stores one provider's API credentials. APIKey is the normal
// path; the token fields are only populated for managed Google OAuth
// credentials on the gemini provider.
type Credential struct {
	Provider     string `gorm:"primaryKey"`
	APIKey       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
