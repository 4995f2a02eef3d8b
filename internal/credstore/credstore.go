// Package credstore persists per-provider API credentials in sqlite.
// Reads are always fresh so a key replaced mid-session takes effect on
// the next turn. Credential material never reaches the logs; only
// MaskKey output does.
package credstore

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/pagelens/relay/internal/apierror"
	"github.com/pagelens/relay/internal/store/models"
)

// Credentials is what a provider adapter needs to authenticate. APIKey is
// the normal path. The token fields only apply to managed Google OAuth
// credentials on the gemini provider; for every other provider they stay
// empty.
type Credentials struct {
	APIKey       string    `json:"apiKey"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
}

// UsesOAuth reports whether the credential authenticates with a managed
// OAuth token instead of an API key.
func (c *Credentials) UsesOAuth() bool {
	return c != nil && c.APIKey == "" && (c.AccessToken != "" || c.RefreshToken != "")
}

// Validator executes a provider validation probe. Implemented by the
// stream coordinator, which owns the HTTP client and the adapters.
type Validator interface {
	ValidateCredentials(ctx context.Context, providerID string, creds *Credentials) (bool, error)
}

// Store is the credential store.
type Store struct {
	db        *gorm.DB
	validator Validator
	refresher *googleRefresher
}

// New creates a credential store on top of an opened database.
func New(db *gorm.DB) *Store {
	return &Store{db: db, refresher: newGoogleRefresher()}
}

// SetValidator wires the validation probe executor. Done after
// construction because the coordinator depends on this store.
func (s *Store) SetValidator(v Validator) {
	s.validator = v
}

// Get returns the stored credentials for a provider, or nil when none
// exist. Managed OAuth credentials are refreshed first when their access
// token is expired or about to expire.
func (s *Store) Get(ctx context.Context, providerID string) (*Credentials, error) {
	var row models.Credential
	err := s.db.Where("provider = ?", providerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	creds := &Credentials{
		APIKey:       row.APIKey,
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		ExpiresAt:    row.ExpiresAt,
	}

	if creds.UsesOAuth() && creds.RefreshToken != "" && expiringSoon(creds.ExpiresAt) {
		log.Printf("⚠️ Access token for %s is expired/expiring, refreshing...", providerID)
		refreshed, err := s.refresher.refresh(ctx, creds)
		if err != nil {
			return nil, err
		}
		if err := s.persistRefreshed(providerID, refreshed); err != nil {
			return nil, err
		}
		creds = refreshed
		log.Printf("✅ Refreshed token for %s (expires: %s)", providerID, creds.ExpiresAt.Format(time.RFC3339))
	}

	return creds, nil
}

// Put stores credentials for a provider, replacing any previous entry.
func (s *Store) Put(providerID string, creds *Credentials) error {
	if creds == nil || (creds.APIKey == "" && creds.RefreshToken == "" && creds.AccessToken == "") {
		return apierror.Newf(apierror.KindSetup, "no credential material for %s", providerID)
	}
	row := models.Credential{
		Provider:     providerID,
		APIKey:       creds.APIKey,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    creds.ExpiresAt,
	}
	if err := s.db.Save(&row).Error; err != nil {
		return err
	}
	log.Printf("🔑 Stored credentials for %s (key: %s)", providerID, MaskKey(credentialFingerprint(creds)))
	return nil
}

// Delete removes a provider's credentials. Missing entries are fine.
func (s *Store) Delete(providerID string) error {
	if err := s.db.Delete(&models.Credential{}, "provider = ?", providerID).Error; err != nil {
		return err
	}
	log.Printf("🔑 Removed credentials for %s", providerID)
	return nil
}

// Exists reports whether credentials are stored for a provider.
func (s *Store) Exists(providerID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Credential{}).Where("provider = ?", providerID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsMultiple reports credential presence for several providers at
// once; every requested id gets an entry in the result.
func (s *Store) ExistsMultiple(providerIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(providerIDs))
	for _, id := range providerIDs {
		result[id] = false
	}
	var rows []models.Credential
	if err := s.db.Select("provider").Where("provider IN ?", providerIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.Provider] = true
	}
	return result, nil
}

// Validate runs the provider's validation probe against creds, or against
// the stored credentials when creds is nil.
func (s *Store) Validate(ctx context.Context, providerID string, creds *Credentials) (bool, error) {
	if s.validator == nil {
		return false, apierror.New(apierror.KindSetup, "credential validator not wired")
	}
	if creds == nil {
		stored, err := s.Get(ctx, providerID)
		if err != nil {
			return false, err
		}
		if stored == nil {
			return false, apierror.Newf(apierror.KindSetup, "No API key configured for %s", providerID)
		}
		creds = stored
	}
	return s.validator.ValidateCredentials(ctx, providerID, creds)
}

// MaskKey renders a credential safe for logs. Only a short suffix
// survives, and short keys are redacted entirely.
func MaskKey(k string) string {
	if len(k) < 12 {
		return "****"
	}
	return "..." + k[len(k)-4:]
}

func credentialFingerprint(c *Credentials) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.AccessToken != "" {
		return c.AccessToken
	}
	return c.RefreshToken
}

func expiringSoon(expiresAt time.Time) bool {
	return expiresAt.Before(time.Now().Add(time.Minute))
}

func (s *Store) persistRefreshed(providerID string, creds *Credentials) error {
	return s.db.Model(&models.Credential{}).Where("provider = ?", providerID).Updates(map[string]interface{}{
		"access_token":  creds.AccessToken,
		"refresh_token": creds.RefreshToken,
		"expires_at":    creds.ExpiresAt,
	}).Error
}
