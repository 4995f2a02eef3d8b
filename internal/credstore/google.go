package credstore

import (
	"context"
	"log"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"

	"github.com/pagelens/relay/internal/apierror"
)

// Scopes requested for managed Gemini credentials.
var googleScopes = []string{
	"https://www.googleapis.com/auth/generative-language",
	"https://www.googleapis.com/auth/cloud-platform",
}

// googleRefresher exchanges a refresh token for a fresh access token.
// The OAuth client comes from GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET;
// without them, managed credentials cannot be refreshed.
type googleRefresher struct {
	endpoint oauth2.Endpoint
}

func newGoogleRefresher() *googleRefresher {
	return &googleRefresher{endpoint: googleOAuth.Endpoint}
}

func (g *googleRefresher) config() (*oauth2.Config, error) {
	clientID := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET"))
	if clientID == "" || clientSecret == "" {
		return nil, apierror.New(apierror.KindAuth,
			"Google OAuth client not configured (GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET)")
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       googleScopes,
		Endpoint:     g.endpoint,
	}, nil
}

// refresh returns a copy of creds carrying a fresh access token.
// Permanent failures (revoked or invalid grant) classify as auth;
// anything else is transport and worth retrying later.
func (g *googleRefresher) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}

	source := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	newToken, err := source.Token()
	if err != nil {
		if isPermanentRefreshError(err) {
			log.Printf("🔒 Refresh token rejected permanently: %v", err)
			return nil, apierror.Wrap(apierror.KindAuth, "Google credentials revoked, please sign in again", err)
		}
		return nil, apierror.Wrap(apierror.KindTransport, "token refresh failed", err)
	}

	refreshed := &Credentials{
		AccessToken:  newToken.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    newToken.Expiry,
	}
	// Persist rotated refresh token if provided (RFC 6749 compliance).
	if newToken.RefreshToken != "" && newToken.RefreshToken != creds.RefreshToken {
		log.Printf("🔄 Rotating refresh token")
		refreshed.RefreshToken = newToken.RefreshToken
	}
	return refreshed, nil
}

func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
