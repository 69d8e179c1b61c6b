package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/tokens"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const sheetsScope = "https://www.googleapis.com/auth/spreadsheets"

// OAuthService runs the Google consent flow for real-mode sync. Each flow is
// guarded by a single-use state nonce so a callback can only complete the
// exchange it belongs to.
type OAuthService struct {
	DB     *gorm.DB
	Tokens *tokens.Store
	Config *oauth2.Config
	Mode   string
}

// NewOAuthConfig builds the oauth2 client config, or nil when the client
// credentials are not configured.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{sheetsScope},
		Endpoint:     google.Endpoint,
	}
}

// AuthStatus describes the connection state.
type AuthStatus struct {
	Mode        string `json:"mode"`
	Connected   bool   `json:"connected"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// Status reports whether an OAuth token is stored.
func (s *OAuthService) Status(ctx context.Context) (*AuthStatus, error) {
	out := &AuthStatus{Mode: s.Mode}
	if s.Config != nil {
		out.RedirectURI = s.Config.RedirectURL
	}
	var cred domain.GoogleCredential
	err := s.DB.WithContext(ctx).First(&cred, 1).Error
	if err == nil {
		out.Connected = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return out, nil
}

// Start issues a consent URL with a fresh single-use state nonce.
func (s *OAuthService) Start(ctx context.Context) (string, error) {
	if s.Mode != "real" {
		return "", ErrRealModeRequired
	}
	if s.Config == nil {
		return "", ErrOAuthNotConfigured
	}
	state := tokens.NewToken()
	if err := s.Tokens.PutOAuthState(ctx, state); err != nil {
		return "", err
	}
	url := s.Config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
	return url, nil
}

// Callback consumes the state nonce, exchanges the code and persists the
// token. An unknown or reused state is rejected before any exchange happens.
func (s *OAuthService) Callback(ctx context.Context, state, code string) error {
	if s.Mode != "real" {
		return ErrRealModeRequired
	}
	if s.Config == nil {
		return ErrOAuthNotConfigured
	}
	err := s.Tokens.TakeOAuthState(ctx, state)
	if errors.Is(err, tokens.ErrNotFound) {
		return ErrOAuthStateInvalid
	}
	if err != nil {
		return err
	}

	exchCtx, cancel := context.WithTimeout(ctx, googleCallTimeout)
	defer cancel()
	tok, err := s.Config.Exchange(exchCtx, code)
	if err != nil {
		return ErrExternalUnavailable
	}

	raw, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	cred := domain.GoogleCredential{ID: 1, Token: datatypes.JSON(raw), UpdatedAt: time.Now().UTC()}
	return s.DB.WithContext(ctx).Save(&cred).Error
}
