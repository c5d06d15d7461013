package gmail

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// storedToken is the credential JSON an owner saves for the gmail service.
// Both the oauth2 token layout and the Google authorized user layout are accepted.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	TokenURI     string    `json:"token_uri"`
	Scopes       []string  `json:"scopes"`
}

// OAuthClient holds the application client used to refresh owner tokens
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// tokenSource builds a token source from a stored credential.
// JSON credentials refresh through the OAuth client; anything else is treated
// as a raw access token that cannot be refreshed.
func (o OAuthClient) tokenSource(ctx context.Context, secret string) (oauth2.TokenSource, bool) {
	secret = strings.TrimSpace(secret)

	var stored storedToken
	if !strings.HasPrefix(secret, "{") || json.Unmarshal([]byte(secret), &stored) != nil {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: secret, TokenType: "Bearer"}), false
	}

	cfg := &oauth2.Config{
		ClientID:     stored.ClientID,
		ClientSecret: stored.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       stored.Scopes,
	}
	if cfg.ClientID == "" {
		cfg.ClientID = o.ClientID
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = o.ClientSecret
	}
	if stored.TokenURI != "" {
		cfg.Endpoint.TokenURL = stored.TokenURI
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{gmailapi.GmailModifyScope}
	}

	token := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}
	if token.AccessToken == "" {
		token.AccessToken = stored.Token
	}

	return cfg.TokenSource(ctx, token), token.RefreshToken != ""
}
