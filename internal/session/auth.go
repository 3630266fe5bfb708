package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenLifetime is used when the portal does not say when a token
// expires.
const DefaultTokenLifetime = 2 * time.Hour

// Authenticator signs in to a portal with application credentials.
type Authenticator struct {
	Portal       string
	ClientID     string
	ClientSecret string
	Username     string
	// HTTP is used for the token request when set.
	HTTP *http.Client

	now func() time.Time
}

// TokenURL returns the portal OAuth token endpoint.
func (a *Authenticator) TokenURL() string {
	return strings.TrimRight(a.Portal, "/") + "/sharing/rest/oauth2/token"
}

// SignIn requests a token with the client credentials grant.
func (a *Authenticator) SignIn(ctx context.Context) (*Session, error) {
	if a.ClientID == "" || a.ClientSecret == "" {
		return nil, errors.New("sign in: client id and secret are required")
	}
	cfg := clientcredentials.Config{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		TokenURL:     a.TokenURL(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if a.HTTP != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.HTTP)
	}
	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	expires := tok.Expiry
	if expires.IsZero() {
		expires = now().Add(DefaultTokenLifetime)
	}
	username := a.Username
	if username == "" {
		username = a.ClientID
	}
	return &Session{
		Username: username,
		Token:    tok.AccessToken,
		Expires:  expires,
		Portal:   a.Portal,
		ClientID: a.ClientID,
	}, nil
}
