package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/markbates/goth"
	"golang.org/x/oauth2"

	"github.com/ManuelReschke/LichessStats/internal/pkg/lichess"
)

const ProviderName = "lichess"

// Provider is a goth provider for Lichess. Lichess only accepts public
// clients, so the authorization code is bound to a PKCE S256 verifier.
type Provider struct {
	ClientKey   string
	Secret      string
	CallbackURL string
	HTTPClient  *http.Client

	api          *lichess.Client
	config       *oauth2.Config
	providerName string
}

// New creates a Lichess provider using the endpoints of api.
func New(api *lichess.Client, clientKey, secret, callbackURL string, scopes ...string) *Provider {
	p := &Provider{
		ClientKey:    clientKey,
		Secret:       secret,
		CallbackURL:  callbackURL,
		api:          api,
		providerName: ProviderName,
	}
	p.config = &oauth2.Config{
		ClientID:     clientKey,
		ClientSecret: secret,
		RedirectURL:  callbackURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   api.AuthURL(),
			TokenURL:  api.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: scopes,
	}
	return p
}

func (p *Provider) Name() string { return p.providerName }

func (p *Provider) SetName(name string) { p.providerName = name }

func (p *Provider) Client() *http.Client {
	return goth.HTTPClientWithFallBack(p.HTTPClient)
}

func (p *Provider) Debug(bool) {}

// BeginAuth creates a session holding the authorization URL and a fresh verifier.
func (p *Provider) BeginAuth(state string) (goth.Session, error) {
	verifier := oauth2.GenerateVerifier()
	return &Session{
		AuthURL:      p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		CodeVerifier: verifier,
	}, nil
}

func (p *Provider) UnmarshalSession(data string) (goth.Session, error) {
	s := &Session{}
	err := json.NewDecoder(strings.NewReader(data)).Decode(s)
	return s, err
}

// FetchUser loads the account behind the session's access token.
func (p *Provider) FetchUser(session goth.Session) (goth.User, error) {
	s := session.(*Session)
	user := goth.User{
		Provider:     p.Name(),
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		RawData: map[string]interface{}{
			"token_type": s.TokenType,
			"scope":      s.Scope,
		},
	}
	if user.AccessToken == "" {
		return user, fmt.Errorf("%s cannot get user information without accessToken", p.providerName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	account, err := p.api.GetAccount(ctx, s.AccessToken)
	if err != nil {
		return user, fmt.Errorf("fetch lichess account: %w", err)
	}
	if account.ID == "" {
		return user, errors.New("lichess account without id")
	}
	user.UserID = account.ID
	user.NickName = account.Username
	user.Name = account.Username
	user.RawData["created_at"] = account.CreatedAt

	// email needs email:read; a missing scope is not fatal
	if email, err := p.api.GetEmail(ctx, s.AccessToken); err == nil {
		user.Email = email
	}
	return user, nil
}

func (p *Provider) RefreshTokenAvailable() bool { return true }

func (p *Provider) RefreshToken(refreshToken string) (*oauth2.Token, error) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, p.Client())
	token := &oauth2.Token{RefreshToken: refreshToken}
	return p.config.TokenSource(ctx, token).Token()
}

// Session stores the PKCE verifier between redirect and callback.
type Session struct {
	AuthURL      string
	CodeVerifier string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

func (s *Session) GetAuthURL() (string, error) {
	if s.AuthURL == "" {
		return "", errors.New(goth.NoAuthUrlErrorMessage)
	}
	return s.AuthURL, nil
}

// Authorize exchanges the callback code for a token set.
func (s *Session) Authorize(provider goth.Provider, params goth.Params) (string, error) {
	p := provider.(*Provider)
	code := params.Get("code")
	if code == "" {
		return "", errors.New("missing authorization code")
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, p.Client())
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(s.CodeVerifier))
	if err != nil {
		return "", err
	}
	if !token.Valid() {
		return "", errors.New("invalid token received from provider")
	}

	s.AccessToken = token.AccessToken
	s.RefreshToken = token.RefreshToken
	s.TokenType = token.Type()
	s.ExpiresAt = token.Expiry
	if scope, ok := token.Extra("scope").(string); ok {
		s.Scope = scope
	}
	return token.AccessToken, nil
}

func (s *Session) Marshal() string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (s *Session) String() string {
	return s.Marshal()
}
