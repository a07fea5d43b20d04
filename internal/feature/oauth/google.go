// Package oauth talks to Google: builds consent URLs, exchanges authorization codes and verifies
// ID tokens against Google's published key set.
package oauth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"csesa-backend/internal/domain"
)

const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// Claims 从 ID token 中取出的用户信息
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Issuer       string
	JWKSURL      string
	Timeout      time.Duration
	// Endpoint 为空时使用 Google 官方端点
	Endpoint *oauth2.Endpoint
}

type Google struct {
	conf     oauth2.Config
	verifier *oidc.IDTokenVerifier
	client   *http.Client
	timeout  time.Duration
}

func NewGoogle(cfg Config) *Google {
	if cfg.Issuer == "" {
		cfg.Issuer = GoogleIssuer
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = GoogleJWKSURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	ep := google.Endpoint
	if cfg.Endpoint != nil {
		ep = *cfg.Endpoint
	}
	client := &http.Client{Timeout: cfg.Timeout}

	// 密钥集在后台按需刷新，使用带超时的 client
	keys := oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), client), cfg.JWKSURL)
	verifier := oidc.NewVerifier(cfg.Issuer, &keySet{inner: keys}, &oidc.Config{ClientID: cfg.ClientID})

	return &Google{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: verifier,
		client:   client,
		timeout:  cfg.Timeout,
	}
}

// AuthURL state 原样透传，由调用方自行编码
func (g *Google) AuthURL(state, redirectURI string) string {
	conf := g.withRedirect(redirectURI)
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange trades an authorization code for the raw ID token.
func (g *Google) Exchange(ctx context.Context, code, redirectURI string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", domain.Validation("authorization code is required")
	}
	ctx, cancel := context.WithTimeout(context.WithValue(ctx, oauth2.HTTPClient, g.client), g.timeout)
	defer cancel()

	conf := g.withRedirect(redirectURI)
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return "", domain.Wrap(domain.KindInvalidToken, "authorization code rejected", err)
		}
		return "", domain.Wrap(domain.KindProviderUnavailable, "token endpoint unreachable", err)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", domain.NewError(domain.KindInvalidToken, "token response has no id_token")
	}
	return raw, nil
}

// Verify checks signature, audience, issuer and expiry of a Google ID token.
func (g *Google) Verify(ctx context.Context, rawIDToken string) (*Claims, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, domain.NewError(domain.KindInvalidToken, "id token is required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	p := &fetchState{}
	ctx = context.WithValue(ctx, fetchStateKey{}, p)

	tok, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		if p.unavailable {
			return nil, domain.Wrap(domain.KindProviderUnavailable, "could not fetch signing keys", err)
		}
		return nil, domain.Wrap(domain.KindInvalidToken, "id token verification failed", err)
	}
	var c Claims
	if err := tok.Claims(&c); err != nil {
		return nil, domain.Wrap(domain.KindInvalidToken, "malformed id token claims", err)
	}
	if c.Subject == "" {
		c.Subject = tok.Subject
	}
	return &c, nil
}

func (g *Google) withRedirect(redirectURI string) *oauth2.Config {
	conf := g.conf
	if redirectURI != "" {
		conf.RedirectURL = redirectURI
	}
	return &conf
}

type fetchStateKey struct{}

// fetchState 记录本次校验中取密钥是否失败；oidc 用 %v 包装签名错误，错误链在外层已丢失
type fetchState struct{ unavailable bool }

type keySet struct{ inner oidc.KeySet }

func (k *keySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	payload, err := k.inner.VerifySignature(ctx, jwt)
	if err != nil && keyFetchFailed(err) {
		if p, ok := ctx.Value(fetchStateKey{}).(*fetchState); ok {
			p.unavailable = true
		}
	}
	return payload, err
}

func keyFetchFailed(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "fetching keys") || strings.Contains(msg, "get keys failed")
}
