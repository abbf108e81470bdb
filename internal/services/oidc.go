package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/ryokrieger/CityConnect/internal/config"
)

type Provider string

const ProviderGoogle Provider = "google"

// IdentityClaims is what CityConnect keeps from a verified ID token.
type IdentityClaims struct {
	Provider      Provider
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type OAuthProvider interface {
	Provider() Provider
	AuthCodeURL(state, nonce string) string
	ExchangeAndVerify(ctx context.Context, code, nonce string) (IdentityClaims, error)
}

type OIDCProvider struct {
	provider Provider
	verifier *oidc.IDTokenVerifier
	oauth    oauth2.Config
}

// NewOIDCProvider runs discovery against the configured issuer. It fails when
// the provider is only partially configured.
func NewOIDCProvider(ctx context.Context, provider Provider, cfg config.OAuthProviderConfig) (*OIDCProvider, error) {
	for name, value := range map[string]string{
		"client id":     cfg.ClientID,
		"client secret": cfg.ClientSecret,
		"redirect url":  cfg.RedirectURL,
		"issuer url":    cfg.IssuerURL,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s oauth: %s is required", provider, name)
		}
	}

	discovered, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discovering %s issuer: %w", provider, err)
	}

	return &OIDCProvider{
		provider: provider,
		verifier: discovered.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     discovered.Endpoint(),
			Scopes:       cfg.Scopes,
		},
	}, nil
}

func (p *OIDCProvider) Provider() Provider {
	return p.provider
}

func (p *OIDCProvider) AuthCodeURL(state, nonce string) string {
	return p.oauth.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.AccessTypeOnline)
}

func (p *OIDCProvider) ExchangeAndVerify(ctx context.Context, code, nonce string) (IdentityClaims, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("exchanging authorization code: %w", err)
	}

	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return IdentityClaims{}, errors.New("token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("verifying id token: %w", err)
	}
	if idToken.Nonce != nonce {
		return IdentityClaims{}, errors.New("id token nonce mismatch")
	}

	var body struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&body); err != nil {
		return IdentityClaims{}, fmt.Errorf("decoding id token claims: %w", err)
	}

	return IdentityClaims{
		Provider:      p.provider,
		Subject:       idToken.Subject,
		Email:         body.Email,
		EmailVerified: body.EmailVerified,
		Name:          body.Name,
	}, nil
}
