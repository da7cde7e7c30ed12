package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// Profile is the subset of the Google identity the marketplace keeps.
type Profile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type Manager struct {
	conf     *oauth2.Config
	clientID string
}

func NewManager(clientID, clientSecret, redirectURL string) *Manager {
	return &Manager{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		clientID: clientID,
	}
}

func (m *Manager) StateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (m *Manager) AuthURL(state string) string {
	return m.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the callback code for tokens and validates the returned
// ID token against our client id before trusting any claim in it.
func (m *Manager) Exchange(ctx context.Context, code string) (*Profile, error) {
	if m.clientID == "" {
		return nil, errors.New("google client id not configured")
	}

	tok, err := m.conf.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, errors.New("id_token not present in token response")
	}

	payload, err := idtoken.Validate(ctx, rawID, m.clientID)
	if err != nil {
		return nil, err
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, errors.New("email not present in id token")
	}
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)

	return &Profile{
		Subject: payload.Subject,
		Email:   email,
		Name:    name,
		Picture: picture,
	}, nil
}
