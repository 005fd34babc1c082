package login

import (
	"errors"
	"time"

	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/refresh"
	"github.com/MrEthical07/goGate/session"
	"golang.org/x/oauth2"
)

// ErrNoIdentityToken is returned when the token response carries neither an
// id_token nor a decodable access token.
var ErrNoIdentityToken = errors.New("token response has no identity token")

var (
	errNoExpiry         = errors.New("token response has no expiry")
	errExpiryOutOfRange = errors.New("token response expires_in out of range")
)

// IdentityToken returns the id_token of a token response, falling back to the
// access token for providers that put identity claims there.
func IdentityToken(token *oauth2.Token) (string, error) {
	if token == nil {
		return "", ErrNoIdentityToken
	}
	if id, ok := token.Extra("id_token").(string); ok && id != "" {
		return id, nil
	}
	if token.AccessToken != "" {
		return token.AccessToken, nil
	}
	return "", ErrNoIdentityToken
}

// NewRecord maps identity claims and a token response onto a session record.
// Expiry is now + expires_in; a response without expires_in falls back to the
// absolute expiry computed by the oauth2 client.
func NewRecord(claims *jwt.Claims, token *oauth2.Token, now time.Time) (*session.Record, error) {
	var expiresAt time.Time
	switch {
	case token.ExpiresIn > refresh.MaxExpiresIn:
		return nil, errExpiryOutOfRange
	case token.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(token.ExpiresIn) * time.Second)
	case !token.Expiry.IsZero():
		expiresAt = token.Expiry
	default:
		return nil, errNoExpiry
	}

	rec := &session.Record{
		SubjectID:                   claims.SubjectID(),
		Email:                       claims.Email,
		DisplayName:                 claims.DisplayName(),
		AccessToken:                 token.AccessToken,
		RefreshToken:                token.RefreshToken,
		ExpiresAt:                   expiresAt.UTC(),
		Roles:                       claims.RolesOrEmpty(),
		Relationships:               claims.RelationshipsOrEmpty(),
		AssuranceLevel:              string(claims.LOA),
		AuthenticatorAssuranceLevel: string(claims.AAL),
	}
	return rec, rec.Validate()
}
