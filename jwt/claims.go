package jwt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when the token is not a decodable JWT.
	ErrMalformedToken = errors.New("malformed identity token")
	// ErrMissingSubject is returned when neither contactId nor sub is present.
	ErrMissingSubject = errors.New("identity token has no subject")
)

// Claim names read from the token payload.
const (
	ClaimContactID     = "contactId"
	ClaimEmail         = "email"
	ClaimGivenName     = "given_name"
	ClaimRelationships = "relationships"
	ClaimRoles         = "roles"
	ClaimAAL           = "aal"
	ClaimLOA           = "loa"
)

// Claims is the identity subset of an ID token payload. Unknown claims are
// ignored.
type Claims struct {
	ContactID     string            `json:"contactId"`
	Email         string            `json:"email"`
	GivenName     string            `json:"given_name"`
	Relationships []json.RawMessage `json:"relationships"`
	Roles         []string          `json:"roles"`
	AAL           Level             `json:"aal"`
	LOA           Level             `json:"loa"`
	gjwt.RegisteredClaims
}

// Level is an assurance level claim. Providers send it as either a JSON
// string or a number; both decode to the same text.
type Level string

func (l *Level) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Level(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("assurance level: %w", err)
		}
		*l = Level(n.String())
		return nil
	}
}

// Parse decodes the payload of token without verifying its signature. The
// registered time claims are not validated either; the session lifetime is
// governed by the token endpoint's expires_in.
func Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}

	claims := &Claims{}
	if _, _, err := gjwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.SubjectID() == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// SubjectID returns contactId, falling back to the registered sub claim.
func (c *Claims) SubjectID() string {
	if c.ContactID != "" {
		return c.ContactID
	}
	return c.RegisteredClaims.Subject
}

// DisplayName returns given_name, or the email when no given name was sent.
func (c *Claims) DisplayName() string {
	if name := strings.TrimSpace(c.GivenName); name != "" {
		return name
	}
	return c.Email
}

// RolesOrEmpty never returns nil, so records always serialize roles as an array.
func (c *Claims) RolesOrEmpty() []string {
	if c.Roles == nil {
		return []string{}
	}
	return c.Roles
}

// RelationshipsOrEmpty never returns nil.
func (c *Claims) RelationshipsOrEmpty() []json.RawMessage {
	if c.Relationships == nil {
		return []json.RawMessage{}
	}
	return c.Relationships
}
