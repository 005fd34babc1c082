package session

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrRecordInvalid is returned when a record violates the access token / expiry invariants.
var ErrRecordInvalid = errors.New("session record invalid")

// Record defines the authenticated identity stored under the auth key.
//
// Record values are treated as immutable once stored; use [Record.WithTokens] to
// derive the refreshed copy.
type Record struct {
	SubjectID   string `json:"subjectId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`

	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`

	Roles         []string          `json:"roles"`
	Relationships []json.RawMessage `json:"relationships"`

	AssuranceLevel              string `json:"loa,omitempty"`
	AuthenticatorAssuranceLevel string `json:"aal,omitempty"`
}

// Validate reports whether r may exist in a store. A record always carries an
// access token and an expiry.
func (r *Record) Validate() error {
	if r == nil {
		return ErrRecordInvalid
	}
	if r.AccessToken == "" {
		return errors.Join(ErrRecordInvalid, errors.New("access token is empty"))
	}
	if r.ExpiresAt.IsZero() {
		return errors.Join(ErrRecordInvalid, errors.New("expiry is not set"))
	}
	return nil
}

// HasRefreshToken reports whether the record can be renewed without user interaction.
func (r *Record) HasRefreshToken() bool {
	return r != nil && r.RefreshToken != ""
}

// NeedsRefresh reports whether now >= ExpiresAt - buffer.
func (r *Record) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	return !now.Before(r.ExpiresAt.Add(-buffer))
}

// WithTokens returns a copy of r with only the token material replaced. Identity,
// roles and relationships are carried over unchanged.
func (r *Record) WithTokens(accessToken, refreshToken string, expiresAt time.Time) *Record {
	next := r.Clone()
	next.AccessToken = accessToken
	next.RefreshToken = refreshToken
	next.ExpiresAt = expiresAt.UTC()
	return next
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Roles != nil {
		out.Roles = append([]string(nil), r.Roles...)
	}
	if r.Relationships != nil {
		out.Relationships = make([]json.RawMessage, len(r.Relationships))
		for i, rel := range r.Relationships {
			out.Relationships[i] = append(json.RawMessage(nil), rel...)
		}
	}
	return &out
}

// LoginState is the short-lived state of one authorization-code round trip.
type LoginState struct {
	State      string    `json:"state"`
	Verifier   string    `json:"verifier"`
	ReturnPath string    `json:"returnPath,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
