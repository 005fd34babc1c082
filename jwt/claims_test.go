package jwt

import (
	"encoding/json"
	"errors"
	"testing"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
)

func sign(t testing.TB, claims gjwt.MapClaims) string {
	t.Helper()
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestParseReadsIdentityClaims(t *testing.T) {
	token := sign(t, gjwt.MapClaims{
		"sub":        "sub-1",
		"contactId":  "contact-1",
		"email":      "jo@example.com",
		"given_name": "Jo",
		"roles":      []string{"Admin", "Viewer"},
		"relationships": []any{
			"org-1:Employee",
			map[string]any{"id": "org-2"},
		},
		"aal":     "1",
		"loa":     1,
		"exp":     1,
		"unknown": "ignored",
	})

	claims, err := Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if claims.SubjectID() != "contact-1" {
		t.Fatalf("expected contactId subject, got %q", claims.SubjectID())
	}
	if claims.DisplayName() != "Jo" {
		t.Fatalf("unexpected display name %q", claims.DisplayName())
	}
	if diff := cmp.Diff([]string{"Admin", "Viewer"}, claims.Roles); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}
	wantRel := []json.RawMessage{json.RawMessage(`"org-1:Employee"`), json.RawMessage(`{"id":"org-2"}`)}
	if diff := cmp.Diff(wantRel, claims.Relationships); diff != "" {
		t.Fatalf("relationships mismatch (-want +got):\n%s", diff)
	}
	if claims.AAL != "1" || claims.LOA != "1" {
		t.Fatalf("expected string and numeric levels to decode alike, got aal=%q loa=%q", claims.AAL, claims.LOA)
	}
}

func TestParseIgnoresExpiry(t *testing.T) {
	token := sign(t, gjwt.MapClaims{"contactId": "c", "exp": 1})
	if _, err := Parse(token); err != nil {
		t.Fatalf("expected expired token to decode, got %v", err)
	}
}

func TestParseFallsBackToSub(t *testing.T) {
	claims, err := Parse(sign(t, gjwt.MapClaims{"sub": "sub-1", "email": "jo@example.com"}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.SubjectID() != "sub-1" {
		t.Fatalf("expected sub fallback, got %q", claims.SubjectID())
	}
	if claims.DisplayName() != "jo@example.com" {
		t.Fatalf("expected email display name fallback, got %q", claims.DisplayName())
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMalformedToken},
		{name: "two segments", token: "a.b", want: ErrMalformedToken},
		{name: "garbage payload", token: "eyJhbGciOiJIUzI1NiJ9.!!!.sig", want: ErrMalformedToken},
		{name: "no alg", token: "eyJ0eXAiOiJKV1QifQ.eyJjb250YWN0SWQiOiJjIn0.c2ln", want: ErrMalformedToken},
		{name: "no subject", token: sign(t, gjwt.MapClaims{"email": "jo@example.com"}), want: ErrMissingSubject},
		{name: "bad level", token: sign(t, gjwt.MapClaims{"contactId": "c", "aal": []int{1}}), want: ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEmptyCollectionsNeverNil(t *testing.T) {
	claims, err := Parse(sign(t, gjwt.MapClaims{"contactId": "c"}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.RolesOrEmpty() == nil || claims.RelationshipsOrEmpty() == nil {
		t.Fatal("expected empty, non-nil collections")
	}
	if claims.AAL != "" || claims.LOA != "" {
		t.Fatal("expected absent levels to stay empty")
	}
}
