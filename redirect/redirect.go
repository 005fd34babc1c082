// Package redirect builds the login and logout redirect targets.
//
// Identity-hint handling lives only here: the gate and the login handler both call
// [IdentityHint] so the trimming and length rules cannot drift apart.
package redirect

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultLoginPath is the fixed login route.
	DefaultLoginPath = "/auth/login"
	// IdentityHintParam is the query parameter carried through the login redirect.
	IdentityHintParam = "login_hint"
	// MaxIdentityHintLength bounds the hint in characters.
	MaxIdentityHintLength = 255
)

// Builder constructs login redirect URLs.
type Builder struct {
	LoginPath string
}

// Build returns the login URL for a request to original. The target is always the
// login path; a valid identity hint from original's query is re-emitted encoded.
func (b Builder) Build(original *url.URL) string {
	path := b.LoginPath
	if path == "" {
		path = DefaultLoginPath
	}

	var query url.Values
	if original != nil {
		query = original.Query()
	}
	hint, ok := IdentityHint(query)
	if !ok {
		return path
	}
	return path + "?" + IdentityHintParam + "=" + encodeComponent(hint)
}

// IdentityHint returns the trimmed identity hint from query. It reports false when
// the hint is absent, blank or longer than [MaxIdentityHintLength] characters.
func IdentityHint(query url.Values) (string, bool) {
	if query == nil {
		return "", false
	}
	hint := strings.TrimSpace(query.Get(IdentityHintParam))
	if hint == "" || utf8.RuneCountInString(hint) > MaxIdentityHintLength {
		return "", false
	}
	return hint, true
}

// encodeComponent percent-encodes s for use as a query value, with spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// SafeReturnPath returns p when it is a local absolute path, otherwise "/".
func SafeReturnPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") || strings.ContainsAny(p, "\r\n") {
		return "/"
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return p
}

// EndSession returns the provider logout URL. An empty endpoint yields
// postLogoutRedirectURI, or "/" when that is also empty.
func EndSession(endpoint, postLogoutRedirectURI string) string {
	if endpoint == "" {
		if postLogoutRedirectURI == "" {
			return "/"
		}
		return postLogoutRedirectURI
	}
	if postLogoutRedirectURI == "" {
		return endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "/"
	}
	q := u.Query()
	q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	u.RawQuery = q.Encode()
	return u.String()
}
