package redirect

import (
	"net/url"
	"strings"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestBuildLoginRedirect(t *testing.T) {
	tests := []struct {
		name     string
		original string
		want     string
	}{
		{name: "no hint", original: "/dashboard", want: "/auth/login"},
		{name: "hint encoded", original: "/dashboard?login_hint=user@example.com", want: "/auth/login?login_hint=user%40example.com"},
		{name: "hint trimmed", original: "/x?login_hint=%20%20a@b.com%20", want: "/auth/login?login_hint=a%40b.com"},
		{name: "whitespace hint dropped", original: "/x?login_hint=%20%20%20", want: "/auth/login"},
		{name: "empty hint dropped", original: "/x?login_hint=", want: "/auth/login"},
		{name: "inner space as %20", original: "/x?login_hint=a%20b", want: "/auth/login?login_hint=a%20b"},
		{name: "other params ignored", original: "/x?tab=2&login_hint=u@e.com", want: "/auth/login?login_hint=u%40e.com"},
		{name: "max length kept", original: "/x?login_hint=" + strings.Repeat("a", 255), want: "/auth/login?login_hint=" + strings.Repeat("a", 255)},
		{name: "over max length dropped", original: "/x?login_hint=" + strings.Repeat("a", 256), want: "/auth/login"},
	}

	b := Builder{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Build(mustURL(t, tt.original)); got != tt.want {
				t.Fatalf("Build(%q) = %q, want %q", tt.original, got, tt.want)
			}
		})
	}
}

func TestBuildUsesConfiguredLoginPath(t *testing.T) {
	b := Builder{LoginPath: "/signin"}
	if got := b.Build(mustURL(t, "/a?login_hint=x")); got != "/signin?login_hint=x" {
		t.Fatalf("unexpected redirect %q", got)
	}
	if got := b.Build(nil); got != "/signin" {
		t.Fatalf("unexpected redirect for nil url %q", got)
	}
}

func TestIdentityHintCountsCharactersNotBytes(t *testing.T) {
	hint := strings.Repeat("é", 255)
	got, ok := IdentityHint(url.Values{IdentityHintParam: {hint}})
	if !ok || got != hint {
		t.Fatal("255 multi-byte characters should be accepted")
	}
}

func TestSafeReturnPath(t *testing.T) {
	tests := map[string]string{
		"":                      "/",
		"/dashboard":            "/dashboard",
		"/a/b?c=d":              "/a/b?c=d",
		"//evil.example.com":    "/",
		"/\\evil.example.com":   "/",
		"https://evil.example/": "/",
		"relative":              "/",
		"/x\r\nSet-Cookie: a":   "/",
	}
	for in, want := range tests {
		if got := SafeReturnPath(in); got != want {
			t.Fatalf("SafeReturnPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEndSession(t *testing.T) {
	got := EndSession("https://idp.example.com/logout", "https://app.example.com")
	if got != "https://idp.example.com/logout?post_logout_redirect_uri=https%3A%2F%2Fapp.example.com" {
		t.Fatalf("unexpected end session url %q", got)
	}
	if got := EndSession("", "https://app.example.com"); got != "https://app.example.com" {
		t.Fatalf("expected fallback to post logout uri, got %q", got)
	}
	if got := EndSession("", ""); got != "/" {
		t.Fatalf("expected root fallback, got %q", got)
	}
}
