package session

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
)

var nameRe = regexp.MustCompile(`^[A-Z][a-z]+[A-Z][a-z]+#\d{4}$`)

func TestIssueMintsAndSetsCookies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/lobby", nil)
	h := http.Header{}
	id := Issue(r, h)
	if id.ID == "" || !nameRe.MatchString(id.Name) {
		t.Fatalf("identity %+v", id)
	}
	cookies := strings.Join(h.Values("Set-Cookie"), "\n")
	if !strings.Contains(cookies, "uid="+id.ID) || !strings.Contains(cookies, "nick=") {
		t.Fatalf("cookies not set: %s", cookies)
	}
}

func TestIssueReusesCookies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/lobby", nil)
	r.AddCookie(&http.Cookie{Name: CookieUID, Value: "6f1c1d7e-3a8e-4f5e-9a44-1a4b9f6d2c10"})
	r.AddCookie(&http.Cookie{Name: CookieNick, Value: "Magnus"})
	h := http.Header{}
	id := Issue(r, h)
	if id.ID != "6f1c1d7e-3a8e-4f5e-9a44-1a4b9f6d2c10" || id.Name != "Magnus" {
		t.Fatalf("identity %+v", id)
	}
	if len(h.Values("Set-Cookie")) != 0 {
		t.Fatalf("no cookie should be rewritten")
	}
}

func TestIssueRejectsForgedUID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/lobby", nil)
	r.AddCookie(&http.Cookie{Name: CookieUID, Value: "admin"})
	id := Issue(r, http.Header{})
	if id.ID == "admin" {
		t.Fatalf("non-uuid uid must be replaced")
	}
}

func TestCleanNick(t *testing.T) {
	if got := CleanNick("a\x00b\tc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := CleanNick(strings.Repeat("x", 100)); len(got) != maxNickLen {
		t.Fatalf("len %d", len(got))
	}
	if got := CleanNick("   "); got != "" {
		t.Fatalf("got %q", got)
	}
}
