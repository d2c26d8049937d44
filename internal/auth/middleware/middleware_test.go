package auth_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	auth "github.com/iknowaviation/quizport/internal/auth/middleware"
	"github.com/iknowaviation/quizport/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := auth.NewAuthService("secret")
	tok, err := a.IssueJWT("alice", "editor")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Subject != "alice" || c.Role != "editor" {
		t.Fatalf("claims = %+v", c)
	}
	if _, err := auth.NewAuthService("other").Parse(tok); err == nil {
		t.Fatalf("token accepted under a different secret")
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := auth.NewAuthService("secret")
	var sub, role string
	h := auth.JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = auth.SubjectFromContext(r.Context())
		role = rbac.RoleFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no bearer: %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", rr.Code)
	}

	tok, _ := a.IssueJWT("bob", "admin")
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || sub != "bob" || role != "admin" {
		t.Fatalf("code %d sub %q role %q", rr.Code, sub, role)
	}
}

func TestLoginHandler(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	h := auth.LoginHandler(auth.NewAuthService("secret"), auth.Credentials{User: "admin", PassHash: string(hash)})

	cases := map[string]int{
		`{"username":"admin","password":"pw"}`:    http.StatusOK,
		`{"username":"admin","password":"wrong"}`: http.StatusUnauthorized,
		`{"username":"root","password":"pw"}`:     http.StatusUnauthorized,
		`not json`:                                http.StatusBadRequest,
	}
	for body, want := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		if rr.Code != want {
			t.Fatalf("%s: code %d, want %d", body, rr.Code, want)
		}
		if want == http.StatusOK && !strings.Contains(rr.Body.String(), "access_token") {
			t.Fatalf("no token in %s", rr.Body.String())
		}
	}
}

func TestSubjectOr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := auth.SubjectOr(req.Context(), "anon"); got != "anon" {
		t.Fatalf("got %q", got)
	}
	if got := auth.SubjectOr(auth.WithSubject(req.Context(), "x"), "anon"); got != "x" {
		t.Fatalf("got %q", got)
	}
}
