package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/iknowaviation/quizport/internal/rbac"
)

// TokenTTL is the lifetime of an operator session token.
const TokenTTL = 8 * time.Hour

const issuer = "quizport"

// AuthService signs and verifies HS256 session tokens.
type AuthService struct {
	key []byte
	now func() time.Time
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{key: []byte(secret), now: time.Now}
}

// Claims carry the operator name in Subject and the rbac role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(sub, role string) (string, error) {
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
}

func (a *AuthService) Parse(raw string) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return a.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if c.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &c, nil
}

// Credentials is the single operator account allowed to log in.
type Credentials struct {
	User     string
	PassHash string // bcrypt
	Role     string
}

func (c Credentials) check(user, pass string) bool {
	if user != c.User {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.PassHash), []byte(pass)) == nil
}

// LoginHandler serves POST /auth/login {"username": "...", "password": "..."}.
func LoginHandler(a *AuthService, creds Credentials) http.HandlerFunc {
	role := creds.Role
	if role == "" {
		role = "admin"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if !creds.check(req.Username, req.Password) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(req.Username, role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": tok,
			"token_type":   "Bearer",
			"expires_in":   int(TokenTTL.Seconds()),
		})
	}
}

// JWTMiddleware verifies the bearer token and puts subject and role in the
// request context for rbac.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(raw)
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := rbac.WithRole(WithSubject(r.Context(), c.Subject), c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
