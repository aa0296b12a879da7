package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// QAUser is the user id assumed for unauthenticated requests when the QA
// bypass is on.
const QAUser = "qa-demo-user"

type ctxKey int

const userKey ctxKey = iota

var errMissingToken = errors.New("missing bearer token")

// Authenticator verifies HS256 bearer tokens and puts the subject in the
// request context.
type Authenticator struct {
	secret   []byte
	qaBypass bool
}

// NewAuthenticator creates an Authenticator. With qaBypass, requests
// without a token run as QAUser.
func NewAuthenticator(secret string, qaBypass bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), qaBypass: qaBypass}
}

// Middleware rejects requests without a valid token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.verify(r.Header.Get("Authorization"))
		if errors.Is(err, errMissingToken) && a.qaBypass {
			userID, err = QAUser, nil
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, userID)))
	})
}

func (a *Authenticator) verify(header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", errMissingToken
	}
	if len(a.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	tok, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// UserFromContext returns the authenticated user id.
func UserFromContext(ctx context.Context) string {
	s, _ := ctx.Value(userKey).(string)
	return s
}

// SignToken issues an HS256 token for userID valid for ttl.
func SignToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
