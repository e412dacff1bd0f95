package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure; callers only need to
// know the caller could not be identified.
var ErrInvalidToken = errors.New("invalid identity token")

// Verifier resolves a bearer token issued by the host platform to an
// identity id. Token issuance and session handling live outside this
// service; only the shared-secret HS256 signature is checked here.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier from the shared signing secret.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("identity secret required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// IdentityID verifies the token and returns its subject.
func (v *Verifier) IdentityID(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}
