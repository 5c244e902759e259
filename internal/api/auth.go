package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AnonymousOwner owns every simulation when authentication is disabled.
const AnonymousOwner = "anonymous"

// ErrUnauthorized is returned for missing or invalid bearer tokens.
var ErrUnauthorized = errors.New("missing or invalid bearer token")

// AuthConfig configures HS256 bearer-token verification.
type AuthConfig struct {
	Secret   []byte
	Issuer   string // checked when non-empty
	Disabled bool
}

type ownerKey struct{}

// OwnerFromContext returns the authenticated subject.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// IssueToken signs an HS256 token for subject.
func IssueToken(secret []byte, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}

// authenticate resolves the request owner from the Authorization header.
// Browsers cannot set headers on websocket upgrades, so access_token in the
// query string is accepted as well.
func authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Disabled {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, AnonymousOwner)))
				return
			}

			owner, err := verify(cfg, bearerToken(r))
			if err != nil {
				writeError(w, http.StatusUnauthorized, ErrUnauthorized.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func verify(cfg AuthConfig, raw string) (string, error) {
	if raw == "" {
		return "", ErrUnauthorized
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}
