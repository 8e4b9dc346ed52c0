// Package auth guards the API with HS256 bearer tokens. The guard is off
// until Init receives a secret.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by API tokens
type Claims struct {
	Client string `json:"client,omitempty"` // calling application
	jwt.RegisteredClaims
}

type contextKey struct{}

var (
	mu     sync.RWMutex
	secret []byte
)

var (
	ErrNoToken      = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoClaims     = errors.New("no claims in context")
	ErrDisabled     = errors.New("token auth disabled")
)

// Init sets the signing secret. An empty secret disables the guard.
func Init(jwtSecret string) {
	mu.Lock()
	defer mu.Unlock()
	if jwtSecret == "" {
		secret = nil
		return
	}
	secret = []byte(jwtSecret)
}

// Enabled reports whether tokens are required
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(secret) > 0
}

func signingKey() []byte {
	mu.RLock()
	defer mu.RUnlock()
	return secret
}

// GenerateToken issues a token for a calling application
func GenerateToken(subject, client string, ttl time.Duration) (string, error) {
	key := signingKey()
	if len(key) == 0 {
		return "", ErrDisabled
	}

	now := time.Now()
	claims := Claims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ParseToken validates signature, algorithm and expiry
func ParseToken(tokenString string) (*Claims, error) {
	key := signingKey()
	if len(key) == 0 {
		return nil, ErrDisabled
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetClaimsFromContext returns the claims stored by Middleware
func GetClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	if !ok || claims == nil {
		return nil, ErrNoClaims
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// Middleware rejects requests without a valid token. It passes everything
// through while auth is disabled.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := bearerToken(r)
		if err != nil {
			unauthorized(w, err)
			return
		}
		claims, err := ParseToken(tokenString)
		if err != nil {
			unauthorized(w, ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	})
}
