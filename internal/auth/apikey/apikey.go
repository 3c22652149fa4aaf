// Package apikey validates API keys against the SHA-256 digests listed in
// configuration. Raw keys are generated with crypto/rand and never stored.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/logger"
)

var (
	ErrMissingKey = errors.New("missing api key")
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

type contextKey struct{}

// KeyInfo describes the key a request was authenticated with.
type KeyInfo struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Validator struct {
	keys   []config.APIKey
	now    func() time.Time
	logger *slog.Logger
}

func NewValidator(keys []config.APIKey) *Validator {
	return &Validator{
		keys:   keys,
		now:    time.Now,
		logger: slog.Default().With("component", "apikey-validator"),
	}
}

// Validate hashes rawKey and compares it with every configured digest.
func (v *Validator) Validate(rawKey string) (*KeyInfo, error) {
	if rawKey == "" {
		return nil, ErrMissingKey
	}
	hash := []byte(HashKey(rawKey))
	for _, key := range v.keys {
		if subtle.ConstantTimeCompare(hash, []byte(strings.ToLower(key.Hash))) != 1 {
			continue
		}
		if key.ExpiresAt != nil && key.ExpiresAt.Before(v.now()) {
			v.logger.Info("expired api key presented", "name", key.Name, "expired_at", key.ExpiresAt)
			return nil, ErrExpiredKey
		}
		return &KeyInfo{Name: key.Name, ExpiresAt: key.ExpiresAt}, nil
	}
	return nil, ErrInvalidKey
}

// Middleware rejects requests without a valid key with 401. The key is read
// from an Authorization: Bearer header or X-API-Key.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := v.Validate(extractAPIKey(r))
		if err != nil {
			logger.FromContext(r.Context()).Warn("api key rejected", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintf(w, "{\"error\":%q}\n", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the key that authenticated the request, if any.
func FromContext(ctx context.Context) *KeyInfo {
	info, _ := ctx.Value(contextKey{}).(*KeyInfo)
	return info
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateKey returns a random 32-byte hex-encoded key.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
