package httpapi

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/squadforge/squadforge/internal/platform/errors"
)

// sessionGrantEnv holds raw env values before post-parse validation.
type sessionGrantEnv struct {
	Issuer    string `env:"SQUADFORGE_SESSION_GRANT_ISSUER"`
	Audience  string `env:"SQUADFORGE_SESSION_GRANT_AUDIENCE"`
	PublicKey string `env:"SQUADFORGE_SESSION_GRANT_PUBLIC_KEY"`
}

// SessionGrantConfig defines how session grants are verified.
type SessionGrantConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// SessionGrantClaims captures validated session grant claims.
type SessionGrantClaims struct {
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	UserID    string
}

// LoadSessionGrantConfigFromEnv reads session grant verification configuration.
func LoadSessionGrantConfigFromEnv(now func() time.Time) (SessionGrantConfig, error) {
	var raw sessionGrantEnv
	if err := env.Parse(&raw); err != nil {
		return SessionGrantConfig{}, fmt.Errorf("parse session grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return SessionGrantConfig{}, fmt.Errorf("SQUADFORGE_SESSION_GRANT_ISSUER is required")
	}
	if audience == "" {
		return SessionGrantConfig{}, fmt.Errorf("SQUADFORGE_SESSION_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return SessionGrantConfig{}, fmt.Errorf("SQUADFORGE_SESSION_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return SessionGrantConfig{}, fmt.Errorf("decode session grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return SessionGrantConfig{}, fmt.Errorf("session grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return SessionGrantConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// ValidateSessionGrant verifies a session grant token and returns its claims.
// The grant subject carries the authenticated user id.
func ValidateSessionGrant(grant string, cfg SessionGrantConfig) (SessionGrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return SessionGrantClaims{}, apperrors.New(apperrors.CodeNotAuthenticated, "session grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return SessionGrantClaims{}, errors.New("session grant verifier is not configured")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return SessionGrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return SessionGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeSessionGrantInvalid,
			"session grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return SessionGrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeSessionGrantInvalid,
			"session grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return SessionGrantClaims{}, apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant sub is required")
	}
	if parsed.ExpiresAt == nil {
		return SessionGrantClaims{}, apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return SessionGrantClaims{}, apperrors.New(apperrors.CodeSessionGrantExpired, "session grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return SessionGrantClaims{}, apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant not active yet")
		}
	}

	claims := SessionGrantClaims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		UserID:    parsed.Subject,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// bearerToken extracts the bearer token from an Authorization header.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeSessionGrantInvalid, "session grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
