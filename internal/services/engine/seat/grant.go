// Package seat issues and verifies seat grants: short-lived EdDSA tokens
// that let one connection act as one player at one table.
package seat

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/dragondice/internal/platform/config"
	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/platform/id"
	"github.com/louisbranch/dragondice/internal/platform/requestctx"
)

// DefaultTTL is how long an issued grant stays valid.
const DefaultTTL = 12 * time.Hour

type grantEnv struct {
	Issuer     string `env:"DRAGON_DICE_SEAT_GRANT_ISSUER" envDefault:"dragondice"`
	Audience   string `env:"DRAGON_DICE_SEAT_GRANT_AUDIENCE" envDefault:"dragondice-engine"`
	PublicKey  string `env:"DRAGON_DICE_SEAT_GRANT_PUBLIC_KEY"`
	PrivateKey string `env:"DRAGON_DICE_SEAT_GRANT_PRIVATE_KEY"`
}

// Config defines how grants are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// IssuerConfig defines how grants are signed.
type IssuerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
	NewID    func() (string, error)
}

// Claims are the validated contents of a grant.
type Claims struct {
	Seat      requestctx.Seat
	JWTID     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type grantClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Player    string `json:"player"`
}

// LoadConfigFromEnv reads grant verification settings. A missing public key
// returns ok=false so hosts can run without seat checks in local play.
func LoadConfigFromEnv(now func() time.Time) (cfg Config, ok bool, err error) {
	var raw grantEnv
	if err := config.ParseEnv(&raw); err != nil {
		return Config{}, false, fmt.Errorf("parse seat grant env: %w", err)
	}
	if strings.TrimSpace(raw.PublicKey) == "" {
		return Config{}, false, nil
	}
	key, err := decodeKey(raw.PublicKey, ed25519.PublicKeySize)
	if err != nil {
		return Config{}, false, fmt.Errorf("seat grant public key: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		Key:      ed25519.PublicKey(key),
		Now:      now,
	}, true, nil
}

// LoadIssuerFromEnv reads grant signing settings.
func LoadIssuerFromEnv() (IssuerConfig, error) {
	var raw grantEnv
	if err := config.ParseEnv(&raw); err != nil {
		return IssuerConfig{}, fmt.Errorf("parse seat grant env: %w", err)
	}
	if strings.TrimSpace(raw.PrivateKey) == "" {
		return IssuerConfig{}, fmt.Errorf("DRAGON_DICE_SEAT_GRANT_PRIVATE_KEY is required")
	}
	key, err := decodeKey(raw.PrivateKey, ed25519.PrivateKeySize)
	if err != nil {
		return IssuerConfig{}, fmt.Errorf("seat grant private key: %w", err)
	}
	return IssuerConfig{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		Key:      ed25519.PrivateKey(key),
	}, nil
}

// Issue signs a grant for seat.
func Issue(seat requestctx.Seat, cfg IssuerConfig) (string, error) {
	if strings.TrimSpace(seat.Session) == "" || strings.TrimSpace(seat.Player) == "" {
		return "", errors.New("seat needs a session and a player")
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return "", errors.New("seat grant issuer is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	jti, err := cfg.NewID()
	if err != nil {
		return "", fmt.Errorf("generate grant id: %w", err)
	}
	now := cfg.Now().UTC()
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		},
		SessionID: seat.Session,
		Player:    seat.Player,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign seat grant: %w", err)
	}
	return signed, nil
}

// Validate verifies grant and checks it was issued for session.
func Validate(grant, session string, cfg Config) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, apperrors.New(apperrors.CodeSeatGrantInvalid, "seat grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("seat grant verifier is not configured")
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(*jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer != cfg.Issuer {
		return Claims{}, mismatch("issuer")
	}
	if !slices.Contains(parsed.Audience, cfg.Audience) {
		return Claims{}, mismatch("audience")
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeSeatGrantInvalid, "seat grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeSeatGrantInvalid, "seat grant exp is required")
	}
	now := cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeSeatGrantExpired, "seat grant is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return Claims{}, apperrors.New(apperrors.CodeSeatGrantInvalid, "seat grant not active yet")
	}
	if strings.TrimSpace(parsed.Player) == "" {
		return Claims{}, apperrors.New(apperrors.CodeSeatGrantInvalid, "seat grant player is required")
	}
	if parsed.SessionID == "" || parsed.SessionID != session {
		return Claims{}, mismatch("session_id")
	}

	out := Claims{
		Seat:      requestctx.Seat{Session: parsed.SessionID, Player: parsed.Player},
		JWTID:     parsed.ID,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}
	if parsed.IssuedAt != nil {
		out.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return out, nil
}

func mismatch(field string) error {
	return apperrors.WithMetadata(apperrors.CodeSeatGrantMismatch, "seat grant "+field+" mismatch", map[string]string{"Field": field})
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrEd25519Verification):
		return apperrors.Wrap(apperrors.CodeSeatGrantInvalid, "seat grant signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.Wrap(apperrors.CodeSeatGrantInvalid, "seat grant alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.CodeSeatGrantInvalid, "seat grant is invalid", err)
}

func decodeKey(value string, size int) ([]byte, error) {
	value = strings.TrimSpace(value)
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		if decoded, err = base64.StdEncoding.DecodeString(value); err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	}
	if len(decoded) != size {
		return nil, fmt.Errorf("key must be %d bytes, got %d", size, len(decoded))
	}
	return decoded, nil
}
