package seat

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/platform/requestctx"
)

var grantNow = time.Date(2026, time.May, 4, 18, 0, 0, 0, time.UTC)

func testKeys(t *testing.T) (IssuerConfig, Config) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	private := ed25519.NewKeyFromSeed(seed)
	clock := func() time.Time { return grantNow }
	issuer := IssuerConfig{
		Issuer:   "dragondice",
		Audience: "dragondice-engine",
		Key:      private,
		TTL:      time.Hour,
		Now:      clock,
		NewID:    func() (string, error) { return "grant-1", nil },
	}
	verifier := Config{
		Issuer:   "dragondice",
		Audience: "dragondice-engine",
		Key:      private.Public().(ed25519.PublicKey),
		Now:      clock,
	}
	return issuer, verifier
}

func TestIssueThenValidate(t *testing.T) {
	issuer, verifier := testKeys(t)
	token, err := Issue(requestctx.Seat{Session: "s1", Player: "ana"}, issuer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := Validate(token, "s1", verifier)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Seat.Player != "ana" || claims.JWTID != "grant-1" {
		t.Fatalf("claims = %+v", claims)
	}
	if !claims.ExpiresAt.Equal(grantNow.Add(time.Hour)) {
		t.Fatalf("expires = %s", claims.ExpiresAt)
	}
}

func TestValidateRejects(t *testing.T) {
	issuer, verifier := testKeys(t)
	token, err := Issue(requestctx.Seat{Session: "s1", Player: "ana"}, issuer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	otherKey := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	forged, err := Issue(requestctx.Seat{Session: "s1", Player: "ana"}, IssuerConfig{
		Issuer: issuer.Issuer, Audience: issuer.Audience, Key: otherKey, Now: issuer.Now,
	})
	if err != nil {
		t.Fatalf("issue forged: %v", err)
	}
	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"player": "ana"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign hs256: %v", err)
	}

	late := verifier
	late.Now = func() time.Time { return grantNow.Add(2 * time.Hour) }
	wrongAudience := verifier
	wrongAudience.Audience = "elsewhere"

	tests := []struct {
		name    string
		token   string
		session string
		cfg     Config
		code    apperrors.Code
	}{
		{"empty", " ", "s1", verifier, apperrors.CodeSeatGrantInvalid},
		{"garbage", "not.a.jwt", "s1", verifier, apperrors.CodeSeatGrantInvalid},
		{"wrong key", forged, "s1", verifier, apperrors.CodeSeatGrantInvalid},
		{"wrong alg", hmac, "s1", verifier, apperrors.CodeSeatGrantInvalid},
		{"expired", token, "s1", late, apperrors.CodeSeatGrantExpired},
		{"other session", token, "s2", verifier, apperrors.CodeSeatGrantMismatch},
		{"audience", token, "s1", wrongAudience, apperrors.CodeSeatGrantMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.token, tt.session, tt.cfg)
			if got := apperrors.CodeOf(err); got != tt.code {
				t.Fatalf("code = %s, want %s (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestIssueRequiresSeat(t *testing.T) {
	issuer, _ := testKeys(t)
	if _, err := Issue(requestctx.Seat{Session: "s1"}, issuer); err == nil {
		t.Fatal("expected error without player")
	}
	if _, err := Issue(requestctx.Seat{Session: "s1", Player: "ana"}, IssuerConfig{}); err == nil {
		t.Fatal("expected error without key")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	_, verifier := testKeys(t)
	t.Setenv("DRAGON_DICE_SEAT_GRANT_PUBLIC_KEY", "")
	if _, ok, err := LoadConfigFromEnv(nil); err != nil || ok {
		t.Fatalf("no key: ok=%v err=%v", ok, err)
	}

	t.Setenv("DRAGON_DICE_SEAT_GRANT_PUBLIC_KEY", base64.StdEncoding.EncodeToString(verifier.Key))
	cfg, ok, err := LoadConfigFromEnv(nil)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if cfg.Issuer != "dragondice" || cfg.Audience != "dragondice-engine" || !cfg.Key.Equal(verifier.Key) {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("DRAGON_DICE_SEAT_GRANT_PUBLIC_KEY", "c2hvcnQ")
	if _, _, err := LoadConfigFromEnv(nil); err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Fatalf("short key err = %v", err)
	}
}
