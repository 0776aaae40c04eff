package auth

import (
	"testing"
	"time"

	"github.com/angelmondragon/farmcart-sync/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestMintAndParseSessionToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "farmcart"}
	token, err := MintSessionToken(cfg, time.Now(), time.Hour, "user-1", "Ada")
	require.NoError(t, err)

	claims, err := ParseSessionToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Principal())
	require.Equal(t, "Ada", claims.Name)
}

func TestParseSessionTokenRejectsBadSignatureAndExpiry(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret"}
	token, err := MintSessionToken(cfg, time.Now(), time.Hour, "user-1", "")
	require.NoError(t, err)

	_, err = ParseSessionToken(config.JWTConfig{Secret: "other"}, token)
	require.Error(t, err)

	expired, err := MintSessionToken(cfg, time.Now().Add(-2*time.Hour), time.Hour, "user-1", "")
	require.NoError(t, err)
	_, err = ParseSessionToken(cfg, expired)
	require.Error(t, err)
}

func TestParseSessionTokenUnverifiedMode(t *testing.T) {
	token, err := MintSessionToken(config.JWTConfig{Secret: "backend-only"}, time.Now(), time.Hour, "user-7", "Grace")
	require.NoError(t, err)

	claims, err := ParseSessionToken(config.JWTConfig{}, token)
	require.NoError(t, err)
	require.Equal(t, "user-7", claims.Principal())

	_, err = ParseSessionToken(config.JWTConfig{}, "not-a-jwt")
	require.Error(t, err)
}

func TestParseSessionTokenFallsBackToSubject(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret"}
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "sub-3",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := raw.SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	claims, err := ParseSessionToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, "sub-3", claims.Principal())
}

func TestParseSessionTokenRequiresPrincipal(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = ParseSessionToken(cfg, token)
	require.Error(t, err)
	_, err = ParseSessionToken(cfg, "  ")
	require.Error(t, err)
}
