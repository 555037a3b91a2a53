package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyPair(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func signToken(t *testing.T, key *rsa.PrivateKey, c jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTVerifier(t *testing.T) {
	key, pub := newKeyPair(t)
	v, err := NewJWTVerifier(pub, "https://issuer.example")
	require.NoError(t, err)
	ctx := context.Background()

	valid := signToken(t, key, jwt.MapClaims{
		"sub":   "user-1",
		"email": "u1@example.com",
		"iss":   "https://issuer.example",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	id, err := v.Verify(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, Identity{OwnerID: "user-1", Email: "u1@example.com"}, id)

	t.Run("expired", func(t *testing.T) {
		token := signToken(t, key, jwt.MapClaims{"sub": "user-1", "iss": "https://issuer.example", "exp": time.Now().Add(-time.Hour).Unix()})
		_, err := v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signToken(t, key, jwt.MapClaims{"sub": "user-1", "iss": "https://other.example"})
		_, err := v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := signToken(t, key, jwt.MapClaims{"iss": "https://issuer.example"})
		_, err := v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other key", func(t *testing.T) {
		other, _ := newKeyPair(t)
		token := signToken(t, other, jwt.MapClaims{"sub": "user-1", "iss": "https://issuer.example"})
		_, err := v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("hmac rejected", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewJWTVerifierFromFile(t *testing.T) {
	_, pub := newKeyPair(t)
	path := filepath.Join(t.TempDir(), "jwt.pem")
	require.NoError(t, os.WriteFile(path, pub, 0o600))

	_, err := NewJWTVerifierFromFile(path, "")
	require.NoError(t, err)

	_, err = NewJWTVerifierFromFile(filepath.Join(t.TempDir(), "missing.pem"), "")
	require.Error(t, err)

	_, err = NewJWTVerifier([]byte("not pem"), "")
	require.Error(t, err)
}

func TestStaticAndChainVerifier(t *testing.T) {
	ctx := context.Background()
	static := NewStaticVerifier(map[string]string{"dev-token": "dev-user", "": "ignored"})

	id, err := static.Verify(ctx, "dev-token")
	require.NoError(t, err)
	assert.Equal(t, "dev-user", id.OwnerID)

	_, err = static.Verify(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	key, pub := newKeyPair(t)
	jwtVerifier, err := NewJWTVerifier(pub, "")
	require.NoError(t, err)
	chain := ChainVerifier{jwtVerifier, static}

	id, err = chain.Verify(ctx, "dev-token")
	require.NoError(t, err)
	assert.Equal(t, "dev-user", id.OwnerID)

	id, err = chain.Verify(ctx, signToken(t, key, jwt.MapClaims{"sub": "jwt-user"}))
	require.NoError(t, err)
	assert.Equal(t, "jwt-user", id.OwnerID)

	_, err = chain.Verify(ctx, "unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ChainVerifier{}.Verify(ctx, "dev-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
