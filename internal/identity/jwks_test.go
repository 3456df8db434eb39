package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://securetoken.google.com/linfoscopio-test"
	testAudience = "linfoscopio-test"
)

type jwksFixture struct {
	key     *rsa.PrivateKey
	server  *httptest.Server
	fetches atomic.Int32
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &jwksFixture{key: key}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		_ = json.NewEncoder(w).Encode(JWKS{Keys: []JWK{{
			Kty: "RSA",
			Kid: "k1",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   "uid-42",
		"email": "dra.perez@example.com",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerify_ValidToken(t *testing.T) {
	f := newJWKSFixture(t)
	v := NewVerifier(f.server.URL, testIssuer, testAudience)

	claims, err := v.Verify(context.Background(), f.sign(t, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "uid-42", claims.UID)
	assert.Equal(t, "dra.perez@example.com", claims.Email)

	_, err = v.Verify(context.Background(), f.sign(t, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.fetches.Load(), "keys are cached between verifications")
}

func TestVerify_Rejections(t *testing.T) {
	f := newJWKSFixture(t)
	v := NewVerifier(f.server.URL, testIssuer, testAudience)

	tests := []struct {
		name   string
		kid    string
		mutate func(jwt.MapClaims)
	}{
		{"expired", "k1", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() }},
		{"wrong issuer", "k1", func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }},
		{"wrong audience", "k1", func(c jwt.MapClaims) { c["aud"] = "other-project" }},
		{"missing subject", "k1", func(c jwt.MapClaims) { delete(c, "sub") }},
		{"unknown kid", "k9", func(jwt.MapClaims) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			_, err := v.Verify(context.Background(), f.sign(t, tt.kid, claims))
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_RejectsHS256(t *testing.T) {
	f := newJWKSFixture(t)
	v := NewVerifier(f.server.URL, testIssuer, testAudience)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	token.Header["kid"] = "k1"
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_EmailVerifiedFlag(t *testing.T) {
	f := newJWKSFixture(t)
	v := NewVerifier(f.server.URL, testIssuer, testAudience)

	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"absent", nil, false},
		{"bool true", true, true},
		{"bool false", false, false},
		{"string true", "true", true},
		{"string false", "false", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			if tt.value != nil {
				claims["email_verified"] = tt.value
			}
			got, err := v.Verify(context.Background(), f.sign(t, "k1", claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.EmailVerified)
			assert.Equal(t, "dra.perez@example.com", got.Email)
		})
	}
}
