package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHS256RoundTrip(t *testing.T) {
	token, err := SignHS256("user-1", "biz-1", "owner", time.Hour, "test-secret")
	require.NoError(t, err)

	claims, err := ParseAndVerifyHS256(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "biz-1", claims.BusinessID)
	assert.Equal(t, "owner", claims.Role)

	_, err = ParseAndVerifyHS256(token, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAndVerifyHS256_Expired(t *testing.T) {
	token, err := SignHS256("user-1", "biz-1", "staff", -time.Minute, "s")
	require.NoError(t, err)

	_, err = ParseAndVerifyHS256(token, "s")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAndVerifyHS256_MissingBusiness(t *testing.T) {
	token, err := SignHS256("user-1", "", "staff", time.Hour, "s")
	require.NoError(t, err)

	_, err = ParseAndVerifyHS256(token, "s")
	assert.ErrorIs(t, err, ErrMissingBusiness)
}

func TestParseAndVerifyHS256_RejectsNoneAlg(t *testing.T) {
	claims := Claims{BusinessID: "biz-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseAndVerifyHS256(token, "s")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", tok)

	_, ok = BearerToken("Basic xyz")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}
