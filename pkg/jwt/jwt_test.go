package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("s3cret", 42)
	require.NoError(t, err)

	userID, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestParse_WrongSecret(t *testing.T) {
	token, err := GenerateToken("s3cret", 42)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Expired(t *testing.T) {
	claims := jwt.MapClaims{"sub": 1, "exp": time.Now().Add(-time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = ParseToken("s3cret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_NoSubject(t *testing.T) {
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = ParseToken("s3cret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Garbage(t *testing.T) {
	_, err := ParseToken("s3cret", "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
