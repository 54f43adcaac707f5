package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	tok, err := SignJWT("s3cret", "n8n", []string{"ingest"}, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "n8n", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.HasScope("ingest"))
	assert.False(t, claims.HasScope("grouper"))
}

func TestParse_Rejects(t *testing.T) {
	tok, err := SignJWT("s3cret", "n8n", nil, time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := SignJWT("s3cret", "n8n", nil, -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT("s3cret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseJWT("s3cret", "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSign_EmptySecret(t *testing.T) {
	_, err := SignJWT("", "n8n", nil, time.Hour)
	assert.Error(t, err)
}

func TestHasScope_EmptyMeansAll(t *testing.T) {
	c := &Claims{}
	assert.True(t, c.HasScope("anything"))
}
