package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword("correct horse", hash))
	assert.Error(t, CheckPassword("wrong horse", hash))
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}

func TestSecretMatches(t *testing.T) {
	tests := []struct {
		name       string
		presented  string
		configured string
		want       bool
	}{
		{"equal", "s3cret", "s3cret", true},
		{"different", "s3cret", "other", false},
		{"prefix", "s3c", "s3cret", false},
		{"empty configured disables", "", "", false},
		{"empty presented", "", "s3cret", false},
		{"configured empty but presented", "anything", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SecretMatches(tt.presented, tt.configured))
		})
	}
}
