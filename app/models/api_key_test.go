package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAPIKeyIssue(t *testing.T) {
	k := &UserAPIKey{UserID: 1}

	raw, err := k.Issue()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "mbz_"))

	assert.Equal(t, HashAPIKey(raw), k.KeyHash)
	assert.Equal(t, raw[:16], k.KeyPrefix)
	assert.NotNil(t, k.IssuedAt)
	assert.Nil(t, k.LastUsedAt)
	assert.True(t, k.IsActive())
}

func TestUserAPIKeyRevoke(t *testing.T) {
	k := &UserAPIKey{UserID: 99}
	_, err := k.Issue()
	require.NoError(t, err)
	k.Touch()

	k.Revoke()

	assert.False(t, k.IsActive())
	assert.Empty(t, k.KeyHash)
	assert.NotNil(t, k.RevokedAt)
	assert.Nil(t, k.LastUsedAt)
}
