package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestIssueAndValidate(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.Issue("jane")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "jane", claims.Username)
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := NewManager("secret-a", time.Hour).Issue("jane")
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestValidateExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	token, err := m.Issue("jane")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestValidateGarbage(t *testing.T) {
	_, err := NewManager("test-secret", time.Hour).Validate("not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
