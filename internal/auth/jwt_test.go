package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_TokenLifecycle(t *testing.T) {
	m, err := NewJWTManager(t.TempDir())
	require.NoError(t, err)

	pair, err := m.GenerateTokenPair("webwatcher", "session-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := m.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "webwatcher", claims.Username)
	assert.Equal(t, "session-1", claims.SessionID)

	refreshed, err := m.RefreshAccessToken(pair.RefreshToken)
	require.NoError(t, err)
	claims, err = m.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.SessionID)
}

func TestJWTManager_RejectsForeignToken(t *testing.T) {
	m1, err := NewJWTManager(t.TempDir())
	require.NoError(t, err)
	m2, err := NewJWTManager(t.TempDir())
	require.NoError(t, err)

	pair, err := m1.GenerateTokenPair("webwatcher", "s")
	require.NoError(t, err)

	_, err = m2.ValidateToken(pair.AccessToken)
	assert.Error(t, err)

	_, err = m1.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestJWTManager_KeyPersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	m1, err := NewJWTManager(dir)
	require.NoError(t, err)
	pair, err := m1.GenerateTokenPair("webwatcher", "s")
	require.NoError(t, err)

	// Same key directory: tokens stay valid
	m2, err := NewJWTManager(dir)
	require.NoError(t, err)
	_, err = m2.ValidateToken(pair.AccessToken)
	assert.NoError(t, err)
}

func TestJWTManager_RegeneratesCorruptKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt_private.pem"), []byte("garbage"), 0600))

	m, err := NewJWTManager(dir)
	require.NoError(t, err)

	pair, err := m.GenerateTokenPair("webwatcher", "s")
	require.NoError(t, err)
	_, err = m.ValidateToken(pair.AccessToken)
	assert.NoError(t, err)
}

func TestSessionStore(t *testing.T) {
	s := NewSessionStore()

	id, err := GenerateSessionID()
	require.NoError(t, err)
	assert.Len(t, id, 32)

	assert.False(t, s.ValidSession(id))
	s.CreateSession(id, "webwatcher")
	assert.True(t, s.ValidSession(id))
	s.InvalidateSession(id)
	assert.False(t, s.ValidSession(id))
}
