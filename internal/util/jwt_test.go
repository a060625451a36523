package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	token, err := GenerateSessionToken("sess-1", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseSessionToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestSessionToken_WrongSecret(t *testing.T) {
	token, err := GenerateSessionToken("sess-1", "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "other")
	assert.Error(t, err)
}

func TestSessionToken_Expired(t *testing.T) {
	token, err := GenerateSessionToken("sess-1", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "secret")
	assert.Error(t, err)
}

func TestSafeBaseName(t *testing.T) {
	name, err := SafeBaseName("../../etc/chat_history.txt")
	require.NoError(t, err)
	assert.Equal(t, "chat_history.txt", name)

	name, err = SafeBaseName(`C:\logs\mine.txt`)
	require.NoError(t, err)
	assert.Equal(t, "mine.txt", name)

	for _, bad := range []string{"", "  ", "..", "/", "a/.."} {
		_, err := SafeBaseName(bad)
		assert.ErrorIs(t, err, ErrInvalidFileName, bad)
	}
}

func TestHasAllowedExtension(t *testing.T) {
	assert.True(t, HasAllowedExtension("Case.TXT", ChatUploadExtensions))
	assert.True(t, HasAllowedExtension("proposal.docx", EvaluationUploadExtensions))
	assert.False(t, HasAllowedExtension("proposal.docx", ChatUploadExtensions))
	assert.False(t, HasAllowedExtension("noext", ChatUploadExtensions))
}
