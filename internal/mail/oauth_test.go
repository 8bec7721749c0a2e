package mail

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, loaded.AccessToken)
	assert.Equal(t, tok.RefreshToken, loaded.RefreshToken)
	assert.True(t, tok.Expiry.Equal(loaded.Expiry))
}

func TestLoadToken_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := LoadToken(path)
	assert.Error(t, err)
}

func TestTokenSource_UsesCachedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{
		AccessToken: "cached",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))

	var out bytes.Buffer
	ts, err := TokenSource(context.Background(), &oauth2.Config{}, path, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "cached", tok.AccessToken)
}

func TestTokenSource_EmptyCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	conf := &oauth2.Config{
		ClientID: "id",
		Endpoint: oauth2.Endpoint{AuthURL: "https://auth.example.com/auth", TokenURL: "https://auth.example.com/token"},
	}

	var out bytes.Buffer
	_, err := TokenSource(context.Background(), conf, path, strings.NewReader("\n"), &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "https://auth.example.com/auth")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOAuthConfig_MissingFile(t *testing.T) {
	_, err := OAuthConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
