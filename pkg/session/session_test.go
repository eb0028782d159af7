package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cr3t-value"

var tokenAlphabet = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestMint_Deterministic(t *testing.T) {
	a, err := Mint("76561198000000000", testSecret)
	require.NoError(t, err)
	b, err := Mint("76561198000000000", testSecret)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := Mint("76561198000000001", testSecret)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestMint_Format(t *testing.T) {
	ids := []string{"", "1", "76561198000000000", "ünïcødé", strings.Repeat("x", 500)}
	for _, id := range ids {
		tok, err := Mint(id, testSecret)
		require.NoError(t, err)
		assert.Regexp(t, tokenAlphabet, tok.String())
		assert.NotContains(t, tok.String(), "=")
		// 32 byte digest, unpadded base64
		assert.Len(t, tok.String(), 43)
	}
}

func TestMint_MatchesStandardEncodingWithReplacements(t *testing.T) {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("76561198000000000"))
	std := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	want := strings.TrimRight(strings.NewReplacer("+", "-", "/", "_").Replace(std), "=")

	got, err := Mint("76561198000000000", testSecret)
	require.NoError(t, err)
	assert.Equal(t, want, got.String())
}

func TestVerify(t *testing.T) {
	tok, err := Mint("76561198000000000", testSecret)
	require.NoError(t, err)

	assert.NoError(t, Verify("76561198000000000", tok.String(), testSecret))
	assert.ErrorIs(t, Verify("76561198000000000", tok.String(), "other-secret"), ErrSessionTokenInvalid)
	assert.ErrorIs(t, Verify("76561198000000000", "tampered", testSecret), ErrSessionTokenInvalid)
	assert.ErrorIs(t, Verify("76561198000000001", tok.String(), testSecret), ErrSessionTokenInvalid)
}

func TestSecretNotConfigured(t *testing.T) {
	c := NewCodec("")
	assert.False(t, c.Configured())

	_, err := c.Mint("76561198000000000")
	assert.ErrorIs(t, err, ErrSecretNotConfigured)
	assert.ErrorIs(t, c.Verify("76561198000000000", "anything"), ErrSecretNotConfigured)

	var nilCodec *Codec
	assert.False(t, nilCodec.Configured())
}

func TestToken_LogValueRedacted(t *testing.T) {
	tok := Token("abc")
	assert.Equal(t, "REDACTED", tok.LogValue().String())
}
