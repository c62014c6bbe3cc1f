package crypto

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	sealed, err := Seal("bot-token-123", "hunter2")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "bot-token-123")

	plain, err := Open(sealed, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "bot-token-123", plain)
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := Seal("secret", "right")
	require.NoError(t, err)

	_, err = Open(sealed, "wrong")
	assert.Error(t, err)
}

func TestOpenPassesThroughPlainValues(t *testing.T) {
	plain, err := Open("not-sealed", "")
	require.NoError(t, err)
	assert.Equal(t, "not-sealed", plain)
}

func TestOpenSealedWithoutPassphrase(t *testing.T) {
	_, err := Open(SealedPrefix+"abc", "")
	assert.Error(t, err)
}

func TestSealRejectsEmptyPassphrase(t *testing.T) {
	_, err := Seal("x", "")
	assert.Error(t, err)
}

func TestWebhookSignerDeterministic(t *testing.T) {
	s := &WebhookSigner{Secret: "shh"}
	body := []byte(`{"crypto":"USDT"}`)

	h1 := s.HeadersAt(body, 1700000000)
	h2 := s.HeadersAt(body, 1700000000)
	assert.Equal(t, h1, h2)
	assert.Equal(t, "1700000000", h1[HeaderTimestamp])
	assert.True(t, s.Verify(body, h1[HeaderTimestamp], h1[HeaderSignature]))

	assert.False(t, s.Verify([]byte(`{"crypto":"BTC"}`), h1[HeaderTimestamp], h1[HeaderSignature]))
	other := &WebhookSigner{Secret: "other"}
	assert.False(t, other.Verify(body, h1[HeaderTimestamp], h1[HeaderSignature]))
}

func TestOpenRejectsUnknownVersion(t *testing.T) {
	raw, err := json.Marshal(envelope{Version: 9, Salt: []byte("s"), Nonce: []byte("n")})
	require.NoError(t, err)
	_, err = Open(SealedPrefix+base64.RawURLEncoding.EncodeToString(raw), "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported envelope version 9")
}
