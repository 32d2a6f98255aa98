package secret

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealOpen(t *testing.T) {
	box, err := New(hexKey)
	require.NoError(t, err)
	require.True(t, box.Enabled())

	sealed, err := box.Seal("my-pat")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, Prefix))
	assert.NotContains(t, sealed, "my-pat")

	again, err := box.Seal("my-pat")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "my-pat", plain)
}

func TestBase64Key(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(255 - i)
	}
	box, err := New(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.True(t, box.Enabled())
}

func TestBadKey(t *testing.T) {
	_, err := New("too-short")
	assert.Error(t, err)
}

func TestPassThroughWithoutKey(t *testing.T) {
	box, err := New("")
	require.NoError(t, err)
	assert.False(t, box.Enabled())

	v, err := box.Seal("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	v, err = box.Open("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
}

func TestOpenSealedWithoutKey(t *testing.T) {
	keyed, err := New(hexKey)
	require.NoError(t, err)
	sealed, err := keyed.Seal("pat")
	require.NoError(t, err)

	plain, _ := New("")
	_, err = plain.Open(sealed)
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestOpenWithWrongKey(t *testing.T) {
	a, _ := New(hexKey)
	b, _ := New(strings.Repeat("ab", 32))

	sealed, err := a.Seal("pat")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = a.Open(Prefix + "!!!")
	assert.ErrorIs(t, err, ErrCorrupt)
}
