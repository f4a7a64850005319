package entrypoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookie/internal/config"
)

func TestCSRFSecret(t *testing.T) {
	t.Run("hex secret is decoded", func(t *testing.T) {
		secret, err := csrfSecret("00ff10")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0xff, 0x10}, secret)
	})

	t.Run("plain secret is used as is", func(t *testing.T) {
		secret, err := csrfSecret("not hex at all")
		require.NoError(t, err)
		assert.Equal(t, []byte("not hex at all"), secret)
	})

	t.Run("missing secret is generated", func(t *testing.T) {
		first, err := csrfSecret("")
		require.NoError(t, err)
		second, err := csrfSecret("")
		require.NoError(t, err)
		assert.Len(t, first, 32)
		assert.NotEqual(t, first, second)
	})
}

func TestNewMetadataProvider(t *testing.T) {
	cfg := &config.Config{}
	assert.Nil(t, NewMetadataProvider(cfg))

	cfg.Import.Enrich = true
	assert.NotNil(t, NewMetadataProvider(cfg))
}
