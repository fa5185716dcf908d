package compression

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZstdCompressor_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "html", data: "<h1>Unit 1</h1><p>The <strong>quick</strong> brown fox.</p>"},
		{name: "unicode", data: "<p>廣東話 日本語 naïve 😀</p>"},
		{name: "large", data: strings.Repeat("<p>repeat me</p>", 5000)},
	}

	c := ZstdCompressor{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := c.Compress([]byte(tt.data))
			require.NoError(t, err)

			decompressed, err := c.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(decompressed))
		})
	}
}

func TestZstdCompressor_DecompressGarbage(t *testing.T) {
	_, err := ZstdCompressor{}.Decompress([]byte("not zstd"))
	assert.Error(t, err)
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ContentHash(nil))
	assert.Len(t, ContentHash([]byte("x")), 64)
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
}
