// Package compression provides codecs for content stored in the database
package compression

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/klauspost/compress/zstd"
)

// Compressor compresses and decompresses stored content
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ZstdCompressor implements Compressor with zstd
type ZstdCompressor struct{}

func (z ZstdCompressor) Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

func (z ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}

// ContentHash returns the hex sha256 of content
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
