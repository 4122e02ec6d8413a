package conversation

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressionType represents the compression algorithm used
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionZstd CompressionType = "zstd"
)

// compressionThreshold is the content size below which turns are stored raw
const compressionThreshold = 1024

// Compressor handles compression/decompression of turn content
type Compressor interface {
	// Compress compresses the input data
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses the input data
	Decompress(data []byte) ([]byte, error)

	// Type returns the compression type
	Type() CompressionType
}

// NewCompressor returns the compressor for typ; empty means none
func NewCompressor(typ CompressionType) (Compressor, error) {
	switch CompressionType(strings.ToLower(string(typ))) {
	case "", CompressionNone:
		return &NoopCompressor{}, nil
	case CompressionZstd:
		return &ZstdCompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression type: %q", typ)
	}
}

// NoopCompressor is a compressor that does nothing
type NoopCompressor struct{}

func (c *NoopCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (c *NoopCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

func (c *NoopCompressor) Type() CompressionType {
	return CompressionNone
}

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("conversation: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("conversation: zstd decoder initialization failed: " + err.Error())
	}
}

// ZstdCompressor compresses turn content with zstd
type ZstdCompressor struct{}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

func (c *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}

func (c *ZstdCompressor) Type() CompressionType {
	return CompressionZstd
}
