// internal/object/compression.go
package object

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures on-disk payload compression
type CompressionOptions struct {
	Enabled bool
	// zstd level passed to EncoderLevelFromZstd
	Level int
	// Minimum payload size in bytes before compressing
	MinSize int
}

// DefaultCompressionOptions provides sensible defaults
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Enabled: true,
		Level:   2,
		MinSize: 1024, // 1KB
	}
}

// compressionManager pools zstd encoders and decoders
type compressionManager struct {
	opts     CompressionOptions
	encoders sync.Pool
	decoders sync.Pool
}

func newCompressionManager(opts CompressionOptions) (*compressionManager, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// Validate options once so pool constructors cannot fail later
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating test encoder: %w", err)
	}
	enc.Close()

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating test decoder: %w", err)
	}
	dec.Close()

	return &compressionManager{
		opts: opts,
		encoders: sync.Pool{
			New: func() interface{} {
				enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
				return enc
			},
		},
		decoders: sync.Pool{
			New: func() interface{} {
				dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				return dec
			},
		},
	}, nil
}

// shouldCompress determines if a payload is written as a zstd frame.
// Payloads that already begin with the zstd magic are always framed so that
// reads can rely on the magic alone.
func (cm *compressionManager) shouldCompress(payload []byte) bool {
	if bytes.HasPrefix(payload, zstdMagic) {
		return true
	}
	return cm.opts.Enabled && len(payload) >= cm.opts.MinSize
}

// encode returns the on-disk form of payload
func (cm *compressionManager) encode(payload []byte) []byte {
	if !cm.shouldCompress(payload) {
		return payload
	}

	enc := cm.encoders.Get().(*zstd.Encoder)
	defer cm.encoders.Put(enc)

	return enc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
}

// decode reverses encode
func (cm *compressionManager) decode(stored []byte) ([]byte, error) {
	if !bytes.HasPrefix(stored, zstdMagic) {
		return stored, nil
	}

	dec := cm.decoders.Get().(*zstd.Decoder)
	defer cm.decoders.Put(dec)

	out, err := dec.DecodeAll(stored, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}
