package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the frame applied to an encoded payload.
type Compression uint8

const (
	// CompressionNone stores the codec output as is.
	CompressionNone Compression = iota
	// CompressionZstd uses klauspost/compress zstd.
	CompressionZstd
	// CompressionLZ4 uses the LZ4 frame format.
	CompressionLZ4
)

// ErrUnknownCompression is returned for an unrecognized frame byte or name.
var ErrUnknownCompression = errors.New("codec: unknown compression")

// String returns the configuration name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return CompressionNone, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
	return zstdEnc, zstdDec, zstdErr
}

// Compress frames raw with a leading compression byte.
func Compress(c Compression, raw []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		out := make([]byte, 0, len(raw)+1)
		out = append(out, byte(c))
		return append(out, raw...), nil

	case CompressionZstd:
		enc, _, err := zstdCoders()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(raw, []byte{byte(c)}), nil

	case CompressionLZ4:
		var buf bytes.Buffer
		buf.WriteByte(byte(c))
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}

// Decompress removes the frame added by Compress.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("codec: empty payload")
	}
	body := data[1:]
	switch Compression(data[0]) {
	case CompressionNone:
		return body, nil

	case CompressionZstd:
		_, dec, err := zstdCoders()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(body, nil)

	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(body)))

	default:
		return nil, fmt.Errorf("%w: frame byte %#x", ErrUnknownCompression, data[0])
	}
}
