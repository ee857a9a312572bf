package storage

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	pkgerrors "kdstore/pkg/errors"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how tree blobs are compressed before they are stored.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZSTD Compression = 2
)

// Blob header: codec u8 | uncompressed length u64.
const blobHeaderSize = 9

// lz4 cannot expand data by more than this ratio.
const maxLZ4Ratio = 255

// Tree encodings compress far below this ratio.
const maxZstdRatio = 1 << 12

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a config value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("%w: %q", pkgerrors.ErrUnsupportedCompression, s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	// DecodeAll never writes past cap(dst), so the caller sizes the output.
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecodeAllCapLimit(true))
}

// Compress frames data with a header naming the codec, so blobs written with
// one setting stay readable after the setting changes. Data that does not
// shrink is stored uncompressed.
func Compress(c Compression, data []byte) ([]byte, error) {
	var payload []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		payload = dst[:n]
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		payload = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrUnsupportedCompression, c)
	}

	if c == CompressionNone || len(payload) == 0 || len(payload) >= len(data) {
		c, payload = CompressionNone, data
	}

	out := make([]byte, blobHeaderSize, blobHeaderSize+len(payload))
	out[0] = byte(c)
	binary.LittleEndian.PutUint64(out[1:], uint64(len(data)))
	return append(out, payload...), nil
}

// Decompress reverses Compress. Malformed blobs wrap ErrCorruptIndex.
func Decompress(blob []byte) ([]byte, error) {
	if len(blob) < blobHeaderSize {
		return nil, fmt.Errorf("%w: blob header truncated", pkgerrors.ErrCorruptIndex)
	}
	c := Compression(blob[0])
	rawLen := binary.LittleEndian.Uint64(blob[1:])
	payload := blob[blobHeaderSize:]

	switch c {
	case CompressionNone:
		if uint64(len(payload)) != rawLen {
			return nil, fmt.Errorf("%w: blob length %d, header says %d",
				pkgerrors.ErrCorruptIndex, len(payload), rawLen)
		}
		return payload, nil
	case CompressionLZ4:
		if rawLen > uint64(len(payload))*maxLZ4Ratio+64 {
			return nil, fmt.Errorf("%w: implausible lz4 length %d", pkgerrors.ErrCorruptIndex, rawLen)
		}
		dst := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4 block: %w", pkgerrors.ErrCorruptIndex, err)
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("%w: lz4 decoded %d bytes, header says %d", pkgerrors.ErrCorruptIndex, n, rawLen)
		}
		return dst, nil
	case CompressionZSTD:
		return decompressZstd(payload, rawLen)
	default:
		return nil, fmt.Errorf("%w: %w: codec %d", pkgerrors.ErrCorruptIndex, pkgerrors.ErrUnsupportedCompression, c)
	}
}

func decompressZstd(payload []byte, rawLen uint64) ([]byte, error) {
	if rawLen > uint64(len(payload))*maxZstdRatio {
		return nil, fmt.Errorf("%w: implausible zstd length %d", pkgerrors.ErrCorruptIndex, rawLen)
	}
	var hdr zstd.Header
	if err := hdr.Decode(payload); err != nil {
		return nil, fmt.Errorf("%w: zstd header: %w", pkgerrors.ErrCorruptIndex, err)
	}
	if hdr.HasFCS && hdr.FrameContentSize != rawLen {
		return nil, fmt.Errorf("%w: zstd frame holds %d bytes, header says %d",
			pkgerrors.ErrCorruptIndex, hdr.FrameContentSize, rawLen)
	}

	dec, err := getZstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd frame: %w", pkgerrors.ErrCorruptIndex, err)
	}
	if uint64(len(out)) != rawLen {
		return nil, fmt.Errorf("%w: zstd decoded %d bytes, header says %d", pkgerrors.ErrCorruptIndex, len(out), rawLen)
	}
	return out, nil
}
