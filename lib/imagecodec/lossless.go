// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package imagecodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Zstd is a lossless codec compressing raw RGBA with zstd. Quality
// selects the encoder level.
var Zstd Codec = zstdCodec{}

// LZ4 is a lossless codec compressing raw RGBA as one LZ4 block. It is
// faster than Zstd at a lower ratio.
var LZ4 Codec = lz4Codec{}

// One encoder per level is shared by every frame.
var (
	zstdEncoders   [4]*zstd.Encoder
	zstdEncoderErr [4]error
	zstdEncoderMu  sync.Mutex
)

// zstdMaxWindow bounds the history a payload may make the decoder
// keep. Encoders here never use more than 8 MiB.
const zstdMaxWindow = 32 << 20

var zstdLevels = [4]zstd.EncoderLevel{
	zstd.SpeedFastest,
	zstd.SpeedDefault,
	zstd.SpeedBetterCompression,
	zstd.SpeedBestCompression,
}

// zstdLevelIndex maps quality 1-100 onto the four encoder levels.
func zstdLevelIndex(quality int) int {
	switch quality = clampQuality(quality); {
	case quality <= 25:
		return 0
	case quality <= 60:
		return 1
	case quality <= 90:
		return 2
	default:
		return 3
	}
}

func zstdEncoder(quality int) (*zstd.Encoder, error) {
	index := zstdLevelIndex(quality)
	zstdEncoderMu.Lock()
	defer zstdEncoderMu.Unlock()
	if zstdEncoders[index] == nil && zstdEncoderErr[index] == nil {
		zstdEncoders[index], zstdEncoderErr[index] = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstdLevels[index]),
		)
	}
	return zstdEncoders[index], zstdEncoderErr[index]
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Encode(pixels []byte, width, height, quality int) ([]byte, error) {
	if err := checkPixels(pixels, width, height); err != nil {
		return nil, fmt.Errorf("zstd encode: %w", err)
	}
	encoder, err := zstdEncoder(quality)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return encoder.EncodeAll(pixels, nil), nil
}

// Decode streams into a buffer of exactly the declared size, so a
// payload that inflates past it costs no more than one block.
func (zstdCodec) Decode(data []byte, width, height int) ([]byte, error) {
	if err := checkSize(width, height); err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	decoder, err := zstd.NewReader(bytes.NewReader(data),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxWindow(zstdMaxWindow),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer decoder.Close()

	want := PixelBytes(width, height)
	pixels := make([]byte, want)
	if _, err := io.ReadFull(decoder, pixels); err != nil {
		return nil, fmt.Errorf("zstd decode: %dx%d: %w", width, height, err)
	}
	switch _, err := io.ReadFull(decoder, make([]byte, 1)); {
	case err == nil:
		return nil, fmt.Errorf("zstd decode: payload is larger than %dx%d", width, height)
	case !errors.Is(err, io.EOF):
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return pixels, nil
}

// LZ4 payloads start with a mode byte. Frames that do not compress
// (noise, already-compressed video) are stored raw.
const (
	lz4ModeRaw   byte = 0
	lz4ModeBlock byte = 1
)

// lz4MaxRatio is the most an LZ4 block can expand: each further
// length byte adds at most 255 output bytes.
const lz4MaxRatio = 255

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Encode(pixels []byte, width, height, quality int) ([]byte, error) {
	if err := checkPixels(pixels, width, height); err != nil {
		return nil, fmt.Errorf("lz4 encode: %w", err)
	}
	destination := make([]byte, 1+lz4.CompressBlockBound(len(pixels)))
	written, err := lz4.CompressBlock(pixels, destination[1:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 encode: %w", err)
	}
	if written == 0 || written >= len(pixels) {
		raw := make([]byte, 1+len(pixels))
		raw[0] = lz4ModeRaw
		copy(raw[1:], pixels)
		return raw, nil
	}
	destination[0] = lz4ModeBlock
	return destination[:1+written], nil
}

func (lz4Codec) Decode(data []byte, width, height int) ([]byte, error) {
	if err := checkSize(width, height); err != nil {
		return nil, fmt.Errorf("lz4 decode: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("lz4 decode: empty payload")
	}
	want := PixelBytes(width, height)
	switch data[0] {
	case lz4ModeRaw:
		if len(data)-1 != want {
			return nil, fmt.Errorf("lz4 decode: raw payload is %d bytes, want %d", len(data)-1, want)
		}
		return append([]byte(nil), data[1:]...), nil
	case lz4ModeBlock:
		if block := len(data) - 1; block < want/lz4MaxRatio {
			return nil, fmt.Errorf("lz4 decode: %d-byte block cannot hold %dx%d", block, width, height)
		}
		pixels := make([]byte, want)
		read, err := lz4.UncompressBlock(data[1:], pixels)
		if err != nil {
			return nil, fmt.Errorf("lz4 decode: %w", err)
		}
		if read != want {
			return nil, fmt.Errorf("lz4 decode: got %d bytes, want %d for %dx%d", read, want, width, height)
		}
		return pixels, nil
	default:
		return nil, fmt.Errorf("lz4 decode: unknown mode byte %d", data[0])
	}
}
