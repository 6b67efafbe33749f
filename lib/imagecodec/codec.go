// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package imagecodec compresses framebuffer images for transmission.
//
// Pixels are always tightly packed 8-bit RGBA, row-major, with no
// padding between rows: width*height*4 bytes. [JPEG] is lossy and the
// default; [Zstd] and [LZ4] are lossless and trade bandwidth for exact
// reproduction, useful for text-heavy screens on fast links.
//
// Every Codec is safe for concurrent use.
package imagecodec

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownCodec is returned by ByName for an unregistered name.
var ErrUnknownCodec = errors.New("unknown image codec")

// Codec converts raw RGBA pixels to and from a compressed form.
type Codec interface {
	// Name is the configuration name of the codec.
	Name() string

	// Encode compresses width*height RGBA pixels. quality is 1 to 100;
	// lossless codecs use it to choose a compression effort.
	Encode(pixels []byte, width, height, quality int) ([]byte, error)

	// Decode returns width*height RGBA pixels. A payload that does not
	// describe an image of exactly that size is an error.
	Decode(data []byte, width, height int) ([]byte, error)
}

var codecs = map[string]Codec{
	JPEG.Name(): JPEG,
	Zstd.Name(): Zstd,
	LZ4.Name():  LZ4,
}

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	codec, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownCodec, name, Names())
	}
	return codec, nil
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PixelBytes returns the size of a width*height RGBA buffer.
func PixelBytes(width, height int) int { return width * height * 4 }

// MaxDimension bounds the width and height of any image a codec will
// produce, so a corrupt size header cannot force a huge allocation.
const MaxDimension = 16384

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}
	return nil
}

func checkPixels(pixels []byte, width, height int) error {
	if err := checkSize(width, height); err != nil {
		return err
	}
	if want := PixelBytes(width, height); len(pixels) != want {
		return fmt.Errorf("pixel buffer is %d bytes, want %d for %dx%d", len(pixels), want, width, height)
	}
	return nil
}

// ForceOpaque sets the alpha channel of every pixel to 255 in place.
func ForceOpaque(pixels []byte) {
	for index := 3; index < len(pixels); index += 4 {
		pixels[index] = 255
	}
}

func clampQuality(quality int) int {
	return min(max(quality, 1), 100)
}

// Detect identifies the codec that produced data from its leading
// bytes: the JPEG start-of-image marker, the zstd frame magic, or the
// LZ4 mode byte. ok is false when the payload matches none of them.
func Detect(data []byte) (codec Codec, ok bool) {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return JPEG, true
	case len(data) >= 4 && data[0] == 0x28 && data[1] == 0xB5 && data[2] == 0x2F && data[3] == 0xFD:
		return Zstd, true
	case len(data) >= 1 && (data[0] == lz4ModeRaw || data[0] == lz4ModeBlock):
		return LZ4, true
	}
	return nil, false
}
