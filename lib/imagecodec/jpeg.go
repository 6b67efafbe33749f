// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// JPEG is the lossy baseline JPEG codec. Alpha is not transmitted;
// decoded pixels are opaque.
var JPEG Codec = jpegCodec{}

type jpegCodec struct{}

func (jpegCodec) Name() string { return "jpeg" }

func (jpegCodec) Encode(pixels []byte, width, height, quality int) ([]byte, error) {
	if err := checkPixels(pixels, width, height); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	source := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	var buffer bytes.Buffer
	buffer.Grow(len(pixels) / 8)
	if err := jpeg.Encode(&buffer, source, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buffer.Bytes(), nil
}

func (jpegCodec) Decode(data []byte, width, height int) ([]byte, error) {
	if err := checkSize(width, height); err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	header, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	if header.Width != width || header.Height != height {
		return nil, fmt.Errorf("jpeg decode: image is %dx%d, want %dx%d", header.Width, header.Height, width, height)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	return ToRGBA(decoded).Pix, nil
}

// ToRGBA converts any image to a tightly packed RGBA image with its
// origin at (0, 0).
func ToRGBA(source image.Image) *image.RGBA {
	bounds := source.Bounds()
	if rgba, ok := source.(*image.RGBA); ok && bounds.Min == (image.Point{}) && rgba.Stride == bounds.Dx()*4 {
		return rgba
	}
	destination := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(destination, destination.Bounds(), source, bounds.Min, draw.Src)
	return destination
}
