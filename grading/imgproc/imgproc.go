/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package imgproc decodes, re-encodes and composes the images that flow
// through grading.
package imgproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"net/http"

	"github.com/disintegration/imaging"
)

const (
	// CompositeHeight is the height both halves of a comparison are scaled to.
	CompositeHeight = 800
	// Separator is the width of the white gap between the two halves.
	Separator = 20
	// JPEGQuality is used for composites sent to the model.
	JPEGQuality = 85
)

// Decode decodes PNG, JPEG, GIF, BMP or TIFF data, honoring EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// Dimensions returns the pixel width and height of encoded image data.
func Dimensions(data []byte) (int, int, error) {
	img, err := Decode(data)
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes img as JPEG at JPEGQuality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Composite places student (left) and reference (right) side by side,
// both scaled to CompositeHeight and separated by a white gap, and returns
// the result as JPEG.
func Composite(student, reference []byte) ([]byte, error) {
	left, err := Decode(student)
	if err != nil {
		return nil, fmt.Errorf("student image: %w", err)
	}
	right, err := Decode(reference)
	if err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}
	return EncodeJPEG(sideBySide(left, right))
}

func sideBySide(left, right image.Image) image.Image {
	left = imaging.Resize(left, 0, CompositeHeight, imaging.Lanczos)
	right = imaging.Resize(right, 0, CompositeHeight, imaging.Lanczos)

	lw := left.Bounds().Dx()
	canvas := imaging.New(lw+Separator+right.Bounds().Dx(), CompositeHeight, color.White)
	canvas = imaging.Paste(canvas, left, image.Pt(0, 0))
	return imaging.Paste(canvas, right, image.Pt(lw+Separator, 0))
}

// MIMEType sniffs the media type of encoded image data.
func MIMEType(data []byte) string {
	return http.DetectContentType(data)
}
