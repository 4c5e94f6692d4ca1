/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package extract pulls gradable images out of submitted documents.
//
// PDFs contribute every embedded raster image, a ZIP upload contributes
// the images of the first PDF it contains, and a standalone PNG or JPEG is
// its own single image. Images below the minimum size are dropped and all
// images are normalized to PNG.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/grading/imgproc"
	"github.com/chainguard-dev/clog"
)

// DefaultMinSize is the smallest width and height kept by default.
const DefaultMinSize = 100

// Image is one image taken from a document.
type Image struct {
	// Data is PNG-encoded.
	Data     []byte
	MIMEType string
	// Page is the 1-based page number; standalone images are page 1.
	Page int
	// Index is the 1-based position of the image on its page.
	Index    int
	Width    int
	Height   int
	Filename string
}

// Executor returns the image in the form vision backends accept.
func (i Image) Executor() executor.Image {
	return executor.Image{Data: i.Data, MIMEType: i.MIMEType}
}

// Filename is the conventional name of the index-th image on page.
func Filename(page, index int) string {
	return fmt.Sprintf("page_%d_img_%d.png", page, index)
}

// Interface is the extraction collaborator used by the pipeline.
type Interface interface {
	// Extract returns the gradable images of the document at path. workdir
	// is a private scratch directory owned by the caller.
	Extract(ctx context.Context, path, workdir string) ([]Image, error)
}

// ExtractionError reports a document that could not be opened or read.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting images from %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor implements Interface for PDF, ZIP, PNG and JPEG inputs.
type Extractor struct {
	minWidth, minHeight int
}

var _ Interface = (*Extractor)(nil)

// Option configures an Extractor.
type Option func(*Extractor)

// WithMinSize drops images narrower than w or shorter than h.
func WithMinSize(w, h int) Option {
	return func(e *Extractor) {
		e.minWidth, e.minHeight = w, h
	}
}

// New returns an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{minWidth: DefaultMinSize, minHeight: DefaultMinSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract implements Interface. Documents are read in memory, so workdir
// is left untouched.
func (e *Extractor) Extract(ctx context.Context, path, _ string) ([]Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}

	var images []Image
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		images, err = e.fromPDF(ctx, data)
	case ".zip":
		images, err = e.fromZIP(ctx, data)
	case ".png", ".jpg", ".jpeg":
		images, err = e.fromImage(data)
	default:
		err = fmt.Errorf("unsupported document type %q", ext)
	}
	if err != nil {
		return nil, &ExtractionError{Path: path, Err: err}
	}

	clog.FromContext(ctx).With("document", filepath.Base(path)).
		With("images", len(images)).
		Info("Extracted images")
	return images, nil
}

func (e *Extractor) fromImage(data []byte) ([]Image, error) {
	img, ok, err := e.normalize(data, 1, 1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []Image{img}, nil
}

// normalize decodes raw image bytes, applies the size filter and
// re-encodes to PNG. ok is false for images below the minimum size.
func (e *Extractor) normalize(data []byte, page, index int) (Image, bool, error) {
	decoded, err := imgproc.Decode(data)
	if err != nil {
		return Image{}, false, err
	}
	b := decoded.Bounds()
	if b.Dx() < e.minWidth || b.Dy() < e.minHeight {
		return Image{}, false, nil
	}
	png, err := imgproc.EncodePNG(decoded)
	if err != nil {
		return Image{}, false, err
	}
	return Image{
		Data:     png,
		MIMEType: "image/png",
		Page:     page,
		Index:    index,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Filename: Filename(page, index),
	}, true, nil
}
