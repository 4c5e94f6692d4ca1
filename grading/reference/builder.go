/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reference

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/refgrader/agents/agenttrace"
	"chainguard.dev/refgrader/agents/executor"
	"chainguard.dev/refgrader/grading/classify"
	"chainguard.dev/refgrader/grading/extract"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// AttributeExtractor describes an image using its category's attribute template.
type AttributeExtractor interface {
	ExtractAttributes(ctx context.Context, img executor.Image, categoryName string) (map[string]any, error)
}

// Builder turns reference documents into a Database.
type Builder struct {
	extractor  extract.Interface
	classifier classify.Interface
	attributes AttributeExtractor

	workers   int
	allImages bool
	imageDir  string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuildWorkers processes up to n images concurrently.
func WithBuildWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithAllImages keeps images whose classification is below the confidence
// threshold, filing them under the predicted category.
func WithAllImages() BuilderOption {
	return func(b *Builder) { b.allImages = true }
}

// WithImageDir writes reference images under dir and records their paths
// instead of embedding them.
func WithImageDir(dir string) BuilderOption {
	return func(b *Builder) { b.imageDir = dir }
}

// NewBuilder returns a Builder.
func NewBuilder(x extract.Interface, c classify.Interface, a AttributeExtractor, opts ...BuilderOption) *Builder {
	b := &Builder{extractor: x, classifier: c, attributes: a, workers: 1}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type candidate struct {
	source string
	image  extract.Image
}

type built struct {
	category string
	entry    Entry
	ok       bool
}

// Build extracts, classifies and describes every image of the documents at
// paths. Documents or images that fail are logged and left out; the only
// error returned is cancellation of ctx.
func (b *Builder) Build(ctx context.Context, paths []string, workdir string) (*Database, error) {
	log := clog.FromContext(ctx)

	var candidates []candidate
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		images, err := b.extractor.Extract(ctx, p, workdir)
		if err != nil {
			log.With("document", p).With("error", err.Error()).Warn("Skipping reference document")
			continue
		}
		for _, img := range images {
			candidates = append(candidates, candidate{source: p, image: img})
		}
	}

	results := make([]built, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.describe(gctx, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	db := NewDatabase()
	for _, r := range results {
		if !r.ok {
			continue
		}
		if err := db.Add(r.category, r.entry); err != nil {
			return nil, err
		}
	}
	log.With("documents", len(paths)).
		With("images", len(candidates)).
		With("references", db.Len()).
		Info("Built reference database")
	return db, nil
}

func (b *Builder) describe(ctx context.Context, c candidate) built {
	ctx = agenttrace.WithImage(ctx, c.image.Filename)
	log := clog.FromContext(ctx).With("document", c.source).With("image", c.image.Filename)

	cls, err := b.classifier.Classify(ctx, c.image)
	if err != nil {
		log.With("error", err.Error()).Warn("Skipping unclassifiable reference image")
		return built{}
	}
	if !cls.Valid && !b.allImages {
		log.With("confidence", cls.Confidence).Info("Skipping low-confidence reference image")
		return built{}
	}

	// A reference without attributes is still usable for comparison; it
	// just never wins a similarity ranking.
	attrs, err := b.attributes.ExtractAttributes(ctx, c.image.Executor(), cls.Category)
	if err != nil {
		log.With("error", err.Error()).Warn("Attribute extraction failed for reference image")
		attrs = Attributes{}
	}

	entry := Entry{
		Filename:   referenceName(c),
		Metadata:   attrs,
		Confidence: cls.Confidence,
	}
	if b.imageDir == "" {
		entry.ImageBase64 = base64.StdEncoding.EncodeToString(c.image.Data)
	} else {
		p, err := b.writeImage(cls.Category, entry.Filename, c.image.Data)
		if err != nil {
			log.With("error", err.Error()).Warn("Could not store reference image")
			return built{}
		}
		entry.FilePath = p
	}
	return built{category: cls.Category, entry: entry, ok: true}
}

// referenceName keeps the file name of standalone images and qualifies
// extracted ones with their document.
func referenceName(c candidate) string {
	base := filepath.Base(c.source)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".png", ".jpg", ".jpeg":
		return base
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_" + c.image.Filename
}

func (b *Builder) writeImage(categoryName, name string, data []byte) (string, error) {
	dir := filepath.Join(b.imageDir, categoryName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", p, err)
	}
	return filepath.ToSlash(p), nil
}
