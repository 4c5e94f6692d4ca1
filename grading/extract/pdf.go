/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package extract

import (
	"bytes"
	"cmp"
	"context"
	"io"
	"maps"
	"slices"

	"github.com/chainguard-dev/clog"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// fromPDF extracts every raster image of every page, in page order and,
// within a page, in object order.
func (e *Extractor) fromPDF(ctx context.Context, data []byte) ([]Image, error) {
	conf := model.NewDefaultConfiguration()
	pages, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, err
	}

	// pdfcpu returns pages in no particular order.
	var images []Image
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, objNr := range slices.Sorted(maps.Keys(page)) {
			raw := page[objNr]
			index := i + 1
			buf, err := io.ReadAll(raw)
			if err != nil {
				return nil, err
			}
			img, ok, err := e.normalize(buf, raw.PageNr, index)
			if err != nil {
				// Some embedded formats (JBIG2, CCITT) are not decodable; the
				// rest of the document is still usable.
				clog.FromContext(ctx).With("page", raw.PageNr).
					With("object", objNr).
					With("type", raw.FileType).
					With("error", err.Error()).
					Warn("Skipping undecodable image")
				continue
			}
			if ok {
				images = append(images, img)
			}
		}
	}
	slices.SortStableFunc(images, func(a, b Image) int {
		return cmp.Or(cmp.Compare(a.Page, b.Page), cmp.Compare(a.Index, b.Index))
	})
	return images, nil
}
