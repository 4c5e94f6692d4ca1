/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxPDFSize bounds the uncompressed size of the PDF taken from an upload.
const maxPDFSize = 256 << 20

// fromZIP extracts the images of the first PDF member, read in memory.
func (e *Extractor) fromZIP(ctx context.Context, data []byte) ([]Image, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	for _, f := range zr.File {
		name := path.Base(f.Name)
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(name), ".pdf") || strings.HasPrefix(name, ".") {
			continue
		}
		pdf, err := readMember(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		return e.fromPDF(ctx, pdf)
	}
	return nil, errors.New("archive contains no PDF")
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, maxPDFSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxPDFSize {
		return nil, fmt.Errorf("member exceeds %d bytes", maxPDFSize)
	}
	return b, nil
}
