/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package extract_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"chainguard.dev/refgrader/grading/extract"
	"chainguard.dev/refgrader/grading/imgproc"
	"github.com/disintegration/imaging"
	"github.com/google/go-cmp/cmp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := imgproc.EncodePNG(imaging.New(w, h, color.White))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := imgproc.EncodeJPEG(imaging.New(w, h, color.Black))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestExtract_StandaloneImage(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		data      []byte
		wantCount int
	}{
		{name: "png", file: "diagram.png", data: pngBytes(t, 300, 200), wantCount: 1},
		{name: "jpeg re-encoded", file: "SHOT.JPG", data: jpegBytes(t, 150, 150), wantCount: 1},
		{name: "exactly minimum size", file: "min.png", data: pngBytes(t, 100, 100), wantCount: 1},
		{name: "too narrow", file: "icon.png", data: pngBytes(t, 99, 400), wantCount: 0},
		{name: "too short", file: "bar.png", data: pngBytes(t, 400, 50), wantCount: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract.New().Extract(context.Background(), writeFile(t, tt.file, tt.data), t.TempDir())
			if err != nil {
				t.Fatalf("Extract() = %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("len(Extract()) = %d, want %d", len(got), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			img := got[0]
			if img.Filename != "page_1_img_1.png" || img.Page != 1 || img.Index != 1 {
				t.Errorf("image identity = %q page %d index %d", img.Filename, img.Page, img.Index)
			}
			if img.MIMEType != "image/png" || imgproc.MIMEType(img.Data) != "image/png" {
				t.Errorf("image not normalized to png: %q", img.MIMEType)
			}
			if w, h, _ := imgproc.Dimensions(img.Data); w != img.Width || h != img.Height {
				t.Errorf("recorded %dx%d, actual %dx%d", img.Width, img.Height, w, h)
			}
		})
	}
}

func TestExtract_WithMinSize(t *testing.T) {
	p := writeFile(t, "small.png", pngBytes(t, 40, 40))
	got, err := extract.New(extract.WithMinSize(32, 32)).Extract(context.Background(), p, "")
	if err != nil {
		t.Fatalf("Extract() = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len(Extract()) = %d, want 1", len(got))
	}
}

func zipBytes(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtract_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "nope.pdf")},
		{name: "unsupported type", path: writeFile(t, "notes.docx", []byte("x"))},
		{name: "corrupt pdf", path: writeFile(t, "broken.pdf", []byte("%PDF-1.4 garbage"))},
		{name: "corrupt image", path: writeFile(t, "broken.png", []byte("not a png"))},
		{name: "corrupt zip", path: writeFile(t, "broken.zip", []byte("PK nope"))},
		{name: "zip without pdf", path: writeFile(t, "upload.zip", zipBytes(t, map[string][]byte{"readme.txt": []byte("hi")}))},
		{name: "zip with corrupt pdf", path: writeFile(t, "upload2.zip", zipBytes(t, map[string][]byte{"abgabe/arbeit.pdf": []byte("junk")}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract.New().Extract(context.Background(), tt.path, t.TempDir())
			var ee *extract.ExtractionError
			if !errors.As(err, &ee) {
				t.Fatalf("Extract() error = %v, want *extract.ExtractionError", err)
			}
			if ee.Path != tt.path {
				t.Errorf("ExtractionError.Path = %q, want %q", ee.Path, tt.path)
			}
		})
	}
}

// pdfBytes builds a PDF with one page per image size.
func pdfBytes(t *testing.T, sizes ...[2]int) []byte {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for i, sz := range sizes {
		p := filepath.Join(dir, fmt.Sprintf("img%d.png", i))
		if err := os.WriteFile(p, pngBytes(t, sz[0], sz[1]), 0o600); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}
	out := filepath.Join(dir, "doc.pdf")
	if err := api.ImportImagesFile(files, out, pdfcpu.DefaultImportConfig(), model.NewDefaultConfiguration()); err != nil {
		t.Fatalf("ImportImagesFile() = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestExtract_PDF(t *testing.T) {
	doc := pdfBytes(t, [2]int{300, 200}, [2]int{50, 50}, [2]int{240, 240}, [2]int{120, 400})

	type want struct {
		Filename      string
		Page, Index   int
		Width, Height int
	}
	wants := []want{
		{Filename: "page_1_img_1.png", Page: 1, Index: 1, Width: 300, Height: 200},
		{Filename: "page_3_img_1.png", Page: 3, Index: 1, Width: 240, Height: 240},
		{Filename: "page_4_img_1.png", Page: 4, Index: 1, Width: 120, Height: 400},
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "pdf", path: writeFile(t, "abgabe.pdf", doc)},
		{name: "zip", path: writeFile(t, "abgabe.zip", zipBytes(t, map[string][]byte{
			"__MACOSX/._abgabe.pdf": []byte("junk"),
			"abgabe/abgabe.pdf":     doc,
		}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Page order must hold on every run, not just by chance.
			for range 8 {
				workdir := t.TempDir()
				imgs, err := extract.New().Extract(context.Background(), tt.path, workdir)
				if err != nil {
					t.Fatalf("Extract() = %v", err)
				}
				got := make([]want, 0, len(imgs))
				for _, img := range imgs {
					got = append(got, want{img.Filename, img.Page, img.Index, img.Width, img.Height})
				}
				if diff := cmp.Diff(wants, got); diff != "" {
					t.Fatalf("Extract() (-want +got):\n%s", diff)
				}
				if left, _ := os.ReadDir(workdir); len(left) != 0 {
					t.Errorf("workdir has %d entries, want none", len(left))
				}
			}
		})
	}
}

func TestFilename(t *testing.T) {
	if got := extract.Filename(3, 2); got != "page_3_img_2.png" {
		t.Errorf("Filename(3, 2) = %q", got)
	}
}
