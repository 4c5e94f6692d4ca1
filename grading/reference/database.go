/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package reference holds the database of pre-analyzed reference
// solutions and finds the references closest to a student image.
package reference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/chainguard-dev/clog"
)

// Entry is one reference image with its extracted attributes. Exactly one
// of FilePath and ImageBase64 is set.
type Entry struct {
	Filename    string     `json:"filename"`
	FilePath    string     `json:"file_path,omitempty"`
	ImageBase64 string     `json:"image_base64,omitempty"`
	Metadata    Attributes `json:"metadata"`
	Confidence  float64    `json:"confidence,omitempty"`
}

// Inline reports whether the image is embedded in the entry.
func (e Entry) Inline() bool {
	return e.ImageBase64 != ""
}

// DecodeImage returns the bytes of an inline image.
func (e Entry) DecodeImage() ([]byte, error) {
	if !e.Inline() {
		return nil, fmt.Errorf("reference %s is not inline", e.Filename)
	}
	b, err := base64.StdEncoding.DecodeString(e.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding reference %s: %w", e.Filename, err)
	}
	return b, nil
}

func (e Entry) validate() error {
	switch {
	case e.FilePath == "" && e.ImageBase64 == "":
		return fmt.Errorf("reference %q has neither file_path nor image_base64", e.Filename)
	case e.FilePath != "" && e.ImageBase64 != "":
		return fmt.Errorf("reference %q has both file_path and image_base64", e.Filename)
	}
	return nil
}

// Database maps category names to their reference entries. A Database is
// built once and then treated as an immutable snapshot; Add is only for
// construction.
type Database struct {
	categories map[string][]Entry
}

// NewDatabase returns an empty database.
func NewDatabase() *Database {
	return &Database{categories: map[string][]Entry{}}
}

// Add appends an entry to a category.
func (db *Database) Add(categoryName string, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	db.categories[categoryName] = append(db.categories[categoryName], e)
	return nil
}

// Has reports whether the category is present with at least one entry.
func (db *Database) Has(categoryName string) bool {
	return len(db.categories[categoryName]) > 0
}

// Entries returns the entries of a category in database order.
func (db *Database) Entries(categoryName string) []Entry {
	return slices.Clone(db.categories[categoryName])
}

// Categories returns the non-empty category names, sorted.
func (db *Database) Categories() []string {
	var names []string
	for name, entries := range db.categories {
		if len(entries) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Len returns the total number of entries.
func (db *Database) Len() int {
	n := 0
	for _, entries := range db.categories {
		n += len(entries)
	}
	return n
}

type persistedCategory struct {
	Images []Entry `json:"images"`
}

type persisted struct {
	Categories map[string]persistedCategory `json:"categories"`
}

// MarshalJSON writes the persisted form.
func (db *Database) MarshalJSON() ([]byte, error) {
	p := persisted{Categories: make(map[string]persistedCategory, len(db.categories))}
	for name, entries := range db.categories {
		p.Categories[name] = persistedCategory{Images: entries}
	}
	return json.Marshal(p)
}

// UnmarshalJSON reads the persisted form.
func (db *Database) UnmarshalJSON(b []byte) error {
	var p persisted
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	out := NewDatabase()
	for name, c := range p.Categories {
		for _, e := range c.Images {
			if err := out.Add(name, e); err != nil {
				return fmt.Errorf("category %q: %w", name, err)
			}
		}
	}
	*db = *out
	return nil
}

// Parse reads a database in its persisted JSON form.
func Parse(r io.Reader) (*Database, error) {
	var db Database
	if err := json.NewDecoder(r).Decode(&db); err != nil {
		return nil, fmt.Errorf("parsing reference database: %w", err)
	}
	return &db, nil
}

// Load reads a database from a local path or a gs://bucket/object URI.
func Load(ctx context.Context, uri string) (*Database, error) {
	var (
		db  *Database
		err error
	)
	if bucket, object, ok := splitGCS(uri); ok {
		db, err = loadGCS(ctx, bucket, object)
	} else {
		db, err = loadFile(uri)
	}
	if err != nil {
		return nil, err
	}
	clog.FromContext(ctx).With("source", uri).
		With("categories", len(db.Categories())).
		With("references", db.Len()).
		Info("Loaded reference database")
	return db, nil
}

func loadFile(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference database: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func loadGCS(ctx context.Context, bucket, object string) (*Database, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()
	return Parse(r)
}

// splitGCS splits gs://bucket/object. ok is false for anything else.
func splitGCS(uri string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(uri, "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, _ = strings.Cut(rest, "/")
	return bucket, object, bucket != "" && object != ""
}

// Save writes the database to path, replacing any existing file only once
// the new content is fully written.
func (db *Database) Save(path string) (err error) {
	b, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".refdb-*.json")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(tmp.Name()))
		}
	}()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
