package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/proofkit/internal/domain/model"
)

// fileDocument is the on-disk YAML layout.
type fileDocument struct {
	Items      []model.SelectableItem `yaml:"items"`
	References []model.Reference      `yaml:"references"`
}

// File is a catalog loaded from a YAML file and refreshed on demand.
type File struct {
	path string
	*Static
}

// NewFile loads path. The file is read again only on Reload.
func NewFile(ctx context.Context, path string) (*File, error) {
	f := &File{path: path, Static: &Static{}}
	if err := f.Reload(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the backing file.
func (f *File) Path() string { return f.path }

// Reload re-reads the file. On failure the previous content is kept.
func (f *File) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", f.path, err)
	}
	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, f.path, err)
	}
	return f.Replace(doc.Items, doc.References)
}
