package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"vector-viz/pipeline"
)

/*
FileCache keeps the last exported table as a delimited file.

Save replaces the file atomically so a reader never sees a partial table.
*/
type FileCache struct {
	Path      string
	Delimiter rune
	// 0 infers the dimensionality from the header
	Dims int
}

/*
NewFileCache creates a cache at path; an empty delimiter means comma
*/
func NewFileCache(path, delimiter string, dims int) *FileCache {
	delim := ','
	if delimiter != "" {
		delim = []rune(delimiter)[0]
	}
	return &FileCache{Path: path, Delimiter: delim, Dims: dims}
}

/*
Exists reports whether a cached file is present
*/
func (c *FileCache) Exists() bool {
	info, err := os.Stat(c.Path)
	return err == nil && !info.IsDir()
}

/*
Load reads the cached table; ErrNoCache when there is none
*/
func (c *FileCache) Load() (*pipeline.Table, error) {
	f, err := os.Open(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCache
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := ReadCSV(f, c.Delimiter, c.Dims)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache %s: %w", c.Path, err)
	}
	return table, nil
}

/*
Save writes table to a temporary file next to the cache and renames it into place
*/
func (c *FileCache) Save(table *pipeline.Table) error {
	if table == nil {
		return ErrEmptyTable
	}

	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, table, c.Delimiter); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.Path)
}

/*
Invalidate removes the cached file; a missing file is not an error
*/
func (c *FileCache) Invalidate() error {
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
