// Package catalog enumerates local files and directories into the
// id->FileDescriptor mapping a TransferServer advertises.
//
// Grounded on the teacher's internal/localsend/send.go FileSender
// AddFile/AddDir (filepath.Walk over a directory, one descriptor per
// regular file), generalized to spec §4.3: recursive scan without
// following symlinks, forward-slash relative names, and the closed
// FileType enum.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoFiles is returned when a scan produces an empty catalog.
var ErrNoFiles = errors.New("catalog: no files found")

// Metadata carries the optional timestamp fields spec §3 allows on a
// FileDescriptor.
type Metadata struct {
	ModifiedTime *time.Time `json:"modified,omitempty"`
	AccessedTime *time.Time `json:"accessed,omitempty"`
}

// Descriptor is the wire-visible metadata for one cataloged file.
type Descriptor struct {
	ID       string    `json:"id"`
	Name     string    `json:"fileName"`
	Size     uint64    `json:"size"`
	FileType FileType  `json:"fileType"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Catalog is an immutable (after Scan returns) id->Descriptor mapping
// plus the means to open each file's byte stream.
type Catalog struct {
	mu    sync.RWMutex
	files map[string]Descriptor
	paths map[string]string
}

// Scan enumerates paths into a new Catalog. A regular file is inserted
// with name equal to its basename. A directory is walked recursively —
// symbolic links are never followed — inserting one descriptor per
// regular file with a forward-slash relative name. Scan errors if a
// path is neither a regular file nor a directory, or if the result is
// empty.
func Scan(paths []string) (*Catalog, error) {
	c := &Catalog{
		files: make(map[string]Descriptor),
		paths: make(map[string]string),
	}

	for _, p := range paths {
		info, err := os.Lstat(p)
		if err != nil {
			return nil, fmt.Errorf("catalog: stat %s: %w", p, err)
		}

		switch {
		case info.Mode().IsRegular():
			if err := c.addFile(p, filepath.Base(p)); err != nil {
				return nil, err
			}
		case info.IsDir():
			if err := c.addDir(p); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("catalog: %s is neither a regular file nor a directory", p)
		}
	}

	if len(c.files) == 0 {
		return nil, ErrNoFiles
	}

	return c, nil
}

func (c *Catalog) addDir(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		// Never follow symlinks: a symlink entry itself is skipped
		// outright rather than resolved.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return c.addFile(path, filepath.ToSlash(rel))
	})
}

func (c *Catalog) addFile(fullPath, name string) error {
	info, err := os.Stat(fullPath)
	if err != nil {
		return fmt.Errorf("catalog: stat %s: %w", fullPath, err)
	}

	meta := &Metadata{}
	mtime := info.ModTime()
	meta.ModifiedTime = &mtime
	if at, ok := accessTime(info); ok {
		meta.AccessedTime = &at
	}

	id := uuid.NewString()
	c.mu.Lock()
	c.files[id] = Descriptor{
		ID:       id,
		Name:     name,
		Size:     uint64(info.Size()),
		FileType: classify(name),
		Metadata: meta,
	}
	c.paths[id] = fullPath
	c.mu.Unlock()

	return nil
}

// Len returns the number of files in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// Descriptors returns a defensive copy of the id->Descriptor map.
func (c *Catalog) Descriptors() map[string]Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Descriptor, len(c.files))
	for id, d := range c.files {
		out[id] = d
	}
	return out
}

// Open returns a readable handle for the file with the given id along
// with its descriptor. The caller owns the returned file and must
// close it.
func (c *Catalog) Open(id string) (*os.File, Descriptor, error) {
	c.mu.RLock()
	d, ok := c.files[id]
	path := c.paths[id]
	c.mu.RUnlock()

	if !ok {
		return nil, Descriptor{}, fmt.Errorf("catalog: unknown file id %q", id)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Descriptor{}, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	return f, d, nil
}
