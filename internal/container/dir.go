package container

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir reads members from an already unpacked packet directory.
type Dir struct {
	root string
	ix   index
}

// OpenDir indexes the regular files directly inside root.
func OpenDir(root string) (*Dir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("container: read dir %s: %w", root, err)
	}
	d := &Dir{root: root, ix: make(index)}
	for _, e := range entries {
		if e.Type().IsRegular() {
			d.ix.add(e.Name())
		}
	}
	return d, nil
}

func (d *Dir) ListFiles() []string { return d.ix.names() }

func (d *Dir) FileExists(name string) bool {
	_, ok := d.ix.lookup(name)
	return ok
}

func (d *Dir) OpenFile(name string) (io.ReadCloser, error) {
	stored, ok := d.ix.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	f, err := os.Open(filepath.Join(d.root, stored))
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w", name, err)
	}
	return f, nil
}

func (d *Dir) Close() error { return nil }

// DirWriter writes members as files under a directory.
type DirWriter struct {
	root string
}

// NewDirWriter creates root if needed.
func NewDirWriter(root string) (*DirWriter, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("container: create %s: %w", root, err)
	}
	return &DirWriter{root: root}, nil
}

func (w *DirWriter) AddFile(name string, data []byte) error {
	if err := validMemberName(name); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(w.root, name), data, 0644); err != nil {
		return fmt.Errorf("container: write %s: %w", name, err)
	}
	return nil
}

// Save is a no-op; files are written as they are added.
func (w *DirWriter) Save(io.Writer) error { return nil }
