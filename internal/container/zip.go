package container

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
)

// maxMemberSize bounds a single decompressed member.
const maxMemberSize = 64 << 20

// ZipReader reads packet members from a ZIP archive.
type ZipReader struct {
	zr     *zip.Reader
	closer io.Closer
	files  map[string]*zip.File
	ix     index
}

// OpenZip opens a ZIP archive on disk.
func OpenZip(path string) (*ZipReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("container: stat %s: %w", path, err)
	}
	zr, err := NewZipReader(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("container: %s: %w", path, err)
	}
	zr.closer = f
	return zr, nil
}

// NewZipReader reads a ZIP archive from ra.
func NewZipReader(ra io.ReaderAt, size int64) (*ZipReader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, err
	}
	r := &ZipReader{zr: zr, files: make(map[string]*zip.File), ix: make(index)}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		r.ix.add(f.Name)
		if _, ok := r.files[f.Name]; !ok {
			r.files[f.Name] = f
		}
	}
	return r, nil
}

func (r *ZipReader) ListFiles() []string { return r.ix.names() }

func (r *ZipReader) FileExists(name string) bool {
	_, ok := r.ix.lookup(name)
	return ok
}

func (r *ZipReader) OpenFile(name string) (io.ReadCloser, error) {
	stored, ok := r.ix.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	f := r.files[stored]
	if f.UncompressedSize64 > maxMemberSize {
		return nil, fmt.Errorf("container: %s is %d bytes, limit %d", name, f.UncompressedSize64, maxMemberSize)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w", name, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(rc, maxMemberSize), rc}, nil
}

func (r *ZipReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// ZipWriter builds a ZIP archive in memory.
type ZipWriter struct {
	buf      bytes.Buffer
	zw       *zip.Writer
	modified time.Time
}

func NewZipWriter() *ZipWriter {
	w := &ZipWriter{modified: time.Now()}
	w.zw = zip.NewWriter(&w.buf)
	return w
}

func (w *ZipWriter) AddFile(name string, data []byte) error {
	if err := validMemberName(name); err != nil {
		return err
	}
	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.modified,
	})
	if err != nil {
		return fmt.Errorf("container: add %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("container: write %s: %w", name, err)
	}
	return nil
}

// Save finishes the archive and copies it to out. The writer cannot be
// used afterwards.
func (w *ZipWriter) Save(out io.Writer) error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("container: finish zip: %w", err)
	}
	_, err := out.Write(w.buf.Bytes())
	return err
}
