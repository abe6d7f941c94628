package container

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Format describes one archive format a packet may arrive in.
type Format struct {
	// ID is a short unique identifier, e.g. "zip".
	ID string `json:"id"`

	// Name is a human-readable description.
	Name string `json:"name"`

	// Extensions lists file extensions including the dot, e.g. ".qwk".
	Extensions []string `json:"extensions"`

	// Magic is the hex-encoded signature at offset 0. Empty means
	// extension-only detection.
	Magic string `json:"magic,omitempty"`

	// Open opens an archive of this format.
	Open func(path string) (Reader, error) `json:"-"`
}

// MatchesExtension reports whether filename has one of f's extensions.
func (f *Format) MatchesExtension(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range f.Extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// MatchesMagic reports whether head starts with f's signature.
func (f *Format) MatchesMagic(head []byte) bool {
	if f.Magic == "" {
		return false
	}
	sig, err := hex.DecodeString(f.Magic)
	if err != nil || len(sig) == 0 {
		return false
	}
	return bytes.HasPrefix(head, sig)
}

// Registry holds the known formats. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	formats []Format
}

func NewRegistry() *Registry {
	return &Registry{}
}

// ZipFormat is the format every QWK door produces.
func ZipFormat() Format {
	return Format{
		ID:         "zip",
		Name:       "ZIP Archive",
		Extensions: []string{".qwk", ".rep", ".zip"},
		Magic:      "504B0304",
		Open: func(path string) (Reader, error) {
			return OpenZip(path)
		},
	}
}

// DefaultRegistry returns a registry holding ZipFormat.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register(ZipFormat()); err != nil {
		panic(err)
	}
	return r
}

// Register adds f. IDs are unique, ignoring case.
func (r *Registry) Register(f Format) error {
	if f.ID == "" || f.Open == nil {
		return fmt.Errorf("container: format needs an id and an Open func")
	}
	if f.Magic != "" {
		if _, err := hex.DecodeString(f.Magic); err != nil {
			return fmt.Errorf("container: format %s: bad magic %q: %w", f.ID, f.Magic, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, have := range r.formats {
		if strings.EqualFold(have.ID, f.ID) {
			return fmt.Errorf("container: format %s already registered", f.ID)
		}
	}
	r.formats = append(r.formats, f)
	return nil
}

// Unregister removes the format with the given id and reports whether it
// was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.formats {
		if strings.EqualFold(f.ID, id) {
			r.formats = append(r.formats[:i], r.formats[i+1:]...)
			return true
		}
	}
	return false
}

// Formats returns the registered formats in registration order.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Format(nil), r.formats...)
}

// Detect picks a format by signature, then by file name extension.
func (r *Registry) Detect(name string, head []byte) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.formats {
		if f.MatchesMagic(head) {
			return f, true
		}
	}
	for _, f := range r.formats {
		if f.MatchesExtension(name) {
			return f, true
		}
	}
	return Format{}, false
}

// sniffLen is how many leading bytes Open reads for Detect.
const sniffLen = 16

// Open opens path as a packet directory or as an archive of a registered
// format.
func (r *Registry) Open(path string) (Reader, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("container: %w", err)
	}
	if st.IsDir() {
		return OpenDir(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w", path, err)
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	f.Close()
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("container: read %s: %w", path, err)
	}

	format, ok := r.Detect(path, head[:n])
	if !ok {
		return nil, fmt.Errorf("container: %s: unrecognised archive format", path)
	}
	return format.Open(path)
}
