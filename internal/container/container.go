// Package container reads and writes the archives that carry QWK and REP
// packet members. Member names are matched case-insensitively, as packets
// built on DOS systems mix CONTROL.DAT and control.dat freely.
package container

import (
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned when a member does not exist.
var ErrNotFound = errors.New("container: file not found")

// Reader lists and opens packet members.
type Reader interface {
	ListFiles() []string
	OpenFile(name string) (io.ReadCloser, error)
	FileExists(name string) bool
	Close() error
}

// Writer collects packet members and writes them out as one archive.
type Writer interface {
	AddFile(name string, data []byte) error
	Save(w io.Writer) error
}

// ReadFile reads a whole member.
func ReadFile(r Reader, name string) ([]byte, error) {
	rc, err := r.OpenFile(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("container: read %s: %w", name, err)
	}
	return data, nil
}

// memberName flattens an archive path to its base name.
func memberName(name string) string {
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}

// index maps upper-cased base names to stored names. Later duplicates lose.
type index map[string]string

func (ix index) add(stored string) {
	key := strings.ToUpper(memberName(stored))
	if _, ok := ix[key]; !ok {
		ix[key] = stored
	}
}

func (ix index) lookup(name string) (string, bool) {
	stored, ok := ix[strings.ToUpper(memberName(name))]
	return stored, ok
}

func (ix index) names() []string {
	out := make([]string, 0, len(ix))
	for _, stored := range ix {
		out = append(out, memberName(stored))
	}
	sort.Strings(out)
	return out
}

// validMemberName rejects names that would escape a directory.
func validMemberName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("container: invalid member name %q", name)
	}
	return nil
}
