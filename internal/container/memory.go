package container

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Memory is an in-memory packet. It implements both Reader and Writer;
// Save writes a ZIP archive.
type Memory struct {
	files map[string][]byte
	order []string
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

func (m *Memory) AddFile(name string, data []byte) error {
	if err := validMemberName(name); err != nil {
		return err
	}
	key := strings.ToUpper(name)
	if _, ok := m.files[key]; !ok {
		m.order = append(m.order, name)
	}
	m.files[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) ListFiles() []string {
	out := append([]string(nil), m.order...)
	sort.Strings(out)
	return out
}

func (m *Memory) FileExists(name string) bool {
	_, ok := m.files[strings.ToUpper(memberName(name))]
	return ok
}

func (m *Memory) OpenFile(name string) (io.ReadCloser, error) {
	data, ok := m.files[strings.ToUpper(memberName(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Close() error { return nil }

// Save writes the members as a ZIP archive in the order they were added.
func (m *Memory) Save(w io.Writer) error {
	zw := NewZipWriter()
	for _, name := range m.order {
		if err := zw.AddFile(name, m.files[strings.ToUpper(name)]); err != nil {
			return err
		}
	}
	return zw.Save(w)
}
