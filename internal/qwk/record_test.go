package qwk

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stlalpha/qwk/internal/validation"
)

// shortReader returns at most 7 bytes per Read.
type shortReader struct {
	*bytes.Reader
}

func (s shortReader) Read(p []byte) (int, error) {
	if len(p) > 7 {
		p = p[:7]
	}
	return s.Reader.Read(p)
}

func records(n int, extra int) []byte {
	b := make([]byte, n*RecordSize+extra)
	for i := range b {
		b[i] = byte(i / RecordSize)
	}
	return b
}

func TestRecordReaderShortReads(t *testing.T) {
	r, err := NewRecordReader(shortReader{bytes.NewReader(records(3, 0))}, true)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, RecordSize)
	for i := 0; i < 3; i++ {
		n, err := r.ReadRecord(buf)
		if err != nil || n != RecordSize {
			t.Fatalf("record %d: n=%d err=%v", i, n, err)
		}
		if buf[0] != byte(i) || buf[RecordSize-1] != byte(i) {
			t.Errorf("record %d has wrong contents", i)
		}
	}
	n, err := r.ReadRecord(buf)
	if n != 0 || err != nil {
		t.Errorf("at end: n=%d err=%v, want 0, nil", n, err)
	}
}

func TestRecordReaderTruncation(t *testing.T) {
	r, err := NewRecordReader(bytes.NewReader(records(2, 50)), true)
	if err != nil {
		t.Fatal(err)
	}
	if r.ValidateLength() {
		t.Error("ValidateLength = true for a truncated stream")
	}
	if r.RecordCount() != 2 {
		t.Errorf("RecordCount = %d, want 2", r.RecordCount())
	}
	recs, partial, err := r.ReadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || partial != 50 {
		t.Errorf("ReadAll = %d records, %d partial; want 2, 50", len(recs), partial)
	}
}

func TestRecordReaderSeek(t *testing.T) {
	r, err := NewRecordReader(bytes.NewReader(records(4, 0)), true)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SeekToRecord(2); err != nil {
		t.Fatal(err)
	}
	if pos, _ := r.Position(); pos != 2 {
		t.Errorf("Position = %d, want 2", pos)
	}
	buf := make([]byte, RecordSize)
	if _, err := r.ReadRecord(buf); err != nil || buf[0] != 2 {
		t.Errorf("read after seek: %v, first byte %d", err, buf[0])
	}
	if err := r.SeekToRecord(4); err != nil {
		t.Errorf("seek to end: %v", err)
	}
	for _, n := range []int64{-1, 5} {
		if err := r.SeekToRecord(n); !errors.Is(err, validation.ErrRange) {
			t.Errorf("SeekToRecord(%d) err = %v, want range error", n, err)
		}
	}
}

func TestReadAllCancelled(t *testing.T) {
	r, err := NewRecordReader(bytes.NewReader(records(3, 0)), true)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.ReadAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

type closeTracker struct {
	*bytes.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestRecordReaderClose(t *testing.T) {
	for _, leaveOpen := range []bool{true, false} {
		ct := &closeTracker{Reader: bytes.NewReader(nil)}
		r, err := NewRecordReader(ct, leaveOpen)
		if err != nil {
			t.Fatal(err)
		}
		if err := r.Close(); err != nil {
			t.Fatal(err)
		}
		if ct.closed == leaveOpen {
			t.Errorf("leaveOpen=%v: closed=%v", leaveOpen, ct.closed)
		}
	}
}

func TestRecordWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRecordWriter(&buf)
	if err := w.WriteRecord(padRecord([]byte("hello"))); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteRecord([]byte("short")); !errors.Is(err, validation.ErrFormat) {
		t.Errorf("short record err = %v, want format error", err)
	}
	if w.Records() != 1 || buf.Len() != RecordSize {
		t.Errorf("Records = %d, len = %d", w.Records(), buf.Len())
	}
}
