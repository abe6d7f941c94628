package qwk

import (
	"context"
	"fmt"
	"io"

	"github.com/stlalpha/qwk/internal/validation"
)

// RecordReader reads fixed 128-byte records from a seekable stream.
type RecordReader struct {
	rs        io.ReadSeeker
	length    int64
	leaveOpen bool
}

// NewRecordReader wraps rs and measures its length. When leaveOpen is
// true, Close never closes rs.
func NewRecordReader(rs io.ReadSeeker, leaveOpen bool) (*RecordReader, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("qwk: record stream position: %w", err)
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("qwk: record stream length: %w", err)
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return nil, fmt.Errorf("qwk: record stream rewind: %w", err)
	}
	return &RecordReader{rs: rs, length: end, leaveOpen: leaveOpen}, nil
}

// Length returns the stream length in bytes.
func (r *RecordReader) Length() int64 { return r.length }

// RecordCount returns the number of whole records in the stream.
func (r *RecordReader) RecordCount() int64 { return r.length / RecordSize }

// ValidateLength reports whether the stream length is a multiple of 128.
func (r *RecordReader) ValidateLength() bool { return r.length%RecordSize == 0 }

// ReadRecord fills buf[:128], looping on short reads. It returns the number
// of bytes read: 128 normally, 0 at end of stream, fewer at truncation.
// Neither end of stream nor truncation is an error.
func (r *RecordReader) ReadRecord(buf []byte) (int, error) {
	if len(buf) < RecordSize {
		return 0, fmt.Errorf("qwk: record buffer holds %d bytes, need %d", len(buf), RecordSize)
	}
	n, err := io.ReadFull(r.rs, buf[:RecordSize])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, nil
	}
	return n, err
}

// ReadRecordContext is ReadRecord with cancellation checked before the
// read starts. A record is never split across a cancellation.
func (r *RecordReader) ReadRecordContext(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.ReadRecord(buf)
}

// ReadAll reads every complete record from the current position. A
// trailing partial record is not returned; its byte count is.
func (r *RecordReader) ReadAll(ctx context.Context) ([][]byte, int, error) {
	var records [][]byte
	for {
		buf := make([]byte, RecordSize)
		n, err := r.ReadRecordContext(ctx, buf)
		if err != nil {
			return records, 0, err
		}
		if n < RecordSize {
			return records, n, nil
		}
		records = append(records, buf)
	}
}

// SeekToRecord positions the stream at record n (0-based). Seeking to the
// end of the stream is allowed; beyond it is a range error.
func (r *RecordReader) SeekToRecord(n int64) error {
	if n < 0 {
		return validation.Errorf(validation.KindRange, "", "record %d is negative", n)
	}
	off := n * RecordSize
	if off > r.length {
		return validation.Errorf(validation.KindRange, "",
			"record %d (byte %d) is beyond stream length %d", n, off, r.length)
	}
	if _, err := r.rs.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("qwk: seek to record %d: %w", n, err)
	}
	return nil
}

// Position returns the number of the record containing the current offset.
func (r *RecordReader) Position() (int64, error) {
	cur, err := r.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	return cur / RecordSize, nil
}

// Close closes the underlying stream unless it was opened with leaveOpen
// or does not implement io.Closer.
func (r *RecordReader) Close() error {
	if r.leaveOpen {
		return nil
	}
	if c, ok := r.rs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// RecordWriter writes fixed 128-byte records.
type RecordWriter struct {
	w io.Writer
	n int64
}

func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: w}
}

// WriteRecord writes exactly one record. rec must be 128 bytes long.
func (w *RecordWriter) WriteRecord(rec []byte) error {
	if len(rec) != RecordSize {
		return validation.Errorf(validation.KindFormat, "",
			"record is %d bytes, want %d", len(rec), RecordSize)
	}
	if _, err := w.w.Write(rec); err != nil {
		return fmt.Errorf("qwk: write record %d: %w", w.n, err)
	}
	w.n++
	return nil
}

// Records returns the number of records written.
func (w *RecordWriter) Records() int64 { return w.n }

// padRecord returns b space-padded (or truncated) to one record.
func padRecord(b []byte) []byte {
	rec := make([]byte, RecordSize)
	n := copy(rec, b)
	for i := n; i < RecordSize; i++ {
		rec[i] = ' '
	}
	return rec
}
