package qwk

import (
	"fmt"
	"io"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/stlalpha/qwk/internal/logging"
	"github.com/stlalpha/qwk/internal/validation"
)

// IndexEntry is one NDX entry. MessageNumber is the 1-based position of
// the entry in its file; the format stores no message numbers.
type IndexEntry struct {
	MessageNumber int     `json:"message_number"`
	RecordOffset  int64   `json:"record_offset"`
	Raw           [4]byte `json:"-"`
}

// IndexFile is the parsed NDX for one conference. Validated is set when
// the entries were checked against the message data length.
type IndexFile struct {
	Conference int          `json:"conference"`
	Entries    []IndexEntry `json:"entries"`
	Validated  bool         `json:"validated"`
}

// IndexFileName returns the NDX member name for a conference, e.g. 005.NDX.
func IndexFileName(conference int) string {
	return fmt.Sprintf("%03d.NDX", conference)
}

// ParseIndexFileName extracts the conference number from an NDX member
// name. Names such as PERSONAL.NDX report false.
func ParseIndexFileName(name string) (int, bool) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	stem, ok := strings.CutSuffix(strings.ToUpper(base), ".NDX")
	if !ok || stem == "" || !allDigits(stem) {
		return 0, false
	}
	n, err := strconv.Atoi(stem)
	if err != nil || n > 0xFFFF {
		return 0, false
	}
	return n, true
}

// maxIndexOffset keeps offset*RecordSize inside int64.
const maxIndexOffset = math.MaxInt64 / RecordSize

// ParseIndex parses NDX bytes for conference. A negative dataLength means
// the message data length is unknown and bounds are not checked.
func ParseIndex(b []byte, conference int, ctx *validation.Context, dataLength int64) (*IndexFile, error) {
	loc := IndexFileName(conference)
	idx := &IndexFile{Conference: conference, Validated: dataLength >= 0}

	if len(b)%IndexEntrySize != 0 {
		if err := ctx.AddError(validation.KindFormat, loc,
			"index is %d bytes, not a multiple of %d", len(b), IndexEntrySize); err != nil {
			return nil, err
		}
	}

	seen := make(map[int64]int)
	for i := 0; i+IndexEntrySize <= len(b); i += IndexEntrySize {
		num := i/IndexEntrySize + 1
		entryLoc := fmt.Sprintf("%s entry %d", loc, num)
		var raw [4]byte
		copy(raw[:], b[i:i+IndexEntrySize])

		v := DecodeFloat(raw)
		if v < 0 {
			if err := ctx.AddError(validation.KindRange, entryLoc,
				"record offset %v is negative", v); err != nil {
				return nil, err
			}
			continue
		}
		if v >= maxIndexOffset {
			if err := ctx.AddError(validation.KindRange, entryLoc,
				"record offset %v is too large", v); err != nil {
				return nil, err
			}
			continue
		}
		off := int64(math.Floor(v))
		if dataLength >= 0 && off*RecordSize >= dataLength {
			if err := ctx.AddError(validation.KindConsistency, entryLoc,
				"record %d is beyond the %d-byte message data", off, dataLength); err != nil {
				return nil, err
			}
			continue
		}
		if prev, dup := seen[off]; dup {
			ctx.AddWarning(entryLoc, "record %d already indexed by entry %d", off, prev)
		} else {
			seen[off] = num
		}
		idx.Entries = append(idx.Entries, IndexEntry{MessageNumber: num, RecordOffset: off, Raw: raw})
	}
	logging.Debug("%s: %d entries", loc, len(idx.Entries))
	return idx, nil
}

// Marshal encodes the entries' record offsets.
func (f *IndexFile) Marshal() ([]byte, error) {
	out := make([]byte, 0, len(f.Entries)*IndexEntrySize)
	for _, e := range f.Entries {
		b, err := EncodeFloat(float64(e.RecordOffset))
		if err != nil {
			return nil, fmt.Errorf("qwk: %s message %d: %w", IndexFileName(f.Conference), e.MessageNumber, err)
		}
		out = append(out, b[:]...)
	}
	return out, nil
}

// Offsets returns the set of record offsets in f.
func (f *IndexFile) Offsets() map[int64]bool {
	m := make(map[int64]bool, len(f.Entries))
	for _, e := range f.Entries {
		m[e.RecordOffset] = true
	}
	return m
}

// GenerateIndexes walks the message headers in a MESSAGES.DAT stream,
// skipping the leading control record, and builds one index per
// conference, sorted by conference number. A header with a zero block
// count stops the walk, except in Salvage mode where the walk resyncs on
// the next record.
func GenerateIndexes(rs io.ReadSeeker, ctx *validation.Context) ([]*IndexFile, error) {
	rr, err := NewRecordReader(rs, true)
	if err != nil {
		return nil, err
	}
	total := rr.RecordCount()
	if total < 1 {
		if err := ctx.AddError(validation.KindStructural, MessagesFile, "no control record"); err != nil {
			return nil, err
		}
		return nil, nil
	}

	byConf := make(map[int]*IndexFile)
	buf := make([]byte, RecordSize)
	for pos := int64(1); pos < total; {
		loc := fmt.Sprintf("%s record %d", MessagesFile, pos)
		if err := rr.SeekToRecord(pos); err != nil {
			return nil, err
		}
		if _, err := rr.ReadRecord(buf); err != nil {
			return nil, fmt.Errorf("qwk: read header at record %d: %w", pos, err)
		}
		h, err := ParseHeader(buf)
		if err != nil {
			return nil, err
		}
		if h.Blocks == 0 {
			if err := ctx.AddError(validation.KindFormat, loc, "header has no valid block count"); err != nil {
				return nil, err
			}
			if ctx.Salvaging() {
				pos++
				continue
			}
			break
		}

		conf := int(h.Conference)
		f, ok := byConf[conf]
		if !ok {
			f = &IndexFile{Conference: conf, Validated: true}
			byConf[conf] = f
		}
		f.Entries = append(f.Entries, IndexEntry{MessageNumber: len(f.Entries) + 1, RecordOffset: pos})

		if pos+int64(h.Blocks) > total {
			if err := ctx.AddError(validation.KindConsistency, loc,
				"message claims %d blocks, only %d remain", h.Blocks, total-pos); err != nil {
				return nil, err
			}
			break
		}
		pos += int64(h.Blocks)
	}

	out := make([]*IndexFile, 0, len(byConf))
	for _, f := range byConf {
		for i := range f.Entries {
			f.Entries[i].Raw, err = EncodeFloat(float64(f.Entries[i].RecordOffset))
			if err != nil {
				return nil, err
			}
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Conference < out[j].Conference })
	return out, nil
}
