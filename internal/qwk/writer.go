package qwk

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/stlalpha/qwk/internal/container"
	"github.com/stlalpha/qwk/internal/logging"
)

// composeMessage builds a message from authoring fields. Names and
// subjects longer than their header slot are cut to fit and carried in
// full as kludge lines. In replies the number field holds the conference.
func composeMessage(f HeaderFields, lines []string, body BodyCodec, reply bool) (*Message, error) {
	var ext ExtendedHeader
	f.To, ext.To = fitName(f.To)
	f.From, ext.From = fitName(f.From)
	f.Subject, ext.Subject = fitName(f.Subject)
	if reply {
		f.Number = f.Conference
	}

	recs, err := body.EncodeLines(PrependKludges(ext, lines), true)
	if err != nil {
		return nil, err
	}
	f.Blocks = len(recs) + 1
	h, err := NewHeader(f)
	if err != nil {
		return nil, err
	}
	return &Message{Header: h, Conference: f.Conference, Lines: lines, Extended: ext}, nil
}

// fitName returns s cut to the header slot width and, when it was cut, the
// full value for the extended header.
func fitName(s string) (short, full string) {
	r := []rune(s)
	if len(r) <= lenName {
		return s, ""
	}
	return string(r[:lenName]), s
}

// PacketWriter authors a QWK packet.
type PacketWriter struct {
	Control *Control
	Door    *Door
	Body    BodyCodec
	// Producer is written into the leading record of MESSAGES.DAT.
	Producer string

	messages []*Message
}

// AddMessage composes a message and queues it. Number is assigned from
// the queue position when zero.
func (w *PacketWriter) AddMessage(f HeaderFields, lines []string) (*Message, error) {
	if f.Number == 0 {
		f.Number = len(w.messages) + 1
	}
	m, err := composeMessage(f, lines, w.Body, false)
	if err != nil {
		return nil, fmt.Errorf("qwk: message %d: %w", f.Number, err)
	}
	w.messages = append(w.messages, m)
	return m, nil
}

// Write emits CONTROL.DAT, MESSAGES.DAT, one NDX per conference and
// DOOR.ID when a door is set.
func (w *PacketWriter) Write(dst container.Writer) error {
	if w.Control == nil {
		return ErrNoControlFile
	}
	if strings.TrimSpace(w.Control.BBSID) == "" {
		return ErrEmptyBBSID
	}

	var data bytes.Buffer
	data.Write(padRecord([]byte(w.Producer)))
	indexes := make(map[int]*IndexFile)
	for _, m := range w.messages {
		off := int64(data.Len() / RecordSize)
		rec, err := encodeMessage(m, w.Body)
		if err != nil {
			return fmt.Errorf("qwk: encode message %d: %w", m.Header.Number, err)
		}
		data.Write(rec)

		f, ok := indexes[m.Conference]
		if !ok {
			f = &IndexFile{Conference: m.Conference}
			indexes[m.Conference] = f
		}
		f.Entries = append(f.Entries, IndexEntry{MessageNumber: len(f.Entries) + 1, RecordOffset: off})
	}

	ctl := *w.Control
	ctl.TotalMessages = len(w.messages)
	ctlData, err := ctl.Marshal(w.Body.Text)
	if err != nil {
		return err
	}
	if err := dst.AddFile(ControlFile, ctlData); err != nil {
		return err
	}
	if err := dst.AddFile(MessagesFile, data.Bytes()); err != nil {
		return err
	}

	confs := make([]int, 0, len(indexes))
	for c := range indexes {
		confs = append(confs, c)
	}
	sort.Ints(confs)
	for _, c := range confs {
		b, err := indexes[c].Marshal()
		if err != nil {
			return err
		}
		if err := dst.AddFile(IndexFileName(c), b); err != nil {
			return err
		}
	}

	if w.Door != nil {
		if err := dst.AddFile(DoorFile, w.Door.Marshal()); err != nil {
			return err
		}
	}
	logging.Debug("wrote packet %s: %d messages, %d indexes", w.Control.BBSID, len(w.messages), len(confs))
	return nil
}

// ReplyWriter authors a REP packet holding a single BBSID.MSG.
type ReplyWriter struct {
	BBSID string
	Body  BodyCodec

	messages []*Message
}

// AddMessage composes a reply and queues it.
func (w *ReplyWriter) AddMessage(f HeaderFields, lines []string) (*Message, error) {
	m, err := composeMessage(f, lines, w.Body, true)
	if err != nil {
		return nil, fmt.Errorf("qwk: reply %d: %w", len(w.messages)+1, err)
	}
	w.messages = append(w.messages, m)
	return m, nil
}

// ReplyFileName returns the member name for a BBS id, e.g. MYBBS.MSG.
func ReplyFileName(bbsID string) string {
	return strings.ToUpper(strings.TrimSpace(bbsID)) + ReplyExt
}

// Bytes renders the BBSID.MSG contents.
func (w *ReplyWriter) Bytes() ([]byte, error) {
	id := strings.ToUpper(strings.TrimSpace(w.BBSID))
	if id == "" {
		return nil, ErrEmptyBBSID
	}
	var data bytes.Buffer
	data.Write(padRecord([]byte(id)))
	for _, m := range w.messages {
		off := data.Len() / RecordSize
		rec, err := encodeMessage(m, w.Body)
		if err != nil {
			return nil, fmt.Errorf("qwk: encode reply at record %d: %w", off, err)
		}
		data.Write(rec)
	}
	return data.Bytes(), nil
}

// Write adds BBSID.MSG to dst.
func (w *ReplyWriter) Write(dst container.Writer) error {
	b, err := w.Bytes()
	if err != nil {
		return err
	}
	return dst.AddFile(ReplyFileName(w.BBSID), b)
}
