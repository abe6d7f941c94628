package qwk

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stlalpha/qwk/internal/container"
	"github.com/stlalpha/qwk/internal/logging"
	"github.com/stlalpha/qwk/internal/validation"
)

// ReadOptions controls packet reading.
type ReadOptions struct {
	Mode validation.Mode
	Text TextCodec
	// AutoDetect accepts CR/CRLF-terminated bodies.
	AutoDetect bool
	// BBSID selects the reply member in REP packets. When empty the first
	// *.MSG member is used.
	BBSID string
}

func (o ReadOptions) body() BodyCodec {
	return BodyCodec{Text: o.Text, AutoDetect: o.AutoDetect}
}

// Packet is a fully read QWK packet.
type Packet struct {
	Control    *Control
	Door       *Door // nil when the packet has no DOOR.ID
	Messages   []*Message
	Indexes    []*IndexFile
	DataLength int64
	// Bulletins holds the decoded welcome, news and goodbye files that
	// were present, keyed by member name.
	Bulletins map[string]string
}

// Reply is a fully read REP packet.
type Reply struct {
	BBSID    string
	File     string
	Messages []*Message
}

// ReadPacket reads and validates a QWK packet. The report is returned
// even when a Strict-mode error aborts the read.
func ReadPacket(ctx context.Context, src container.Reader, opts ReadOptions) (*Packet, *validation.Report, error) {
	vctx := validation.NewContext(opts.Mode)
	pkt, err := readPacket(ctx, src, opts, vctx)
	return pkt, validation.FromContext(vctx), err
}

func readPacket(ctx context.Context, src container.Reader, opts ReadOptions, vctx *validation.Context) (*Packet, error) {
	if err := CheckRequiredFiles(src.ListFiles(), RequiredPacketFiles, vctx); err != nil {
		return nil, err
	}
	pkt := &Packet{Control: &Control{}, Bulletins: make(map[string]string)}

	if src.FileExists(ControlFile) {
		data, err := container.ReadFile(src, ControlFile)
		if err != nil {
			return nil, err
		}
		if pkt.Control, err = ParseControl(data, opts.Text, vctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if src.FileExists(DoorFile) {
		data, err := container.ReadFile(src, DoorFile)
		if err != nil {
			return nil, err
		}
		if pkt.Door, err = ParseDoor(data, vctx); err != nil {
			return nil, err
		}
	}

	pkt.DataLength = -1
	if src.FileExists(MessagesFile) {
		data, err := container.ReadFile(src, MessagesFile)
		if err != nil {
			return nil, err
		}
		pkt.DataLength = int64(len(data))
		if pkt.Messages, err = ReadMessages(ctx, bytes.NewReader(data), opts.body(), vctx); err != nil {
			return nil, err
		}
	}

	for _, name := range src.ListFiles() {
		conf, ok := ParseIndexFileName(name)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := container.ReadFile(src, name)
		if err != nil {
			return nil, err
		}
		idx, err := ParseIndex(data, conf, vctx, pkt.DataLength)
		if err != nil {
			return nil, err
		}
		pkt.Indexes = append(pkt.Indexes, idx)
	}
	sort.Slice(pkt.Indexes, func(i, j int) bool { return pkt.Indexes[i].Conference < pkt.Indexes[j].Conference })

	for _, name := range []string{pkt.Control.Welcome, pkt.Control.News, pkt.Control.Goodbye} {
		if name == "" {
			continue
		}
		if !src.FileExists(name) {
			vctx.AddWarning(name, "named in %s but not in the packet", ControlFile)
			continue
		}
		data, err := container.ReadFile(src, name)
		if err != nil {
			return nil, err
		}
		text, err := opts.Text.Decode(data)
		if err != nil {
			if err := vctx.AddError(validation.KindFormat, name, "%v", err); err != nil {
				return nil, err
			}
			continue
		}
		pkt.Bulletins[strings.ToUpper(name)] = text
	}

	if err := validatePacket(pkt, vctx); err != nil {
		return nil, err
	}
	logging.Debug("packet %s: %d messages, %d indexes, %d issues",
		pkt.Control.BBSID, len(pkt.Messages), len(pkt.Indexes), vctx.Len())
	return pkt, nil
}

func validatePacket(pkt *Packet, vctx *validation.Context) error {
	if err := CheckControl(pkt.Control, vctx); err != nil {
		return err
	}
	CheckMessageCount(pkt.Control, len(pkt.Messages), vctx)
	for _, m := range pkt.Messages {
		if err := CheckHeader(m.Header, messageLoc(MessagesFile, m), vctx); err != nil {
			return err
		}
	}
	if err := CheckConferenceMembership(pkt.Messages, pkt.Control, vctx); err != nil {
		return err
	}
	if err := CheckIndexConsistency(pkt.Indexes, pkt.Messages, vctx); err != nil {
		return err
	}
	CheckDuplicateNumbers(pkt.Messages, vctx)
	CheckDuplicates(pkt.Messages, MessagesFile, vctx)
	return nil
}

// ReadReply reads and validates a REP packet.
func ReadReply(ctx context.Context, src container.Reader, opts ReadOptions) (*Reply, *validation.Report, error) {
	vctx := validation.NewContext(opts.Mode)
	rep, err := readReply(ctx, src, opts, vctx)
	return rep, validation.FromContext(vctx), err
}

func readReply(ctx context.Context, src container.Reader, opts ReadOptions, vctx *validation.Context) (*Reply, error) {
	name := ""
	if opts.BBSID != "" {
		if want := ReplyFileName(opts.BBSID); src.FileExists(want) {
			name = want
		}
	} else {
		for _, n := range src.ListFiles() {
			if strings.HasSuffix(strings.ToUpper(n), ReplyExt) {
				name = n
				break
			}
		}
	}
	if name == "" {
		if err := vctx.AddError(validation.KindStructural, ReplyFileName(opts.BBSID), "%v", ErrNoReplyFile); err != nil {
			return nil, err
		}
		return &Reply{}, nil
	}

	data, err := container.ReadFile(src, name)
	if err != nil {
		return nil, err
	}
	lead, msgs, err := ReadReplyMessages(ctx, bytes.NewReader(data), opts.body(), vctx, name)
	if err != nil {
		return nil, err
	}
	rep := &Reply{BBSID: lead, File: name, Messages: msgs}

	stem := strings.ToUpper(strings.TrimSuffix(strings.ToUpper(name), ReplyExt))
	if !strings.EqualFold(lead, stem) {
		vctx.AddWarning(name, "leading record names BBS %q, file is named for %q", lead, stem)
	}
	if lead == "" {
		if err := vctx.AddError(validation.KindStructural, fmt.Sprintf("%s record 0", name), "%v", ErrEmptyBBSID); err != nil {
			return nil, err
		}
	}
	for _, m := range msgs {
		if err := CheckHeader(m.Header, messageLoc(name, m), vctx); err != nil {
			return nil, err
		}
	}
	CheckDuplicates(msgs, name, vctx)
	return rep, nil
}
