// Package qwk reads and writes QWK mail packets and REP reply packets:
// 128-byte message records, terminator-delimited bodies, CONTROL.DAT and
// DOOR.ID metadata, and the per-conference NDX index with its legacy
// floating-point offsets.
//
// Every parser takes a *validation.Context and honours its Mode.
package qwk

import "errors"

// QWK file format constants
const (
	RecordSize     = 128        // every binary file is a sequence of 128-byte records
	Terminator     = 0xE3       // body line terminator (CP437 pi)
	MaxBlocks      = 16_000_000 // clamp on header block counts; keeps blocks*128 inside int32
	IndexEntrySize = 4          // bytes per NDX entry
	qwkeSniffLen   = 512        // bytes inspected when detecting the CR/LF dialect
)

// Alive flag values at header offset 122.
const (
	AliveActive = 0xE1
	AliveKilled = 0xE2
)

// Well-known packet member names.
const (
	ControlFile  = "CONTROL.DAT"
	MessagesFile = "MESSAGES.DAT"
	DoorFile     = "DOOR.ID"
	ReplyExt     = ".MSG"
)

// Sentinel errors
var (
	ErrNoControlFile  = errors.New("qwk: packet has no CONTROL.DAT")
	ErrNoMessagesFile = errors.New("qwk: packet has no MESSAGES.DAT")
	ErrNoReplyFile    = errors.New("qwk: reply packet has no BBSID.MSG")
	ErrEmptyBBSID     = errors.New("qwk: BBS id is required")
)
