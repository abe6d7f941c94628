package qwk

import (
	"fmt"
	"strings"

	"github.com/stlalpha/qwk/internal/validation"
)

// Capability is a CONTROLTYPE value from DOOR.ID.
type Capability int

const (
	CapUnknown Capability = iota
	CapAdd
	CapDrop
	CapRequest
	CapReset
	CapResetAll
	CapFiles
)

var capabilityNames = map[string]Capability{
	"ADD":      CapAdd,
	"DROP":     CapDrop,
	"REQUEST":  CapRequest,
	"RESET":    CapReset,
	"RESETALL": CapResetAll,
	"FILES":    CapFiles,
}

func (c Capability) String() string {
	for name, v := range capabilityNames {
		if v == c {
			return name
		}
	}
	return "UNKNOWN"
}

// Door is the parsed DOOR.ID.
type Door struct {
	Door        string
	Version     string
	System      string
	ControlName string
	MixedCase   bool
	FidoTag     bool
	Receipt     bool

	Capabilities []Capability
	// UnknownControlTypes keeps the raw CONTROLTYPE values that mapped to
	// CapUnknown.
	UnknownControlTypes []string
}

// Has reports whether the door declared capability c.
func (d *Door) Has(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

func doorLoc(line int) string {
	return fmt.Sprintf("%s line %d", DoorFile, line)
}

// ParseDoor parses DOOR.ID lines of the form KEY = VALUE, KEY=VALUE or a
// bare keyword. Keys are case-insensitive. Only CONTROLTYPE may repeat;
// for any other key the first value wins.
func ParseDoor(data []byte, ctx *validation.Context) (*Door, error) {
	d := &Door{}
	seen := make(map[string]int)

	for i, raw := range splitTextLines(string(data)) {
		n := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		key, val, hasVal := strings.Cut(line, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		val = strings.TrimSpace(val)

		if !hasVal {
			if key == "RECEIPT" {
				d.Receipt = true
			} else {
				ctx.AddInfo(doorLoc(n), "unknown keyword %q", key)
			}
			continue
		}

		if key != "CONTROLTYPE" {
			if first, dup := seen[key]; dup {
				ctx.AddWarning(doorLoc(n), "%s repeated, keeping the value from line %d", key, first)
				continue
			}
			seen[key] = n
		}

		switch key {
		case "DOOR":
			d.Door = val
		case "VERSION":
			d.Version = val
		case "SYSTEM":
			d.System = val
		case "CONTROLNAME":
			d.ControlName = val
		case "MIXEDCASE", "FIDOTAG":
			b, ok := parseDoorBool(val)
			if !ok {
				if err := ctx.AddError(validation.KindFormat, doorLoc(n),
					"%s value %q is not a yes/no flag", key, val); err != nil {
					return nil, err
				}
			}
			if key == "MIXEDCASE" {
				d.MixedCase = b
			} else {
				d.FidoTag = b
			}
		case "CONTROLTYPE":
			name := strings.ToUpper(val)
			c, ok := capabilityNames[name]
			if !ok {
				c = CapUnknown
				d.UnknownControlTypes = append(d.UnknownControlTypes, val)
			}
			if c == CapUnknown || !d.Has(c) {
				d.Capabilities = append(d.Capabilities, c)
			}
		case "RECEIPT":
			b, ok := parseDoorBool(val)
			d.Receipt = b || !ok
		default:
			ctx.AddInfo(doorLoc(n), "unknown key %q", key)
		}
	}
	return d, nil
}

func parseDoorBool(s string) (bool, bool) {
	switch strings.ToUpper(s) {
	case "YES", "TRUE", "ON", "1":
		return true, true
	case "NO", "FALSE", "OFF", "0":
		return false, true
	}
	return false, false
}

// Marshal renders d as DOOR.ID with CRLF line endings.
func (d *Door) Marshal() []byte {
	var b strings.Builder
	put := func(key, val string) {
		if val != "" {
			fmt.Fprintf(&b, "%s = %s\r\n", key, val)
		}
	}
	yesNo := func(v bool) string {
		if v {
			return "YES"
		}
		return "NO"
	}
	put("DOOR", d.Door)
	put("VERSION", d.Version)
	put("SYSTEM", d.System)
	put("CONTROLNAME", d.ControlName)
	put("MIXEDCASE", yesNo(d.MixedCase))
	put("FIDOTAG", yesNo(d.FidoTag))
	unknown := d.UnknownControlTypes
	for _, c := range d.Capabilities {
		if c == CapUnknown {
			if len(unknown) > 0 {
				put("CONTROLTYPE", unknown[0])
				unknown = unknown[1:]
			}
			continue
		}
		put("CONTROLTYPE", c.String())
	}
	if d.Receipt {
		b.WriteString("RECEIPT\r\n")
	}
	return []byte(b.String())
}
