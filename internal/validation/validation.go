// Package validation carries the strictness policy shared by every QWK
// parser: a Mode, an accumulating diagnostic Context and a read-only Report.
//
// Parsers record problems on a Context. In Strict mode AddError returns an
// error the parser must return at once; in Lenient and Salvage modes it
// returns nil and the parser substitutes a default or skips the entry.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how parsers react to recorded errors.
type Mode int

const (
	// Strict aborts the current parse at the first error.
	Strict Mode = iota
	// Lenient records errors and continues with documented defaults.
	Lenient
	// Salvage is Lenient plus dropping individual bad entries instead of
	// discarding the containing file.
	Salvage
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Lenient:
		return "lenient"
	case Salvage:
		return "salvage"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a case-insensitive name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return Strict, nil
	case "lenient", "":
		return Lenient, nil
	case "salvage":
		return Salvage, nil
	}
	return Lenient, fmt.Errorf("validation: unknown mode %q", s)
}

// Severity tags an Issue.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARN"
	case SeverityError:
		return "ERROR"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Kind classifies errors.
type Kind int

const (
	KindNone        Kind = iota
	KindStructural       // required file or field absent
	KindFormat           // malformed date, numeric or fixed-width field
	KindConsistency      // cross-file references that do not line up
	KindRange            // value outside protocol-legal bounds
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindFormat:
		return "format"
	case KindConsistency:
		return "consistency"
	case KindRange:
		return "range"
	}
	return "none"
}

// Sentinel errors, one per Kind. *Error unwraps to these.
var (
	ErrStructural  = errors.New("qwk: structural error")
	ErrFormat      = errors.New("qwk: format error")
	ErrConsistency = errors.New("qwk: consistency error")
	ErrRange       = errors.New("qwk: range error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindStructural:
		return ErrStructural
	case KindFormat:
		return ErrFormat
	case KindConsistency:
		return ErrConsistency
	case KindRange:
		return ErrRange
	}
	return nil
}

// Error is the error surfaced by a Strict-mode abort, and by contract
// violations that fail in every mode.
type Error struct {
	Kind     Kind
	Location string
	Message  string
}

func (e *Error) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error at %s: %s", e.Kind, e.Location, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind.sentinel()
}

// Errorf builds an *Error directly.
func Errorf(kind Kind, location, format string, args ...any) *Error {
	return &Error{Kind: kind, Location: location, Message: fmt.Sprintf(format, args...)}
}

// Issue is one recorded diagnostic.
type Issue struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Kind     Kind     `json:"kind,omitempty" yaml:"kind,omitempty"`
	Location string   `json:"location,omitempty" yaml:"location,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(i.Severity.String())
	if i.Kind != KindNone {
		b.WriteString(" [")
		b.WriteString(i.Kind.String())
		b.WriteString("]")
	}
	if i.Location != "" {
		b.WriteString(" ")
		b.WriteString(i.Location)
	}
	b.WriteString(": ")
	b.WriteString(i.Message)
	return b.String()
}

// Context accumulates issues for a single parse. It is not safe for
// concurrent use; each parse owns its own Context.
type Context struct {
	mode   Mode
	issues []Issue
}

// NewContext returns an empty Context in the given mode.
func NewContext(mode Mode) *Context {
	return &Context{mode: mode}
}

func (c *Context) Mode() Mode { return c.mode }

// Salvaging reports whether the context is in Salvage mode.
func (c *Context) Salvaging() bool { return c.mode == Salvage }

func (c *Context) AddInfo(location, format string, args ...any) {
	c.issues = append(c.issues, Issue{Severity: SeverityInfo, Location: location, Message: fmt.Sprintf(format, args...)})
}

func (c *Context) AddWarning(location, format string, args ...any) {
	c.issues = append(c.issues, Issue{Severity: SeverityWarning, Location: location, Message: fmt.Sprintf(format, args...)})
}

// AddError records an error. In Strict mode it returns the *Error that the
// caller must return immediately; otherwise it returns nil.
func (c *Context) AddError(kind Kind, location, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	c.issues = append(c.issues, Issue{Severity: SeverityError, Kind: kind, Location: location, Message: msg})
	if c.mode == Strict {
		return &Error{Kind: kind, Location: location, Message: msg}
	}
	return nil
}

// Issues returns a copy of the recorded issues in order.
func (c *Context) Issues() []Issue {
	out := make([]Issue, len(c.issues))
	copy(out, c.issues)
	return out
}

func (c *Context) HasErrors() bool {
	for _, i := range c.issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of recorded issues.
func (c *Context) Len() int { return len(c.issues) }
