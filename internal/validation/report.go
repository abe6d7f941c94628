package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarshalText renders severities by name in JSON and YAML output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "INFO":
		*s = SeverityInfo
	case "WARN", "WARNING":
		*s = SeverityWarning
	case "ERROR":
		*s = SeverityError
	default:
		return fmt.Errorf("validation: unknown severity %q", b)
	}
	return nil
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "structural":
		*k = KindStructural
	case "format":
		*k = KindFormat
	case "consistency":
		*k = KindConsistency
	case "range":
		*k = KindRange
	case "none", "":
		*k = KindNone
	default:
		return fmt.Errorf("validation: unknown kind %q", b)
	}
	return nil
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Summary holds issue counts by severity.
type Summary struct {
	Total    int  `json:"total" yaml:"total"`
	Errors   int  `json:"errors" yaml:"errors"`
	Warnings int  `json:"warnings" yaml:"warnings"`
	Infos    int  `json:"infos" yaml:"infos"`
	Valid    bool `json:"valid" yaml:"valid"`
}

// Report is a read-only snapshot of a Context.
type Report struct {
	mode   Mode
	issues []Issue
}

// FromContext snapshots the issues recorded so far. Later additions to
// the Context do not affect the Report.
func FromContext(c *Context) *Report {
	return &Report{mode: c.mode, issues: c.Issues()}
}

func (r *Report) Mode() Mode { return r.mode }

// Issues returns all issues in recording order.
func (r *Report) Issues() []Issue {
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

func (r *Report) bySeverity(s Severity) []Issue {
	var out []Issue
	for _, i := range r.issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

func (r *Report) Infos() []Issue    { return r.bySeverity(SeverityInfo) }
func (r *Report) Warnings() []Issue { return r.bySeverity(SeverityWarning) }
func (r *Report) Errors() []Issue   { return r.bySeverity(SeverityError) }

// IsValid is true iff there are no errors and no warnings.
func (r *Report) IsValid() bool {
	for _, i := range r.issues {
		if i.Severity != SeverityInfo {
			return false
		}
	}
	return true
}

func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.issues)}
	for _, i := range r.issues {
		switch i.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Infos++
		}
	}
	s.Valid = s.Errors == 0 && s.Warnings == 0
	return s
}

// document is the machine-readable shape shared by JSON and YAML.
type document struct {
	Mode    Mode    `json:"mode" yaml:"mode"`
	Summary Summary `json:"summary" yaml:"summary"`
	Issues  []Issue `json:"issues" yaml:"issues"`
}

func (r *Report) document() document {
	issues := r.Issues()
	if issues == nil {
		issues = []Issue{}
	}
	return document{Mode: r.mode, Summary: r.Summary(), Issues: issues}
}

func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.document())
}

func (r *Report) MarshalYAML() (any, error) {
	return r.document(), nil
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r.document(), "", "  ")
}

// YAML renders the report as YAML.
func (r *Report) YAML() ([]byte, error) {
	return yaml.Marshal(r.document())
}

// WriteText writes one line per issue followed by a summary line.
func (r *Report) WriteText(w io.Writer) error {
	for _, i := range r.issues {
		if _, err := fmt.Fprintln(w, i.String()); err != nil {
			return err
		}
	}
	s := r.Summary()
	status := "VALID"
	if !s.Valid {
		status = "INVALID"
	}
	_, err := fmt.Fprintf(w, "%s (%s): %d error(s), %d warning(s), %d info\n",
		status, r.mode, s.Errors, s.Warnings, s.Infos)
	return err
}

func (r *Report) String() string {
	var b strings.Builder
	_ = r.WriteText(&b)
	return b.String()
}
