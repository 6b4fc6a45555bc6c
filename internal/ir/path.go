package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InstrumentPrefix marks a source path that reads a prior answer.
const InstrumentPrefix = "instrument:"

// FieldPath is a parsed condition source.
//
// Either Instrument is set (the path reads the latest answer to that
// measure) or Segments holds a dotted attribute walk into the subject graph,
// e.g. floorplan.remrate_target.bedroom_count.
type FieldPath struct {
	Raw        string
	Instrument string
	Segments   []string
}

// ParseFieldPath parses a source path declared under namespace.
//
// Under the instrument namespace a bare measure id is accepted as shorthand
// for instrument:<id>. Empty segments ("a..b", trailing dots) are rejected.
func ParseFieldPath(namespace, raw string) (FieldPath, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return FieldPath{}, fmt.Errorf("empty field path")
	}

	if id, ok := strings.CutPrefix(trimmed, InstrumentPrefix); ok {
		if id == "" {
			return FieldPath{}, fmt.Errorf("field path %q names no instrument", raw)
		}
		return FieldPath{Raw: InstrumentPrefix + id, Instrument: id}, nil
	}

	if namespace == NamespaceInstrument {
		return FieldPath{Raw: InstrumentPrefix + trimmed, Instrument: trimmed}, nil
	}

	segments := strings.Split(trimmed, ".")
	for i, seg := range segments {
		if seg == "" {
			return FieldPath{}, fmt.Errorf("field path %q has an empty segment at position %d", raw, i)
		}
	}
	return FieldPath{Raw: trimmed, Segments: segments}, nil
}

// MustParseFieldPath is like ParseFieldPath but panics on error.
// Use only in tests or for literals known to be valid.
func MustParseFieldPath(namespace, raw string) FieldPath {
	p, err := ParseFieldPath(namespace, raw)
	if err != nil {
		panic(err)
	}
	return p
}

// IsInstrument reports whether the path reads a prior answer.
func (p FieldPath) IsInstrument() bool {
	return p.Instrument != ""
}

func (p FieldPath) String() string {
	return p.Raw
}

// MarshalJSON encodes the path as its raw string.
func (p FieldPath) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Raw)
}

// UnmarshalJSON decodes a raw path string. Paths without the instrument
// prefix decode as attribute paths.
func (p *FieldPath) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseFieldPath("", raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
