package validation

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	diagElement = regexp.MustCompile(`^Element '([^']+)'`)
	diagQuoted  = regexp.MustCompile(`'([^']*)'`)
)

// withLine appends ", line N" to a schema diagnostic when the node it names
// can be identified in raw without ambiguity. The diagnostic is otherwise
// returned unchanged.
func withLine(diag string, raw []byte) string {
	line, ok := locateDiagnostic(diag, raw)
	if !ok {
		return diag
	}
	return fmt.Sprintf("%s, line %d", strings.TrimSuffix(diag, "."), line)
}

// locateDiagnostic finds the line of the element a libxml2 validity message
// refers to. The element name comes from the "Element 'name'" prefix; the
// first quoted token after the reason separator, when present, must equal
// one of the element's attribute values or its trimmed text. A duplicate-key
// message points at the last match, every other message needs exactly one.
func locateDiagnostic(diag string, raw []byte) (int, bool) {
	m := diagElement.FindStringSubmatch(diag)
	if m == nil {
		return 0, false
	}
	name := m[1]

	var (
		value    string
		hasValue bool
	)
	if i := strings.Index(diag, ": "); i >= 0 {
		if q := diagQuoted.FindStringSubmatch(diag[i+2:]); q != nil {
			value, hasValue = q[1], true
		}
	}

	lines, err := elementLines(raw, name, value, hasValue)
	if err != nil || len(lines) == 0 {
		return 0, false
	}
	if strings.Contains(diag, "Duplicate key-sequence") {
		return lines[len(lines)-1], true
	}
	if len(lines) != 1 {
		return 0, false
	}
	return lines[0], true
}

func elementLines(raw []byte, name, value string, hasValue bool) ([]int, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false

	var (
		lines       []int
		pendingLine int
		pendingText strings.Builder
		depth       int
		pendingAt   = -1
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local != name {
				continue
			}
			line, _ := dec.InputPos()
			if !hasValue {
				lines = append(lines, line)
				continue
			}
			if attrHasValue(t.Attr, value) {
				lines = append(lines, line)
				continue
			}
			pendingLine, pendingAt = line, depth
			pendingText.Reset()
		case xml.CharData:
			if pendingAt == depth {
				pendingText.Write(t)
			}
		case xml.EndElement:
			if pendingAt == depth {
				if strings.TrimSpace(pendingText.String()) == value {
					lines = append(lines, pendingLine)
				}
				pendingAt = -1
			}
			depth--
		}
	}
}

func attrHasValue(attrs []xml.Attr, value string) bool {
	for _, a := range attrs {
		if a.Value == value {
			return true
		}
	}
	return false
}
