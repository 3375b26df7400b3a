// Package canon implements canonical JSON encoding, the canonical string
// comparator, and content digesting.
//
// Canonical JSON: UTF-8, no insignificant whitespace, object keys sorted by
// byte-wise comparison of their UTF-16 code-unit sequences, arrays preserved
// in source order, integers printed without leading zeros, booleans/null
// lower-case, strings escaped minimally per RFC-8259. No NaN/Infinity.
package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"unicode/utf16"
)

// ErrNonFinite is returned when a float value is NaN or Infinity.
var ErrNonFinite = errors.New("canon: non-finite number")

// Marshal encodes v as canonical JSON.
//
// v must already be (or decode through encoding/json into) one of: nil,
// bool, string, float64/int/int64, []any, map[string]any, or a type
// implementing json.Marshaler whose output itself decodes into one of
// those shapes. Struct values can be passed directly — Marshal
// round-trips any value through encoding/json to reach a canonical shape
// before re-emitting it.
func Marshal(v any) ([]byte, error) {
	// Round-trip through encoding/json to normalize structs/tags into a
	// generic tree, then re-encode deterministically.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON re-encodes an already-serialized JSON document into
// canonical form.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canon: decode: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		return encodeNumber(buf, t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ErrNonFinite
		}
		return encodeNumber(buf, json.Number(fmt.Sprintf("%g", t)))
	case string:
		encodeString(buf, t)
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		return encodeObject(buf, t)
	default:
		// Fall back through encoding/json for any other concrete type
		// (shouldn't normally be reached once decoded via json.Decoder).
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canon: unsupported value %T: %w", t, err)
		}
		canon, err := CanonicalizeJSON(raw)
		if err != nil {
			return err
		}
		buf.Write(canon)
		return nil
	}
}

func encodeObject(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return Less(keys[i], keys[j]) })

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, k)
		buf.WriteByte(':')
		if err := encodeValue(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if s == "" {
		buf.WriteString("0")
		return nil
	}
	buf.WriteString(s)
	return nil
}

// encodeString writes a minimally-escaped JSON string per RFC-8259.
func encodeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// Less is the single canonical string comparator. All "sort-unique"
// operations in this module call this function, never locale-sensitive
// ordering and never hash-map iteration order.
//
// Comparison is byte-wise over each string's UTF-16 code-unit sequence,
// matching widely implemented lexicographic JSON-key ordering.
func Less(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	n := len(ua)
	if len(ub) < n {
		n = len(ub)
	}
	for i := 0; i < n; i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}

// SortUnique returns a sorted, de-duplicated copy of ss using Less.
func SortUnique(ss []string) []string {
	if len(ss) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// TruncateSorted truncates a sorted-unique slice to at most max elements,
// appending a sentinel entry "ZZZ_TRUNCATED(+N)" describing the overflow
// count when truncation occurs.
func TruncateSorted(ss []string, max int) []string {
	if len(ss) <= max {
		return ss
	}
	out := make([]string, 0, max+1)
	out = append(out, ss[:max]...)
	out = append(out, fmt.Sprintf("ZZZ_TRUNCATED(+%d)", len(ss)-max))
	return out
}
