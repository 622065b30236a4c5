// Package filemeta extracts file metadata from the loosely shaped lookup responses
// returned by the files API.
package filemeta

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FileMetadata is the part of a lookup response the resolver cares about
type FileMetadata struct {
	Object string `json:"object,omitempty"` // Storage key
	Owner  string `json:"owner,omitempty"`  // Identity the object belongs to
}

// strategy recognises one envelope shape and returns the record inside it
type strategy struct {
	name    string
	extract func(v any) (map[string]any, bool)
}

// strategies are tried in order; the first structural match wins
var strategies = []strategy{
	{name: "object", extract: bareObject},
	{name: "array", extract: arrayHead},
	{name: "file", extract: wrapped("file")},
	{name: "files", extract: wrapped("files")},
	{name: "data", extract: dataEnvelope},
}

// Extract decodes a raw lookup response. It never fails: anything unrecognised yields nil.
func Extract(data []byte) *FileMetadata {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return ExtractValue(v)
}

// ExtractValue runs the extraction strategies over an already decoded value
func ExtractValue(v any) *FileMetadata {
	meta, _ := extractWith(v)
	return meta
}

// Shape reports which envelope matched, or "" when none did
func Shape(data []byte) string {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	_, name := extractWith(v)
	return name
}

func extractWith(v any) (*FileMetadata, string) {
	if v == nil {
		return nil, ""
	}
	for _, s := range strategies {
		record, ok := s.extract(v)
		if !ok {
			continue
		}
		return &FileMetadata{
			Object: stringField(record, "object"),
			Owner:  stringField(record, "owner"),
		}, s.name
	}
	return nil, ""
}

func bareObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	_, hasObject := m["object"]
	_, hasOwner := m["owner"]
	if !hasObject && !hasOwner {
		return nil, false
	}
	return m, true
}

func arrayHead(v any) (map[string]any, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	if head, ok := arr[0].(map[string]any); ok {
		if record, ok := bareObject(head["file"]); ok {
			return record, true
		}
	}
	return bareObject(arr[0])
}

// wrapped matches {key: <object or array>}; array heads may nest the record under "file"
func wrapped(key string) func(v any) (map[string]any, bool) {
	return func(v any) (map[string]any, bool) {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		inner, ok := m[key]
		if !ok || inner == nil {
			return nil, false
		}
		if record, ok := bareObject(inner); ok {
			return record, true
		}
		return arrayHead(inner)
	}
}

// dataEnvelope unwraps {"data": ...} once and retries the other shapes
func dataEnvelope(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	inner, ok := m["data"]
	if !ok || inner == nil {
		return nil, false
	}
	for _, extract := range []func(any) (map[string]any, bool){bareObject, arrayHead, wrapped("file"), wrapped("files")} {
		if record, ok := extract(inner); ok {
			return record, true
		}
	}
	return nil, false
}

// stringField reads a string or numeric field; other types read as empty
func stringField(m map[string]any, key string) string {
	switch val := m[key].(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
