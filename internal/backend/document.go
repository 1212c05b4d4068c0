package backend

import (
	"bytes"
	"encoding/json"
)

// ParseJSONField decodes a field the backend ships as a JSON-encoded string.
// Empty values become nil and text that is not JSON is returned unchanged.
func ParseJSONField(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if s == "" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil || dec.More() {
		return s
	}
	return out
}

// EncodeJSONField is the inverse of ParseJSONField for request fields: a
// non-empty value is sent as its JSON text, anything else is omitted.
func EncodeJSONField(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Items returns the list stored under key, or nil when absent or empty.
func Items(doc Document, key string) []any {
	list, _ := doc[key].([]any)
	if len(list) == 0 {
		return nil
	}
	return list
}

// MapItems rewrites every object in list with fn, leaving other values as is.
func MapItems(list []any, fn func(Document) Document) []any {
	out := make([]any, len(list))
	for i, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out[i] = fn(obj)
			continue
		}
		out[i] = item
	}
	return out
}

// Clone returns a shallow copy of doc.
func Clone(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
