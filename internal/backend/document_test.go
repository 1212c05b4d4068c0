package backend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseJSONField(t *testing.T) {
	assert.Nil(t, ParseJSONField(""))
	assert.Nil(t, ParseJSONField(nil))
	assert.Equal(t, []any{"a", "b"}, ParseJSONField(`["a","b"]`))
	assert.Equal(t, map[string]any{"score": json.Number("0.9")}, ParseJSONField(`{"score":0.9}`))
	assert.Equal(t, "not json", ParseJSONField("not json"))
	assert.Equal(t, "1 2", ParseJSONField("1 2"))
	assert.Equal(t, json.Number("7"), ParseJSONField(json.Number("7")))
}

func TestEncodeJSONField(t *testing.T) {
	s, ok := EncodeJSONField(map[string]any{"x": 1})
	assert.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, s)

	_, ok = EncodeJSONField(nil)
	assert.False(t, ok)
}

func TestMapItemsSkipsNonObjects(t *testing.T) {
	out := MapItems([]any{map[string]any{"a": 1}, "x"}, func(d Document) Document {
		d = Clone(d)
		d["b"] = 2
		return d
	})
	assert.Equal(t, []any{map[string]any{"a": 1, "b": 2}, "x"}, out)
	assert.Nil(t, Items(Document{"list": []any{}}, "list"))
}
