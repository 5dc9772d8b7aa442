package httpx

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// jsonSerializer mirrors echo's default serializer on top of goccy/go-json,
// so request and response bodies use the same codec as the cache payloads.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(c Context, i any, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c Context, i any) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		return HTTPError(StatusBadRequest, fmt.Sprintf("unmarshal type error: expected=%v, got=%v, field=%v", ute.Type, ute.Value, ute.Field))
	}
	if se, ok := err.(*json.SyntaxError); ok {
		return HTTPError(StatusBadRequest, fmt.Sprintf("syntax error at offset %d: %v", se.Offset, se.Error()))
	}
	return err
}
