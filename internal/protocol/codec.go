package protocol

import (
	stdjson "encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// RawMessage defers decoding of a sub-document (params, arguments).
type RawMessage = stdjson.RawMessage

// json is the hot-path codec. UseNumber keeps numeric arguments as
// json.Number so binding can distinguish 100 from 100.5 and from "100".
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Number is the lossless numeric type produced by Decode.
type Number = stdjson.Number

// Marshal encodes v with the protocol codec.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes data with the protocol codec. Numbers decode as Number.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// UnmarshalStd decodes data with encoding/json semantics (numbers as
// float64). Used where a downstream library expects stdlib-shaped values,
// e.g. JSON Schema validation.
func UnmarshalStd(data []byte, v any) error {
	return stdjson.Unmarshal(data, v)
}
