// Package jsonutil wraps github.com/go-json-experiment/json behind the
// standard-library surface the rest of the pipeline uses. Tool output
// parsing and store persistence are the hot paths; the experimental
// encoder is considerably faster there than encoding/json.
package jsonutil

import (
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent returns the JSON encoding of v indented with indent.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, jsontext.WithIndent(indent))
}

// Valid reports whether data is a syntactically valid JSON value.
// Used to skip interleaved non-structured lines in tool output.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}
