// Package json provides the JSON codec used across the gateway.
// It wraps bytedance/sonic with a drop-in encoding/json style API so the
// hot translation paths avoid reflection-heavy stdlib marshaling.
package json

import (
	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

// Marshal encodes v as JSON.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// MarshalString encodes v and returns the JSON as a string.
func MarshalString(v any) (string, error) {
	return api.MarshalToString(v)
}

// Valid reports whether data is well-formed JSON.
func Valid(data []byte) bool {
	return api.Valid(data)
}
