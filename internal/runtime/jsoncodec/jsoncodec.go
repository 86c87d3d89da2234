// Package jsoncodec encodes tap records, journal lines and JSON inject
// payloads. It is backed by sonic with encoding/json compatible settings.
package jsoncodec

import (
	"bytes"
	"errors"

	"github.com/bytedance/sonic"
)

// ErrNotObject is returned by DecodeObject for input that is not a JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// MarshalLine encodes v as one newline terminated journal line.
func MarshalLine(v any) ([]byte, error) {
	b, err := api.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// IsObject reports whether data, ignoring surrounding whitespace, starts a
// JSON object. Raw FIX never does.
func IsObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// DecodeObject unmarshals a JSON object into v, rejecting anything else
// before sonic sees it.
func DecodeObject(data []byte, v any) error {
	if !IsObject(data) {
		return ErrNotObject
	}
	return api.Unmarshal(bytes.TrimSpace(data), v)
}
