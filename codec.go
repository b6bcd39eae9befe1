// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dock

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

var errTrailingData = errors.New("unexpected data after top-level JSON value")

// Codec encodes/decodes message bodies
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// JSONCodec is a JSON-based codec. Encoding is compact; decoding keeps
// numbers as json.Number so a decode/encode round trip is lossless.
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	return nil
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// convert re-shapes a JSON-compatible value into out by way of the default codec.
func convert(in interface{}, out interface{}) error {
	data, err := defaultCodec.Encode(in)
	if err != nil {
		return err
	}
	return defaultCodec.Decode(data, out)
}
