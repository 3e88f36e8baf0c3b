// Package yamlutil decodes and encodes html2preview configuration files.
// It keeps the YAML library behind one small surface.
package yamlutil

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// DefaultMaxSize bounds the input accepted by Decode (256 KiB). A config
// file is a handful of keys; anything larger is a mistake.
const DefaultMaxSize = 256 << 10

var (
	ErrEmptyInput = errors.New("yamlutil: empty input")
	ErrNilTarget  = errors.New("yamlutil: nil target")
	ErrTooLarge   = errors.New("yamlutil: input too large")
)

// Options controls decoding.
type Options struct {
	Strict  bool // Reject keys that do not map to a struct field
	MaxSize int  // Maximum input size in bytes (0 = DefaultMaxSize)
}

// Decode parses data into v.
func Decode(data []byte, v any, opts Options) error {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	switch {
	case len(data) == 0:
		return ErrEmptyInput
	case len(data) > maxSize:
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), maxSize)
	case v == nil:
		return ErrNilTarget
	}

	var decodeOpts []yaml.DecodeOption
	if opts.Strict {
		decodeOpts = append(decodeOpts, yaml.Strict())
	}
	if err := yaml.UnmarshalWithOptions(data, v, decodeOpts...); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

// Encode renders v as block-style YAML with two-space indentation.
func Encode(v any) ([]byte, error) {
	out, err := yaml.MarshalWithOptions(v, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return nil, fmt.Errorf("yamlutil: %w", err)
	}
	return out, nil
}

// Describe renders a Decode error with the offending line and a caret,
// for messages shown to the person who wrote the file.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var inner error = err
	if u := errors.Unwrap(err); u != nil {
		inner = u
	}
	return yaml.FormatError(inner, false, true)
}
