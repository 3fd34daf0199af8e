// Package recjson renders the decoded values of a record as JSON. Nested records become objects,
// []byte values become base64 strings and every other value is marshaled as is.
package recjson

import (
	"bytes"
	"fmt"
	"io"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/gostdlib/base/context"

	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/structs"
)

// marshalOptions provides options for writing a record as JSON.
type marshalOptions struct {
	Indent      string
	SkipMissing bool
	UseLabels   bool
}

// MarshalOption provides options for marshaling a record to JSON.
type MarshalOption func(marshalOptions) (marshalOptions, error)

// WithIndent writes multi-line JSON indented with indent. indent may only contain spaces and tabs.
func WithIndent(indent string) MarshalOption {
	return func(m marshalOptions) (marshalOptions, error) {
		for _, r := range indent {
			if r != ' ' && r != '\t' {
				return m, fmt.Errorf("WithIndent(%q): indent may only contain spaces and tabs", indent)
			}
		}
		m.Indent = indent
		return m, nil
	}
}

// WithSkipMissing leaves out fields the stream ended before instead of failing.
func WithSkipMissing(skip bool) MarshalOption {
	return func(m marshalOptions) (marshalOptions, error) {
		m.SkipMissing = skip
		return m, nil
	}
}

// WithUseLabels uses field labels as object keys instead of field names.
func WithUseLabels(use bool) MarshalOption {
	return func(m marshalOptions) (marshalOptions, error) {
		m.UseLabels = use
		return m, nil
	}
}

// Marshal marshals the record to JSON. Fields that have not been read yet are read.
func Marshal(ctx context.Context, s *structs.Struct, options ...MarshalOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := MarshalWriter(ctx, s, &buf, options...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalWriter marshals the record to JSON, writing to the provided io.Writer.
func MarshalWriter(ctx context.Context, s *structs.Struct, w io.Writer, options ...MarshalOption) error {
	if s == nil {
		return errors.E(ctx, errors.CatUser, errors.TypeParameter, fmt.Errorf("MarshalWriter(): record cannot be nil"))
	}

	opts := marshalOptions{}
	for _, opt := range options {
		var err error
		opts, err = opt(opts)
		if err != nil {
			return errors.E(ctx, errors.CatUser, errors.TypeParameter, err)
		}
	}

	var encOpts []jsontext.Options
	if opts.Indent != "" {
		encOpts = append(encOpts, jsontext.Multiline(true), jsontext.WithIndent(opts.Indent))
	}
	enc := jsontext.NewEncoder(w, encOpts...)
	return writeRecord(enc, s, opts)
}

func writeRecord(enc *jsontext.Encoder, s *structs.Struct, opts marshalOptions) error {
	if err := enc.WriteToken(jsontext.BeginObject); err != nil {
		return err
	}

	for _, f := range s.Mapping().All() {
		v, err := s.Get(f.Name())
		if err != nil {
			if opts.SkipMissing && errors.Is(err, errors.ErrMissingField) {
				continue
			}
			return err
		}

		key := f.Name()
		if opts.UseLabels {
			key = f.Label()
		}
		if err := enc.WriteToken(jsontext.String(key)); err != nil {
			return err
		}
		if err := writeValue(enc, v, opts); err != nil {
			return fmt.Errorf("field %q: %w", f.Name(), err)
		}
	}

	return enc.WriteToken(jsontext.EndObject)
}

func writeValue(enc *jsontext.Encoder, v any, opts marshalOptions) error {
	if nested, ok := v.(*structs.Struct); ok {
		return writeRecord(enc, nested, opts)
	}

	b, err := jsonv2.Marshal(v, jsonv2.Deterministic(true))
	if err != nil {
		return err
	}
	return enc.WriteValue(jsontext.Value(b))
}
