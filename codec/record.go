package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/mapping"
	"github.com/bearlytools/binrec/structs"
)

// RecordCodec stores a nested record laid out by Map. Decoded values are *structs.Struct with
// every field read.
type RecordCodec struct {
	Map *mapping.Map
}

// Decode implements field.Codec.Decode().
func (c RecordCodec) Decode(raw []byte) (any, error) {
	// The nested record owns a copy of raw and a plain reader, so nothing ties it to the outer
	// record and it never needs Release().
	s, err := structs.Load(context.Background(), c.Map, bytes.NewReader(bytes.Clone(raw)))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Encode implements field.Codec.Encode().
func (c RecordCodec) Encode(v any) ([]byte, error) {
	s, ok := v.(*structs.Struct)
	if !ok {
		return nil, fmt.Errorf("want a *structs.Struct, got %T", v)
	}
	if s.Mapping() != c.Map {
		return nil, fmt.Errorf("want a %s record, got a %s record", c.Map.Name, s.Mapping().Name)
	}
	return s.DumpBytes(context.Background())
}

// ReadRaw implements field.Reader.ReadRaw() for records with dynamic fields. The fields are read
// one after another, so the layout must not have gaps or overlaps.
func (c RecordCodec) ReadRaw(r io.Reader) ([]byte, error) {
	buf := &bytes.Buffer{}
	for _, f := range c.Map.All() {
		raw, err := f.ReadRaw(r)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// Record creates a field holding a nested record. If m has dynamic fields the nested record is
// dynamic too and its fields must be contiguous.
func Record(m *mapping.Map, opts ...field.Option) (*field.Field, error) {
	c := RecordCodec{Map: m}
	if !m.Dynamic() {
		return field.New(int(m.Size()), append([]field.Option{field.WithCodec(c)}, opts...)...)
	}

	var (
		pos     int64
		dynamic bool
	)
	for _, f := range m.All() {
		if f.Chained() {
			continue
		}
		if dynamic || f.Offset() != pos {
			return nil, errors.Schema(
				context.Background(),
				"record %q cannot be nested: field %q at offset %d is not contiguous with the field before it",
				m.Name, f.Name(), f.Offset(),
			)
		}
		if f.Size() == field.Dynamic {
			dynamic = true
			continue
		}
		pos += int64(f.Size())
	}
	return field.New(field.Dynamic, append([]field.Option{field.WithCodec(c), field.WithReader(c)}, opts...)...)
}
