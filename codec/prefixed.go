package codec

import (
	"fmt"
	"io"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/internal/binary"
)

// Prefixed is a dynamic sized value stored as an unsigned length of Width bytes followed by that
// many bytes. It is both the field.Reader and the field.Codec of the field. Raw bytes include the
// length prefix.
type Prefixed struct {
	// Width of the length prefix, 1 or 2.
	Width int
	Order Order
	// AsString decodes to a string instead of []byte.
	AsString bool
}

func (p Prefixed) max() int {
	return 1<<(8*p.Width) - 1
}

func (p Prefixed) length(b []byte) int {
	if p.Width == 1 {
		return int(b[0])
	}
	return int(binary.Get[uint16](p.Order, b))
}

// ReadRaw implements field.Reader.ReadRaw().
func (p Prefixed) ReadRaw(r io.Reader) ([]byte, error) {
	prefix := make([]byte, p.Width)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}

	raw := make([]byte, p.Width+p.length(prefix))
	copy(raw, prefix)
	if _, err := io.ReadFull(r, raw[p.Width:]); err != nil {
		return nil, err
	}
	return raw, nil
}

// Decode implements field.Codec.Decode().
func (p Prefixed) Decode(raw []byte) (any, error) {
	if len(raw) < p.Width {
		return nil, fmt.Errorf("need at least %d bytes for the length prefix, got %d", p.Width, len(raw))
	}
	if n := p.length(raw); n != len(raw)-p.Width {
		return nil, fmt.Errorf("length prefix says %d bytes, have %d", n, len(raw)-p.Width)
	}
	data := raw[p.Width:]
	if p.AsString {
		return string(data), nil
	}
	return append([]byte{}, data...), nil
}

// Encode implements field.Codec.Encode().
func (p Prefixed) Encode(v any) ([]byte, error) {
	var data []byte
	switch x := v.(type) {
	case []byte:
		data = x
	case string:
		data = []byte(x)
	default:
		return nil, fmt.Errorf("want []byte or string, got %T", v)
	}
	if len(data) > p.max() {
		return nil, fmt.Errorf("value of %d bytes is longer than the %d a %d byte prefix allows", len(data), p.max(), p.Width)
	}

	raw := make([]byte, p.Width+len(data))
	if p.Width == 1 {
		raw[0] = byte(len(data))
	} else {
		binary.Put(p.Order, raw, uint16(len(data)))
	}
	copy(raw[p.Width:], data)
	return raw, nil
}

func prefixed(p Prefixed, opts []field.Option) (*field.Field, error) {
	if p.Width != 1 && p.Width != 2 {
		return nil, errors.Schema(context.Background(), "length prefix must be 1 or 2 bytes, not %d", p.Width)
	}
	return field.New(
		field.Dynamic,
		append([]field.Option{field.WithReader(p), field.WithCodec(p)}, opts...)...,
	)
}

// PBytes creates a dynamic field of bytes preceded by a width byte length.
func PBytes(width int, o Order, opts ...field.Option) (*field.Field, error) {
	return prefixed(Prefixed{Width: width, Order: o}, opts)
}

// PString is PBytes() for strings.
func PString(width int, o Order, opts ...field.Option) (*field.Field, error) {
	return prefixed(Prefixed{Width: width, Order: o, AsString: true}, opts)
}
