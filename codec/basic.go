package codec

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bearlytools/binrec/field"
)

// BoolCodec stores a bool in one byte, 0 for false and 1 for true.
type BoolCodec struct{}

// Decode implements field.Codec.Decode().
func (BoolCodec) Decode(raw []byte) (any, error) {
	if len(raw) != 1 {
		return nil, fmt.Errorf("need 1 byte for a bool, got %d", len(raw))
	}
	switch raw[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return nil, fmt.Errorf("byte %#x is not a bool", raw[0])
}

// Encode implements field.Codec.Encode().
func (BoolCodec) Encode(v any) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("want a bool, got %T", v)
	}
	if b {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

// Bool creates a one byte bool field.
func Bool(opts ...field.Option) (*field.Field, error) {
	return field.New(1, append([]field.Option{field.WithCodec(BoolCodec{})}, opts...)...)
}

// StringCodec stores a string in Size bytes, padded with NUL bytes. Trailing NULs are removed on
// decode, so a string cannot end in a NUL.
type StringCodec struct {
	Size int
}

// Decode implements field.Codec.Decode().
func (c StringCodec) Decode(raw []byte) (any, error) {
	return string(bytes.TrimRight(raw, "\x00")), nil
}

// Encode implements field.Codec.Encode().
func (c StringCodec) Encode(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("want a string, got %T", v)
	}
	if len(s) > c.Size {
		return nil, fmt.Errorf("string of %d bytes does not fit in %d bytes", len(s), c.Size)
	}
	if strings.HasSuffix(s, "\x00") {
		return nil, fmt.Errorf("string cannot end in a NUL byte")
	}
	raw := make([]byte, c.Size)
	copy(raw, s)
	return raw, nil
}

// String creates a field holding a string of up to size bytes.
func String(size int, opts ...field.Option) (*field.Field, error) {
	return field.New(size, append([]field.Option{field.WithCodec(StringCodec{Size: size})}, opts...)...)
}

// Bytes creates a field holding exactly size raw bytes. Values are []byte.
func Bytes(size int, opts ...field.Option) (*field.Field, error) {
	return field.New(size, opts...)
}

func parseBool(s string) (any, error) {
	return strconv.ParseBool(s)
}

func parseString(s string) (any, error) {
	return s, nil
}

// parseHex parses hex digits, with or without a 0x prefix, into []byte.
func parseHex(s string) (any, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
