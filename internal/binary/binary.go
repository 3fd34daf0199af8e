// Package binary replaces the encoding/binary package in the standard library for fixed width
// integer encoding using generics. Both byte orders are supported so record layouts can describe
// either.
package binary

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/constraints"
)

// Order is the byte order of an encoded integer.
type Order uint8

const (
	// LittleEndian stores the least significant byte first.
	LittleEndian Order = 0
	// BigEndian stores the most significant byte first.
	BigEndian Order = 1
)

func (o Order) String() string {
	if o == BigEndian {
		return "big"
	}
	return "little"
}

func (o Order) enc() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Width returns the number of bytes needed to store a T.
func Width[T constraints.Integer]() int {
	var r T
	switch any(r).(type) {
	case int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32:
		return 4
	case int64, uint64:
		return 8
	}
	panic(fmt.Sprintf("unsupported type that passed the type constraint %T", r))
}

// Get gets any integer size from a []byte slice. b must be at least Width[T]() long.
func Get[T constraints.Integer](o Order, b []byte) T {
	_ = b[len(b)-1] // bounds check hint to compiler; see golang.org/issue/14808

	e := o.enc()
	var r T // This is only used for type detection.
	switch any(r).(type) {
	case int8:
		return T(int8(b[0]))
	case int16:
		return T(int16(e.Uint16(b)))
	case int32:
		return T(int32(e.Uint32(b)))
	case int64:
		return T(int64(e.Uint64(b)))
	case uint8:
		return T(b[0])
	case uint16:
		return T(e.Uint16(b))
	case uint32:
		return T(e.Uint32(b))
	case uint64:
		return T(e.Uint64(b))
	}
	panic(fmt.Sprintf("unsupported type that passed the type constraint %T", r))
}

// Put puts any integer size into a []byte slice. b must be at least Width[T]() long.
func Put[T constraints.Integer](o Order, b []byte, v T) {
	e := o.enc()
	switch any(v).(type) {
	case int8, uint8:
		b[0] = byte(v)
	case int16, uint16:
		e.PutUint16(b, uint16(v))
	case int32, uint32:
		e.PutUint32(b, uint32(v))
	default:
		e.PutUint64(b, uint64(v))
	}
}

// Bytes returns v encoded in a new slice of Width[T]() bytes.
func Bytes[T constraints.Integer](o Order, v T) []byte {
	b := make([]byte, Width[T]())
	Put(o, b, v)
	return b
}
