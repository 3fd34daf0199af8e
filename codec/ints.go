package codec

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"golang.org/x/exp/constraints"

	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/internal/binary"
)

// IntCodec converts between raw bytes and T in byte order Order.
type IntCodec[T constraints.Integer] struct {
	Order Order
}

// Decode implements field.Codec.Decode().
func (c IntCodec[T]) Decode(raw []byte) (any, error) {
	if len(raw) != binary.Width[T]() {
		return nil, fmt.Errorf("need %d bytes for a %T, got %d", binary.Width[T](), *new(T), len(raw))
	}
	return binary.Get[T](c.Order, raw), nil
}

// Encode implements field.Codec.Encode(). Any integer that fits in T is accepted.
func (c IntCodec[T]) Encode(v any) ([]byte, error) {
	t, err := toInt[T](v)
	if err != nil {
		return nil, err
	}
	return binary.Bytes[T](c.Order, t), nil
}

// Int creates a field holding a T. Decoded values are always of type T.
func Int[T constraints.Integer](o Order, opts ...field.Option) (*field.Field, error) {
	return field.New(binary.Width[T](), append([]field.Option{field.WithCodec(IntCodec[T]{Order: o})}, opts...)...)
}

// Enum creates a T field whose raw values are restricted to the keys of values. Reading a raw value
// that is not a key is an error, as is setting a value that is not in values.
func Enum[T constraints.Integer](o Order, values map[T]any, opts ...field.Option) (*field.Field, error) {
	return field.New(binary.Width[T](), append([]field.Option{field.WithValueMap(EnumPairs(o, values)...)}, opts...)...)
}

// EnumPairs converts values into value map pairs, sorted by key.
func EnumPairs[T constraints.Integer](o Order, values map[T]any) []field.Pair {
	keys := make([]T, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	pairs := make([]field.Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, field.P(binary.Bytes[T](o, k), values[k]))
	}
	return pairs
}

// toInt converts any integer type to T, failing if the value does not fit.
func toInt[T constraints.Integer](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		t := T(i)
		if int64(t) != i || (i < 0) != (t < 0) {
			return 0, fmt.Errorf("%d overflows %T", i, t)
		}
		return t, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		t := T(u)
		if uint64(t) != u || t < 0 {
			return 0, fmt.Errorf("%d overflows %T", u, t)
		}
		return t, nil
	}
	return 0, fmt.Errorf("want an integer, got %T", v)
}

func parseInt[T constraints.Integer](s string) (any, error) {
	var zero T
	bits := binary.Width[T]() * 8

	if zero-1 < 0 {
		i, err := strconv.ParseInt(s, 0, bits)
		if err != nil {
			return nil, err
		}
		return T(i), nil
	}
	u, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return nil, err
	}
	return T(u), nil
}

func intType[T constraints.Integer](name string, o Order) Type {
	return Type{
		Name:  name,
		New:   func(_ int, opts ...field.Option) (*field.Field, error) { return Int[T](o, opts...) },
		Parse: parseInt[T],
	}
}

func registerInts() {
	mustRegister(intType[uint8]("uint8", LittleEndian))
	mustRegister(intType[int8]("int8", LittleEndian))

	mustRegister(intType[uint16]("uint16", LittleEndian))
	mustRegister(intType[uint16]("uint16be", BigEndian))
	mustRegister(intType[int16]("int16", LittleEndian))
	mustRegister(intType[int16]("int16be", BigEndian))

	mustRegister(intType[uint32]("uint32", LittleEndian))
	mustRegister(intType[uint32]("uint32be", BigEndian))
	mustRegister(intType[int32]("int32", LittleEndian))
	mustRegister(intType[int32]("int32be", BigEndian))

	mustRegister(intType[uint64]("uint64", LittleEndian))
	mustRegister(intType[uint64]("uint64be", BigEndian))
	mustRegister(intType[int64]("int64", LittleEndian))
	mustRegister(intType[int64]("int64be", BigEndian))
}
