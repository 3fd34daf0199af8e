// Package codec provides the concrete field types records are built from: integers in either
// byte order, booleans, NUL padded strings, raw bytes, enums, length prefixed bytes and strings,
// and nested records. Each constructor returns a *field.Field that is ready to be added to a
// mapping.Builder.
//
// The types are also registered by name so layout files can refer to them (see package idl).
package codec

import (
	"fmt"
	"sort"

	"github.com/gostdlib/base/concurrency/sync"

	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/internal/binary"
)

// Order is the byte order of a multi-byte value.
type Order = binary.Order

const (
	LittleEndian = binary.LittleEndian
	BigEndian    = binary.BigEndian
)

// Type is a field type that can be referred to by name.
type Type struct {
	// Name is the name of the type in layout files.
	Name string
	// Sized is set for types that take a byte size argument, such as "bytes 4".
	Sized bool
	// New creates a field of the type. size is only used when Sized is set.
	New func(size int, opts ...field.Option) (*field.Field, error)
	// Parse converts a literal from a layout file into a value of the type. It is used for
	// defaults and the keys of value maps.
	Parse func(s string) (any, error)
}

var (
	typesMu sync.RWMutex
	types   = map[string]Type{}
)

// Register adds t to the named types. Registering a name twice is an error.
func Register(t Type) error {
	if t.Name == "" || t.New == nil || t.Parse == nil {
		return fmt.Errorf("codec.Register(): Type must have Name, New and Parse set")
	}

	typesMu.Lock()
	defer typesMu.Unlock()

	if _, ok := types[t.Name]; ok {
		return fmt.Errorf("codec.Register(): type %q is already registered", t.Name)
	}
	types[t.Name] = t
	return nil
}

// Lookup returns the named type.
func Lookup(name string) (Type, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()

	t, ok := types[name]
	return t, ok
}

// Names returns the sorted names of all registered types.
func Names() []string {
	typesMu.RLock()
	defer typesMu.RUnlock()

	out := make([]string, 0, len(types))
	for name := range types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func mustRegister(t Type) {
	if err := Register(t); err != nil {
		panic(err)
	}
}

func init() {
	registerInts()

	mustRegister(Type{
		Name:  "bool",
		New:   func(_ int, opts ...field.Option) (*field.Field, error) { return Bool(opts...) },
		Parse: parseBool,
	})
	mustRegister(Type{
		Name:  "bytes",
		Sized: true,
		New:   Bytes,
		Parse: parseHex,
	})
	mustRegister(Type{
		Name:  "string",
		Sized: true,
		New:   String,
		Parse: parseString,
	})

	for _, p := range []struct {
		suffix string
		width  int
		order  Order
	}{
		{"8", 1, LittleEndian},
		{"16", 2, LittleEndian},
		{"16be", 2, BigEndian},
	} {
		mustRegister(Type{
			Name: "pbytes" + p.suffix,
			New: func(_ int, opts ...field.Option) (*field.Field, error) {
				return PBytes(p.width, p.order, opts...)
			},
			Parse: parseHex,
		})
		mustRegister(Type{
			Name: "pstring" + p.suffix,
			New: func(_ int, opts ...field.Option) (*field.Field, error) {
				return PString(p.width, p.order, opts...)
			},
			Parse: parseString,
		})
	}
}
