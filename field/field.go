// Package field holds the Field descriptor, which describes one named slot in a binary record.
// A Field knows its size, where it sits in the record and how to turn the raw bytes found there
// into a decoded value and back again. Fields are bound into a schema (see package mapping) once
// and then shared by every instance of that schema.
package field

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/binrec/errors"
)

// Dynamic is the Size of a Field that determines its own length when it is read.
const Dynamic = -1

// Codec converts between the raw bytes of a Field and a typed value. Concrete field types in
// package codec implement this.
type Codec interface {
	// Decode converts raw bytes into a value.
	Decode(raw []byte) (any, error)
	// Encode converts a value into raw bytes.
	Encode(v any) ([]byte, error)
}

// Reader is the read strategy of a Field with a Dynamic size. The stream is already positioned
// at the start of the field. ReadRaw must return exactly the bytes that make up the field,
// including any length prefix or terminator, so the record can be written back unchanged.
// Returning io.EOF or io.ErrUnexpectedEOF signals that the stream ran out of data.
type Reader interface {
	ReadRaw(r io.Reader) ([]byte, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(r io.Reader) ([]byte, error)

// ReadRaw implements Reader.
func (f ReaderFunc) ReadRaw(r io.Reader) ([]byte, error) {
	return f(r)
}

// Registry is the ordered field registry of a schema that is being built. It is implemented by
// mapping.Builder.
type Registry interface {
	// Register adds f under name and returns its position in the registry.
	Register(name string, f *Field) (int, error)
	// RunningSize is the offset the next Field without an explicit offset starts at.
	RunningSize() int64
	// Advance moves the running size to end if end is larger than the running size.
	Advance(end int64)
	// MarkDynamic records that a Field with a Dynamic size has been bound.
	MarkDynamic()
	// Dynamic reports if MarkDynamic() has been called.
	Dynamic() bool
}

// Instance is a record value that caches field values. It is implemented by structs.Struct.
type Instance interface {
	// Entry returns the cached raw bytes and decoded value for f. ok is false if f has not
	// been materialized.
	Entry(f *Field) (raw []byte, v any, ok bool)
	// Store caches the raw bytes and decoded value for f. fromStream is true when raw was read
	// from the bound stream, false when it came from Set().
	Store(f *Field, raw []byte, v any, fromStream bool)
	// Stream returns the stream the instance is bound to or nil.
	Stream() io.ReadSeeker
	// OffsetOf returns the absolute offset of f in the bound stream.
	OffsetOf(f *Field) (int64, error)
}

// optional holds a value that may not have been provided.
type optional struct {
	v  any
	ok bool
}

// Field describes one named slot in a record. Create with New().
type Field struct {
	name  string
	label string
	size  int
	index int

	offset    int64
	offsetSet bool
	// chained is set when the Field follows a Dynamic Field and has no explicit offset. Its
	// offset must be resolved for each instance.
	chained bool
	bound   bool

	vm     *valueMap
	def    optional
	codec  Codec
	reader Reader
}

// Option is an optional argument to New().
type Option func(f *Field) error

// WithOffset sets an explicit offset instead of the running size of the schema.
func WithOffset(offset int64) Option {
	return func(f *Field) error {
		if offset < 0 {
			return fmt.Errorf("offset cannot be negative, was %d", offset)
		}
		f.offset = offset
		f.offsetSet = true
		return nil
	}
}

// WithLabel sets the human readable name. It defaults to the field name with "_" replaced
// by spaces.
func WithLabel(label string) Option {
	return func(f *Field) error {
		f.label = label
		return nil
	}
}

// WithDefault sets the value Get() returns when the stream ends before the field. Any value,
// including nil, is a valid default.
func WithDefault(v any) Option {
	return func(f *Field) error {
		f.def = optional{v: v, ok: true}
		return nil
	}
}

// WithCodec sets the Codec used to interpret raw bytes when no value map is set.
func WithCodec(c Codec) Option {
	return func(f *Field) error {
		if c == nil {
			return fmt.Errorf("WithCodec(nil) is not allowed")
		}
		f.codec = c
		return nil
	}
}

// WithReader sets the read strategy for a Field with a Dynamic size.
func WithReader(r Reader) Option {
	return func(f *Field) error {
		if r == nil {
			return fmt.Errorf("WithReader(nil) is not allowed")
		}
		f.reader = r
		return nil
	}
}

// WithValueMap maps raw bytes to presentation values. The mapping must be a bijection: every raw
// key and every value may appear only once and values must be comparable.
func WithValueMap(pairs ...Pair) Option {
	return func(f *Field) error {
		vm, err := newValueMap(pairs)
		if err != nil {
			return err
		}
		f.vm = vm
		return nil
	}
}

// New creates a new Field that is size bytes long. size may be Dynamic if WithReader() is passed.
func New(size int, options ...Option) (*Field, error) {
	ctx := context.Background()

	if size < 0 && size != Dynamic {
		return nil, errors.Schema(ctx, "field size cannot be %d", size)
	}
	f := &Field{size: size, index: -1}
	for _, o := range options {
		if err := o(f); err != nil {
			return nil, errors.Schema(ctx, "%s", err)
		}
	}

	if size == Dynamic && f.reader == nil {
		return nil, errors.Schema(ctx, "a field with a dynamic size must have a Reader")
	}
	if f.vm != nil && size != Dynamic {
		for _, p := range f.vm.pairs {
			if len(p.Raw) != size {
				return nil, errors.Schema(ctx, "value map key %#v is %d bytes, field size is %d", p.Raw, len(p.Raw), size)
			}
		}
	}
	return f, nil
}

// MustNew is like New() but panics on error. Use it for package level schema declarations.
func MustNew(size int, options ...Option) *Field {
	f, err := New(size, options...)
	if err != nil {
		panic(err)
	}
	return f
}

// Name is the name the Field was bound with.
func (f *Field) Name() string {
	return f.name
}

// Label is the human readable name of the Field.
func (f *Field) Label() string {
	return f.label
}

// Size is the length of the raw bytes or Dynamic.
func (f *Field) Size() int {
	return f.size
}

// Offset is the offset of the Field inside the record. If Chained() is true, this is only the
// smallest offset the Field can have.
func (f *Field) Offset() int64 {
	return f.offset
}

// Chained reports if the offset of the Field depends on the length of an earlier Dynamic Field.
func (f *Field) Chained() bool {
	return f.chained
}

// Index is the position of the Field in its schema, -1 if not bound.
func (f *Field) Index() int {
	return f.index
}

// Bound reports if Bind() has been called successfully.
func (f *Field) Bound() bool {
	return f.bound
}

// Default returns the default value and if one was provided.
func (f *Field) Default() (any, bool) {
	return f.def.v, f.def.ok
}

// HasValueMap reports if the Field maps raw values to presentation values.
func (f *Field) HasValueMap() bool {
	return f.vm != nil
}

// Pairs returns a copy of the value map in declaration order.
func (f *Field) Pairs() []Pair {
	if f.vm == nil {
		return nil
	}
	out := make([]Pair, len(f.vm.pairs))
	copy(out, f.vm.pairs)
	return out
}

// Bind names the Field and registers it with reg. It assigns the offset from the running size of
// reg unless an explicit offset was given and then advances the running size past the Field.
// A Field can only be bound once.
func (f *Field) Bind(name string, reg Registry) error {
	ctx := context.Background()

	if f.bound {
		return errors.Schema(ctx, "field %q is already bound as %q", name, f.name)
	}
	if name == "" {
		return errors.Schema(ctx, "field name cannot be empty")
	}

	i, err := reg.Register(name, f)
	if err != nil {
		return err
	}
	f.index = i
	f.name = name
	if f.label == "" {
		f.label = strings.ReplaceAll(name, "_", " ")
	}

	if !f.offsetSet {
		f.offset = reg.RunningSize()
		f.chained = reg.Dynamic()
	}
	f.bound = true

	if f.size == Dynamic {
		reg.MarkDynamic()
		reg.Advance(f.offset)
		return nil
	}
	reg.Advance(f.offset + int64(f.size))
	return nil
}

// SeekAndRead positions r at the absolute offset at and reads the raw bytes of the Field. If the
// stream does not hold enough data an error wrapping errors.ErrEndOfStream is returned.
func (f *Field) SeekAndRead(r io.ReadSeeker, at int64) ([]byte, error) {
	if _, err := r.Seek(at, io.SeekStart); err != nil {
		return nil, errors.Stream(context.Background(), "seek", err)
	}
	return f.ReadRaw(r)
}

// ReadRaw reads the raw bytes of the Field from the current position of r. Fixed size fields read
// exactly Size() bytes, dynamic fields use their Reader.
func (f *Field) ReadRaw(r io.Reader) ([]byte, error) {
	ctx := context.Background()

	if f.size == Dynamic {
		raw, err := f.reader.ReadRaw(r)
		switch {
		case err == nil:
			return raw, nil
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil, errors.EndOfStream(ctx, Dynamic, len(raw))
		case errors.Is(err, errors.ErrEndOfStream):
			return nil, err
		}
		return nil, errors.Stream(ctx, "read", err)
	}

	buf := make([]byte, f.size)
	n, err := io.ReadFull(r, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, errors.EndOfStream(ctx, f.size, n)
	case err != nil:
		return nil, errors.Stream(ctx, "read", err)
	}
	return buf, nil
}

// Get returns the decoded value of the Field for inst. The first call reads from the stream of
// inst and caches the result, later calls return the cache. If the stream ends before the Field,
// the default is returned when one was set (and nothing is cached), otherwise an error wrapping
// errors.ErrMissingField.
func (f *Field) Get(inst Instance) (any, error) {
	if _, v, ok := inst.Entry(f); ok {
		return v, nil
	}

	raw, err := f.read(inst)
	if err != nil {
		if errors.Is(err, errors.ErrEndOfStream) {
			if f.def.ok {
				return f.def.v, nil
			}
			return nil, errors.MissingField(context.Background(), f.name, err)
		}
		return nil, err
	}

	v, err := f.Decode(raw)
	if err != nil {
		return nil, err
	}
	inst.Store(f, raw, v, true)
	return v, nil
}

func (f *Field) read(inst Instance) ([]byte, error) {
	r := inst.Stream()
	if r == nil {
		return nil, errors.EndOfStream(context.Background(), f.size, 0)
	}
	at, err := inst.OffsetOf(f)
	if err != nil {
		return nil, err
	}
	return f.SeekAndRead(r, at)
}

// Set encodes v and caches the raw bytes and v on inst. No stream I/O happens. If v cannot be
// encoded the cache is left as it was.
func (f *Field) Set(inst Instance, v any) error {
	raw, err := f.Encode(v)
	if err != nil {
		return err
	}
	inst.Store(f, raw, v, false)
	return nil
}

// Decode converts raw bytes into the decoded value. With a value map, raw must be a key of the map.
// Otherwise the Codec is used, and without a Codec a copy of raw is returned.
func (f *Field) Decode(raw []byte) (any, error) {
	ctx := context.Background()

	if f.vm != nil {
		v, ok := f.vm.values[string(raw)]
		if !ok {
			return nil, errors.InvalidValue(ctx, f.name, "%#v is not a valid value", raw)
		}
		return v, nil
	}
	if f.codec != nil {
		v, err := f.codec.Decode(raw)
		if err != nil {
			return nil, errors.InvalidValue(ctx, f.name, "%s", err)
		}
		return v, nil
	}
	return bytes.Clone(raw), nil
}

// Encode is the inverse of Decode().
func (f *Field) Encode(v any) ([]byte, error) {
	ctx := context.Background()

	var raw []byte
	switch {
	case f.vm != nil:
		if !isComparable(v) {
			return nil, errors.InvalidValue(ctx, f.name, "%T is not a valid value", v)
		}
		r, ok := f.vm.raws[v]
		if !ok {
			return nil, errors.InvalidValue(ctx, f.name, "%v is not a valid value", v)
		}
		return []byte(r), nil
	case f.codec != nil:
		var err error
		raw, err = f.codec.Encode(v)
		if err != nil {
			return nil, errors.InvalidValue(ctx, f.name, "%s", err)
		}
	default:
		b, ok := v.([]byte)
		if !ok {
			return nil, errors.InvalidValue(ctx, f.name, "want []byte, got %T", v)
		}
		raw = bytes.Clone(b)
	}

	if f.size != Dynamic && len(raw) != f.size {
		return nil, errors.InvalidValue(ctx, f.name, "encoded to %d bytes, field size is %d", len(raw), f.size)
	}
	return raw, nil
}

func (f *Field) String() string {
	if f.name == "" {
		return "<Field>"
	}
	return fmt.Sprintf("<%s: Field>", f.name)
}

// isComparable reports if v can be used as a map key. Arrays and structs holding interfaces are
// checked by their contents.
func isComparable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).Comparable()
}
