package structs

import (
	"io"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/field"
)

// entry is the cache slot of one field.
type entry struct {
	cached bool
	// fromStream is set when raw was read from the bound stream rather than given to Set().
	fromStream bool
	raw        []byte
	value      any
}

// owns reports if f is a field of this Struct's Map.
func (s *Struct) owns(f *field.Field) bool {
	i := f.Index()
	return f.Bound() && i >= 0 && i < s.mapping.Len() && s.mapping.Field(i) == f
}

// Entry implements field.Instance.Entry().
func (s *Struct) Entry(f *field.Field) (raw []byte, v any, ok bool) {
	if !s.owns(f) {
		return nil, nil, false
	}
	e := s.entries[f.Index()]
	return e.raw, e.value, e.cached
}

// Store implements field.Instance.Store().
func (s *Struct) Store(f *field.Field, raw []byte, v any, fromStream bool) {
	if !s.owns(f) {
		return
	}
	s.entries[f.Index()] = entry{cached: true, fromStream: fromStream, raw: raw, value: v}
}

// Stream implements field.Instance.Stream().
func (s *Struct) Stream() io.ReadSeeker {
	return s.r
}

// OffsetOf implements field.Instance.OffsetOf(). A field bound after a dynamic field starts where
// the field before it ends in the stream.
func (s *Struct) OffsetOf(f *field.Field) (int64, error) {
	if !f.Chained() {
		return f.Offset(), nil
	}
	if !s.owns(f) {
		return 0, errors.E(context.Background(), errors.CatUser, errors.TypeParameter, errors.New("field is not part of this record"))
	}
	if f.Index() == 0 {
		return 0, nil
	}
	return s.streamEnd(f.Index() - 1)
}

// streamEnd returns where field i ends in the bound stream. A dynamic field that has not been read
// from the stream is read here, but not cached as a value.
func (s *Struct) streamEnd(i int) (int64, error) {
	if s.streamEnds[i] >= 0 {
		return s.streamEnds[i], nil
	}

	f := s.mapping.Field(i)
	at, err := s.OffsetOf(f)
	if err != nil {
		return 0, err
	}

	var end int64
	switch e := s.entries[i]; {
	case f.Size() != field.Dynamic:
		end = at + int64(f.Size())
	case e.cached && e.fromStream:
		end = at + int64(len(e.raw))
	default:
		if s.r == nil {
			return 0, errors.EndOfStream(context.Background(), field.Dynamic, 0)
		}
		raw, err := f.SeekAndRead(s.r, at)
		if err != nil {
			return 0, err
		}
		end = at + int64(len(raw))
	}
	s.streamEnds[i] = end
	return end, nil
}
