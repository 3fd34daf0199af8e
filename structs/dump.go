package structs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gostdlib/base/context"
	"go.uber.org/zap"

	"github.com/bearlytools/binrec/compress"
	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/internal/log"
)

type dumpOptions struct {
	compression compress.Type
}

// DumpOption is an optional argument to DumpBytes().
type DumpOption func(o *dumpOptions)

// WithDumpCompression compresses the output of DumpBytes() with t.
func WithDumpCompression(t compress.Type) DumpOption {
	return func(o *dumpOptions) {
		o.compression = t
	}
}

// Dump writes every field's raw bytes to w in declaration order, each at its offset relative to
// where w is positioned when Dump() is called. Gaps between fields are zero filled. A field whose
// offset lies before data that was already written requires w to be an io.WriteSeeker. Every field
// must have been read or set, otherwise an error wrapping errors.ErrMissingField is returned and
// some bytes may have been written.
func (s *Struct) Dump(ctx context.Context, w io.Writer) error {
	ctx, done := s.obs.StartDump(ctx, s.mapping.Name)
	n, err := s.dump(ctx, w)
	done(n, err)
	if err != nil {
		return err
	}
	log.Logger().Debug("record dumped", zap.String("record", s.mapping.Name), zap.Int64("bytes", n))
	return nil
}

// dump returns the size of the written record.
func (s *Struct) dump(ctx context.Context, w io.Writer) (int64, error) {
	ws, seekable := w.(io.WriteSeeker)

	var start int64
	if seekable {
		var err error
		start, err = ws.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, errors.Stream(ctx, "seek", err)
		}
	}

	// pos is the position of w relative to start, end is where the record written so far ends.
	var pos, end int64
	for i, f := range s.mapping.All() {
		e := s.entries[i]
		if !e.cached {
			return end, errors.MissingField(ctx, f.Name(), nil)
		}

		at := pos
		if !f.Chained() {
			at = f.Offset()
		}

		switch {
		case at == pos:
		case at >= end:
			if pos != end {
				if _, err := ws.Seek(start+end, io.SeekStart); err != nil {
					return end, errors.Stream(ctx, "seek", err)
				}
			}
			if at > end {
				if _, err := w.Write(make([]byte, at-end)); err != nil {
					return end, errors.Stream(ctx, "write", err)
				}
			}
		case seekable:
			if _, err := ws.Seek(start+at, io.SeekStart); err != nil {
				return end, errors.Stream(ctx, "seek", err)
			}
		default:
			return end, errors.Schema(
				ctx,
				"record %q: field %q at offset %d overlaps data already written up to offset %d, dumping it requires an io.WriteSeeker",
				s.mapping.Name, f.Name(), at, pos,
			)
		}

		n, err := w.Write(e.raw)
		if err != nil {
			return end, errors.Stream(ctx, "write", err)
		}
		pos = at + int64(n)
		if pos > end {
			end = pos
		}
	}

	if seekable && pos != end {
		if _, err := ws.Seek(start+end, io.SeekStart); err != nil {
			return end, errors.Stream(ctx, "seek", err)
		}
	}
	return end, nil
}

// DumpBytes is Dump() into a new byte slice.
func (s *Struct) DumpBytes(ctx context.Context, opts ...DumpOption) ([]byte, error) {
	o := dumpOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	buf := buffers.get(ctx)
	defer buffers.put(ctx, buf)

	// bytes.Buffer cannot seek, so records with overlapping fields are assembled in a seekable buffer.
	var err error
	if s.overlaps() {
		sb := &seekBuffer{}
		err = s.Dump(ctx, sb)
		buf.Write(sb.b)
	} else {
		err = s.Dump(ctx, buf)
	}
	if err != nil {
		return nil, err
	}

	if o.compression != compress.None {
		out, err := compress.Compress(o.compression, buf.Bytes())
		if err != nil {
			return nil, errors.E(ctx, errors.CatUser, errors.TypeParameter, fmt.Errorf("could not compress record with %s: %w", o.compression, err))
		}
		return out, nil
	}
	return bytes.Clone(buf.Bytes()), nil
}

// overlaps reports if dump() will need to seek back over data it already wrote. Offsets after
// a dynamic field and the length of dynamic fields come from the cached raw bytes.
func (s *Struct) overlaps() bool {
	var pos, end int64
	for i, f := range s.mapping.All() {
		at := pos
		if !f.Chained() {
			at = f.Offset()
		}
		if at < end {
			return true
		}
		pos = at + int64(len(s.entries[i].raw))
		end = pos
	}
	return false
}

// seekBuffer is an in-memory io.WriteSeeker.
type seekBuffer struct {
	b   []byte
	pos int64
}

func (sb *seekBuffer) Write(p []byte) (int, error) {
	end := sb.pos + int64(len(p))
	if end > int64(len(sb.b)) {
		sb.b = append(sb.b, make([]byte, end-int64(len(sb.b)))...)
	}
	copy(sb.b[sb.pos:], p)
	sb.pos = end
	return len(p), nil
}

func (sb *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = sb.pos + offset
	case io.SeekEnd:
		abs = int64(len(sb.b)) + offset
	default:
		return 0, errors.New("seekBuffer.Seek: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer.Seek: negative position")
	}
	if abs > int64(len(sb.b)) {
		sb.b = append(sb.b, make([]byte, abs-int64(len(sb.b)))...)
	}
	sb.pos = abs
	return abs, nil
}
