// Package compress compresses whole record buffers, the output of structs.DumpBytes() and the
// input of structs.LoadBytes(). Records are small and dumped in one piece, so every algorithm
// works on complete buffers rather than streams.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Type is a compression algorithm.
type Type uint8

const (
	// None leaves records as they are.
	None Type = 0
	// Gzip is RFC 1952 gzip.
	Gzip Type = 1
	// Snappy is the snappy block format, not the framed stream format.
	Snappy Type = 2
	// Zstd is a single Zstandard frame.
	Zstd Type = 3
)

// Func transforms a complete record buffer.
type Func func(b []byte) ([]byte, error)

type algorithm struct {
	name   string
	pack   Func
	unpack Func
	// builtin algorithms cannot be replaced with Register().
	builtin bool
}

var (
	mu         sync.RWMutex
	algorithms = map[Type]algorithm{
		None:   {name: "none", pack: keep, unpack: keep, builtin: true},
		Gzip:   {name: "gzip", pack: gzipPack, unpack: gzipUnpack, builtin: true},
		Snappy: {name: "snappy", pack: snappyPack, unpack: snappy.Decode, builtin: true},
		Zstd:   {name: "zstd", pack: zstdPack, unpack: zstdUnpack, builtin: true},
	}
)

// Register adds an algorithm for t that Parse() accepts as name. The builtin Types cannot be
// replaced and names must be unique.
func Register(t Type, name string, pack, unpack Func) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || pack == nil || unpack == nil {
		return fmt.Errorf("compress.Register(%d): name, pack and unpack are required", t)
	}

	mu.Lock()
	defer mu.Unlock()

	if a, ok := algorithms[t]; ok && a.builtin {
		return fmt.Errorf("compress.Register(%d): %s is builtin", t, a.name)
	}
	for other, a := range algorithms {
		if a.name == name && other != t {
			return fmt.Errorf("compress.Register(%d): name %q is used by Type(%d)", t, name, other)
		}
	}
	algorithms[t] = algorithm{name: name, pack: pack, unpack: unpack}
	return nil
}

func lookup(t Type) (algorithm, bool) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := algorithms[t]
	return a, ok
}

func (t Type) String() string {
	if a, ok := lookup(t); ok {
		return a.name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Parse returns the Type with the name s, as used in config files and flags. An empty string
// is None.
func Parse(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return None, nil
	}

	mu.RLock()
	defer mu.RUnlock()
	for t, a := range algorithms {
		if a.name == s {
			return t, nil
		}
	}
	return None, fmt.Errorf("unknown compression %q", s)
}

// Compress packs a dumped record with t.
func Compress(t Type, record []byte) ([]byte, error) {
	a, ok := lookup(t)
	if !ok {
		return nil, fmt.Errorf("no compression algorithm for %s", t)
	}
	out, err := a.pack(record)
	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", a.name, err)
	}
	return out, nil
}

// Decompress unpacks data that Compress() packed with t.
func Decompress(t Type, data []byte) ([]byte, error) {
	a, ok := lookup(t)
	if !ok {
		return nil, fmt.Errorf("no compression algorithm for %s", t)
	}
	out, err := a.unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", a.name, err)
	}
	return out, nil
}

func keep(b []byte) ([]byte, error) {
	return b, nil
}

var gzipWriters = sync.NewPool[*gzip.Writer](
	context.Background(),
	"compress.gzipWriters",
	func() *gzip.Writer {
		return gzip.NewWriter(io.Discard)
	},
)

func gzipPack(record []byte) ([]byte, error) {
	ctx := context.Background()

	buf := bytes.NewBuffer(make([]byte, 0, len(record)/2+32))
	w := gzipWriters.Get(ctx)
	defer gzipWriters.Put(ctx, w)

	w.Reset(buf)
	if _, err := w.Write(record); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipUnpack(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func snappyPack(record []byte) ([]byte, error) {
	return snappy.Encode(nil, record), nil
}

// The zstd encoder and decoder are safe for concurrent EncodeAll() and DecodeAll() calls.
var (
	zstdEnc = mustZstd(zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1)))
	zstdDec = mustZstd(zstd.NewReader(nil, zstd.WithDecoderConcurrency(0)))
)

func mustZstd[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("compress: zstd setup failed: %s", err))
	}
	return v
}

func zstdPack(record []byte) ([]byte, error) {
	return zstdEnc.EncodeAll(record, make([]byte, 0, len(record)/2+16)), nil
}

func zstdUnpack(data []byte) ([]byte, error) {
	return zstdDec.DecodeAll(data, nil)
}
