// Package recfile reads and writes single records to files. Files are accessed through gopherfs
// filesystems, the local disk by default, and may be compressed.
package recfile

import (
	"fmt"
	"io/fs"

	gfs "github.com/gopherfs/fs"
	osfs "github.com/gopherfs/fs/io/os"
	"github.com/gostdlib/base/context"
	"go.uber.org/zap"

	"github.com/bearlytools/binrec/compress"
	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/internal/log"
	"github.com/bearlytools/binrec/mapping"
	"github.com/bearlytools/binrec/structs"
	"github.com/bearlytools/binrec/telemetry"
)

// FS is a filesystem records can be read from and written to.
type FS interface {
	fs.ReadFileFS
	gfs.Writer
}

type options struct {
	fs          FS
	compression compress.Type
	eager       bool
	obs         *telemetry.Observer
	perm        fs.FileMode
}

// Option is an optional argument to Read() and Write().
type Option func(o *options)

// WithFS uses fsys instead of the local disk.
func WithFS(fsys FS) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithCompression sets the compression of the file.
func WithCompression(t compress.Type) Option {
	return func(o *options) {
		o.compression = t
	}
}

// WithEager sets if Read() reads every field immediately (the default) or when first accessed.
func WithEager(eager bool) Option {
	return func(o *options) {
		o.eager = eager
	}
}

// WithObserver records traces and metrics to obs.
func WithObserver(obs *telemetry.Observer) Option {
	return func(o *options) {
		o.obs = obs
	}
}

// WithPerm sets the permissions of files created by Write(). The default is 0600.
func WithPerm(perm fs.FileMode) Option {
	return func(o *options) {
		o.perm = perm
	}
}

func newOptions(ctx context.Context, opts []Option) (options, error) {
	o := options{eager: true, perm: 0600}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		fsys, err := osfs.New()
		if err != nil {
			return o, errors.E(ctx, errors.CatInternal, errors.TypeFS, fmt.Errorf("could not create an osfs: %w", err))
		}
		o.fs = fsys
	}
	return o, nil
}

// Read loads a record laid out by m from the file at path.
func Read(ctx context.Context, m *mapping.Map, path string, opts ...Option) (*structs.Struct, error) {
	o, err := newOptions(ctx, opts)
	if err != nil {
		return nil, err
	}

	b, err := o.fs.ReadFile(path)
	if err != nil {
		return nil, errors.E(ctx, errors.CatUser, errors.TypeFS, fmt.Errorf("could not read record file %q: %w", path, err))
	}
	log.Logger().Debug("record file read", zap.String("path", path), zap.Int("bytes", len(b)))

	return structs.LoadBytes(
		ctx, m, b,
		structs.WithEager(o.eager),
		structs.WithCompression(o.compression),
		structs.WithObserver(o.obs),
	)
}

// Write dumps s to the file at path, replacing it if it exists.
func Write(ctx context.Context, s *structs.Struct, path string, opts ...Option) error {
	o, err := newOptions(ctx, opts)
	if err != nil {
		return err
	}

	b, err := s.DumpBytes(ctx, structs.WithDumpCompression(o.compression))
	if err != nil {
		return err
	}
	if err := o.fs.WriteFile(path, b, o.perm); err != nil {
		return errors.E(ctx, errors.CatUser, errors.TypeFS, fmt.Errorf("could not write record file %q: %w", path, err))
	}
	log.Logger().Debug("record file written", zap.String("path", path), zap.Int("bytes", len(b)))
	return nil
}
