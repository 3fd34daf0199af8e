package structs

import (
	"bytes"

	"github.com/gostdlib/base/concurrency/sync"
	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/values/sizes"
)

// readers back LoadBytes(). A reader stays with its Struct until Release().
var readers = sync.NewPool[*bytes.Reader](
	context.Background(),
	"structs.readers",
	func() *bytes.Reader {
		return &bytes.Reader{}
	},
)

var buffers = &bufferPool{
	pool: sync.NewPool[*bytes.Buffer](
		context.Background(),
		"structs.buffers",
		func() *bytes.Buffer {
			b := &bytes.Buffer{}
			b.Grow(256)
			return b
		},
	),
}

type bufferPool struct {
	pool *sync.Pool[*bytes.Buffer]
}

func (p *bufferPool) get(ctx context.Context) *bytes.Buffer {
	return p.pool.Get(ctx)
}

func (p *bufferPool) put(ctx context.Context, b *bytes.Buffer) {
	if b.Cap() > 10*sizes.MiB {
		return
	}
	b.Reset()
	p.pool.Put(ctx, b)
}
