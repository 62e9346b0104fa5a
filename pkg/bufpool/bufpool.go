// Package bufpool contains a pool of reusable byte buffers with explicit ownership.
package bufpool

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/bluenviron/rtspmedia/pkg/liberrors"
)

const (
	defaultMaxBufferSize = 8 * 1024 * 1024
	minClassBits         = 6 // 64 bytes
)

func classOf(size int) int {
	if size <= 1<<minClassBits {
		return 0
	}
	return bits.Len(uint(size-1)) - minClassBits
}

// Pool allows to reuse existing buffers without allocating new ones.
// It can be used by multiple goroutines at once. Each rented Buffer has a
// single owner at a time.
type Pool struct {
	// maximum size of a buffer (optional).
	// It defaults to 8 MiB.
	MaxBufferSize int

	// maximum number of buffers rented at the same time (optional).
	// It defaults to zero, that means no limit.
	MaxRented int

	classes []sync.Pool
	rented  atomic.Int64
}

// Init initializes the Pool.
func (p *Pool) Init() error {
	if p.MaxBufferSize == 0 {
		p.MaxBufferSize = defaultMaxBufferSize
	}

	p.classes = make([]sync.Pool, classOf(p.MaxBufferSize)+1)
	for i := range p.classes {
		size := 1 << (i + minClassBits)
		p.classes[i].New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}

	return nil
}

// Rent returns a buffer of the given size.
// The buffer content is not zeroed.
func (p *Pool) Rent(size int) (*Buffer, error) {
	if size < 0 || size > p.MaxBufferSize {
		return nil, liberrors.ErrBufferPoolExhausted{
			Size:    size,
			MaxSize: p.MaxBufferSize,
		}
	}

	rented := p.rented.Add(1)
	if p.MaxRented != 0 && rented > int64(p.MaxRented) {
		p.rented.Add(-1)
		return nil, liberrors.ErrBufferPoolExhausted{
			Size:      size,
			MaxSize:   p.MaxBufferSize,
			Rented:    int(rented - 1),
			MaxRented: p.MaxRented,
		}
	}

	class := classOf(size)
	mem := p.classes[class].Get().(*[]byte)

	b := &Buffer{
		pool:  p,
		class: class,
		mem:   mem,
		size:  size,
	}
	b.refs.Store(1)

	return b, nil
}

// Rented returns the number of buffers that have not been released yet.
func (p *Pool) Rented() int {
	return int(p.rented.Load())
}

func (p *Pool) put(b *Buffer) {
	p.classes[b.class].Put(b.mem)
	p.rented.Add(-1)
}

// Buffer is a rented buffer.
// It is returned to its Pool when the last holder calls Release().
type Buffer struct {
	pool  *Pool
	class int
	mem   *[]byte
	size  int
	refs  atomic.Int32
}

// Bytes returns the content of the buffer.
// It must not be used after the buffer has been released.
func (b *Buffer) Bytes() []byte {
	return (*b.mem)[:b.size]
}

// Len returns the size of the buffer.
func (b *Buffer) Len() int {
	return b.size
}

// Retain adds a holder to the buffer. Every Retain() must be paired with a Release().
func (b *Buffer) Retain() {
	if b.refs.Add(1) <= 1 {
		panic("bufpool: retain of a released buffer")
	}
}

// Release removes a holder from the buffer.
// When the last holder releases it, the buffer returns to the pool.
func (b *Buffer) Release() {
	n := b.refs.Add(-1)

	switch {
	case n == 0:
		b.pool.put(b)

	case n < 0:
		panic("bufpool: buffer released too many times")
	}
}
