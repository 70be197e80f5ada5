// Package mempool keeps per-pixel scratch buffers for the image stages so
// repeated analyses of same-sized drawings reuse their memory.
package mempool

import "sync"

// Pool hands out []T buffers bucketed by size class.
type Pool[T any] struct {
	classes sync.Map // size class -> *sync.Pool
}

// Shared pools for the image stages.
var (
	Float64 Pool[float64]
	Bool    Pool[bool]
	Uint8   Pool[uint8]
)

// sizeClass rounds n up to a multiple of 1024, with 1024 as the minimum.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func (p *Pool[T]) class(cls int) *sync.Pool {
	v, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return v.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// Get returns a zeroed buffer of length n. Return it with Put when done.
func (p *Pool[T]) Get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, ok := p.class(cls).Get().(*[]T)
	if !ok || cap(*bp) < cls {
		return make([]T, n, cls)
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// Put returns buf to its pool. Nil and foreign-sized slices are dropped.
func (p *Pool[T]) Put(buf []T) {
	if buf == nil || cap(buf) != sizeClass(cap(buf)) {
		return
	}
	buf = buf[:cap(buf)]
	p.class(cap(buf)).Put(&buf)
}
