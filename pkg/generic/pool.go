package generic

import "sync"

// Pool is a typed sync.Pool. Values are reset on Get and may be refused on
// Put.
type Pool[T any] struct {
	pool    sync.Pool
	reset   func(T)
	discard func(T) bool
}

type PoolOption[T any] func(*Pool[T])

// WithReset runs fn on every value handed out by Get.
func WithReset[T any](fn func(T)) PoolOption[T] {
	return func(p *Pool[T]) { p.reset = fn }
}

// WithDiscard drops values for which fn reports true instead of pooling them.
func WithDiscard[T any](fn func(T) bool) PoolOption[T] {
	return func(p *Pool[T]) { p.discard = fn }
}

func NewPool[T any](generate func() T, opts ...PoolOption[T]) *Pool[T] {
	p := &Pool[T]{}
	p.pool.New = func() any { return generate() }
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool[T]) Get() T {
	v := p.pool.Get().(T)
	if p.reset != nil {
		p.reset(v)
	}
	return v
}

func (p *Pool[T]) Put(v T) {
	if p.discard != nil && p.discard(v) {
		return
	}
	p.pool.Put(v)
}
