// Package generic holds small type-parameterized utilities shared across
// the module.
package generic

import "sync"

// Pool is a typed wrapper over sync.Pool. The generate function must
// return a value ready for reuse after Put.
type Pool[T any] struct {
	pool sync.Pool
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	p.pool.Put(value)
}
