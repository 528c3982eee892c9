// Package weakref wraps runtime weak pointers behind a type-erased handle so a
// ledger can observe instances of any type without keeping them alive.
package weakref

import "weak"

// Ref observes an object without extending its lifetime.
type Ref interface {
	// Value returns the live object, or nil once it has been reclaimed.
	Value() any
	Alive() bool
	// Identity is comparable and stays stable after the object is reclaimed.
	Identity() any
}

type pointer[T any] struct {
	wp weak.Pointer[T]
}

func Make[T any](p *T) Ref {
	return pointer[T]{wp: weak.Make(p)}
}

func (p pointer[T]) Value() any {
	v := p.wp.Value()
	if v == nil {
		return nil
	}
	return v
}

func (p pointer[T]) Alive() bool {
	return p.wp.Value() != nil
}

func (p pointer[T]) Identity() any {
	return p.wp
}
