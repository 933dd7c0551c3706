package decl

import (
	"fmt"
)

// References to values
type Ref[T any] struct {
	Value T
}

// Env[T] is a scoped symbol table.  Lookups fall through to the outer environment; names
// are remembered in the order they were first defined.
type Env[T any] struct {
	store map[string]*Ref[T]
	order []string
	outer *Env[T]
}

// NewEnv[T] creates a new environment nested within an outer one.
// If outer is nil then returns a fresh top-level environment.
func NewEnv[T any](outer *Env[T]) *Env[T] {
	return &Env[T]{store: make(map[string]*Ref[T]), outer: outer}
}

// GetRef retrieves a value by name.  It checks the current environment first,
// then recursively checks outer environments.
func (e *Env[T]) GetRef(name string) *Ref[T] {
	ref, ok := e.store[name]
	if (!ok || ref == nil) && e.outer != nil {
		ref = e.outer.GetRef(name)
	}
	return ref
}

func (e *Env[T]) Get(name string) (out T, found bool) {
	ref := e.GetRef(name)
	if ref != nil {
		out = ref.Value
		found = true
	}
	return
}

// GetLocal looks only in this environment.
func (e *Env[T]) GetLocal(name string) (out T, found bool) {
	if ref, ok := e.store[name]; ok && ref != nil {
		return ref.Value, true
	}
	return
}

// Set creates or replaces a local binding.
func (e *Env[T]) Set(key string, value T) {
	if _, ok := e.store[key]; !ok {
		e.order = append(e.order, key)
	}
	e.store[key] = &Ref[T]{Value: value}
}

// Define binds key only if it is not already bound locally.  Returns false on a collision.
func (e *Env[T]) Define(key string, value T) bool {
	if _, ok := e.store[key]; ok {
		return false
	}
	e.Set(key, value)
	return true
}

// Set multiple key/values at once.
func (e *Env[T]) SetMany(kvpairs map[string]T) {
	for k, v := range kvpairs {
		e.Set(k, v)
	}
}

// Push returns a new child scope.
func (e *Env[T]) Push() *Env[T] {
	return NewEnv(e)
}

// Outer returns the enclosing scope or nil.
func (e *Env[T]) Outer() *Env[T] { return e.outer }

// String representation for debugging
func (e *Env[T]) String() string {
	return fmt.Sprintf("Env[T]{store: %v, outer: %v}", e.order, e.outer != nil)
}

// Keys returns all keys in this environment in definition order (not including outer environments)
func (e *Env[T]) Keys() []string {
	return append([]string(nil), e.order...)
}

// All returns all key-value pairs in this environment (not including outer environments)
func (e *Env[T]) All() map[string]T {
	result := make(map[string]T)
	for k, ref := range e.store {
		if ref != nil {
			result[k] = ref.Value
		}
	}
	return result
}
