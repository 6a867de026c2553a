// Package registry is the concurrent name-keyed store behind the tool,
// callback, agent and validator registries.
package registry

import (
	"slices"

	"github.com/alphadose/haxmap"
	"github.com/aparry3/gymtext-sub007/api"
)

type Registry[T any] interface {
	// Register adds value under name, failing when the name is taken.
	Register(name string, value T) error
	// Replace adds or overwrites the value under name.
	Replace(name string, value T)
	Get(name string) (T, bool)
	Has(name string) bool
	// Names lists registered names in sorted order.
	Names() []string
	Len() int
}

type registry[T any] struct {
	kind   string
	values *haxmap.Map[string, T]
}

// New creates an empty registry. kind names the registered things in errors,
// e.g. "tool" or "agent".
func New[T any](kind string) Registry[T] {
	return &registry[T]{
		kind:   kind,
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Register(name string, value T) error {
	if name == "" {
		return &api.ConfigurationError{Kind: r.kind, Name: name, Reason: "name is required"}
	}
	if _, loaded := r.values.GetOrSet(name, value); loaded {
		return &api.ConfigurationError{Kind: r.kind, Name: name, Reason: "already registered"}
	}
	return nil
}

func (r *registry[T]) Replace(name string, value T) {
	r.values.Set(name, value)
}

func (r *registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

func (r *registry[T]) Has(name string) bool {
	_, ok := r.values.Get(name)
	return ok
}

func (r *registry[T]) Names() []string {
	names := make([]string, 0, r.values.Len())
	r.values.ForEach(func(k string, _ T) bool {
		names = append(names, k)
		return true
	})
	slices.Sort(names)
	return names
}

func (r *registry[T]) Len() int {
	return int(r.values.Len())
}
