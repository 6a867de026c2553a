package agent

import (
	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/internal/registry"
)

// Registry holds agent definitions by name.
type Registry struct {
	defs registry.Registry[Definition]
}

func NewRegistry() *Registry {
	return &Registry{defs: registry.New[Definition]("agent")}
}

// Register adds def, failing with a ConfigurationError when the name is
// empty or already taken.
func (r *Registry) Register(def Definition) error {
	return r.defs.Register(def.Name, def.clone())
}

// Replace adds or overwrites def.
func (r *Registry) Replace(def Definition) error {
	if def.Name == "" {
		return &api.ConfigurationError{Kind: "agent", Reason: "name is required"}
	}
	r.defs.Replace(def.Name, def.clone())
	return nil
}

func (r *Registry) Has(name string) bool { return r.defs.Has(name) }

// Get returns a copy of the definition registered under name.
func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.defs.Get(name)
	if !ok {
		return Definition{}, false
	}
	return def.clone(), true
}

func (r *Registry) Names() []string { return r.defs.Names() }

// Validators holds named result validators.
type Validators struct {
	fns registry.Registry[Validator]
}

func NewValidators() *Validators {
	return &Validators{fns: registry.New[Validator]("validator")}
}

func (v *Validators) Register(name string, fn Validator) error {
	return v.fns.Register(name, fn)
}

func (v *Validators) Replace(name string, fn Validator) {
	v.fns.Replace(name, fn)
}

func (v *Validators) Has(name string) bool { return v.fns.Has(name) }

func (v *Validators) Get(name string) (Validator, bool) { return v.fns.Get(name) }
