// Package models routes model ids to the provider that serves them.
package models

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aparry3/gymtext-sub007/api"
	"github.com/aparry3/gymtext-sub007/provider"
)

var _ provider.Provider = (*Router)(nil)

type route struct {
	prefix   string
	provider provider.Provider
}

// Router is a Provider that dispatches each request by the longest matching
// model id prefix, e.g. "gpt-" to OpenAI and "claude-" to Anthropic.
type Router struct {
	mu     sync.RWMutex
	routes []route
}

func NewRouter() *Router {
	return &Router{}
}

// Add routes model ids starting with prefix to p, replacing any existing
// route for the same prefix.
func (r *Router) Add(prefix string, p provider.Provider) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = slices.DeleteFunc(r.routes, func(rt route) bool { return rt.prefix == prefix })
	r.routes = append(r.routes, route{prefix: prefix, provider: p})
	slices.SortFunc(r.routes, func(a, b route) int { return len(b.prefix) - len(a.prefix) })
	return r
}

// Get returns the provider for a model id.
func (r *Router) Get(model string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if strings.HasPrefix(model, rt.prefix) {
			return rt.provider, true
		}
	}
	return nil, false
}

func (r *Router) ChatCompletion(ctx context.Context, params provider.CompletionParams) (provider.Completion, error) {
	p, ok := r.Get(params.Model)
	if !ok {
		return provider.Completion{}, &api.ConfigurationError{
			Kind:   "model",
			Name:   params.Model,
			Reason: fmt.Sprintf("no provider serves this model id (known prefixes: %s)", strings.Join(r.prefixes(), ", ")),
		}
	}
	return p.ChatCompletion(ctx, params)
}

func (r *Router) prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.prefix
	}
	slices.Sort(out)
	return out
}
