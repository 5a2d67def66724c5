// Package resolver maps ambiguous inputs (DOIs, reference strings, plain
// URLs) to a final downloadable URL through an extensible,
// priority-ordered chain of resolvers. Polymorphism here is over a
// capability set (name/priority/can_handle/resolve), not inheritance: the
// registry stores concrete implementations behind the Resolver interface.
package resolver

import (
	"context"
	"errors"
	"fmt"
)

// Priority orders resolvers within the registry: Specialized resolvers
// run before General, which run before Fallback.
type Priority int

const (
	Specialized Priority = iota
	General
	Fallback
)

// InputType classifies the raw input string handed to the registry.
type InputType int

const (
	InputURL InputType = iota
	InputDOI
	InputReference
	InputBibTeX
)

// ResolvedURL is the terminal output of a successful resolution.
type ResolvedURL struct {
	URL        string
	Title      string
	Authors    string
	Year       string
	DOI        string
	ResolvedBy string // name of the resolver that produced this
}

// ResolveStep is the sum type returned by a single resolver's Resolve
// call. Exactly one of the embedded values is meaningful, selected by
// Kind.
type StepKind int

const (
	StepURL StepKind = iota
	StepRedirect
	StepNeedsAuth
	StepFailed
)

type ResolveStep struct {
	Kind     StepKind
	URL      ResolvedURL // valid when Kind == StepURL
	Redirect string      // valid when Kind == StepRedirect
	Domain   string      // valid when Kind == StepNeedsAuth
	Message  string      // valid when Kind == StepNeedsAuth
	Err      *ResolveError
}

// ResolveError enumerates the semantic failure categories a resolver or
// the registry loop can produce.
type ResolveErrorKind int

const (
	ErrNoResolver ResolveErrorKind = iota
	ErrTooManyRedirects
	ErrAuthRequired
	ErrResolutionFailed
	ErrAllResolversFailed
)

type ResolveError struct {
	Kind    ResolveErrorKind
	Message string
	Tried   int // populated for ErrAllResolversFailed
}

func (e *ResolveError) Error() string {
	if e == nil {
		return ""
	}
	if e.Tried > 0 {
		return fmt.Sprintf("%s (tried %d resolvers)", e.Message, e.Tried)
	}
	return e.Message
}

// Context carries per-resolution dependencies (shared HTTP client, cookie
// jar) without importing httpclient here, to avoid a dependency cycle;
// callers supply a Fetch function backed by whatever client they use.
type Context struct {
	Fetch func(ctx context.Context, url string) (status int, location string, body []byte, err error)
}

// Resolver is the capability set every resolver implements.
type Resolver interface {
	Name() string
	Priority() Priority
	CanHandle(input string, inputType InputType) bool
	Resolve(ctx context.Context, input string, rctx Context) (ResolveStep, error)
}

// Registry holds an ordered set of resolvers and runs the resolution
// loop described by resolve_to_url.
type Registry struct {
	resolvers []Resolver
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a resolver to the registry's registration order.
// Execution order within a resolution is (Priority, registration order).
func (r *Registry) Register(resolver Resolver) {
	r.resolvers = append(r.resolvers, resolver)
}

// FindHandlers returns every registered resolver whose CanHandle is
// true for (input, inputType), stably ordered by (priority, registration
// order).
func (r *Registry) FindHandlers(input string, inputType InputType) []Resolver {
	var matched []Resolver
	for _, res := range r.resolvers {
		if res.CanHandle(input, inputType) {
			matched = append(matched, res)
		}
	}
	// Stable sort by priority; registration order is already preserved
	// by the slice's natural order (range preserves it) so a simple
	// stable partition suffices.
	ordered := make([]Resolver, 0, len(matched))
	for p := Specialized; p <= Fallback; p++ {
		for _, res := range matched {
			if res.Priority() == p {
				ordered = append(ordered, res)
			}
		}
	}
	return ordered
}

const maxRedirects = 10

// ResolveToURL executes the resolution loop: it runs handlers in order
// for the current candidate URL, follows Redirect steps (bounded to 10
// hops), and returns the first terminal Url step or a classified error.
func (r *Registry) ResolveToURL(ctx context.Context, input string, inputType InputType, rctx Context) (ResolvedURL, error) {
	current := input
	redirectCount := 0

	for {
		handlers := r.FindHandlers(current, inputType)
		if len(handlers) == 0 {
			return ResolvedURL{}, &ResolveError{Kind: ErrNoResolver, Message: "no resolver can handle this input"}
		}

		var lastErr error
		redirected := false

		for _, h := range handlers {
			step, err := h.Resolve(ctx, current, rctx)
			if err != nil {
				lastErr = err
				continue
			}
			switch step.Kind {
			case StepURL:
				step.URL.ResolvedBy = h.Name()
				return step.URL, nil
			case StepRedirect:
				redirectCount++
				if redirectCount > maxRedirects {
					return ResolvedURL{}, &ResolveError{Kind: ErrTooManyRedirects, Message: "exceeded maximum redirect depth of 10"}
				}
				current = step.Redirect
				// Once a resolver has produced a concrete redirect target,
				// it is an absolute URL regardless of how the original
				// input was classified; subsequent lookups treat it as
				// InputURL so DirectResolver (or another URL-aware
				// resolver) can terminate the chain.
				inputType = InputURL
				redirected = true
			case StepNeedsAuth:
				return ResolvedURL{}, &ResolveError{
					Kind:    ErrAuthRequired,
					Message: fmt.Sprintf("authentication required for %s: %s", step.Domain, step.Message),
				}
			case StepFailed:
				lastErr = step.Err
			}
			if redirected {
				break
			}
		}

		if redirected {
			continue
		}

		return ResolvedURL{}, &ResolveError{
			Kind:    ErrAllResolversFailed,
			Message: errMessageOrDefault(lastErr),
			Tried:   len(handlers),
		}
	}
}

func errMessageOrDefault(err error) string {
	if err == nil {
		return "all resolvers declined"
	}
	return err.Error()
}

// Sentinel errors surfaced when a caller classifies an error without
// switching on ResolveError.Kind directly.
var (
	ErrNotAResolveError = errors.New("resolver: not a ResolveError")
)

// AsResolveError extracts a *ResolveError, if err is one.
func AsResolveError(err error) (*ResolveError, bool) {
	var re *ResolveError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
