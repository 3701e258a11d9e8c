package template

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/xerrors"
)

// Reference directives recognized in template source. Scanning is a regex
// pass over the body; no full parse is needed to discover dependencies.
var refPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\{\{-?\s*extends\s+"([^"]+)"\s*-?\}\}`),
	regexp.MustCompile(`\{\{-?\s*include\s+"([^"]+)"\s*-?\}\}`),
	regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`),
}

// ScanReferences returns the template names referenced by the source via
// extends/include/template directives, in order of appearance.
func ScanReferences(content string) []string {
	var refs []string
	for _, pattern := range refPatterns {
		for _, match := range pattern.FindAllStringSubmatch(content, -1) {
			refs = append(refs, match[1])
		}
	}
	return refs
}

// Resolver loads template source from a Store and tracks the dependency graph
// formed by extends/include references, so cache keys and freshness checks
// cover the whole inheritance chain.
//
// The dependency cache is process-local and append-only: entries are never
// evicted within a resolver's lifetime. Freshness is always re-derived from
// the store's updated_at columns, never trusted to a cached row.
type Resolver struct {
	store Store

	mu   sync.RWMutex
	deps map[string][]string // canonical name -> transitive dependency closure
}

func NewResolver(store Store) *Resolver {
	return &Resolver{
		store: store,
		deps:  map[string][]string{},
	}
}

func (r *Resolver) find(ctx context.Context, name string) (Template, error) {
	_, base, channel := CanonicalName(name)
	tmpl, err := r.store.FindByNameAndChannel(ctx, base, channel)
	if xerrors.Is(err, ErrNotFound) {
		return Template{}, &NotFoundError{Name: name}
	}
	if err != nil {
		return Template{}, xerrors.Errorf("find template %q: %w", name, err)
	}
	return tmpl, nil
}

// GetSource returns the template's raw content and records its dependency
// closure. Dependencies of a template are only known after GetSource has been
// called for it at least once.
func (r *Resolver) GetSource(ctx context.Context, name string) (string, error) {
	canonical, _, _ := CanonicalName(name)
	tmpl, err := r.find(ctx, canonical)
	if err != nil {
		return "", err
	}
	if err := r.recordDependencies(ctx, canonical, tmpl.Content); err != nil {
		return "", err
	}
	return tmpl.Content, nil
}

// recordDependencies computes the transitive closure of references reachable
// from the content and memoizes it. The first recording wins; edits within a
// resolver's lifetime do not re-scan (freshness still catches them via
// updated_at).
func (r *Resolver) recordDependencies(ctx context.Context, canonical, content string) error {
	r.mu.RLock()
	_, done := r.deps[canonical]
	r.mu.RUnlock()
	if done {
		return nil
	}

	var (
		closure []string
		seen    = map[string]bool{canonical: true}
		queue   = scanCanonical(canonical, content)
	)
	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]
		if seen[dep] {
			continue
		}
		seen[dep] = true
		closure = append(closure, dep)

		depTmpl, err := r.find(ctx, dep)
		if xerrors.As(err, new(*NotFoundError)) {
			// A dangling reference contributes nothing to freshness; the
			// render engine reports it when the template is actually used.
			continue
		}
		if err != nil {
			return err
		}
		queue = append(queue, scanCanonical(dep, depTmpl.Content)...)
	}

	r.mu.Lock()
	if _, done := r.deps[canonical]; !done {
		r.deps[canonical] = closure
	}
	r.mu.Unlock()
	return nil
}

// scanCanonical scans content for references and canonicalizes each against
// the parent's channel, so an unscoped `extends "base"` inside
// "leaf:mobile" resolves to "base:mobile".
func scanCanonical(parent, content string) []string {
	_, _, parentChannel := CanonicalName(parent)
	var out []string
	for _, ref := range ScanReferences(content) {
		if !strings.Contains(ref, ":") {
			ref += ":" + parentChannel
		}
		out = append(out, ref)
	}
	return out
}

// dependencies returns the recorded closure for the name, empty when
// GetSource was never called for it.
func (r *Resolver) dependencies(canonical string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deps[canonical]
}

// IsFresh reports whether a render of the template cached at `since` is still
// valid: false when the template itself, or any recorded transitive
// dependency, was updated after `since`.
//
// When GetSource was never called for the name, the dependency set is empty
// and only the template's own timestamp is checked. That is a documented
// limitation of the contract, not an oversight.
func (r *Resolver) IsFresh(ctx context.Context, name string, since time.Time) (bool, error) {
	canonical, _, _ := CanonicalName(name)
	tmpl, err := r.find(ctx, canonical)
	if xerrors.As(err, new(*NotFoundError)) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if tmpl.UpdatedAt.After(since) {
		return false, nil
	}

	for _, dep := range r.dependencies(canonical) {
		depTmpl, err := r.find(ctx, dep)
		if xerrors.As(err, new(*NotFoundError)) {
			continue
		}
		if err != nil {
			return false, err
		}
		if depTmpl.UpdatedAt.After(since) {
			return false, nil
		}
	}
	return true, nil
}

// GetCacheKey deterministically combines the template's identity and
// updated_at with the updated_at of every known dependency. Editing a base
// template therefore changes the cache key of every template that
// (transitively) extends it.
func (r *Resolver) GetCacheKey(ctx context.Context, name string) (string, error) {
	canonical, _, _ := CanonicalName(name)
	tmpl, err := r.find(ctx, canonical)
	if err != nil {
		return "", err
	}

	var key strings.Builder
	fmt.Fprintf(&key, "%s_%s_%d", tmpl.ID, canonical, tmpl.UpdatedAt.Unix())
	for _, dep := range r.dependencies(canonical) {
		depTmpl, err := r.find(ctx, dep)
		if xerrors.As(err, new(*NotFoundError)) {
			continue
		}
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&key, "_%d", depTmpl.UpdatedAt.Unix())
	}
	return key.String(), nil
}

// Exists reports whether the template can be resolved.
func (r *Resolver) Exists(ctx context.Context, name string) bool {
	_, err := r.find(ctx, name)
	return err == nil
}
