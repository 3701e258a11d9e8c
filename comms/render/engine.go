// Package render binds template source to data. The engine loads templates
// through a pluggable Loader (the template resolver satisfies it) and
// supports single inheritance via an `extends` directive plus composition via
// `include`, both resolved through the loader at render time.
package render

import (
	"context"
	htmltemplate "html/template"
	"regexp"
	"strings"
	texttemplate "text/template"
	"time"

	"golang.org/x/xerrors"
)

// Loader supplies template source and cache metadata. This is exactly the
// resolver's contract, exposed here so the engine does not depend on a
// concrete store.
type Loader interface {
	GetSource(ctx context.Context, name string) (string, error)
	GetCacheKey(ctx context.Context, name string) (string, error)
	IsFresh(ctx context.Context, name string, since time.Time) (bool, error)
	Exists(ctx context.Context, name string) bool
}

var (
	extendsPattern  = regexp.MustCompile(`\{\{-?\s*extends\s+"([^"]+)"\s*-?\}\}`)
	includePattern  = regexp.MustCompile(`\{\{-?\s*include\s+"([^"]+)"\s*-?\}\}`)
	templatePattern = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)
)

// maxChainDepth bounds inheritance walks so a reference cycle in stored
// content cannot hang a render.
const maxChainDepth = 32

// Engine renders named templates loaded through a Loader.
type Engine struct {
	loader Loader
	funcs  map[string]any
}

func NewEngine(loader Loader, funcs map[string]any) *Engine {
	return &Engine{loader: loader, funcs: funcs}
}

type source struct {
	name    string // bare name, the identifier used inside template actions
	content string
}

// collect gathers the leaf template, its extends chain, and every included
// template, returning sources in parse order (base first, leaf last, so leaf
// block definitions override parents) and the name of the root to execute.
func (e *Engine) collect(ctx context.Context, name string) ([]source, string, error) {
	_, channel := splitChannel(name)

	// Walk the extends chain leaf -> base.
	var chain []source
	visited := map[string]bool{}
	current := name
	for {
		if len(chain) >= maxChainDepth {
			return nil, "", xerrors.Errorf("template %q: inheritance deeper than %d levels", name, maxChainDepth)
		}
		bare, _ := splitChannel(current)
		if visited[bare] {
			return nil, "", xerrors.Errorf("template %q: inheritance cycle through %q", name, bare)
		}
		visited[bare] = true

		content, err := e.loader.GetSource(ctx, withChannel(current, channel))
		if err != nil {
			return nil, "", xerrors.Errorf("load template %q: %w", current, err)
		}
		chain = append(chain, source{name: bare, content: content})

		parent, ok := scanExtends(content)
		if !ok {
			break
		}
		current = parent
	}

	// Parse order is base first.
	ordered := make([]source, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		ordered = append(ordered, chain[i])
	}
	rootName := ordered[0].name

	// Pull in includes (and their includes) after the chain.
	queue := []string{}
	for _, s := range ordered {
		queue = append(queue, scanIncludes(s.content)...)
	}
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		bare, _ := splitChannel(ref)
		if visited[bare] {
			continue
		}
		visited[bare] = true

		// A template action may refer to a block or define supplied within
		// the chain rather than a stored template; only stored names load.
		if !e.loader.Exists(ctx, withChannel(ref, channel)) {
			continue
		}

		content, err := e.loader.GetSource(ctx, withChannel(ref, channel))
		if err != nil {
			return nil, "", xerrors.Errorf("load included template %q: %w", ref, err)
		}
		ordered = append(ordered, source{name: bare, content: content})
		queue = append(queue, scanIncludes(content)...)
	}

	return ordered, rootName, nil
}

// Render executes the named template as text, resolving inheritance and
// includes through the loader.
func (e *Engine) Render(ctx context.Context, name string, data any) (string, error) {
	sources, rootName, err := e.collect(ctx, name)
	if err != nil {
		return "", err
	}

	root := texttemplate.New(rootName).Funcs(e.funcs)
	if _, err := root.Parse(prepare(sources[0].content)); err != nil {
		return "", xerrors.Errorf("parse template %q: %w", sources[0].name, err)
	}
	for _, s := range sources[1:] {
		if _, err := root.New(s.name).Parse(prepare(s.content)); err != nil {
			return "", xerrors.Errorf("parse template %q: %w", s.name, err)
		}
	}

	var out strings.Builder
	if err := root.ExecuteTemplate(&out, rootName, data); err != nil {
		return "", xerrors.Errorf("execute template %q: %w", name, err)
	}
	return out.String(), nil
}

// RenderHTML is Render with contextual auto-escaping for HTML bodies.
func (e *Engine) RenderHTML(ctx context.Context, name string, data any) (string, error) {
	sources, rootName, err := e.collect(ctx, name)
	if err != nil {
		return "", err
	}

	// The root's own source must parse into the root template object itself:
	// html/template refuses to execute a template that never received a parse
	// tree, even when an associated template of the same name did.
	root := htmltemplate.New(rootName).Funcs(e.funcs)
	if _, err := root.Parse(prepare(sources[0].content)); err != nil {
		return "", xerrors.Errorf("parse template %q: %w", sources[0].name, err)
	}
	for _, s := range sources[1:] {
		if _, err := root.New(s.name).Parse(prepare(s.content)); err != nil {
			return "", xerrors.Errorf("parse template %q: %w", s.name, err)
		}
	}

	var out strings.Builder
	if err := root.ExecuteTemplate(&out, rootName, data); err != nil {
		return "", xerrors.Errorf("execute template %q: %w", name, err)
	}
	return out.String(), nil
}

// prepare turns stored source into parseable Go template text: the extends
// directive is a loader concern and is stripped; include directives become
// template invocations against the bare name.
func prepare(content string) string {
	content = extendsPattern.ReplaceAllString(content, "")
	return includePattern.ReplaceAllStringFunc(content, func(match string) string {
		ref := includePattern.FindStringSubmatch(match)[1]
		bare, _ := splitChannel(ref)
		return `{{template "` + bare + `" .}}`
	})
}

func scanExtends(content string) (string, bool) {
	match := extendsPattern.FindStringSubmatch(content)
	if match == nil {
		return "", false
	}
	return match[1], true
}

func scanIncludes(content string) []string {
	var refs []string
	for _, match := range includePattern.FindAllStringSubmatch(content, -1) {
		refs = append(refs, match[1])
	}
	for _, match := range templatePattern.FindAllStringSubmatch(content, -1) {
		refs = append(refs, match[1])
	}
	return refs
}

func splitChannel(name string) (string, string) {
	base, channel, ok := strings.Cut(name, ":")
	if !ok {
		return base, ""
	}
	return base, channel
}

func withChannel(name, channel string) string {
	if strings.Contains(name, ":") || channel == "" {
		return name
	}
	return name + ":" + channel
}
