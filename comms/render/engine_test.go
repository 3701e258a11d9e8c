package render_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coder/quartz"

	"github.com/commsd/commsd/comms/render"
	"github.com/commsd/commsd/comms/template"
	"github.com/commsd/commsd/testutil"
)

// newEngine wires an engine to an in-memory store through the resolver, the
// same shape the dispatch path uses.
func newEngine(t *testing.T, templates map[string]string) *render.Engine {
	t.Helper()
	store := template.NewMemoryStore(quartz.NewMock(t))
	for name, content := range templates {
		_, base, channel := template.CanonicalName(name)
		_, err := store.Save(context.Background(), template.Template{
			Name:    base,
			Channel: channel,
			Content: content,
		})
		require.NoError(t, err)
	}
	return render.NewEngine(template.NewResolver(store), nil)
}

func TestRenderInheritance(t *testing.T) {
	t.Parallel()

	t.Run("BlockOverride", func(t *testing.T) {
		t.Parallel()

		engine := newEngine(t, map[string]string{
			"base": `<html>{{block "content" .}}default{{end}}</html>`,
			"leaf": `{{extends "base"}}{{define "content"}}hello {{ .name }}{{end}}`,
		})
		ctx := testutil.Context(t, testutil.WaitShort)

		out, err := engine.Render(ctx, "leaf", map[string]any{"name": "Ada"})
		require.NoError(t, err)
		require.Equal(t, "<html>hello Ada</html>", out)
	})

	t.Run("BlockDefault", func(t *testing.T) {
		t.Parallel()

		engine := newEngine(t, map[string]string{
			"base": `<html>{{block "content" .}}default{{end}}</html>`,
		})
		ctx := testutil.Context(t, testutil.WaitShort)

		out, err := engine.Render(ctx, "base", nil)
		require.NoError(t, err)
		require.Equal(t, "<html>default</html>", out)
	})

	t.Run("ThreeLevelChain", func(t *testing.T) {
		t.Parallel()

		engine := newEngine(t, map[string]string{
			"base":   `[{{block "outer" .}}{{end}}]`,
			"layout": `{{extends "base"}}{{define "outer"}}({{block "inner" .}}{{end}}){{end}}`,
			"leaf":   `{{extends "layout"}}{{define "inner"}}x{{end}}`,
		})
		ctx := testutil.Context(t, testutil.WaitShort)

		out, err := engine.Render(ctx, "leaf", nil)
		require.NoError(t, err)
		require.Equal(t, "[(x)]", out)
	})

	t.Run("TemplateActionBoundToLeafDefine", func(t *testing.T) {
		t.Parallel()

		engine := newEngine(t, map[string]string{
			"base": `<main>{{template "content" .}}</main>`,
			"leaf": `{{extends "base"}}{{define "content"}}body{{end}}`,
		})
		ctx := testutil.Context(t, testutil.WaitShort)

		out, err := engine.Render(ctx, "leaf", nil)
		require.NoError(t, err)
		require.Equal(t, "<main>body</main>", out)
	})
}

func TestRenderInclude(t *testing.T) {
	t.Parallel()

	engine := newEngine(t, map[string]string{
		"header": `== {{ .title }} ==`,
		"page":   `{{include "header"}} body`,
	})
	ctx := testutil.Context(t, testutil.WaitShort)

	out, err := engine.Render(ctx, "page", map[string]any{"title": "Update"})
	require.NoError(t, err)
	require.Equal(t, "== Update == body", out)
}

func TestRenderHTMLEscaping(t *testing.T) {
	t.Parallel()

	templates := map[string]string{
		"page": `<p>{{ .input }}</p>`,
	}
	ctx := testutil.Context(t, testutil.WaitShort)
	data := map[string]any{"input": `<script>alert(1)</script>`}

	out, err := newEngine(t, templates).RenderHTML(ctx, "page", data)
	require.NoError(t, err)
	require.NotContains(t, out, "<script>")

	out, err = newEngine(t, templates).Render(ctx, "page", data)
	require.NoError(t, err)
	require.Contains(t, out, "<script>")
}

func TestRenderHTMLExecutesRoot(t *testing.T) {
	t.Parallel()

	// The escaping engine must execute under the name the source was loaded
	// by, whether the template stands alone or heads an inheritance chain.
	t.Run("SingleTemplate", func(t *testing.T) {
		t.Parallel()

		engine := newEngine(t, map[string]string{
			"layout": `<html>{{ .name }}</html>`,
		})
		ctx := testutil.Context(t, testutil.WaitShort)

		out, err := engine.RenderHTML(ctx, "layout", map[string]any{"name": "Ada"})
		require.NoError(t, err)
		require.Equal(t, "<html>Ada</html>", out)
	})

	t.Run("InheritanceChain", func(t *testing.T) {
		t.Parallel()

		engine := newEngine(t, map[string]string{
			"layout": `<html>{{block "content" .}}{{end}}</html>`,
			"leaf":   `{{extends "layout"}}{{define "content"}}<p>hi {{ .name }}</p>{{end}}`,
		})
		ctx := testutil.Context(t, testutil.WaitShort)

		out, err := engine.RenderHTML(ctx, "leaf", map[string]any{"name": "Ada"})
		require.NoError(t, err)
		require.Equal(t, "<html><p>hi Ada</p></html>", out)
	})
}

func TestRenderChannelScoping(t *testing.T) {
	t.Parallel()

	engine := newEngine(t, map[string]string{
		"base:sms":       `sms: {{block "content" .}}{{end}}`,
		"alert.text:sms": `{{extends "base"}}{{define "content"}}{{ .parcelId }} arrived{{end}}`,
	})
	ctx := testutil.Context(t, testutil.WaitShort)

	out, err := engine.Render(ctx, "alert.text:sms", map[string]any{"parcelId": "P-1"})
	require.NoError(t, err)
	require.Equal(t, "sms: P-1 arrived", out)
}

func TestRenderMissingTemplate(t *testing.T) {
	t.Parallel()

	engine := newEngine(t, map[string]string{})
	ctx := testutil.Context(t, testutil.WaitShort)

	_, err := engine.Render(ctx, "ghost", nil)
	var notFound *template.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRenderInheritanceCycle(t *testing.T) {
	t.Parallel()

	engine := newEngine(t, map[string]string{
		"a": `{{extends "b"}}`,
		"b": `{{extends "a"}}`,
	})
	ctx := testutil.Context(t, testutil.WaitShort)

	_, err := engine.Render(ctx, "a", nil)
	require.ErrorContains(t, err, "cycle")
}

func TestGoTemplate(t *testing.T) {
	t.Parallel()

	out, err := render.GoTemplate("Parcel {{ .parcelId }} arrived", map[string]any{"parcelId": "P-1"}, nil)
	require.NoError(t, err)
	require.Equal(t, "Parcel P-1 arrived", out)

	_, err = render.GoTemplate("{{ .broken", nil, nil)
	require.ErrorContains(t, err, "parse")
}
