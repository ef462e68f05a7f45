package markup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepipe/sitepipe/internal/config"
	"github.com/sitepipe/sitepipe/internal/errors"
	"github.com/sitepipe/sitepipe/internal/logging"
	"github.com/sitepipe/sitepipe/internal/notify"
)

type reloadSpy struct {
	mu      sync.Mutex
	paths   []string
	cssOnly bool
	calls   int
}

func (r *reloadSpy) Reload(paths []string, cssOnly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
	r.cssOnly = cssOnly
	r.calls++
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func setupSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "app/markup/data.json", `{"title": "Home", "links": ["one", "two"]}`)
	writeFile(t, root, "app/markup/templates/layout.html", `<!DOCTYPE html>
<html>
<head><title>{{ title }}</title></head>
<body>{% block content %}{% endblock %}</body>
</html>`)
	writeFile(t, root, "app/markup/templates/nav.html", `<ul>{% for l in links %}<li>{{ l }}</li>{% endfor %}</ul>`)
	writeFile(t, root, "app/markup/pages/index.html", `{% extends "layout.html" %}
{% block content %}<h1>{{ title }}</h1>{% include "nav.html" %}{% endblock %}`)
	writeFile(t, root, "app/markup/pages/blog/post.nunjucks", `{% extends "layout.html" %}
{% block content %}{% include "byline.html" %}{% endblock %}`)
	writeFile(t, root, "app/markup/pages/blog/byline.html", `<p class="byline">by {{ author|default:"staff" }}</p>`)
	return root
}

func newRenderer(root string, opts ...Option) *Renderer {
	return New(root, config.Default().Markup, logging.Nop(), opts...)
}

func TestRendererRendersDataIntoPages(t *testing.T) {
	root := setupSite(t)
	spy := &reloadSpy{}
	r := newRenderer(root, WithReloader(spy))

	require.NoError(t, r.Run(context.Background()))

	index := readFile(t, root, "app/index.html")
	assert.Contains(t, index, "<title>Home</title>")
	assert.Contains(t, index, "<h1>Home</h1>")
	assert.Contains(t, index, "<li>one</li>")
	assert.NotContains(t, index, "{{")
	assert.True(t, strings.HasPrefix(index, "<!DOCTYPE html>\n<html>\n  <head>\n"), index)

	post := readFile(t, root, "app/blog/post.html")
	assert.Contains(t, post, `<p class="byline">by staff</p>`)

	assert.Equal(t, 1, spy.calls)
	assert.False(t, spy.cssOnly)
	assert.Contains(t, spy.paths, "app/index.html")
	assert.Contains(t, spy.paths, "app/blog/post.html")
}

func TestRendererRereadsDataEveryRun(t *testing.T) {
	root := setupSite(t)
	r := newRenderer(root)

	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, readFile(t, root, "app/index.html"), "<h1>Home</h1>")

	writeFile(t, root, "app/markup/data.json", `{"title": "About", "links": []}`)
	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, readFile(t, root, "app/index.html"), "<h1>About</h1>")
}

func TestRendererTemplateErrorIsNotified(t *testing.T) {
	root := setupSite(t)
	writeFile(t, root, "app/markup/pages/broken.html", `<p>{{ title </p>`)
	rec := &notify.Recorder{}
	r := newRenderer(root, WithNotifier(rec))

	require.NoError(t, r.Run(context.Background()))

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ErrorTitle, entries[0].Title)
	assert.True(t, r.Errors().HasErrors())

	_, err := os.Stat(filepath.Join(root, "app", "broken.html"))
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, readFile(t, root, "app/index.html"), "Home")
}

func TestRendererInvalidDataIsNotified(t *testing.T) {
	root := setupSite(t)
	writeFile(t, root, "app/markup/data.json", `{"title": `)
	rec := &notify.Recorder{}
	r := newRenderer(root, WithNotifier(rec))

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, rec.Entries(), 1)
	assert.Contains(t, rec.Entries()[0].Message, "data.json")

	_, err := os.Stat(filepath.Join(root, "app", "index.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestRendererAnnouncesErrorsWhenNothingRenders(t *testing.T) {
	t.Run("invalid data", func(t *testing.T) {
		root := setupSite(t)
		writeFile(t, root, "app/markup/data.json", `{"title": `)
		spy := &reloadSpy{}
		r := newRenderer(root, WithReloader(spy))

		require.NoError(t, r.Run(context.Background()))
		assert.Equal(t, 1, spy.calls)
		assert.True(t, spy.cssOnly, "errors are shown without reloading the page")
		assert.Empty(t, spy.paths)
	})

	t.Run("every page broken", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app/markup/pages/broken.html", `<p>{{ title </p>`)
		spy := &reloadSpy{}
		r := newRenderer(root, WithReloader(spy))

		require.NoError(t, r.Run(context.Background()))
		assert.Equal(t, 1, spy.calls)
		assert.True(t, spy.cssOnly)
		assert.Empty(t, spy.paths)
		assert.True(t, r.Errors().HasErrors())
	})
}

func TestRendererMissingDataFileRendersEmptyContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/markup/pages/plain.html", `<!DOCTYPE html><html><head><title>Plain{{ missing }}</title></head><body></body></html>`)
	r := newRenderer(root)

	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, readFile(t, root, "app/plain.html"), "<title>Plain</title>")
}

func TestRendererCollectsLintWarnings(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/markup/pages/bad.html", `<html><head></head><body><img src="x.png"></body></html>`)
	ec := errors.NewErrorCollector()
	r := newRenderer(root, WithCollector(ec))

	require.NoError(t, r.Run(context.Background()))

	assert.False(t, ec.HasErrors(), "lint findings are warnings")
	found := map[string]bool{}
	for _, be := range ec.GetErrorsByFile("app/bad.html") {
		assert.Equal(t, errors.ErrorSeverityWarning, be.Severity)
		found[be.Rule] = true
	}
	assert.True(t, found[RuleDoctypeFirst])
	assert.True(t, found[RuleAltRequire])
	assert.True(t, found[RuleTitleRequire])

	_, err := os.Stat(filepath.Join(root, "app", "bad.html"))
	assert.NoError(t, err, "lint issues never block output")
}

func TestRenderFile(t *testing.T) {
	root := setupSite(t)
	r := newRenderer(root)

	page, err := r.RenderFile(filepath.Join(root, "app", "markup", "pages", "blog", "post.nunjucks"))
	require.NoError(t, err)
	assert.Equal(t, "app/blog/post.html", page.Output)
	assert.Contains(t, string(page.HTML), "by staff")
}

func TestOutputPath(t *testing.T) {
	r := newRenderer(".")
	tests := map[string]string{
		"index.html":          "app/index.html",
		"blog/post.nunjucks":  "app/blog/post.html",
		"docs/a/b/c.html":     "app/docs/a/b/c.html",
		"upper/Page.NUNJUCKS": "app/upper/Page.html",
	}
	for in, want := range tests {
		assert.Equal(t, want, r.OutputPath(in), in)
	}
}

func TestSearchLoaderOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "templates/shared.html", "templates")
	writeFile(t, root, "pages/shared.html", "pages")
	writeFile(t, root, "pages/only.html", "page only")
	writeFile(t, root, "pages/sub/local.html", "local")

	l := newSearchLoader(filepath.Join(root, "templates"), filepath.Join(root, "pages"))
	assert.Equal(t, filepath.Join(root, "templates", "shared.html"), l.Abs("", "shared.html"))
	assert.Equal(t, filepath.Join(root, "pages", "only.html"), l.Abs("", "only.html"))
	assert.Equal(t, filepath.Join(root, "pages", "sub", "local.html"),
		l.Abs(filepath.Join(root, "pages", "sub", "page.html"), "local.html"))
	assert.Equal(t, filepath.Join(root, "templates", "nope.html"), l.Abs("", "nope.html"))

	_, err := l.Get(filepath.Join(root, "templates", "nope.html"))
	assert.Error(t, err)
}
