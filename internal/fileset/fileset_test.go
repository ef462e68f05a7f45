package fileset

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteFS() fstest.MapFS {
	return fstest.MapFS{
		"app/index.html":                      {Data: []byte("<html>")},
		"app/markup/pages/index.html":         {Data: []byte("{{ title }}")},
		"app/markup/pages/blog/post.nunjucks": {Data: []byte("post")},
		"app/markup/data.json":                {Data: []byte("{}")},
		"app/images/demo/a.png":               {Data: []byte("png")},
		"app/images/dist/a.png":               {Data: []byte("png")},
		"app/images/logo.png":                 {Data: []byte("png")},
		"app/styles/sass/main_light.scss":     {Data: []byte("$c: red;")},
		"app/styles/css/main_light.css":       {Data: []byte("a{}")},
		"app/scripts/app.js":                  {Data: []byte("var a;")},
	}
}

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestSelectExcludesSubtrees(t *testing.T) {
	files, err := SelectFS(siteFS(),
		[]string{"app/**/*"},
		[]string{"app/{markup,markup/**}", "app/images/{demo,demo/**}"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"app/images/dist/a.png",
		"app/images/logo.png",
		"app/index.html",
		"app/scripts/app.js",
		"app/styles/css/main_light.css",
		"app/styles/sass/main_light.scss",
	}, paths(files))

	for _, f := range files {
		assert.Equal(t, f.Path[len("app/"):], f.Rel)
	}
}

func TestSelectAlternativesAndBase(t *testing.T) {
	files, err := SelectFS(siteFS(), []string{"app/markup/pages/**/*.{html,nunjucks}"}, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "blog/post.nunjucks", files[0].Rel)
	assert.Equal(t, ".nunjucks", files[0].Ext())
	assert.Equal(t, "index.html", files[1].Rel)
}

func TestSelectDeduplicates(t *testing.T) {
	files, err := SelectFS(siteFS(), []string{"app/scripts/*.js", "app/**/*.js"}, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "app.js", files[0].Rel, "first matching include decides the base")
}

func TestSelectInvalidPattern(t *testing.T) {
	_, err := SelectFS(siteFS(), []string{"app/[*"}, nil)
	assert.Error(t, err)
}

func TestMatchAndBase(t *testing.T) {
	watch := []string{"app/markup/**/*.{html,nunjucks,json}"}
	assert.True(t, Match(watch, "app/markup/data.json"))
	assert.True(t, Match(watch, "app/markup/templates/layout.nunjucks"))
	assert.False(t, Match(watch, "app/index.html"))

	assert.Equal(t, "app/styles/sass", Base("app/styles/sass/**/*.scss"))
	assert.Equal(t, "app/markup", Base("app/markup/**/*.{html,nunjucks,json}"))
}

func TestSelectOnDisk(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app", "scripts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app", "scripts", "main.js"), []byte("x"), 0644))

	files, err := Select(root, []string{"app/**/*"}, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "app", "scripts", "main.js"), files[0].OSPath(root))

	rel, err := Rel(root, files[0].OSPath(root))
	require.NoError(t, err)
	assert.Equal(t, "app/scripts/main.js", rel)
}
