package assemble

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/sitepipe/sitepipe/internal/config"
	"github.com/sitepipe/sitepipe/internal/logging"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func listTree(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

// assertImagesResolve checks that every img src in the HTML files under dir
// names a file that exists under dir.
func assertImagesResolve(t *testing.T, dir string) {
	t.Helper()
	for _, rel := range listTree(t, dir) {
		if path.Ext(rel) != ".html" {
			continue
		}
		z := html.NewTokenizer(strings.NewReader(read(t, dir, rel)))
		for tt := z.Next(); tt != html.ErrorToken; tt = z.Next() {
			if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
				continue
			}
			name, hasAttr := z.TagName()
			if string(name) != "img" {
				continue
			}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				if string(k) != "src" {
					continue
				}
				target := path.Join(path.Dir(rel), string(v))
				assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(target)), "img in %s", rel)
			}
		}
	}
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

const indexPage = `<!DOCTYPE html>
<html>
  <head>
    <title>Home</title>
    <!-- build:css styles/main.min.css -->
    <link rel="stylesheet" href="styles/css/main_light.css">
    <!-- endbuild -->
  </head>
  <body>
    <img src="images/demo/hero.png" alt="hero">
    <!-- build:js scripts/main.min.js -->
    <script src="scripts/a.js"></script>
    <script src="scripts/b.js?v=2"></script>
    <!-- endbuild -->
    <script>ga('create', 'UA-XXXXX-X', 'auto');</script>
  </body>
</html>
`

func siteFiles() map[string]string {
	return map[string]string{
		"app/index.html":                  indexPage,
		"app/about/index.html":            `<p>UA-XXXXX-X <img src="../images/demo/x.png" alt="x"></p>`,
		"app/notes.txt":                   "UA-XXXXX-X images/demo/",
		"app/scripts/a.js":                "var a = 1;\n",
		"app/scripts/b.js":                "var b = 2;\nconsole.log(a + b);\n",
		"app/styles/css/main_light.css":   ".light {\n  color: #fff;\n}\n",
		"app/styles/sass/main_light.scss": "$c: #fff;\n",
		"app/images/demo/hero.png":        "demo",
		"app/images/dist/hero.png":        "dist",
		"app/images/demo/x.png":           "demo",
		"app/images/dist/x.png":           "dist",
		"app/markup/pages/index.html":     "{{ title }}",
		"app/markup/data.json":            "{}",
	}
}

func TestDistFolder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, siteFiles())

	a := NewDist(root, config.Default(), logging.Nop())
	require.NoError(t, a.Run(context.Background()))

	dist := filepath.Join(root, "dist")
	assert.Equal(t, []string{
		"about/index.html",
		"images/dist/hero.png",
		"images/dist/x.png",
		"index.html",
		"notes.txt",
		"scripts/a.js",
		"scripts/b.js",
		"styles/css/main_light.css",
		"styles/sass/main_light.scss",
	}, listTree(t, dist))

	index := read(t, dist, "index.html")
	assert.Contains(t, index, `src="images/dist/hero.png"`)
	assert.NotContains(t, index, "images/demo/")
	assert.Contains(t, index, "<!-- build:js scripts/main.min.js -->", "dist keeps build blocks")
	assert.Contains(t, read(t, dist, "about/index.html"), "../images/dist/x.png")
	assert.Equal(t, "UA-XXXXX-X images/demo/", read(t, dist, "notes.txt"), "replacements only touch html")
	assert.Equal(t, "var a = 1;\n", read(t, dist, "scripts/a.js"))
	assertImagesResolve(t, dist)
}

func TestDeployFolder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, siteFiles())

	a, err := NewDeploy(root, config.Default(), logging.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	deploy := filepath.Join(root, "deploy")
	assert.Equal(t, []string{
		"about/index.html",
		"images/dist/hero.png",
		"images/dist/x.png",
		"index.html",
		"notes.txt",
		"scripts/a.js",
		"scripts/b.js",
		"scripts/main.min.js",
		"styles/css/main_light.css",
		"styles/main.min.css",
	}, listTree(t, deploy))

	index := read(t, deploy, "index.html")
	assert.Contains(t, index, "UA-52380361-10")
	assert.NotContains(t, index, "UA-XXXXX-X")
	assert.Contains(t, index, `<link rel="stylesheet" href="styles/main.min.css">`)
	assert.Contains(t, index, `<script src="scripts/main.min.js"></script>`)
	assert.NotContains(t, index, "scripts/a.js")
	assert.NotContains(t, index, "build:")
	assert.Contains(t, index, `src="images/dist/hero.png"`)
	assert.NotContains(t, index, "images/demo/")
	assertImagesResolve(t, deploy)

	assert.Contains(t, read(t, deploy, "about/index.html"), "UA-52380361-10")
	assert.Equal(t, "UA-XXXXX-X images/demo/", read(t, deploy, "notes.txt"))

	js := read(t, deploy, "scripts/main.min.js")
	assert.Contains(t, js, "a=1")
	assert.Contains(t, js, "b=2")
	assert.NotContains(t, js, "var a = 1;")

	assert.Contains(t, read(t, deploy, "styles/main.min.css"), ".light{color:#fff}")
	assert.NotContains(t, read(t, deploy, "styles/css/main_light.css"), "\n  ")
}

func TestDeployFolderMissingReferenceFails(t *testing.T) {
	root := t.TempDir()
	files := siteFiles()
	delete(files, "app/scripts/b.js")
	writeTree(t, root, files)

	a, err := NewDeploy(root, config.Default(), logging.Nop())
	require.NoError(t, err)
	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "useref")
}

func TestDeployInvalidCSSTarget(t *testing.T) {
	cfg := config.Default()
	cfg.Deploy.CSSTarget = "lynx2"
	_, err := NewDeploy(t.TempDir(), cfg, logging.Nop())
	assert.Error(t, err)
}

func TestProcessOrderAndDedupe(t *testing.T) {
	var order []string
	record := func(name string) Stage {
		return Stage{Name: name, Files: "*.txt", Apply: func(_ context.Context, a *Asset) ([]*Asset, error) {
			order = append(order, name+":"+a.Rel)
			return nil, nil
		}}
	}
	emit := Stage{Name: "emit", Files: "a.txt", Apply: func(_ context.Context, a *Asset) ([]*Asset, error) {
		gen := &Asset{Rel: "b.txt"}
		gen.SetContent([]byte("generated"))
		return []*Asset{gen}, nil
	}}

	root := t.TempDir()
	writeTree(t, root, map[string]string{"b.txt": "original"})

	a := New("test", root, nil, nil, "out", logging.Nop(), record("first"), emit, record("second"))
	orig := &Asset{Rel: "b.txt", Src: filepath.Join(root, "b.txt")}
	first := &Asset{Rel: "a.txt"}
	first.SetContent(nil)

	out, err := a.Process(context.Background(), []*Asset{first, orig})
	require.NoError(t, err)

	assert.Equal(t, []string{"first:a.txt", "first:b.txt", "second:a.txt", "second:b.txt", "second:b.txt"}, order)
	require.Len(t, out, 2)
	b, _ := out[1].Content()
	assert.Equal(t, "generated", string(b))
}

func TestStageMatches(t *testing.T) {
	tests := []struct {
		files string
		rel   string
		want  bool
	}{
		{"*.html", "index.html", true},
		{"*.html", "deep/nested/page.html", true},
		{"*.html", "page.htm", false},
		{"*.{js,css}", "a/b.css", true},
		{"about/*.html", "about/index.html", true},
		{"about/*.html", "index.html", false},
		{"", "anything.bin", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stage{Files: tt.files}.Matches(tt.rel), "%s ~ %s", tt.files, tt.rel)
	}
}

func TestMinifier(t *testing.T) {
	m, err := NewMinifier("ie9")
	require.NoError(t, err)

	js, err := m.JS([]byte("var answer = 42;\nconsole.log(\"a\", answer);\n"), "a.js")
	require.NoError(t, err)
	assert.Contains(t, string(js), `console.log("a",answer)`)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(string(js)), "\n")+1)

	css, err := m.CSS([]byte(".a {\n  color: red;\n}\n"), "a.css")
	require.NoError(t, err)
	assert.Equal(t, ".a{color:red}", strings.TrimSpace(string(css)))

	_, err = m.JS([]byte("function ("), "broken.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.js")
}
