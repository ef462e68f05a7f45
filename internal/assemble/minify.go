package assemble

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/sitepipe/sitepipe/internal/style"
)

// Minifier compresses scripts and stylesheets with esbuild.
type Minifier struct {
	cssEngines []api.Engine
}

// NewMinifier creates a Minifier whose CSS output stays compatible with
// cssTarget, e.g. "ie9".
func NewMinifier(cssTarget string) (*Minifier, error) {
	m := &Minifier{}
	if cssTarget != "" {
		engines, err := style.ParseTargets([]string{cssTarget})
		if err != nil {
			return nil, err
		}
		m.cssEngines = engines
	}
	return m, nil
}

// JS minifies a script.
func (m *Minifier) JS(src []byte, name string) ([]byte, error) {
	result := api.Transform(string(src), api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        name,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsInline,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, transformError(name, result.Errors)
	}
	return result.Code, nil
}

// CSS minifies a stylesheet.
func (m *Minifier) CSS(src []byte, name string) ([]byte, error) {
	result := api.Transform(string(src), api.TransformOptions{
		Loader:           api.LoaderCSS,
		Sourcefile:       name,
		Engines:          m.cssEngines,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		LogLevel:         api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, transformError(name, result.Errors)
	}
	return result.Code, nil
}

// Stages returns the *.js and *.css minification stages.
func (m *Minifier) Stages() []Stage {
	return []Stage{
		m.stage("minify-js", "*.js", m.JS),
		m.stage("minify-css", "*.css", m.CSS),
	}
}

func (m *Minifier) stage(name, files string, fn func([]byte, string) ([]byte, error)) Stage {
	return Stage{
		Name:  name,
		Files: files,
		Apply: func(_ context.Context, a *Asset) ([]*Asset, error) {
			b, err := a.Content()
			if err != nil {
				return nil, err
			}
			out, err := fn(b, a.Rel)
			if err != nil {
				return nil, err
			}
			a.SetContent(out)
			return nil, nil
		},
	}
}

func transformError(name string, msgs []api.Message) error {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return fmt.Errorf("minifying %s: %s", name, strings.Join(parts, "; "))
}
