package style

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var targetPattern = regexp.MustCompile(`^([a-z]+)([0-9][0-9.]*)$`)

// ParseTargets converts targets such as "safari11" or "ie9" into esbuild
// engines.
func ParseTargets(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, target := range targets {
		m := targetPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(target)))
		if m == nil {
			return nil, fmt.Errorf("invalid browser target %q", target)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q in target %q", m[1], target)
		}
		engines = append(engines, api.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

// Prefixer adds the vendor prefixes the configured browsers need.
type Prefixer struct {
	engines []api.Engine
}

// NewPrefixer creates a Prefixer for targets.
func NewPrefixer(targets []string) (*Prefixer, error) {
	engines, err := ParseTargets(targets)
	if err != nil {
		return nil, err
	}
	return &Prefixer{engines: engines}, nil
}

// Prefix returns css with vendor prefixes added, pretty-printed by esbuild,
// and the source map of that transform. sourcefile names the input in the
// map.
func (p *Prefixer) Prefix(css, sourcefile string) (string, string, error) {
	result := api.Transform(css, api.TransformOptions{
		Loader:     api.LoaderCSS,
		Engines:    p.engines,
		Sourcefile: sourcefile,
		Sourcemap:  api.SourceMapExternal,
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", "", messagesError(result.Errors)
	}
	return string(result.Code), string(result.Map), nil
}

func messagesError(msgs []api.Message) error {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}
