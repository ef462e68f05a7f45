package style

import (
	"sort"
	"strings"
)

// propertyOrder is the canonical declaration order: positioning, box model,
// typography, visuals, then animation. It follows the CSScomb "csscomb"
// preset.
var propertyOrder = []string{
	"position", "z-index", "top", "right", "bottom", "left",
	"display", "visibility", "float", "clear", "overflow", "overflow-x", "overflow-y",
	"clip", "zoom",
	"flex", "flex-direction", "flex-order", "flex-pack", "flex-align",
	"flex-grow", "flex-shrink", "flex-basis", "flex-wrap", "flex-flow",
	"align-content", "align-items", "align-self", "justify-content", "order",
	"grid", "grid-template", "grid-template-columns", "grid-template-rows",
	"grid-template-areas", "grid-area", "grid-column", "grid-row", "gap",
	"column-gap", "row-gap",
	"box-sizing", "width", "min-width", "max-width", "height", "min-height", "max-height",
	"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
	"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
	"table-layout", "empty-cells", "caption-side", "border-spacing", "border-collapse",
	"list-style", "list-style-position", "list-style-type", "list-style-image",
	"content", "quotes", "counter-reset", "counter-increment", "resize", "cursor",
	"user-select", "nav-index", "pointer-events", "appearance",
	"transition", "transition-delay", "transition-timing-function",
	"transition-duration", "transition-property",
	"transform", "transform-origin",
	"animation", "animation-name", "animation-duration", "animation-play-state",
	"animation-timing-function", "animation-delay", "animation-iteration-count",
	"animation-direction", "animation-fill-mode",
	"text-align", "text-align-last", "vertical-align", "white-space",
	"text-decoration", "text-emphasis", "text-emphasis-color", "text-emphasis-style",
	"text-emphasis-position", "text-indent", "text-justify", "letter-spacing",
	"word-spacing", "text-outline", "text-transform", "text-wrap", "text-overflow",
	"text-overflow-ellipsis", "text-overflow-mode", "text-size-adjust", "word-wrap",
	"word-break", "tab-size", "hyphens",
	"font", "font-family", "font-size", "font-weight", "font-style", "font-variant",
	"font-size-adjust", "font-stretch", "font-effect", "font-emphasize",
	"font-emphasize-position", "font-emphasize-style", "font-smooth", "line-height",
	"opacity", "filter", "backdrop-filter", "color", "background", "background-color",
	"background-image", "background-repeat", "background-attachment",
	"background-position", "background-position-x", "background-position-y",
	"background-clip", "background-origin", "background-size",
	"border", "border-color", "border-style", "border-width",
	"border-top", "border-top-color", "border-top-style", "border-top-width",
	"border-right", "border-right-color", "border-right-style", "border-right-width",
	"border-bottom", "border-bottom-color", "border-bottom-style", "border-bottom-width",
	"border-left", "border-left-color", "border-left-style", "border-left-width",
	"border-radius", "border-top-left-radius", "border-top-right-radius",
	"border-bottom-right-radius", "border-bottom-left-radius",
	"border-image", "border-image-source", "border-image-slice", "border-image-width",
	"border-image-outset", "border-image-repeat",
	"outline", "outline-width", "outline-style", "outline-color", "outline-offset",
	"box-shadow", "text-shadow", "mask", "mask-image", "clip-path",
}

var propertyRank = func() map[string]int {
	rank := make(map[string]int, len(propertyOrder))
	for i, p := range propertyOrder {
		rank[p] = i
	}
	return rank
}()

var vendorPrefixes = []string{"-webkit-", "-moz-", "-ms-", "-o-"}

// Comb reorders the declarations of every rule into the canonical property
// order. It expects esbuild's pretty-printed output: one declaration per line
// and braces at line ends. Comments, nested blocks and blank lines split a
// rule into independently sorted runs.
func Comb(css string) string {
	lines := strings.Split(css, "\n")
	out := make([]string, 0, len(lines))

	var run []declaration
	flush := func() {
		sort.SliceStable(run, func(i, j int) bool { return run[i].less(run[j]) })
		for _, d := range run {
			out = append(out, d.lines...)
		}
		run = run[:0]
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		name, ok := declarationName(line)
		if !ok {
			flush()
			out = append(out, line)
			continue
		}

		d := declaration{name: name, lines: []string{line}}
		indent := indentOf(line)
		// values esbuild wraps onto deeper-indented continuation lines
		for i+1 < len(lines) && indentOf(lines[i+1]) > indent && !isStructural(lines[i+1]) {
			i++
			d.lines = append(d.lines, lines[i])
		}
		run = append(run, d)
	}
	flush()

	return strings.Join(out, "\n")
}

type declaration struct {
	name  string
	lines []string
}

func (d declaration) less(o declaration) bool {
	dc, oc := strings.HasPrefix(d.name, "--"), strings.HasPrefix(o.name, "--")
	if dc || oc {
		// custom properties lead and keep their order
		return dc && !oc
	}

	db, dp := splitVendor(d.name)
	ob, op := splitVendor(o.name)
	dr, dKnown := propertyRank[db]
	or, oKnown := propertyRank[ob]

	switch {
	case dKnown && oKnown && dr != or:
		return dr < or
	case dKnown != oKnown:
		return dKnown
	case db != ob:
		return db < ob
	}
	// same property: prefixed forms first
	return dp != "" && op == ""
}

func splitVendor(name string) (base, prefix string) {
	for _, p := range vendorPrefixes {
		if strings.HasPrefix(name, p) {
			return strings.TrimPrefix(name, p), p
		}
	}
	return name, ""
}

func declarationName(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || isStructural(line) {
		return "", false
	}
	if strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "@") {
		return "", false
	}
	colon := strings.IndexByte(trimmed, ':')
	if colon <= 0 {
		return "", false
	}
	// "a:hover," in a selector list has no space after the colon
	if colon+1 < len(trimmed) && trimmed[colon+1] != ' ' {
		return "", false
	}
	name := trimmed[:colon]
	for _, r := range name {
		if !(r == '-' || r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", false
		}
	}
	return strings.ToLower(name), true
}

func isStructural(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasSuffix(trimmed, "{") || strings.HasPrefix(trimmed, "}")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
