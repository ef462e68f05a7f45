package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rules(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Rule)
	}
	return out
}

func TestLintCleanDocument(t *testing.T) {
	doc := `<!DOCTYPE html>
<html>
  <head>
    <title>Home</title>
    <link rel="stylesheet" href="styles/css/main_light.css">
  </head>
  <body>
    <img src="images/logo.png" alt="Hello World">
    <br/>
    <div id="a"><span id="b">x</span></div>
  </body>
</html>
`
	issues, err := Lint([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestLintRules(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "missing doctype",
			doc:  `<html><head><title>x</title></head></html>`,
			want: []string{RuleDoctypeFirst},
		},
		{
			name: "comment before doctype is allowed",
			doc:  "<!-- hi -->\n<!DOCTYPE html><p>x</p>",
			want: []string{},
		},
		{
			name: "duplicate id",
			doc:  `<!DOCTYPE html><div id="a"></div><p id="a"></p>`,
			want: []string{RuleIDUnique},
		},
		{
			name: "uppercase attribute",
			doc:  `<!DOCTYPE html><div CLASS="Upper Case Value"></div>`,
			want: []string{RuleAttrLowercase},
		},
		{
			name: "empty src and missing alt",
			doc:  `<!DOCTYPE html><img src="">`,
			want: []string{RuleSrcNotEmpty, RuleAltRequire},
		},
		{
			name: "empty link href",
			doc:  `<!DOCTYPE html><link rel="stylesheet" href="">`,
			want: []string{RuleSrcNotEmpty},
		},
		{
			name: "image input without alt",
			doc:  `<!DOCTYPE html><input type="image" src="go.png">`,
			want: []string{RuleAltRequire},
		},
		{
			name: "head without title",
			doc:  `<!DOCTYPE html><html><head><meta charset="utf-8"></head></html>`,
			want: []string{RuleTitleRequire},
		},
		{
			name: "empty title",
			doc:  `<!DOCTYPE html><html><head><title>  </title></head></html>`,
			want: []string{RuleTitleRequire},
		},
		{
			name: "unclosed tag",
			doc:  `<!DOCTYPE html><div><span>x</div>`,
			want: []string{RuleTagPair},
		},
		{
			name: "stray end tag",
			doc:  `<!DOCTYPE html><div></div></span>`,
			want: []string{RuleTagPair},
		},
		{
			name: "never closed",
			doc:  `<!DOCTYPE html><section>`,
			want: []string{RuleTagPair},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := Lint([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rules(issues))
		})
	}
}

func TestLintPositions(t *testing.T) {
	doc := "<!DOCTYPE html>\n<div>\n  <img src=\"a.png\">\n</div>\n"
	issues, err := Lint([]byte(doc))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, RuleAltRequire, issues[0].Rule)
	assert.Equal(t, 3, issues[0].Line)
	assert.Equal(t, 3, issues[0].Column)
	assert.Contains(t, issues[0].String(), "L3:C3")
}

func TestRawAttrNames(t *testing.T) {
	assert.Equal(t, []string{"src", "ALT", "data-x", "hidden"},
		rawAttrNames(`<img src="a b.png" ALT='Some Text' data-x=unquoted/path hidden>`))
	assert.Empty(t, rawAttrNames(`<br/>`))
}
