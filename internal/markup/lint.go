package markup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Issue is a single validation finding.
type Issue struct {
	Line    int
	Column  int
	Rule    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("L%d:C%d %s (%s)", i.Line, i.Column, i.Message, i.Rule)
}

// Rule names, matching the htmlhint identifiers.
const (
	RuleDoctypeFirst  = "doctype-first"
	RuleTagPair       = "tag-pair"
	RuleIDUnique      = "id-unique"
	RuleAttrLowercase = "attr-lowercase"
	RuleSrcNotEmpty   = "src-not-empty"
	RuleAltRequire    = "alt-require"
	RuleTitleRequire  = "title-require"
)

// srcAttrs lists, per element, the attribute that must not be empty.
var srcAttrs = map[string]string{
	"img":    "src",
	"script": "src",
	"embed":  "src",
	"iframe": "src",
	"frame":  "src",
	"audio":  "src",
	"video":  "src",
	"source": "src",
	"track":  "src",
	"link":   "href",
	"object": "data",
}

type openTag struct {
	name string
	line int
	col  int
}

type linter struct {
	issues    []Issue
	stack     []openTag
	ids       map[string]int
	line, col int

	seenContent bool
	inHead      bool
	headSeen    bool
	titleSeen   bool
	inTitle     bool
	titleText   strings.Builder
}

// Lint checks an HTML document and returns its issues in document order.
// Findings never stop the scan.
func Lint(src []byte) ([]Issue, error) {
	l := &linter{ids: make(map[string]int), line: 1, col: 1}
	z := html.NewTokenizer(bytes.NewReader(src))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return l.issues, err
			}
			break
		}
		raw := z.Raw()
		line, col := l.line, l.col

		switch tt {
		case html.DoctypeToken:
			l.seenContent = true
		case html.CommentToken:
		case html.TextToken:
			if l.inTitle {
				l.titleText.Write(raw)
			}
			if len(bytes.TrimSpace(raw)) > 0 && !l.seenContent {
				l.add(line, col, RuleDoctypeFirst, "Doctype must be declared first.")
				l.seenContent = true
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			l.startTag(z, tt, string(raw), line, col)
		case html.EndTagToken:
			name, _ := z.TagName()
			l.endTag(string(name), line, col)
		}

		l.advance(raw)
	}

	for i := len(l.stack) - 1; i >= 0; i-- {
		t := l.stack[i]
		l.add(t.line, t.col, RuleTagPair, fmt.Sprintf("Tag must be paired, missing: [ </%s> ], start tag match failed [ <%s> ] on line %d.", t.name, t.name, t.line))
	}
	if l.headSeen && !l.titleSeen {
		l.add(1, 1, RuleTitleRequire, "<title> must be present in <head> tag.")
	}
	return l.issues, nil
}

func (l *linter) startTag(z *html.Tokenizer, tt html.TokenType, raw string, line, col int) {
	name, hasAttr := z.TagName()
	tag := string(name)

	if !l.seenContent {
		l.add(line, col, RuleDoctypeFirst, "Doctype must be declared first.")
		l.seenContent = true
	}

	attrs := make(map[string]string)
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		attrs[string(k)] = string(v)
	}

	for _, a := range rawAttrNames(raw) {
		if a != strings.ToLower(a) {
			l.add(line, col, RuleAttrLowercase, fmt.Sprintf("The attribute name of [ %s ] must be in lowercase.", a))
		}
	}

	if id, ok := attrs["id"]; ok && id != "" {
		if first, dup := l.ids[id]; dup {
			l.add(line, col, RuleIDUnique, fmt.Sprintf("The id value [ %s ] must be unique, first used on line %d.", id, first))
		} else {
			l.ids[id] = line
		}
	}

	attr, checked := srcAttrs[tag]
	if tag == "input" && strings.EqualFold(attrs["type"], "image") {
		attr, checked = "src", true
	}
	if checked {
		if v, ok := attrs[attr]; ok && strings.TrimSpace(v) == "" {
			l.add(line, col, RuleSrcNotEmpty, fmt.Sprintf("The attribute [ %s ] of the tag [ %s ] must have a value.", attr, tag))
		}
	}

	_, hasAlt := attrs["alt"]
	switch {
	case tag == "img" && !hasAlt:
		l.add(line, col, RuleAltRequire, "An alt attribute must be present on <img> elements.")
	case tag == "area" && attrs["href"] != "" && !hasAlt:
		l.add(line, col, RuleAltRequire, "An alt attribute must be present on <area> elements with an href.")
	case tag == "input" && strings.EqualFold(attrs["type"], "image") && !hasAlt:
		l.add(line, col, RuleAltRequire, "An alt attribute must be present on <input type=\"image\"> elements.")
	}

	switch tag {
	case "head":
		l.inHead, l.headSeen = true, true
	case "title":
		if l.inHead {
			l.titleSeen = true
			l.inTitle = true
			l.titleText.Reset()
		}
	}

	if tt == html.StartTagToken && !voidTags[tag] {
		l.stack = append(l.stack, openTag{name: tag, line: line, col: col})
	}
}

func (l *linter) endTag(tag string, line, col int) {
	switch tag {
	case "head":
		l.inHead = false
	case "title":
		if l.inTitle && strings.TrimSpace(l.titleText.String()) == "" {
			l.add(line, col, RuleTitleRequire, "<title></title> must not be empty.")
		}
		l.inTitle = false
	}
	if voidTags[tag] {
		return
	}

	for i := len(l.stack) - 1; i >= 0; i-- {
		if l.stack[i].name != tag {
			continue
		}
		for j := len(l.stack) - 1; j > i; j-- {
			t := l.stack[j]
			l.add(t.line, t.col, RuleTagPair, fmt.Sprintf("Tag must be paired, missing: [ </%s> ], start tag match failed [ <%s> ] on line %d.", t.name, t.name, t.line))
		}
		l.stack = l.stack[:i]
		return
	}
	l.add(line, col, RuleTagPair, fmt.Sprintf("Tag must be paired, no start tag: [ </%s> ]", tag))
}

func (l *linter) add(line, col int, rule, msg string) {
	l.issues = append(l.issues, Issue{Line: line, Column: col, Rule: rule, Message: msg})
}

func (l *linter) advance(raw []byte) {
	for _, b := range raw {
		if b == '\n' {
			l.line++
			l.col = 1
			continue
		}
		l.col++
	}
}

// rawAttrNames returns the attribute names of a start tag as written. The
// tokenizer lowercases names, so case checks need the raw text.
func rawAttrNames(raw string) []string {
	isSpace := func(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' }

	i := 1
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' && raw[i] != '/' {
		i++
	}

	var names []string
	for i < len(raw) {
		for i < len(raw) && (isSpace(raw[i]) || raw[i] == '/') {
			i++
		}
		if i >= len(raw) || raw[i] == '>' {
			break
		}
		start := i
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		if i > start {
			names = append(names, raw[start:i])
		}

		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i >= len(raw) || raw[i] != '=' {
			continue
		}
		i++
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i < len(raw) && (raw[i] == '"' || raw[i] == '\'') {
			quote := raw[i]
			i++
			for i < len(raw) && raw[i] != quote {
				i++
			}
			i++
			continue
		}
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' {
			i++
		}
	}
	return names
}
