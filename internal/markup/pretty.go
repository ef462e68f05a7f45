package markup

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

const indentUnit = "  "

var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "br": true,
	"button": true, "cite": true, "code": true, "data": true, "dfn": true,
	"em": true, "i": true, "img": true, "input": true, "kbd": true,
	"label": true, "mark": true, "q": true, "s": true, "samp": true,
	"select": true, "option": true, "small": true, "span": true,
	"strong": true, "sub": true, "sup": true, "time": true, "u": true,
	"var": true, "wbr": true,
}

var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// printer re-indents a token stream. Block elements get their own line;
// inline elements and text stay on the line of their block. A block whose
// content is inline only is kept on a single line.
type printer struct {
	out       bytes.Buffer
	line      strings.Builder
	lineDepth int
	depth     int
	// open is set while the current line starts with a block start tag
	// that has not seen a block child yet.
	open bool
	// verbatim counts nested <pre>/<textarea> elements.
	verbatim int
	rawText  bool
}

// Pretty re-indents an HTML document. Attributes, comments and the content
// of pre, textarea, script and style elements are preserved as written.
func Pretty(src []byte) ([]byte, error) {
	p := &printer{}
	z := html.NewTokenizer(bytes.NewReader(src))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, err
			}
			break
		}
		raw := string(z.Raw())
		name, _ := z.TagName()
		tag := string(name)

		if p.verbatim > 0 {
			p.line.WriteString(raw)
			switch {
			case tt == html.StartTagToken && isVerbatim(tag):
				p.verbatim++
			case tt == html.EndTagToken && isVerbatim(tag):
				p.verbatim--
				if p.verbatim == 0 {
					p.flushRaw()
				}
			}
			continue
		}

		switch tt {
		case html.DoctypeToken, html.CommentToken:
			p.flush()
			p.writeLine(strings.TrimSpace(raw))

		case html.TextToken:
			if p.rawText {
				p.rawText = false
				p.writeRawText(raw)
				continue
			}
			p.text(raw)

		case html.StartTagToken:
			switch {
			case isVerbatim(tag):
				p.flush()
				p.lineDepth = p.depth
				p.line.WriteString(raw)
				p.verbatim = 1
			case inlineTags[tag]:
				p.inline(raw)
			case voidTags[tag]:
				p.flush()
				p.writeLine(raw)
			default:
				p.flush()
				p.lineDepth = p.depth
				p.line.WriteString(raw)
				p.open = true
				p.depth++
				p.rawText = tag == "script" || tag == "style"
			}

		case html.EndTagToken:
			p.rawText = false
			if inlineTags[tag] {
				p.inline(raw)
				continue
			}
			if voidTags[tag] {
				continue
			}
			if p.depth > 0 {
				p.depth--
			}
			if p.open {
				p.line.WriteString(raw)
				p.flush()
				continue
			}
			p.flush()
			p.writeLine(raw)

		case html.SelfClosingTagToken:
			if inlineTags[tag] {
				p.inline(raw)
				continue
			}
			p.flush()
			p.writeLine(raw)
		}
	}

	p.flush()
	return p.out.Bytes(), nil
}

func isVerbatim(tag string) bool {
	return tag == "pre" || tag == "textarea"
}

func (p *printer) inline(raw string) {
	if p.line.Len() == 0 {
		p.lineDepth = p.depth
	}
	p.line.WriteString(raw)
}

func (p *printer) text(raw string) {
	collapsed := strings.Join(strings.Fields(raw), " ")
	if collapsed == "" {
		if p.line.Len() > 0 && raw != "" {
			p.line.WriteByte(' ')
		}
		return
	}
	if p.line.Len() == 0 {
		p.lineDepth = p.depth
	} else if startsWithSpace(raw) {
		p.line.WriteByte(' ')
	}
	p.line.WriteString(collapsed)
	if endsWithSpace(raw) {
		p.line.WriteByte(' ')
	}
}

// writeRawText emits script or style content. Single-line content stays
// next to its tag; anything longer is written unchanged on its own lines.
func (p *printer) writeRawText(raw string) {
	trimmed := strings.Trim(raw, "\r\n")
	if strings.TrimSpace(trimmed) == "" {
		return
	}
	if !strings.Contains(trimmed, "\n") {
		p.line.WriteString(strings.TrimSpace(trimmed))
		return
	}
	p.flush()
	p.out.WriteString(strings.TrimRight(trimmed, " \t\r\n"))
	p.out.WriteByte('\n')
}

func (p *printer) flush() {
	line := strings.TrimSpace(p.line.String())
	p.line.Reset()
	p.open = false
	if line == "" {
		return
	}
	p.out.WriteString(strings.Repeat(indentUnit, p.lineDepth))
	p.out.WriteString(line)
	p.out.WriteByte('\n')
}

func (p *printer) flushRaw() {
	line := p.line.String()
	p.line.Reset()
	p.open = false
	p.out.WriteString(strings.Repeat(indentUnit, p.lineDepth))
	p.out.WriteString(line)
	p.out.WriteByte('\n')
}

func (p *printer) writeLine(s string) {
	p.open = false
	p.out.WriteString(strings.Repeat(indentUnit, p.depth))
	p.out.WriteString(s)
	p.out.WriteByte('\n')
}

func startsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\r\n\f", rune(s[0]))
}

func endsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\r\n\f", rune(s[len(s)-1]))
}
