package assemble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	buildStart = regexp.MustCompile(`^\s*build:(\w+)(?:\(([^)]*)\))?(?:\s+(\S+))?\s*$`)
	buildEnd   = regexp.MustCompile(`^\s*endbuild\s*$`)
)

// Block is one <!-- build:type target --> ... <!-- endbuild --> section.
type Block struct {
	Kind   string
	Search string
	Target string
	Refs   []string
}

// Tag returns the single reference that replaces the block.
func (b Block) Tag() string {
	switch b.Kind {
	case "js":
		return fmt.Sprintf(`<script src="%s"></script>`, b.Target)
	case "css":
		return fmt.Sprintf(`<link rel="stylesheet" href="%s">`, b.Target)
	}
	return ""
}

// ParseUseRef replaces every build block in doc with a single reference and
// returns the rewritten document and the blocks found. Everything outside
// the blocks is kept byte for byte.
func ParseUseRef(doc []byte) ([]byte, []Block, error) {
	var (
		out    bytes.Buffer
		blocks []Block
		cur    *Block
	)

	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, nil, err
			}
			break
		}
		raw := string(z.Raw())

		if tt == html.CommentToken {
			text := string(z.Text())
			if m := buildStart.FindStringSubmatch(text); m != nil {
				if cur != nil {
					return nil, nil, fmt.Errorf("nested build block %q", m[3])
				}
				switch {
				case m[1] != "js" && m[1] != "css" && m[1] != "remove":
					return nil, nil, fmt.Errorf("unsupported build block type %q", m[1])
				case m[1] != "remove" && m[3] == "":
					return nil, nil, fmt.Errorf("build:%s block without target", m[1])
				}
				cur = &Block{Kind: m[1], Search: m[2], Target: m[3]}
				continue
			}
			if buildEnd.MatchString(text) {
				if cur == nil {
					return nil, nil, fmt.Errorf("endbuild without build block")
				}
				out.WriteString(cur.Tag())
				blocks = append(blocks, *cur)
				cur = nil
				continue
			}
		}

		if cur == nil {
			out.WriteString(raw)
			continue
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		name, hasAttr := z.TagName()
		var want string
		switch string(name) {
		case "script":
			want = "src"
		case "link":
			want = "href"
		default:
			continue
		}
		for hasAttr {
			var k, v []byte
			k, v, hasAttr = z.TagAttr()
			if string(k) == want && len(v) > 0 {
				cur.Refs = append(cur.Refs, string(v))
			}
		}
	}

	if cur != nil {
		return nil, nil, fmt.Errorf("build block %q is missing endbuild", cur.Target)
	}
	return out.Bytes(), blocks, nil
}

// UseRef rewrites build blocks in HTML assets and emits one concatenated
// asset per block. References are resolved against the page's directory,
// or against baseDir when they start with a slash.
func UseRef(baseDir string) Stage {
	return Stage{
		Name:  "useref",
		Files: "*.html",
		Apply: func(_ context.Context, a *Asset) ([]*Asset, error) {
			b, err := a.Content()
			if err != nil {
				return nil, err
			}
			doc, blocks, err := ParseUseRef(b)
			if err != nil {
				return nil, fmt.Errorf("useref %s: %w", a.Rel, err)
			}
			if len(blocks) == 0 {
				return nil, nil
			}
			a.SetContent(doc)

			var emitted []*Asset
			for _, block := range blocks {
				if block.Kind == "remove" {
					continue
				}
				bundle, err := concat(a, baseDir, block)
				if err != nil {
					return nil, err
				}
				emitted = append(emitted, bundle)
			}
			return emitted, nil
		},
	}
}

func concat(page *Asset, baseDir string, block Block) (*Asset, error) {
	pageDir := baseDir
	if page.Src != "" {
		pageDir = filepath.Dir(page.Src)
	}
	searchDir := pageDir
	if block.Search != "" {
		searchDir = filepath.Join(pageDir, filepath.FromSlash(block.Search))
	}

	var buf bytes.Buffer
	for i, ref := range block.Refs {
		ref = stripQuery(ref)
		var src string
		if strings.HasPrefix(ref, "/") {
			src = filepath.Join(baseDir, filepath.FromSlash(ref))
		} else {
			src = filepath.Join(searchDir, filepath.FromSlash(ref))
		}
		part := &Asset{Src: src}
		b, err := part.Content()
		if err != nil {
			return nil, fmt.Errorf("useref %s: %w", page.Rel, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(b)
	}

	bundle := &Asset{Rel: bundleRel(page.Rel, block.Target)}
	bundle.SetContent(buf.Bytes())
	return bundle, nil
}

func bundleRel(pageRel, target string) string {
	target = stripQuery(target)
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(path.Dir(pageRel), target))
}

func stripQuery(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Scheme == "" && u.Host == "" {
		return u.Path
	}
	return ref
}
