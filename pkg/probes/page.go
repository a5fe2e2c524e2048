package probes

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

type scriptTag struct {
	src       string
	integrity string
	inline    string
}

type inputTag struct {
	kind string
	name string
}

// page is the subset of an HTML document the probes inspect.
type page struct {
	scripts []scriptTag
	metas   map[string]string
	inputs  []inputTag
	forms   int
}

// parsePage tokenizes body. Malformed markup yields whatever was read
// before the tokenizer gave up.
func parsePage(body []byte) *page {
	p := &page{metas: map[string]string{}}
	z := html.NewTokenizer(bytes.NewReader(body))
	var current *scriptTag
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return p
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "script":
				st := scriptTag{src: attr(tok, "src"), integrity: attr(tok, "integrity")}
				p.scripts = append(p.scripts, st)
				if tt == html.StartTagToken {
					current = &p.scripts[len(p.scripts)-1]
				}
			case "meta":
				if name := strings.ToLower(attr(tok, "name")); name != "" {
					p.metas[name] = attr(tok, "content")
				}
			case "input":
				p.inputs = append(p.inputs, inputTag{
					kind: strings.ToLower(attr(tok, "type")),
					name: attr(tok, "name"),
				})
			case "form":
				p.forms++
			}
		case html.TextToken:
			if current != nil {
				current.inline += string(z.Text())
			}
		case html.EndTagToken:
			if tn, _ := z.TagName(); string(tn) == "script" {
				current = nil
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
