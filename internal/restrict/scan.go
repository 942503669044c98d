package restrict

import (
	"strings"

	"golang.org/x/net/html"
)

// span is the byte range of one marked element within a content string.
type span struct {
	tag        string
	attrs      map[string]string
	start      int // first byte of the start tag
	innerStart int // first byte after the start tag
	innerEnd   int // first byte of the matching end tag
	end        int // first byte after the matching end tag
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// findElements returns the outermost elements carrying marker, in document
// order. Nested marked elements are part of their ancestor's span. An element
// left open at end of input extends to the end.
func findElements(content, marker string) []span {
	if !strings.Contains(content, marker) {
		return nil
	}

	z := html.NewTokenizer(strings.NewReader(content))
	var (
		spans   []span
		current *span
		depth   int
		offset  int
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		start := offset
		offset += len(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if current != nil {
				if tt == html.StartTagToken && tag == current.tag {
					depth++
				}
				continue
			}
			if !hasAttr {
				continue
			}
			attrs := readAttrs(z)
			if _, ok := attrs[marker]; !ok {
				continue
			}
			sp := span{tag: tag, attrs: attrs, start: start, innerStart: offset}
			if tt == html.SelfClosingTagToken || voidElements[tag] {
				sp.innerEnd, sp.end = offset, offset
				spans = append(spans, sp)
				continue
			}
			current = &sp
			depth = 1

		case html.EndTagToken:
			if current == nil {
				continue
			}
			name, _ := z.TagName()
			if string(name) != current.tag {
				continue
			}
			depth--
			if depth == 0 {
				current.innerEnd = start
				current.end = offset
				spans = append(spans, *current)
				current = nil
			}
		}
	}

	if current != nil {
		current.innerEnd = len(content)
		current.end = len(content)
		spans = append(spans, *current)
	}
	return spans
}

func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		attrs[string(key)] = string(val)
		if !more {
			break
		}
	}
	return attrs
}
