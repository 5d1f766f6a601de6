package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// IgnoredTags are dropped from conversion together with everything inside them.
var IgnoredTags = []string{
	"a", "img", "script", "style", "svg", "header", "footer", "nav", "aside", "form",
	"input", "button", "iframe", "object", "embed", "video", "audio", "canvas", "map",
	"area", "base", "link", "meta", "title", "head", "col", "colgroup",
}

// MaxConsecutiveNewlines bounds blank runs in converted output.
const MaxConsecutiveNewlines = 2

var ignored = func() map[string]bool {
	m := make(map[string]bool, len(IgnoredTags))
	for _, t := range IgnoredTags {
		m[t] = true
	}
	return m
}()

var (
	newlineRun = regexp.MustCompile(`\n{3,}`)
	spaceRun   = regexp.MustCompile(`[ \t\r\n\f]+`)
	trailingWS = regexp.MustCompile(`[ \t]+\n`)
)

// ToMarkdown converts an HTML fragment to markdown.
func ToMarkdown(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	var c converter
	for _, n := range doc.Nodes {
		c.children(n)
	}
	out := trailingWS.ReplaceAllString(c.b.String(), "\n")
	out = newlineRun.ReplaceAllString(out, strings.Repeat("\n", MaxConsecutiveNewlines))
	return strings.TrimSpace(out), nil
}

// PageMarkdown renders a distilled page as a titled markdown document.
func PageMarkdown(title, content string) (string, error) {
	body, err := ToMarkdown(content)
	if err != nil {
		return "", err
	}
	title = strings.TrimSpace(spaceRun.ReplaceAllString(title, " "))
	if title == "" {
		return body, nil
	}
	return "# " + title + "\n\n" + body, nil
}

type converter struct {
	b     strings.Builder
	pre   int
	lists []listState
	quote int
}

type listState struct {
	ordered bool
	n       int
}

func (c *converter) children(n *html.Node) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.node(ch)
	}
}

func (c *converter) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		c.text(n.Data)
		return
	case html.DocumentNode:
		c.children(n)
		return
	case html.ElementNode:
	default:
		return
	}
	tag := n.Data
	if ignored[tag] {
		return
	}
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level, _ := strconv.Atoi(tag[1:])
		c.block()
		c.write(strings.Repeat("#", level) + " ")
		c.children(n)
		c.block()
	case "p", "div", "section", "article", "main", "figure", "figcaption", "dl", "dd", "dt", "details", "summary":
		c.block()
		c.children(n)
		c.block()
	case "br":
		c.newline()
	case "hr":
		c.block()
		c.write("---")
		c.block()
	case "strong", "b":
		c.wrap(n, "**")
	case "em", "i":
		c.wrap(n, "_")
	case "del", "s", "strike":
		c.wrap(n, "~~")
	case "code":
		if c.pre > 0 {
			c.children(n)
			return
		}
		c.wrap(n, "`")
	case "pre":
		c.block()
		c.write("```\n")
		c.pre++
		c.children(n)
		c.pre--
		c.newline()
		c.write("```")
		c.block()
	case "blockquote":
		c.block()
		c.quote++
		c.write("> ")
		c.children(n)
		c.quote--
		c.block()
	case "ul", "ol":
		c.block()
		c.lists = append(c.lists, listState{ordered: tag == "ol"})
		c.children(n)
		c.lists = c.lists[:len(c.lists)-1]
		c.block()
	case "li":
		c.newline()
		depth := len(c.lists)
		if depth > 1 {
			c.write(strings.Repeat("  ", depth-1))
		}
		if depth > 0 && c.lists[depth-1].ordered {
			c.lists[depth-1].n++
			c.write(strconv.Itoa(c.lists[depth-1].n) + ". ")
		} else {
			c.write("- ")
		}
		c.children(n)
	case "tr":
		c.newline()
		c.write("|")
		c.children(n)
	case "td", "th":
		c.write(" ")
		c.children(n)
		c.write(" |")
	case "table", "thead", "tbody", "tfoot":
		c.block()
		c.children(n)
		c.block()
	default:
		c.children(n)
	}
}

func (c *converter) wrap(n *html.Node, marker string) {
	var inner converter
	inner.pre = c.pre
	inner.children(n)
	text := strings.TrimSpace(inner.b.String())
	if text == "" {
		return
	}
	c.write(marker + text + marker)
}

func (c *converter) text(s string) {
	if c.pre > 0 {
		c.b.WriteString(s)
		return
	}
	s = spaceRun.ReplaceAllString(s, " ")
	if s == " " && c.atLineStart() {
		return
	}
	if c.atLineStart() {
		s = strings.TrimLeft(s, " ")
	}
	c.write(s)
}

func (c *converter) write(s string) {
	if s == "" {
		return
	}
	c.b.WriteString(s)
}

func (c *converter) atLineStart() bool {
	str := c.b.String()
	return str == "" || strings.HasSuffix(str, "\n") || strings.HasSuffix(str, "> ")
}

func (c *converter) newline() {
	if c.b.Len() == 0 {
		return
	}
	c.b.WriteString("\n")
	if c.quote > 0 {
		c.b.WriteString(strings.Repeat("> ", c.quote))
	}
}

// block ends the current paragraph with a blank line.
func (c *converter) block() {
	if c.b.Len() == 0 {
		return
	}
	str := c.b.String()
	switch {
	case strings.HasSuffix(str, "\n\n"):
	case strings.HasSuffix(str, "\n"):
		c.b.WriteString("\n")
	default:
		c.b.WriteString("\n\n")
	}
}
