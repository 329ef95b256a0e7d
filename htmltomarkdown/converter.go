package htmltomarkdown

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/cargomcp"
	"golang.org/x/net/html"
)

// Ensure Converter implements cargomcp.Converter at compile time.
var _ cargomcp.Converter = (*Converter)(nil)

// chrome matches rustdoc page furniture that carries no documentation:
// heading anchors and source links among others.
const chrome = "script, style, button, summary, wbr, a.anchor, a.doc-anchor, a.src, a.srclink, " +
	"#copy-path, rustdoc-toolbar, rustdoc-breadcrumbs, .rustdoc-breadcrumbs, .out-of-band .since"

// Converter wraps html-to-markdown to convert rustdoc HTML to Markdown.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a new Converter.
func NewConverter() *Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return &Converter{conv: conv}
}

// Convert transforms an HTML fragment into Markdown. Rustdoc chrome is
// dropped and rust code blocks keep their language hint.
func (c *Converter) Convert(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", cargomcp.Errorf(cargomcp.EINVALID, "empty HTML input")
	}

	node, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return "", cargomcp.Errorf(cargomcp.EINVALID, "failed to parse HTML: %v", err)
	}

	doc := goquery.NewDocumentFromNode(node)
	doc.Find(chrome).Remove()
	doc.Find("pre.rust").Each(func(_ int, pre *goquery.Selection) {
		code := pre.ChildrenFiltered("code")
		if code.Length() == 0 {
			return
		}
		if class, _ := code.Attr("class"); !strings.Contains(class, "language-") {
			code.AddClass("language-rust")
		}
	})

	result, err := c.conv.ConvertNode(node)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(result)), nil
}
