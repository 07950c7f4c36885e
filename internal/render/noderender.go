package render

import (
	"html"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// spanRenderer renders the custom inline nodes produced by the
// protected-span parsers.
type spanRenderer struct {
	links    Links
	glossary string
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *spanRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMathSpan, r.renderMathSpan)
	reg.Register(KindHashTag, r.renderHashTag)
	reg.Register(KindKnowlRef, r.renderKnowlRef)
	reg.Register(KindWikiLink, r.renderWikiLink)
}

// renderMathSpan writes the span byte-for-byte. No escaping: the client
// side math engine needs the notation untouched.
func (r *spanRenderer) renderMathSpan(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.Write(node.(*MathSpan).Value)
	}
	return ast.WalkContinue, nil
}

func (r *spanRenderer) renderHashTag(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		tag := node.(*HashTag).Tag
		_, _ = w.WriteString(`<a href="` + r.links.Search(tag) + `">#` + html.EscapeString(tag) + `</a>`)
	}
	return ast.WalkContinue, nil
}

// renderKnowlRef leaves a deferred-expansion directive for the assembler;
// the referenced knowl is not fetched here.
func (r *spanRenderer) renderKnowlRef(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(directiveMarker + node.(*KnowlRef).ID + directiveMarker)
	}
	return ast.WalkContinue, nil
}

func (r *spanRenderer) renderWikiLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		topic := node.(*WikiLink).Topic
		href := r.glossary + strings.ReplaceAll(topic, " ", "_")
		_, _ = w.WriteString(`<a class="wiki" href="` + html.EscapeString(href) + `">` + html.EscapeString(topic) + `</a>`)
	}
	return ast.WalkContinue, nil
}
