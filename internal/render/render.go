// Package render implements the transclusion rendering pipeline: protected
// math spans, hashtag links, knowl references, markup conversion, and the
// two-phase fragment assembly with failure containment.
package render

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Config holds the immutable pipeline configuration, built once at process
// start and shared by every rendering call.
type Config struct {
	// BasePath is the URL prefix of the knowledge views (index, show,
	// edit, render), e.g. "/knowledge".
	BasePath string
	// GlossaryBase is the base URL for [[Topic]] wikilinks that are not
	// knowl references.
	GlossaryBase string
}

// Links builds the URLs embedded into rendered fragments.
type Links struct {
	base string
}

// NewLinks creates a Links rooted at the given base path.
func NewLinks(basePath string) Links {
	return Links{base: strings.TrimRight(basePath, "/")}
}

// Index returns the URL of the index/search view.
func (l Links) Index() string { return l.base + "/" }

// Search returns the index URL filtered by the given hashtag.
func (l Links) Search(tag string) string {
	return l.base + "/?search=%23" + url.QueryEscape(tag)
}

// Show returns the permalink of a knowl.
func (l Links) Show(id string) string { return l.base + "/show/" + url.PathEscape(id) }

// Edit returns the edit view URL of a knowl.
func (l Links) Edit(id string) string { return l.base + "/edit/" + url.PathEscape(id) }

// Render returns the fragment-render URL of a knowl.
func (l Links) Render(id string) string { return l.base + "/render/" + url.PathEscape(id) }

// Renderer wraps the configured markup converter. It is immutable and safe
// for concurrent use; construct it once and pass it by reference.
type Renderer struct {
	md    goldmark.Markdown
	links Links
}

// New builds the converter with the protected-span families registered as
// inline parsers. They share one left-to-right scan; priority order is the
// precedence order: display math, inline math, backslash math, hashtags,
// then knowl references and wikilinks, all ahead of links and emphasis so
// markup-special characters inside math never get reinterpreted.
func New(cfg Config) *Renderer {
	links := NewLinks(cfg.BasePath)
	md := goldmark.New(
		goldmark.WithExtensions(&spanExtension{
			links:    links,
			glossary: cfg.GlossaryBase,
		}),
		// Authors may mix raw HTML into knowl content; it must survive
		// conversion rather than being stripped to placeholder comments.
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &Renderer{md: md, links: links}
}

// Links exposes the URL builder shared with the assembler.
func (r *Renderer) Links() Links { return r.links }

// Convert runs the markup conversion over src and returns the resulting
// HTML, with protected spans passed through verbatim and knowl references
// replaced by deferred-expansion directives.
func (r *Renderer) Convert(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render: convert: %w", err)
	}
	return buf.String(), nil
}

// spanExtension registers the inline parsers and their node renderers.
type spanExtension struct {
	links    Links
	glossary string
}

func (e *spanExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(&displayMathParser{}, 150),
		util.Prioritized(&inlineMathParser{}, 151),
		util.Prioritized(&bracketMathParser{}, 152),
		util.Prioritized(&hashtagParser{}, 153),
		util.Prioritized(&refParser{}, 154),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&spanRenderer{links: e.links, glossary: e.glossary}, 500),
	))
}
