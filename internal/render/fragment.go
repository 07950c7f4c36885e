package render

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/calden/knowld/internal/knowl"
)

// directiveMarker delimits deferred-expansion directives in converted
// output. US (unit separator) never appears in legitimate content; if it
// does, compilation fails and the failure is contained as an inline
// notice.
const directiveMarker = "\x1f"

// Node is one element of a compiled fragment template. A template is the
// phase-1 intermediate representation: literals interleaved with typed
// directives, expanded in phase 2 against a Context.
type Node interface {
	expand(sb *strings.Builder, ctx Context)
}

// Literal is already-final HTML.
type Literal string

func (n Literal) expand(sb *strings.Builder, _ Context) {
	sb.WriteString(string(n))
}

// Transclude is a deferred knowl embed. Expansion produces an embed box
// carrying the nested render URL; the referenced content is fetched by a
// separate, independently cacheable rendering request, never inline.
type Transclude struct {
	ID string
}

func (n Transclude) expand(sb *strings.Builder, ctx Context) {
	target := ctx.Links.Render(n.ID)
	if len(ctx.Vars) > 0 {
		target += "?" + ctx.Vars.Encode()
	}
	sb.WriteString(`<div class="knowl-embed" data-knowl="`)
	sb.WriteString(html.EscapeString(n.ID))
	sb.WriteString(`" data-render-url="`)
	sb.WriteString(html.EscapeString(target))
	sb.WriteString(`"><a href="`)
	sb.WriteString(html.EscapeString(ctx.Links.Show(n.ID)))
	sb.WriteString(`">`)
	sb.WriteString(html.EscapeString(n.ID))
	sb.WriteString(`</a></div>`)
}

// Conditional expands its children only for authenticated requests.
type Conditional struct {
	Authenticated []Node
}

func (n Conditional) expand(sb *strings.Builder, ctx Context) {
	if !ctx.Authenticated {
		return
	}
	for _, c := range n.Authenticated {
		c.expand(sb, ctx)
	}
}

// Template is the compiled intermediate representation of a fragment.
type Template []Node

// Context is the phase-2 expansion state for one rendering request.
type Context struct {
	Authenticated bool
	Vars          url.Values
	Links         Links
}

// Expand walks the template against ctx and produces the final fragment.
func (t Template) Expand(ctx Context) string {
	var sb strings.Builder
	for _, n := range t {
		n.expand(&sb, ctx)
	}
	return sb.String()
}

// Compile splits converted HTML into the intermediate representation,
// turning each deferred-expansion directive into a Transclude node.
func Compile(converted string) (Template, error) {
	parts := strings.Split(converted, directiveMarker)
	if len(parts)%2 == 0 {
		return nil, fmt.Errorf("render: unterminated transclusion directive")
	}
	tmpl := make(Template, 0, len(parts))
	for i, p := range parts {
		if i%2 == 0 {
			if p != "" {
				tmpl = append(tmpl, Literal(p))
			}
			continue
		}
		if !knowl.ValidID(p) {
			return nil, fmt.Errorf("render: malformed transclusion directive %q", p)
		}
		tmpl = append(tmpl, Transclude{ID: p})
	}
	return tmpl, nil
}

// Request describes one fragment rendering. It never mutates the knowl;
// Content may be an unsaved-preview override of the stored content.
type Request struct {
	ID            string
	Title         string
	Content       string
	Footer        bool
	Authenticated bool
	Vars          url.Values
}

// Rendered is the pipeline result. HTML is always embeddable: when a stage
// failed, it holds the inline error notice and Contained carries the
// failure. A broken knowl must never break the page embedding it.
type Rendered struct {
	HTML      string
	Contained error
}

// Assembler wraps convert + compile + expand into page-embeddable
// fragments. Like the Renderer it is immutable and concurrency-safe.
type Assembler struct {
	r        *Renderer
	titlePol *bluemonday.Policy
}

// NewAssembler creates an Assembler on top of the given Renderer.
func NewAssembler(r *Renderer) *Assembler {
	return &Assembler{
		r:        r,
		titlePol: bluemonday.StrictPolicy(),
	}
}

// Render produces a fragment for req, containing any failure locally.
func (a *Assembler) Render(req Request) Rendered {
	frag, err := a.assemble(req)
	if err != nil {
		return Rendered{HTML: errorNotice(err), Contained: err}
	}
	return Rendered{HTML: frag}
}

func (a *Assembler) assemble(req Request) (string, error) {
	converted, err := a.r.Convert(req.Content)
	if err != nil {
		return "", err
	}
	content, err := Compile(converted)
	if err != nil {
		return "", err
	}

	links := a.r.Links()
	tmpl := Template{Literal(`<div class="knowl">`)}

	if req.Footer {
		title := strings.TrimSpace(a.titlePol.Sanitize(req.Title))
		if title == "" {
			title = html.EscapeString(req.ID)
		}
		tmpl = append(tmpl, Literal(
			`<div class="knowl-header"><a href="`+html.EscapeString(links.Show(req.ID))+`">`+title+`</a></div>`))
	}

	tmpl = append(tmpl, Literal(`<div><div class="knowl-content">`))
	tmpl = append(tmpl, content...)
	tmpl = append(tmpl, Literal(`</div></div>`))

	if req.Footer {
		show := html.EscapeString(links.Show(req.ID))
		edit := html.EscapeString(links.Edit(req.ID))
		tmpl = append(tmpl,
			Literal(`<div class="knowl-footer"><a href="`+show+`">permalink</a>`),
			Conditional{Authenticated: []Node{
				Literal(` &middot; <a href="` + edit + `">edit</a>`),
			}},
			Literal(`</div>`),
		)
	}

	tmpl = append(tmpl, Literal(`</div>`))

	return tmpl.Expand(Context{
		Authenticated: req.Authenticated,
		Vars:          req.Vars,
		Links:         links,
	}), nil
}

// errorNotice formats a contained failure as a plain fragment so the
// embedding page stays intact.
func errorNotice(err error) string {
	return `<div class="knowl knowl-error">ERROR in the knowl: ` +
		html.EscapeString(err.Error()) +
		`. Please edit it to resolve the problem.</div>`
}
