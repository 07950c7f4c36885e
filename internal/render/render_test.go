package render

import (
	"strings"
	"testing"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	return New(Config{
		BasePath:     "/knowledge",
		GlossaryBase: "http://wiki.l-functions.org/",
	})
}

func TestConvert_MathSpansVerbatim(t *testing.T) {
	r := testRenderer(t)
	spans := []string{
		`$a_i * b_j$`,
		`$$\sum_{n=1}^\infty 1/n^2$$`,
		`\(x_1 + y_2\)`,
		`\[ \frac{a}{b} \]`,
	}
	for _, span := range spans {
		out, err := r.Convert("before " + span + " after")
		if err != nil {
			t.Fatalf("Convert(%q): %v", span, err)
		}
		if !strings.Contains(out, span) {
			t.Errorf("math span %q not byte-identical in output:\n%s", span, out)
		}
	}
}

func TestConvert_MarkupSpecialsInertInsideMath(t *testing.T) {
	r := testRenderer(t)
	in := `$a_b #tag [[ref.x]] *em*$`
	out, err := r.Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(out, in) {
		t.Errorf("protected span altered:\n%s", out)
	}
	if strings.Contains(out, "<em>") || strings.Contains(out, "search=%23") || strings.Contains(out, directiveMarker) {
		t.Errorf("markup interpreted inside math span:\n%s", out)
	}
}

func TestConvert_UnmatchedDollarIsLiteral(t *testing.T) {
	r := testRenderer(t)
	out, err := r.Convert("it costs $5 at most")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(out, "$5 at most") {
		t.Errorf("unmatched dollar mangled:\n%s", out)
	}
}

func TestConvert_DisplayMathNonGreedy(t *testing.T) {
	r := testRenderer(t)
	out, err := r.Convert(`$$a$$ mid $$b$$`)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(out, "$$a$$ mid $$b$$") {
		t.Errorf("display spans wrong:\n%s", out)
	}
}

func TestConvert_Hashtag(t *testing.T) {
	r := testRenderer(t)
	out, err := r.Convert("about #foo here")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(out, "search=%23foo") {
		t.Errorf("hashtag target missing:\n%s", out)
	}
	if !strings.Contains(out, ">#foo</a>") {
		t.Errorf("hashtag text missing:\n%s", out)
	}
}

func TestConvert_HashtagTooShortIsLiteral(t *testing.T) {
	r := testRenderer(t)
	out, err := r.Convert("just #a alone")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if strings.Contains(out, "search=") {
		t.Errorf("single-letter hashtag linkified:\n%s", out)
	}
}

func TestConvert_KnowlRefBecomesDirective(t *testing.T) {
	r := testRenderer(t)
	out, err := r.Convert("see [[ group.sylow ]] for details")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if strings.Contains(out, "[[") {
		t.Errorf("literal brackets survived:\n%s", out)
	}
	if !strings.Contains(out, directiveMarker+"group.sylow"+directiveMarker) {
		t.Errorf("directive missing:\n%s", out)
	}
}

func TestConvert_WikiLinkToGlossary(t *testing.T) {
	r := testRenderer(t)
	out, err := r.Convert("see [[Riemann Hypothesis]]")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(out, `href="http://wiki.l-functions.org/Riemann_Hypothesis"`) {
		t.Errorf("glossary link missing:\n%s", out)
	}
	if !strings.Contains(out, ">Riemann Hypothesis</a>") {
		t.Errorf("glossary link text missing:\n%s", out)
	}
}

func TestConvert_StandardMarkupStillWorks(t *testing.T) {
	r := testRenderer(t)
	out, err := r.Convert("# Heading\n\nsome *emphasis* text")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(out, "<h1>Heading</h1>") {
		t.Errorf("heading not converted:\n%s", out)
	}
	if !strings.Contains(out, "<em>emphasis</em>") {
		t.Errorf("emphasis not converted:\n%s", out)
	}
}

func TestConvert_InlineHTMLPreserved(t *testing.T) {
	r := testRenderer(t)
	out, err := r.Convert("a <b>bold</b> claim")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(out, "<b>bold</b>") {
		t.Errorf("inline HTML not preserved:\n%s", out)
	}
	if strings.Contains(out, "raw HTML omitted") {
		t.Errorf("inline HTML stripped to placeholder:\n%s", out)
	}
}

// Round-trip stability: converting the converter's own output again must
// not alter resolved math spans.
func TestConvert_MathRoundTripStable(t *testing.T) {
	r := testRenderer(t)
	first, err := r.Convert(`inline $a_b$ and \(c_d\)`)
	if err != nil {
		t.Fatalf("first Convert: %v", err)
	}
	second, err := r.Convert(first)
	if err != nil {
		t.Fatalf("second Convert: %v", err)
	}
	for _, span := range []string{`$a_b$`, `\(c_d\)`} {
		if !strings.Contains(second, span) {
			t.Errorf("span %q unstable after re-conversion:\n%s", span, second)
		}
	}
}
