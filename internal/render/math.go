package render

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// MathSpan is a protected verbatim span. Its Value (delimiters included)
// is emitted byte-for-byte so notation like $a_i*b$ survives conversion.
type MathSpan struct {
	ast.BaseInline
	Value []byte
}

// KindMathSpan is the node kind of MathSpan.
var KindMathSpan = ast.NewNodeKind("MathSpan")

// Kind implements ast.Node.
func (n *MathSpan) Kind() ast.NodeKind { return KindMathSpan }

// Dump implements ast.Node.
func (n *MathSpan) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Value": string(n.Value)}, nil)
}

func newMathSpan(raw []byte) *MathSpan {
	return &MathSpan{Value: append([]byte(nil), raw...)}
}

// displayMathParser protects $$...$$ spans (non-greedy to the next $$).
type displayMathParser struct{}

func (p *displayMathParser) Trigger() []byte { return []byte{'$'} }

func (p *displayMathParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 5 || line[1] != '$' {
		return nil
	}
	if block.PrecendingCharacter() == '\\' {
		return nil
	}
	// Closing $$ with at least one character between.
	end := bytes.Index(line[3:], []byte("$$"))
	if end < 0 {
		return nil
	}
	span := line[:end+5]
	block.Advance(len(span))
	return newMathSpan(span)
}

// inlineMathParser protects $...$ spans. The span must not start with a
// second dollar (that is display math) and must not be preceded by a
// backslash or another dollar. An unmatched $ is left as literal text.
type inlineMathParser struct{}

func (p *inlineMathParser) Trigger() []byte { return []byte{'$'} }

func (p *inlineMathParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 3 || line[1] == '$' {
		return nil
	}
	if prev := block.PrecendingCharacter(); prev == '\\' || prev == '$' {
		return nil
	}
	end := bytes.IndexByte(line[1:], '$')
	if end < 0 {
		return nil
	}
	span := line[:end+2]
	block.Advance(len(span))
	return newMathSpan(span)
}

// bracketMathParser protects \(...\) and \[...\] spans.
type bracketMathParser struct{}

func (p *bracketMathParser) Trigger() []byte { return []byte{'\\'} }

func (p *bracketMathParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 5 {
		return nil
	}
	var closer []byte
	switch line[1] {
	case '(':
		closer = []byte(`\)`)
	case '[':
		closer = []byte(`\]`)
	default:
		return nil
	}
	end := bytes.Index(line[3:], closer)
	if end < 0 {
		return nil
	}
	span := line[:end+5]
	block.Advance(len(span))
	return newMathSpan(span)
}
