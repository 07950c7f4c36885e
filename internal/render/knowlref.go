package render

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/calden/knowld/internal/knowl"
)

// KnowlRef is a [[knowl-id]] transclusion reference. It is not expanded at
// parse time; the node renderer emits a deferred-expansion directive that
// the fragment assembler later resolves, so cyclic references become
// nested embed boxes instead of infinite recursion.
type KnowlRef struct {
	ast.BaseInline
	ID string
}

// KindKnowlRef is the node kind of KnowlRef.
var KindKnowlRef = ast.NewNodeKind("KnowlRef")

// Kind implements ast.Node.
func (n *KnowlRef) Kind() ast.NodeKind { return KindKnowlRef }

// Dump implements ast.Node.
func (n *KnowlRef) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"ID": n.ID}, nil)
}

// WikiLink is a [[Topic]] reference that is not a knowl identifier; it
// links to the external glossary site.
type WikiLink struct {
	ast.BaseInline
	Topic string
}

// KindWikiLink is the node kind of WikiLink.
var KindWikiLink = ast.NewNodeKind("WikiLink")

// Kind implements ast.Node.
func (n *WikiLink) Kind() ast.NodeKind { return KindWikiLink }

// Dump implements ast.Node.
func (n *WikiLink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Topic": n.Topic}, nil)
}

// refParser handles [[ ... ]]: a valid knowl identifier (optionally
// surrounded by spaces) becomes a KnowlRef; any other non-empty inner text
// becomes a glossary WikiLink.
type refParser struct{}

func (p *refParser) Trigger() []byte { return []byte{'['} }

func (p *refParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 5 || line[1] != '[' {
		return nil
	}
	end := bytes.Index(line[2:], []byte("]]"))
	if end < 0 {
		return nil
	}
	inner := strings.TrimSpace(string(line[2 : 2+end]))
	if inner == "" {
		return nil
	}
	block.Advance(end + 4)
	if knowl.ValidID(inner) {
		return &KnowlRef{ID: inner}
	}
	return &WikiLink{Topic: inner}
}
