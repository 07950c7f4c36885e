package render

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// HashTag is a #tag token rewritten into a search link. It shares the
// protected-span scan with the math parsers, so a hashtag-looking sequence
// inside math is never linkified.
type HashTag struct {
	ast.BaseInline
	Tag string
}

// KindHashTag is the node kind of HashTag.
var KindHashTag = ast.NewNodeKind("HashTag")

// Kind implements ast.Node.
func (n *HashTag) Kind() ast.NodeKind { return KindHashTag }

// Dump implements ast.Node.
func (n *HashTag) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Tag": n.Tag}, nil)
}

// hashtagParser matches # followed by a letter and one or more further
// letters, digits, hyphens, or underscores.
type hashtagParser struct{}

func (p *hashtagParser) Trigger() []byte { return []byte{'#'} }

func (p *hashtagParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 3 || !isLetter(line[1]) {
		return nil
	}
	end := 2
	for end < len(line) && isTagByte(line[end]) {
		end++
	}
	if end < 3 {
		return nil
	}
	tag := string(line[1:end])
	block.Advance(end)
	return &HashTag{Tag: tag}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isTagByte(b byte) bool {
	return isLetter(b) || (b >= '0' && b <= '9') || b == '-' || b == '_'
}
