package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor flattens a markdown document into plain text by walking
// the goldmark AST. Headings and code blocks are kept as text so the chunker
// still sees them; markup syntax itself is dropped.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(input []byte) (string, error) {
	md := goldmark.New()
	reader := text.NewReader(input)
	doc := md.Parser().Parse(reader)

	var sb strings.Builder
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		block := extractBlockText(node, input)
		if block == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(block)
	}
	return sb.String(), nil
}

func extractBlockText(n ast.Node, source []byte) string {
	switch node := n.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var sb strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			sb.Write(line.Value(source))
		}
		return strings.TrimRight(sb.String(), "\n")
	case *ast.List:
		var items []string
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			if item := extractInlineText(child, source); item != "" {
				items = append(items, item)
			}
		}
		return strings.Join(items, "\n")
	default:
		return extractInlineText(n, source)
	}
}

func extractInlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
