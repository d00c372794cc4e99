package syntax

import (
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Render produces the canonical text of a node: the node's source dedented to
// column 0, with comments removed, comment-only lines dropped and trailing
// whitespace stripped from every line.
//
// Render(n) re-parses to a node of the same shape, which is what callers rely
// on when comparing declarations across files.
func Render(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if end > uint32(len(source)) || start > end {
		return ""
	}

	comments := collectComments(n)
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].StartByte() < comments[j].StartByte()
	})

	var sb strings.Builder
	cursor := start
	for _, c := range comments {
		if c.StartByte() < cursor {
			continue
		}
		sb.WriteString(string(source[cursor:c.StartByte()]))
		cursor = c.EndByte()

		// Remove the whitespace that led up to the comment. If nothing else
		// is left on the line, the line itself goes too.
		kept := strings.TrimRight(sb.String(), " \t")
		sb.Reset()
		sb.WriteString(kept)
		if kept == "" || strings.HasSuffix(kept, "\n") {
			if cursor < end && source[cursor] == '\r' {
				cursor++
			}
			if cursor < end && source[cursor] == '\n' {
				cursor++
			}
		}
	}
	if cursor < end {
		sb.WriteString(string(source[cursor:end]))
	}

	indent := int(n.StartPoint().Column)
	lines := strings.Split(strings.ReplaceAll(sb.String(), "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			line = dedent(line, indent)
		}
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// RenderText is Render over a node of t.
func (t *Tree) RenderText(n *sitter.Node) string {
	return Render(n, t.source)
}

func dedent(line string, width int) string {
	i := 0
	for i < width && i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[i:]
}

func collectComments(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child == nil {
				continue
			}
			if child.Type() == "comment" {
				out = append(out, child)
				continue
			}
			walk(child)
		}
	}
	walk(n)
	return out
}

// StringValue strips the prefix letters and quotes from a string literal.
func StringValue(literal string) string {
	s := strings.TrimLeft(literal, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
