// ABOUTME: Flattens markdown from Kagi answers and summaries into plain text
// ABOUTME: Uses a goldmark node renderer that drops markup and keeps text, list markers and link targets

package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

var (
	plainMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough),
		goldmark.WithRenderer(renderer.NewRenderer(
			renderer.WithNodeRenderers(util.Prioritized(&plainRenderer{}, 1)),
		)),
	)

	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// Plain converts markdown to plain text. Emphasis, code and heading markers
// are removed, list items keep a "-" or "N." prefix, and links become
// "text (url)". If the input cannot be parsed it is returned unchanged.
func Plain(md string) string {
	var buf bytes.Buffer
	if err := plainMarkdown.Convert([]byte(md), &buf); err != nil {
		return md
	}

	lines := strings.Split(buf.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// plainRenderer implements goldmark's renderer.NodeRenderer. It holds no
// state so a single instance serves concurrent conversions.
type plainRenderer struct{}

// RegisterFuncs registers render functions for each AST node kind.
func (r *plainRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	// Block nodes
	reg.Register(ast.KindHeading, r.renderBlock)
	reg.Register(ast.KindParagraph, r.renderBlock)
	reg.Register(ast.KindBlockquote, r.renderBlock)
	reg.Register(ast.KindFencedCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindList, r.renderBlock)
	reg.Register(ast.KindListItem, r.renderListItem)
	reg.Register(ast.KindTextBlock, r.renderTextBlock)
	reg.Register(ast.KindThematicBreak, r.renderBlock)
	reg.Register(ast.KindHTMLBlock, r.skip)

	// Inline nodes
	reg.Register(ast.KindText, r.renderText)
	reg.Register(ast.KindString, r.renderString)
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
	reg.Register(ast.KindRawHTML, r.skip)

	// Emphasis, code spans, images and strikethrough render their children only
	reg.Register(ast.KindEmphasis, r.passThrough)
	reg.Register(ast.KindCodeSpan, r.passThrough)
	reg.Register(ast.KindImage, r.passThrough)
	reg.Register(extast.KindStrikethrough, r.passThrough)
}

func (r *plainRenderer) passThrough(_ util.BufWriter, _ []byte, _ ast.Node, _ bool) (ast.WalkStatus, error) {
	return ast.WalkContinue, nil
}

func (r *plainRenderer) skip(_ util.BufWriter, _ []byte, _ ast.Node, _ bool) (ast.WalkStatus, error) {
	return ast.WalkSkipChildren, nil
}

// renderBlock separates block-level nodes with a blank line. Nested lists
// inside an item only need a line break.
func (r *plainRenderer) renderBlock(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		return ast.WalkContinue, nil
	}
	if node.Parent() != nil && node.Parent().Kind() == ast.KindListItem {
		// Nested list items already end their own lines
		if node.Kind() != ast.KindList {
			_, _ = w.WriteString("\n")
		}
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString("\n\n")
	return ast.WalkContinue, nil
}

func (r *plainRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = w.Write(line.Value(source))
	}
	_, _ = w.WriteString("\n")
	return ast.WalkSkipChildren, nil
}

func (r *plainRenderer) renderListItem(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		if node.LastChild() == nil || node.LastChild().Kind() == ast.KindTextBlock {
			_, _ = w.WriteString("\n")
		}
		return ast.WalkContinue, nil
	}

	depth := 0
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindListItem {
			depth++
		}
	}
	_, _ = w.WriteString(strings.Repeat("  ", depth))

	list, ok := node.Parent().(*ast.List)
	if ok && list.IsOrdered() {
		index := list.Start
		for prev := node.PreviousSibling(); prev != nil; prev = prev.PreviousSibling() {
			index++
		}
		_, _ = fmt.Fprintf(w, "%d. ", index)
	} else {
		_, _ = w.WriteString("- ")
	}
	return ast.WalkContinue, nil
}

func (r *plainRenderer) renderTextBlock(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		// List items add their own line break
		if node.Parent() != nil && node.Parent().Kind() != ast.KindListItem {
			_, _ = w.WriteString("\n")
		} else if node.NextSibling() != nil {
			_, _ = w.WriteString("\n")
		}
	}
	return ast.WalkContinue, nil
}

func (r *plainRenderer) renderText(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Text)
	_, _ = w.Write(n.Segment.Value(source))

	if n.SoftLineBreak() || n.HardLineBreak() {
		_, _ = w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *plainRenderer) renderString(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.String)
	_, _ = w.Write(n.Value)
	return ast.WalkContinue, nil
}

func (r *plainRenderer) renderLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Link)
	dest := string(n.Destination)
	if dest != "" && dest != linkText(n, source) {
		_, _ = fmt.Fprintf(w, " (%s)", dest)
	}
	return ast.WalkContinue, nil
}

func (r *plainRenderer) renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.AutoLink)
		_, _ = w.Write(n.URL(source))
	}
	return ast.WalkSkipChildren, nil
}

// linkText concatenates the text children of a link.
func linkText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return b.String()
}
