package book

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// pageBoundary is an internal sentinel produced while parsing inline content.
// It never leaves the parser, paragraph assembly splits on it.
const pageBoundary InlineKind = -1

// ParseFragments reads one transcription source and splits it into per-page
// fragments. A source carrying explicit page-break spans yields one fragment
// per span, otherwise the whole content becomes a single fragment labeled
// after the source name.
func ParseFragments(log *zap.Logger, r io.Reader, name string) ([]Fragment, error) {

	cr, err := charset.NewReader(r, "text/html")
	if err != nil {
		return nil, fmt.Errorf("unable to prepare reader for %s: %w", name, err)
	}
	root, err := html.Parse(cr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", name, err)
	}

	body := findElement(root, atom.Body)
	if body == nil {
		return nil, fmt.Errorf("no content found in %s", name)
	}

	p := &parser{log: log, name: name}
	p.open("")
	p.parseFlow(body, nil)
	p.close()

	frags := p.frags
	if len(frags) == 1 && frags[0].Label == "" {
		frags[0].Label = labelFromName(name)
	}
	for i := range frags {
		frags[i].Order = i
	}
	return frags, nil
}

type parser struct {
	log   *zap.Logger
	name  string
	frags []Fragment
	cur   *Fragment
}

// open starts a new fragment, close finishes the current one dropping it when
// it is an unlabeled leader with no content.
func (p *parser) open(label string) {
	p.close()
	p.cur = &Fragment{Label: label}
}

func (p *parser) close() {
	if p.cur == nil {
		return
	}
	if p.cur.Label != "" || len(p.cur.Nodes) > 0 || len(p.cur.Issues) > 0 {
		p.frags = append(p.frags, *p.cur)
	}
	p.cur = nil
}

// noteIssue records a non-fatal annotation on the fragment being assembled.
func (p *parser) noteIssue(code IssueCode, detail string) {
	if p.cur == nil {
		return
	}
	p.cur.Issues = append(p.cur.Issues, Issue{Code: code, Detail: detail})
}

// parseFlow walks block content appending to dst; a nil dst targets the
// fragment currently being assembled, which page-break spans may replace as
// they are encountered.
func (p *parser) parseFlow(n *html.Node, dst *[]Block) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if text := collapseSpace(c.Data); strings.TrimSpace(text) != "" {
				p.log.Debug("Wrapping stray text into paragraph", zap.String("source", p.name), zap.String("text", text))
				p.emitParagraph(Block{Kind: BlockParagraph, Text: []Inline{{Kind: InlineText, Text: strings.TrimSpace(text)}}}, dst)
			}
		case html.ElementNode:
			p.parseElement(c, dst)
		}
	}
}

func (p *parser) parseElement(n *html.Node, dst *[]Block) {
	switch n.DataAtom {
	case atom.Span:
		if isPageBreak(n) {
			if dst != nil {
				p.log.Debug("Dropping page boundary inside nested container", zap.String("source", p.name))
				return
			}
			p.open(pbLabel(n))
			return
		}
		// stray inline content at block level
		if nodes := p.parseInlines(n); inlinePlainText(nodes) != "" {
			p.emitParagraph(Block{Kind: BlockParagraph, Text: nodes}, dst)
		}
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		p.emit(Block{Kind: BlockHeading, ID: attr(n, "id"), Class: attr(n, "class"), Level: level, Text: stripBoundaries(p.parseInlines(n))}, dst)
	case atom.P, atom.Blockquote:
		p.emitParagraph(Block{Kind: BlockParagraph, ID: attr(n, "id"), Class: attr(n, "class"), Text: p.parseInlines(n)}, dst)
	case atom.Ul, atom.Ol:
		p.emit(p.parseList(n), dst)
	case atom.Figure:
		p.emit(p.parseFigure(n), dst)
	case atom.Img:
		p.emit(Block{Kind: BlockFigure, Class: attr(n, "class"), Src: attr(n, "src"), Alt: attr(n, "alt")}, dst)
	case atom.Section, atom.Div, atom.Article, atom.Main, atom.Footer, atom.Header:
		switch {
		case isFootnotes(n):
			p.parseNoteBodies(n, dst)
		case hasClass(n, "bookplate"):
			// the class must survive flattening, page heuristics key off it
			var items []Block
			p.parseFlow(n, &items)
			for i := range items {
				items[i].Class = joinClasses("bookplate", items[i].Class)
				p.emit(items[i], dst)
			}
		case hasClass(n, "columns") || columnCount(attr(n, "style")) > 0:
			cols := columnCount(attr(n, "style"))
			if v, err := strconv.Atoi(attr(n, "data-cols")); err == nil && v > 0 {
				cols = v
			}
			if cols <= 0 {
				cols = 2
			}
			block := Block{Kind: BlockColumns, ID: attr(n, "id"), Cols: cols}
			p.parseFlow(n, &block.Items)
			p.emit(block, dst)
		default:
			// transparent wrapper
			p.parseFlow(n, dst)
		}
	case atom.Table:
		p.log.Warn("Flattening table to paragraphs", zap.String("source", p.name))
		p.noteIssue(IssueFlattened, "table flattened to paragraphs")
		p.flattenTable(n, dst)
	case atom.Hr, atom.Script, atom.Style, atom.Nav:
		// nothing useful for the text flow
	default:
		p.log.Debug("Ignoring unsupported block element", zap.String("source", p.name), zap.String("element", n.Data))
		p.parseFlow(n, dst)
	}
}

// emit appends a block to the destination unless it carries nothing.
func (p *parser) emit(b Block, dst *[]Block) {
	if len(b.Text) == 0 && len(b.Items) == 0 && b.Kind != BlockFigure {
		return
	}
	if dst == nil {
		dst = &p.cur.Nodes
	}
	*dst = append(*dst, b)
}

// emitParagraph splits paragraph content on page boundaries found inside it,
// the text before a boundary closes the current fragment and the rest opens
// the next one.
func (p *parser) emitParagraph(b Block, dst *[]Block) {
	var seg []Inline
	flush := func() {
		para := b
		para.Text = trimInlines(seg)
		seg = nil
		p.emit(para, dst)
		b.ID = "" // only the first segment keeps the source id
	}

	for _, in := range b.Text {
		if in.Kind == pageBoundary {
			if dst == nil {
				flush()
				p.open(in.Text)
				continue
			}
			p.log.Debug("Dropping page boundary inside nested content", zap.String("source", p.name))
			continue
		}
		seg = append(seg, in)
	}
	flush()
}

func (p *parser) parseList(n *html.Node) Block {
	list := Block{Kind: BlockList, ID: attr(n, "id"), Ordered: n.DataAtom == atom.Ol}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		item := Block{Kind: BlockListItem, ID: attr(c, "id")}
		p.parseListItem(c, &item)
		list.Items = append(list.Items, item)
	}
	return list
}

// parseListItem separates nested block children from inline content.
func (p *parser) parseListItem(n *html.Node, item *Block) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && isBlockAtom(c.DataAtom) {
			p.parseElement(c, &item.Items)
			continue
		}
		item.Text = append(item.Text, p.parseInline(c)...)
	}
	item.Text = trimInlines(stripBoundaries(item.Text))
}

func (p *parser) parseFigure(n *html.Node) Block {
	b := Block{Kind: BlockFigure, ID: attr(n, "id")}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Img:
			b.Src = attr(c, "src")
			if b.Alt == "" {
				b.Alt = attr(c, "alt")
			}
		case atom.Figcaption:
			b.Alt = inlinePlainText(p.parseInlines(c))
		}
	}
	return b
}

// parseNoteBodies extracts authored note bodies from a footnotes container,
// one list item with an id becomes one note-body block.
func (p *parser) parseNoteBodies(n *html.Node, dst *[]Block) {
	for _, li := range findElements(n, atom.Li) {
		id := attr(li, "id")
		if id == "" {
			p.log.Warn("Skipping note body without id", zap.String("source", p.name))
			continue
		}
		body := Block{Kind: BlockNoteBody, ID: id}
		p.parseListItem(li, &body)
		if len(body.Text) > 0 {
			body.Items = append([]Block{{Kind: BlockParagraph, Text: body.Text}}, body.Items...)
			body.Text = nil
		}
		p.emit(body, dst)
	}
}

func (p *parser) flattenTable(n *html.Node, dst *[]Block) {
	for _, tr := range findElements(n, atom.Tr) {
		var cells []string
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
				if text := inlinePlainText(p.parseInlines(c)); text != "" {
					cells = append(cells, text)
				}
			}
		}
		if len(cells) > 0 {
			p.emitParagraph(Block{Kind: BlockParagraph, Text: []Inline{{Kind: InlineText, Text: strings.Join(cells, " ")}}}, dst)
		}
	}
}

func (p *parser) parseInlines(n *html.Node) []Inline {
	var res []Inline
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		res = append(res, p.parseInline(c)...)
	}
	return res
}

func (p *parser) parseInline(n *html.Node) []Inline {
	switch n.Type {
	case html.TextNode:
		if text := collapseSpace(n.Data); text != "" {
			return []Inline{{Kind: InlineText, Text: text}}
		}
		return nil
	case html.ElementNode:
	default:
		return nil
	}

	switch n.DataAtom {
	case atom.Em, atom.I:
		return wrapInline(InlineEmphasis, p.parseInlines(n))
	case atom.Strong, atom.B:
		return wrapInline(InlineStrong, p.parseInlines(n))
	case atom.Sup:
		return wrapInline(InlineSup, p.parseInlines(n))
	case atom.A:
		if hasClass(n, "footnote-backlink") || attr(n, "role") == "doc-backlink" {
			// recomputed during note resolution
			return nil
		}
		return []Inline{{
			Kind:     InlineLink,
			ID:       attr(n, "id"),
			Href:     attr(n, "href"),
			Class:    attr(n, "class"),
			Children: p.parseInlines(n),
		}}
	case atom.Br:
		return []Inline{{Kind: InlineBreak}}
	case atom.Span:
		if isPageBreak(n) {
			return []Inline{{Kind: pageBoundary, Text: pbLabel(n)}}
		}
		return p.parseInlines(n)
	case atom.Img:
		p.log.Debug("Dropping inline image", zap.String("source", p.name), zap.String("src", attr(n, "src")))
		return nil
	default:
		if isBlockAtom(n.DataAtom) {
			p.log.Warn("Flattening nested block inside inline content", zap.String("source", p.name), zap.String("element", n.Data))
			p.noteIssue(IssueFlattened, "block <"+n.Data+"> flattened into inline content")
		}
		return p.parseInlines(n)
	}
}

func wrapInline(kind InlineKind, children []Inline) []Inline {
	if len(children) == 0 {
		return nil
	}
	return []Inline{{Kind: kind, Children: children}}
}

func isBlockAtom(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Blockquote,
		atom.Ul, atom.Ol, atom.Li, atom.Table, atom.Figure,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

func isPageBreak(n *html.Node) bool {
	return hasClass(n, "pb") || attr(n, "role") == "doc-pagebreak"
}

func isFootnotes(n *html.Node) bool {
	return hasClass(n, "footnotes") || attr(n, "role") == "doc-endnotes"
}

func pbLabel(n *html.Node) string {
	if l := attr(n, "data-n"); l != "" {
		return l
	}
	return strings.TrimPrefix(attr(n, "id"), "page-")
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func joinClasses(a, b string) string {
	if b == "" {
		return a
	}
	return a + " " + b
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func findElements(n *html.Node, a atom.Atom) []*html.Node {
	var res []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			res = append(res, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return res
}

// columnCount extracts column-count (or the columns shorthand) from an inline
// style declaration list.
func columnCount(style string) int {
	if style == "" {
		return 0
	}
	p := css.NewParser(parse.NewInputString(style), true)
	for {
		gt, _, data := p.Next()
		if gt == css.ErrorGrammar {
			return 0
		}
		if gt != css.DeclarationGrammar {
			continue
		}
		prop := strings.ToLower(string(data))
		if prop != "column-count" && prop != "columns" {
			continue
		}
		for _, val := range p.Values() {
			if n, err := strconv.Atoi(string(val.Data)); err == nil && n > 0 {
				return n
			}
		}
	}
}

var spaceRuns = regexp.MustCompile(`[\s\x{00A0}]+`)

// collapseSpace folds whitespace runs into single spaces keeping the leading
// and trailing space intact, inline joins depend on them.
func collapseSpace(s string) string {
	return spaceRuns.ReplaceAllString(s, " ")
}

// trimInlines removes leading and trailing whitespace from the edges of an
// inline sequence.
func trimInlines(nodes []Inline) []Inline {
	for len(nodes) > 0 {
		first := &nodes[0]
		if first.Kind == InlineText {
			first.Text = strings.TrimLeft(first.Text, " ")
			if first.Text == "" {
				nodes = nodes[1:]
				continue
			}
		}
		break
	}
	for len(nodes) > 0 {
		last := &nodes[len(nodes)-1]
		if last.Kind == InlineText {
			last.Text = strings.TrimRight(last.Text, " ")
			if last.Text == "" {
				nodes = nodes[:len(nodes)-1]
				continue
			}
		}
		break
	}
	return nodes
}

func stripBoundaries(nodes []Inline) []Inline {
	res := nodes[:0]
	for _, in := range nodes {
		if in.Kind == pageBoundary {
			continue
		}
		res = append(res, in)
	}
	return res
}

func inlinePlainText(nodes []Inline) string {
	var buf strings.Builder
	for i := range nodes {
		buf.WriteString(nodes[i].AsText())
	}
	return strings.TrimSpace(buf.String())
}

var nameDigits = regexp.MustCompile(`\d{1,4}`)

// labelFromName derives a page label from a source file name, preferring the
// last digit group so "seite_0012.html" labels as "12".
func labelFromName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if m := nameDigits.FindAllString(base, -1); len(m) > 0 {
		if l := strings.TrimLeft(m[len(m)-1], "0"); l != "" {
			return l
		}
		return "0"
	}
	return base
}
