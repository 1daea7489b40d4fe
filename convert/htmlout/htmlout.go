// Package htmlout serializes the canonical document tree into a single
// continuous HTML file with page-break spans, footnote anchors and a
// consolidated back-matter section.
package htmlout

import (
	"context"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"folio/book"
	"folio/config"
)

// Generate emits the document as HTML into fname.
func Generate(ctx context.Context, d *book.Document, fname string, cfg *config.DocumentConfig, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := Emit(d, cfg)
	doc.Indent(2)
	if err := doc.WriteToFile(fname); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	log.Debug("Wrote HTML output", zap.String("file", fname))
	return nil
}

// Emit builds the HTML rendition. The traversal is a stateless single pass in
// document order, siblings are never reordered.
func Emit(d *book.Document, cfg *config.DocumentConfig) *etree.Document {

	doc := etree.NewDocument()
	doc.CreateProcInst("DOCTYPE", "html")

	html := doc.CreateElement("html")
	if !d.Lang.IsRoot() {
		html.CreateAttr("lang", d.Lang.String())
	}

	head := html.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("charset", "utf-8")
	title := head.CreateElement("title")
	title.SetText(d.Title)

	body := html.CreateElement("body")
	for i := range d.Blocks {
		emitBlock(body, &d.Blocks[i])
	}
	if len(d.Notes) > 0 {
		emitNotes(body, d.Notes, cfg.Footnotes.Title)
	}
	return doc
}

func emitBlock(parent *etree.Element, b *book.Block) {
	switch b.Kind {
	case book.BlockPageBreak:
		pb := parent.CreateElement("span")
		pb.CreateAttr("class", "pb")
		pb.CreateAttr("id", b.ID)
		pb.CreateAttr("data-n", b.Label)
		pb.CreateAttr("role", "doc-pagebreak")
	case book.BlockHeading:
		level := b.Level
		if level < 1 || level > 6 {
			level = 6
		}
		h := parent.CreateElement("h" + strconv.Itoa(level))
		setID(h, b.ID)
		emitInlines(h, b.Text)
	case book.BlockParagraph:
		p := parent.CreateElement("p")
		setID(p, b.ID)
		emitInlines(p, b.Text)
	case book.BlockList:
		name := "ul"
		if b.Ordered {
			name = "ol"
		}
		list := parent.CreateElement(name)
		setID(list, b.ID)
		for i := range b.Items {
			emitBlock(list, &b.Items[i])
		}
	case book.BlockListItem:
		li := parent.CreateElement("li")
		setID(li, b.ID)
		emitInlines(li, b.Text)
		for i := range b.Items {
			emitBlock(li, &b.Items[i])
		}
	case book.BlockColumns:
		sec := parent.CreateElement("section")
		sec.CreateAttr("class", "columns")
		sec.CreateAttr("data-cols", strconv.Itoa(b.Cols))
		setID(sec, b.ID)
		for i := range b.Items {
			emitBlock(sec, &b.Items[i])
		}
	case book.BlockFigure:
		fig := parent.CreateElement("figure")
		setID(fig, b.ID)
		img := fig.CreateElement("img")
		img.CreateAttr("src", b.Src)
		img.CreateAttr("alt", b.Alt)
		if b.Alt != "" {
			cap := fig.CreateElement("figcaption")
			cap.SetText(b.Alt)
		}
	default:
		// note bodies are consolidated before emission, anything else is a
		// plain container
		for i := range b.Items {
			emitBlock(parent, &b.Items[i])
		}
	}
}

func emitInlines(parent *etree.Element, nodes []book.Inline) {
	for i := range nodes {
		emitInline(parent, &nodes[i])
	}
}

func emitInline(parent *etree.Element, in *book.Inline) {
	switch in.Kind {
	case book.InlineText:
		appendText(parent, in.Text)
	case book.InlineEmphasis:
		emitInlines(parent.CreateElement("em"), in.Children)
	case book.InlineStrong:
		emitInlines(parent.CreateElement("strong"), in.Children)
	case book.InlineSup:
		emitInlines(parent.CreateElement("sup"), in.Children)
	case book.InlineBreak:
		parent.CreateElement("br")
	case book.InlineLink:
		a := parent.CreateElement("a")
		if in.Class != "" {
			a.CreateAttr("class", in.Class)
		}
		a.CreateAttr("href", in.Href)
		setID(a, in.ID)
		emitInlines(a, in.Children)
	case book.InlineNoteRef:
		a := parent.CreateElement("a")
		a.CreateAttr("class", "fn-ref")
		a.CreateAttr("id", in.ID)
		a.CreateAttr("href", "#"+in.TargetID)
		a.CreateAttr("role", "doc-noteref")
		sup := a.CreateElement("sup")
		sup.SetText(in.Text)
	}
}

func emitNotes(body *etree.Element, notes []book.Note, title string) {
	sec := body.CreateElement("section")
	sec.CreateAttr("class", "footnotes")
	sec.CreateAttr("role", "doc-endnotes")

	if title != "" {
		h := sec.CreateElement("h2")
		h.SetText(title)
	}

	list := sec.CreateElement("ol")
	for i := range notes {
		n := &notes[i]
		li := list.CreateElement("li")
		li.CreateAttr("id", n.ID)
		if n.Orphaned {
			li.CreateAttr("class", "orphaned")
		}
		for j := range n.Body {
			emitBlock(li, &n.Body[j])
		}
		if n.BackRefID != "" {
			back := li.CreateElement("a")
			back.CreateAttr("class", "footnote-backlink")
			back.CreateAttr("href", "#"+n.BackRefID)
			back.CreateAttr("role", "doc-backlink")
			back.SetText("↩")
		}
	}
}

func setID(e *etree.Element, id string) {
	if id != "" {
		e.CreateAttr("id", id)
	}
}

// appendText adds character data after any element children already in place.
func appendText(parent *etree.Element, text string) {
	children := parent.ChildElements()
	if len(children) == 0 {
		parent.SetText(parent.Text() + text)
		return
	}
	last := children[len(children)-1]
	last.SetTail(last.Tail() + text)
}
