// Package tei serializes the canonical document tree into a TEI P5 rendition:
// pb milestones for page boundaries, ref elements for citations and a back
// division holding the consolidated notes with reciprocal pointers.
package tei

import (
	"context"
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"folio/book"
)

const teiNS = "http://www.tei-c.org/ns/1.0"

// Header carries the file description metadata. It is populated by the
// caller, the emitter only fills gaps from the document itself.
type Header struct {
	Title     string
	Author    string
	Publisher string
	Source    string
}

// Generate emits the document as TEI into fname.
func Generate(ctx context.Context, d *book.Document, fname string, hdr *Header, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := Emit(d, hdr)
	doc.Indent(2)
	if err := doc.WriteToFile(fname); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	log.Debug("Wrote TEI output", zap.String("file", fname))
	return nil
}

// Emit builds the TEI rendition. Like its HTML sibling it is a stateless
// single pass in document order and never reorders siblings, so anchors map
// one to one between the two outputs.
func Emit(d *book.Document, hdr *Header) *etree.Document {

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	tei := doc.CreateElement("TEI")
	tei.CreateAttr("xmlns", teiNS)
	if !d.Lang.IsRoot() {
		tei.CreateAttr("xml:lang", d.Lang.String())
	}

	emitHeader(tei, d, hdr)

	text := tei.CreateElement("text")
	body := text.CreateElement("body")
	div := body.CreateElement("div")
	for i := range d.Blocks {
		emitBlock(div, &d.Blocks[i])
	}

	if len(d.Notes) > 0 {
		back := text.CreateElement("back")
		notes := back.CreateElement("div")
		notes.CreateAttr("type", "notes")
		for i := range d.Notes {
			emitNote(notes, &d.Notes[i])
		}
	}
	return doc
}

func emitHeader(tei *etree.Element, d *book.Document, hdr *Header) {
	if hdr == nil {
		hdr = &Header{}
	}
	title := hdr.Title
	if title == "" {
		title = d.Title
	}

	teiHeader := tei.CreateElement("teiHeader")
	fileDesc := teiHeader.CreateElement("fileDesc")

	titleStmt := fileDesc.CreateElement("titleStmt")
	titleStmt.CreateElement("title").SetText(title)
	if hdr.Author != "" {
		titleStmt.CreateElement("author").SetText(hdr.Author)
	}

	pubStmt := fileDesc.CreateElement("publicationStmt")
	if hdr.Publisher != "" {
		pubStmt.CreateElement("publisher").SetText(hdr.Publisher)
	} else {
		pubStmt.CreateElement("p").SetText("Unpublished transcription.")
	}

	srcDesc := fileDesc.CreateElement("sourceDesc")
	if hdr.Source != "" {
		srcDesc.CreateElement("p").SetText(hdr.Source)
	} else {
		srcDesc.CreateElement("p").SetText("Transcribed from the paginated source.")
	}
}

func emitBlock(parent *etree.Element, b *book.Block) {
	switch b.Kind {
	case book.BlockPageBreak:
		pb := parent.CreateElement("pb")
		pb.CreateAttr("n", b.Label)
		pb.CreateAttr("xml:id", b.ID)
	case book.BlockHeading:
		head := parent.CreateElement("head")
		setXMLID(head, b.ID)
		if b.Level > 0 {
			head.CreateAttr("n", strconv.Itoa(b.Level))
		}
		emitInlines(head, b.Text)
	case book.BlockParagraph:
		p := parent.CreateElement("p")
		setXMLID(p, b.ID)
		emitInlines(p, b.Text)
	case book.BlockList:
		list := parent.CreateElement("list")
		setXMLID(list, b.ID)
		if b.Ordered {
			list.CreateAttr("rend", "numbered")
		} else {
			list.CreateAttr("rend", "bulleted")
		}
		for i := range b.Items {
			emitBlock(list, &b.Items[i])
		}
	case book.BlockListItem:
		item := parent.CreateElement("item")
		setXMLID(item, b.ID)
		emitInlines(item, b.Text)
		for i := range b.Items {
			emitBlock(item, &b.Items[i])
		}
	case book.BlockColumns:
		div := parent.CreateElement("div")
		div.CreateAttr("type", "columns")
		div.CreateAttr("n", strconv.Itoa(b.Cols))
		setXMLID(div, b.ID)
		for i := range b.Items {
			emitBlock(div, &b.Items[i])
		}
	case book.BlockFigure:
		fig := parent.CreateElement("figure")
		setXMLID(fig, b.ID)
		if b.Src != "" {
			graphic := fig.CreateElement("graphic")
			graphic.CreateAttr("url", b.Src)
		}
		if b.Alt != "" {
			fig.CreateElement("figDesc").SetText(b.Alt)
		}
	default:
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
		hi := parent.CreateElement("hi")
		hi.CreateAttr("rend", "italic")
		emitInlines(hi, in.Children)
	case book.InlineStrong:
		hi := parent.CreateElement("hi")
		hi.CreateAttr("rend", "bold")
		emitInlines(hi, in.Children)
	case book.InlineSup:
		hi := parent.CreateElement("hi")
		hi.CreateAttr("rend", "sup")
		emitInlines(hi, in.Children)
	case book.InlineBreak:
		parent.CreateElement("lb")
	case book.InlineLink:
		ref := parent.CreateElement("ref")
		ref.CreateAttr("target", in.Href)
		setXMLID(ref, in.ID)
		emitInlines(ref, in.Children)
	case book.InlineNoteRef:
		ref := parent.CreateElement("ref")
		ref.CreateAttr("type", "noteref")
		ref.CreateAttr("xml:id", in.ID)
		ref.CreateAttr("target", "#"+in.TargetID)
		ref.SetText(in.Text)
	}
}

func emitNote(parent *etree.Element, n *book.Note) {
	note := parent.CreateElement("note")
	note.CreateAttr("xml:id", n.ID)
	note.CreateAttr("place", "foot")
	if n.BackRefID != "" {
		note.CreateAttr("corresp", "#"+n.BackRefID)
	}
	if n.Orphaned {
		note.CreateAttr("type", "orphaned")
	}
	for i := range n.Body {
		emitBlock(note, &n.Body[i])
	}
}

func setXMLID(e *etree.Element, id string) {
	if id != "" {
		e.CreateAttr("xml:id", id)
	}
}

func appendText(parent *etree.Element, text string) {
	children := parent.ChildElements()
	if len(children) == 0 {
		parent.SetText(parent.Text() + text)
		return
	}
	last := children[len(children)-1]
	last.SetTail(last.Tail() + text)
}
