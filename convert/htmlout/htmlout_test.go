package htmlout

import (
	"testing"

	"github.com/beevik/etree"
	"golang.org/x/text/language"

	"folio/book"
	"folio/config"
)

func testConfig() *config.DocumentConfig {
	return &config.DocumentConfig{
		Footnotes: config.FootnotesConfig{Title: "Anmerkungen"},
	}
}

func testDoc() *book.Document {
	return &book.Document{
		Title: "Erstes Kapitel",
		Lang:  language.German,
		Blocks: []book.Block{
			{Kind: book.BlockPageBreak, ID: "page-7", Label: "7"},
			{Kind: book.BlockHeading, Level: 1, Text: []book.Inline{{Kind: book.InlineText, Text: "Erstes Kapitel"}}},
			{Kind: book.BlockParagraph, Text: []book.Inline{
				{Kind: book.InlineText, Text: "Der "},
				{Kind: book.InlineEmphasis, Children: []book.Inline{{Kind: book.InlineText, Text: "Begriff"}}},
				{Kind: book.InlineNoteRef, ID: "ref-3-1", TargetID: "3-1", Text: "3"},
				{Kind: book.InlineText, Text: " bleibt."},
			}},
			{Kind: book.BlockColumns, Cols: 2, Items: []book.Block{
				{Kind: book.BlockParagraph, Text: []book.Inline{{Kind: book.InlineText, Text: "Logik "}, {
					Kind: book.InlineLink, Class: "page-ref", Href: "#page-7",
					Children: []book.Inline{{Kind: book.InlineText, Text: "7"}},
				}}},
			}},
		},
		Notes: []book.Note{
			{ID: "3-1", BackRefID: "ref-3-1", Body: []book.Block{
				{Kind: book.BlockParagraph, Text: []book.Inline{{Kind: book.InlineText, Text: "Vgl. Kant."}}},
			}},
			{ID: "9-1", Orphaned: true, Body: []book.Block{
				{Kind: book.BlockParagraph, Text: []book.Inline{{Kind: book.InlineText, Text: "Niemand."}}},
			}},
		},
	}
}

func mustElement(t *testing.T, doc *etree.Document, path string) *etree.Element {
	t.Helper()
	e := doc.FindElement(path)
	if e == nil {
		t.Fatalf("element not found: %s", path)
	}
	return e
}

func TestEmit(t *testing.T) {
	doc := Emit(testDoc(), testConfig())

	html := mustElement(t, doc, "/html")
	if got := html.SelectAttrValue("lang", ""); got != "de" {
		t.Fatalf("unexpected lang %q", got)
	}
	if got := mustElement(t, doc, "//head/title").Text(); got != "Erstes Kapitel" {
		t.Fatalf("unexpected title %q", got)
	}

	pb := mustElement(t, doc, "//body/span")
	if pb.SelectAttrValue("class", "") != "pb" ||
		pb.SelectAttrValue("id", "") != "page-7" ||
		pb.SelectAttrValue("data-n", "") != "7" ||
		pb.SelectAttrValue("role", "") != "doc-pagebreak" {
		t.Fatalf("unexpected page break span: %+v", pb.Attr)
	}

	mustElement(t, doc, "//body/h1")

	ref := mustElement(t, doc, "//p/a[@role='doc-noteref']")
	if ref.SelectAttrValue("id", "") != "ref-3-1" || ref.SelectAttrValue("href", "") != "#3-1" {
		t.Fatalf("unexpected note reference: %+v", ref.Attr)
	}
	if got := mustElement(t, doc, "//p/a[@role='doc-noteref']/sup").Text(); got != "3" {
		t.Fatalf("unexpected reference glyph %q", got)
	}

	cols := mustElement(t, doc, "//body/section[@class='columns']")
	if cols.SelectAttrValue("data-cols", "") != "2" {
		t.Fatalf("unexpected columns container: %+v", cols.Attr)
	}
	link := mustElement(t, doc, "//section/p/a[@class='page-ref']")
	if link.SelectAttrValue("href", "") != "#page-7" {
		t.Fatalf("unexpected page link: %+v", link.Attr)
	}
}

func TestEmitNotesSection(t *testing.T) {
	doc := Emit(testDoc(), testConfig())

	sec := mustElement(t, doc, "//body/section[@role='doc-endnotes']")
	if got := mustElement(t, doc, "//section[@role='doc-endnotes']/h2").Text(); got != "Anmerkungen" {
		t.Fatalf("unexpected notes title %q", got)
	}

	items := sec.FindElements("ol/li")
	if len(items) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(items))
	}
	if items[0].SelectAttrValue("id", "") != "3-1" {
		t.Fatalf("unexpected note id: %+v", items[0].Attr)
	}

	back := mustElement(t, doc, "//li[@id='3-1']/a[@role='doc-backlink']")
	if back.SelectAttrValue("href", "") != "#ref-3-1" {
		t.Fatalf("back reference mistargeted: %+v", back.Attr)
	}

	// orphaned note is kept but has no back reference
	if items[1].SelectAttrValue("class", "") != "orphaned" {
		t.Fatalf("orphaned note not flagged: %+v", items[1].Attr)
	}
	if e := items[1].FindElement("a[@role='doc-backlink']"); e != nil {
		t.Fatal("orphaned note must not carry a back reference")
	}
}

func TestEmitMixedText(t *testing.T) {
	doc := Emit(testDoc(), testConfig())

	p := mustElement(t, doc, "//body/p")
	if text := flatText(p); text != "Der Begriff3 bleibt." {
		t.Fatalf("text order mangled: %q", text)
	}
}

func flatText(e *etree.Element) string {
	var text string
	for _, tok := range e.Child {
		switch n := tok.(type) {
		case *etree.CharData:
			text += n.Data
		case *etree.Element:
			text += flatText(n)
		}
	}
	return text
}
