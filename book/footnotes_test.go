package book

import (
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"
)

func anchor(href, glyph string) Inline {
	return Inline{
		Kind:     InlineLink,
		Class:    "fn-ref",
		Href:     href,
		Children: []Inline{{Kind: InlineSup, Children: []Inline{{Kind: InlineText, Text: glyph}}}},
	}
}

func noteBody(id, text string) Block {
	return Block{Kind: BlockNoteBody, ID: id, Items: []Block{para(text)}}
}

func testFootnoteDoc() *Document {
	return &Document{
		Blocks: []Block{
			{Kind: BlockPageBreak, ID: "page-31", Label: "31"},
			{Kind: BlockParagraph, Text: []Inline{
				{Kind: InlineText, Text: "Der Begriff"},
				anchor("#fn31-3", "3"),
				{Kind: InlineText, Text: " ist zentral"},
				anchor("#fn31-3", "3"),
				{Kind: InlineText, Text: " und wichtig"},
				anchor("#fn31-4", "*"),
				{Kind: InlineText, Text: "."},
			}},
			noteBody("fn31-3", "Vgl. Kant, KrV."),
			noteBody("fn31-4", "Siehe oben."),
		},
	}
}

func TestResolveFootnotes(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &testDocumentConfig().Footnotes

	d, err := ResolveFootnotes(log, testFootnoteDoc(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	for i := range d.Blocks {
		if d.Blocks[i].Kind == BlockNoteBody {
			t.Fatalf("note body left in flow: %+v", d.Blocks[i])
		}
	}
	if len(d.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %+v", d.Notes)
	}

	n := d.Notes[0]
	if n.ID != "3-1" || n.SourceID != "fn31-3" || n.BackRefID != "ref-3-1" || n.Orphaned {
		t.Fatalf("unexpected first note: %+v", n)
	}
	if d.Notes[1].ID != "star-1" {
		t.Fatalf("unexpected second note: %+v", d.Notes[1])
	}

	var refs []Inline
	for _, in := range d.Blocks[1].Text {
		if in.Kind == InlineNoteRef {
			refs = append(refs, in)
		}
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 references, got %+v", d.Blocks[1].Text)
	}
	if refs[0].ID != "ref-3-1" || refs[0].TargetID != "3-1" {
		t.Fatalf("unexpected primary reference: %+v", refs[0])
	}
	if refs[1].ID != "ref-3-1-2" || refs[1].TargetID != "3-1" {
		t.Fatalf("secondary reference must get its own id: %+v", refs[1])
	}
	if refs[2].TargetID != "star-1" {
		t.Fatalf("unexpected reference target: %+v", refs[2])
	}
}

func TestResolveFootnotesIsIdempotent(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &testDocumentConfig().Footnotes

	once, err := ResolveFootnotes(log, testFootnoteDoc(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := ResolveFootnotes(log, once, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second resolution changed the tree:\nonce:  %s\ntwice: %s", once.Dump(), twice.Dump())
	}
}

func TestResolveFootnotesOrphans(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &testDocumentConfig().Footnotes

	d := &Document{
		Blocks: []Block{
			{Kind: BlockParagraph, Text: []Inline{
				{Kind: InlineText, Text: "Verweis"},
				anchor("#fn9-9", "9"),
				{Kind: InlineText, Text: " ins Leere."},
			}},
			noteBody("fn1-1", "Niemand zitiert mich."),
		},
	}
	res, err := ResolveFootnotes(log, d, cfg)
	if err != nil {
		t.Fatal(err)
	}

	// dangling reference degrades to plain superscript text
	for _, in := range res.Blocks[0].Text {
		if in.Kind == InlineNoteRef || in.Kind == InlineLink {
			t.Fatalf("orphaned reference must not stay a link: %+v", in)
		}
	}

	if len(res.Notes) != 1 || !res.Notes[0].Orphaned || res.Notes[0].BackRefID != "" {
		t.Fatalf("orphaned note mishandled: %+v", res.Notes)
	}

	var codes []IssueCode
	for _, is := range res.Issues {
		codes = append(codes, is.Code)
	}
	if !reflect.DeepEqual(codes, []IssueCode{IssueOrphanReference, IssueOrphanNote}) {
		t.Fatalf("unexpected issues: %+v", res.Issues)
	}
}

func TestFootnoteReferencesInsideNotes(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &testDocumentConfig().Footnotes

	d := &Document{
		Blocks: []Block{
			{Kind: BlockParagraph, Text: []Inline{
				{Kind: InlineText, Text: "Haupttext"},
				anchor("#fn1", "1"),
			}},
			{Kind: BlockNoteBody, ID: "fn1", Items: []Block{
				{Kind: BlockParagraph, Text: []Inline{
					{Kind: InlineText, Text: "Siehe auch"},
					anchor("#fn2", "2"),
				}},
			}},
			noteBody("fn2", "Die zweite Anmerkung."),
		},
	}
	res, err := ResolveFootnotes(log, d, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Notes) != 2 {
		t.Fatalf("expected both notes resolved, got %+v", res.Notes)
	}
	ref := res.Notes[0].Body[0].Text[1]
	if ref.Kind != InlineNoteRef || ref.TargetID != res.Notes[1].ID {
		t.Fatalf("citation inside note body not resolved: %+v", ref)
	}
}
