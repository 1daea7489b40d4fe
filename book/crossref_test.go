package book

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func marker(label string) Block {
	return Block{Kind: BlockPageBreak, ID: "page-" + label, Label: label}
}

func testRegisterDoc() *Document {
	return &Document{
		Blocks: []Block{
			marker("12"), para("Inhalt der Seite zwölf."),
			marker("14"), para("Vierzehn."),
			marker("15"), para("Fünfzehn."),
			marker("16"), para("Sechzehn."),
			marker("20"), para("Zwanzig."),
			marker("300"),
			heading(1, "Namen- und Sachregister"),
			para("Logik 12, 14–16, 20ff."),
		},
	}
}

func pageLinks(b *Block) []Inline {
	var res []Inline
	for _, in := range b.Text {
		if in.Kind == InlineLink && in.Class == "page-ref" {
			res = append(res, in)
		}
	}
	return res
}

func TestLinkCitations(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &testDocumentConfig().Register

	d, err := LinkCitations(log, testRegisterDoc(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	entry := &d.Blocks[len(d.Blocks)-1]
	links := pageLinks(entry)
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %+v", entry.Text)
	}
	targets := []string{"#page-12", "#page-14", "#page-20"}
	for i, want := range targets {
		if links[i].Href != want {
			t.Fatalf("link %d targets %q, expected %q", i, links[i].Href, want)
		}
	}
	// only the first page of a range is linked
	if got := entry.AsPlainText(); got != "Logik 12, 14–16, 20ff." {
		t.Fatalf("visible text must not change, got %q", got)
	}
}

func TestLinkCitationsScopeIsBounded(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &testDocumentConfig().Register

	d := &Document{
		Blocks: []Block{
			marker("12"),
			para("Im Jahre 12 geschah nichts."),
			heading(1, "Register"),
			para("Logik 12."),
			heading(1, "Nachwort"),
			para("Noch einmal 12."),
		},
	}
	res, err := LinkCitations(log, d, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if links := pageLinks(&res.Blocks[1]); len(links) != 0 {
		t.Fatalf("body text before the register must not be linkified: %+v", links)
	}
	if links := pageLinks(&res.Blocks[3]); len(links) != 1 {
		t.Fatalf("register entry not linkified: %+v", res.Blocks[3].Text)
	}
	if links := pageLinks(&res.Blocks[5]); len(links) != 0 {
		t.Fatalf("text after the register must not be linkified: %+v", links)
	}
}

func TestLinkCitationsUnresolvable(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &testDocumentConfig().Register

	d := &Document{
		Blocks: []Block{
			marker("12"),
			heading(1, "Register"),
			para("Logik 999."),
		},
	}
	res, err := LinkCitations(log, d, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if links := pageLinks(&res.Blocks[2]); len(links) != 0 {
		t.Fatalf("unknown page must stay plain text: %+v", links)
	}
	if len(res.Issues) != 1 || res.Issues[0].Code != IssueUnresolvedCitation {
		t.Fatalf("unresolved citation not recorded: %+v", res.Issues)
	}
	if res.Issues[0].Page != "12" {
		t.Fatalf("issue must carry the label of the preceding page marker, got %q", res.Issues[0].Page)
	}
	if got := res.Blocks[2].AsPlainText(); got != "Logik 999." {
		t.Fatalf("text corrupted: %q", got)
	}
}

func TestLinkCitationsRepairsDeadLinks(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := &testDocumentConfig().Register

	d := &Document{
		Blocks: []Block{
			marker("12"),
			{Kind: BlockParagraph, Text: []Inline{
				{Kind: InlineLink, Href: "#p0012", Children: []Inline{{Kind: InlineText, Text: "12"}}},
				{Kind: InlineLink, Href: "#page-12", Children: []Inline{{Kind: InlineText, Text: "12"}}},
				{Kind: InlineLink, Href: "#missing", Children: []Inline{{Kind: InlineText, Text: "siehe oben"}}},
			}},
		},
	}
	res, err := LinkCitations(log, d, cfg)
	if err != nil {
		t.Fatal(err)
	}

	text := res.Blocks[1].Text
	if text[0].Href != "#page-12" {
		t.Fatalf("dead numeric link not repaired: %+v", text[0])
	}
	if text[1].Href != "#page-12" {
		t.Fatalf("live link must stay untouched: %+v", text[1])
	}
	if text[2].Href != "#missing" {
		t.Fatalf("non-numeric dead link must stay untouched: %+v", text[2])
	}
	if len(res.Issues) != 1 || res.Issues[0].Code != IssueRepairedLink {
		t.Fatalf("repair not recorded: %+v", res.Issues)
	}
}
