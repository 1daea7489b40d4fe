package book

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"folio/config"
)

func testDocumentConfig() *config.DocumentConfig {
	return &config.DocumentConfig{
		Language: "de",
		FrontMatter: config.FrontMatterConfig{
			DropArtifacts: true,
			PageThreshold: 30,
			StampWords:    []string{"YALE", "MEDICAL LIBRARY", "EX LIBRIS"},
			TitleWords:    []string{"Philologische Untersuchungen", "Weidmannsche Buchhandlung"},
		},
		Footnotes: config.FootnotesConfig{
			Title:         "Anmerkungen",
			AnchorClasses: []string{"fn-ref", "footnote-ref"},
		},
		Register: config.RegisterConfig{
			Keywords: []string{"register", "inhalt", "inhaltsverzeichnis", "verzeichnis", "index", "contents"},
		},
	}
}

func para(text string) Block {
	return Block{Kind: BlockParagraph, Text: []Inline{{Kind: InlineText, Text: text}}}
}

func heading(level int, text string) Block {
	return Block{Kind: BlockHeading, Level: level, Text: []Inline{{Kind: InlineText, Text: text}}}
}

func TestNormalizeInsertsMarkers(t *testing.T) {
	log := zaptest.NewLogger(t)

	frags := []Fragment{
		{Label: "7", Order: 0, Nodes: []Block{heading(1, "Erstes Kapitel"), para("Die Sache beginnt hier-")}},
		{Label: "8", Order: 1, Nodes: []Block{para("bei der Methode.")}},
	}
	d, err := Normalize(log, frags, testDocumentConfig())
	if err != nil {
		t.Fatal(err)
	}

	kinds := []BlockKind{BlockPageBreak, BlockHeading, BlockParagraph, BlockPageBreak, BlockParagraph}
	if len(d.Blocks) != len(kinds) {
		t.Fatalf("expected %d blocks, got %d", len(kinds), len(d.Blocks))
	}
	for i, k := range kinds {
		if d.Blocks[i].Kind != k {
			t.Fatalf("block %d: expected %s, got %s", i, k, d.Blocks[i].Kind)
		}
	}
	if d.Blocks[0].ID != "page-7" || d.Blocks[0].Label != "7" {
		t.Fatalf("unexpected first marker: %+v", d.Blocks[0])
	}
	if d.Blocks[3].ID != "page-8" {
		t.Fatalf("unexpected second marker: %+v", d.Blocks[3])
	}
	if d.Title != "Erstes Kapitel" {
		t.Fatalf("unexpected title %q", d.Title)
	}
	if d.Lang.String() != "de" {
		t.Fatalf("unexpected language %s", d.Lang)
	}
	if d.RunID == "" {
		t.Fatal("run id not assigned")
	}
}

func TestNormalizeDropsStrayPageNumbers(t *testing.T) {
	log := zaptest.NewLogger(t)

	frags := []Fragment{
		{Label: "41", Order: 0, Nodes: []Block{para("41"), para("Der eigentliche Text.")}},
	}
	d, err := Normalize(log, frags, testDocumentConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Blocks) != 2 {
		t.Fatalf("stray page number not dropped: %+v", d.Blocks)
	}
	if len(d.Issues) != 1 || d.Issues[0].Code != IssueDroppedArtifact {
		t.Fatalf("drop not recorded: %+v", d.Issues)
	}
}

func TestNormalizeDropsArtifactPages(t *testing.T) {
	log := zaptest.NewLogger(t)

	frags := []Fragment{
		{Label: "1", Order: 0, Nodes: []Block{para("Blank page")}},
		{Label: "2", Order: 1, Nodes: []Block{para("YALE MEDICAL LIBRARY"), para("Hc15 72")}},
		{Label: "3", Order: 2, Nodes: []Block{para("Der eigentliche Anfang.")}},
	}
	d, err := Normalize(log, frags, testDocumentConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Blocks) != 2 || d.Blocks[0].Label != "3" {
		t.Fatalf("artifact pages not dropped: %+v", d.Blocks)
	}
	if len(d.Issues) != 2 {
		t.Fatalf("expected 2 dropped fragment issues, got %+v", d.Issues)
	}
}

func TestNormalizeDropsDuplicateFrontMatter(t *testing.T) {
	log := zaptest.NewLogger(t)

	frags := []Fragment{
		{Label: "3", Order: 0, Nodes: []Block{heading(1, "Über die Methode"), para("Vorwort beginnt.")}},
		{Label: "5", Order: 1, Nodes: []Block{heading(1, "Über die Methode"), para("Der Text selbst.")}},
	}
	d, err := Normalize(log, frags, testDocumentConfig())
	if err != nil {
		t.Fatal(err)
	}
	headings := 0
	for i := range d.Blocks {
		if d.Blocks[i].Kind == BlockHeading {
			headings++
		}
	}
	if headings != 1 {
		t.Fatalf("duplicate front-matter heading not dropped: %+v", d.Blocks)
	}
}

func TestNormalizeDropsBookplatePages(t *testing.T) {
	log := zaptest.NewLogger(t)

	plate := para("Aus der Bibliothek des Verfassers.")
	plate.Class = "bookplate"
	frags := []Fragment{
		{Label: "ii", Order: 0, Nodes: []Block{plate}},
		{Label: "1", Order: 1, Nodes: []Block{para("Der Anfang.")}},
	}
	d, err := Normalize(log, frags, testDocumentConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Blocks) != 2 || d.Blocks[0].Label != "1" {
		t.Fatalf("bookplate page not dropped: %+v", d.Blocks)
	}
	if len(d.Issues) != 1 || d.Issues[0].Code != IssueDroppedFragment || d.Issues[0].Page != "ii" {
		t.Fatalf("drop not recorded: %+v", d.Issues)
	}
}

func TestNormalizeDropsDuplicatePages(t *testing.T) {
	log := zaptest.NewLogger(t)

	frags := []Fragment{
		{Label: "3", Order: 0, Nodes: []Block{heading(1, "Über die Methode"), para("Vorwort beginnt.")}},
		{Label: "5", Order: 1, Nodes: []Block{heading(1, "Über die Methode"), para("Nochmals eingescannt.")}},
		{Label: "7", Order: 2, Nodes: []Block{para("Der Text selbst.")}},
	}
	d, err := Normalize(log, frags, testDocumentConfig())
	if err != nil {
		t.Fatal(err)
	}
	// the repeated page disappears wholesale, marker included
	for i := range d.Blocks {
		if d.Blocks[i].Label == "5" {
			t.Fatalf("duplicate page must lose its marker: %+v", d.Blocks)
		}
		if text := d.Blocks[i].AsPlainText(); text == "Nochmals eingescannt." {
			t.Fatalf("duplicate page content survived: %+v", d.Blocks)
		}
	}
	if len(d.Issues) != 1 || d.Issues[0].Code != IssueDroppedFragment || d.Issues[0].Page != "5" {
		t.Fatalf("drop not recorded: %+v", d.Issues)
	}
}

func TestNormalizeKeepsFirstTitlePage(t *testing.T) {
	log := zaptest.NewLogger(t)

	frags := []Fragment{
		{Label: "i", Order: 0, Nodes: []Block{para("Philologische Untersuchungen"), para("Erstes Heft")}},
		{Label: "iii", Order: 1, Nodes: []Block{para("Philologische Untersuchungen"), para("Berlin, Weidmannsche Buchhandlung")}},
		{Label: "1", Order: 2, Nodes: []Block{para("Der Text.")}},
	}
	d, err := Normalize(log, frags, testDocumentConfig())
	if err != nil {
		t.Fatal(err)
	}
	var labels []string
	for i := range d.Blocks {
		if d.Blocks[i].Kind == BlockPageBreak {
			labels = append(labels, d.Blocks[i].Label)
		}
	}
	if len(labels) != 2 || labels[0] != "i" || labels[1] != "1" {
		t.Fatalf("only the first title-like page may survive, got markers %v", labels)
	}
	if len(d.Issues) != 1 || d.Issues[0].Page != "iii" {
		t.Fatalf("drop not recorded: %+v", d.Issues)
	}
}

func TestNormalizeFoldsFragmentIssues(t *testing.T) {
	log := zaptest.NewLogger(t)

	frags := []Fragment{
		{Label: "41", Order: 0,
			Nodes:  []Block{para("Zeile eins Zeile zwei")},
			Issues: []Issue{{Code: IssueFlattened, Detail: "table flattened to paragraphs"}}},
	}
	d, err := Normalize(log, frags, testDocumentConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Issues) != 1 || d.Issues[0].Code != IssueFlattened {
		t.Fatalf("fragment issue not folded into the document: %+v", d.Issues)
	}
	if d.Issues[0].Page != "41" {
		t.Fatalf("issue must inherit the page label, got %q", d.Issues[0].Page)
	}
}

func TestNormalizeKeepsDuplicatesInMainMatter(t *testing.T) {
	log := zaptest.NewLogger(t)

	frags := []Fragment{
		{Label: "100", Order: 0, Nodes: []Block{heading(2, "Kapitel"), para("Text.")}},
		{Label: "101", Order: 1, Nodes: []Block{heading(2, "Kapitel"), para("Mehr Text.")}},
	}
	d, err := Normalize(log, frags, testDocumentConfig())
	if err != nil {
		t.Fatal(err)
	}
	headings := 0
	for i := range d.Blocks {
		if d.Blocks[i].Kind == BlockHeading {
			headings++
		}
	}
	if headings != 2 {
		t.Fatalf("main matter headings must survive: %+v", d.Blocks)
	}
}

func TestNormalizeFailsOnEmptyInput(t *testing.T) {
	log := zaptest.NewLogger(t)

	if _, err := Normalize(log, nil, testDocumentConfig()); err == nil {
		t.Fatal("expected error for empty fragment sequence")
	}
	if _, err := Normalize(log, []Fragment{{Label: "1"}, {Label: "2"}}, testDocumentConfig()); err == nil {
		t.Fatal("expected error when no content survives")
	}
}
