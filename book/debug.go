package book

import (
	"folio/utils/debug"
)

// Dump renders the tree in a compact indented form for logs and reports.
func (d *Document) Dump() string {
	tw := debug.NewTreeWriter()

	tw.Line(0, "document run=%s lang=%s", d.RunID, d.Lang)
	if d.Title != "" {
		tw.TextBlock(0, "title", d.Title)
	}
	dumpBlocks(tw, 1, d.Blocks)
	if len(d.Notes) > 0 {
		tw.Line(0, "notes: %d", len(d.Notes))
		for i := range d.Notes {
			n := &d.Notes[i]
			tw.Line(1, "note id=%s source=%s backref=%s orphaned=%t", n.ID, n.SourceID, n.BackRefID, n.Orphaned)
			dumpBlocks(tw, 2, n.Body)
		}
	}
	if len(d.Issues) > 0 {
		tw.Line(0, "issues: %d", len(d.Issues))
		for i := range d.Issues {
			tw.Line(1, "%s page=%s %s", d.Issues[i].Code, d.Issues[i].Page, d.Issues[i].Detail)
		}
	}
	return tw.String()
}

func dumpBlocks(tw *debug.TreeWriter, depth int, blocks []Block) {
	for i := range blocks {
		b := &blocks[i]
		switch b.Kind {
		case BlockPageBreak:
			tw.Line(depth, "page label=%s id=%s", b.Label, b.ID)
		case BlockHeading:
			tw.Line(depth, "heading level=%d id=%s", b.Level, b.ID)
		case BlockColumns:
			tw.Line(depth, "columns cols=%d", b.Cols)
		case BlockFigure:
			tw.Line(depth, "figure src=%s alt=%s", b.Src, b.Alt)
		default:
			tw.Line(depth, "%s id=%s", b.Kind, b.ID)
		}
		if len(b.Text) > 0 {
			tw.TextBlock(depth+1, "text", b.AsPlainText())
		}
		dumpBlocks(tw, depth+1, b.Items)
	}
}
