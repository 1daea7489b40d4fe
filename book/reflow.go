package book

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// View is the render-time face of a finished document. It owns a working copy
// of the canonical tree and a single flag controlling page marker visibility.
// Hiding markers stitches paragraphs split by page boundaries back together,
// showing them again discards the working copy and rebuilds from the
// canonical snapshot, so toggling is deterministic and fully reversible.
type View struct {
	canonical      *Document
	working        *Document
	markersVisible bool
}

// NewView wraps a canonical document, markers start visible.
func NewView(d *Document) *View {
	return &View{
		canonical:      d,
		working:        d.Clone(),
		markersVisible: true,
	}
}

func (v *View) MarkersVisible() bool {
	return v.markersVisible
}

// Document returns the current working tree. Callers must treat it as
// read-only, the next toggle replaces it.
func (v *View) Document() *Document {
	return v.working
}

// SetMarkersVisible switches between the paginated and the reflowed
// rendition. Both directions start from a fresh copy of the canonical tree,
// the canonical state is never touched.
func (v *View) SetMarkersVisible(visible bool) {
	if visible == v.markersVisible {
		return
	}
	v.markersVisible = visible
	v.working = v.canonical.Clone()
	if !visible {
		v.working.Blocks = reflowBlocks(v.working.Blocks)
	}
}

// reflowBlocks removes page markers and stitches paragraph pairs they split.
// A marker directly between two paragraphs is a merge boundary, any other
// marker is simply dropped.
func reflowBlocks(blocks []Block) []Block {
	res := blocks[:0]
	for i := 0; i < len(blocks); i++ {
		b := blocks[i]
		if b.Kind != BlockPageBreak {
			b.Items = reflowBlocks(b.Items)
			res = append(res, b)
			continue
		}
		if len(res) > 0 && i+1 < len(blocks) &&
			res[len(res)-1].Kind == BlockParagraph && blocks[i+1].Kind == BlockParagraph {
			lead := &res[len(res)-1]
			lead.Text = joinParagraphs(lead.Text, blocks[i+1].Text)
			i++ // trailing paragraph consumed
		}
	}
	return res
}

// hyphen class characters: plain, soft and non-breaking hyphen
const hyphens = "-­‑"

// joinParagraphs merges the inline content of two paragraphs split by a page
// boundary. A word broken by a line-end hyphen is rejoined without the hyphen
// and without a space. Otherwise a word continuing the flow gets a single
// separating space unless the lead ends in a hyphen or an opening bracket or
// quote, so "Satz." + "Neuer" keeps its sentence spacing and "Nord-" + "Süd"
// keeps the compound hyphen.
func joinParagraphs(lead, trail []Inline) []Inline {
	last, prev := tailRunes(lead)
	first := headRune(trail)

	switch {
	case strings.ContainsRune(hyphens, last) && unicode.IsLetter(prev) && unicode.IsLower(first):
		lead = trimTailRune(lead)
	case last != 0 && isAlnum(first) && !strings.ContainsRune(hyphens, last) && !unicode.In(last, unicode.Ps, unicode.Pi):
		lead = append(lead, Inline{Kind: InlineText, Text: " "})
	}
	return append(lead, trail...)
}

// tailRunes returns the last rune of the inline sequence and the one before
// it, zero when absent.
func tailRunes(nodes []Inline) (last, prev rune) {
	var text string
	for i := range nodes {
		text += nodes[i].AsText()
	}
	if text == "" {
		return 0, 0
	}
	last, size := utf8.DecodeLastRuneInString(text)
	prev, _ = utf8.DecodeLastRuneInString(text[:len(text)-size])
	return last, prev
}

func headRune(nodes []Inline) rune {
	for i := range nodes {
		if text := nodes[i].AsText(); text != "" {
			r, _ := utf8.DecodeRuneInString(text)
			return r
		}
	}
	return 0
}

// trimTailRune removes the final rune from the deepest trailing text node,
// dropping nodes emptied by the removal.
func trimTailRune(nodes []Inline) []Inline {
	for i := len(nodes) - 1; i >= 0; i-- {
		n := &nodes[i]
		if len(n.Children) > 0 {
			n.Children = trimTailRune(n.Children)
			if len(n.Children) == 0 && n.Text == "" {
				return nodes[:i]
			}
			return nodes[:i+1]
		}
		if n.Text != "" {
			_, size := utf8.DecodeLastRuneInString(n.Text)
			n.Text = n.Text[:len(n.Text)-size]
			if n.Text == "" && n.Kind == InlineText {
				return nodes[:i]
			}
			return nodes[:i+1]
		}
	}
	return nodes
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
