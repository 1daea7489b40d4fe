package book

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gosimple/slug"
)

// Allocator hands out document-unique ids. Allocation is append-only, an id
// once returned is never reused. Reserve existing ids before allocating when
// working on a tree which already carries some.
type Allocator struct {
	used     map[string]struct{}
	counters map[string]int
}

func NewAllocator() *Allocator {
	return &Allocator{
		used:     make(map[string]struct{}),
		counters: make(map[string]int),
	}
}

// Reserve marks id as taken without allocating it.
func (a *Allocator) Reserve(id string) {
	if id != "" {
		a.used[id] = struct{}{}
	}
}

// Reserved reports whether id has been reserved or allocated already.
func (a *Allocator) Reserved(id string) bool {
	_, ok := a.used[id]
	return ok
}

// PageID derives a marker id from the page label, falling back to the
// positional order when the label produces nothing usable.
func (a *Allocator) PageID(label string, order int) string {
	token := slug.Make(label)
	if token == "" {
		token = fmt.Sprintf("pos-%d", order)
	}
	return a.unique("page-" + token)
}

// NoteID derives a note id from the citation glyph. The glyph is normalized
// to a compact token and disambiguated by a counter scoped to that token, so
// a "*" on page 12 and a "*" on page 80 never collide.
func (a *Allocator) NoteID(glyph string) string {
	token := glyphToken(glyph)
	a.counters[token]++
	return a.unique(fmt.Sprintf("%s-%d", token, a.counters[token]))
}

// RefID derives a reference anchor id from the id of the note it points at.
func (a *Allocator) RefID(noteID string) string {
	return a.unique("ref-" + noteID)
}

// unique applies the collision policy: append an incrementing suffix until
// the id is free, then take it.
func (a *Allocator) unique(id string) string {
	res := id
	for n := 2; ; n++ {
		if _, taken := a.used[res]; !taken {
			break
		}
		res = fmt.Sprintf("%s-%d", id, n)
	}
	a.used[res] = struct{}{}
	return res
}

var glyphNames = map[rune]string{
	'*': "star",
	'†': "dagger",
	'‡': "ddagger",
	'§': "sect",
	'¶': "pilcrow",
}

// glyphToken maps a citation glyph to the token used in note ids. Superscript
// digits map to their plain forms, common typographic marks get names, the
// rest goes through slug normalization.
func glyphToken(glyph string) string {
	var buf strings.Builder
	for _, r := range strings.TrimSpace(glyph) {
		switch {
		case r >= '0' && r <= '9':
			buf.WriteRune(r)
		case unicode.Is(unicode.No, r):
			if d, ok := superscripts[r]; ok {
				buf.WriteRune(d)
			}
		default:
			if name, ok := glyphNames[r]; ok {
				buf.WriteString(name)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	token := slug.Make(buf.String())
	if token == "" {
		token = "note"
	}
	return token
}

var superscripts = map[rune]rune{
	'⁰': '0', '¹': '1', '²': '2', '³': '3', '⁴': '4',
	'⁵': '5', '⁶': '6', '⁷': '7', '⁸': '8', '⁹': '9',
}

// collectIDs walks the tree gathering every id present on blocks, inline
// nodes and notes.
func collectIDs(d *Document) map[string]struct{} {
	ids := make(map[string]struct{})
	add := func(id string) {
		if id != "" {
			ids[id] = struct{}{}
		}
	}

	var inlines func([]Inline)
	inlines = func(nodes []Inline) {
		for i := range nodes {
			add(nodes[i].ID)
			inlines(nodes[i].Children)
		}
	}
	var blocks func([]Block)
	blocks = func(nodes []Block) {
		for i := range nodes {
			add(nodes[i].ID)
			inlines(nodes[i].Text)
			blocks(nodes[i].Items)
		}
	}

	blocks(d.Blocks)
	for i := range d.Notes {
		add(d.Notes[i].ID)
		blocks(d.Notes[i].Body)
	}
	return ids
}
