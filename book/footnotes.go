package book

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"folio/config"
)

// ResolveFootnotes rewrites inline citation anchors as footnote references
// and consolidates authored note bodies into the document's back matter,
// ordered by first-reference appearance. The input tree is not modified. The
/// pass is idempotent: references it produced earlier are not candidates and
// an already consolidated tree comes out unchanged.
func ResolveFootnotes(log *zap.Logger, d *Document, cfg *config.FootnotesConfig) (*Document, error) {

	res := d.Clone()

	alloc := NewAllocator()
	for id := range collectIDs(res) {
		alloc.Reserve(id)
	}

	r := &resolver{
		log:     log,
		alloc:   alloc,
		classes: cfg.AnchorClasses,
		bodies:  make(map[string]Block),
		byKey:   make(map[string]int),
		orphans: make(map[string]struct{}),
	}

	res.Blocks = r.extractBodies(res.Blocks)
	r.rewriteBlocks(res.Blocks)

	// note bodies may cite other notes, the list can grow while rewriting
	for i := 0; i < len(r.notes); i++ {
		r.rewriteBlocks(r.notes[i].Body)
	}

	res.Notes = append(res.Notes, r.notes...)
	res.Issues = append(res.Issues, r.issues...)

	// bodies nothing referenced, retained and flagged
	for _, key := range r.bodyOrder {
		body, left := r.bodies[key]
		if !left {
			continue
		}
		note := Note{
			ID:       alloc.NoteID(bodyGlyph(key)),
			SourceID: key,
			Orphaned: true,
			Body:     body.Items,
		}
		res.Notes = append(res.Notes, note)
		res.Issues = append(res.Issues, Issue{Code: IssueOrphanNote, Detail: "note " + key + " is never referenced"})
		log.Warn("Keeping orphaned note", zap.String("source", key), zap.String("id", note.ID))
	}

	log.Debug("Resolved footnotes",
		zap.Int("notes", len(res.Notes)),
		zap.Int("orphaned references", len(r.orphans)))
	return res, nil
}

type resolver struct {
	log     *zap.Logger
	alloc   *Allocator
	classes []string

	bodies    map[string]Block
	bodyOrder []string
	notes     []Note
	byKey     map[string]int
	orphans   map[string]struct{}
	issues    []Issue
}

// extractBodies pulls authored note bodies out of the flow, keyed by the id
// they carried in the transcription.
func (r *resolver) extractBodies(blocks []Block) []Block {
	res := blocks[:0]
	for i := range blocks {
		b := blocks[i]
		if b.Kind == BlockNoteBody {
			if _, dup := r.bodies[b.ID]; dup {
				r.log.Warn("Merging duplicate note body", zap.String("id", b.ID))
				merged := r.bodies[b.ID]
				merged.Items = append(merged.Items, b.Items...)
				r.bodies[b.ID] = merged
				continue
			}
			r.bodies[b.ID] = b
			r.bodyOrder = append(r.bodyOrder, b.ID)
			continue
		}
		b.Items = r.extractBodies(b.Items)
		res = append(res, b)
	}
	return res
}

func (r *resolver) rewriteBlocks(blocks []Block) {
	for i := range blocks {
		blocks[i].Text = r.rewriteInlines(blocks[i].Text)
		r.rewriteBlocks(blocks[i].Items)
	}
}

func (r *resolver) rewriteInlines(nodes []Inline) []Inline {
	for i := range nodes {
		in := &nodes[i]
		if in.Kind != InlineLink || !r.isCandidate(in) {
			in.Children = r.rewriteInlines(in.Children)
			continue
		}
		nodes[i] = r.resolve(in)
	}
	return nodes
}

// isCandidate recognizes citation anchors by the configured class convention
// or by the common fn-prefixed fragment target.
func (r *resolver) isCandidate(in *Inline) bool {
	for _, c := range strings.Fields(in.Class) {
		for _, want := range r.classes {
			if c == want {
				return true
			}
		}
	}
	return strings.HasPrefix(in.Href, "#fn")
}

// resolve binds one citation anchor to its note, allocating the note on first
// sight. Anchors whose note body cannot be found degrade to plain superscript
// text, never a dead link.
func (r *resolver) resolve(in *Inline) Inline {
	glyph := inlinePlainText(in.Children)
	key := strings.TrimPrefix(in.Href, "#")

	idx, known := r.byKey[key]
	if !known {
		body, found := r.bodies[key]
		if key == "" || !found {
			if _, reported := r.orphans[key+"\x00"+glyph]; !reported {
				r.orphans[key+"\x00"+glyph] = struct{}{}
				r.issues = append(r.issues, Issue{Code: IssueOrphanReference, Detail: "no note found for reference " + glyph + " (" + in.Href + ")"})
				r.log.Warn("Demoting orphaned reference to plain text", zap.String("glyph", glyph), zap.String("href", in.Href))
			}
			return Inline{Kind: InlineSup, Children: []Inline{{Kind: InlineText, Text: glyph}}}
		}

		noteID := r.alloc.NoteID(glyph)
		refID := r.alloc.RefID(noteID)
		r.notes = append(r.notes, Note{
			ID:        noteID,
			SourceID:  key,
			BackRefID: refID,
			Body:      body.Items,
		})
		delete(r.bodies, key)
		idx = len(r.notes) - 1
		r.byKey[key] = idx

		return Inline{Kind: InlineNoteRef, ID: refID, TargetID: noteID, Text: glyph}
	}

	// secondary reference, the primary back-reference stays with the first one
	refID := r.alloc.RefID(r.notes[idx].ID)
	return Inline{Kind: InlineNoteRef, ID: refID, TargetID: r.notes[idx].ID, Text: glyph}
}

var trailingDigits = regexp.MustCompile(`\d{1,4}$`)

// bodyGlyph guesses a citation glyph for an orphaned body from its source id.
func bodyGlyph(sourceID string) string {
	if m := trailingDigits.FindString(sourceID); m != "" {
		return m
	}
	return "note"
}
