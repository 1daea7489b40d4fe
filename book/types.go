// Package book implements the document model and the normalization pipeline
// turning per-page transcription fragments into one continuous tree with
// stable page markers, consolidated footnotes and linkified citations.
package book

import (
	"strings"

	"golang.org/x/text/language"
)

// Fragment is one transcription page: the page label as printed in the source
// plus the block subtree recognized on that page. Issues collects non-fatal
// parse annotations, normalization folds them into the document.
type Fragment struct {
	Label  string
	Order  int // position in the source sequence, used for id fallback
	Nodes  []Block
	Issues []Issue
}

// BlockKind distinguishes the different kinds of block content.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockList
	BlockListItem
	BlockColumns
	BlockFigure
	BlockPageBreak
	BlockNoteBody
)

func (bk BlockKind) String() string {
	switch bk {
	case BlockParagraph:
		return "paragraph"
	case BlockHeading:
		return "heading"
	case BlockList:
		return "list"
	case BlockListItem:
		return "list-item"
	case BlockColumns:
		return "columns"
	case BlockFigure:
		return "figure"
	case BlockPageBreak:
		return "page-break"
	case BlockNoteBody:
		return "note-body"
	default:
		return "unknown"
	}
}

// Block is a single block node. Which fields are meaningful depends on Kind:
// headings use Level, columns containers use Cols, page breaks use Label,
// figures use Src/Alt. Text holds inline content for paragraphs, headings and
// list items; Items holds child blocks for lists and columns containers.
// Class keeps the source class list, front-matter heuristics key off it.
type Block struct {
	Kind    BlockKind
	ID      string
	Class   string
	Level   int
	Cols    int
	Label   string
	Src     string
	Alt     string
	Ordered bool
	Text    []Inline
	Items   []Block
}

// AsPlainText extracts plain text content of the block and its children.
func (b *Block) AsPlainText() string {
	var buf strings.Builder
	for i := range b.Text {
		buf.WriteString(b.Text[i].AsText())
	}
	for i := range b.Items {
		text := b.Items[i].AsPlainText()
		if text != "" {
			if buf.Len() > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(text)
		}
	}
	return strings.TrimSpace(buf.String())
}

// InlineKind distinguishes different inline content types.
type InlineKind int

const (
	InlineText InlineKind = iota
	InlineEmphasis
	InlineStrong
	InlineSup
	InlineLink
	InlineNoteRef
	InlineBreak
)

func (ik InlineKind) String() string {
	switch ik {
	case InlineText:
		return "text"
	case InlineEmphasis:
		return "emphasis"
	case InlineStrong:
		return "strong"
	case InlineSup:
		return "sup"
	case InlineLink:
		return "link"
	case InlineNoteRef:
		return "note-ref"
	case InlineBreak:
		return "break"
	default:
		return "unknown"
	}
}

// Inline stores text or styled/linked inline content. Links keep Href and the
// source anchor class list; note references keep the id of the anchor itself
// (ID) and the id of the note they point to (TargetID).
type Inline struct {
	Kind     InlineKind
	Text     string
	Class    string
	Href     string
	ID       string
	TargetID string
	Children []Inline
}

// AsText returns the plain text content of the inline node, recursively
// extracting text from children.
func (in *Inline) AsText() string {
	var buf strings.Builder
	buf.WriteString(in.Text)
	for i := range in.Children {
		buf.WriteString(in.Children[i].AsText())
	}
	return buf.String()
}

// Note is a consolidated back-matter footnote. BackRefID points at the primary
// (first in document order) reference anchor; it is computed during resolution
// and never maintained separately. SourceID keeps the id the note body carried
// in the transcription so repeated resolution can recognize it.
type Note struct {
	ID        string
	SourceID  string
	BackRefID string
	Orphaned  bool
	Body      []Block
}

// IssueCode classifies non-fatal pipeline annotations.
type IssueCode string

const (
	IssueDroppedFragment    IssueCode = "dropped-fragment"
	IssueDroppedArtifact    IssueCode = "dropped-artifact"
	IssueFlattened          IssueCode = "flattened-structure"
	IssueOrphanReference    IssueCode = "orphan-reference"
	IssueOrphanNote         IssueCode = "orphan-note"
	IssueUnresolvedCitation IssueCode = "unresolved-citation"
	IssueRepairedLink       IssueCode = "repaired-link"
)

// Issue is a non-fatal annotation recorded on the tree and surfaced in the
// run summary. Page carries the label of the page the issue was detected on
// when known.
type Issue struct {
	Code   IssueCode
	Page   string
	Detail string
}

// Document is the canonical tree: one continuous flow of blocks with inline
// page markers, consolidated notes and accumulated non-fatal issues. After the
// pipeline completes it is treated as immutable; view-time transforms operate
// on deep copies.
type Document struct {
	Title  string
	Lang   language.Tag
	RunID  string
	Blocks []Block
	Notes  []Note
	Issues []Issue
}

// Report renders accumulated issues as a human readable summary, one line per
// issue, empty string when the document is clean.
func (d *Document) Report() string {
	if len(d.Issues) == 0 {
		return ""
	}
	var buf strings.Builder
	for i := range d.Issues {
		buf.WriteString(string(d.Issues[i].Code))
		if d.Issues[i].Page != "" {
			buf.WriteString(" [page ")
			buf.WriteString(d.Issues[i].Page)
			buf.WriteString("]")
		}
		if d.Issues[i].Detail != "" {
			buf.WriteString(": ")
			buf.WriteString(d.Issues[i].Detail)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}
