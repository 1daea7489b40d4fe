package book

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"folio/config"
)

// LinkCitations rewrites bare page-number citations in register and contents
// sections into links targeting page markers. Only subtrees rooted at
// headings matching the configured keyword set are scanned. A secondary
// repair pass fixes existing links whose target does not resolve but whose
// visible text is a known page label. The input tree is not modified.
func LinkCitations(log *zap.Logger, d *Document, cfg *config.RegisterConfig) (*Document, error) {

	res := d.Clone()

	l := &linker{
		log:   log,
		pages: make(map[string]string),
	}
	for i := range res.Blocks {
		if res.Blocks[i].Kind == BlockPageBreak {
			l.pages[normalLabel(res.Blocks[i].Label)] = res.Blocks[i].ID
		}
	}

	// page follows the nearest preceding page marker so issues report where
	// they were found
	for from, level, page := 0, 0, ""; from < len(res.Blocks); from++ {
		b := &res.Blocks[from]
		if b.Kind == BlockPageBreak {
			page = b.Label
			continue
		}
		if b.Kind != BlockHeading || !matchesKeyword(b.AsPlainText(), cfg.Keywords) {
			continue
		}
		level = b.Level
		to := from + 1
		for to < len(res.Blocks) {
			next := &res.Blocks[to]
			if next.Kind == BlockHeading && next.Level <= level && !matchesKeyword(next.AsPlainText(), cfg.Keywords) {
				break
			}
			to++
		}
		log.Debug("Linkifying citations", zap.String("section", b.AsPlainText()), zap.Int("blocks", to-from-1))
		for i := from + 1; i < to; i++ {
			if res.Blocks[i].Kind == BlockPageBreak {
				page = res.Blocks[i].Label
				continue
			}
			l.linkifyBlock(&res.Blocks[i], page)
		}
		from = to - 1
	}

	known := collectIDs(res)
	l.repairBlocks(res.Blocks, known)
	for i := range res.Notes {
		l.repairBlocks(res.Notes[i].Body, known)
	}

	res.Issues = append(res.Issues, l.issues...)
	return res, nil
}

type linker struct {
	log    *zap.Logger
	pages  map[string]string
	issues []Issue
}

func matchesKeyword(heading string, keywords []string) bool {
	text := fingerprint(heading)
	if text == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// citation matches a 1-4 digit page token with an optional range tail or
// continuation marker. Only the leading number is linked, later pages of wide
// ranges are not reliably enumerated by the source.
var citation = regexp.MustCompile(`\b(\d{1,4})(\s*(?:[–—‑-]\s*\d{1,4}|\s*ff?\.))?`)

func (l *linker) linkifyBlock(b *Block, page string) {
	if b.Kind == BlockPageBreak {
		return
	}
	b.Text = l.linkifyInlines(b.Text, page)
	for i := range b.Items {
		l.linkifyBlock(&b.Items[i], page)
	}
}

func (l *linker) linkifyInlines(nodes []Inline, page string) []Inline {
	var res []Inline
	for i := range nodes {
		in := nodes[i]
		switch in.Kind {
		case InlineText:
			res = append(res, l.linkifyText(in.Text, page)...)
			continue
		case InlineLink, InlineNoteRef:
			// existing links are left for the repair pass
		default:
			in.Children = l.linkifyInlines(in.Children, page)
		}
		res = append(res, in)
	}
	return res
}

func (l *linker) linkifyText(text, page string) []Inline {
	var res []Inline
	last := 0
	for _, m := range citation.FindAllStringSubmatchIndex(text, -1) {
		number := text[m[2]:m[3]]
		// a bare number glued to a letter or digit is not a citation
		if m[4] < 0 && m[1] < len(text) {
			if r, _ := utf8.DecodeRuneInString(text[m[1]:]); unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		target, ok := l.pages[normalLabel(number)]
		if !ok {
			l.issues = append(l.issues, Issue{Code: IssueUnresolvedCitation, Page: page, Detail: "no page marker for citation " + number})
			l.log.Debug("Leaving unresolvable citation as text", zap.String("token", number))
			continue
		}
		if m[0] > last {
			res = append(res, Inline{Kind: InlineText, Text: text[last:m[0]]})
		}
		res = append(res, Inline{
			Kind:     InlineLink,
			Class:    "page-ref",
			Href:     "#" + target,
			Children: []Inline{{Kind: InlineText, Text: number}},
		})
		// the range tail stays plain text
		last = m[3]
	}
	if last < len(text) {
		res = append(res, Inline{Kind: InlineText, Text: text[last:]})
	}
	return res
}

// repairBlocks rewrites internal links whose target id does not exist but
// whose visible text is a bare number matching a known page label.
func (l *linker) repairBlocks(blocks []Block, known map[string]struct{}) {
	for i := range blocks {
		l.repairInlines(blocks[i].Text, known)
		l.repairBlocks(blocks[i].Items, known)
	}
}

func (l *linker) repairInlines(nodes []Inline, known map[string]struct{}) {
	for i := range nodes {
		in := &nodes[i]
		l.repairInlines(in.Children, known)
		if in.Kind != InlineLink || !strings.HasPrefix(in.Href, "#") {
			continue
		}
		target := strings.TrimPrefix(in.Href, "#")
		if _, ok := known[target]; ok {
			continue
		}
		text := inlinePlainText(in.Children)
		if !bareNumber.MatchString(text) {
			continue
		}
		page, ok := l.pages[normalLabel(text)]
		if !ok {
			continue
		}
		l.log.Debug("Repairing dead link", zap.String("was", in.Href), zap.String("now", "#"+page))
		l.issues = append(l.issues, Issue{Code: IssueRepairedLink, Detail: "retargeted " + in.Href + " to #" + page})
		in.Href = "#" + page
	}
}

func normalLabel(label string) string {
	if t := strings.TrimLeft(label, "0"); t != "" {
		return t
	}
	return label
}
