package book

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"folio/config"
)

// Normalize merges ordered per-page fragments into one continuous tree with a
// page marker inserted at each boundary. Duplicate front-matter artifacts
// (bookplates, library stamps, repeated running titles, stray page numbers)
// are dropped best effort when enabled in configuration, every drop is
// recorded as a non-fatal issue. An empty fragment sequence fails the run,
// there is no tree to build.
func Normalize(log *zap.Logger, frags []Fragment, cfg *config.DocumentConfig) (*Document, error) {

	if len(frags) == 0 {
		return nil, errors.New("fragment sequence is empty")
	}

	d := &Document{RunID: uuid.New().String()}
	if tag, err := language.Parse(cfg.Language); err == nil {
		d.Lang = tag
	} else {
		log.Warn("Unable to parse document language, leaving undetermined", zap.String("language", cfg.Language), zap.Error(err))
		d.Lang = language.Und
	}

	alloc := NewAllocator()
	fingerprints := make(map[string]struct{})
	headings := make(map[string]struct{})
	titleKept := false

	for i := range frags {
		frag := &frags[i]

		for _, issue := range frag.Issues {
			if issue.Page == "" {
				issue.Page = frag.Label
			}
			d.Issues = append(d.Issues, issue)
		}

		if cfg.FrontMatter.DropArtifacts {
			if isArtifactPage(frag, &cfg.FrontMatter) {
				log.Info("Dropping artifact page", zap.String("label", frag.Label))
				d.Issues = append(d.Issues, Issue{Code: IssueDroppedFragment, Page: frag.Label, Detail: "artifact page signature"})
				continue
			}
			if reason, drop := dropDuplicatePage(frag, headings, &titleKept, &cfg.FrontMatter); drop {
				log.Info("Dropping duplicate front-matter page", zap.String("label", frag.Label), zap.String("reason", reason))
				d.Issues = append(d.Issues, Issue{Code: IssueDroppedFragment, Page: frag.Label, Detail: reason})
				continue
			}
		}

		d.Blocks = append(d.Blocks, Block{
			Kind:  BlockPageBreak,
			ID:    alloc.PageID(frag.Label, frag.Order),
			Label: frag.Label,
		})

		nodes := frag.Nodes
		if cfg.FrontMatter.DropArtifacts {
			nodes = dropLeadingArtifacts(log, d, frag, fingerprints, &cfg.FrontMatter)
		}
		d.Blocks = append(d.Blocks, nodes...)
	}

	if onlyMarkers(d.Blocks) {
		return nil, errors.New("no content survived normalization")
	}

	for i := range d.Blocks {
		if d.Blocks[i].Kind == BlockHeading {
			d.Title = d.Blocks[i].AsPlainText()
			break
		}
	}
	log.Debug("Normalized fragments",
		zap.Int("pages", len(frags)),
		zap.Int("blocks", len(d.Blocks)),
		zap.String("title", d.Title))
	return d, nil
}

func onlyMarkers(blocks []Block) bool {
	for i := range blocks {
		if blocks[i].Kind != BlockPageBreak {
			return false
		}
	}
	return true
}

// callNumber matches short library call numbers like "Hc15 72" or "BF21.R5".
var callNumber = regexp.MustCompile(`^[A-Za-z]{1,4}[\s.]?\d{1,5}([\s./-]?[A-Za-z0-9]{1,5}){0,2}$`)

// isArtifactPage recognizes whole pages carrying no text worth keeping:
// scanner "blank page" placeholders, bookplates and call-number slips.
func isArtifactPage(frag *Fragment, cfg *config.FrontMatterConfig) bool {
	for i := range frag.Nodes {
		if blockHasClass(&frag.Nodes[i], "bookplate") {
			return true
		}
	}
	var texts []string
	for i := range frag.Nodes {
		if frag.Nodes[i].Kind == BlockFigure {
			continue
		}
		if text := frag.Nodes[i].AsPlainText(); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return false // empty pages keep their marker
	}
	joined := strings.Join(texts, " ")
	switch strings.ToLower(joined) {
	case "blank page", "leere seite", "vacat":
		return true
	}
	if len(texts) <= 3 && isFrontMatterPage(frag.Label, cfg.PageThreshold) {
		plausible := 0
		for _, text := range texts {
			if callNumber.MatchString(text) || isStampText(text, cfg.StampWords) {
				plausible++
			}
		}
		return plausible == len(texts)
	}
	return false
}

func blockHasClass(b *Block, class string) bool {
	for _, c := range strings.Fields(b.Class) {
		if c == class {
			return true
		}
	}
	for i := range b.Items {
		if blockHasClass(&b.Items[i], class) {
			return true
		}
	}
	return false
}

// dropDuplicatePage recognizes whole front-matter pages the scan repeats, such
// as a half title photographed twice. Pages are keyed by their heading set;
// pages matching one of the configured title words keep their first occurrence
// and drop the rest. Heading keys are only remembered for kept pages.
func dropDuplicatePage(frag *Fragment, headings map[string]struct{}, titleKept *bool, cfg *config.FrontMatterConfig) (string, bool) {
	if !isFrontMatterPage(frag.Label, cfg.PageThreshold) {
		return "", false
	}

	if isTitleLikePage(frag, cfg.TitleWords) {
		if *titleKept {
			return "repeated title page", true
		}
		*titleKept = true
		headings[pageHeadingKey(frag)] = struct{}{}
		return "", false
	}

	key := pageHeadingKey(frag)
	if key == "" {
		return "", false
	}
	if _, seen := headings[key]; seen {
		return "duplicate page headings: " + key, true
	}
	headings[key] = struct{}{}
	return "", false
}

func pageHeadingKey(frag *Fragment) string {
	var parts []string
	for i := range frag.Nodes {
		if frag.Nodes[i].Kind == BlockHeading && frag.Nodes[i].Level <= 3 {
			parts = append(parts, frag.Nodes[i].AsPlainText())
		}
	}
	return fingerprint(strings.Join(parts, " "))
}

func isTitleLikePage(frag *Fragment, words []string) bool {
	if len(words) == 0 {
		return false
	}
	var texts []string
	for i := range frag.Nodes {
		if text := frag.Nodes[i].AsPlainText(); text != "" {
			texts = append(texts, text)
		}
	}
	joined := strings.ToLower(strings.Join(texts, " "))
	for _, w := range words {
		if strings.Contains(joined, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// isStampText recognizes short all-caps ownership stamps, optionally requiring
// one of the configured stamp words.
func isStampText(text string, stampWords []string) bool {
	if len(text) > 60 {
		return false
	}
	upper := strings.ToUpper(text)
	if upper != text {
		return false
	}
	hasLetter := false
	for _, r := range text {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}
	if len(stampWords) == 0 {
		return true
	}
	for _, w := range stampWords {
		if strings.Contains(upper, strings.ToUpper(w)) {
			return true
		}
	}
	return false
}

// dropLeadingArtifacts removes stray page-number paragraphs and repeated
// short front-matter blocks right after a page boundary. Fingerprints of kept
// short leading blocks feed the duplicate detection for later pages.
func dropLeadingArtifacts(log *zap.Logger, d *Document, frag *Fragment, fingerprints map[string]struct{}, cfg *config.FrontMatterConfig) []Block {

	nodes := frag.Nodes
	front := isFrontMatterPage(frag.Label, cfg.PageThreshold)

	for len(nodes) > 0 {
		first := &nodes[0]
		if first.Kind != BlockParagraph && first.Kind != BlockHeading {
			break
		}
		text := first.AsPlainText()

		if isStrayPageNumber(text, frag.Label) {
			log.Debug("Dropping stray page number", zap.String("label", frag.Label), zap.String("text", text))
			d.Issues = append(d.Issues, Issue{Code: IssueDroppedArtifact, Page: frag.Label, Detail: "stray page number: " + text})
			nodes = nodes[1:]
			continue
		}

		if !front || len(text) > 80 {
			break
		}
		fp := fingerprint(text)
		if _, seen := fingerprints[fp]; seen {
			log.Debug("Dropping duplicate front-matter block", zap.String("label", frag.Label), zap.String("text", text))
			d.Issues = append(d.Issues, Issue{Code: IssueDroppedArtifact, Page: frag.Label, Detail: "duplicate front matter: " + text})
			nodes = nodes[1:]
			continue
		}
		if isStampText(text, cfg.StampWords) {
			log.Debug("Dropping ownership stamp", zap.String("label", frag.Label), zap.String("text", text))
			d.Issues = append(d.Issues, Issue{Code: IssueDroppedArtifact, Page: frag.Label, Detail: "ownership stamp: " + text})
			nodes = nodes[1:]
			continue
		}
		fingerprints[fp] = struct{}{}
		break
	}
	return nodes
}

func isFrontMatterPage(label string, threshold int) bool {
	n, err := strconv.Atoi(label)
	if err != nil {
		// roman numerals and unlabeled pages count as front matter
		return true
	}
	return n < threshold
}

var bareNumber = regexp.MustCompile(`^\d{1,4}$`)

// isStrayPageNumber recognizes a paragraph repeating the printed page number
// the transcription already carries as the page label.
func isStrayPageNumber(text, label string) bool {
	text = strings.Trim(text, " .[]-–")
	if !bareNumber.MatchString(text) {
		return false
	}
	return text == strings.TrimLeft(label, "0") || text == label
}

func fingerprint(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
