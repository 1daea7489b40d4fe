package book

// Clone returns a deep copy of the document. The pipeline stages and the
// reflow view always work on copies, the tree they received stays untouched.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	res := &Document{
		Title:  d.Title,
		Lang:   d.Lang,
		RunID:  d.RunID,
		Blocks: cloneBlocks(d.Blocks),
	}
	if len(d.Notes) > 0 {
		res.Notes = make([]Note, len(d.Notes))
		for i := range d.Notes {
			res.Notes[i] = d.Notes[i]
			res.Notes[i].Body = cloneBlocks(d.Notes[i].Body)
		}
	}
	if len(d.Issues) > 0 {
		res.Issues = append([]Issue(nil), d.Issues...)
	}
	return res
}

func cloneBlocks(nodes []Block) []Block {
	if len(nodes) == 0 {
		return nil
	}
	res := make([]Block, len(nodes))
	for i := range nodes {
		res[i] = nodes[i]
		res[i].Text = cloneInlines(nodes[i].Text)
		res[i].Items = cloneBlocks(nodes[i].Items)
	}
	return res
}

func cloneInlines(nodes []Inline) []Inline {
	if len(nodes) == 0 {
		return nil
	}
	res := make([]Inline, len(nodes))
	for i := range nodes {
		res[i] = nodes[i]
		res[i].Children = cloneInlines(nodes[i].Children)
	}
	return res
}
