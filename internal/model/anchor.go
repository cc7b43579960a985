package model

// Anchor is the resolved, immutable binding of a candidate to exactly one
// structural item plus a relative byte span within it. An anchor never points
// to a raw text offset in the document and never to more than one item.
type Anchor struct {
	ItemID string `json:"item_id"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	// Exact is true when the cited span matched the item text verbatim,
	// false when the match was approximate (above the fuzzy threshold but
	// below exact).
	Exact bool `json:"exact"`
}

// Valid reports whether the anchor has a target item and a non-empty span.
func (a Anchor) Valid() bool {
	return a.ItemID != "" && a.Start >= 0 && a.End > a.Start
}
