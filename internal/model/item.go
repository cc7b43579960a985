package model

import "strings"

// StructuralItem is the smallest addressable unit of source text, produced by
// the upstream parser. It is immutable: the engine only ever reads it.
type StructuralItem struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Position    int    `json:"position"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Section     string `json:"section,omitempty"`
	Page        int    `json:"page,omitempty"`
}

// Contains reports whether span is an exact, case-preserving substring of the
// item's text. An empty span never matches.
func (s StructuralItem) Contains(span string) bool {
	if span == "" {
		return false
	}
	return strings.Contains(s.Text, span)
}

// SpanOffsets returns the start and end byte offsets of span within the item
// text, or (-1, -1) if span is not an exact substring.
func (s StructuralItem) SpanOffsets(span string) (int, int) {
	if span == "" {
		return -1, -1
	}
	idx := strings.Index(s.Text, span)
	if idx < 0 {
		return -1, -1
	}
	return idx, idx + len(span)
}
