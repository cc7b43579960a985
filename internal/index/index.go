// Package index holds the per-document Structural Anchor Index: an immutable,
// ordered view over the structural items the upstream parser produced. It is
// built once per document version and is safe for unbounded concurrent reads.
package index

import (
	"github.com/rotisserie/eris"

	"github.com/veridian-kg/ingest-cli/internal/model"
)

// Index is the read-only anchor index for a single document.
type Index struct {
	documentID string
	items      []model.StructuralItem
	byID       map[string]int
}

// Build validates and indexes the ordered item sequence for one document.
// Validation failures are fatal for the document pass: an index built over a
// corrupted item sequence would anchor claims to the wrong text.
func Build(documentID string, items []model.StructuralItem) (*Index, error) {
	if documentID == "" {
		return nil, eris.New("index: empty document id")
	}
	if len(items) == 0 {
		return nil, eris.Errorf("index: document %s has no items", documentID)
	}

	byID := make(map[string]int, len(items))
	lastPos := -1
	for i, it := range items {
		if it.ID == "" {
			return nil, eris.Errorf("index: document %s item %d has empty id", documentID, i)
		}
		if _, dup := byID[it.ID]; dup {
			return nil, eris.Errorf("index: document %s duplicate item id %s", documentID, it.ID)
		}
		if it.Text == "" {
			return nil, eris.Errorf("index: document %s item %s has empty text", documentID, it.ID)
		}
		if it.Position <= lastPos {
			return nil, eris.Errorf("index: document %s item %s out of order (position %d after %d)", documentID, it.ID, it.Position, lastPos)
		}
		if it.EndOffset < it.StartOffset {
			return nil, eris.Errorf("index: document %s item %s has inverted offsets", documentID, it.ID)
		}
		lastPos = it.Position
		byID[it.ID] = i
	}

	return &Index{documentID: documentID, items: items, byID: byID}, nil
}

// DocumentID returns the document this index covers.
func (ix *Index) DocumentID() string {
	return ix.documentID
}

// Len returns the number of items.
func (ix *Index) Len() int {
	return len(ix.items)
}

// Get returns the item with the given id.
func (ix *Index) Get(id string) (model.StructuralItem, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return model.StructuralItem{}, false
	}
	return ix.items[i], true
}

// Items returns the ordered item sequence. Callers must not mutate it.
func (ix *Index) Items() []model.StructuralItem {
	return ix.items
}

// Window returns up to radius items on each side of the item with the given
// id, including the item itself, in document order.
func (ix *Index) Window(id string, radius int) []model.StructuralItem {
	i, ok := ix.byID[id]
	if !ok {
		return nil
	}
	lo := i - radius
	if lo < 0 {
		lo = 0
	}
	hi := i + radius + 1
	if hi > len(ix.items) {
		hi = len(ix.items)
	}
	return ix.items[lo:hi]
}

// Neighbors reports whether two items sit within maxGap positions of each
// other in document order. Unknown ids are never neighbors.
func (ix *Index) Neighbors(idA, idB string, maxGap int) bool {
	a, okA := ix.byID[idA]
	b, okB := ix.byID[idB]
	if !okA || !okB {
		return false
	}
	gap := a - b
	if gap < 0 {
		gap = -gap
	}
	return gap <= maxGap
}

// Registry is a corpus-level collection of per-document indexes, built during
// ingestion and read-only afterwards.
type Registry struct {
	indexes map[string]*Index
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]*Index)}
}

// Add registers a built index. A second index for the same document id is an
// error: item identity must be stable per document version.
func (r *Registry) Add(ix *Index) error {
	if _, dup := r.indexes[ix.documentID]; dup {
		return eris.Errorf("index: registry already holds document %s", ix.documentID)
	}
	r.indexes[ix.documentID] = ix
	return nil
}

// Document returns the index for a document id.
func (r *Registry) Document(documentID string) (*Index, bool) {
	ix, ok := r.indexes[documentID]
	return ix, ok
}

// DocumentIDs returns the registered document ids.
func (r *Registry) DocumentIDs() []string {
	ids := make([]string, 0, len(r.indexes))
	for id := range r.indexes {
		ids = append(ids, id)
	}
	return ids
}
