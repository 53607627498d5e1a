// Package retrieval holds the in-memory vector index used to shortlist candidates.
// An Index is immutable once built. Updates produce a new Index.
package retrieval

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Entry is one indexed entity vector
type Entry struct {
	ID     string
	Type   string
	Vector []float64
}

// Hit is a search result
type Hit struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// Index is a cosine-similarity snapshot over entity vectors
type Index struct {
	dim     int
	entries []entry
	byID    map[string]int
	byType  map[string][]int
}

type entry struct {
	id     string
	typ    string
	vector []float64 // unit length
}

// NewIndex builds an index from entries. All vectors must share one dimension.
// A later entry with a duplicate ID replaces the earlier one.
func NewIndex(entries []Entry) (*Index, error) {
	idx := &Index{
		byID:   make(map[string]int, len(entries)),
		byType: make(map[string][]int),
	}
	for _, e := range entries {
		if err := idx.insert(e); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Len returns the number of indexed entities
func (idx *Index) Len() int {
	return len(idx.byID)
}

// Dimension returns the vector dimension, 0 when empty
func (idx *Index) Dimension() int {
	return idx.dim
}

// Contains reports whether an entity is indexed
func (idx *Index) Contains(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// With returns a copy of the index with e added or replaced
func (idx *Index) With(e Entry) (*Index, error) {
	next := &Index{
		dim:     idx.dim,
		entries: make([]entry, len(idx.entries), len(idx.entries)+1),
		byID:    make(map[string]int, len(idx.byID)+1),
		byType:  make(map[string][]int, len(idx.byType)),
	}
	copy(next.entries, idx.entries)
	for id, pos := range idx.byID {
		next.byID[id] = pos
	}
	for typ, positions := range idx.byType {
		next.byType[typ] = append([]int(nil), positions...)
	}
	if err := next.insert(e); err != nil {
		return nil, err
	}
	return next, nil
}

func (idx *Index) insert(e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("index entry has no id")
	}
	if len(e.Vector) == 0 {
		return fmt.Errorf("index entry %s has an empty vector", e.ID)
	}
	if idx.dim == 0 {
		idx.dim = len(e.Vector)
	} else if len(e.Vector) != idx.dim {
		return fmt.Errorf("index entry %s has dimension %d, expected %d", e.ID, len(e.Vector), idx.dim)
	}

	typ := typeKey(e.Type)
	unit := normalizeVector(e.Vector)

	if pos, ok := idx.byID[e.ID]; ok {
		old := idx.entries[pos]
		if old.typ != typ {
			idx.byType[old.typ] = removePosition(idx.byType[old.typ], pos)
			idx.byType[typ] = append(idx.byType[typ], pos)
		}
		idx.entries[pos] = entry{id: e.ID, typ: typ, vector: unit}
		return nil
	}

	pos := len(idx.entries)
	idx.entries = append(idx.entries, entry{id: e.ID, typ: typ, vector: unit})
	idx.byID[e.ID] = pos
	idx.byType[typ] = append(idx.byType[typ], pos)
	return nil
}

// Search returns the k most similar entities, best first. Equal similarities are ordered by ID.
func (idx *Index) Search(query []float64, k int) []Hit {
	return idx.search(query, k, nil, math.Inf(-1))
}

// SearchType searches only entities of the given type and keeps hits whose similarity
// is above minSimilarity
func (idx *Index) SearchType(query []float64, entityType string, k int, minSimilarity float64) []Hit {
	positions, ok := idx.byType[typeKey(entityType)]
	if !ok {
		return nil
	}
	return idx.search(query, k, positions, minSimilarity)
}

// SearchWithFallback searches within the type first and falls back to a global search
// when the type is empty or yields no hits
func (idx *Index) SearchWithFallback(query []float64, entityType string, k int, minSimilarity float64) []Hit {
	if strings.TrimSpace(entityType) != "" {
		if hits := idx.SearchType(query, entityType, k, minSimilarity); len(hits) > 0 {
			return hits
		}
	}
	return idx.Search(query, k)
}

func (idx *Index) search(query []float64, k int, positions []int, minSimilarity float64) []Hit {
	if k <= 0 || len(idx.entries) == 0 || len(query) != idx.dim {
		return nil
	}
	q := normalizeVector(query)

	score := func(pos int) (Hit, bool) {
		e := idx.entries[pos]
		sim := dot(q, e.vector)
		if sim <= minSimilarity {
			return Hit{}, false
		}
		return Hit{ID: e.id, Similarity: sim}, true
	}

	var hits []Hit
	if positions == nil {
		hits = make([]Hit, 0, len(idx.entries))
		for pos := range idx.entries {
			if h, ok := score(pos); ok {
				hits = append(hits, h)
			}
		}
	} else {
		hits = make([]Hit, 0, len(positions))
		for _, pos := range positions {
			if h, ok := score(pos); ok {
				hits = append(hits, h)
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 for zero vectors
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return dot(normalizeVector(a), normalizeVector(b))
}

func normalizeVector(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	out := make([]float64, len(v))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func typeKey(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func removePosition(positions []int, pos int) []int {
	out := positions[:0:0]
	for _, p := range positions {
		if p != pos {
			out = append(out, p)
		}
	}
	return out
}
