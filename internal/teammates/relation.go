package teammates

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Pair is an ordered pair of player ids
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Relation is the sparse teammate relation. Both orientations of every pair
// are stored, so lookups are symmetric; absent pairs were never teammates.
type Relation struct {
	pairs map[Pair]struct{}
}

// NewRelation creates an empty relation
func NewRelation() *Relation {
	return &Relation{pairs: make(map[Pair]struct{})}
}

// Add marks a and b as teammates. Self pairs are ignored.
func (r *Relation) Add(a, b string) {
	if a == b {
		return
	}
	r.pairs[Pair{A: a, B: b}] = struct{}{}
	r.pairs[Pair{A: b, B: a}] = struct{}{}
}

// Adjacent reports whether a and b were teammates
func (r *Relation) Adjacent(a, b string) bool {
	if r == nil {
		return false
	}
	if _, ok := r.pairs[Pair{A: a, B: b}]; ok {
		return true
	}
	_, ok := r.pairs[Pair{A: b, B: a}]
	return ok
}

// Len returns the number of unordered pairs
func (r *Relation) Len() int {
	return len(r.pairs) / 2
}

// Pairs returns each unordered pair once, with A < B, sorted
func (r *Relation) Pairs() []Pair {
	out := make([]Pair, 0, r.Len())
	for p := range r.pairs {
		if p.A < p.B {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Neighbors returns the sorted teammates of id
func (r *Relation) Neighbors(id string) []string {
	var out []string
	for p := range r.pairs {
		if p.A == id {
			out = append(out, p.B)
		}
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both relations hold the same pairs
func (r *Relation) Equal(other *Relation) bool {
	if len(r.pairs) != len(other.pairs) {
		return false
	}
	for p := range r.pairs {
		if _, ok := other.pairs[p]; !ok {
			return false
		}
	}
	return true
}

const blobVersion = 1

type relationBlob struct {
	Version int         `json:"v"`
	Pairs   [][2]string `json:"pairs"`
}

// MarshalBinary encodes the relation as an opaque cache blob. The encoding
// is deterministic: equal relations produce identical bytes.
func (r *Relation) MarshalBinary() ([]byte, error) {
	pairs := r.Pairs()
	blob := relationBlob{Version: blobVersion, Pairs: make([][2]string, len(pairs))}
	for i, p := range pairs {
		blob.Pairs[i] = [2]string{p.A, p.B}
	}
	return json.Marshal(blob)
}

// UnmarshalBinary restores a relation written by MarshalBinary
func (r *Relation) UnmarshalBinary(data []byte) error {
	var blob relationBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return fmt.Errorf("failed to decode teammate relation: %w", err)
	}
	if blob.Version != blobVersion {
		return fmt.Errorf("unsupported teammate relation version %d", blob.Version)
	}

	r.pairs = make(map[Pair]struct{}, 2*len(blob.Pairs))
	for _, p := range blob.Pairs {
		if p[0] == p[1] {
			return fmt.Errorf("teammate relation contains self pair %q", p[0])
		}
		r.Add(p[0], p[1])
	}
	return nil
}
