// Package docset implements set algebra over document ids. Sets are backed
// by compressed roaring bitmaps and every operation returns a fresh set,
// leaving its inputs untouched.
package docset

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Set is an unordered, duplicate-free collection of document ids. The
// zero value is not usable; construct sets with New, Of or Universe.
type Set struct {
	bm *roaring.Bitmap
}

// New returns an empty set.
func New() *Set {
	return &Set{bm: roaring.New()}
}

// Of returns a set holding ids. Negative ids are ignored.
func Of(ids ...int) *Set {
	s := New()
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Universe returns the set {0, 1, ..., n-1}.
func Universe(n int) *Set {
	s := New()
	if n > 0 {
		s.bm.AddRange(0, uint64(n))
	}
	return s
}

// Add inserts id into the set.
func (s *Set) Add(id int) {
	if id < 0 {
		return
	}
	s.bm.Add(uint32(id))
}

// Contains reports whether id is a member of the set.
func (s *Set) Contains(id int) bool {
	if s == nil || id < 0 {
		return false
	}
	return s.bm.Contains(uint32(id))
}

// Len returns the number of ids in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool {
	return s == nil || s.bm.IsEmpty()
}

// IDs returns the members of the set. The slice happens to be ascending
// but callers must not rely on any order.
func (s *Set) IDs() []int {
	if s == nil {
		return nil
	}
	ids := make([]int, 0, s.Len())
	it := s.bm.Iterator()
	for it.HasNext() {
		ids = append(ids, int(it.Next()))
	}
	return ids
}

// Each calls fn for every member until fn returns false.
func (s *Set) Each(fn func(id int) bool) {
	if s == nil {
		return
	}
	it := s.bm.Iterator()
	for it.HasNext() {
		if !fn(int(it.Next())) {
			return
		}
	}
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	if s == nil {
		return New()
	}
	return &Set{bm: s.bm.Clone()}
}

// Equal reports whether both sets hold the same ids.
func (s *Set) Equal(other *Set) bool {
	return s.orEmpty().Equals(other.orEmpty())
}

// Intersect returns the ids present in both a and b.
func Intersect(a, b *Set) *Set {
	return &Set{bm: roaring.And(a.orEmpty(), b.orEmpty())}
}

// Union returns the ids present in either a or b.
func Union(a, b *Set) *Set {
	return &Set{bm: roaring.Or(a.orEmpty(), b.orEmpty())}
}

// Difference returns the ids of a that are not in b.
func Difference(a, b *Set) *Set {
	return &Set{bm: roaring.AndNot(a.orEmpty(), b.orEmpty())}
}

func (s *Set) orEmpty() *roaring.Bitmap {
	if s == nil || s.bm == nil {
		return roaring.New()
	}
	return s.bm
}
