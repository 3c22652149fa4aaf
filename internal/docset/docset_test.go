package docset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperations(t *testing.T) {
	a := Of(0, 1, 4, 7)
	b := Of(1, 2, 7, 9)

	tests := []struct {
		name string
		got  *Set
		want []int
	}{
		{"intersect", Intersect(a, b), []int{1, 7}},
		{"union", Union(a, b), []int{0, 1, 2, 4, 7, 9}},
		{"difference", Difference(a, b), []int{0, 4}},
		{"difference reversed", Difference(b, a), []int{2, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, tt.got.IDs())
		})
	}
}

func TestOperationsDoNotMutateInputs(t *testing.T) {
	a := Of(1, 2, 3)
	b := Of(3, 4)
	_ = Intersect(a, b)
	_ = Union(a, b)
	_ = Difference(a, b)
	assert.ElementsMatch(t, []int{1, 2, 3}, a.IDs())
	assert.ElementsMatch(t, []int{3, 4}, b.IDs())
}

func TestSetLaws(t *testing.T) {
	a := Of(3, 5, 8, 13)
	b := Of(1, 3, 21)
	empty := New()

	assert.True(t, Intersect(a, a).Equal(a), "intersect(A,A)=A")
	assert.True(t, Union(a, empty).Equal(a), "union(A,∅)=A")
	assert.True(t, Difference(a, a).IsEmpty(), "difference(A,A)=∅")
	assert.True(t, Intersect(a, b).Equal(Intersect(b, a)), "intersect commutes")
	assert.True(t, Union(a, b).Equal(Union(b, a)), "union commutes")
}

func TestDuplicatesCollapse(t *testing.T) {
	s := Of(2, 2, 2, 5)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 4, Union(s, Of(5, 6, 7)).Len())
}

func TestUniverse(t *testing.T) {
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, Universe(4).IDs())
	assert.True(t, Universe(0).IsEmpty())
	assert.True(t, Universe(-1).IsEmpty())
}

func TestNilSets(t *testing.T) {
	var s *Set
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.IsEmpty())
	assert.False(t, s.Contains(1))
	assert.Nil(t, s.IDs())
	assert.ElementsMatch(t, []int{1}, Union(s, Of(1)).IDs())
	assert.True(t, Intersect(s, Of(1)).IsEmpty())
}

func TestNegativeIDsIgnored(t *testing.T) {
	s := Of(-1, 0)
	require.Equal(t, 1, s.Len())
	assert.True(t, s.Contains(0))
	assert.False(t, s.Contains(-1))
}

func TestEachStops(t *testing.T) {
	var seen []int
	Of(1, 2, 3, 4).Each(func(id int) bool {
		seen = append(seen, id)
		return len(seen) < 2
	})
	assert.Len(t, seen, 2)
}

func TestCloneIsIndependent(t *testing.T) {
	a := Of(1)
	c := a.Clone()
	c.Add(2)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, c.Len())
}
