package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkm2-predict/api/internal/descriptor"
)

func TestAssembleAllPresent(t *testing.T) {
	got := Assemble(descriptor.Mapping{"nN": 3, "nX": 1}, []string{"nN", "nX"})
	assert.Equal(t, []float64{3, 1}, got)
}

func TestAssembleDefaultsMissing(t *testing.T) {
	got := Assemble(descriptor.Mapping{"nN": 3}, []string{"nN", "nX"})
	assert.Equal(t, []float64{3, 0.0}, got)
}

func TestAssembleFollowsListOrderNotMapOrder(t *testing.T) {
	m := descriptor.Mapping{"a": 1, "b": 2, "c": 3, "extra": 99}
	assert.Equal(t, []float64{3, 1, 2}, Assemble(m, []string{"c", "a", "b"}))
}

func TestAssemblePassesNonFiniteThrough(t *testing.T) {
	got := Assemble(descriptor.Mapping{"a": math.NaN(), "b": math.Inf(1)}, []string{"a", "b"})
	require.Len(t, got, 2)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsInf(got[1], 1))
}

func TestAssembleRequiredSchema(t *testing.T) {
	require.Len(t, Required, 28)
	got := Assemble(descriptor.Mapping{"WTPT-5": 2.5, "nN": 4}, Required)
	require.Len(t, got, len(Required))
	assert.Equal(t, 4.0, got[0])
	assert.Equal(t, 2.5, got[len(got)-1])
	for _, v := range got[1 : len(got)-1] {
		assert.Equal(t, DefaultValue, v)
	}
}

func TestMissing(t *testing.T) {
	assert.Equal(t, []string{"nX"}, Missing(descriptor.Mapping{"nN": 3}, []string{"nN", "nX"}))
	assert.Empty(t, Missing(descriptor.Mapping{"nN": 3, "nX": 0}, []string{"nN", "nX"}))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal([]string{"a", "b"}, []string{"a", "b"}))
	assert.False(t, Equal([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, Equal([]string{"a"}, []string{"a", "b"}))
}
