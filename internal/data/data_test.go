package data

import (
	"math/rand/v2"
	"testing"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnfoldLabel(t *testing.T) {
	got, err := UnfoldLabel([]int{0, 1, 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int8{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, got)

	got, err = UnfoldLabel([]int{2, 0, 2, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int8{{0, 0, 1}, {1, 0, 0}, {0, 0, 1}, {0, 1, 0}}, got)
}

func TestUnfoldLabel_Inconsistent(t *testing.T) {
	for _, tc := range []struct {
		labels  []int
		classes int
	}{
		{[]int{5, 6, 7}, 3},
		{[]int{0, 1}, 3},
		{[]int{0, 1, 2}, 2},
		{[]int{-1, 0}, 2},
		{nil, 0},
	} {
		_, err := UnfoldLabel(tc.labels, tc.classes)
		assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest), "%v/%d", tc.labels, tc.classes)
	}
}

func TestUnfoldLabelFromMin(t *testing.T) {
	got, err := UnfoldLabelFromMin([]int{5, 6, 7, 5}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int8{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 0}}, got)

	_, err = UnfoldLabelFromMin([]int{0, 5}, 2)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest))

	_, err = UnfoldLabelFromMin([]int{1, 2, 3}, 2)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest))
}

func TestShuffle(t *testing.T) {
	samples := []string{"a", "b", "c", "d", "e", "f"}
	labels := []int{0, 1, 2, 3, 4, 5}
	rng := rand.New(rand.NewPCG(1, 2))

	gotS, gotL, err := Shuffle(samples, labels, rng)
	require.NoError(t, err)
	assert.ElementsMatch(t, labels, gotL)
	for i := range gotL {
		assert.Equal(t, samples[gotL[i]], gotS[i], "pairs stay aligned")
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, samples)

	again, _, err := Shuffle(samples, labels, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, gotS, again, "same seed, same order")
}

func TestShuffle_Errors(t *testing.T) {
	_, _, err := Shuffle([]int{1, 2}, []int{1}, nil)
	assert.True(t, cnserrors.IsCode(err, cnserrors.ErrCodeInvalidRequest))

	s, l, err := Shuffle([][]float32{}, []int{}, nil)
	require.NoError(t, err)
	assert.Empty(t, s)
	assert.Empty(t, l)
}
