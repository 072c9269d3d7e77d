// Package data prepares labels and sample order for training.
package data

import (
	"fmt"
	"math/rand/v2"
	"slices"

	cnserrors "github.com/born-ml/metakit/internal/errors"
)

// UnfoldLabel one-hot encodes labels indexed from zero. The labels must
// contain exactly classes distinct values, each in [0, classes).
//
//	UnfoldLabel([]int{0, 1, 2}, 3) // 3×3 identity
//	UnfoldLabel([]int{5, 6, 7}, 3) // InvalidRequest
func UnfoldLabel(labels []int, classes int) ([][]int8, error) {
	if err := checkDistinct(labels, classes); err != nil {
		return nil, err
	}
	for i, l := range labels {
		if l < 0 || l >= classes {
			return nil, cnserrors.NewWithContext(cnserrors.ErrCodeInvalidRequest,
				fmt.Sprintf("label %d at row %d is inconsistent with %d classes", l, i, classes),
				map[string]any{"label": l, "row": i, "classes": classes})
		}
	}
	return oneHot(labels, classes, 0), nil
}

// UnfoldLabelFromMin one-hot encodes labels relative to their minimum, so
// domain-specific ranges such as 5..7 map to columns 0..2. The labels must
// contain exactly classes distinct values and span no more than classes.
func UnfoldLabelFromMin(labels []int, classes int) ([][]int8, error) {
	if err := checkDistinct(labels, classes); err != nil {
		return nil, err
	}
	low := slices.Min(labels)
	if span := slices.Max(labels) - low; span >= classes {
		return nil, cnserrors.NewWithContext(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("labels span %d values but there are %d classes", span+1, classes),
			map[string]any{"min": low, "classes": classes})
	}
	return oneHot(labels, classes, low), nil
}

func checkDistinct(labels []int, classes int) error {
	if classes < 1 {
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("class count must be positive, got %d", classes))
	}
	distinct := make(map[int]struct{}, classes)
	for _, l := range labels {
		distinct[l] = struct{}{}
	}
	if len(distinct) != classes {
		return cnserrors.NewWithContext(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("labels contain %d distinct values, expected %d classes", len(distinct), classes),
			map[string]any{"distinct": len(distinct), "classes": classes})
	}
	return nil
}

func oneHot(labels []int, classes, offset int) [][]int8 {
	rows := make([][]int8, len(labels))
	for i, l := range labels {
		rows[i] = make([]int8, classes)
		rows[i][l-offset] = 1
	}
	return rows
}

// Shuffle returns samples and labels reordered by one random permutation,
// so pairs stay aligned. The inputs are not modified. A nil rng uses the
// package-level source.
func Shuffle[S, L any](samples []S, labels []L, rng *rand.Rand) ([]S, []L, error) {
	if len(samples) != len(labels) {
		return nil, nil, cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("%d samples for %d labels", len(samples), len(labels)))
	}

	var perm []int
	if rng != nil {
		perm = rng.Perm(len(labels))
	} else {
		perm = rand.Perm(len(labels)) //nolint:gosec // G404: shuffling does not need crypto randomness
	}

	outS := make([]S, len(samples))
	outL := make([]L, len(labels))
	for i, j := range perm {
		outS[i] = samples[j]
		outL[i] = labels[j]
	}
	return outS, outL, nil
}
