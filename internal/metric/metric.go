// Package metric scores predictions and compares feature vectors.
package metric

import (
	"fmt"
	"math"

	cnserrors "github.com/born-ml/metakit/internal/errors"
)

// CosineEps keeps CosineDistance finite for zero vectors.
const CosineEps = 1e-8

// Accuracy returns the fraction of rows where argmax(labels[i]) equals
// argmax(predictions[i]) - labelOffset. labels are one-hot rows.
//
// labelOffset handles heads whose output index k stands for class
// k - labelOffset. Ties resolve to the lowest index.
func Accuracy(predictions, labels [][]float32, labelOffset int) (float64, error) {
	if len(labels) == 0 {
		return 0, cnserrors.New(cnserrors.ErrCodeInvalidRequest, "accuracy of an empty batch")
	}
	if len(predictions) != len(labels) {
		return 0, cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("%d prediction rows for %d label rows", len(predictions), len(labels)))
	}

	correct := 0
	for i := range labels {
		if len(predictions[i]) == 0 || len(labels[i]) == 0 {
			return 0, cnserrors.New(cnserrors.ErrCodeInvalidRequest, fmt.Sprintf("row %d is empty", i))
		}
		if argmax(predictions[i])-labelOffset == argmax(labels[i]) {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// CosineDistance returns 1 - â·b̂ with â = a/(‖a‖+eps) and b̂ = b/(‖b‖+eps).
// Identical directions give ≈0, orthogonal vectors ≈1, opposite ≈2.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("vector lengths differ: %d vs %d", len(a), len(b)))
	}
	na, nb := norm(a)+CosineEps, norm(b)+CosineEps
	var dot float64
	for i := range a {
		dot += (float64(a[i]) / na) * (float64(b[i]) / nb)
	}
	return 1 - dot, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}
