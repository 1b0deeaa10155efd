package embedding

import (
	"fmt"

	"ragqa/internal/domain"
)

// AdaptDimension makes a backend vector fit a store of dimension d.
//
// Longer vectors are truncated to their first d components. This is a known
// approximation: it keeps stores compatible across backends, but its effect
// on retrieval quality has not been measured. Shorter vectors cannot be
// adapted and are rejected. d <= 0 disables adaptation.
func AdaptDimension(vec []float32, d int) ([]float32, error) {
	switch {
	case d <= 0 || len(vec) == d:
		return vec, nil
	case len(vec) > d:
		return vec[:d:d], nil
	default:
		return nil, fmt.Errorf("%w: backend returned %d values, store expects %d", domain.ErrDimensionMismatch, len(vec), d)
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// AdaptFloat64 converts a float64 backend vector and adapts it to d.
func AdaptFloat64(vec []float64, d int) ([]float32, error) {
	return AdaptDimension(toFloat32(vec), d)
}
