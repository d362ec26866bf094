package features

import (
	"math/rand/v2"

	"tankai/internal/model"
)

// SyntheticRows is the size of the stand-in set used when real data is short.
const SyntheticRows = 128

// Synthetic draws standard normal features and labels that are 1 with probability 0.3.
func Synthetic(rng *rand.Rand, rows int) model.TrainingSet {
	ts := model.TrainingSet{X: make([]model.FeatureVector, rows), Y: make([]float32, rows)}
	for i := range ts.X {
		for j := range ts.X[i] {
			ts.X[i][j] = float32(rng.NormFloat64())
		}
	}
	for i := range ts.Y {
		if rng.Float64() > 0.7 {
			ts.Y[i] = 1
		}
	}
	return ts
}
