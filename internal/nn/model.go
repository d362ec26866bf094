package nn

import (
	"math"

	"tankai/internal/model"
)

// Hidden is the width of the single hidden layer.
const Hidden = 8

// Model is a trained 6-8-1 classifier: dense+ReLU, then dense+sigmoid.
type Model struct {
	W1 [Hidden][model.FeatureWidth]float32 `json:"w1"`
	B1 [Hidden]float32                     `json:"b1"`
	W2 [Hidden]float32                     `json:"w2"`
	B2 float32                             `json:"b2"`

	// Losses holds the mean training loss per epoch, when the backend reports it.
	Losses []float64 `json:"losses,omitempty"`
}

// hidden returns the post-ReLU activations for x.
func (m *Model) hidden(x model.FeatureVector) [Hidden]float64 {
	var h [Hidden]float64
	for j := 0; j < Hidden; j++ {
		z := float64(m.B1[j])
		for k := 0; k < model.FeatureWidth; k++ {
			z += float64(m.W1[j][k]) * float64(x[k])
		}
		h[j] = math.Max(0, z)
	}
	return h
}

// Predict returns the rush probability for x.
func (m *Model) Predict(x model.FeatureVector) float64 {
	h := m.hidden(x)
	z := float64(m.B2)
	for j := 0; j < Hidden; j++ {
		z += float64(m.W2[j]) * h[j]
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// bce is binary cross-entropy with the probability clipped away from 0 and 1.
func bce(p, y float64) float64 {
	const eps = 1e-7
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}
