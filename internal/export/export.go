package export

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"tankai/internal/model"
	"tankai/internal/nn"
)

// Placeholder is exported when no model was produced. Consumers must treat it as "no model".
var Placeholder = []byte("TFLITE_PLACEHOLDER")

// ModelID fingerprints an inference blob.
func ModelID(blob []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(blob))
}

// Exporter converts trained models into artifacts. It holds the run's backend so
// an unavailable backend always yields the placeholder.
type Exporter struct {
	backend nn.Backend
}

func NewExporter(b nn.Backend) *Exporter { return &Exporter{backend: b} }

// Export returns the inference blob for m and the matching source array.
func (e *Exporter) Export(m *nn.Model) model.Artifact {
	a := model.Artifact{}
	if m == nil || e.backend == nil || !e.backend.Available() {
		a.Blob = append([]byte(nil), Placeholder...)
		a.Placeholder = true
	} else {
		a.Blob = EncodeTFLite(m)
	}
	a.ModelID = ModelID(a.Blob)
	a.Source = SourceArray(a.Blob, ArrayName, a.ModelID)
	return a
}
