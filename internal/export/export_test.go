package export

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/stretchr/testify/require"

	"tankai/internal/model"
	"tankai/internal/nn"
)

func randomModel(seed uint64) *nn.Model {
	rng := rand.New(rand.NewPCG(seed, seed))
	m := &nn.Model{B2: float32(rng.NormFloat64())}
	for j := 0; j < nn.Hidden; j++ {
		for k := 0; k < model.FeatureWidth; k++ {
			m.W1[j][k] = float32(rng.NormFloat64())
		}
		m.B1[j] = float32(rng.NormFloat64())
		m.W2[j] = float32(rng.NormFloat64())
	}
	return m
}

// field resolves a vtable slot to an absolute offset, or 0 if absent.
func field(t *flatbuffers.Table, slot int) flatbuffers.UOffsetT {
	o := flatbuffers.UOffsetT(t.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
	if o == 0 {
		return 0
	}
	return o
}

func child(t *flatbuffers.Table, slot, i int) *flatbuffers.Table {
	o := field(t, slot)
	x := t.Vector(o) + flatbuffers.UOffsetT(i*flatbuffers.SizeUOffsetT)
	return &flatbuffers.Table{Bytes: t.Bytes, Pos: t.Indirect(x)}
}

func vecLen(t *flatbuffers.Table, slot int) int {
	o := field(t, slot)
	if o == 0 {
		return 0
	}
	return t.VectorLen(o)
}

func bufferFloats(root *flatbuffers.Table, idx int) []float32 {
	buf := child(root, modelBuffers, idx)
	o := field(buf, bufferData)
	if o == 0 {
		return nil
	}
	raw := buf.ByteVector(o + buf.Pos)
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return out
}

func TestEncodeTFLiteStructure(t *testing.T) {
	m := randomModel(1)
	blob := EncodeTFLite(m)
	require.Equal(t, fileID, string(blob[4:8]))

	root := &flatbuffers.Table{Bytes: blob, Pos: flatbuffers.GetUOffsetT(blob)}
	require.Equal(t, uint32(schemaVersion), root.GetUint32(field(root, modelVersion)+root.Pos))
	require.Equal(t, 2, vecLen(root, modelOperatorCodes))
	require.Equal(t, 1, vecLen(root, modelSubgraphs))
	require.Equal(t, 5, vecLen(root, modelBuffers))

	codes := []int32{}
	for i := 0; i < 2; i++ {
		oc := child(root, modelOperatorCodes, i)
		codes = append(codes, oc.GetInt32(field(oc, opcodeBuiltin)+oc.Pos))
	}
	require.Equal(t, []int32{opFullyConnected, opLogistic}, codes)

	sg := child(root, modelSubgraphs, 0)
	require.Equal(t, 8, vecLen(sg, subgraphTensors))
	require.Equal(t, 3, vecLen(sg, subgraphOperators))
	out := child(sg, subgraphTensors, 7)
	require.Equal(t, "rush_prob", string(out.ByteVector(field(out, tensorName)+out.Pos)))

	require.Nil(t, bufferFloats(root, 0), "buffer 0 must be empty")
	w1 := bufferFloats(root, 1)
	require.Len(t, w1, nn.Hidden*model.FeatureWidth)
	require.Equal(t, m.W1[2][5], w1[2*model.FeatureWidth+5])
	require.Equal(t, m.B1[:], bufferFloats(root, 2))
	require.Equal(t, m.W2[:], bufferFloats(root, 3))
	require.Equal(t, []float32{m.B2}, bufferFloats(root, 4))
}

func TestEncodeTFLiteDeterministic(t *testing.T) {
	require.Equal(t, EncodeTFLite(randomModel(4)), EncodeTFLite(randomModel(4)))
}

func TestWeightBuffersAligned(t *testing.T) {
	blob := EncodeTFLite(randomModel(2))
	root := &flatbuffers.Table{Bytes: blob, Pos: flatbuffers.GetUOffsetT(blob)}
	for i := 1; i < 5; i++ {
		buf := child(root, modelBuffers, i)
		start := buf.Vector(field(buf, bufferData))
		require.Zero(t, start%16, "buffer %d data at %d", i, start)
	}
}

func TestSourceArrayRoundTrip(t *testing.T) {
	for _, blob := range [][]byte{EncodeTFLite(randomModel(3)), Placeholder, {}, {0, 255, 16}} {
		src := SourceArray(blob, ArrayName, ModelID(blob))
		got, err := DecodeSourceArray(src, ArrayName)
		require.NoError(t, err)
		require.Equal(t, len(blob), len(got))
		require.True(t, string(blob) == string(got), "round trip mismatch")
	}
}

func TestSourceArrayText(t *testing.T) {
	src := string(SourceArray([]byte{1, 2, 3}, "g_model", "abc"))
	require.Contains(t, src, "#include <cstdint>")
	require.Contains(t, src, "extern const unsigned char g_model[];")
	require.Contains(t, src, "extern const unsigned int g_model_len;")
	require.Contains(t, src, "0x01, 0x02, 0x03,")
	require.Contains(t, src, "const unsigned int g_model_len = 3;")
}

func TestDecodeSourceArrayRejectsBadLength(t *testing.T) {
	src := strings.Replace(string(SourceArray([]byte{9, 9}, "g_model", "x")), "g_model_len = 2;", "g_model_len = 3;", 1)
	_, err := DecodeSourceArray([]byte(src), "g_model")
	require.Error(t, err)
	_, err = DecodeSourceArray([]byte("int main() {}"), "g_model")
	require.Error(t, err)
}

func TestExportPlaceholder(t *testing.T) {
	a := NewExporter(nn.None{}).Export(randomModel(5))
	require.True(t, a.Placeholder)
	require.Equal(t, Placeholder, a.Blob)

	a = NewExporter(nn.Native{}).Export(nil)
	require.True(t, a.Placeholder)
	got, err := DecodeSourceArray(a.Source, ArrayName)
	require.NoError(t, err)
	require.Equal(t, a.Blob, got)
}

func TestExportModel(t *testing.T) {
	a := NewExporter(nn.Native{}).Export(randomModel(6))
	require.False(t, a.Placeholder)
	require.Equal(t, fileID, string(a.Blob[4:8]))
	require.Equal(t, ModelID(a.Blob), a.ModelID)
	require.Len(t, a.ModelID, 16)
	require.Contains(t, string(a.Source), a.ModelID)
	got, err := DecodeSourceArray(a.Source, ArrayName)
	require.NoError(t, err)
	require.Equal(t, a.Blob, got)
}
