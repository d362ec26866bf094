package export

import (
	"encoding/binary"
	"math"

	flatbuffers "github.com/google/flatbuffers/go"

	"tankai/internal/model"
	"tankai/internal/nn"
)

// TFLite schema constants used by the encoder.
const (
	schemaVersion = 3
	fileID        = "TFL3"

	opFullyConnected = 9
	opLogistic       = 14

	optionsFullyConnected = 8

	actNone = 0
	actRelu = 1
)

// vtable slots, by table
const (
	modelVersion       = 0
	modelOperatorCodes = 1
	modelSubgraphs     = 2
	modelDescription   = 3
	modelBuffers       = 4

	opcodeDeprecated = 0
	opcodeVersion    = 2
	opcodeBuiltin    = 3

	subgraphTensors   = 0
	subgraphInputs    = 1
	subgraphOutputs   = 2
	subgraphOperators = 3
	subgraphName      = 4

	tensorShape  = 0
	tensorBuffer = 2
	tensorName   = 3

	operatorOpcode      = 0
	operatorInputs      = 1
	operatorOutputs     = 2
	operatorOptionsType = 3
	operatorOptions     = 4

	bufferData = 0
)

type tensorSpec struct {
	name   string
	shape  []int32
	buffer uint32
}

type opSpec struct {
	opcode     uint32
	inputs     []int32
	outputs    []int32
	activation int8
	dense      bool
}

// EncodeTFLite serializes m as a float32 TFLite flatbuffer:
// features[1,6] -> FULLY_CONNECTED(relu) -> FULLY_CONNECTED -> LOGISTIC -> rush_prob[1,1].
func EncodeTFLite(m *nn.Model) []byte {
	w1 := make([]float32, 0, nn.Hidden*model.FeatureWidth)
	for j := range m.W1 {
		w1 = append(w1, m.W1[j][:]...)
	}
	buffers := [][]byte{
		nil, // buffer 0 is the empty sentinel
		floatBytes(w1),
		floatBytes(m.B1[:]),
		floatBytes(m.W2[:]),
		floatBytes([]float32{m.B2}),
	}
	tensors := []tensorSpec{
		{"features", []int32{1, model.FeatureWidth}, 0},
		{"dense/kernel", []int32{nn.Hidden, model.FeatureWidth}, 1},
		{"dense/bias", []int32{nn.Hidden}, 2},
		{"dense/Relu", []int32{1, nn.Hidden}, 0},
		{"rush_prob/kernel", []int32{1, nn.Hidden}, 3},
		{"rush_prob/bias", []int32{1}, 4},
		{"rush_prob/logit", []int32{1, 1}, 0},
		{"rush_prob", []int32{1, 1}, 0},
	}
	ops := []opSpec{
		{opcode: 0, inputs: []int32{0, 1, 2}, outputs: []int32{3}, activation: actRelu, dense: true},
		{opcode: 0, inputs: []int32{3, 4, 5}, outputs: []int32{6}, activation: actNone, dense: true},
		{opcode: 1, inputs: []int32{6}, outputs: []int32{7}},
	}
	opcodes := []int32{opFullyConnected, opLogistic}

	b := flatbuffers.NewBuilder(1024)

	bufOffs := make([]flatbuffers.UOffsetT, len(buffers))
	for i, data := range buffers {
		var dataOff flatbuffers.UOffsetT
		if len(data) > 0 {
			b.StartVector(1, len(data), 16)
			for k := len(data) - 1; k >= 0; k-- {
				b.PrependByte(data[k])
			}
			dataOff = b.EndVector(len(data))
		}
		b.StartObject(3)
		if dataOff != 0 {
			b.PrependUOffsetTSlot(bufferData, dataOff, 0)
		}
		bufOffs[i] = b.EndObject()
	}
	buffersVec := offsetVector(b, bufOffs)

	tensorOffs := make([]flatbuffers.UOffsetT, len(tensors))
	for i, t := range tensors {
		name := b.CreateString(t.name)
		shape := int32Vector(b, t.shape)
		b.StartObject(8)
		b.PrependUOffsetTSlot(tensorShape, shape, 0)
		b.PrependUint32Slot(tensorBuffer, t.buffer, 0)
		b.PrependUOffsetTSlot(tensorName, name, 0)
		tensorOffs[i] = b.EndObject()
	}
	tensorsVec := offsetVector(b, tensorOffs)

	opOffs := make([]flatbuffers.UOffsetT, len(ops))
	for i, op := range ops {
		in := int32Vector(b, op.inputs)
		out := int32Vector(b, op.outputs)
		var opts flatbuffers.UOffsetT
		if op.dense {
			b.StartObject(4)
			b.PrependInt8Slot(0, op.activation, 0)
			opts = b.EndObject()
		}
		b.StartObject(9)
		b.PrependUint32Slot(operatorOpcode, op.opcode, 0)
		b.PrependUOffsetTSlot(operatorInputs, in, 0)
		b.PrependUOffsetTSlot(operatorOutputs, out, 0)
		if op.dense {
			b.PrependByteSlot(operatorOptionsType, optionsFullyConnected, 0)
			b.PrependUOffsetTSlot(operatorOptions, opts, 0)
		}
		opOffs[i] = b.EndObject()
	}
	opsVec := offsetVector(b, opOffs)

	sgName := b.CreateString("main")
	sgIn := int32Vector(b, []int32{0})
	sgOut := int32Vector(b, []int32{int32(len(tensors) - 1)})
	b.StartObject(5)
	b.PrependUOffsetTSlot(subgraphTensors, tensorsVec, 0)
	b.PrependUOffsetTSlot(subgraphInputs, sgIn, 0)
	b.PrependUOffsetTSlot(subgraphOutputs, sgOut, 0)
	b.PrependUOffsetTSlot(subgraphOperators, opsVec, 0)
	b.PrependUOffsetTSlot(subgraphName, sgName, 0)
	subgraphsVec := offsetVector(b, []flatbuffers.UOffsetT{b.EndObject()})

	codeOffs := make([]flatbuffers.UOffsetT, len(opcodes))
	for i, code := range opcodes {
		b.StartObject(4)
		b.PrependInt8Slot(opcodeDeprecated, int8(code), 0)
		b.PrependInt32Slot(opcodeVersion, 1, 1)
		b.PrependInt32Slot(opcodeBuiltin, code, 0)
		codeOffs[i] = b.EndObject()
	}
	codesVec := offsetVector(b, codeOffs)

	desc := b.CreateString("tankai rush classifier")
	b.StartObject(8)
	b.PrependUint32Slot(modelVersion, schemaVersion, 0)
	b.PrependUOffsetTSlot(modelOperatorCodes, codesVec, 0)
	b.PrependUOffsetTSlot(modelSubgraphs, subgraphsVec, 0)
	b.PrependUOffsetTSlot(modelDescription, desc, 0)
	b.PrependUOffsetTSlot(modelBuffers, buffersVec, 0)
	root := b.EndObject()
	b.FinishWithFileIdentifier(root, []byte(fileID))
	return b.FinishedBytes()
}

func offsetVector(b *flatbuffers.Builder, offs []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	b.StartVector(flatbuffers.SizeUOffsetT, len(offs), flatbuffers.SizeUOffsetT)
	for i := len(offs) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offs[i])
	}
	return b.EndVector(len(offs))
}

func int32Vector(b *flatbuffers.Builder, v []int32) flatbuffers.UOffsetT {
	b.StartVector(flatbuffers.SizeInt32, len(v), flatbuffers.SizeInt32)
	for i := len(v) - 1; i >= 0; i-- {
		b.PrependInt32(v[i])
	}
	return b.EndVector(len(v))
}

func floatBytes(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}
