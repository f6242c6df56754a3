package senie

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripVar(t *testing.T, v Var) Var {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, SerializeVar(&buf, v))
	got, err := DeserializeVar(NewTokenReader(&buf))
	require.NoError(t, err)
	return got
}

func TestSerializeVarRoundTripsEachTag(t *testing.T) {
	cases := []Var{
		intVar(42),
		floatVar(3.5),
		boolVar(true),
		boolVar(false),
		longVar(9999999999),
		nameVar(7),
		vec2Var(1.5, -2.5),
		colourVar(ColourHSV, 0.1, 0.2, 0.3, 0.4),
	}
	for _, v := range cases {
		got := roundTripVar(t, v)
		assert.Equal(t, v.Type, got.Type)
		switch v.Type {
		case VarInt, VarName:
			assert.Equal(t, v.I, got.I)
		case VarFloat:
			assert.InDelta(t, float64(v.F), float64(got.F), 1e-4)
		case VarBool:
			assert.Equal(t, v.Bool(), got.Bool())
		case VarLong:
			assert.Equal(t, v.L, got.L)
		case Var2D:
			assert.InDelta(t, float64(v.Array[0]), float64(got.Array[0]), 1e-4)
			assert.InDelta(t, float64(v.Array[1]), float64(got.Array[1]), 1e-4)
		case VarColour:
			assert.Equal(t, v.I, got.I)
			for i := range v.Array {
				assert.InDelta(t, float64(v.Array[i]), float64(got.Array[i]), 1e-4)
			}
		}
	}
}

func TestSerializeVarRejectsVector(t *testing.T) {
	var buf bytes.Buffer
	err := SerializeVar(&buf, Var{Type: VarVector, Heap: 0})
	assert.Error(t, err)
}

func TestDeserializeVarUnknownTagIsError(t *testing.T) {
	r := NewTokenReader(bytes.NewBufferString("NOT_A_TAG"))
	_, err := DeserializeVar(r)
	assert.Error(t, err)
}

func TestDeserializeVarExplicitVectorTagIsError(t *testing.T) {
	r := NewTokenReader(bytes.NewBufferString("VECTOR"))
	_, err := DeserializeVar(r)
	assert.Error(t, err)
}

func TestSerializeBytecodeRoundTrips(t *testing.T) {
	bc := Bytecode{Op: OpLoad, Arg0: intVar(int32(MemConstant)), Arg1: floatVar(9.5)}
	var buf bytes.Buffer
	require.NoError(t, SerializeBytecode(&buf, bc))

	got, err := DeserializeBytecode(NewTokenReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, bc.Op, got.Op)
	assert.Equal(t, bc.Arg0.I, got.Arg0.I)
	assert.InDelta(t, float64(bc.Arg1.F), float64(got.Arg1.F), 1e-4)
}

func TestDeserializeBytecodeUnknownOpcodeIsError(t *testing.T) {
	r := NewTokenReader(bytes.NewBufferString("NOT_AN_OP INT 1 INT 2"))
	_, err := DeserializeBytecode(r)
	assert.Error(t, err)
}

func TestSerializeProgramRoundTrips(t *testing.T) {
	words := NewWordTable()
	p := NewProgram(words, 8)
	p.emit(OpLoad, intVar(int32(MemConstant)), floatVar(1))
	p.emit(OpLoad, intVar(int32(MemConstant)), floatVar(2))
	p.emit(OpAdd, Var{}, Var{})
	p.emit(OpStop, Var{}, Var{})

	var buf bytes.Buffer
	require.NoError(t, SerializeProgram(&buf, p))

	got, err := DeserializeProgram(NewTokenReader(&buf), words)
	require.NoError(t, err)
	require.Len(t, got.Code, len(p.Code))
	for i := range p.Code {
		assert.Equal(t, p.Code[i].Op, got.Code[i].Op)
	}
}

func TestSerializeTraitRoundTrips(t *testing.T) {
	words := NewWordTable()
	p := NewProgram(words, 4)
	p.emit(OpLoad, intVar(int32(MemConstant)), floatVar(5))
	p.emit(OpStop, Var{}, Var{})

	tr := &Trait{ID: 3, InitialValue: floatVar(5), Program: p, Node: noNode, ParamAST: noNode}
	var buf bytes.Buffer
	require.NoError(t, SerializeTrait(&buf, tr))

	got, err := DeserializeTrait(NewTokenReader(&buf), words)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, got.ID)
	assert.Equal(t, tr.InitialValue.F, got.InitialValue.F)
	assert.Equal(t, noNode, got.Node, "deserialized traits never carry an AST-relative node handle")
	require.Len(t, got.Program.Code, 2)
}

func TestSerializeTraitListRoundTrips(t *testing.T) {
	words := NewWordTable()
	p1 := NewProgram(words, 2)
	p1.emit(OpStop, Var{}, Var{})
	p2 := NewProgram(words, 2)
	p2.emit(OpStop, Var{}, Var{})

	tl := &TraitList{Traits: []*Trait{
		{ID: 0, InitialValue: floatVar(1), Program: p1},
		{ID: 1, InitialValue: floatVar(2), Program: p2},
	}}

	var buf bytes.Buffer
	require.NoError(t, SerializeTraitList(&buf, 123, tl))

	seed, got, err := DeserializeTraitList(NewTokenReader(&buf), words)
	require.NoError(t, err)
	assert.Equal(t, int32(123), seed)
	require.Len(t, got.Traits, 2)
	assert.Equal(t, float32(1), got.Traits[0].InitialValue.F)
	assert.Equal(t, float32(2), got.Traits[1].InitialValue.F)
}

func TestSerializeGenotypeRoundTrips(t *testing.T) {
	g := &Genotype{Genes: []Gene{{Value: floatVar(1)}, {Value: vec2Var(2, 3)}, {Value: boolVar(true)}}}

	var buf bytes.Buffer
	require.NoError(t, SerializeGenotype(&buf, g))

	got, err := DeserializeGenotype(NewTokenReader(&buf))
	require.NoError(t, err)
	require.Len(t, got.Genes, 3)
	assert.Equal(t, float32(1), got.Genes[0].Value.F)
	assert.Equal(t, Var2D, got.Genes[1].Value.Type)
	assert.True(t, got.Genes[2].Value.Bool())
}

func TestSerializeGenotypeListRoundTrips(t *testing.T) {
	gl := &GenotypeList{Genotypes: []*Genotype{
		{Genes: []Gene{{Value: floatVar(1)}}},
		{Genes: []Gene{{Value: floatVar(2)}}},
	}}

	var buf bytes.Buffer
	require.NoError(t, SerializeGenotypeList(&buf, gl))

	got, err := DeserializeGenotypeList(NewTokenReader(&buf))
	require.NoError(t, err)
	require.Len(t, got.Genotypes, 2)
	assert.Equal(t, float32(1), got.Genotypes[0].Genes[0].Value.F)
	assert.Equal(t, float32(2), got.Genotypes[1].Genes[0].Value.F)
}
