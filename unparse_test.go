package senie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unparse with the identity genotype (built straight from trait_extract's
// own initial values) must reproduce the source exactly.
func unparseIdentity(t *testing.T, src string) string {
	t.Helper()
	words := mustEngine(t).Words
	arena, root, err := Parse(words, src)
	require.NoError(t, err)

	traits, err := ExtractTraits(arena, root, words, MaxTraitProgramSize)
	require.NoError(t, err)

	genotype := BuildGenotypeFromInitialValues(traits)
	out, err := Unparse(arena, root, words, genotype, []byte(src))
	require.NoError(t, err)
	return out
}

func TestUnparseIdentityScalarAlterable(t *testing.T) {
	src := "{3.50 (gen/scalar min: 0 max: 10)}"
	assert.Equal(t, src, unparseIdentity(t, src))
}

func TestUnparseIdentityPlainListNoAlterables(t *testing.T) {
	src := "(shape/rect width: 10 height: 20)"
	assert.Equal(t, src, unparseIdentity(t, src))
}

func TestUnparseIdentity2ElementVectorAlterable(t *testing.T) {
	src := "{[100 200] (gen/2d min: 0 max: 500)}"
	assert.Equal(t, src, unparseIdentity(t, src))
}

func TestUnparseIdentity3ElementVectorAlterable(t *testing.T) {
	src := "{[1 2 3] (gen/scalar min: 0 max: 10)}"
	assert.Equal(t, src, unparseIdentity(t, src))
}

func TestUnparseQuoteSugarRoundTrips(t *testing.T) {
	src := "'(a b)"
	assert.Equal(t, src, unparseIdentity(t, src))
}

// Regression test for the unparseAlterableVector 2D routing bug: a
// substituted (non-identity) genotype for a 2-element alterable vector
// must consume exactly one gene and write both evolved floats back
// through the same [x y] slot, not two independent scalar slots.
func TestUnparseSubstitutesVec2GeneForTwoElementVector(t *testing.T) {
	src := "{[1.0 2.0] (gen/2d min: 0 max: 500)}"
	words := NewWordTable()
	arena, root, err := Parse(words, src)
	require.NoError(t, err)

	genotype := &Genotype{Genes: []Gene{{Value: vec2Var(9, 8)}}}
	out, err := Unparse(arena, root, words, genotype, []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "{[9.0 8.0] (gen/2d min: 0 max: 500)}", out)
}

func TestUnparseErrorsWhenGenesRemainAfterward(t *testing.T) {
	words := NewWordTable()
	src := "{3 (gen/scalar min: 0 max: 10)}"
	arena, root, err := Parse(words, src)
	require.NoError(t, err)

	genotype := &Genotype{Genes: []Gene{{Value: floatVar(1)}, {Value: floatVar(2)}}}
	_, err = Unparse(arena, root, words, genotype, []byte(src))
	assert.Error(t, err)
}

func TestUnparseErrorsWhenGenotypeCursorExhausted(t *testing.T) {
	words := NewWordTable()
	src := "{3 (gen/scalar min: 0 max: 10)} {4 (gen/scalar min: 0 max: 10)}"
	arena, root, err := Parse(words, src)
	require.NoError(t, err)

	genotype := &Genotype{Genes: []Gene{{Value: floatVar(1)}}}
	_, err = Unparse(arena, root, words, genotype, []byte(src))
	assert.Error(t, err)
}
