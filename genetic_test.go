package senie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTraitsFindsScalarAlterable(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{5 (gen/scalar min: 0 max: 10)}")
	require.NoError(t, err)

	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)
	require.Equal(t, 1, traits.Count())
	assert.Equal(t, VarFloat, traits.Traits[0].InitialValue.Type)
	assert.Equal(t, float32(5), traits.Traits[0].InitialValue.F)
}

// Regression test: a 2-element alterable vector must extract as exactly
// one Vec2 trait, not one trait per element.
func TestExtractTraits2ElementVectorIsOneTrait(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{[100 200] (gen/2d min: 0 max: 500)}")
	require.NoError(t, err)

	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)
	require.Equal(t, 1, traits.Count())
	assert.Equal(t, Var2D, traits.Traits[0].InitialValue.Type)
	assert.Equal(t, [2]float32{100, 200}, [2]float32{traits.Traits[0].InitialValue.Array[0], traits.Traits[0].InitialValue.Array[1]})
}

// A 3+-element alterable vector expands into one trait per child.
func TestExtractTraits3ElementVectorExpandsPerChild(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{[1 2 3] (gen/scalar min: 0 max: 10)}")
	require.NoError(t, err)

	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)
	require.Equal(t, 3, traits.Count())
	for i, want := range []float32{1, 2, 3} {
		assert.Equal(t, VarFloat, traits.Traits[i].InitialValue.Type)
		assert.Equal(t, want, traits.Traits[i].InitialValue.F)
	}
}

func TestExtractTraitsVisitsNestedListsInOrder(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "({1 (gen/scalar min: 0 max: 1)} {2 (gen/scalar min: 0 max: 1)})")
	require.NoError(t, err)

	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)
	require.Equal(t, 2, traits.Count())
	assert.Equal(t, float32(1), traits.Traits[0].InitialValue.F)
	assert.Equal(t, float32(2), traits.Traits[1].InitialValue.F)
}

func TestBuildGenotypeFromInitialValuesCopiesAuthoredValues(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{7 (gen/scalar min: 0 max: 10)}")
	require.NoError(t, err)
	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)

	g := BuildGenotypeFromInitialValues(traits)
	require.Len(t, g.Genes, 1)
	assert.Equal(t, float32(7), g.Genes[0].Value.F)
}

func TestBuildGenotypeFromProgramDrawsWithinBounds(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{7 (gen/scalar min: 2 max: 4)}")
	require.NoError(t, err)
	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)

	vm := e.NewVM()
	g, err := BuildGenotypeFromProgram(traits, e, vm, 42)
	require.NoError(t, err)
	require.Len(t, g.Genes, 1)
	v := g.Genes[0].Value
	require.Equal(t, VarFloat, v.Type)
	assert.GreaterOrEqual(t, v.F, float32(2))
	assert.LessOrEqual(t, v.F, float32(4))
}

func TestBuildGenotypeFromProgramIsDeterministicGivenSeed(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{7 (gen/scalar min: 0 max: 1000)}")
	require.NoError(t, err)
	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)

	vm := e.NewVM()
	g1, err := BuildGenotypeFromProgram(traits, e, vm, 99)
	require.NoError(t, err)
	g2, err := BuildGenotypeFromProgram(traits, e, vm, 99)
	require.NoError(t, err)
	assert.Equal(t, g1.Genes[0].Value.F, g2.Genes[0].Value.F)
}

func TestBuildGenotypeFromProgram2DTraitDrawsBothAxes(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{[100 200] (gen/2d min: 0 max: 500)}")
	require.NoError(t, err)
	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)
	require.Equal(t, 1, traits.Count())

	vm := e.NewVM()
	g, err := BuildGenotypeFromProgram(traits, e, vm, 7)
	require.NoError(t, err)
	v := g.Genes[0].Value
	require.Equal(t, Var2D, v.Type)
	assert.GreaterOrEqual(t, v.Array[0], float32(0))
	assert.LessOrEqual(t, v.Array[0], float32(500))
	assert.GreaterOrEqual(t, v.Array[1], float32(0))
	assert.LessOrEqual(t, v.Array[1], float32(500))
}

func TestGenotypeCrossoverSplitsAtIndex(t *testing.T) {
	a := &Genotype{Genes: []Gene{{Value: floatVar(1)}, {Value: floatVar(2)}, {Value: floatVar(3)}}}
	b := &Genotype{Genes: []Gene{{Value: floatVar(10)}, {Value: floatVar(20)}, {Value: floatVar(30)}}}

	child := a.crossover(b, 1)
	require.Len(t, child.Genes, 3)
	assert.Equal(t, float32(1), child.Genes[0].Value.F)
	assert.Equal(t, float32(20), child.Genes[1].Value.F)
	assert.Equal(t, float32(30), child.Genes[2].Value.F)
}

func TestGenotypeCloneIsIndependentAndCursorReset(t *testing.T) {
	a := &Genotype{Genes: []Gene{{Value: floatVar(1)}, {Value: floatVar(2)}}}
	a.pullGene()

	clone := a.clone()
	clone.Genes[0].Value = floatVar(99)
	assert.Equal(t, float32(1), a.Genes[0].Value.F, "mutating the clone must not affect the original")

	gene, ok := clone.pullGene()
	require.True(t, ok)
	assert.Equal(t, float32(99), gene.Value.F, "clone's cursor must start fresh regardless of the source's cursor position")
}

func TestCreateInitialGenerationFirstIsAuthoredValues(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{7 (gen/scalar min: 0 max: 10)}")
	require.NoError(t, err)
	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)

	vm := e.NewVM()
	gl, err := CreateInitialGeneration(traits, 5, e, vm, 123)
	require.NoError(t, err)
	require.Len(t, gl.Genotypes, 5)
	assert.Equal(t, float32(7), gl.Genotypes[0].Genes[0].Value.F, "genotype 0 must carry the authored initial value unchanged")
}

func TestNextGenerationProducesRequestedPopulationSize(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{7 (gen/scalar min: 0 max: 10)}")
	require.NoError(t, err)
	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)

	vm := e.NewVM()
	parents, err := CreateInitialGeneration(traits, 4, e, vm, 123)
	require.NoError(t, err)

	prngState := newPRNG(5)
	next, err := NextGeneration(parents, 10, 0, prngState, traits, e)
	require.NoError(t, err)
	assert.Len(t, next.Genotypes, 10)

	// first numParents entries are the cloned parents, verbatim
	for i, p := range parents.Genotypes {
		assert.Equal(t, p.Genes[0].Value.F, next.Genotypes[i].Genes[0].Value.F)
	}
}

func TestPossiblyMutateAlwaysRegeneratesAtRateOne(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{7 (gen/scalar min: 100 max: 200)}")
	require.NoError(t, err)
	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)

	g := BuildGenotypeFromInitialValues(traits)
	prngState := newPRNG(3)
	require.NoError(t, PossiblyMutate(g, traits, e, prngState, 1.0))

	assert.GreaterOrEqual(t, g.Genes[0].Value.F, float32(100))
	assert.LessOrEqual(t, g.Genes[0].Value.F, float32(200))
}

func TestPossiblyMutateNeverRegeneratesAtRateZero(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{7 (gen/scalar min: 100 max: 200)}")
	require.NoError(t, err)
	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)

	g := BuildGenotypeFromInitialValues(traits)
	prngState := newPRNG(3)
	require.NoError(t, PossiblyMutate(g, traits, e, prngState, 0.0))

	assert.Equal(t, float32(7), g.Genes[0].Value.F)
}

// CompileProgramWithGenotype must substitute the extracted trait's gene
// in place of the alterable's authored expression.
func TestCompileProgramWithGenotypeSubstitutesGene(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{5 (gen/scalar min: 0 max: 10)}")
	require.NoError(t, err)

	genotype := &Genotype{Genes: []Gene{{Value: floatVar(42)}}}
	program, err := CompileProgramWithGenotype(arena, root, e.Words, MaxProgramSize, genotype, e.Preamble())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(program.Code), 1)
	assert.Equal(t, OpLoad, program.Code[0].Op)
	assert.Equal(t, VarFloat, program.Code[0].Arg1.Type)
	assert.Equal(t, float32(42), program.Code[0].Arg1.F)
}

// Regression test: a 3+-element alterable vector must pull one gene per
// child at compile-with-genotype time and rebuild the vector, matching
// the per-child traits ExtractTraits produced for it.
func TestCompileProgramWithGenotypeRebuilds3ElementVectorFromPerChildGenes(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{[1 2 3] (gen/scalar min: 0 max: 10)}")
	require.NoError(t, err)

	genotype := &Genotype{Genes: []Gene{
		{Value: floatVar(10)},
		{Value: floatVar(20)},
		{Value: floatVar(30)},
	}}
	program, err := CompileProgramWithGenotype(arena, root, e.Words, MaxProgramSize, genotype, e.Preamble())
	require.NoError(t, err)

	vm := e.NewVM()
	require.NoError(t, vm.Run(e.Preamble(), program))
	got := vm.Stack[vm.SP-1]
	require.Equal(t, VarVector, got.Type)

	var vals []float32
	for idx := got.Heap; idx != noIndex; idx = vm.Heap.at(idx).next {
		vals = append(vals, vm.Heap.at(idx).F)
	}
	assert.Equal(t, []float32{10, 20, 30}, vals)
}

func TestTraitListCount(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "{1 (gen/scalar min: 0 max: 1)} {2 (gen/scalar min: 0 max: 1)}")
	require.NoError(t, err)
	traits, err := ExtractTraits(arena, root, e.Words, MaxTraitProgramSize)
	require.NoError(t, err)
	assert.Equal(t, 2, traits.Count())
}
