package senie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPRNGSameSeedSameSequence(t *testing.T) {
	a := newPRNG(1234)
	b := newPRNG(1234)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.next(), b.next())
	}
}

func TestPRNGDifferentSeedsDiverge(t *testing.T) {
	a := newPRNG(1)
	b := newPRNG(2)
	assert.NotEqual(t, a.next(), b.next())
}

func TestPRNGF32Range(t *testing.T) {
	p := newPRNG(7)
	for i := 0; i < 1000; i++ {
		f := p.f32()
		assert.True(t, f >= 0 && f < 1)
	}
}

func TestPRNGF32RangeBounds(t *testing.T) {
	p := newPRNG(99)
	for i := 0; i < 1000; i++ {
		f := p.f32Range(-5, 5)
		assert.True(t, f >= -5 && f < 5)
	}
}

func TestPRNGI32RangeInclusive(t *testing.T) {
	p := newPRNG(42)
	seen := map[int32]bool{}
	for i := 0; i < 2000; i++ {
		v := p.i32Range(0, 3)
		assert.True(t, v >= 0 && v <= 3)
		seen[v] = true
	}
	assert.Len(t, seen, 4, "should eventually hit every value in [0,3]")
}

func TestPRNGI32RangeDegenerate(t *testing.T) {
	p := newPRNG(1)
	assert.Equal(t, int32(5), p.i32Range(5, 5))
	assert.Equal(t, int32(5), p.i32Range(5, 2))
}

func TestPRNGCopyFromReplicatesFutureSequence(t *testing.T) {
	src := newPRNG(555)
	src.next()
	src.next()

	dst := newPRNG(1)
	dst.copyFrom(src)

	for i := 0; i < 20; i++ {
		assert.Equal(t, src.next(), dst.next())
	}
}
