package senie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityMatrixTransformIsNoOp(t *testing.T) {
	m := identityMatrix()
	x, y := m.transformVec2(3, 4)
	assert.Equal(t, float32(3), x)
	assert.Equal(t, float32(4), y)
}

func TestTranslateMatrixShiftsPoint(t *testing.T) {
	m := identityMatrix().translate(10, 20)
	x, y := m.transformVec2(1, 1)
	assert.Equal(t, float32(11), x)
	assert.Equal(t, float32(21), y)
}

func TestScaleMatrixScalesPoint(t *testing.T) {
	m := identityMatrix().scale(2, 3)
	x, y := m.transformVec2(5, 5)
	assert.Equal(t, float32(10), x)
	assert.Equal(t, float32(15), y)
}

func TestTranslateThenScaleComposes(t *testing.T) {
	m := identityMatrix().translate(10, 0).scale(2, 2)
	x, _ := m.transformVec2(1, 0)
	// scale is applied as the rightmost factor in m.multiply(s), so a
	// point is scaled before the translate's own basis is applied.
	assert.Equal(t, float32(12), x)
}

func TestMatrixStackPushCopiesTopAndPopRestoresIt(t *testing.T) {
	s := newMatrixStack()
	s.setTop(identityMatrix().translate(5, 5))

	s.push()
	s.setTop(identityMatrix().translate(100, 100))
	x, _ := s.top().transformVec2(0, 0)
	assert.Equal(t, float32(100), x)

	s.pop()
	x, _ = s.top().transformVec2(0, 0)
	assert.Equal(t, float32(5), x)
}

func TestMatrixStackPopAtRootIsNoOp(t *testing.T) {
	s := newMatrixStack()
	s.pop()
	assert.Len(t, s.stack, 1)
}

func TestMatrixStackResetRestoresIdentityRoot(t *testing.T) {
	s := newMatrixStack()
	s.push()
	s.setTop(identityMatrix().translate(1, 1))
	s.reset()

	assert.Len(t, s.stack, 1)
	x, y := s.top().transformVec2(7, 8)
	assert.Equal(t, float32(7), x)
	assert.Equal(t, float32(8), y)
}
