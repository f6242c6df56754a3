package senie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(nil)
	require.NoError(t, err)
	return e
}

func TestCompileFnJumpsOverItsOwnBody(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "(fn (f x: 1) x)")
	require.NoError(t, err)

	program, err := CompileProgram(arena, root, e.Words, MaxProgramSize, e.Preamble())
	require.NoError(t, err)

	require.Equal(t, OpJump, program.Code[0].Op, "fn's body must be preceded by a jump around it")
	target := 0 + int(program.Code[0].Arg0.I)
	require.Less(t, target, len(program.Code))
	assert.Equal(t, OpStop, program.Code[target].Op, "the jump should land on the top-level STOP, skipping straight over the body")

	fnIdx := -1
	for i := range program.FnInfo {
		if program.FnInfo[i].Active {
			fnIdx = i
			break
		}
	}
	require.NotEqual(t, -1, fnIdx)
	assert.Greater(t, program.FnInfo[fnIdx].BodyAddr, int32(0))
	assert.Less(t, int(program.FnInfo[fnIdx].BodyAddr), target)
}

func TestCompileFnArgOffsetsAreDistinctAndOrdered(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "(fn (f a: 1 b: 2 c: 3) a)")
	require.NoError(t, err)

	program, err := CompileProgram(arena, root, e.Words, MaxProgramSize, e.Preamble())
	require.NoError(t, err)

	var fi *FnInfo
	for i := range program.FnInfo {
		if program.FnInfo[i].Active {
			fi = &program.FnInfo[i]
			break
		}
	}
	require.NotNil(t, fi)
	require.EqualValues(t, 3, fi.NumArgs)

	seen := map[IName]bool{}
	for i := int32(0); i < fi.NumArgs; i++ {
		off := fi.ArgOffset[i]
		assert.False(t, seen[off], "offsets must not collide")
		seen[off] = true
		// arg i's offset is strictly smaller than arg i-1's: its slots sit
		// higher on the stack, closer to fp.
		if i > 0 {
			assert.Greater(t, int32(fi.ArgOffset[i-1]), int32(off))
		}
	}
}

func TestCompileProgramSeedsGlobalsFromPreamble(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "(define my-colour red)")
	require.NoError(t, err)

	program, err := CompileProgram(arena, root, e.Words, MaxProgramSize, e.Preamble())
	require.NoError(t, err)

	redName := e.Words.Lookup("red")
	redSlot, ok := e.Preamble().GlobalMappings[redName]
	require.True(t, ok, "preamble must define a slot for red")

	myColourName := e.Words.Lookup("my-colour")
	mySlot, ok := program.GlobalMappings[myColourName]
	require.True(t, ok)
	assert.NotEqual(t, redSlot, mySlot, "the program's own define must not collide with a preamble slot")

	// find the LOAD GLOBAL referencing red's slot inside the compiled define
	foundLoadOfRed := false
	for _, bc := range program.Code {
		if bc.Op == OpLoad && MemSeg(bc.Arg0.I) == MemGlobal && bc.Arg1.I == redSlot {
			foundLoadOfRed = true
		}
	}
	assert.True(t, foundLoadOfRed, "`red` must resolve to the preamble's global slot, not a free-name literal")
}

func TestCompileProgramWithoutPreambleFallsBackToFreeName(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "red")
	require.NoError(t, err)

	program, err := CompileProgram(arena, root, e.Words, MaxProgramSize, nil)
	require.NoError(t, err)

	require.Len(t, program.Code, 2) // LOAD + STOP
	assert.Equal(t, OpLoad, program.Code[0].Op)
	assert.Equal(t, MemConstant, MemSeg(program.Code[0].Arg0.I))
	assert.Equal(t, VarName, program.Code[0].Arg1.Type)
}

func TestCompileIfBranchesJumpPastEachOther(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "(if 1 2 3)")
	require.NoError(t, err)

	program, err := CompileProgram(arena, root, e.Words, MaxProgramSize, e.Preamble())
	require.NoError(t, err)

	var jumpIfIdx, jumpIdx = -1, -1
	for i, bc := range program.Code {
		if bc.Op == OpJumpIf {
			jumpIfIdx = i
		}
		if bc.Op == OpJump && jumpIfIdx != -1 && jumpIdx == -1 {
			jumpIdx = i
		}
	}
	require.NotEqual(t, -1, jumpIfIdx)
	require.NotEqual(t, -1, jumpIdx)

	elseTarget := jumpIfIdx + int(program.Code[jumpIfIdx].Arg0.I)
	assert.Equal(t, jumpIdx+1, elseTarget, "false branch should land right after the then-branch's jump")

	endTarget := jumpIdx + int(program.Code[jumpIdx].Arg0.I)
	assert.Equal(t, len(program.Code)-1, endTarget, "then-branch's jump should land on STOP")
}

func TestCompileCallUnknownFunctionIsError(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "(never-defined x: 1)")
	require.NoError(t, err)

	_, err = CompileProgram(arena, root, e.Words, MaxProgramSize, e.Preamble())
	assert.Error(t, err)
}

func TestCompileNativeCallEmitsLabelValuePairs(t *testing.T) {
	e := mustEngine(t)
	arena, root, err := Parse(e.Words, "(math/sin angle: 0)")
	require.NoError(t, err)

	program, err := CompileProgram(arena, root, e.Words, MaxProgramSize, e.Preamble())
	require.NoError(t, err)

	nativeIdx := -1
	for i, bc := range program.Code {
		if bc.Op == OpNative {
			nativeIdx = i
		}
	}
	require.NotEqual(t, -1, nativeIdx)
	require.GreaterOrEqual(t, nativeIdx, 2)

	labelBC := program.Code[nativeIdx-2]
	valueBC := program.Code[nativeIdx-1]
	assert.Equal(t, VarName, labelBC.Arg1.Type, "native args push the label first")
	assert.Equal(t, VarFloat, valueBC.Arg1.Type, "then the value")
}
