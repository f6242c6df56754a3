package senie

// VarType tags the variant held by a Var. Numbering starts at 128 to
// make it easy to spot a stray AST NodeType leaking into a Var.
type VarType int32

const (
	VarInt VarType = iota + 128
	VarFloat
	VarBool
	VarLong
	VarName
	VarVector
	VarColour
	Var2D
)

func (t VarType) String() string {
	switch t {
	case VarInt:
		return "INT"
	case VarFloat:
		return "FLOAT"
	case VarBool:
		return "BOOLEAN"
	case VarLong:
		return "LONG"
	case VarName:
		return "NAME"
	case VarVector:
		return "VECTOR"
	case VarColour:
		return "COLOUR"
	case Var2D:
		return "2D"
	default:
		return "UNKNOWN"
	}
}

// Var is the runtime value: a tagged variant that inlines every shape
// except Vector, which instead heads a doubly-linked chain of
// heap-allocated Vars (see heap.go).
type Var struct {
	Type VarType

	I    int32 // Int, Bool, Name, Colour format tag
	F    float32
	L    uint64
	Heap int32 // VarVector: index of the first heap cell, or -1

	// Used by Colour (format in I, 4 elements) and Vec2 (2 elements),
	// without needing a heap-allocated vector for either.
	Array [4]float32

	mark bool
	// prev/next link heap-resident Vars into a vector's child chain, or
	// into the heap's free list. Stack-resident Vars never use these.
	prev, next int32
}

func intVar(i int32) Var     { return Var{Type: VarInt, I: i} }
func floatVar(f float32) Var { return Var{Type: VarFloat, F: f} }
func boolVar(b bool) Var     { return Var{Type: VarBool, I: b2i(b)} }
func longVar(l uint64) Var   { return Var{Type: VarLong, L: l} }
func nameVar(n IName) Var    { return Var{Type: VarName, I: int32(n)} }

func vec2Var(x, y float32) Var {
	v := Var{Type: Var2D}
	v.Array[0] = x
	v.Array[1] = y
	return v
}

func colourVar(format ColourFormat, e0, e1, e2, alpha float32) Var {
	v := Var{Type: VarColour, I: int32(format)}
	v.Array[0] = e0
	v.Array[1] = e1
	v.Array[2] = e2
	v.Array[3] = alpha
	return v
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (v Var) Bool() bool { return v.I != 0 }

func (v Var) isTruthy() bool {
	switch v.Type {
	case VarBool:
		return v.I != 0
	default:
		return v.I != 0 || v.F != 0
	}
}
