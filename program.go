package senie

import (
	"fmt"
	"strings"

	"github.com/senie-lang/senie/ascii"
)

// Opcode is the VM's instruction tag. The complete set from spec §4.4.
type Opcode int32

const (
	OpLoad Opcode = iota
	OpStore
	OpStoreF
	OpJump
	OpJumpIf
	OpCall
	OpCall0
	OpCallF
	OpCallF0
	OpRet
	OpRet0
	OpNative
	OpAppend
	OpPile
	OpSquish2
	OpMtxLoad
	OpMtxStore
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpSqrt
	OpEq
	OpGt
	OpLt
	OpAnd
	OpOr
	OpNot
	OpNop
	OpStop
)

var opcodeNames = [...]string{
	"LOAD", "STORE", "STORE_F", "JUMP", "JUMP_IF", "CALL", "CALL_0",
	"CALL_F", "CALL_F_0", "RET", "RET_0", "NATIVE", "APPEND", "PILE",
	"SQUISH2", "MTX_LOAD", "MTX_STORE", "ADD", "SUB", "MUL", "DIV", "MOD",
	"NEG", "SQRT", "EQ", "GT", "LT", "AND", "OR", "NOT", "NOP", "STOP",
}

func (op Opcode) String() string {
	if int(op) < 0 || int(op) >= len(opcodeNames) {
		return "UNKNOWN"
	}
	return opcodeNames[op]
}

// MemSeg is a compiler/VM memory segment tag, carried in a LOAD/STORE's
// arg0.
type MemSeg int32

const (
	MemArgument MemSeg = iota
	MemLocal
	MemGlobal
	MemConstant
	MemVoid
)

func (m MemSeg) String() string {
	switch m {
	case MemArgument:
		return "ARGUMENT"
	case MemLocal:
		return "LOCAL"
	case MemGlobal:
		return "GLOBAL"
	case MemConstant:
		return "CONSTANT"
	case MemVoid:
		return "VOID"
	default:
		return "?"
	}
}

// Bytecode is one flat instruction: an opcode plus two operand Vars
// carrying constants, memory-segment tags, or immediate offsets.
type Bytecode struct {
	Op   Opcode
	Arg0 Var
	Arg1 Var
}

// FnInfo describes one top-level function's entry points. ArgAddr and
// BodyAddr are the same address: argument values, defaults included,
// are compiled at each call site (see the calling-convention note in
// DESIGN.md).
type FnInfo struct {
	Active    bool
	Index     int32
	FnName    IName
	ArgAddr   int32
	BodyAddr  int32
	NumArgs   int32
	ArgOffset [MaxNumArguments]IName // stack offset (from fp) of argument i's value slot
	ArgName   [MaxNumArguments]IName // argument i's label name, for call-site override matching

	// DefaultNode is compile-time-only metadata: the AST node (within the
	// Arena the function was compiled from) holding argument i's default
	// expression, re-compiled at call sites that don't override it. Only
	// meaningful during the compile pass that produced this FnInfo.
	DefaultNode [MaxNumArguments]NodeID
}

// Program is a compiled, linear bytecode unit: the executable code plus
// the compile-time-only maps the compiler used to resolve globals and
// locals.
type Program struct {
	Code []Bytecode

	GlobalMappings map[IName]int32
	LocalMappings  map[IName]int32

	FnInfo        [MaxTopLevelFunctions]FnInfo
	CurrentFnInfo int32 // index into FnInfo, or -1

	Words *WordTable // retained for pretty-printing only
}

func NewProgram(words *WordTable, maxSize int) *Program {
	p := &Program{
		Code:           make([]Bytecode, 0, maxSize),
		GlobalMappings: make(map[IName]int32),
		LocalMappings:  make(map[IName]int32),
		Words:          words,
		CurrentFnInfo:  -1,
	}
	return p
}

func (p *Program) emit(op Opcode, arg0, arg1 Var) int {
	p.Code = append(p.Code, Bytecode{Op: op, Arg0: arg0, Arg1: arg1})
	return len(p.Code) - 1
}

// StopLocation returns the index of this program's final STOP
// instruction — every program's entry/return address once control
// falls off the end.
func (p *Program) StopLocation() int32 {
	return int32(len(p.Code) - 1)
}

// PrettyPrint renders the bytecode as a themed ASCII listing, grounded
// on the teacher's vm_program.go disassembly printer.
func (p *Program) PrettyPrint() string {
	var b strings.Builder
	for ip, bc := range p.Code {
		b.WriteString(ascii.Color(ascii.DefaultTheme.Muted, "%4d: ", ip))
		b.WriteString(ascii.Color(ascii.DefaultTheme.Operator, "%-10s", bc.Op))
		b.WriteString(formatOperand(p, bc.Op, bc.Arg0, 0))
		b.WriteString(" ")
		b.WriteString(formatOperand(p, bc.Op, bc.Arg1, 1))
		b.WriteString("\n")
	}
	return b.String()
}

func formatOperand(p *Program, op Opcode, v Var, slot int) string {
	switch op {
	case OpLoad, OpStore, OpStoreF:
		if slot == 0 {
			return ascii.Color(ascii.DefaultTheme.Label, "%s", MemSeg(v.I))
		}
	}
	return ascii.Color(ascii.DefaultTheme.Literal, "%s", formatVarOperand(p, v))
}

func formatVarOperand(p *Program, v Var) string {
	switch v.Type {
	case VarInt:
		return fmt.Sprintf("%d", v.I)
	case VarFloat:
		return fmt.Sprintf("%g", v.F)
	case VarName:
		if p.Words != nil {
			return p.Words.ReverseLookup(IName(v.I))
		}
		return fmt.Sprintf("name#%d", v.I)
	default:
		return fmt.Sprintf("%v", v.I)
	}
}
