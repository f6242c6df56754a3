package senie

import (
	"math"

	"github.com/sirupsen/logrus"
)

// VM is the stack machine that executes a compiled Program. It owns the
// value stack, the heap slab vectors are allocated from, the render
// packet buffer natives write into, the matrix stack MTX_LOAD/MTX_STORE
// operate on, and the PRNG genotype building seeds before each trait
// program runs.
type VM struct {
	Env   *Env
	Words *WordTable

	Stack  []Var
	SP     int32
	FP     int32
	IP     int32
	Local  int32
	Global int32

	Heap        *heap
	RenderData  *RenderData
	MatrixStack *matrixStack
	PRNG        *prng
	Log         *logrus.Logger

	program *Program // set for the duration of Interpret, for CALL_F/fn_info lookups
	hopBack int32

	globalSize int32 // reserved global segment; SP/FP/Local start above it, never below

	OpcodesExecuted int64
}

func NewVM(cfg *Config, words *WordTable, env *Env) *VM {
	if cfg == nil {
		cfg = NewConfig()
	}
	h := newHeap(cfg.HeapSize)
	h.watermark = int32(cfg.HeapMinSize)
	globalSize := int32(MemoryGlobalSize)
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VM{
		Env:         env,
		Words:       words,
		Stack:       make([]Var, cfg.StackSize),
		SP:          globalSize,
		FP:          globalSize,
		Local:       globalSize,
		Heap:        h,
		RenderData:  NewRenderData(cfg.VertexPacketNumVertices),
		MatrixStack: newMatrixStack(),
		PRNG:        newPRNG(0),
		Log:         log,
		globalSize:  globalSize,
	}
}

// Reset clears the VM's registers, stack, and heap back to a fresh
// state while keeping the same allocations — used before running each
// trait program during genotype construction, since every trait's
// program must execute against a clean frame. The global segment
// (slots [0, globalSize)) stays reserved across the reset: SP/FP/Local
// start at globalSize, not 0, so the working stack never overlaps the
// globals bindTraitGlobals and the preamble populate there.
func (vm *VM) Reset() {
	vm.SP, vm.FP, vm.Local = vm.globalSize, vm.globalSize, vm.globalSize
	vm.IP, vm.Global = 0, 0
	vm.hopBack = 0
	for i := range vm.Stack {
		vm.Stack[i] = Var{}
	}
	vm.Heap.resetFreeList()
	vm.MatrixStack.reset()
	vm.RenderData.reset()
}

func (vm *VM) stackOverflow() bool { return int(vm.SP) >= len(vm.Stack) }

// Run interprets the preamble program (defining the global variables
// every user program assumes exist) followed by the user program, in
// one continuous VM state, matching vm_run's two-pass sequence.
func (vm *VM) Run(preamble, program *Program) error {
	if err := vm.Interpret(preamble); err != nil {
		return wrapf(err, "running preamble")
	}
	if err := vm.Interpret(program); err != nil {
		return wrapf(err, "running program")
	}
	return nil
}

// fault logs a VM-fatal opcode fault at error level — the
// SENIE_ERROR-equivalent diagnostic — and returns err unchanged, so
// every caller in Interpret can just `return vm.fault(err)`.
func (vm *VM) fault(err error) error {
	vm.Log.Errorf("vm fault at ip=%d (opcodes executed=%d): %v", vm.IP, vm.OpcodesExecuted, err)
	return err
}

// Interpret executes program from its first instruction (it resets IP
// to 0) until a STOP opcode, returning nil once reached.
func (vm *VM) Interpret(program *Program) error {
	vm.program = program
	vm.IP = 0

	for {
		if vm.Heap.availSize < vm.Heap.watermark {
			vm.gcMark()
			vm.Heap.sweep()
		}

		if int(vm.IP) < 0 || int(vm.IP) >= len(program.Code) {
			return vm.fault(&CompileError{Msg: "ip out of bounds"})
		}
		bc := program.Code[vm.IP]
		vm.IP++
		vm.OpcodesExecuted++

		switch bc.Op {
		case OpLoad:
			if err := vm.execLoad(bc); err != nil {
				return vm.fault(err)
			}
		case OpStore:
			vm.execStore(bc)
		case OpStoreF:
			vm.execStoreF(bc)
		case OpJump:
			vm.IP = vm.IP - 1 + bc.Arg0.I
		case OpJumpIf:
			v := vm.pop()
			if !v.isTruthy() {
				vm.IP = vm.IP - 1 + bc.Arg0.I
			}
		case OpCall:
			if err := vm.execCall(); err != nil {
				return vm.fault(err)
			}
		case OpCall0:
			vm.execCall0()
		case OpCallF:
			if err := vm.execCallF(program, false); err != nil {
				return vm.fault(err)
			}
		case OpCallF0:
			if err := vm.execCallF(program, true); err != nil {
				return vm.fault(err)
			}
		case OpRet:
			vm.execRet()
		case OpRet0:
			vm.IP = int32(vm.Stack[vm.FP+1].I)
			vm.hopBack++
		case OpNative:
			if err := vm.execNative(bc); err != nil {
				return vm.fault(err)
			}
		case OpAppend:
			if err := vm.execAppend(); err != nil {
				return vm.fault(err)
			}
		case OpPile:
			if err := vm.execPile(bc); err != nil {
				return vm.fault(err)
			}
		case OpSquish2:
			if err := vm.execSquish2(); err != nil {
				return vm.fault(err)
			}
		case OpMtxLoad:
			vm.MatrixStack.push()
		case OpMtxStore:
			vm.MatrixStack.pop()
		case OpAdd:
			vm.binaryFloat(func(a, b float32) float32 { return a + b })
		case OpSub:
			vm.binaryFloat(func(a, b float32) float32 { return a - b })
		case OpMul:
			vm.binaryFloat(func(a, b float32) float32 { return a * b })
		case OpDiv:
			vm.binaryFloat(func(a, b float32) float32 { return a / b })
		case OpMod:
			vm.binaryFloat(func(a, b float32) float32 { return float32(int32(a) % int32(b)) })
		case OpNeg:
			v := vm.pop()
			f := v.F
			dst := vm.push()
			*dst = floatVar(-f)
		case OpSqrt:
			v := vm.pop()
			f := v.F
			dst := vm.push()
			*dst = floatVar(float32(math.Sqrt(float64(f))))
		case OpEq:
			vm.binaryCompare(func(a, b float32) bool { return a == b })
		case OpGt:
			vm.binaryCompare(func(a, b float32) bool { return a > b })
		case OpLt:
			vm.binaryCompare(func(a, b float32) bool { return a < b })
		case OpAnd:
			vm.binaryBool(func(a, b bool) bool { return a && b })
		case OpOr:
			vm.binaryBool(func(a, b bool) bool { return a || b })
		case OpNot:
			v := vm.pop()
			b := v.Bool()
			dst := vm.push()
			*dst = boolVar(!b)
		case OpNop:
			// no-op
		case OpStop:
			return nil
		default:
			return vm.fault(&CompileError{Msg: "unhandled opcode " + bc.Op.String()})
		}
	}
}

func (vm *VM) push() *Var {
	v := &vm.Stack[vm.SP]
	vm.SP++
	return v
}

func (vm *VM) pop() *Var {
	vm.SP--
	return &vm.Stack[vm.SP]
}

func (vm *VM) frameFP() int32 {
	fp := vm.FP
	for i := int32(0); i < vm.hopBack; i++ {
		fp = int32(vm.Stack[fp].I)
	}
	return fp
}

func (vm *VM) execLoad(bc Bytecode) error {
	if vm.stackOverflow() {
		return &CompileError{Msg: "stack overflow"}
	}
	seg := MemSeg(bc.Arg0.I)
	switch seg {
	case MemConstant:
		dst := vm.push()
		*dst = bc.Arg1
	case MemArgument:
		fp := vm.frameFP()
		src := &vm.Stack[fp-bc.Arg1.I-1]
		dst := vm.push()
		*dst = *src
	case MemLocal:
		fp := vm.frameFP()
		local := fp + 3
		src := &vm.Stack[local+bc.Arg1.I]
		dst := vm.push()
		*dst = *src
	case MemGlobal:
		src := &vm.Stack[vm.Global+bc.Arg1.I]
		dst := vm.push()
		*dst = *src
	case MemVoid:
		dst := vm.push()
		*dst = Var{Type: VarVector, Heap: noIndex}
	default:
		return &CompileError{Msg: "LOAD: unknown memory segment"}
	}
	return nil
}

func (vm *VM) execStore(bc Bytecode) {
	v := vm.pop()
	seg := MemSeg(bc.Arg0.I)
	switch seg {
	case MemArgument:
		dest := &vm.Stack[vm.FP-bc.Arg1.I-1]
		*dest = *v
	case MemLocal:
		dest := &vm.Stack[vm.Local+bc.Arg1.I]
		*dest = *v
	case MemGlobal:
		dest := &vm.Stack[vm.Global+bc.Arg1.I]
		*dest = *v
	case MemVoid:
		// discard
	}
}

// argMemoryFromIName walks backward through an (iname-label, value)
// frame looking for a named default-argument slot, mirroring
// arg_memory_from_iname.
func (vm *VM) argMemoryFromIName(fnInfo *FnInfo, iname int32, argsBase int32) (int32, bool) {
	numArgs := fnInfo.NumArgs
	pos := argsBase
	for i := int32(0); i < numArgs; i++ {
		if vm.Stack[pos].I == iname {
			pos--
			return pos, true
		}
		pos -= 2
	}
	return 0, false
}

func (vm *VM) execStoreF(bc Bytecode) {
	idx := vm.pop()
	v := vm.pop()
	seg := MemSeg(bc.Arg0.I)
	if seg != MemArgument {
		return
	}
	fnInfo := &vm.program.FnInfo[idx.I]
	slot, ok := vm.argMemoryFromIName(fnInfo, bc.Arg1.I, vm.FP-1)
	if ok {
		vm.Stack[slot] = *v
	}
}

func (vm *VM) execCall() error {
	numArgsV := vm.pop()
	numArgs := numArgsV.I
	addrV := vm.pop()
	addr := addrV.I

	for i := int32(0); i < numArgs*2; i++ {
		if vm.stackOverflow() {
			return &CompileError{Msg: "stack overflow"}
		}
		vm.push()
	}

	fp := vm.SP

	if vm.stackOverflow() {
		return &CompileError{Msg: "stack overflow"}
	}
	*vm.push() = intVar(vm.FP)

	if vm.stackOverflow() {
		return &CompileError{Msg: "stack overflow"}
	}
	*vm.push() = intVar(vm.IP)

	if vm.stackOverflow() {
		return &CompileError{Msg: "stack overflow"}
	}
	*vm.push() = intVar(numArgs)

	vm.IP = addr
	vm.FP = fp
	vm.Local = vm.SP

	for i := int32(0); i < MemoryLocalSize; i++ {
		if vm.stackOverflow() {
			return &CompileError{Msg: "stack overflow"}
		}
		*vm.push() = Var{Type: VarInt}
	}
	return nil
}

func (vm *VM) execCall0() {
	addrV := vm.pop()
	addr := addrV.I
	vm.Stack[vm.FP+1] = intVar(vm.IP)
	vm.IP = addr
	vm.hopBack = 0
}

func (vm *VM) execRet() {
	src := vm.Stack[vm.SP-1]
	numArgs := vm.Stack[vm.FP+2].I

	vm.SP = vm.FP - (numArgs * 2)
	vm.IP = vm.Stack[vm.FP+1].I
	vm.FP = vm.Stack[vm.FP].I
	vm.Local = vm.FP + 3

	*vm.push() = src
}

func (vm *VM) execCallF(program *Program, bodyOnly bool) error {
	idxV := vm.pop()
	fnInfo := &program.FnInfo[idxV.I]

	if bodyOnly {
		addr := fnInfo.BodyAddr
		vm.Stack[vm.FP+1] = intVar(vm.IP)
		vm.IP = addr
		vm.hopBack = 0
		return nil
	}

	numArgs := fnInfo.NumArgs
	addr := fnInfo.ArgAddr

	// The caller (compileCall) already pushed numArgs*2 label/value pairs
	// directly below idxV; fp sits right above them, with no further
	// reservation needed (unlike CALL, whose caller has not pre-pushed
	// anything and instead relies on this frame's reservation + STORE_F
	// to fill args in after the jump).
	fp := vm.SP
	if vm.stackOverflow() {
		return &CompileError{Msg: "stack overflow"}
	}
	*vm.push() = intVar(vm.FP)
	if vm.stackOverflow() {
		return &CompileError{Msg: "stack overflow"}
	}
	*vm.push() = intVar(vm.IP)
	if vm.stackOverflow() {
		return &CompileError{Msg: "stack overflow"}
	}
	*vm.push() = intVar(numArgs)

	vm.IP = addr
	vm.FP = fp
	vm.Local = vm.SP

	for i := int32(0); i < MemoryLocalSize; i++ {
		if vm.stackOverflow() {
			return &CompileError{Msg: "stack overflow"}
		}
		*vm.push() = Var{Type: VarInt}
	}
	return nil
}

func (vm *VM) execNative(bc Bytecode) error {
	iname := IName(bc.Arg0.I)
	numArgs := int(bc.Arg1.I)

	fn := vm.Env.Lookup(iname)

	base := int(vm.SP) - numArgs*2
	args := make([]Var, numArgs)
	for i := 0; i < numArgs; i++ {
		args[i] = vm.Stack[base+i*2+1]
	}

	var result Var
	if fn != nil {
		result = fn(vm, args)
	}

	for i := 0; i < numArgs; i++ {
		vm.SP -= 2
		valueSlot := &vm.Stack[vm.SP+1]
		if valueSlot.Type == VarVector {
			*valueSlot = Var{Type: VarInt}
		}
	}

	dest := &vm.Stack[vm.SP]
	*dest = result
	vm.SP++
	return nil
}

func (vm *VM) execAppend() error {
	src := *vm.pop()
	vecV := vm.pop()

	if vecV.Type != VarVector {
		if vecV.Type == Var2D {
			x, y := vecV.Array[0], vecV.Array[1]
			*vecV = Var{Type: VarVector, Heap: noIndex}
			if err := vm.vectorAppendF32(vecV, x); err != nil {
				return err
			}
			if err := vm.vectorAppendF32(vecV, y); err != nil {
				return err
			}
		} else {
			return &CompileError{Msg: "APPEND expects a vector"}
		}
	}

	idx, ok := vm.Heap.alloc()
	if !ok {
		return &CompileError{Msg: "APPEND: heap exhausted"}
	}
	*vm.Heap.at(idx) = src
	vecV.Heap = vm.Heap.appendToChain(vecV.Heap, idx)

	dst := vm.push()
	*dst = *vecV
	return nil
}

func (vm *VM) vectorAppendF32(vec *Var, f float32) error {
	idx, ok := vm.Heap.alloc()
	if !ok {
		return &CompileError{Msg: "vector append: heap exhausted"}
	}
	*vm.Heap.at(idx) = floatVar(f)
	vec.Heap = vm.Heap.appendToChain(vec.Heap, idx)
	return nil
}

func (vm *VM) execPile(bc Bytecode) error {
	numArgs := bc.Arg0.I
	v := vm.pop()

	switch v.Type {
	case Var2D:
		if numArgs != 2 {
			return &CompileError{Msg: "PILE: VAR_2D requires exactly 2 args"}
		}
		if vm.stackOverflow() {
			return &CompileError{Msg: "stack overflow"}
		}
		*vm.push() = floatVar(v.Array[0])
		if vm.stackOverflow() {
			return &CompileError{Msg: "stack overflow"}
		}
		*vm.push() = floatVar(v.Array[1])
	case VarVector:
		idx := v.Heap
		for i := int32(0); i < numArgs; i++ {
			if idx == noIndex {
				return &CompileError{Msg: "PILE: not enough vector elements"}
			}
			if vm.stackOverflow() {
				return &CompileError{Msg: "stack overflow"}
			}
			cell := vm.Heap.at(idx)
			*vm.push() = *cell
			idx = cell.next
		}
	default:
		return &CompileError{Msg: "PILE expects VAR_2D or VECTOR"}
	}
	return nil
}

func (vm *VM) execSquish2() error {
	v2 := vm.pop()
	if v2.Type != VarFloat {
		return &CompileError{Msg: "SQUISH2 expects float in 2nd element"}
	}
	f2 := v2.F

	v1 := vm.pop()
	if v1.Type != VarFloat {
		return &CompileError{Msg: "SQUISH2 expects float in 1st element"}
	}
	f1 := v1.F

	*vm.push() = vec2Var(f1, f2)
	return nil
}

func (vm *VM) binaryFloat(op func(a, b float32) float32) {
	b := vm.pop().F
	a := vm.pop().F
	*vm.push() = floatVar(op(a, b))
}

func (vm *VM) binaryCompare(op func(a, b float32) bool) {
	b := vm.pop().F
	a := vm.pop().F
	*vm.push() = boolVar(op(a, b))
}

func (vm *VM) binaryBool(op func(a, b bool) bool) {
	b := vm.pop().Bool()
	a := vm.pop().Bool()
	*vm.push() = boolVar(op(a, b))
}

// gcMark marks every heap cell reachable from a VAR_VECTOR currently
// resident on the value stack, mirroring gc_mark.
func (vm *VM) gcMark() {
	for i := int32(0); i < vm.SP; i++ {
		v := &vm.Stack[i]
		if v.Type == VarVector {
			vm.Heap.markChain(v.Heap)
		}
	}
}
