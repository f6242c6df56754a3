package senie

import "github.com/sirupsen/logrus"

// logCompileResult emits the SENIE_LOG/SENIE_ERROR-equivalent compiler
// diagnostics for one compile pass: the failure at error level, or (on
// success, and only when debug logging is enabled, since PrettyPrint
// walks the whole program) a full bytecode dump at debug level —
// mirroring the original's SENIE_DEBUG_MODE node/bytecode dumps.
func logCompileResult(label string, prog *Program, err error) {
	if err != nil {
		logrus.Errorf("compile %s: %v", label, err)
		return
	}
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.Debugf("compiled %s (%d instructions):\n%s", label, len(prog.Code), prog.PrettyPrint())
	}
}

// compileMode selects which of the three re-entrant compiler behaviors
// (spec.md §4.3) the walker runs: ordinary program compilation, a
// trait program (initial-value or vary variant), or a final program
// built by pulling genes from an already-built Genotype instead of
// compiling alterable expressions.
type compileMode int32

const (
	modeNormal compileMode = iota
	modeTrait
	modeVaryTrait
	modeWithGenotype
)

// funcScope tracks the enclosing function's argument/local bindings
// while compiling its body; nil at top level.
type funcScope struct {
	fnIndex int32
	args    map[IName]int32 // iname -> value-slot offset from fp
	locals  map[IName]int32 // iname -> offset from local base
}

type compiler struct {
	arena *Arena
	words *WordTable
	prog  *Program

	fn *funcScope

	nameDefine IName
	nameIf     IName
	nameFn     IName
	nameQuote  IName

	mode          compileMode
	genInitialVar Var
	useVary       bool
	genotype      *Genotype
}

func newCompiler(arena *Arena, words *WordTable, maxSize int) *compiler {
	return &compiler{
		arena:      arena,
		words:      words,
		prog:       NewProgram(words, maxSize),
		nameDefine: words.Lookup("define"),
		nameIf:     words.Lookup("if"),
		nameFn:     words.Lookup("fn"),
		nameQuote:  words.Lookup("quote"),
	}
}

// seedGlobals copies preamble's name->slot assignments into c so a
// program compiled against that preamble resolves `red`, `canvas/width`,
// etc. to the same global-segment slot the preamble already populated,
// and so the program's own top-level `define`s allocate slots after
// them instead of colliding at slot 0 (vm.Global is a single process-wide
// offset, never reset between the preamble and program Interpret passes).
func (c *compiler) seedGlobals(preamble *Program) {
	if preamble == nil {
		return
	}
	for name, slot := range preamble.GlobalMappings {
		c.prog.GlobalMappings[name] = slot
	}
}

// CompileProgram compiles the full top-level node list headed by root
// into a runnable Program, ending in STOP. preamble should be the
// Engine's preamble program (see Engine.Preamble) so global names it
// defines resolve to the slots it already populated; pass nil to compile
// against an empty global namespace (e.g. in isolated tests).
func CompileProgram(arena *Arena, root NodeID, words *WordTable, maxSize int, preamble *Program) (*Program, error) {
	c := newCompiler(arena, words, maxSize)
	c.mode = modeNormal
	c.seedGlobals(preamble)
	if err := c.compileTopLevel(root); err != nil {
		logCompileResult("program", nil, err)
		return nil, err
	}
	c.prog.emit(OpStop, Var{}, Var{})
	logCompileResult("program", c.prog, nil)
	return c.prog, nil
}

// CompileProgramForTrait compiles a single alterable's parameter_ast
// context into a trait program, binding genInitialVar to the global
// gen/initial-value, per spec.md §4.3's trait-compilation walk.
func CompileProgramForTrait(arena *Arena, paramAST NodeID, words *WordTable, maxSize int, genInitialVar Var) (*Program, error) {
	return compileTraitProgram(arena, paramAST, words, maxSize, genInitialVar, false)
}

// CompileProgramForVaryTrait is CompileProgramForTrait plus the global
// USE_VARY=true binding, for genotype construction where each genotype
// needs a freshly-randomized gene rather than the authored initial
// value.
func CompileProgramForVaryTrait(arena *Arena, paramAST NodeID, words *WordTable, maxSize int, genInitialVar Var) (*Program, error) {
	return compileTraitProgram(arena, paramAST, words, maxSize, genInitialVar, true)
}

func compileTraitProgram(arena *Arena, paramAST NodeID, words *WordTable, maxSize int, genInitialVar Var, vary bool) (*Program, error) {
	c := newCompiler(arena, words, maxSize)
	c.mode = modeTrait
	if vary {
		c.mode = modeVaryTrait
		c.useVary = true
	}
	c.genInitialVar = genInitialVar

	label := "trait"
	if vary {
		label = "vary-trait"
	}

	if err := c.bindTraitGlobals(); err != nil {
		logCompileResult(label, nil, err)
		return nil, err
	}

	if err := c.compileSiblings(paramAST); err != nil {
		logCompileResult(label, nil, err)
		return nil, err
	}
	c.prog.emit(OpStop, Var{}, Var{})
	logCompileResult(label, c.prog, nil)
	return c.prog, nil
}

func (c *compiler) bindTraitGlobals() error {
	initialSlot := c.globalSlot(c.words.Lookup("gen/initial-value"))
	c.prog.emit(OpLoad, intVar(int32(MemConstant)), c.genInitialVar)
	c.prog.emit(OpStore, intVar(int32(MemGlobal)), intVar(initialSlot))

	if c.useVary {
		varySlot := c.globalSlot(c.words.Lookup("USE_VARY"))
		c.prog.emit(OpLoad, intVar(int32(MemConstant)), boolVar(true))
		c.prog.emit(OpStore, intVar(int32(MemGlobal)), intVar(varySlot))
	}
	return nil
}

// CompileProgramWithGenotype compiles root exactly like CompileProgram
// except every alterable node's expression is replaced by a LOAD
// CONSTANT of the next gene pulled from genotype's cursor — the cursor
// order must match trait extraction's pre-order walk exactly.
func CompileProgramWithGenotype(arena *Arena, root NodeID, words *WordTable, maxSize int, genotype *Genotype, preamble *Program) (*Program, error) {
	c := newCompiler(arena, words, maxSize)
	c.mode = modeWithGenotype
	c.genotype = genotype
	c.seedGlobals(preamble)
	if err := c.compileTopLevel(root); err != nil {
		logCompileResult("genotype program", nil, err)
		return nil, err
	}
	c.prog.emit(OpStop, Var{}, Var{})
	logCompileResult("genotype program", c.prog, nil)
	return c.prog, nil
}

func (c *compiler) globalSlot(name IName) int32 {
	if slot, ok := c.prog.GlobalMappings[name]; ok {
		return slot
	}
	slot := int32(len(c.prog.GlobalMappings))
	c.prog.GlobalMappings[name] = slot
	return slot
}

func (c *compiler) localSlot(name IName) int32 {
	if c.fn == nil {
		return 0
	}
	if slot, ok := c.fn.locals[name]; ok {
		return slot
	}
	slot := int32(len(c.fn.locals))
	c.fn.locals[name] = slot
	return slot
}

func (c *compiler) compileTopLevel(head NodeID) error {
	return c.compileSiblings(head)
}

func (c *compiler) compileSiblings(head NodeID) error {
	for id := head; id != noNode; id = c.arena.Node(id).Next {
		if err := c.compileNode(id); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compileNode(id NodeID) error {
	n := c.arena.Node(id)

	switch n.Type {
	case NodeWhitespace, NodeComment:
		return nil
	}

	// An alterable Vector with more than two elements extracted one
	// trait per child (see ExtractTraits), so pulling the genotype's
	// cursor here must mirror that: one gene per child, reassembled into
	// a vector, rather than a single gene for the whole node. A 2-element
	// alterable vector extracted as a single Vec2 trait and is handled by
	// the single-gene path below, same as any other alterable.
	if n.Alterable && c.mode == modeWithGenotype && n.Type == NodeVector && !c.arena.Is2DVector(id) {
		c.prog.emit(OpLoad, intVar(int32(MemVoid)), Var{})
		for child := c.arena.SafeFirst(n.FirstChild); child != noNode; child = c.arena.SafeNext(child) {
			gene, ok := c.genotype.pullGene()
			if !ok {
				return &CompileError{Msg: "compile-with-genotype: genotype cursor exhausted"}
			}
			c.prog.emit(OpLoad, intVar(int32(MemConstant)), gene.Value)
			c.prog.emit(OpAppend, Var{}, Var{})
		}
		return nil
	}

	if n.Alterable && c.mode == modeWithGenotype {
		gene, ok := c.genotype.pullGene()
		if !ok {
			return &CompileError{Msg: "compile-with-genotype: genotype cursor exhausted"}
		}
		c.prog.emit(OpLoad, intVar(int32(MemConstant)), gene.Value)
		return nil
	}

	switch n.Type {
	case NodeInt:
		c.prog.emit(OpLoad, intVar(int32(MemConstant)), intVar(n.IVal))
		return nil
	case NodeFloat:
		c.prog.emit(OpLoad, intVar(int32(MemConstant)), floatVar(n.FVal))
		return nil
	case NodeName:
		return c.compileName(IName(n.IVal))
	case NodeList:
		return c.compileList(id)
	case NodeVector:
		return c.compileVector(id)
	default:
		return &CompileError{Msg: "cannot compile node of type " + n.Type.String()}
	}
}

func (c *compiler) compileName(name IName) error {
	if c.fn != nil {
		if offset, ok := c.fn.args[name]; ok {
			c.prog.emit(OpLoad, intVar(int32(MemArgument)), intVar(offset))
			return nil
		}
		if offset, ok := c.fn.locals[name]; ok {
			c.prog.emit(OpLoad, intVar(int32(MemLocal)), intVar(offset))
			return nil
		}
	}
	if slot, ok := c.prog.GlobalMappings[name]; ok {
		c.prog.emit(OpLoad, intVar(int32(MemGlobal)), intVar(slot))
		return nil
	}
	// free name: emit it as a literal Name Var (matches an un-bound
	// identifier being passed through, e.g. as a native's symbolic arg).
	c.prog.emit(OpLoad, intVar(int32(MemConstant)), nameVar(name))
	return nil
}

func (c *compiler) compileList(id NodeID) error {
	n := c.arena.Node(id)
	head := c.arena.SafeFirst(n.FirstChild)
	if head == noNode {
		return nil
	}
	headNode := c.arena.Node(head)

	if headNode.Type == NodeName {
		switch IName(headNode.IVal) {
		case c.nameDefine:
			return c.compileDefine(head)
		case c.nameIf:
			return c.compileIf(head)
		case c.nameFn:
			return c.compileFn(id)
		}
	}

	return c.compileCall(head)
}

func (c *compiler) compileDefine(head NodeID) error {
	nameNode := c.arena.SafeNext(head)
	if nameNode == noNode || c.arena.Node(nameNode).Type != NodeName {
		return &CompileError{Msg: "define: expected a name"}
	}
	name := IName(c.arena.Node(nameNode).IVal)

	valueNode := c.arena.SafeNext(nameNode)
	if err := c.compileNode(valueNode); err != nil {
		return err
	}

	if c.fn == nil {
		slot := c.globalSlot(name)
		c.prog.emit(OpStore, intVar(int32(MemGlobal)), intVar(slot))
	} else {
		slot := c.localSlot(name)
		c.prog.emit(OpStore, intVar(int32(MemLocal)), intVar(slot))
	}
	return nil
}

func (c *compiler) compileIf(head NodeID) error {
	condNode := c.arena.SafeNext(head)
	thenNode := c.arena.SafeNext(condNode)
	elseNode := c.arena.SafeNext(thenNode)

	if err := c.compileNode(condNode); err != nil {
		return err
	}

	jumpIfIdx := c.prog.emit(OpJumpIf, intVar(0), Var{})

	if err := c.compileNode(thenNode); err != nil {
		return err
	}
	jumpEndIdx := c.prog.emit(OpJump, intVar(0), Var{})

	elseStart := int32(len(c.prog.Code))
	c.prog.Code[jumpIfIdx].Arg0 = intVar(elseStart - int32(jumpIfIdx))

	if elseNode != noNode {
		if err := c.compileNode(elseNode); err != nil {
			return err
		}
	} else {
		c.prog.emit(OpLoad, intVar(int32(MemConstant)), boolVar(false))
	}

	end := int32(len(c.prog.Code))
	c.prog.Code[jumpEndIdx].Arg0 = intVar(end - int32(jumpEndIdx))
	return nil
}

// compileFn registers a top-level function and compiles its body.
// Default-argument values are resolved at each call site rather than
// through a separate arg_address bytecode block (see DESIGN.md: the
// original's vm_compiler.c, which defines the exact call-site/
// arg_address hand-off, was not present in the retrieved sources — only
// vm_compiler.h's declarations and vm_interpreter.c's opcode semantics
// were. This compiler instead resolves each argument's value — caller
// override if supplied, else the parameter's stored default expression
// — entirely at compile time, landing on the same CALL_F/RET opcode
// contract vm.go already implements faithfully from vm_interpreter.c).
func (c *compiler) compileFn(fnListID NodeID) error {
	n := c.arena.Node(fnListID)
	sigNode := c.arena.SafeFirst(n.FirstChild)
	if sigNode == noNode || c.arena.Node(sigNode).Type != NodeList {
		return &CompileError{Msg: "fn: expected a signature list"}
	}
	sig := c.arena.Node(sigNode)

	fnNameNode := c.arena.SafeFirst(sig.FirstChild)
	if fnNameNode == noNode || c.arena.Node(fnNameNode).Type != NodeName {
		return &CompileError{Msg: "fn: expected a function name"}
	}
	fnName := IName(c.arena.Node(fnNameNode).IVal)

	slotIdx := int32(-1)
	for i := range c.prog.FnInfo {
		if !c.prog.FnInfo[i].Active {
			slotIdx = int32(i)
			break
		}
	}
	if slotIdx == -1 {
		return &CompileError{Msg: "fn: function table full"}
	}

	var argNames []IName
	var defaultNodes []NodeID
	for item := c.arena.SafeNext(fnNameNode); item != noNode; {
		label := c.arena.Node(item)
		if label.Type != NodeLabel {
			return &CompileError{Msg: "fn: expected label: default pairs"}
		}
		argNames = append(argNames, IName(label.IVal))
		def := c.arena.SafeNext(item)
		defaultNodes = append(defaultNodes, def)
		item = c.arena.SafeNext(def)
	}
	numArgs := int32(len(argNames))

	fi := &c.prog.FnInfo[slotIdx]
	fi.Active = true
	fi.Index = slotIdx
	fi.FnName = fnName
	fi.NumArgs = numArgs
	for i, an := range argNames {
		fi.ArgName[i] = an
		// Arg i's (value, label) pair sits at [fp-2N+2i, fp-2N+2i+1];
		// offset is measured so fp-offset-1 lands on the value slot.
		fi.ArgOffset[i] = IName(int32(2*numArgs - 1 - 2*int32(i)))
		fi.DefaultNode[i] = defaultNodes[i]
	}

	// A function's body is only ever entered via CALL_F's direct jump to
	// BodyAddr, never by falling off the previous top-level form, so a
	// JUMP over it is needed here exactly like compileIf's branches —
	// without it, normal sequential flow would run straight into the
	// body the moment it reaches this point in the instruction stream.
	skipIdx := c.prog.emit(OpJump, intVar(0), Var{})

	bodyStart := int32(len(c.prog.Code))
	fi.ArgAddr = bodyStart
	fi.BodyAddr = bodyStart

	args := make(map[IName]int32, numArgs)
	for i, an := range argNames {
		args[an] = int32(fi.ArgOffset[i])
	}

	outerFn := c.fn
	c.fn = &funcScope{fnIndex: slotIdx, args: args, locals: make(map[IName]int32)}

	body := c.arena.SafeNext(sigNode)
	if err := c.compileSiblings(body); err != nil {
		return err
	}
	c.prog.emit(OpRet, Var{}, Var{})

	c.fn = outerFn

	afterBody := int32(len(c.prog.Code))
	c.prog.Code[skipIdx].Arg0 = intVar(afterBody - skipIdx)
	return nil
}

// compileCall compiles a call site: `(f x: 1 y: 2)` resolves, in
// parameter-declaration order, each argument's override (if supplied
// by name at this call site) or its stored default expression, then
// calls through CALL_F (the function is always known by name at
// compile time in this language, so CALL_F's fn_info-index form is
// used exclusively; the plain-address CALL/CALL_0 opcodes remain
// implemented in vm.go but are never emitted, and natives are called
// through NATIVE, which does its own argument framing).
func (c *compiler) compileCall(head NodeID) error {
	headNode := c.arena.Node(head)
	if headNode.Type != NodeName {
		return &CompileError{Msg: "call: expected a function or native name at head position"}
	}
	name := IName(headNode.IVal)

	if name >= NativeStart {
		return c.compileNativeCall(head, name)
	}

	fi, idx := c.findFnInfo(name)
	if fi == nil {
		return &CompileError{Msg: "call: unknown function " + c.words.ReverseLookup(name)}
	}

	overrides := map[IName]NodeID{}
	for item := c.arena.SafeNext(head); item != noNode; {
		label := c.arena.Node(item)
		if label.Type != NodeLabel {
			return &CompileError{Msg: "call: expected label: value pairs"}
		}
		val := c.arena.SafeNext(item)
		overrides[IName(label.IVal)] = val
		item = c.arena.SafeNext(val)
	}

	for i := int32(0); i < fi.NumArgs; i++ {
		an := fi.ArgName[i]
		valueNode, ok := overrides[an]
		if !ok || valueNode == noNode {
			valueNode = fi.DefaultNode[i]
		}
		if err := c.compileNode(valueNode); err != nil {
			return err
		}
		c.prog.emit(OpLoad, intVar(int32(MemConstant)), intVar(0))
	}

	c.prog.emit(OpLoad, intVar(int32(MemConstant)), intVar(idx))
	c.prog.emit(OpCallF, Var{}, Var{})
	return nil
}

func (c *compiler) findFnInfo(name IName) (*FnInfo, int32) {
	for i := range c.prog.FnInfo {
		fi := &c.prog.FnInfo[i]
		if fi.Active && fi.FnName == name {
			return fi, int32(i)
		}
	}
	return nil, -1
}

func (c *compiler) compileNativeCall(head NodeID, name IName) error {
	numArgs := int32(0)
	for item := c.arena.SafeNext(head); item != noNode; {
		label := c.arena.Node(item)
		var valueNode NodeID
		if label.Type == NodeLabel {
			valueNode = c.arena.SafeNext(item)
		} else {
			valueNode = item
			label = nil
		}
		if label != nil {
			c.prog.emit(OpLoad, intVar(int32(MemConstant)), nameVar(IName(label.IVal)))
		} else {
			c.prog.emit(OpLoad, intVar(int32(MemConstant)), intVar(0))
		}
		if err := c.compileNode(valueNode); err != nil {
			return err
		}
		numArgs++
		item = c.arena.SafeNext(valueNode)
	}
	c.prog.emit(OpNative, nameVar(name), intVar(numArgs))
	return nil
}

func (c *compiler) compileVector(id NodeID) error {
	n := c.arena.Node(id)
	if c.arena.Is2DVector(id) {
		first := c.arena.SafeFirst(n.FirstChild)
		second := c.arena.SafeNext(first)
		if err := c.compileNode(first); err != nil {
			return err
		}
		if err := c.compileNode(second); err != nil {
			return err
		}
		c.prog.emit(OpSquish2, Var{}, Var{})
		return nil
	}

	c.prog.emit(OpLoad, intVar(int32(MemVoid)), Var{})
	for item := c.arena.SafeFirst(n.FirstChild); item != noNode; item = c.arena.SafeNext(item) {
		if err := c.compileNode(item); err != nil {
			return err
		}
		c.prog.emit(OpAppend, Var{}, Var{})
	}
	return nil
}

// compilePreamble builds the program defining the global variables
// every user program assumes exist (colour names, canvas dimensions),
// grounded on execute_source's comment in native.c ("e.g. 'red',
// 'canvas/width' etc"). Each name is declared as a keyword, not interned
// as an ordinary user word: Parse resets the user-word partition at the
// start of every parse, so a name living there would be wiped out (and
// freely reassigned to whatever the next real program happens to name
// first) the moment any program gets parsed, breaking every later
// lookup of that preamble slot by name.
func compilePreamble(e *Engine) (*Program, error) {
	prog := NewProgram(e.Words, 64)
	bind := func(name string, v Var) error {
		iname, err := e.Words.DeclareKeyword(name)
		if err != nil {
			return err
		}
		slot := int32(len(prog.GlobalMappings))
		prog.GlobalMappings[iname] = slot
		prog.emit(OpLoad, intVar(int32(MemConstant)), v)
		prog.emit(OpStore, intVar(int32(MemGlobal)), intVar(slot))
		return nil
	}

	defaults := []struct {
		name string
		v    Var
	}{
		{"canvas/width", floatVar(1000)},
		{"canvas/height", floatVar(1000)},
		{"red", colourVar(ColourRGB, 1, 0, 0, 1)},
		{"green", colourVar(ColourRGB, 0, 1, 0, 1)},
		{"blue", colourVar(ColourRGB, 0, 0, 1, 1)},
		{"white", colourVar(ColourRGB, 1, 1, 1, 1)},
		{"black", colourVar(ColourRGB, 0, 0, 0, 1)},
	}
	for _, d := range defaults {
		if err := bind(d.name, d.v); err != nil {
			logCompileResult("preamble", nil, err)
			return nil, err
		}
	}
	prog.emit(OpStop, Var{}, Var{})
	logCompileResult("preamble", prog, nil)
	return prog, nil
}
