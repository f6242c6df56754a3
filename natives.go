package senie

import "math"

// nativeFunc is the native function ABI: given the VM (for render data,
// matrix stack, and PRNG access) and the already-popped argument list
// (label Vars discarded, only values, in call order), return one Var.
// The original passes num_args and lets the native walk the raw VM
// stack itself; vm.go's NATIVE case instead materializes the arguments
// into a slice before calling, which keeps native bodies free of stack
// bookkeeping while preserving the same "degrade Vector args to Int
// before discarding" invariant at the call site.
type nativeFunc func(vm *VM, args []Var) Var

// Env is the natives table, indexed by iname - NativeStart, together
// with the word table natives were declared against — the Go analogue
// of senie_env.
type Env struct {
	Natives [NativeCap]nativeFunc
	Words   *WordTable

	colourConstructorStart IName
	colourConstructorEnd   IName
}

func newEnv(words *WordTable) (*Env, error) {
	e := &Env{Words: words}
	if err := e.declareNatives(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Env) register(name string, fn nativeFunc) error {
	iname, err := e.Words.DeclareNative(name)
	if err != nil {
		return err
	}
	e.Natives[int(iname)-NativeStart] = fn
	return nil
}

// Lookup returns the native registered for iname, or nil if iname does
// not name a native.
func (e *Env) Lookup(iname IName) nativeFunc {
	idx := int(iname) - NativeStart
	if idx < 0 || idx >= NativeCap {
		return nil
	}
	return e.Natives[idx]
}

// ColourConstructorRange reports the [start, end] iname span natives
// were declared in for the four (col/xxx ...) constructors — the Go
// analogue of get_colour_constructor_start/end from bind.h.
func (e *Env) ColourConstructorRange() (IName, IName) {
	return e.colourConstructorStart, e.colourConstructorEnd
}

// declareNatives wires a representative cross-section of each native
// group found across shapes.h/colour.h/bind.h: colour constructors,
// colour conversion, shape constructors, transforms, math helpers, and
// the gen/* generator family trait programs call into. Tessellation/
// matrix-math bindings are out of scope (see SPEC_FULL.md §4.3) — only
// enough of each group is implemented to give the compiler's NATIVE
// opcode, the genetic engine's colour-constructor recognition, and the
// unparser's colour formatting real call sites.
func (e *Env) declareNatives() error {
	if err := e.declareColourConstructors(); err != nil {
		return err
	}
	if err := e.declareColourConversions(); err != nil {
		return err
	}
	if err := e.declareShapeConstructors(); err != nil {
		return err
	}
	if err := e.declareTransforms(); err != nil {
		return err
	}
	if err := e.declareMathHelpers(); err != nil {
		return err
	}
	return e.declareGenerators()
}

// globalVar reads a global by name out of whatever program is currently
// interpreting on vm. Trait programs bind gen/initial-value (and,
// for vary-programs, USE_VARY) through bindTraitGlobals before their
// body runs, so a generator native sees them here under the same name
// it was bound with.
func (e *Env) globalVar(vm *VM, name string) (Var, bool) {
	iname := e.Words.Lookup(name)
	if iname == -1 || vm.program == nil {
		return Var{}, false
	}
	slot, ok := vm.program.GlobalMappings[iname]
	if !ok {
		return Var{}, false
	}
	return vm.Stack[vm.Global+slot], true
}

// useVary reports whether the currently-running trait program bound
// USE_VARY=true — absent entirely (the non-vary trait compile never
// stores it) or false both mean "return the authored initial value".
func (e *Env) useVary(vm *VM) bool {
	v, ok := e.globalVar(vm, "USE_VARY")
	return ok && v.Bool()
}

func (e *Env) initialValue(vm *VM) (Var, bool) {
	return e.globalVar(vm, "gen/initial-value")
}

// declareGenerators wires the gen/* family every alterable's
// parameter_ast compiles calls against (e.g. the `(gen/2d min: 0
// max: 500)` beside a vector alterable's authored value): each one
// either passes the authored initial value straight through, when the
// enclosing trait program was compiled without USE_VARY, or draws a
// fresh randomized value from vm.PRNG within the given bounds, when
// compiled with it. This is the Go side of genotype_build_from_program
// walking a trait's vary-program to completion — the one piece of
// the C original's colour.c/bind.c generator bindings no single
// example repo or pack file grounds at the native level, since
// vm_compiler.c itself is absent from original_source; it is built
// here strictly to satisfy bindTraitGlobals' own binding contract
// (compiler.go) and the gen/initial-value / USE_VARY globals it sets.
func (e *Env) declareGenerators() error {
	if err := e.register("gen/scalar", func(vm *VM, args []Var) Var {
		lo, hi := float32(0), float32(1)
		if len(args) > 0 {
			lo = args[0].F
		}
		if len(args) > 1 {
			hi = args[1].F
		}
		if e.useVary(vm) {
			return floatVar(vm.PRNG.f32Range(lo, hi))
		}
		if initial, ok := e.initialValue(vm); ok {
			return initial
		}
		return floatVar(lo)
	}); err != nil {
		return err
	}

	if err := e.register("gen/int", func(vm *VM, args []Var) Var {
		lo, hi := int32(0), int32(1)
		if len(args) > 0 {
			lo = args[0].I
		}
		if len(args) > 1 {
			hi = args[1].I
		}
		if e.useVary(vm) {
			return intVar(vm.PRNG.i32Range(lo, hi))
		}
		if initial, ok := e.initialValue(vm); ok {
			return initial
		}
		return intVar(lo)
	}); err != nil {
		return err
	}

	if err := e.register("gen/2d", func(vm *VM, args []Var) Var {
		lo, hi := float32(0), float32(1)
		if len(args) > 0 {
			lo = args[0].F
		}
		if len(args) > 1 {
			hi = args[1].F
		}
		if e.useVary(vm) {
			return vec2Var(vm.PRNG.f32Range(lo, hi), vm.PRNG.f32Range(lo, hi))
		}
		if initial, ok := e.initialValue(vm); ok {
			return initial
		}
		return vec2Var(lo, lo)
	}); err != nil {
		return err
	}

	if err := e.register("gen/colour", func(vm *VM, args []Var) Var {
		format := ColourRGB
		if len(args) > 0 && args[0].Type == VarColour {
			format = ColourFormat(args[0].I)
		}
		if e.useVary(vm) {
			return colourVar(format, vm.PRNG.f32Range(0, 1), vm.PRNG.f32Range(0, 1), vm.PRNG.f32Range(0, 1), 1)
		}
		if initial, ok := e.initialValue(vm); ok {
			return initial
		}
		return colourVar(format, 0, 0, 0, 1)
	}); err != nil {
		return err
	}

	// gen/select picks one of its trailing arguments uniformly at
	// random when varying, mirroring the others' pass-through behaviour
	// when not.
	return e.register("gen/select", func(vm *VM, args []Var) Var {
		if len(args) == 0 {
			return Var{}
		}
		if e.useVary(vm) {
			idx := vm.PRNG.i32Range(0, int32(len(args)-1))
			return args[idx]
		}
		if initial, ok := e.initialValue(vm); ok {
			return initial
		}
		return args[0]
	})
}

func (e *Env) declareColourConstructors() error {
	firstRegistered := true
	var lo, hi IName

	for _, name := range colourConstructorNames {
		format, _ := colourFormatForConstructor(name)
		fn := colourConstructorNative(format)
		iname, err := e.Words.DeclareNative(name)
		if err != nil {
			return err
		}
		e.Natives[int(iname)-NativeStart] = fn
		if firstRegistered {
			lo = iname
			firstRegistered = false
		}
		hi = iname
	}
	e.colourConstructorStart = lo
	e.colourConstructorEnd = hi
	return nil
}

// colourConstructorNative builds a (col/xxx r: g: b: alpha:) native:
// three mandatory channel values plus a defaulted alpha, matching
// super_hacky_colour_parser's own reading of the same argument shape.
func colourConstructorNative(format ColourFormat) nativeFunc {
	return func(vm *VM, args []Var) Var {
		e0, e1, e2, alpha := float32(0), float32(0), float32(0), float32(1)
		switch len(args) {
		case 4:
			alpha = args[3].F
			fallthrough
		case 3:
			e0, e1, e2 = args[0].F, args[1].F, args[2].F
		}
		return colourVar(format, e0, e1, e2, alpha)
	}
}

func (e *Env) declareColourConversions() error {
	if err := e.register("col/convert", func(vm *VM, args []Var) Var {
		if len(args) < 2 || args[0].Type != VarColour {
			return colourVar(ColourRGB, 0, 0, 0, 1)
		}
		target := ColourFormat(args[1].I)
		return convertColour(args[0], target)
	}); err != nil {
		return err
	}
	return e.register("col/value", func(vm *VM, args []Var) Var {
		if len(args) < 1 || args[0].Type != VarColour {
			return floatVar(0)
		}
		c := args[0]
		return floatVar((c.Array[0] + c.Array[1] + c.Array[2]) / 3)
	})
}

// convertColour is a narrow stand-in for the original's full colour
// space math: converting to HSV yields (0, 0, max channel, alpha); any
// other target keeps the channel values unchanged and only relabels the
// format.
func convertColour(c Var, target ColourFormat) Var {
	if c.Type != VarColour {
		return c
	}
	if ColourFormat(c.I) == target {
		return c
	}
	switch target {
	case ColourHSV:
		maxc := maxFloat3(c.Array[0], c.Array[1], c.Array[2])
		return colourVar(ColourHSV, 0, 0, maxc, c.Array[3])
	default:
		return colourVar(target, c.Array[0], c.Array[1], c.Array[2], c.Array[3])
	}
}

func maxFloat3(a, b, c float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func (e *Env) declareShapeConstructors() error {
	if err := e.register("shape/rect", func(vm *VM, args []Var) Var {
		if len(args) < 5 {
			return intVar(0)
		}
		x, y, w, h := args[0].F, args[1].F, args[2].F, args[3].F
		col := args[4]
		addRectVertices(vm.RenderData, vm.MatrixStack.top(), x, y, w, h, colourArray(col))
		return intVar(0)
	}); err != nil {
		return err
	}
	return e.register("shape/line", func(vm *VM, args []Var) Var {
		if len(args) < 5 {
			return intVar(0)
		}
		fromX, fromY, toX, toY := args[0].F, args[1].F, args[2].F, args[3].F
		col := args[4]
		addLineVertices(vm.RenderData, vm.MatrixStack.top(), fromX, fromY, toX, toY, colourArray(col))
		return intVar(0)
	})
}

func colourArray(v Var) [4]float32 {
	if v.Type == VarColour {
		return v.Array
	}
	return [4]float32{1, 1, 1, 1}
}

func addRectVertices(rd *RenderData, m matrix, x, y, w, h float32, col [4]float32) {
	if rd == nil {
		return
	}
	corners := [4][2]float32{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
	for _, c := range corners {
		tx, ty := m.transformVec2(c[0], c[1])
		rd.AddVertex(tx, ty, col, 0, 0)
	}
}

func addLineVertices(rd *RenderData, m matrix, fromX, fromY, toX, toY float32, col [4]float32) {
	if rd == nil {
		return
	}
	tx, ty := m.transformVec2(fromX, fromY)
	rd.AddVertex(tx, ty, col, 0, 0)
	tx, ty = m.transformVec2(toX, toY)
	rd.AddVertex(tx, ty, col, 0, 0)
}

func (e *Env) declareTransforms() error {
	if err := e.register("mtx/translate", func(vm *VM, args []Var) Var {
		if len(args) < 2 {
			return intVar(0)
		}
		vm.MatrixStack.setTop(vm.MatrixStack.top().translate(args[0].F, args[1].F))
		return intVar(0)
	}); err != nil {
		return err
	}
	return e.register("mtx/scale", func(vm *VM, args []Var) Var {
		if len(args) < 2 {
			return intVar(0)
		}
		vm.MatrixStack.setTop(vm.MatrixStack.top().scale(args[0].F, args[1].F))
		return intVar(0)
	})
}

func (e *Env) declareMathHelpers() error {
	if err := e.register("math/PI", func(vm *VM, args []Var) Var {
		return floatVar(float32(math.Pi))
	}); err != nil {
		return err
	}
	if err := e.register("math/sin", func(vm *VM, args []Var) Var {
		if len(args) < 1 {
			return floatVar(0)
		}
		return floatVar(float32(math.Sin(float64(args[0].F))))
	}); err != nil {
		return err
	}
	if err := e.register("math/cos", func(vm *VM, args []Var) Var {
		if len(args) < 1 {
			return floatVar(0)
		}
		return floatVar(float32(math.Cos(float64(args[0].F))))
	}); err != nil {
		return err
	}
	return e.register("math/clamp", func(vm *VM, args []Var) Var {
		if len(args) < 3 {
			return floatVar(0)
		}
		v, lo, hi := args[0].F, args[1].F, args[2].F
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		return floatVar(v)
	})
}

// declareKeywords registers the built-in argument/keyword names the
// compiler and genetic engine refer to by fixed name: the quote-sugar
// target, trait-program markers, and default colour-constructor labels.
func declareKeywords(words *WordTable) error {
	names := []string{
		"quote",
		"fn",
		"define",
		"if",
		"loop",
		"gen/initial-value",
		"USE_VARY",
		"r", "g", "b", "alpha",
		"h", "s", "l", "v",
	}
	for _, n := range names {
		if _, err := words.DeclareKeyword(n); err != nil {
			return err
		}
	}
	return nil
}
