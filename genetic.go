package senie

// Trait is one alterable's extracted recipe: the literal value baked
// into the source at parse time, plus a compiled program (always the
// vary-trait variant — the same program both seeds a fresh genotype
// and regenerates a gene during mutation, matching trait->program's
// single-program reuse in genotype_build_from_program and
// gene_generate_new_var) that evaluates parameter_ast to produce new
// values.
type Trait struct {
	ID           int32
	InitialValue Var
	ParamAST     NodeID
	Node         NodeID // the alterable node itself
	Program      *Program
}

// TraitList is every trait extracted from one script, in pre-order
// left-to-right traversal order — the same order CompileProgramWithGenotype
// pulls genes in, making trait/gene correspondence positional.
type TraitList struct {
	Arena  *Arena
	Root   NodeID
	Traits []*Trait
}

// Gene is one evolved value; a Genotype is an ordered sequence of
// genes, one per trait.
type Gene struct {
	Value Var
}

// Genotype is a full candidate: one gene per trait, plus a read cursor
// CompileProgramWithGenotype advances as it walks the AST.
type Genotype struct {
	Genes  []Gene
	cursor int
}

func (g *Genotype) pullGene() (*Gene, bool) {
	if g.cursor >= len(g.Genes) {
		return nil, false
	}
	gene := &g.Genes[g.cursor]
	g.cursor++
	return gene, true
}

func (g *Genotype) resetCursor() { g.cursor = 0 }

// clone returns a deep-enough copy (Gene is a plain value type, so a
// slice copy suffices) with its cursor reset.
func (g *Genotype) clone() *Genotype {
	genes := make([]Gene, len(g.Genes))
	copy(genes, g.Genes)
	return &Genotype{Genes: genes}
}

// crossover builds a child genotype: the first index genes cloned from
// g, the remainder from b — genotype_crossover's single-point scheme.
func (g *Genotype) crossover(b *Genotype, index int) *Genotype {
	n := len(g.Genes)
	genes := make([]Gene, n)
	copy(genes[:index], g.Genes[:index])
	copy(genes[index:], b.Genes[index:])
	return &Genotype{Genes: genes}
}

// GenotypeList is one generation's population.
type GenotypeList struct {
	Genotypes []*Genotype
}

// ExtractTraits walks the AST in pre-order, left-to-right, descending
// into List/Vector children, collecting one trait per alterable node —
// or, when an alterable node is itself a Vector with more than two
// elements, one trait per child. A 2-element alterable vector is instead
// collapsed into a single Vec2 trait (hackNodeToVar's Is2DVector branch),
// matching spec.md's worked example of `{[100 200] (gen/2d ...)}`
// producing exactly one trait. Each trait's vary-program is compiled
// immediately, against the same parameter_ast every gene draw will
// later re-run.
func ExtractTraits(arena *Arena, root NodeID, words *WordTable, maxTraitProgramSize int) (*TraitList, error) {
	tl := &TraitList{Arena: arena, Root: root}

	addTrait := func(initialValue Var, paramAST, node NodeID) error {
		program, err := CompileProgramForVaryTrait(arena, paramAST, words, maxTraitProgramSize, initialValue)
		if err != nil {
			return err
		}
		tl.Traits = append(tl.Traits, &Trait{
			ID:           int32(len(tl.Traits)),
			InitialValue: initialValue,
			ParamAST:     paramAST,
			Node:         node,
			Program:      program,
		})
		return nil
	}

	var walk func(id NodeID) error
	walk = func(id NodeID) error {
		for cur := id; cur != noNode; cur = arena.Node(cur).Next {
			n := arena.Node(cur)

			if n.Alterable {
				if n.Type == NodeVector && !arena.Is2DVector(cur) {
					for child := arena.SafeFirst(n.FirstChild); child != noNode; child = arena.SafeNext(child) {
						v, err := hackNodeToVar(arena, child, words)
						if err != nil {
							return err
						}
						if err := addTrait(v, n.ParameterAST, child); err != nil {
							return err
						}
					}
				} else {
					v, err := hackNodeToVar(arena, cur, words)
					if err != nil {
						return err
					}
					if err := addTrait(v, n.ParameterAST, cur); err != nil {
						return err
					}
				}
			}

			if n.Type == NodeList || n.Type == NodeVector {
				if err := walk(n.FirstChild); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return tl, nil
}

// hackNodeToVar is the mini literal evaluator used only to extract an
// alterable's initial_value at parse/compile time — grounded on the
// original's super_hacky_colour_parser and super_hacky_2d_vector_parser.
// It stays exactly as narrow as the source: INT/FLOAT/NAME evaluate
// directly, a List only if it is a (col/rgb r: g: b: alpha:) call, a
// Vector only if it has exactly two elements. Per spec.md §9's explicit
// instruction not to silently broaden this behavior, any other
// constructor (col/hsl, col/lab, col/hsv) in alterable position is a
// compile error, not a newly-supported case.
func hackNodeToVar(arena *Arena, id NodeID, words *WordTable) (Var, error) {
	n := arena.Node(id)
	switch n.Type {
	case NodeInt:
		return intVar(n.IVal), nil
	case NodeFloat:
		return floatVar(n.FVal), nil
	case NodeName:
		return nameVar(IName(n.IVal)), nil
	case NodeList:
		return superHackyColourParser(arena, id, words)
	case NodeVector:
		if !arena.Is2DVector(id) {
			return Var{}, &CompileError{Msg: "alterable vector literal must have exactly two elements"}
		}
		return superHacky2DVectorParser(arena, id)
	default:
		return Var{}, &CompileError{Msg: "alterable literal must be int/float/name/(col/rgb ...)/2-vector, got " + n.Type.String()}
	}
}

func superHackyColourParser(arena *Arena, listID NodeID, words *WordTable) (Var, error) {
	n := arena.Node(listID)
	head := arena.SafeFirst(n.FirstChild)
	if head == noNode || arena.Node(head).Type != NodeName {
		return Var{}, &CompileError{Msg: "alterable list literal must be a colour constructor call"}
	}
	name := words.ReverseLookup(IName(arena.Node(head).IVal))
	if name != "col/rgb" {
		return Var{}, &CompileError{Msg: "alterable colour literal must use col/rgb, got " + name}
	}

	r, g, b, alpha := float32(0), float32(0), float32(0), float32(1)
	for item := arena.SafeNext(head); item != noNode; {
		label := arena.Node(item)
		if label.Type != NodeLabel {
			return Var{}, &CompileError{Msg: "col/rgb: expected label: value pairs"}
		}
		valueNode := arena.SafeNext(item)
		if valueNode == noNode {
			return Var{}, &CompileError{Msg: "col/rgb: label with no value"}
		}
		val := arena.Node(valueNode)
		var f float32
		switch val.Type {
		case NodeFloat:
			f = val.FVal
		case NodeInt:
			f = float32(val.IVal)
		default:
			return Var{}, &CompileError{Msg: "col/rgb: channel value must be a number"}
		}

		switch words.ReverseLookup(IName(label.IVal)) {
		case "r":
			r = f
		case "g":
			g = f
		case "b":
			b = f
		case "alpha":
			alpha = f
		}
		item = arena.SafeNext(valueNode)
	}

	return colourVar(ColourRGB, r, g, b, alpha), nil
}

func superHacky2DVectorParser(arena *Arena, vecID NodeID) (Var, error) {
	n := arena.Node(vecID)
	first := arena.SafeFirst(n.FirstChild)
	second := arena.SafeNext(first)

	toF := func(id NodeID) (float32, error) {
		node := arena.Node(id)
		switch node.Type {
		case NodeFloat:
			return node.FVal, nil
		case NodeInt:
			return float32(node.IVal), nil
		default:
			return 0, &CompileError{Msg: "2D vector literal elements must be numbers"}
		}
	}

	x, err := toF(first)
	if err != nil {
		return Var{}, err
	}
	y, err := toF(second)
	if err != nil {
		return Var{}, err
	}
	return vec2Var(x, y), nil
}

// BuildGenotypeFromInitialValues produces the "genotype 0" baseline:
// one gene per trait, carrying exactly the value authored in source.
func BuildGenotypeFromInitialValues(traits *TraitList) *Genotype {
	genes := make([]Gene, len(traits.Traits))
	for i, t := range traits.Traits {
		genes[i] = Gene{Value: t.InitialValue}
	}
	return &Genotype{Genes: genes}
}

// BuildGenotypeFromProgram builds one gene per trait by running each
// trait's already-compiled vary-program on vm, seeding vm's PRNG once
// up front — every trait program in this genotype shares the one
// seed, matching genotype_build_from_program.
func BuildGenotypeFromProgram(traits *TraitList, engine *Engine, vm *VM, seed uint64) (*Genotype, error) {
	vm.PRNG.setState(seed)

	genes := make([]Gene, len(traits.Traits))
	for i, t := range traits.Traits {
		value, err := runTraitProgram(t, engine, vm)
		if err != nil {
			return nil, err
		}
		genes[i] = Gene{Value: value}
	}
	return &Genotype{Genes: genes}, nil
}

// runTraitProgram runs trait's already-compiled program to completion
// on vm, resetting vm's registers/stack/heap first (but not its PRNG
// state, which genotype construction controls explicitly) and
// returning the value left on top of the stack.
func runTraitProgram(t *Trait, engine *Engine, vm *VM) (Var, error) {
	vm.Reset()

	if err := vm.Run(engine.Preamble(), t.Program); err != nil {
		return Var{}, err
	}
	if vm.SP == vm.globalSize {
		return Var{}, &CompileError{Msg: "trait program produced no value"}
	}
	return vm.Stack[vm.SP-1], nil
}

// geneGenerateNewVar regenerates a single gene's value by running its
// trait's vary-program on a scratch VM, threading the caller's PRNG
// state in and out so the caller's subsequent draws stay in sequence —
// mirroring gene_generate_new_var's "copy state in, run, copy state
// back out" contract.
func geneGenerateNewVar(t *Trait, engine *Engine, callerPRNG *prng) (Var, error) {
	scratch := engine.NewVM()
	scratch.PRNG.copyFrom(callerPRNG)

	value, err := runTraitProgram(t, engine, scratch)
	if err != nil {
		return Var{}, err
	}
	callerPRNG.copyFrom(scratch.PRNG)
	return value, nil
}

// PossiblyMutate draws once per gene; a draw under mutationRate
// regenerates that gene via its trait's vary-program.
func PossiblyMutate(genotype *Genotype, traits *TraitList, engine *Engine, prngState *prng, mutationRate float32) error {
	for i, t := range traits.Traits {
		if prngState.f32() < mutationRate {
			v, err := geneGenerateNewVar(t, engine, prngState)
			if err != nil {
				return err
			}
			genotype.Genes[i].Value = v
		}
	}
	return nil
}

// CreateInitialGeneration builds genotype 0 from the authored initial
// values, then populationSize-1 further genotypes each built from the
// trait programs with a distinct per-genotype seed drawn from a PRNG
// seeded with masterSeed — matching genotype_list_create_initial_generation.
func CreateInitialGeneration(traits *TraitList, populationSize int, engine *Engine, vm *VM, masterSeed uint64) (*GenotypeList, error) {
	gl := &GenotypeList{}
	gl.Genotypes = append(gl.Genotypes, BuildGenotypeFromInitialValues(traits))

	seedPRNG := newPRNG(masterSeed)
	for i := 1; i < populationSize; i++ {
		seed := seedPRNG.i32Range(1, 1<<16)
		g, err := BuildGenotypeFromProgram(traits, engine, vm, uint64(seed))
		if err != nil {
			return nil, err
		}
		gl.Genotypes = append(gl.Genotypes, g)
	}
	return gl, nil
}

// NextGeneration clones every parent verbatim, then fills the
// remaining population slots by drawing two distinct parent indices
// (up to 10 retries before tie-breaking to the next index), crossing
// them over at a random gene index, and possibly mutating the result —
// matching genotype_list_next_generation.
func NextGeneration(parents *GenotypeList, populationSize int, mutationRate float32, prngState *prng, traits *TraitList, engine *Engine) (*GenotypeList, error) {
	numParents := len(parents.Genotypes)
	if numParents == 0 {
		return nil, &CompileError{Msg: "next generation: no parents"}
	}

	gl := &GenotypeList{}
	for _, p := range parents.Genotypes {
		gl.Genotypes = append(gl.Genotypes, p.clone())
	}

	geneLen := len(parents.Genotypes[0].Genes)

	for len(gl.Genotypes) < populationSize {
		aIdx := prngState.i32Range(0, int32(numParents-1))
		bIdx := aIdx
		for retry := 0; retry < 10 && bIdx == aIdx; retry++ {
			bIdx = prngState.i32Range(0, int32(numParents-1))
		}
		if bIdx == aIdx {
			bIdx = (aIdx + 1) % int32(numParents)
		}

		crossoverIdx := 0
		if geneLen > 0 {
			crossoverIdx = int(prngState.i32Range(0, int32(geneLen-1)))
		}

		child := parents.Genotypes[aIdx].crossover(parents.Genotypes[bIdx], crossoverIdx)
		if err := PossiblyMutate(child, traits, engine, prngState, mutationRate); err != nil {
			return nil, err
		}
		gl.Genotypes = append(gl.Genotypes, child)
	}

	return gl, nil
}

func (tl *TraitList) Count() int { return len(tl.Traits) }
