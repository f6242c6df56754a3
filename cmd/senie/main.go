// Command senie parses, compiles, and runs a generative-art source file,
// per spec.md §6's four CLI forms: no args (usage), `<file>` (run and
// summarize), `<file> -d` (disassemble), `<file> -s <seed>` (run one
// genotype drawn from a seed).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/senie-lang/senie"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: senie <file>            parse, compile, and run")
	fmt.Fprintln(os.Stderr, "       senie <file> -d          disassemble compiled bytecode")
	fmt.Fprintln(os.Stderr, "       senie <file> -s <seed>   run one genotype drawn from seed")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(0)
	}

	path := os.Args[1]
	fs := flag.NewFlagSet("senie", flag.ExitOnError)
	disassemble := fs.Bool("d", false, "pretty-print compiled bytecode instead of running")
	seed := fs.Int64("s", -1, "run one genotype drawn from this seed instead of the literal program")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		fatal("reading %s: %s", path, err)
	}

	engine, err := senie.NewEngine(nil)
	if err != nil {
		fatal("starting engine: %s", err)
	}

	arena, root, err := senie.Parse(engine.Words, string(src))
	if err != nil {
		fatal("parsing %s: %s", path, err)
	}

	if *seed >= 0 {
		runWithSeed(engine, arena, root, uint64(*seed))
		return
	}

	program, err := senie.CompileProgram(arena, root, engine.Words, senie.MaxProgramSize, engine.Preamble())
	if err != nil {
		fatal("compiling %s: %s", path, err)
	}

	if *disassemble {
		fmt.Print(program.PrettyPrint())
		return
	}

	run(engine, program)
}

// run interprets program to completion and reports the same summary the
// original's CLI front-end prints after a render pass: vertex totals and
// wall-clock phase timings, color-highlighted the way the teacher's
// `ascii` theme highlights its own bytecode disassembly.
func run(engine *senie.Engine, program *senie.Program) {
	vm := engine.NewVM()

	compileDone := time.Now()
	if err := vm.Run(engine.Preamble(), program); err != nil {
		fatal("running program: %s", err)
	}
	runDone := time.Now()

	printSummary(vm, compileDone, runDone)
}

// runWithSeed implements the `<file> -s <seed>` form: extract traits,
// build a single genotype deterministically from seed, compile the
// program against that genotype, run it, and report the trait count
// alongside the usual vertex/timing summary.
func runWithSeed(engine *senie.Engine, arena *senie.Arena, root senie.NodeID, seed uint64) {
	extractStart := time.Now()
	traits, err := senie.ExtractTraits(arena, root, engine.Words, senie.MaxTraitProgramSize)
	if err != nil {
		fatal("extracting traits: %s", err)
	}
	extractDone := time.Now()

	vm := engine.NewVM()
	genotype, err := senie.BuildGenotypeFromProgram(traits, engine, vm, seed)
	if err != nil {
		fatal("building genotype: %s", err)
	}
	genotypeDone := time.Now()

	program, err := senie.CompileProgramWithGenotype(arena, root, engine.Words, senie.MaxProgramSize, genotype, engine.Preamble())
	if err != nil {
		fatal("compiling with genotype: %s", err)
	}
	compileDone := time.Now()

	runVM := engine.NewVM()
	if err := runVM.Run(engine.Preamble(), program); err != nil {
		fatal("running program: %s", err)
	}
	runDone := time.Now()

	fmt.Println(color.CyanString("traits: %d", traits.Count()))
	fmt.Printf("extract  %s\n", extractDone.Sub(extractStart))
	fmt.Printf("genotype %s\n", genotypeDone.Sub(extractDone))
	printSummary(runVM, compileDone, runDone)
}

func printSummary(vm *senie.VM, compileDone, runDone time.Time) {
	total := vm.RenderData.TotalVertices()
	packets := vm.RenderData.NumPackets()
	fmt.Println(color.GreenString("vertices: %d across %d packet(s)", total, packets))
	fmt.Printf("run      %s\n", runDone.Sub(compileDone))
	fmt.Printf("opcodes  %d\n", vm.OpcodesExecuted)
}

func fatal(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.RedString(format, args...))
	os.Exit(1)
}
