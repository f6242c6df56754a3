package senie

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Tunable sizes, carried over from the original's config.h. They bound
// the VM's stack/heap, per-function argument count, and program size;
// unlike the original there is no compiled-in process-wide cap on pool
// slab count: the AST arena and genetic collections are ordinary Go
// slices, and the fixed-size render pool falls back to plain allocation
// once it is exhausted.
const (
	StackSize        = 1024
	HeapSize         = 1024
	HeapMinSize      = 10
	MemoryGlobalSize = 40
	MemoryLocalSize  = 40

	MaxTopLevelFunctions = 32
	MaxNumArguments      = 16

	MaxProgramSize      = 2048
	MaxTraitProgramSize = 256

	VertexPacketNumVertices = 10000
)

// Config holds engine-wide tunables, following the teacher's map-based
// Config (config.go) but specialised to senie's fixed set of named
// knobs rather than a generic string-keyed map, since every option here
// is consumed by name at a known call site.
type Config struct {
	StackSize               int
	HeapSize                int
	HeapMinSize             int
	VertexPacketNumVertices int
	Log                     *logrus.Logger
}

// NewConfig returns the default tunables, with logging driven off
// logrus's standard logger — shared by vm.go's instance-based fatal-fault
// logging and compiler.go's package-level debug/error calls, so one
// level controls both. SENIE_DEBUG_MODE (any non-empty value) mirrors
// the original's compile-time debug toggle by switching that shared
// logger to debug level instead of requiring a rebuild.
func NewConfig() *Config {
	log := logrus.StandardLogger()
	log.SetLevel(logrus.InfoLevel)
	if os.Getenv("SENIE_DEBUG_MODE") != "" {
		log.SetLevel(logrus.DebugLevel)
	}
	return &Config{
		StackSize:               StackSize,
		HeapSize:                HeapSize,
		HeapMinSize:             HeapMinSize,
		VertexPacketNumVertices: VertexPacketNumVertices,
		Log:                     log,
	}
}

// Engine is the single context object owning every subsystem that the
// original scattered across process-wide singletons: the word table,
// native-function bindings, and the preamble program. Passed explicitly
// to the parser, compiler, and VM constructors (spec.md §9's "Global
// state" design note), removing the original's startup/shutdown
// ordering hazard.
type Engine struct {
	Config *Config
	Words  *WordTable
	Env    *Env
	prng   *prng

	preamble *Program
}

// NewEngine declares the built-in keywords and natives, builds the
// preamble program, and returns a ready-to-use Engine.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	e := &Engine{Config: cfg, Words: NewWordTable()}

	if err := declareKeywords(e.Words); err != nil {
		return nil, wrapf(err, "declaring keywords")
	}
	env, err := newEnv(e.Words)
	if err != nil {
		return nil, wrapf(err, "declaring natives")
	}
	e.Env = env

	if err := e.Words.CheckPartitions(); err != nil {
		return nil, err
	}

	preamble, err := compilePreamble(e)
	if err != nil {
		return nil, wrapf(err, "compiling preamble")
	}
	e.preamble = preamble

	e.prng = newPRNG(0)

	return e, nil
}

// NewVM builds a fresh VM wired to this engine's config, word table, and
// native bindings.
func (e *Engine) NewVM() *VM {
	return NewVM(e.Config, e.Words, e.Env)
}

// Preamble returns the compiled program that defines every global
// variable a user program is allowed to assume exists (e.g. `red`,
// `canvas/width`).
func (e *Engine) Preamble() *Program {
	return e.preamble
}
