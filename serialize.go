package senie

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// TokenReader reads whitespace-delimited tokens off an io.Reader — the
// idiomatic Go stand-in for the original's byte-cursor-based
// cursor_eat_i32/cursor_eat_space parser, in the bufio.Scanner style
// the goNEAT genome reader uses for its own line/token-oriented format.
type TokenReader struct {
	sc *bufio.Scanner
}

func NewTokenReader(r io.Reader) *TokenReader {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &TokenReader{sc: sc}
}

func (t *TokenReader) next() (string, error) {
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			return "", errors.Wrap(err, "serialize: read token")
		}
		return "", errors.New("serialize: unexpected end of input")
	}
	return t.sc.Text(), nil
}

func (t *TokenReader) nextInt32() (int32, error) {
	s, err := t.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "serialize: parse int32 %q", s)
	}
	return int32(n), nil
}

func (t *TokenReader) nextUint64() (uint64, error) {
	s, err := t.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "serialize: parse uint64 %q", s)
	}
	return n, nil
}

func (t *TokenReader) nextFloat32() (float32, error) {
	s, err := t.next()
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "serialize: parse float32 %q", s)
	}
	return float32(f), nil
}

// SerializeVar writes v as "TAG payload…", per the fixed tag table
// (INT/FLOAT/BOOLEAN/LONG/NAME/2D/COLOUR); VarVector is rejected, since
// a heap-chained vector cannot round-trip without the heap it lives in.
func SerializeVar(w io.Writer, v Var) error {
	var err error
	switch v.Type {
	case VarInt:
		_, err = fmt.Fprintf(w, "INT %d ", v.I)
	case VarFloat:
		_, err = fmt.Fprintf(w, "FLOAT %.4f ", v.F)
	case VarBool:
		_, err = fmt.Fprintf(w, "BOOLEAN %d ", b2i(v.Bool()))
	case VarLong:
		_, err = fmt.Fprintf(w, "LONG %d ", v.L)
	case VarName:
		_, err = fmt.Fprintf(w, "NAME %d ", v.I)
	case Var2D:
		_, err = fmt.Fprintf(w, "2D %.4f %.4f ", v.Array[0], v.Array[1])
	case VarColour:
		_, err = fmt.Fprintf(w, "COLOUR %d %.4f %.4f %.4f %.4f ", v.I, v.Array[0], v.Array[1], v.Array[2], v.Array[3])
	default:
		return &SerializeError{Msg: "cannot serialize a " + v.Type.String() + " var"}
	}
	return errors.Wrap(err, "serialize var")
}

// DeserializeVar reads one tagged Var from t.
func DeserializeVar(t *TokenReader) (Var, error) {
	tag, err := t.next()
	if err != nil {
		return Var{}, err
	}

	switch tag {
	case "INT":
		i, err := t.nextInt32()
		if err != nil {
			return Var{}, err
		}
		return intVar(i), nil
	case "FLOAT":
		f, err := t.nextFloat32()
		if err != nil {
			return Var{}, err
		}
		return floatVar(f), nil
	case "BOOLEAN":
		i, err := t.nextInt32()
		if err != nil {
			return Var{}, err
		}
		return boolVar(i != 0), nil
	case "LONG":
		l, err := t.nextUint64()
		if err != nil {
			return Var{}, err
		}
		return longVar(l), nil
	case "NAME":
		i, err := t.nextInt32()
		if err != nil {
			return Var{}, err
		}
		return nameVar(IName(i)), nil
	case "2D":
		x, err := t.nextFloat32()
		if err != nil {
			return Var{}, err
		}
		y, err := t.nextFloat32()
		if err != nil {
			return Var{}, err
		}
		return vec2Var(x, y), nil
	case "COLOUR":
		format, err := t.nextInt32()
		if err != nil {
			return Var{}, err
		}
		e0, err := t.nextFloat32()
		if err != nil {
			return Var{}, err
		}
		e1, err := t.nextFloat32()
		if err != nil {
			return Var{}, err
		}
		e2, err := t.nextFloat32()
		if err != nil {
			return Var{}, err
		}
		alpha, err := t.nextFloat32()
		if err != nil {
			return Var{}, err
		}
		return colourVar(ColourFormat(format), e0, e1, e2, alpha), nil
	case "VECTOR":
		return Var{}, &SerializeError{Msg: "VECTOR is not serializable"}
	default:
		return Var{}, &SerializeError{Msg: "unknown var tag " + tag}
	}
}

func opcodeByName(name string) (Opcode, bool) {
	for i, n := range opcodeNames {
		if n == name {
			return Opcode(i), true
		}
	}
	return 0, false
}

// SerializeBytecode writes "<OP_NAME> <arg0> <arg1>".
func SerializeBytecode(w io.Writer, bc Bytecode) error {
	if _, err := fmt.Fprintf(w, "%s ", bc.Op); err != nil {
		return errors.Wrap(err, "serialize bytecode op")
	}
	if err := SerializeVar(w, bc.Arg0); err != nil {
		return err
	}
	return SerializeVar(w, bc.Arg1)
}

func DeserializeBytecode(t *TokenReader) (Bytecode, error) {
	opName, err := t.next()
	if err != nil {
		return Bytecode{}, err
	}
	op, ok := opcodeByName(opName)
	if !ok {
		return Bytecode{}, &SerializeError{Msg: "unknown opcode " + opName}
	}
	arg0, err := DeserializeVar(t)
	if err != nil {
		return Bytecode{}, err
	}
	arg1, err := DeserializeVar(t)
	if err != nil {
		return Bytecode{}, err
	}
	return Bytecode{Op: op, Arg0: arg0, Arg1: arg1}, nil
}

// SerializeProgram writes "<code_max> <code_size> <bc>…" — matching
// program_serialize exactly; FnInfo/global/local mappings are
// compile-time-only and never serialized, since every serialized
// program in practice is a trait program (no nested `fn` definitions,
// hence no FnInfo entries the VM would need at CALL_F time).
func SerializeProgram(w io.Writer, p *Program) error {
	if _, err := fmt.Fprintf(w, "%d %d ", cap(p.Code), len(p.Code)); err != nil {
		return errors.Wrap(err, "serialize program header")
	}
	for i, bc := range p.Code {
		if err := SerializeBytecode(w, bc); err != nil {
			return errors.Wrapf(err, "serialize program: instruction %d", i)
		}
	}
	return nil
}

func DeserializeProgram(t *TokenReader, words *WordTable) (*Program, error) {
	maxSize, err := t.nextInt32()
	if err != nil {
		return nil, err
	}
	size, err := t.nextInt32()
	if err != nil {
		return nil, err
	}

	p := NewProgram(words, int(maxSize))
	for i := int32(0); i < size; i++ {
		bc, err := DeserializeBytecode(t)
		if err != nil {
			return nil, errors.Wrapf(err, "deserialize program: instruction %d", i)
		}
		p.Code = append(p.Code, bc)
	}
	return p, nil
}

// SerializeTrait writes "<id> <initial_value> <program>".
func SerializeTrait(w io.Writer, tr *Trait) error {
	if _, err := fmt.Fprintf(w, "%d ", tr.ID); err != nil {
		return errors.Wrap(err, "serialize trait id")
	}
	if err := SerializeVar(w, tr.InitialValue); err != nil {
		return err
	}
	return SerializeProgram(w, tr.Program)
}

func DeserializeTrait(t *TokenReader, words *WordTable) (*Trait, error) {
	id, err := t.nextInt32()
	if err != nil {
		return nil, err
	}
	initial, err := DeserializeVar(t)
	if err != nil {
		return nil, err
	}
	program, err := DeserializeProgram(t, words)
	if err != nil {
		return nil, err
	}
	return &Trait{ID: id, InitialValue: initial, Node: noNode, ParamAST: noNode, Program: program}, nil
}

// SerializeTraitList writes "<seed> <count> <traits…>".
func SerializeTraitList(w io.Writer, seed int32, tl *TraitList) error {
	if _, err := fmt.Fprintf(w, "%d %d ", seed, len(tl.Traits)); err != nil {
		return errors.Wrap(err, "serialize trait list header")
	}
	for i, tr := range tl.Traits {
		if err := SerializeTrait(w, tr); err != nil {
			return errors.Wrapf(err, "serialize trait list: trait %d", i)
		}
	}
	return nil
}

func DeserializeTraitList(t *TokenReader, words *WordTable) (seed int32, tl *TraitList, err error) {
	seed, err = t.nextInt32()
	if err != nil {
		return 0, nil, err
	}
	count, err := t.nextInt32()
	if err != nil {
		return 0, nil, err
	}
	tl = &TraitList{}
	for i := int32(0); i < count; i++ {
		tr, err := DeserializeTrait(t, words)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "deserialize trait list: trait %d", i)
		}
		tl.Traits = append(tl.Traits, tr)
	}
	return seed, tl, nil
}

// SerializeGenotype writes "<count> <gene_vars…>".
func SerializeGenotype(w io.Writer, g *Genotype) error {
	if _, err := fmt.Fprintf(w, "%d ", len(g.Genes)); err != nil {
		return errors.Wrap(err, "serialize genotype header")
	}
	for i, gene := range g.Genes {
		if err := SerializeVar(w, gene.Value); err != nil {
			return errors.Wrapf(err, "serialize genotype: gene %d", i)
		}
	}
	return nil
}

func DeserializeGenotype(t *TokenReader) (*Genotype, error) {
	count, err := t.nextInt32()
	if err != nil {
		return nil, err
	}
	genes := make([]Gene, 0, count)
	for i := int32(0); i < count; i++ {
		v, err := DeserializeVar(t)
		if err != nil {
			return nil, errors.Wrapf(err, "deserialize genotype: gene %d", i)
		}
		genes = append(genes, Gene{Value: v})
	}
	return &Genotype{Genes: genes}, nil
}

// SerializeGenotypeList writes "<count> <genotypes…>".
func SerializeGenotypeList(w io.Writer, gl *GenotypeList) error {
	if _, err := fmt.Fprintf(w, "%d ", len(gl.Genotypes)); err != nil {
		return errors.Wrap(err, "serialize genotype list header")
	}
	for i, g := range gl.Genotypes {
		if err := SerializeGenotype(w, g); err != nil {
			return errors.Wrapf(err, "serialize genotype list: genotype %d", i)
		}
	}
	return nil
}

func DeserializeGenotypeList(t *TokenReader) (*GenotypeList, error) {
	count, err := t.nextInt32()
	if err != nil {
		return nil, err
	}
	gl := &GenotypeList{}
	for i := int32(0); i < count; i++ {
		g, err := DeserializeGenotype(t)
		if err != nil {
			return nil, errors.Wrapf(err, "deserialize genotype list: genotype %d", i)
		}
		gl.Genotypes = append(gl.Genotypes, g)
	}
	return gl, nil
}
