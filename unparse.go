package senie

import (
	"bytes"
	"fmt"
	"strings"
)

// Unparse regenerates source text from ast, substituting each
// alterable node's literal value with the value of the next gene
// pulled from genotype — the Go analogue of the original's unparse/
// unparse_ast_node/format_var_value. src is the original source bytes
// the AST's Span offsets were computed against, needed to reproduce a
// float literal's original decimal-place count exactly.
func Unparse(arena *Arena, root NodeID, words *WordTable, genotype *Genotype, src []byte) (string, error) {
	var b strings.Builder
	genotype.resetCursor()

	for n := root; n != noNode; {
		next, err := unparseNode(&b, arena, n, words, genotype, src)
		if err != nil {
			return "", err
		}
		n = next
	}

	if _, ok := genotype.pullGene(); ok {
		return "", &CompileError{Msg: "unparse: genes remaining after unparse"}
	}
	return b.String(), nil
}

// unparseNode writes one AST node (and, for List/Vector, its entire
// subtree) and returns the next sibling to continue from, mirroring
// unparse_ast_node's "return ast->next" contract.
func unparseNode(b *strings.Builder, arena *Arena, id NodeID, words *WordTable, genotype *Genotype, src []byte) (NodeID, error) {
	n := arena.Node(id)

	if n.Alterable {
		b.WriteByte('{')
		if n.ParameterPrefix != noNode {
			if _, err := unparseNode(b, arena, n.ParameterPrefix, words, genotype, src); err != nil {
				return noNode, err
			}
		}

		if n.Type == NodeVector && !arena.Is2DVector(id) {
			if err := unparseAlterableVector(b, arena, id, words, genotype, src); err != nil {
				return noNode, err
			}
		} else {
			if err := formatVarValue(b, arena, id, words, genotype, src); err != nil {
				return noNode, err
			}
		}

		for p := n.ParameterAST; p != noNode; {
			next, err := unparseNode(b, arena, p, words, genotype, src)
			if err != nil {
				return noNode, err
			}
			p = next
		}

		b.WriteByte('}')
		return n.Next, nil
	}

	switch n.Type {
	case NodeList:
		head := arena.SafeFirst(n.FirstChild)
		if head != noNode && arena.Node(head).Type == NodeName && words.ReverseLookup(IName(arena.Node(head).IVal)) == "quote" {
			b.WriteByte('\'')
			item := arena.SafeNext(arena.Node(head).Next)
			for item != noNode {
				next, err := unparseNode(b, arena, item, words, genotype, src)
				if err != nil {
					return noNode, err
				}
				item = next
			}
		} else {
			b.WriteByte('(')
			for c := n.FirstChild; c != noNode; {
				next, err := unparseNode(b, arena, c, words, genotype, src)
				if err != nil {
					return noNode, err
				}
				c = next
			}
			b.WriteByte(')')
		}
	case NodeVector:
		b.WriteByte('[')
		for c := n.FirstChild; c != noNode; {
			next, err := unparseNode(b, arena, c, words, genotype, src)
			if err != nil {
				return noNode, err
			}
			c = next
		}
		b.WriteByte(']')
	default:
		formatNodeValue(b, arena, id, words, src)
	}

	return n.Next, nil
}

// unparseAlterableVector writes a non-2-element alterable vector's
// children, substituting a gene value for every non-whitespace/comment
// child — one gene per element, matching unparse_alterable_vector. A
// 2-element alterable vector never reaches here: unparseNode routes it
// through formatVarValue/formatVar2D instead, mirroring ExtractTraits'
// single-Vec2-trait treatment of the same shape.
func unparseAlterableVector(b *strings.Builder, arena *Arena, id NodeID, words *WordTable, genotype *Genotype, src []byte) error {
	b.WriteByte('[')
	n := arena.Node(id)
	for c := n.FirstChild; c != noNode; c = arena.Node(c).Next {
		child := arena.Node(c)
		if child.Type == NodeWhitespace || child.Type == NodeComment {
			formatNodeValue(b, arena, c, words, src)
			continue
		}
		if err := formatVarValue(b, arena, c, words, genotype, src); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

// formatVarValue pulls the next gene and writes its value in source
// form, using the node only to recover a float literal's original
// decimal count (VAR_FLOAT) or a VAR_2D vector's original child
// spacing — matching format_var_value's node/gene pairing.
func formatVarValue(b *strings.Builder, arena *Arena, id NodeID, words *WordTable, genotype *Genotype, src []byte) error {
	gene, ok := genotype.pullGene()
	if !ok {
		return &CompileError{Msg: "unparse: genotype cursor exhausted"}
	}
	v := gene.Value
	n := arena.Node(id)

	switch v.Type {
	case VarInt:
		fmt.Fprintf(b, "%d", v.I)
	case VarFloat:
		writeFloatUsingNode(b, n, v.F, src)
	case VarName:
		b.WriteString(words.ReverseLookup(IName(v.I)))
	case VarColour:
		formatColourVar(b, v)
	case Var2D:
		return formatVar2D(b, arena, id, v, words, src)
	default:
		return &CompileError{Msg: "unparse: cannot format gene value of type " + v.Type.String()}
	}
	return nil
}

// formatVar2D re-threads the two evolved floats through the original
// NODE_VECTOR's own children, preserving whatever whitespace/comments
// separated them in source (e.g. "[1.0,  2.0]" keeps its double space).
func formatVar2D(b *strings.Builder, arena *Arena, id NodeID, v Var, words *WordTable, src []byte) error {
	b.WriteByte('[')

	n := arena.Node(id).FirstChild
	for n != noNode && arena.Node(n).Type != NodeFloat {
		formatNodeValue(b, arena, n, words, src)
		n = arena.Node(n).Next
	}
	if n == noNode {
		return &CompileError{Msg: "unparse: VAR_2D literal missing first float placeholder"}
	}
	writeFloatUsingNode(b, arena.Node(n), v.Array[0], src)
	n = arena.Node(n).Next

	for n != noNode && arena.Node(n).Type != NodeFloat {
		formatNodeValue(b, arena, n, words, src)
		n = arena.Node(n).Next
	}
	if n == noNode {
		return &CompileError{Msg: "unparse: VAR_2D literal missing second float placeholder"}
	}
	writeFloatUsingNode(b, arena.Node(n), v.Array[1], src)
	n = arena.Node(n).Next

	for n != noNode {
		formatNodeValue(b, arena, n, words, src)
		n = arena.Node(n).Next
	}

	b.WriteByte(']')
	return nil
}

func formatNodeValue(b *strings.Builder, arena *Arena, id NodeID, words *WordTable, src []byte) {
	n := arena.Node(id)
	switch n.Type {
	case NodeInt:
		fmt.Fprintf(b, "%d", n.IVal)
	case NodeFloat:
		writeFloatUsingNode(b, n, n.FVal, src)
	case NodeName:
		b.WriteString(words.ReverseLookup(IName(n.IVal)))
	case NodeLabel:
		b.WriteString(words.ReverseLookup(IName(n.IVal)))
		b.WriteByte(':')
	case NodeString:
		b.WriteByte('"')
		b.WriteString(words.ReverseLookup(IName(n.IVal)))
		b.WriteByte('"')
	case NodeWhitespace, NodeComment:
		b.Write(src[n.Span.Start:n.Span.End])
	}
}

func writeFloatUsingNode(b *strings.Builder, n *Node, f float32, src []byte) {
	fmt.Fprintf(b, "%.*f", countDecimals(n, src), f)
}

// countDecimals recovers the number of digits after the decimal point
// in a NODE_FLOAT's original source text, so re-unparsing an untouched
// float reproduces it byte-for-byte. Any other node type (an evolved
// gene landing on a formerly-NODE_INT alterable, say) contributes 0,
// matching count_decimals' fallback.
func countDecimals(n *Node, src []byte) int {
	if n.Type != NodeFloat {
		return 0
	}
	text := src[n.Span.Start:n.Span.End]
	idx := bytes.IndexByte(text, '.')
	if idx < 0 {
		return 0
	}
	return len(text) - (idx + 1)
}

func formatColourVar(b *strings.Builder, v Var) {
	switch ColourFormat(v.I) {
	case ColourRGB:
		fmt.Fprintf(b, "(col/rgb r: %.2f g: %.2f b: %.2f alpha: %.2f)", v.Array[0], v.Array[1], v.Array[2], v.Array[3])
	case ColourHSL:
		fmt.Fprintf(b, "(col/hsl h: %.2f s: %.2f l: %.2f alpha: %.2f)", v.Array[0], v.Array[1], v.Array[2], v.Array[3])
	case ColourLAB:
		fmt.Fprintf(b, "(col/lab l: %.2f a: %.2f b: %.2f alpha: %.2f)", v.Array[0], v.Array[1], v.Array[2], v.Array[3])
	case ColourHSV:
		fmt.Fprintf(b, "(col/hsv h: %.2f s: %.2f v: %.2f alpha: %.2f)", v.Array[0], v.Array[1], v.Array[2], v.Array[3])
	}
}
