package senie

// NodeType tags an AST node's shape, mirroring the original's
// senie_node_type.
type NodeType int32

const (
	NodeList NodeType = iota
	NodeVector
	NodeInt
	NodeFloat
	NodeName
	NodeLabel
	NodeString
	NodeWhitespace
	NodeComment
)

func (t NodeType) String() string {
	switch t {
	case NodeList:
		return "LIST"
	case NodeVector:
		return "VECTOR"
	case NodeInt:
		return "INT"
	case NodeFloat:
		return "FLOAT"
	case NodeName:
		return "NAME"
	case NodeLabel:
		return "LABEL"
	case NodeString:
		return "STRING"
	case NodeWhitespace:
		return "WHITESPACE"
	case NodeComment:
		return "COMMENT"
	default:
		return "UNKNOWN"
	}
}

// NodeID is a handle into an Arena. Handles start at 0 (the first
// node allocated); use noNode (-1) for "absent".
type NodeID int32

const noNode NodeID = -1

// Node is an arena-allocated AST node. Lists/Vectors use FirstChild;
// every other node carries its value directly (IVal for interned
// names/labels/strings/ints, FVal for floats). Every node keeps its
// Span so the unparser can reproduce unaltered source text exactly,
// including a float's original decimal count.
type Node struct {
	Type NodeType

	IVal int32
	FVal float32

	FirstChild NodeID // List/Vector only

	Span Range

	Alterable       bool
	ParameterPrefix NodeID // Whitespace/Comment children before the alterable value
	ParameterAST    NodeID // config expressions after the value, inside { }

	Prev, Next NodeID // sibling chain (first_child list, parameter_ast list, parameter_prefix list)
}

// Arena owns every Node allocated while parsing one script. It grows
// as needed; nodes are never individually freed (the parser discards
// the whole arena together with its AST when done with a script, the
// idiomatic Go analogue of "return every node to the pool").
type Arena struct {
	nodes []Node
}

func NewArena() *Arena {
	return &Arena{nodes: make([]Node, 0, 256)}
}

func (a *Arena) New(typ NodeType) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, Node{
		Type:            typ,
		FirstChild:      noNode,
		ParameterPrefix: noNode,
		ParameterAST:    noNode,
		Prev:            noNode,
		Next:            noNode,
	})
	return id
}

func (a *Arena) Node(id NodeID) *Node {
	if id == noNode {
		return nil
	}
	return &a.nodes[id]
}

// Append links child onto the tail of the sibling chain headed by
// *head, mirroring the original's DL_APPEND.
func (a *Arena) Append(head *NodeID, child NodeID) {
	if *head == noNode {
		*head = child
		return
	}
	tail := *head
	for a.Node(tail).Next != noNode {
		tail = a.Node(tail).Next
	}
	a.Node(tail).Next = child
	a.Node(child).Prev = tail
}

// SafeFirst returns the first non-whitespace, non-comment node at or
// after id, or noNode.
func (a *Arena) SafeFirst(id NodeID) NodeID {
	for id != noNode {
		t := a.Node(id).Type
		if t != NodeWhitespace && t != NodeComment {
			return id
		}
		id = a.Node(id).Next
	}
	return noNode
}

// SafeNext returns the first non-whitespace, non-comment node strictly
// after id, or noNode.
func (a *Arena) SafeNext(id NodeID) NodeID {
	if id == noNode {
		return noNode
	}
	return a.SafeFirst(a.Node(id).Next)
}

// IsColourConstructorList reports whether node is a List whose head
// name is one of the four (col/xxx ...) constructors.
func (a *Arena) IsColourConstructorList(id NodeID, wt *WordTable) bool {
	n := a.Node(id)
	if n.Type != NodeList {
		return false
	}
	head := a.SafeFirst(n.FirstChild)
	if head == noNode || a.Node(head).Type != NodeName {
		return false
	}
	name := wt.ReverseLookup(IName(a.Node(head).IVal))
	_, ok := colourFormatForConstructor(name)
	return ok
}

// Is2DVector reports whether node is a two-element Vector (the shape
// the hacky 2D-vector parser accepts).
func (a *Arena) Is2DVector(id NodeID) bool {
	n := a.Node(id)
	if n.Type != NodeVector {
		return false
	}
	first := a.SafeFirst(n.FirstChild)
	if first == noNode {
		return false
	}
	second := a.SafeNext(first)
	if second == noNode {
		return false
	}
	return a.SafeNext(second) == noNode
}
