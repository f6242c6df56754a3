package senie

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser is a hand-written recursive-descent reader over a byte cursor,
// grounded on the original's parser.c (single-pass, leading-character
// dispatch — no backtracking is needed because the grammar is
// determined entirely by the current character).
type Parser struct {
	words *WordTable
	arena *Arena
	src   []byte
	pos   int
}

// Parse parses src into an AST (a sibling chain of top-level nodes) and
// resets the word table's user partition first, exactly as
// parser_parse does for every new script.
func Parse(words *WordTable, src string) (*Arena, NodeID, error) {
	words.ResetUserWords()
	p := &Parser{words: words, arena: NewArena(), src: []byte(src)}

	var head NodeID = noNode
	for !p.eof() {
		n, err := p.eatItem()
		if err != nil {
			return nil, noNode, err
		}
		p.arena.Append(&head, n)
	}
	return p.arena, head, nil
}

func (p *Parser) eof() bool { return p.pos >= len(p.src) }

func (p *Parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *Parser) peekAt(off int) byte {
	if p.pos+off >= len(p.src) {
		return 0
	}
	return p.src[p.pos+off]
}

func isWhitespaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ','
}

func isDigitByte(c byte) bool { return c >= '0' && c <= '9' }

func isAlphaByte(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isSymbolByte(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '=', '!', '@', '#', '$', '%', '^', '&', '<', '>', '?':
		return true
	}
	return false
}

func isNameByte(c byte) bool { return isAlphaByte(c) || isDigitByte(c) || isSymbolByte(c) }

func (p *Parser) eatItem() (NodeID, error) {
	c := p.peek()

	switch {
	case isWhitespaceByte(c):
		return p.eatWhitespace(), nil
	case c == '\'':
		return p.eatQuotedForm()
	case c == '(':
		return p.eatList()
	case c == ')':
		return noNode, p.errf("mismatched closing paren")
	case c == '[':
		return p.eatVector()
	case c == ']':
		return noNode, p.errf("mismatched closing bracket")
	case c == '{':
		return p.eatAlterable()
	case c == '}':
		return noNode, p.errf("mismatched closing brace")
	case c == '"':
		return p.eatString()
	case c == ';':
		return p.eatComment(), nil
	}

	if isAlphaByte(c) || c == '-' || isSymbolByte(c) {
		if !(c == '-' && isDigitByte(p.peekAt(1))) {
			wordLen := 0
			for isNameByte(p.peekAt(wordLen)) {
				wordLen++
			}
			if p.peekAt(wordLen) == ':' {
				return p.eatLabel()
			}
			return p.eatName()
		}
	}

	if isDigitByte(c) || c == '-' || c == '.' {
		return p.eatFloat(), nil
	}

	return noNode, p.errf("unrecognized character %q", c)
}

func (p *Parser) errf(format string, args ...any) error {
	li := NewLineIndex(p.src)
	loc := li.LocationAt(p.pos)
	return &ParseError{Pos: loc, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) eatWhitespace() NodeID {
	start := p.pos
	for !p.eof() && isWhitespaceByte(p.peek()) {
		p.pos++
	}
	id := p.arena.New(NodeWhitespace)
	p.arena.Node(id).Span = Range{Start: start, End: p.pos}
	return id
}

func (p *Parser) eatComment() NodeID {
	start := p.pos
	for !p.eof() && p.peek() != '\n' {
		p.pos++
	}
	id := p.arena.New(NodeComment)
	p.arena.Node(id).Span = Range{Start: start, End: p.pos}
	if !p.eof() && p.peek() == '\n' {
		p.pos++
	}
	return id
}

func (p *Parser) eatFloat() NodeID {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for isDigitByte(p.peek()) {
		p.pos++
	}
	if p.peek() == '.' {
		p.pos++
		for isDigitByte(p.peek()) {
			p.pos++
		}
	}
	text := string(p.src[start:p.pos])
	f, _ := strconv.ParseFloat(text, 32)

	id := p.arena.New(NodeFloat)
	n := p.arena.Node(id)
	n.FVal = float32(f)
	n.Span = Range{Start: start, End: p.pos}
	return id
}

func (p *Parser) readWordLen() int {
	n := 0
	for isNameByte(p.peekAt(n)) {
		n++
	}
	return n
}

func (p *Parser) eatName() (NodeID, error) {
	start := p.pos
	n := p.readWordLen()
	text := string(p.src[start : start+n])
	p.pos += n

	id := p.arena.New(NodeName)
	iname, err := p.words.InternUserWord(text)
	if err != nil {
		return noNode, err
	}
	node := p.arena.Node(id)
	node.IVal = int32(iname)
	node.Span = Range{Start: start, End: p.pos}
	return id, nil
}

func (p *Parser) eatLabel() (NodeID, error) {
	start := p.pos
	n := p.readWordLen()
	text := string(p.src[start : start+n])
	p.pos += n

	id := p.arena.New(NodeLabel)
	iname, err := p.words.InternUserWord(text)
	if err != nil {
		return noNode, err
	}
	node := p.arena.Node(id)
	node.IVal = int32(iname)
	node.Span = Range{Start: start, End: p.pos}

	if p.peek() != ':' {
		return noNode, p.errf("expected ':' after label %q", text)
	}
	p.pos++
	return id, nil
}

func (p *Parser) eatString() (NodeID, error) {
	p.pos++ // opening "
	start := p.pos
	idx := strings.IndexByte(string(p.src[p.pos:]), '"')
	if idx < 0 {
		return noNode, p.errf("unterminated string")
	}
	text := string(p.src[start : start+idx])
	p.pos += idx

	id := p.arena.New(NodeString)
	iname, err := p.words.InternUserWord(text)
	if err != nil {
		return noNode, err
	}
	node := p.arena.Node(id)
	node.IVal = int32(iname)
	node.Span = Range{Start: start, End: p.pos}

	p.pos++ // closing "
	return id, nil
}

func (p *Parser) eatList() (NodeID, error) {
	p.pos++ // (
	id := p.arena.New(NodeList)
	node := p.arena.Node(id)

	var children NodeID = noNode
	for {
		if p.eof() {
			return noNode, p.errf("unmatched '('")
		}
		if p.peek() == ')' {
			p.pos++
			node.FirstChild = children
			return id, nil
		}
		child, err := p.eatItem()
		if err != nil {
			return noNode, err
		}
		p.arena.Append(&children, child)
	}
}

func (p *Parser) eatVector() (NodeID, error) {
	p.pos++ // [
	id := p.arena.New(NodeVector)
	node := p.arena.Node(id)

	var children NodeID = noNode
	for {
		if p.eof() {
			return noNode, p.errf("unmatched '['")
		}
		if p.peek() == ']' {
			p.pos++
			node.FirstChild = children
			return id, nil
		}
		child, err := p.eatItem()
		if err != nil {
			return noNode, err
		}
		p.arena.Append(&children, child)
	}
}

func (p *Parser) eatAlterable() (NodeID, error) {
	p.pos++ // {

	var prefix NodeID = noNode
	var value NodeID = noNode

	for {
		c, err := p.eatItem()
		if err != nil {
			return noNode, err
		}
		t := p.arena.Node(c).Type
		if t == NodeComment || t == NodeWhitespace {
			p.arena.Append(&prefix, c)
			continue
		}
		value = c
		break
	}

	vn := p.arena.Node(value)
	switch vn.Type {
	case NodeInt, NodeFloat, NodeName, NodeList, NodeVector:
		// ok
	default:
		return noNode, p.errf("non-alterable node type %s within { }", vn.Type)
	}
	vn.Alterable = true
	vn.ParameterPrefix = prefix

	var paramAST NodeID = noNode
	for {
		if p.eof() {
			return noNode, p.errf("unmatched '{'")
		}
		if p.peek() == '}' {
			p.pos++
			vn.ParameterAST = paramAST
			return value, nil
		}
		child, err := p.eatItem()
		if err != nil {
			return noNode, err
		}
		p.arena.Append(&paramAST, child)
	}
}

func (p *Parser) eatQuotedForm() (NodeID, error) {
	p.pos++ // '

	id := p.arena.New(NodeList)
	node := p.arena.Node(id)

	var children NodeID = noNode

	quoteName, err := p.words.InternUserWord("quote")
	if err != nil {
		return noNode, err
	}
	qn := p.arena.New(NodeName)
	p.arena.Node(qn).IVal = int32(quoteName)
	p.arena.Append(&children, qn)

	ws := p.arena.New(NodeWhitespace)
	p.arena.Append(&children, ws)

	child, err := p.eatItem()
	if err != nil {
		return noNode, err
	}
	p.arena.Append(&children, child)

	node.FirstChild = children
	return id, nil
}
