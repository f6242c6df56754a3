package senie

// IName is an interned word id. The space is partitioned at fixed
// compile-time boundaries so a single integer comparison decides
// whether an id names a user word, a keyword, or a native function.
type IName int32

const (
	WordCap    = 128
	KeywordCap = 192
	NativeCap  = 128

	WordStart    = 0
	KeywordStart = WordStart + WordCap
	NativeStart  = KeywordStart + KeywordCap
)

// WordTable interns every identifier seen in a script, partitioned into
// three append-only ranges: natives and keywords are declared once at
// startup, user words are reset at the start of every parse.
type WordTable struct {
	natives  []string
	keywords []string
	words    []string
}

func NewWordTable() *WordTable {
	return &WordTable{
		natives:  make([]string, 0, NativeCap),
		keywords: make([]string, 0, KeywordCap),
		words:    make([]string, 0, WordCap),
	}
}

// DeclareNative registers a native function name. Called once at
// startup; returns an error if the native partition is full.
func (w *WordTable) DeclareNative(name string) (IName, error) {
	if len(w.natives) >= NativeCap {
		return -1, &CompileError{Msg: "native word table overflow"}
	}
	w.natives = append(w.natives, name)
	return IName(NativeStart + len(w.natives) - 1), nil
}

// DeclareKeyword registers a keyword/built-in argument name. Called
// once at startup; returns an error if the keyword partition is full.
func (w *WordTable) DeclareKeyword(name string) (IName, error) {
	if len(w.keywords) >= KeywordCap {
		return -1, &CompileError{Msg: "keyword word table overflow"}
	}
	w.keywords = append(w.keywords, name)
	return IName(KeywordStart + len(w.keywords) - 1), nil
}

// InternUserWord returns an existing id for name (natives and keywords
// shadow user words) or appends to the user partition and returns the
// new id.
func (w *WordTable) InternUserWord(name string) (IName, error) {
	if id := w.lookup(name); id != -1 {
		return id, nil
	}
	if len(w.words) >= WordCap {
		return -1, &CompileError{Msg: "user word table overflow"}
	}
	w.words = append(w.words, name)
	return IName(WordStart + len(w.words) - 1), nil
}

// ResetUserWords clears the user partition only; called at the start
// of every parse so each script sees a clean namespace.
func (w *WordTable) ResetUserWords() {
	w.words = w.words[:0]
}

// Lookup searches native-first, then keyword, then user; returns -1 if
// name is unknown in any partition.
func (w *WordTable) Lookup(name string) IName {
	return w.lookup(name)
}

func (w *WordTable) lookup(name string) IName {
	for i, n := range w.natives {
		if n == name {
			return IName(NativeStart + i)
		}
	}
	for i, n := range w.keywords {
		if n == name {
			return IName(KeywordStart + i)
		}
	}
	for i, n := range w.words {
		if n == name {
			return IName(WordStart + i)
		}
	}
	return -1
}

// ReverseLookup returns the source text for id, or "" if id is invalid
// in every partition.
func (w *WordTable) ReverseLookup(id IName) string {
	switch {
	case id >= NativeStart && int(id) < NativeStart+len(w.natives):
		return w.natives[int(id)-NativeStart]
	case id >= KeywordStart && int(id) < KeywordStart+len(w.keywords):
		return w.keywords[int(id)-KeywordStart]
	case id >= WordStart && int(id) < WordStart+len(w.words):
		return w.words[int(id)-WordStart]
	default:
		return ""
	}
}

// CheckPartitions verifies the startup invariant that no partition has
// overflowed into the next: keywords must not reach into the native
// range, and the declared counts must fit their caps.
func (w *WordTable) CheckPartitions() error {
	if len(w.keywords) > KeywordCap {
		return &CompileError{Msg: "declared keywords overflow into native range"}
	}
	if len(w.natives) > NativeCap {
		return &CompileError{Msg: "declared natives overflow word table"}
	}
	return nil
}
