package senie

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordTableInternRoundTrip(t *testing.T) {
	w := NewWordTable()
	id, err := w.InternUserWord("foo")
	require.NoError(t, err)
	assert.Equal(t, "foo", w.ReverseLookup(id))
	assert.Equal(t, id, w.Lookup("foo"))
}

func TestWordTableInternIsIdempotent(t *testing.T) {
	w := NewWordTable()
	a, err := w.InternUserWord("bar")
	require.NoError(t, err)
	b, err := w.InternUserWord("bar")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWordTablePartitionsDontOverlap(t *testing.T) {
	w := NewWordTable()
	nativeID, err := w.DeclareNative("sin")
	require.NoError(t, err)
	kwID, err := w.DeclareKeyword("colour")
	require.NoError(t, err)
	wordID, err := w.InternUserWord("x")
	require.NoError(t, err)

	assert.True(t, nativeID >= NativeStart)
	assert.True(t, kwID >= KeywordStart && kwID < NativeStart)
	assert.True(t, wordID >= WordStart && wordID < KeywordStart)

	assert.Equal(t, "sin", w.ReverseLookup(nativeID))
	assert.Equal(t, "colour", w.ReverseLookup(kwID))
	assert.Equal(t, "x", w.ReverseLookup(wordID))
}

func TestWordTableNativeAndKeywordShadowUserWords(t *testing.T) {
	w := NewWordTable()
	nativeID, err := w.DeclareNative("shared")
	require.NoError(t, err)
	got, err := w.InternUserWord("shared")
	require.NoError(t, err)
	assert.Equal(t, nativeID, got, "a user word matching a declared native must resolve to the native's id")
}

func TestWordTableResetUserWordsClearsOnlyUserPartition(t *testing.T) {
	w := NewWordTable()
	_, err := w.DeclareNative("nat")
	require.NoError(t, err)
	_, err = w.InternUserWord("local")
	require.NoError(t, err)

	w.ResetUserWords()

	assert.Equal(t, IName(-1), w.Lookup("local"))
	assert.NotEqual(t, IName(-1), w.Lookup("nat"))
}

func TestWordTableReverseLookupUnknownID(t *testing.T) {
	w := NewWordTable()
	assert.Equal(t, "", w.ReverseLookup(IName(99999)))
}

func TestWordTableUserWordOverflow(t *testing.T) {
	w := NewWordTable()
	for i := 0; i < WordCap; i++ {
		_, err := w.InternUserWord("w" + strconv.Itoa(i))
		require.NoError(t, err)
	}
	_, err := w.InternUserWord("one-too-many")
	assert.Error(t, err)
}
