package bpe

import (
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainHello(t *testing.T) *Tokenizer {
	lines := make([]string, 0, 8)
	for range 5 {
		lines = append(lines, "hello world")
	}
	for range 3 {
		lines = append(lines, "hello there")
	}
	tok, _, err := Train(lines, 266)
	require.NoError(t, err)
	return tok
}

func TestByteIdentity(t *testing.T) {
	text := "héllo, wörld €\n"
	want := make([]int, len(text))
	for ii := range len(text) {
		want[ii] = int(text[ii])
	}
	assert.Equal(t, want, New().Encode(text))

	tok, _, err := Train(testCorpus(), 1000, WithMaxMerges(0))
	require.NoError(t, err)
	assert.Equal(t, want, tok.Encode(text))
}

func TestRoundTrip(t *testing.T) {
	trained, _, err := Train(testCorpus(), 500)
	require.NoError(t, err)
	inputs := []string{
		"",
		"a",
		"the quick brown fox jumps over the lazy dog",
		"never seen during training: QWERTY 12345",
		"ñandú €3\n",
		"日本語のテキスト 🎉🎉",
		"tabs\tand\r\nnewlines\n\n",
		"\x00\x01 control bytes",
	}
	for _, tok := range []*Tokenizer{New(), trainHello(t), trained} {
		for _, input := range inputs {
			ids := tok.Encode(input)
			assert.Equal(t, input, tok.Decode(ids), "vocab size %d", tok.VocabSize())
			for _, id := range ids {
				assert.GreaterOrEqual(t, id, 0)
				assert.Less(t, id, tok.VocabSize())
			}
		}
	}
}

func TestEncodeUsesMerges(t *testing.T) {
	tok := trainHello(t)
	ids := tok.Encode("hello")
	require.Len(t, ids, 1)
	sym, ok := tok.Symbol(ids[0])
	require.True(t, ok)
	assert.Equal(t, Symbol("hello"), sym)

	// The first merges build "hello" one byte at a time: "he", "hel", "hell", "hello".
	assert.Equal(t, []int{256 + 2}, tok.Encode("hell"))
	assert.Equal(t, []int{256, 'y'}, tok.Encode("hey"))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"h", "e", "l", "l", "o"}, New().Tokenize("hello"))

	tok := trainHello(t)
	pieces := tok.Tokenize("hello")
	assert.Equal(t, []string{"hello"}, pieces)
	assert.Less(t, len(pieces), 5)
	assert.Equal(t, "hello there", strings.Join(tok.Tokenize("hello there"), ""))

	// Bytes that are not valid UTF-8 on their own are rendered as byte lists.
	assert.Equal(t, []string{"<195>", "<169>"}, New().Tokenize("é"))
	accented, _, err := Train([]string{"éé"}, 257)
	require.NoError(t, err)
	assert.Equal(t, []string{"é", "<195>"}, accented.Tokenize("é\xc3"))
}

func TestDecodeFallback(t *testing.T) {
	tok := trainHello(t)
	assert.Equal(t, "he�", tok.Decode([]int{104, 101, 99001}))
	assert.Equal(t, "a�", tok.Decode([]int{'a', -1}))
	assert.Equal(t, "�", tok.Decode([]int{0xc3}))
	assert.Equal(t, "", tok.Decode(nil))

	// Out-of-range IDs that happen to be valid ASCII once truncated decode as such.
	assert.Equal(t, "A", tok.Decode([]int{256*1000 + 'A'}))
}

func TestEncodeFallbackForUnknownSymbol(t *testing.T) {
	tok := trainHello(t)
	id, ok := tok.ID("hello")
	require.True(t, ok)

	// Simulate a corrupted vocabulary: the merged symbol is missing.
	corrupted := &Tokenizer{merges: tok.merges, vocab: make(map[Symbol]int), symbols: tok.symbols}
	for sym, symID := range tok.vocab {
		if symID != id {
			corrupted.vocab[sym] = symID
		}
	}
	assert.Equal(t, []int{'h', 'e', 'l', 'l', 'o'}, corrupted.Encode("hello"))
	result := corrupted.EncodeWithSpans("hello")
	assert.Equal(t, []int{'h', 'e', 'l', 'l', 'o'}, result.IDs)
	require.Len(t, result.Spans, 5)
	assert.Equal(t, 4, result.Spans[4].Start)
	assert.Equal(t, 5, result.Spans[4].End)
}

func TestEncodeWithSpans(t *testing.T) {
	tok := trainHello(t)
	text := "hello hello there, ñ"
	result := tok.EncodeWithSpans(text)
	assert.Equal(t, tok.Encode(text), result.IDs)
	require.Len(t, result.Spans, len(result.IDs))
	pos := 0
	for ii, span := range result.Spans {
		assert.Equal(t, pos, span.Start, "token %d", ii)
		sym, ok := tok.Symbol(result.IDs[ii])
		require.True(t, ok)
		assert.Equal(t, string(sym), text[span.Start:span.End])
		pos = span.End
	}
	assert.Equal(t, len(text), pos)
}

func TestAccessors(t *testing.T) {
	tok := New()
	assert.Equal(t, NumBytes, tok.VocabSize())
	assert.Equal(t, 0, tok.NumMerges())
	assert.Empty(t, tok.Merges())
	sym, ok := tok.Symbol('a')
	require.True(t, ok)
	assert.Equal(t, Symbol("a"), sym)
	_, ok = tok.Symbol(NumBytes)
	assert.False(t, ok)
	_, ok = tok.Symbol(-1)
	assert.False(t, ok)

	// Returned slices are copies.
	trained := trainHello(t)
	merges := trained.Merges()
	merges[0].Symbol = "zz"
	vocab := trained.Vocab()
	vocab[0] = "zz"
	assert.Equal(t, Symbol("he"), trained.Merges()[0].Symbol)
	assert.Equal(t, ByteSymbol(0), trained.Vocab()[0])
}

func TestConcurrentUse(t *testing.T) {
	tok, _, err := Train(testCorpus(), 400)
	require.NoError(t, err)
	lines := testCorpus()
	var wg sync.WaitGroup
	for ii := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, line := range lines[ii:] {
				if got := tok.Decode(tok.Encode(line)); got != line {
					t.Errorf("round trip failed for %q: got %q", line, got)
					return
				}
				_ = tok.Tokenize(line)
			}
		}()
	}
	wg.Wait()
}

func TestRestore(t *testing.T) {
	tok, _, err := Train(testCorpus(), 300)
	require.NoError(t, err)
	pairs := make([]Pair, 0, tok.NumMerges())
	for _, m := range tok.Merges() {
		pairs = append(pairs, m.Pair)
	}

	t.Run("valid", func(t *testing.T) {
		restored, err := Restore(tok.Vocab(), pairs)
		require.NoError(t, err)
		assert.Equal(t, tok.Merges(), restored.Merges())
		text := "the lazy dog over nine gallons"
		assert.Equal(t, tok.Encode(text), restored.Encode(text))

		fromMerges, err := FromMerges(pairs)
		require.NoError(t, err)
		assert.Equal(t, tok.Vocab(), fromMerges.Vocab())

		fromIDs, err := FromMergeIDs(tok.MergeIDs())
		require.NoError(t, err)
		assert.Equal(t, tok.Vocab(), fromIDs.Vocab())
	})

	tests := []struct {
		name   string
		vocab  func([]Symbol) []Symbol
		merges func([]Pair) []Pair
	}{
		{"vocabulary size mismatch", func(v []Symbol) []Symbol { return v[:len(v)-1] }, nil},
		{"missing merges", nil, func(p []Pair) []Pair { return p[:len(p)-1] }},
		{"wrong byte entry", func(v []Symbol) []Symbol { v[1], v[2] = v[2], v[1]; return v }, nil},
		{"wrong merged entry", func(v []Symbol) []Symbol { v[NumBytes] = "zz"; return v }, nil},
		{"unknown operand", nil, func(p []Pair) []Pair { p[0].Left = "not learned yet"; return p }},
		{"empty operand", nil, func(p []Pair) []Pair { p[0].Right = ""; return p }},
		{"duplicate merge", nil, func(p []Pair) []Pair { p[1] = p[0]; return p }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vocab, merges := tok.Vocab(), append([]Pair(nil), pairs...)
			if tt.vocab != nil {
				vocab = tt.vocab(vocab)
			}
			if tt.merges != nil {
				merges = tt.merges(merges)
			}
			_, err := Restore(vocab, merges)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrModelLoad), "got %v", err)
		})
	}

	_, err = FromMergeIDs([][2]int{{'a', 'b'}, {256, 300}})
	assert.True(t, errors.Is(err, ErrModelLoad))
	_, err = FromMergeIDs([][2]int{{-1, 'b'}})
	assert.True(t, errors.Is(err, ErrModelLoad))
}
