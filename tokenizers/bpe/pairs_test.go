package bpe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linesOf(texts ...string) [][]Symbol {
	lines := make([][]Symbol, len(texts))
	for ii, text := range texts {
		lines[ii] = FromBytes(text)
	}
	return lines
}

func TestCountPairs(t *testing.T) {
	t.Run("overlapping occurrences count positionally", func(t *testing.T) {
		counts := CountPairs(linesOf("aaa"))
		assert.Equal(t, 1, counts.Len())
		assert.Equal(t, 2, counts.Count(Pair{"a", "a"}))
	})

	t.Run("summed over lines", func(t *testing.T) {
		counts := CountPairs(linesOf("aaab", "aaabc"))
		assert.Equal(t, 4, counts.Count(Pair{"a", "a"}))
		assert.Equal(t, 2, counts.Count(Pair{"a", "b"}))
		assert.Equal(t, 1, counts.Count(Pair{"b", "c"}))
		assert.Equal(t, 0, counts.Count(Pair{"c", "a"}))
		assert.Equal(t, []Pair{{"a", "a"}, {"a", "b"}, {"b", "c"}}, counts.Pairs())

		best, count, found := counts.Best()
		require.True(t, found)
		assert.Equal(t, Pair{"a", "a"}, best)
		assert.Equal(t, 4, count)
	})

	t.Run("no pairs", func(t *testing.T) {
		for _, lines := range [][][]Symbol{nil, linesOf(""), linesOf("a", "b")} {
			counts := CountPairs(lines)
			assert.Equal(t, 0, counts.Len())
			_, _, found := counts.Best()
			assert.False(t, found)
		}
	})
}

func TestBestTieBreak(t *testing.T) {
	// All pairs occur once: the first one met scanning the corpus wins.
	best, _, _ := CountPairs(linesOf("cdab")).Best()
	assert.Equal(t, Pair{"c", "d"}, best)

	best, _, _ = CountPairs(linesOf("xy", "ab")).Best()
	assert.Equal(t, Pair{"x", "y"}, best)

	// A later pair with a higher count still wins.
	best, count, _ := CountPairs(linesOf("xy", "abab")).Best()
	assert.Equal(t, Pair{"a", "b"}, best)
	assert.Equal(t, 2, count)

	// Skipped pairs are never selected.
	counts := CountPairs(linesOf("abab", "cd"))
	best, count, found := counts.best(func(p Pair) bool { return p == Pair{"a", "b"} })
	require.True(t, found)
	assert.Equal(t, Pair{"b", "a"}, best)
	assert.Equal(t, 1, count)
	_, _, found = counts.best(func(Pair) bool { return true })
	assert.False(t, found)
}

func TestCountPairsParallel(t *testing.T) {
	var texts []string
	for ii := range 200 {
		texts = append(texts, fmt.Sprintf("line %d: the quick brown fox %d jumps", ii, ii*7%13))
	}
	lines := linesOf(texts...)
	want := CountPairs(lines)
	for _, workers := range []int{0, 1, 2, 3, 8} {
		got := countPairsParallel(lines, workers)
		require.Equal(t, want.Len(), got.Len(), "workers=%d", workers)
		assert.Equal(t, want.Pairs(), got.Pairs(), "workers=%d", workers)
		for _, p := range want.Pairs() {
			assert.Equal(t, want.Count(p), got.Count(p))
		}
		wantBest, wantCount, _ := want.Best()
		gotBest, gotCount, _ := got.Best()
		assert.Equal(t, wantBest, gotBest)
		assert.Equal(t, wantCount, gotCount)
	}
}

func TestApplyMerge(t *testing.T) {
	aa := Pair{"a", "a"}
	tests := []struct {
		name string
		line []Symbol
		pair Pair
		want []Symbol
	}{
		{"empty", nil, aa, nil},
		{"single", []Symbol{"a"}, aa, []Symbol{"a"}},
		{"non-overlapping", []Symbol{"a", "a", "a"}, aa, []Symbol{"aa", "a"}},
		{"all", []Symbol{"a", "a", "a", "a"}, aa, []Symbol{"aa", "aa"}},
		{"absent", []Symbol{"a", "b"}, Pair{"b", "a"}, []Symbol{"a", "b"}},
		{"multi-byte operands", []Symbol{"ab", "c", "ab", "c", "c"}, Pair{"ab", "c"}, []Symbol{"abc", "abc", "c"}},
		{"middle", []Symbol{"x", "a", "b", "y"}, Pair{"a", "b"}, []Symbol{"x", "ab", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]Symbol(nil), tt.line...)
			got := ApplyMerge(input, tt.pair)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.line, input, "input must not be modified")
			assert.LessOrEqual(t, len(got), len(tt.line))
		})
	}
}
