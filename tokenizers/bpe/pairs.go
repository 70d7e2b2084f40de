package bpe

import (
	"cmp"
	"slices"
	"sync"
)

// Pair is an ordered pair of adjacent symbols.
type Pair struct {
	Left, Right Symbol
}

// Merged returns the symbol formed by merging the pair.
func (p Pair) Merged() Symbol {
	return Concat(p.Left, p.Right)
}

// Merge is one learned merge rule: Pair is rewritten to Symbol (always Pair.Left+Pair.Right).
type Merge struct {
	Pair
	Symbol Symbol
}

// position of a pair in the corpus: line number, then index of the left symbol within the line.
type position struct {
	line, index int
}

func (p position) compare(other position) int {
	if c := cmp.Compare(p.line, other.line); c != 0 {
		return c
	}
	return cmp.Compare(p.index, other.index)
}

type pairStat struct {
	count int
	first position
}

// PairCounts holds the number of adjacent occurrences of each pair in a corpus, along with the
// position where each pair was first seen, which is used to break ties deterministically.
type PairCounts struct {
	stats map[Pair]pairStat
}

func newPairCounts() *PairCounts {
	return &PairCounts{stats: make(map[Pair]pairStat)}
}

// CountPairs counts every adjacent pair of every line. Pairs are counted positionally:
// the line [A, A, A] holds the pair (A, A) twice.
func CountPairs(lines [][]Symbol) *PairCounts {
	pc := newPairCounts()
	pc.add(lines, 0)
	return pc
}

// add counts lines, numbering them from firstLine.
func (pc *PairCounts) add(lines [][]Symbol, firstLine int) {
	for lineIdx, line := range lines {
		for ii := 0; ii+1 < len(line); ii++ {
			p := Pair{line[ii], line[ii+1]}
			st, found := pc.stats[p]
			if !found {
				st.first = position{firstLine + lineIdx, ii}
			}
			st.count++
			pc.stats[p] = st
		}
	}
}

// merge folds other into pc, summing counts and keeping the earliest first-seen position.
func (pc *PairCounts) merge(other *PairCounts) {
	for p, otherSt := range other.stats {
		st, found := pc.stats[p]
		if !found {
			pc.stats[p] = otherSt
			continue
		}
		st.count += otherSt.count
		if otherSt.first.compare(st.first) < 0 {
			st.first = otherSt.first
		}
		pc.stats[p] = st
	}
}

// Len returns the number of distinct pairs.
func (pc *PairCounts) Len() int {
	return len(pc.stats)
}

// Count returns the number of occurrences of p.
func (pc *PairCounts) Count(p Pair) int {
	return pc.stats[p].count
}

// Pairs returns all distinct pairs in the order they are first met scanning the corpus
// line by line, left to right.
func (pc *PairCounts) Pairs() []Pair {
	pairs := make([]Pair, 0, len(pc.stats))
	for p := range pc.stats {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, func(a, b Pair) int {
		return pc.stats[a].first.compare(pc.stats[b].first)
	})
	return pairs
}

// Best returns the most frequent pair and its count. Among pairs with the same count, the one
// first met in a left-to-right scan of the corpus wins.
//
// It returns false if there are no pairs.
func (pc *PairCounts) Best() (Pair, int, bool) {
	return pc.best(nil)
}

// best is like Best, but never selects a pair for which skip returns true.
// skip is only consulted for pairs that would otherwise win.
func (pc *PairCounts) best(skip func(Pair) bool) (best Pair, count int, found bool) {
	var bestSt pairStat
	for p, st := range pc.stats {
		if found && (st.count < bestSt.count || (st.count == bestSt.count && st.first.compare(bestSt.first) > 0)) {
			continue
		}
		if skip != nil && skip(p) {
			continue
		}
		best, bestSt, found = p, st, true
	}
	return best, bestSt.count, found
}

// countPairsParallel is equivalent to CountPairs, but shards the lines across workers goroutines.
func countPairsParallel(lines [][]Symbol, workers int) *PairCounts {
	if workers <= 1 || len(lines) < 2*workers {
		return CountPairs(lines)
	}
	shardSize := (len(lines) + workers - 1) / workers
	var shards []*PairCounts
	var wg sync.WaitGroup
	for start := 0; start < len(lines); start += shardSize {
		end := min(start+shardSize, len(lines))
		shard := newPairCounts()
		shards = append(shards, shard)
		wg.Add(1)
		go func(shardLines [][]Symbol, firstLine int) {
			defer wg.Done()
			shard.add(shardLines, firstLine)
		}(lines[start:end], start)
	}
	wg.Wait()

	total := shards[0]
	for _, shard := range shards[1:] {
		total.merge(shard)
	}
	return total
}

// ApplyMerge returns line with every non-overlapping occurrence of p, scanning left to right,
// replaced by the merged symbol. The input is never modified: if p does not occur, line itself
// is returned.
func ApplyMerge(line []Symbol, p Pair) []Symbol {
	return applyMerge(line, p, p.Merged())
}

func applyMerge(line []Symbol, p Pair, merged Symbol) []Symbol {
	if len(line) < 2 {
		return line
	}
	first := -1
	for ii := 0; ii+1 < len(line); ii++ {
		if line[ii] == p.Left && line[ii+1] == p.Right {
			first = ii
			break
		}
	}
	if first < 0 {
		return line
	}

	out := make([]Symbol, 0, len(line)-1)
	out = append(out, line[:first]...)
	for ii := first; ii < len(line); {
		if ii+1 < len(line) && line[ii] == p.Left && line[ii+1] == p.Right {
			out = append(out, merged)
			ii += 2
			continue
		}
		out = append(out, line[ii])
		ii++
	}
	return out
}
