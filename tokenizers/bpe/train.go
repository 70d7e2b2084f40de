package bpe

import (
	"iter"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TrainOption configures Train.
type TrainOption func(*trainConfig)

type trainConfig struct {
	maxMerges     int
	hasMaxMerges  bool
	parallelism   int
	progressEvery int
}

// WithMaxMerges caps the number of merges. When given, it takes precedence over the cap derived
// from the vocabulary size (vocabSize - 256).
func WithMaxMerges(n int) TrainOption {
	return func(c *trainConfig) {
		c.maxMerges = n
		c.hasMaxMerges = true
	}
}

// WithParallelism shards pair counting and merge application across the given number of
// goroutines. The learned merges are identical to those of a sequential run.
// Values <= 1 train sequentially, which is the default.
func WithParallelism(workers int) TrainOption {
	return func(c *trainConfig) {
		c.parallelism = workers
	}
}

// WithProgressEvery sets how often (in merges) progress is logged at klog verbosity 1.
// Default is 100. Values <= 0 disable it.
func WithProgressEvery(n int) TrainOption {
	return func(c *trainConfig) {
		c.progressEvery = n
	}
}

// TrainReport describes how a training run went.
type TrainReport struct {
	// RequestedMerges is the effective merge cap, or 0 if the configuration allowed no merges.
	RequestedMerges int

	// Merges actually learned.
	Merges int

	// Exhausted is set if training stopped because no adjacent pair was left in the corpus.
	Exhausted bool

	// NoOp is set if the vocabulary size and merge cap allowed no merges at all.
	NoOp bool

	// Lines in the corpus, and the number of tokens before and after training.
	Lines, InitialTokens, FinalTokens int
}

// Short returns whether fewer merges than requested were learned.
func (r *TrainReport) Short() bool {
	return r.Merges < r.RequestedMerges
}

// CompressionRatio is the number of bytes per token in the trained corpus.
func (r *TrainReport) CompressionRatio() float64 {
	if r.FinalTokens == 0 {
		return 1
	}
	return float64(r.InitialTokens) / float64(r.FinalTokens)
}

// Train learns a Tokenizer from the given lines of text, with a target vocabSize that includes
// the 256 byte symbols. See TrainSeq.
func Train(lines []string, vocabSize int, options ...TrainOption) (*Tokenizer, *TrainReport, error) {
	return TrainSeq(slices.Values(lines), vocabSize, options...)
}

// TrainSeq learns a Tokenizer from a sequence of lines of text.
//
// At each round it counts every adjacent pair of symbols across all lines, merges the most
// frequent one (ties go to the pair seen first, scanning lines in order and each left to right),
// and rewrites all lines with the new symbol.
//
// It stops after the merge cap (vocabSize-256, or the value of WithMaxMerges) or when no pair is
// left. Neither a cap <= 0 nor running out of pairs is an error: the returned TrainReport tells
// whether fewer merges than requested were learned.
//
// It returns an error wrapping ErrInvalidConfig if vocabSize or the merge cap is negative.
func TrainSeq(lines iter.Seq[string], vocabSize int, options ...TrainOption) (*Tokenizer, *TrainReport, error) {
	cfg := trainConfig{progressEvery: 100}
	for _, option := range options {
		option(&cfg)
	}
	if vocabSize < 0 {
		return nil, nil, errors.Wrapf(ErrInvalidConfig, "vocabulary size must be >= 0, got %d", vocabSize)
	}
	if cfg.hasMaxMerges && cfg.maxMerges < 0 {
		return nil, nil, errors.Wrapf(ErrInvalidConfig, "max merges must be >= 0, got %d", cfg.maxMerges)
	}
	mergeCap := vocabSize - NumBytes
	if cfg.hasMaxMerges {
		mergeCap = cfg.maxMerges
	}

	t := New()
	report := &TrainReport{RequestedMerges: max(mergeCap, 0)}

	// Lines with less than 2 symbols can't hold any pair, and are not kept.
	var corpus [][]Symbol
	settledTokens := 0
	for line := range lines {
		report.Lines++
		report.InitialTokens += len(line)
		if len(line) < 2 {
			settledTokens += len(line)
			continue
		}
		corpus = append(corpus, FromBytes(line))
	}

	if mergeCap <= 0 {
		report.NoOp = true
		report.FinalTokens = report.InitialTokens
		klog.Warningf("bpe: vocabulary size %d with merge cap %d allows no merges, only the %d byte symbols will be used",
			vocabSize, mergeCap, NumBytes)
		return t, report, nil
	}
	klog.V(1).Infof("bpe: training on %d lines (%d bytes), up to %d merges",
		report.Lines, report.InitialTokens, mergeCap)

	// A pair whose merged symbol is already known (e.g. "ab"+"c" after "a"+"bc") can't take a
	// new ID, and is passed over.
	collides := func(p Pair) bool {
		_, found := t.vocab[p.Merged()]
		if found {
			klog.V(2).Infof("bpe: passing over %q + %q, symbol already in vocabulary", p.Left, p.Right)
		}
		return found
	}
	for len(t.merges) < mergeCap {
		counts := countPairsParallel(corpus, cfg.parallelism)
		pair, count, found := counts.best(collides)
		if !found {
			report.Exhausted = true
			break
		}
		m := t.addMerge(pair)
		var settled int
		corpus, settled = applyMergeToCorpus(corpus, m, cfg.parallelism)
		settledTokens += settled

		n := len(t.merges)
		if klog.V(2).Enabled() {
			klog.Infof("bpe: merge %d: %q + %q -> %q (id=%d, count=%d)",
				n, m.Left, m.Right, m.Symbol, NumBytes+n-1, count)
		} else if cfg.progressEvery > 0 && (n%cfg.progressEvery == 0 || n == mergeCap) {
			klog.V(1).Infof("bpe: merge %d/%d: %q (count=%d)", n, mergeCap, m.Symbol, count)
		}
	}

	report.Merges = len(t.merges)
	report.FinalTokens = settledTokens
	for _, line := range corpus {
		report.FinalTokens += len(line)
	}
	if report.Exhausted {
		klog.V(1).Infof("bpe: corpus exhausted after %d of %d merges", report.Merges, mergeCap)
	}
	klog.V(1).Infof("bpe: done, vocabulary size %d, %d merges, compression %.2fx",
		t.VocabSize(), report.Merges, report.CompressionRatio())
	return t, report, nil
}

// applyMergeToCorpus rewrites every line with merge m. Lines left with a single symbol are
// dropped, and the number of tokens they hold is returned.
func applyMergeToCorpus(corpus [][]Symbol, m Merge, workers int) ([][]Symbol, int) {
	if workers > 1 && len(corpus) >= 2*workers {
		shardSize := (len(corpus) + workers - 1) / workers
		var wg sync.WaitGroup
		for start := 0; start < len(corpus); start += shardSize {
			wg.Add(1)
			go func(shard [][]Symbol) {
				defer wg.Done()
				for ii, line := range shard {
					shard[ii] = applyMerge(line, m.Pair, m.Symbol)
				}
			}(corpus[start:min(start+shardSize, len(corpus))])
		}
		wg.Wait()
	} else {
		for ii, line := range corpus {
			corpus[ii] = applyMerge(line, m.Pair, m.Symbol)
		}
	}

	settled := 0
	kept := corpus[:0]
	for _, line := range corpus {
		if len(line) < 2 {
			settled += len(line)
			continue
		}
		kept = append(kept, line)
	}
	return kept, settled
}
