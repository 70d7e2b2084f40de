package bpe

import (
	"github.com/pkg/errors"
)

// Restore rebuilds a Tokenizer from persisted state: the vocabulary indexed by ID and the merge
// list in learned order. Every invariant is checked, and any violation returns an error wrapping
// ErrModelLoad:
//
//   - len(vocab) == 256 + len(merges);
//   - vocab[b] is the single byte b, for b in 0..255;
//   - both operands of merge i are known before it, and vocab[256+i] is their concatenation;
//   - no symbol appears twice.
func Restore(vocab []Symbol, merges []Pair) (*Tokenizer, error) {
	if len(vocab) != NumBytes+len(merges) {
		return nil, errors.Wrapf(ErrModelLoad, "vocabulary has %d entries, but %d merges require %d",
			len(vocab), len(merges), NumBytes+len(merges))
	}
	for b := range NumBytes {
		if vocab[b] != ByteSymbol(byte(b)) {
			return nil, errors.Wrapf(ErrModelLoad, "vocabulary entry %d is %q, want the single byte 0x%02x",
				b, vocab[b], b)
		}
	}
	t, err := FromMerges(merges)
	if err != nil {
		return nil, err
	}
	for ii, m := range t.merges {
		id := NumBytes + ii
		if vocab[id] != m.Symbol {
			return nil, errors.Wrapf(ErrModelLoad, "vocabulary entry %d is %q, but merge %d (%q + %q) produces %q",
				id, vocab[id], ii, m.Left, m.Right, m.Symbol)
		}
	}
	return t, nil
}

// FromMerges rebuilds a Tokenizer from its merge list alone, using the fixed convention that
// bytes take IDs 0..255 and merge i takes ID 256+i.
//
// It returns an error wrapping ErrModelLoad if an operand is unknown at the point its merge is
// applied, or if a merge produces a symbol already in the vocabulary.
func FromMerges(merges []Pair) (*Tokenizer, error) {
	t := New()
	for ii, p := range merges {
		if p.Left == "" || p.Right == "" {
			return nil, errors.Wrapf(ErrModelLoad, "merge %d has an empty operand", ii)
		}
		if _, found := t.vocab[p.Left]; !found {
			return nil, errors.Wrapf(ErrModelLoad, "merge %d: left operand %q is not in the vocabulary", ii, p.Left)
		}
		if _, found := t.vocab[p.Right]; !found {
			return nil, errors.Wrapf(ErrModelLoad, "merge %d: right operand %q is not in the vocabulary", ii, p.Right)
		}
		if id, found := t.vocab[p.Merged()]; found {
			return nil, errors.Wrapf(ErrModelLoad, "merge %d: symbol %q already has id %d", ii, p.Merged(), id)
		}
		t.addMerge(p)
	}
	return t, nil
}

// FromMergeIDs is like FromMerges, but merges are given as pairs of IDs. Each ID must refer to a
// byte or to an earlier merge.
func FromMergeIDs(merges [][2]int) (*Tokenizer, error) {
	t := New()
	for ii, ids := range merges {
		var p Pair
		for side, id := range ids {
			sym, ok := t.Symbol(id)
			if !ok {
				return nil, errors.Wrapf(ErrModelLoad, "merge %d refers to id %d, but only %d symbols are known at that point",
					ii, id, t.VocabSize())
			}
			if side == 0 {
				p.Left = sym
			} else {
				p.Right = sym
			}
		}
		if id, found := t.vocab[p.Merged()]; found {
			return nil, errors.Wrapf(ErrModelLoad, "merge %d: symbol %q already has id %d", ii, p.Merged(), id)
		}
		t.addMerge(p)
	}
	return t, nil
}

// MergeIDs returns the merge list as pairs of operand IDs, in learned order.
func (t *Tokenizer) MergeIDs() [][2]int {
	ids := make([][2]int, len(t.merges))
	for ii, m := range t.merges {
		ids[ii] = [2]int{t.vocab[m.Left], t.vocab[m.Right]}
	}
	return ids
}
