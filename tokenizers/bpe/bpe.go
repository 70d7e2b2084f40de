// Package bpe implements a byte-level Byte Pair Encoding (BPE) tokenizer.
//
// The initial tokens are the 256 single bytes, with IDs 0 to 255. Training repeatedly merges the
// most frequent adjacent pair of symbols into a new symbol, with ID 256 + merge index.
// Encoding applies the learned merges in the order they were learned, and decoding concatenates
// the bytes of each ID, so Decode(Encode(text)) == text for any valid UTF-8 text.
//
// A Tokenizer is immutable once trained (or restored), and safe for concurrent use.
package bpe

import (
	"strings"
	"unicode/utf8"

	"github.com/gomlx/bytebpe/tokenizers/api"
	"golang.org/x/text/encoding/unicode"
)

// NumBytes is the number of single-byte symbols, which take the IDs 0 to NumBytes-1.
const NumBytes = 256

// Tokenizer holds a learned BPE model: the ordered merge list and the vocabulary.
type Tokenizer struct {
	merges  []Merge        // In the order learned. Merge i produces the symbol with ID NumBytes+i.
	vocab   map[Symbol]int // Symbol -> ID.
	symbols []Symbol       // ID -> Symbol.
}

// Compile time assert that Tokenizer implements the api interfaces.
var (
	_ api.Tokenizer           = &Tokenizer{}
	_ api.TokenizerWithSpans  = &Tokenizer{}
	_ api.TokenizerWithPieces = &Tokenizer{}
)

// New returns an untrained Tokenizer: only the 256 single-byte symbols, no merges.
func New() *Tokenizer {
	t := &Tokenizer{
		vocab:   make(map[Symbol]int, NumBytes),
		symbols: make([]Symbol, NumBytes),
	}
	for b := range NumBytes {
		sym := ByteSymbol(byte(b))
		t.vocab[sym] = b
		t.symbols[b] = sym
	}
	return t
}

// addMerge appends a merge rule for p, assigning the merged symbol the next ID.
// The caller guarantees the merged symbol is not yet in the vocabulary.
func (t *Tokenizer) addMerge(p Pair) Merge {
	m := Merge{Pair: p, Symbol: p.Merged()}
	t.vocab[m.Symbol] = len(t.symbols)
	t.symbols = append(t.symbols, m.Symbol)
	t.merges = append(t.merges, m)
	return m
}

// VocabSize returns the number of symbols in the vocabulary: always NumBytes + NumMerges.
func (t *Tokenizer) VocabSize() int {
	return len(t.symbols)
}

// NumMerges returns the number of learned merge rules.
func (t *Tokenizer) NumMerges() int {
	return len(t.merges)
}

// Merges returns a copy of the merge rules, in the order they were learned.
func (t *Tokenizer) Merges() []Merge {
	return append([]Merge(nil), t.merges...)
}

// Vocab returns a copy of the vocabulary, indexed by ID.
func (t *Tokenizer) Vocab() []Symbol {
	return append([]Symbol(nil), t.symbols...)
}

// Symbol returns the symbol with the given ID.
func (t *Tokenizer) Symbol(id int) (Symbol, bool) {
	if id < 0 || id >= len(t.symbols) {
		return "", false
	}
	return t.symbols[id], true
}

// ID returns the ID of the given symbol.
func (t *Tokenizer) ID(sym Symbol) (int, bool) {
	id, ok := t.vocab[sym]
	return id, ok
}

// segment splits text into bytes and applies every merge, in learned order.
func (t *Tokenizer) segment(text string) []Symbol {
	symbols := FromBytes(text)
	for _, m := range t.merges {
		if len(symbols) < 2 {
			break
		}
		symbols = applyMerge(symbols, m.Pair, m.Symbol)
	}
	return symbols
}

// appendIDs appends the ID of sym to ids. If sym is not in the vocabulary, which can only happen
// with a corrupted model, the IDs of its individual bytes are appended instead.
//
// Notice the fallback byte IDs are indistinguishable from the IDs of single-byte symbols.
func (t *Tokenizer) appendIDs(ids []int, sym Symbol) []int {
	if id, ok := t.vocab[sym]; ok {
		return append(ids, id)
	}
	for ii := range len(sym) {
		ids = append(ids, int(sym[ii]))
	}
	return ids
}

// Encode converts text to a sequence of token IDs.
func (t *Tokenizer) Encode(text string) []int {
	symbols := t.segment(text)
	ids := make([]int, 0, len(symbols))
	for _, sym := range symbols {
		ids = t.appendIDs(ids, sym)
	}
	return ids
}

// EncodeWithSpans is like Encode, and also returns the byte span of each token in text.
// It implements api.TokenizerWithSpans.
func (t *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	symbols := t.segment(text)
	result := api.EncodingResult{
		IDs:   make([]int, 0, len(symbols)),
		Spans: make([]api.TokenSpan, 0, len(symbols)),
	}
	pos := 0
	for _, sym := range symbols {
		before := len(result.IDs)
		result.IDs = t.appendIDs(result.IDs, sym)
		if len(result.IDs)-before == 1 {
			result.Spans = append(result.Spans, api.TokenSpan{Start: pos, End: pos + sym.Len()})
			pos += sym.Len()
			continue
		}
		// Byte fallback: one span per byte.
		for range len(result.IDs) - before {
			result.Spans = append(result.Spans, api.TokenSpan{Start: pos, End: pos + 1})
			pos++
		}
	}
	return result
}

// Decode converts token IDs back to text.
//
// IDs outside the vocabulary (including negative ones) are taken as a raw byte, using the ID's
// lowest 8 bits. Byte sequences that are not valid UTF-8, which Encode never produces, are
// decoded with U+FFFD replacing the invalid bytes.
func (t *Tokenizer) Decode(ids []int) string {
	buf := make([]byte, 0, len(ids)*2)
	for _, id := range ids {
		if id >= 0 && id < len(t.symbols) {
			buf = append(buf, t.symbols[id]...)
		} else {
			buf = append(buf, byte(id))
		}
	}
	return decodeUTF8(buf)
}

// decodeUTF8 converts buf to a string, replacing invalid UTF-8 sequences with U+FFFD.
func decodeUTF8(buf []byte) string {
	if utf8.Valid(buf) {
		return string(buf)
	}
	decoded, err := unicode.UTF8.NewDecoder().Bytes(buf)
	if err != nil {
		return strings.ToValidUTF8(string(buf), string(utf8.RuneError))
	}
	return string(decoded)
}

// Tokenize returns the symbols Encode would produce for text, rendered for inspection:
// symbols that are valid UTF-8 are returned as text, others as their byte values in angle
// brackets, e.g. "<226,130>".
// It implements api.TokenizerWithPieces.
func (t *Tokenizer) Tokenize(text string) []string {
	symbols := t.segment(text)
	pieces := make([]string, len(symbols))
	for ii, sym := range symbols {
		pieces[ii] = sym.String()
	}
	return pieces
}
