// Package api defines the Tokenizer API.
// It's kept apart from the implementations, so callers (and other tokenizers) can depend on the
// interfaces alone.
package api

// TokenSpan represents the byte span of a token in the original text.
// Start and End are byte offsets (not rune offsets), suitable for slicing
// Go strings directly: originalText[span.Start:span.End].
type TokenSpan struct {
	Start int // start byte position (inclusive)
	End   int // end byte position (exclusive)
}

// EncodingResult contains tokens with their spans in the original text.
type EncodingResult struct {
	IDs   []int       // token IDs
	Spans []TokenSpan // byte spans for each token (use originalText[span.Start:span.End] to extract)
}

// Tokenizer interface allows one to convert text to "tokens" (integer ids) and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// VocabSize returns the number of distinct token ids.
	VocabSize() int
}

// TokenizerWithSpans extends Tokenizer with span tracking capability.
// This is useful for token classification tasks (NER, chunking) where you need
// to map token predictions back to byte positions in the original text.
type TokenizerWithSpans interface {
	Tokenizer
	// EncodeWithSpans returns tokens along with their byte spans in the original text.
	EncodeWithSpans(text string) EncodingResult
}

// TokenizerWithPieces extends Tokenizer with a human-readable rendering of the tokens,
// for inspection and debugging.
type TokenizerWithPieces interface {
	Tokenizer
	// Tokenize returns the pieces Encode would map to ids, rendered as strings.
	Tokenize(text string) []string
}
