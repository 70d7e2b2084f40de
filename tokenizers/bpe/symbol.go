package bpe

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Symbol is an immutable, non-empty sequence of raw bytes: the unit BPE merges and emits.
//
// It is stored as a Go string holding the raw bytes (not necessarily valid UTF-8), so it is
// comparable, usable as a map key, and copies share the same backing storage.
type Symbol string

// FromBytes splits text into one single-byte Symbol per byte of its UTF-8 encoding, in order.
//
// The returned symbols are substrings of text, so no byte data is copied.
func FromBytes(text string) []Symbol {
	symbols := make([]Symbol, len(text))
	for ii := range len(text) {
		symbols[ii] = Symbol(text[ii : ii+1])
	}
	return symbols
}

// Concat returns the byte concatenation of a followed by b.
func Concat(a, b Symbol) Symbol {
	return a + b
}

// Len returns the number of bytes in the symbol.
func (s Symbol) Len() int {
	return len(s)
}

// Bytes returns a copy of the symbol's bytes.
func (s Symbol) Bytes() []byte {
	return []byte(s)
}

// String renders the symbol for humans: the text itself if the bytes are valid UTF-8,
// otherwise the decimal byte values in angle brackets, e.g. "<195>".
func (s Symbol) String() string {
	if utf8.ValidString(string(s)) {
		return string(s)
	}
	var sb strings.Builder
	sb.WriteByte('<')
	for ii := range len(s) {
		if ii > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(s[ii])))
	}
	sb.WriteByte('>')
	return sb.String()
}

// byteSymbols holds the 256 single-byte symbols, indexed by byte value.
var byteSymbols = func() (symbols [NumBytes]Symbol) {
	for b := range NumBytes {
		symbols[b] = Symbol([]byte{byte(b)})
	}
	return
}()

// ByteSymbol returns the single-byte symbol for b.
func ByteSymbol(b byte) Symbol {
	return byteSymbols[b]
}
