package bpe

import (
	"strings"

	"github.com/pkg/errors"
)

// Byte-level spelling of symbols, as used by GPT-2 and the HuggingFace tokenizer.json files:
// every byte maps to one printable rune, so any symbol can be written as text without spaces
// or control characters.
var (
	byteToRune [NumBytes]rune
	runeToByte map[rune]byte
)

func init() {
	runeToByte = make(map[rune]byte, NumBytes)
	n := 0
	for b := range NumBytes {
		if (b >= '!' && b <= '~') || (b >= 0xa1 && b <= 0xac) || (b >= 0xae && b <= 0xff) {
			byteToRune[b] = rune(b)
		} else {
			byteToRune[b] = rune(NumBytes + n)
			n++
		}
		runeToByte[byteToRune[b]] = byte(b)
	}
}

// ByteLevel spells the symbol with one printable rune per byte, e.g. " the" becomes "Ġthe".
func (s Symbol) ByteLevel() string {
	var sb strings.Builder
	sb.Grow(2 * len(s))
	for ii := range len(s) {
		sb.WriteRune(byteToRune[s[ii]])
	}
	return sb.String()
}

// ParseByteLevel is the inverse of Symbol.ByteLevel.
func ParseByteLevel(text string) (Symbol, error) {
	buf := make([]byte, 0, len(text))
	for _, r := range text {
		b, ok := runeToByte[r]
		if !ok {
			return "", errors.Errorf("rune %q is not part of the byte-level alphabet", r)
		}
		buf = append(buf, b)
	}
	return Symbol(buf), nil
}
