// Package bpefile saves and loads trained bpe.Tokenizer models.
//
// Three formats are supported, selected by file extension:
//
//   - ".json": the HuggingFace tokenizer.json layout, with symbols spelled with the GPT-2
//     byte-level alphabet, so the file is readable and diff-able.
//   - ".bpe" (or ".pb"): a compact protobuf wire-format message, prefixed by a magic number.
//   - ".cbor": a CBOR map.
//
// All formats hold the full vocabulary and the merge list in learned order, and loading checks
// that both are consistent: any problem is reported as an error wrapping bpe.ErrModelLoad.
package bpefile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gomlx/bytebpe"
	"github.com/gomlx/bytebpe/tokenizers/bpe"
	"github.com/pkg/errors"
)

// Format of a serialized model.
type Format int

const (
	FormatJSON Format = iota
	FormatProto
	FormatCBOR
)

var formatNames = map[Format]string{
	FormatJSON:  "json",
	FormatProto: "proto",
	FormatCBOR:  "cbor",
}

var extensionFormats = map[string]Format{
	".json": FormatJSON,
	".bpe":  FormatProto,
	".pb":   FormatProto,
	".cbor": FormatCBOR,
}

// String implements fmt.Stringer.
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Extension returns the preferred file extension for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatProto:
		return ".bpe"
	case FormatCBOR:
		return ".cbor"
	default:
		return ".json"
	}
}

// ParseFormat converts a format name ("json", "proto" or "cbor") to a Format.
func ParseFormat(name string) (Format, error) {
	for f, fName := range formatNames {
		if strings.EqualFold(name, fName) {
			return f, nil
		}
	}
	return 0, errors.Errorf("unknown model format %q, valid formats are json, proto and cbor", name)
}

// FormatFromPath returns the format implied by the file extension of filePath.
func FormatFromPath(filePath string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if f, ok := extensionFormats[ext]; ok {
		return f, nil
	}
	return 0, errors.Errorf("can't tell model format from extension %q of %q, use .json, .bpe or .cbor", ext, filePath)
}

// Metadata saved along with the model.
type Metadata struct {
	// Version of bytebpe that wrote the model. Filled with bytebpe.Version if empty when saving.
	Version string

	// RunID identifies the training run that produced the model.
	RunID string
}

// Marshal serializes the tokenizer in the given format.
func Marshal(tok *bpe.Tokenizer, meta Metadata, format Format) ([]byte, error) {
	if meta.Version == "" {
		meta.Version = bytebpe.Version
	}
	switch format {
	case FormatJSON:
		return marshalJSON(tok, meta)
	case FormatProto:
		return marshalProto(tok, meta), nil
	case FormatCBOR:
		return marshalCBOR(tok, meta)
	default:
		return nil, errors.Errorf("unknown model format %s", format)
	}
}

// Unmarshal restores a tokenizer serialized with Marshal.
// Malformed or inconsistent content returns an error wrapping bpe.ErrModelLoad.
func Unmarshal(data []byte, format Format) (*bpe.Tokenizer, Metadata, error) {
	var (
		tok  *bpe.Tokenizer
		meta Metadata
		err  error
	)
	switch format {
	case FormatJSON:
		tok, meta, err = unmarshalJSON(data)
	case FormatProto:
		tok, meta, err = unmarshalProto(data)
	case FormatCBOR:
		tok, meta, err = unmarshalCBOR(data)
	default:
		return nil, Metadata{}, errors.Errorf("unknown model format %s", format)
	}
	if err != nil {
		return nil, Metadata{}, errors.WithMessagef(err, "while loading %s model", format)
	}
	return tok, meta, nil
}

// modelLoadErrorf returns an error wrapping bpe.ErrModelLoad.
func modelLoadErrorf(format string, args ...any) error {
	return errors.Wrapf(bpe.ErrModelLoad, format, args...)
}

// restoreFromIDs restores a tokenizer from a vocabulary and merges given as pairs of IDs.
func restoreFromIDs(vocab []bpe.Symbol, merges [][2]int) (*bpe.Tokenizer, error) {
	pairs := make([]bpe.Pair, len(merges))
	for ii, ids := range merges {
		for _, id := range ids {
			if id < 0 || id >= len(vocab) {
				return nil, modelLoadErrorf("merge %d refers to id %d, out of the vocabulary range [0, %d)",
					ii, id, len(vocab))
			}
		}
		pairs[ii] = bpe.Pair{Left: vocab[ids[0]], Right: vocab[ids[1]]}
	}
	return bpe.Restore(vocab, pairs)
}
