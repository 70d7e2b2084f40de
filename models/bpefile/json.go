package bpefile

import (
	"encoding/json"
	"strings"

	"github.com/gomlx/bytebpe/tokenizers/bpe"
	"github.com/pkg/errors"
)

// tokenizerJSON is the subset of HuggingFace's tokenizer.json used to store a byte-level BPE.
type tokenizerJSON struct {
	Version  string            `json:"version"`
	Model    modelJSON         `json:"model"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type modelJSON struct {
	Type         string         `json:"type"`
	ByteFallback bool           `json:"byte_fallback"`
	Vocab        map[string]int `json:"vocab"`
	Merges       []string       `json:"merges"`
}

const (
	tokenizerJSONVersion = "1.0"
	metadataVersionKey   = "bytebpe_version"
	metadataRunIDKey     = "run_id"
)

func marshalJSON(tok *bpe.Tokenizer, meta Metadata) ([]byte, error) {
	tj := tokenizerJSON{
		Version: tokenizerJSONVersion,
		Model: modelJSON{
			Type:         "BPE",
			ByteFallback: true,
			Vocab:        make(map[string]int, tok.VocabSize()),
		},
		Metadata: map[string]string{metadataVersionKey: meta.Version},
	}
	if meta.RunID != "" {
		tj.Metadata[metadataRunIDKey] = meta.RunID
	}
	for id, sym := range tok.Vocab() {
		tj.Model.Vocab[sym.ByteLevel()] = id
	}
	tj.Model.Merges = make([]string, 0, tok.NumMerges())
	for _, m := range tok.Merges() {
		tj.Model.Merges = append(tj.Model.Merges, m.Left.ByteLevel()+" "+m.Right.ByteLevel())
	}
	content, err := json.MarshalIndent(&tj, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tokenizer json")
	}
	return content, nil
}

func unmarshalJSON(content []byte) (*bpe.Tokenizer, Metadata, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, Metadata{}, modelLoadErrorf("failed to parse tokenizer json: %v", err)
	}
	if tj.Model.Type != "BPE" {
		return nil, Metadata{}, modelLoadErrorf("model type is %q, only \"BPE\" is supported", tj.Model.Type)
	}

	vocab := make([]bpe.Symbol, len(tj.Model.Vocab))
	for spelled, id := range tj.Model.Vocab {
		if id < 0 || id >= len(vocab) {
			return nil, Metadata{}, modelLoadErrorf("token %q has id %d, out of the vocabulary range [0, %d)",
				spelled, id, len(vocab))
		}
		if vocab[id] != "" {
			return nil, Metadata{}, modelLoadErrorf("id %d is assigned to both %q and %q",
				id, vocab[id].ByteLevel(), spelled)
		}
		sym, err := bpe.ParseByteLevel(spelled)
		if err != nil || sym == "" {
			return nil, Metadata{}, modelLoadErrorf("invalid token %q for id %d: %v", spelled, id, err)
		}
		vocab[id] = sym
	}

	merges := make([]bpe.Pair, len(tj.Model.Merges))
	for ii, merge := range tj.Model.Merges {
		parts := strings.Split(merge, " ")
		if len(parts) != 2 {
			return nil, Metadata{}, modelLoadErrorf("merge %d is %q, want two tokens separated by one space", ii, merge)
		}
		for side, part := range parts {
			sym, err := bpe.ParseByteLevel(part)
			if err != nil {
				return nil, Metadata{}, modelLoadErrorf("merge %d (%q): %v", ii, merge, err)
			}
			if side == 0 {
				merges[ii].Left = sym
			} else {
				merges[ii].Right = sym
			}
		}
	}

	tok, err := bpe.Restore(vocab, merges)
	if err != nil {
		return nil, Metadata{}, err
	}
	return tok, Metadata{Version: tj.Metadata[metadataVersionKey], RunID: tj.Metadata[metadataRunIDKey]}, nil
}
