package bpefile

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/gomlx/bytebpe/tokenizers/bpe"
	"github.com/pkg/errors"
)

type cborModel struct {
	Version string   `cbor:"version"`
	RunID   string   `cbor:"run_id,omitempty"`
	Vocab   [][]byte `cbor:"vocab"`
	Merges  [][2]int `cbor:"merges"`
}

func marshalCBOR(tok *bpe.Tokenizer, meta Metadata) ([]byte, error) {
	model := cborModel{
		Version: meta.Version,
		RunID:   meta.RunID,
		Vocab:   make([][]byte, 0, tok.VocabSize()),
		Merges:  tok.MergeIDs(),
	}
	for _, sym := range tok.Vocab() {
		model.Vocab = append(model.Vocab, sym.Bytes())
	}
	return marshalCBORModel(&model)
}

func marshalCBORModel(model *cborModel) ([]byte, error) {
	data, err := cbor.Marshal(model)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode cbor model")
	}
	return data, nil
}

func unmarshalCBOR(data []byte) (*bpe.Tokenizer, Metadata, error) {
	var model cborModel
	if err := cbor.Unmarshal(data, &model); err != nil {
		return nil, Metadata{}, modelLoadErrorf("failed to parse cbor model: %v", err)
	}
	vocab := make([]bpe.Symbol, len(model.Vocab))
	for ii, v := range model.Vocab {
		vocab[ii] = bpe.Symbol(v)
	}
	tok, err := restoreFromIDs(vocab, model.Merges)
	if err != nil {
		return nil, Metadata{}, err
	}
	return tok, Metadata{Version: model.Version, RunID: model.RunID}, nil
}
