package bpefile

import (
	"encoding/binary"
	"math"

	"github.com/gomlx/bytebpe/tokenizers/bpe"
	"google.golang.org/protobuf/encoding/protowire"
)

// Binary layout:
//
//	[4 bytes: magic "BBPE"]
//	[4 bytes: format version as little-endian u32]
//	[protobuf wire-format message]:
//	    1: string version
//	    2: string run_id
//	    3: repeated bytes vocab, in ID order
//	    4: repeated uint32 merges (packed), operand IDs: left0, right0, left1, right1, ...
const (
	protoMagic   = "BBPE"
	protoVersion = 1

	fieldVersion protowire.Number = 1
	fieldRunID   protowire.Number = 2
	fieldVocab   protowire.Number = 3
	fieldMerges  protowire.Number = 4
)

func marshalProto(tok *bpe.Tokenizer, meta Metadata) []byte {
	b := make([]byte, 0, 8+tok.VocabSize()*8)
	b = append(b, protoMagic...)
	b = binary.LittleEndian.AppendUint32(b, protoVersion)

	b = protowire.AppendTag(b, fieldVersion, protowire.BytesType)
	b = protowire.AppendString(b, meta.Version)
	if meta.RunID != "" {
		b = protowire.AppendTag(b, fieldRunID, protowire.BytesType)
		b = protowire.AppendString(b, meta.RunID)
	}
	for _, sym := range tok.Vocab() {
		b = protowire.AppendTag(b, fieldVocab, protowire.BytesType)
		b = protowire.AppendString(b, string(sym))
	}
	if tok.NumMerges() > 0 {
		var packed []byte
		for _, ids := range tok.MergeIDs() {
			packed = protowire.AppendVarint(packed, uint64(ids[0]))
			packed = protowire.AppendVarint(packed, uint64(ids[1]))
		}
		b = protowire.AppendTag(b, fieldMerges, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

func unmarshalProto(data []byte) (*bpe.Tokenizer, Metadata, error) {
	if len(data) < 8 || string(data[:4]) != protoMagic {
		return nil, Metadata{}, modelLoadErrorf("invalid magic number, expected %q", protoMagic)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != protoVersion {
		return nil, Metadata{}, modelLoadErrorf("unsupported binary format version %d (supported: %d)",
			version, protoVersion)
	}

	var (
		meta     Metadata
		vocab    []bpe.Symbol
		mergeIDs []int
	)
	b := data[8:]
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, Metadata{}, modelLoadErrorf("bad field tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldVersion && typ == protowire.BytesType:
			meta.Version, n = protowire.ConsumeString(b)
		case num == fieldRunID && typ == protowire.BytesType:
			meta.RunID, n = protowire.ConsumeString(b)
		case num == fieldVocab && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				vocab = append(vocab, bpe.Symbol(v))
			}
		case num == fieldMerges && typ == protowire.BytesType:
			var packed []byte
			packed, n = protowire.ConsumeBytes(b)
			for len(packed) > 0 && n >= 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, Metadata{}, modelLoadErrorf("bad packed merges: %v", protowire.ParseError(m))
				}
				if v > math.MaxInt32 {
					return nil, Metadata{}, modelLoadErrorf("merge operand id %d out of range", v)
				}
				mergeIDs = append(mergeIDs, int(v))
				packed = packed[m:]
			}
		case num == fieldMerges && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n >= 0 {
				if v > math.MaxInt32 {
					return nil, Metadata{}, modelLoadErrorf("merge operand id %d out of range", v)
				}
				mergeIDs = append(mergeIDs, int(v))
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, Metadata{}, modelLoadErrorf("bad value for field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if len(mergeIDs)%2 != 0 {
		return nil, Metadata{}, modelLoadErrorf("odd number (%d) of merge operand ids", len(mergeIDs))
	}
	merges := make([][2]int, len(mergeIDs)/2)
	for ii := range merges {
		merges[ii] = [2]int{mergeIDs[2*ii], mergeIDs[2*ii+1]}
	}
	tok, err := restoreFromIDs(vocab, merges)
	if err != nil {
		return nil, Metadata{}, err
	}
	return tok, meta, nil
}
