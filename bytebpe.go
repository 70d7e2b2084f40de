// Package bytebpe only holds the version of the set of tools to train and use byte-level BPE tokenizers.
//
// There are 3 main sub-packages:
//
//   - tokenizers/bpe: the tokenizer itself: training, encoding, decoding.
//   - models/bpefile: to save and load trained tokenizers.
//   - corpus: to read training text from files.
package bytebpe

// Version of the library.
// Manually kept in sync with project releases.
var Version = "v0.1.0-dev"
