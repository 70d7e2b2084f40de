// Package config holds the configuration of the bytebpe command line, read from a TOML file.
//
// Example:
//
//	[train]
//	vocab_size = 5000
//	parallelism = 8
//	format = "bpe"
//
//	[log]
//	verbosity = 1
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/gomlx/bytebpe/internal/files"
	"github.com/gomlx/bytebpe/models/bpefile"
	"github.com/pkg/errors"
)

// Unset marks MaxMerges as not given: the merge cap is then derived from VocabSize.
const Unset = -1

type Train struct {
	// VocabSize is the target vocabulary size, including the 256 byte symbols.
	VocabSize int `toml:"vocab_size"`

	// MaxMerges, if not Unset, caps the number of merges and takes precedence over VocabSize.
	MaxMerges int `toml:"max_merges"`

	// Parallelism is the number of goroutines used to count pairs. 0 means runtime.NumCPU().
	Parallelism int `toml:"parallelism"`

	// Format of the saved model when the model path has no known extension: "json", "proto" or "cbor".
	Format string `toml:"format"`
}

type Log struct {
	// Verbosity is the klog verbosity level (the "-v" flag).
	Verbosity int `toml:"verbosity"`
}

// Config of the command line.
type Config struct {
	Train Train `toml:"train"`
	Log   Log   `toml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Train: Train{
			VocabSize: 1000,
			MaxMerges: Unset,
			Format:    "json",
		},
	}
}

// Load reads the TOML file in filePath over the defaults, and validates the result.
// Keys not known are reported as errors.
func Load(filePath string) (*Config, error) {
	filePath, err := files.ReplaceTildeInDir(filePath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %q", filePath)
	}
	cfg, err := Parse(string(content))
	if err != nil {
		return nil, errors.WithMessagef(err, "config file %q", filePath)
	}
	return cfg, nil
}

// Parse is like Load, but takes the TOML content directly.
func Parse(content string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(content, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown config keys %v", undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that values are in range.
func (c *Config) Validate() error {
	if c.Train.VocabSize < 0 {
		return errors.Errorf("train.vocab_size must be >= 0, got %d", c.Train.VocabSize)
	}
	if c.Train.MaxMerges < Unset {
		return errors.Errorf("train.max_merges must be >= 0 (or %d for unset), got %d", Unset, c.Train.MaxMerges)
	}
	if c.Train.Parallelism < 0 {
		return errors.Errorf("train.parallelism must be >= 0, got %d", c.Train.Parallelism)
	}
	if _, err := bpefile.ParseFormat(c.Train.Format); err != nil {
		return errors.WithMessage(err, "train.format")
	}
	if c.Log.Verbosity < 0 {
		return errors.Errorf("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}
	return nil
}

// ModelFormat returns the parsed Train.Format.
func (c *Config) ModelFormat() bpefile.Format {
	f, err := bpefile.ParseFormat(c.Train.Format)
	if err != nil {
		return bpefile.FormatJSON
	}
	return f
}
