package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/bytebpe/internal/config"
	"github.com/gomlx/bytebpe/models/bpefile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, dir string) string {
	t.Helper()
	corpusPath := filepath.Join(dir, "corpus.txt")
	content := strings.Repeat("hello world\nhello there\nthe world is round\n", 10)
	require.NoError(t, os.WriteFile(corpusPath, []byte(content), 0644))
	return corpusPath
}

func TestTrainAndEval(t *testing.T) {
	dir := t.TempDir()
	corpusPath := writeCorpus(t, dir)
	modelFile := filepath.Join(dir, "model.bpe")
	ctx := context.Background()

	var out bytes.Buffer
	code := run(ctx, config.Default(), []string{"train", corpusPath, modelFile, "270"}, &out)
	require.Equal(t, exitOK, code, out.String())
	assert.Contains(t, out.String(), "Training BPE with 30 lines, vocab_size=270")
	assert.Contains(t, out.String(), "Final vocabulary: 270 tokens")
	assert.NotContains(t, out.String(), "Stopped early")

	tok, meta, err := bpefile.LoadFile(modelFile)
	require.NoError(t, err)
	assert.Equal(t, 270, tok.VocabSize())
	assert.Len(t, meta.RunID, 36)

	out.Reset()
	code = run(ctx, config.Default(), []string{"eval", modelFile, "hello world"}, &out)
	require.Equal(t, exitOK, code)
	for _, want := range []string{"Original text:", "Tokens:", "IDs:", "Decoded text:", "hello world", "OK"} {
		assert.Contains(t, out.String(), want)
	}
	assert.NotContains(t, out.String(), "MISMATCH")
}

func TestTrainStopsEarly(t *testing.T) {
	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "tiny.txt")
	require.NoError(t, os.WriteFile(corpusPath, []byte("ab\n"), 0644))

	cfg := config.Default()
	cfg.Train.Format = "cbor"
	var out bytes.Buffer
	code := run(context.Background(), cfg, []string{"train", corpusPath, filepath.Join(dir, "model")}, &out)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out.String(), "Stopped early: 2 of 744 merges learned")
	assert.FileExists(t, filepath.Join(dir, "model.cbor"))

	out.Reset()
	code = run(context.Background(), cfg, []string{"train", corpusPath, filepath.Join(dir, "m.json"), "256"}, &out)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out.String(), "No merges learned")
	assert.Contains(t, out.String(), "Final vocabulary: 256 tokens")
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	corpusPath := writeCorpus(t, dir)
	badModel := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badModel, []byte("{}"), 0644))

	for _, tc := range []struct {
		name string
		args []string
		want int
	}{
		{"no-command", nil, exitUsage},
		{"unknown-command", []string{"compress"}, exitUsage},
		{"train-missing-args", []string{"train", corpusPath}, exitUsage},
		{"train-bad-vocab-size", []string{"train", corpusPath, filepath.Join(dir, "m.json"), "lots"}, exitUsage},
		{"train-negative-vocab-size", []string{"train", corpusPath, filepath.Join(dir, "m.json"), "-5"}, exitError},
		{"train-missing-corpus", []string{"train", filepath.Join(dir, "missing.txt"), filepath.Join(dir, "m.json")}, exitError},
		{"eval-missing-args", []string{"eval", badModel}, exitUsage},
		{"eval-missing-model", []string{"eval", filepath.Join(dir, "missing.json"), "hi"}, exitError},
		{"eval-bad-model", []string{"eval", badModel, "hi"}, exitError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tc.want, run(context.Background(), config.Default(), tc.args, &out))
		})
	}
}

func TestModelPath(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "m.bpe", modelPath(cfg, "m.bpe"))
	assert.Equal(t, "m.json", modelPath(cfg, "m"))
	cfg.Train.Format = "proto"
	assert.Equal(t, "out/m.bpe", modelPath(cfg, "out/m"))
	assert.Equal(t, "m.cbor", modelPath(cfg, "m.cbor"))
}
