// bytebpe trains byte-level BPE tokenizers and evaluates them on a text.
//
//	bytebpe [flags] train <corpus> <model> [vocab_size]
//	bytebpe [flags] eval <model> <text>
//
// The corpus is a text file (any character set) or a Parquet file with a "text" column. The model
// format is given by the model file extension: .json, .bpe or .cbor. See -help for the flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/bytebpe"
	"github.com/gomlx/bytebpe/corpus"
	"github.com/gomlx/bytebpe/internal/config"
	"github.com/gomlx/bytebpe/models/bpefile"
	"github.com/gomlx/bytebpe/tokenizers/bpe"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagConfig    = flag.String("config", "", "TOML configuration file. Flags given explicitly override its values.")
	flagMaxMerges = flag.Int("max_merges", config.Unset, "If >= 0, caps the number of merges, overriding vocab_size.")
	flagParallel  = flag.Int("parallel", -1, "Goroutines used to count pairs. 0 uses all CPUs, -1 uses the configured value.")
	flagFormat    = flag.String("format", "", "Model format (json, proto or cbor) used if the model path has no known extension.")
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage is returned (wrapped) for malformed command lines.
var errUsage = errors.New("usage error")

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "bytebpe %s: byte-level BPE tokenizer.\n\n", bytebpe.Version)
	_, _ = fmt.Fprintf(out, "Usage:\n")
	_, _ = fmt.Fprintf(out, "  bytebpe [flags] train <corpus> <model> [vocab_size]\n")
	_, _ = fmt.Fprintf(out, "  bytebpe [flags] eval <model> <text>\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()
	defer klog.Flush()

	cfg, err := loadConfig()
	if err != nil {
		klog.Errorf("%+v", err)
		os.Exit(exitUsage)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	code := run(ctx, cfg, flag.Args(), os.Stdout)
	if code == exitUsage {
		usage()
	}
	klog.Flush()
	os.Exit(code)
}

// loadConfig reads the -config file, if given, and applies the flags set on the command line.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		cfg, err = config.Load(*flagConfig)
		if err != nil {
			return nil, err
		}
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["max_merges"] {
		cfg.Train.MaxMerges = *flagMaxMerges
	}
	if set["parallel"] && *flagParallel >= 0 {
		cfg.Train.Parallelism = *flagParallel
	}
	if set["format"] {
		cfg.Train.Format = *flagFormat
	}
	if !set["v"] && cfg.Log.Verbosity > 0 {
		if err := flag.Set("v", strconv.Itoa(cfg.Log.Verbosity)); err != nil {
			return nil, errors.Wrap(err, "failed to set klog verbosity")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run executes the command in args, writing its results to out, and returns the exit code.
func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) int {
	var err error
	switch {
	case len(args) == 0:
		err = errors.Wrap(errUsage, "missing command")
	case args[0] == "train":
		err = train(ctx, cfg, args[1:], out)
	case args[0] == "eval":
		err = eval(args[1:], out)
	default:
		err = errors.Wrapf(errUsage, "unknown command %q, valid commands are train and eval", args[0])
	}
	if err == nil {
		return exitOK
	}
	klog.Errorf("%+v", err)
	if errors.Is(err, errUsage) {
		return exitUsage
	}
	return exitError
}

// modelPath returns filePath, with the extension of the configured format appended if it has no
// known extension.
func modelPath(cfg *config.Config, filePath string) string {
	if _, err := bpefile.FormatFromPath(filePath); err == nil {
		return filePath
	}
	return filePath + cfg.ModelFormat().Extension()
}

func train(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.Wrapf(errUsage, "train takes <corpus> <model> [vocab_size], got %d arguments", len(args))
	}
	corpusPath, outputPath := args[0], modelPath(cfg, args[1])
	vocabSize := cfg.Train.VocabSize
	if len(args) == 3 {
		var err error
		vocabSize, err = strconv.Atoi(args[2])
		if err != nil {
			return errors.Wrapf(errUsage, "invalid vocab_size %q", args[2])
		}
	}

	lines, err := corpus.ReadFile(corpusPath)
	if err != nil {
		return err
	}

	var options []bpe.TrainOption
	if cfg.Train.MaxMerges != config.Unset {
		options = append(options, bpe.WithMaxMerges(cfg.Train.MaxMerges))
	}
	workers := cfg.Train.Parallelism
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	options = append(options, bpe.WithParallelism(workers))

	runID := uuid.NewString()
	_, _ = fmt.Fprintf(out, "Training BPE with %d lines, vocab_size=%d\n", len(lines), vocabSize)
	klog.V(1).Infof("run %s: corpus %q, %s, %d workers", runID, corpusPath, corpus.Stats(lines), workers)
	tok, report, err := bpe.Train(lines, vocabSize, options...)
	if err != nil {
		return err
	}
	klog.V(1).Infof("run %s: %d merges learned, %.2f bytes per token", runID, report.Merges, report.CompressionRatio())

	if err := bpefile.SaveFile(ctx, outputPath, tok, bpefile.Metadata{RunID: runID}); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Model saved to %s\n", outputPath)
	_, _ = fmt.Fprintf(out, "Final vocabulary: %d tokens\n", tok.VocabSize())
	switch {
	case report.NoOp:
		_, _ = fmt.Fprintf(out, "No merges learned: vocab_size %d leaves no room beyond the %d byte tokens\n",
			vocabSize, bpe.NumBytes)
	case report.Short():
		_, _ = fmt.Fprintf(out, "Stopped early: %d of %d merges learned, no pairs left in the corpus\n",
			report.Merges, report.RequestedMerges)
	}
	return nil
}

func eval(args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.Wrapf(errUsage, "eval takes <model> <text>, got %d arguments", len(args))
	}
	tok, meta, err := bpefile.LoadFile(args[0])
	if err != nil {
		return err
	}
	text := args[1]
	klog.V(1).Infof("model %q: version %s, run %s, %d tokens", args[0], meta.Version, meta.RunID, tok.VocabSize())

	renderer := lipgloss.NewRenderer(out)
	label := renderer.NewStyle().Bold(true).Width(16)
	okStyle := renderer.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle := renderer.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	printField := func(name, value string) {
		_, _ = fmt.Fprintln(out, label.Render(name)+value)
	}

	printField("Original text:", text)
	printField("Tokens:", "["+strings.Join(quoteAll(tok.Tokenize(text)), ", ")+"]")
	ids := tok.Encode(text)
	printField("IDs:", fmt.Sprint(ids))
	decoded := tok.Decode(ids)
	printField("Decoded text:", decoded)
	if decoded == text {
		printField("Round trip:", okStyle.Render("OK"))
	} else {
		printField("Round trip:", failStyle.Render("MISMATCH"))
	}
	return nil
}

func quoteAll(values []string) []string {
	quoted := make([]string, len(values))
	for ii, v := range values {
		quoted[ii] = strconv.Quote(v)
	}
	return quoted
}
