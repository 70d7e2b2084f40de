// Package corpus reads training text for the BPE trainer.
//
// Text files are read whole and split into lines that keep their terminators. Files that are not
// UTF-8 have their character set detected and are transcoded to UTF-8 first. Parquet datasets
// are read from their "text" column, one row per line.
package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gomlx/bytebpe/internal/files"
	"github.com/pkg/errors"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"k8s.io/klog/v2"
)

// ErrUnsupportedContent is returned (wrapped) for input that is not text, or whose character set
// can't be transcoded to UTF-8.
var ErrUnsupportedContent = errors.New("unsupported corpus content")

func init() {
	mimetype.SetLimit(1024 * 1024) // 1MB
}

// ReadFile reads the lines of the corpus in filePath.
//
// Files with the ".parquet" extension are read with ReadParquet. Any other file is taken as text:
// it is transcoded to UTF-8 if needed (see Normalize) and split with SplitLines.
func ReadFile(filePath string) ([]string, error) {
	filePath, err := files.ReplaceTildeInDir(filePath)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(filePath), ".parquet") {
		return ReadParquet(filePath)
	}
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read corpus %q", filePath)
	}
	text, err := Normalize(buf)
	if err != nil {
		return nil, errors.WithMessagef(err, "corpus %q", filePath)
	}
	lines := SplitLines(text)
	klog.V(1).Infof("read corpus %q: %s", filePath, Stats(lines))
	return lines, nil
}

// Normalize returns the content of buf as UTF-8 text.
//
// Valid UTF-8 is returned as is. Otherwise, the content must be detected as text, and its
// character set is guessed and transcoded to UTF-8; a leading byte order mark is dropped.
// Content that is not text returns an error wrapping ErrUnsupportedContent.
func Normalize(buf []byte) (string, error) {
	if utf8.Valid(buf) {
		return string(buf), nil
	}
	mt := mimetype.Detect(buf)
	if !isText(mt) {
		return "", errors.Wrapf(ErrUnsupportedContent, "content type is %s", mt.String())
	}

	detected, err := chardet.NewTextDetector().DetectBest(buf)
	if err != nil {
		return "", errors.Wrapf(ErrUnsupportedContent, "failed to detect character set: %v", err)
	}
	enc, err := ianaindex.IANA.Encoding(detected.Charset)
	if err != nil || enc == nil {
		enc, err = ianaindex.IANA.Encoding(strings.ReplaceAll(detected.Charset, "-", ""))
	}
	if err != nil || enc == nil {
		return "", errors.Wrapf(ErrUnsupportedContent, "no decoder for character set %q", detected.Charset)
	}
	klog.V(2).Infof("transcoding corpus from %s (confidence %d%%)", detected.Charset, detected.Confidence)
	if enc == unicode.UTF8 {
		return string(buf), nil
	}
	decoded, err := enc.NewDecoder().Bytes(buf)
	if err != nil {
		return "", errors.Wrapf(ErrUnsupportedContent, "failed to decode %s: %v", detected.Charset, err)
	}
	return strings.TrimPrefix(string(decoded), "\uFEFF"), nil
}

func isText(mt *mimetype.MIME) bool {
	for ; mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}

// SplitLines splits text into lines, each keeping its terminating "\n". The last line has no
// terminator if text doesn't end with one.
//
// Line endings are normalized first: "\r\n" and a lone "\r" both become "\n".
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	if strings.IndexByte(text, '\r') >= 0 {
		text = strings.ReplaceAll(text, "\r\n", "\n")
		text = strings.ReplaceAll(text, "\r", "\n")
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
