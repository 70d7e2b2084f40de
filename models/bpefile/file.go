package bpefile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"github.com/gomlx/bytebpe/internal/files"
	"github.com/gomlx/bytebpe/tokenizers/bpe"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// DefaultDirCreationPerm is used when creating the directory of a model file.
	DefaultDirCreationPerm = os.FileMode(0755)

	// DefaultFileCreationPerm is used when creating model files.
	DefaultFileCreationPerm = os.FileMode(0644)

	// LockRetryDelay is how long SaveFile waits between attempts to acquire the lock file.
	LockRetryDelay = 500 * time.Millisecond
)

// SaveFile saves the tokenizer to filePath, in the format given by its extension (see FormatFromPath).
//
// The model is written to filePath+".tmp" and then atomically moved to filePath, so readers never see
// a partially written model. A filePath+".lock" file coordinates concurrent writers, possibly in
// different processes; SaveFile waits for the lock until ctx is done.
func SaveFile(ctx context.Context, filePath string, tok *bpe.Tokenizer, meta Metadata) error {
	format, err := FormatFromPath(filePath)
	if err != nil {
		return err
	}
	content, err := Marshal(tok, meta, format)
	if err != nil {
		return errors.WithMessagef(err, "while saving model to %q", filePath)
	}
	filePath, err = files.ReplaceTildeInDir(filePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "failed to create directory for model file %q", filePath)
	}

	lockPath := filePath + ".lock"
	var mainErr error
	errLock := execOnFileLock(ctx, lockPath, func() {
		tmpPath := filePath + ".tmp"
		if err := os.WriteFile(tmpPath, content, DefaultFileCreationPerm); err != nil {
			mainErr = errors.Wrapf(err, "failed to write temporary model file %q", tmpPath)
			if files.Exists(tmpPath) {
				if err := os.Remove(tmpPath); err != nil {
					klog.Warningf("Failed removing temporary file %q: %v", tmpPath, err)
				}
			}
			return
		}
		if err := os.Rename(tmpPath, filePath); err != nil {
			mainErr = errors.Wrapf(err, "failed to move temporary model file %q to %q", tmpPath, filePath)
			return
		}
	})
	if mainErr != nil {
		return mainErr
	}
	if errLock != nil {
		return errors.WithMessagef(errLock, "while locking %q to save %q", lockPath, filePath)
	}
	klog.V(1).Infof("saved %s model with %d merges to %q (%d bytes)", format, tok.NumMerges(), filePath, len(content))
	return nil
}

// execOnFileLock opens the lockPath file (or creates if it doesn't yet exist), locks it, and executes fn.
// If lockPath is already locked, it retries every LockRetryDelay until it gets the lock or ctx is done.
//
// The lockPath is removed after fn returns.
func execOnFileLock(ctx context.Context, lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLockContext(ctx, LockRetryDelay)
	if err != nil {
		return errors.Wrapf(err, "while trying to lock %q", lockPath)
	}
	if !locked {
		return errors.Errorf("failed to acquire lock %q", lockPath)
	}

	// Clean up in a deferred function, so it happens even if fn panics.
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				klog.Errorf("Error unlocking file %q: %v", lockPath, unlockErr)
			}
			return
		}
		if rmErr := os.Remove(lockPath); rmErr != nil && !os.IsNotExist(rmErr) {
			klog.Warningf("Warning: error removing lock file %q: %v", lockPath, rmErr)
		}
	}()

	fn()
	return
}

// LoadFile loads a tokenizer saved with SaveFile, in the format given by the extension of filePath.
//
// The file is memory-mapped while decoding. A malformed or inconsistent model returns an error
// wrapping bpe.ErrModelLoad.
func LoadFile(filePath string) (*bpe.Tokenizer, Metadata, error) {
	format, err := FormatFromPath(filePath)
	if err != nil {
		return nil, Metadata{}, err
	}
	filePath, err = files.ReplaceTildeInDir(filePath)
	if err != nil {
		return nil, Metadata{}, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, Metadata{}, errors.Wrapf(err, "failed to open model file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, Metadata{}, errors.Wrapf(err, "failed to stat model file %q", filePath)
	}
	if info.Size() == 0 {
		return nil, Metadata{}, errors.WithMessagef(modelLoadErrorf("empty file"), "model file %q", filePath)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, Metadata{}, errors.Wrapf(err, "failed to mmap %s", filePath)
	}
	defer func() {
		if err := data.Unmap(); err != nil {
			klog.Warningf("Failed to unmap %q: %v", filePath, err)
		}
	}()

	tok, meta, err := Unmarshal(data, format)
	if err != nil {
		return nil, Metadata{}, errors.WithMessagef(err, "model file %q", filePath)
	}
	klog.V(1).Infof("loaded %s model with %d merges from %q", format, tok.NumMerges(), filePath)
	return tok, meta, nil
}
