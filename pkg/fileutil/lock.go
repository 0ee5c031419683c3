package fileutil

import (
	"errors"
	"fmt"
	"os"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

const (
	ErrCauseLockBusy FileErrorCause = "lock busy"
)

// TryLock creates path exclusively and writes contents into it. It is the
// existence-only lock primitive the run controller uses for CrawlActive.lck:
// if the file already exists, TryLock returns a FileError whose Cause is
// ErrCauseLockBusy and does not touch the existing file.
func TryLock(path string, contents []byte) failure.ClassifiedError {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return &FileError{
				Message:   fmt.Sprintf("lock file already exists: %s", path),
				Retryable: false,
				Cause:     ErrCauseLockBusy,
			}
		}
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	defer f.Close()

	if len(contents) > 0 {
		if _, err := f.Write(contents); err != nil {
			return &FileError{
				Message:   fmt.Sprintf("%v", err),
				Retryable: false,
				Cause:     ErrCausePathError,
			}
		}
	}
	return nil
}

// Unlock removes the lock file created by TryLock. It is not an error for
// the file to already be gone.
func Unlock(path string) failure.ClassifiedError {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}

// Exists reports whether path is present, swallowing stat errors other than
// "not exist" into false (the caller only cares about the locked/unlocked
// distinction, not the exact filesystem error).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteAtomic writes data to a temp file beside path and renames it over
// path, so readers never observe a partially written file. Used by the
// Service Tracker to persist service-tracker.xml.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
