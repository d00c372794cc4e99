package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReadError reports a file whose attributes could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read metadata of %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type Metadata struct {
	Size           int64     `json:"size"`
	Path           string    `json:"path"`
	LastModified   time.Time `json:"last_modified"`
	UsageFrequency *int      `json:"usage_frequency"`
}

// ReadMetadata stats the file at path. UsageFrequency is left nil; callers
// that know the project's import graph fill it in.
func ReadMetadata(path string) (Metadata, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Metadata{}, &ReadError{Path: path, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Metadata{}, &ReadError{Path: abs, Err: err}
	}
	if info.IsDir() {
		return Metadata{}, &ReadError{Path: abs, Err: fmt.Errorf("is a directory")}
	}
	return Metadata{
		Size:         info.Size(),
		Path:         abs,
		LastModified: info.ModTime(),
	}, nil
}
