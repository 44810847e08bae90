// Package dataset resolves dataset names to line-delimited JSON files and
// streams their lines.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Defaults for dataset resolution and scanning.
const (
	DefaultDir    = "data"
	FileExtension = ".jsonl"

	initialLineBuffer = 64 * 1024
	maxLineSize       = 16 * 1024 * 1024
)

// Source opens datasets by name.
type Source interface {
	// Open returns a reader over the dataset. The caller closes it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Path describes where name resolves to, for logs and errors.
	Path(name string) string
}

// FileSource resolves <Dir>/<name>.jsonl on the local filesystem.
type FileSource struct {
	Dir string
}

// NewFileSource returns a FileSource rooted at dir, or DefaultDir if empty.
func NewFileSource(dir string) *FileSource {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileSource{Dir: dir}
}

// Path returns the file a dataset name resolves to.
func (s *FileSource) Path(name string) string {
	return filepath.Join(s.Dir, name+FileExtension)
}

// Open opens the dataset file.
func (s *FileSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	path := s.Path(name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
		}
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	return f, nil
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.ContainsAny(name, `/\`), name == "..", name == ".":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ReadLines calls fn for every non-blank line of r with its 1-based line
// number. The slice passed to fn is only valid for the duration of the call.
// Reading stops at the first error returned by fn.
func ReadLines(ctx context.Context, r io.Reader, fn func(lineNo int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, initialLineBuffer), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read line %d: %w", lineNo+1, err)
	}
	return nil
}
