package dataset

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+FileExtension), []byte(content), 0o644))
}

func TestFileSource_Open(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "random-core", "{\"control_number\": 1}\n")
	src := NewFileSource(dir)

	rc, err := src.Open(context.Background(), "random-core")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "{\"control_number\": 1}\n", string(data))
	assert.Equal(t, filepath.Join(dir, "random-core.jsonl"), src.Path("random-core"))
}

func TestFileSource_OpenMissing(t *testing.T) {
	src := NewFileSource(t.TempDir())

	_, err := src.Open(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "nope.jsonl")
}

func TestFileSource_InvalidName(t *testing.T) {
	src := NewFileSource(t.TempDir())

	for _, name := range []string{"", "  ", "../etc/passwd", "a/b", `a\b`, ".."} {
		_, err := src.Open(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSource(t.TempDir()).Open(ctx, "random-core")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFileSource_DefaultDir(t *testing.T) {
	assert.Equal(t, DefaultDir, NewFileSource("").Dir)
}

func TestReadLines(t *testing.T) {
	input := "{\"a\":1}\n\n   \n{\"a\":2}\r\n{\"a\":3}"

	var got []string
	var numbers []int
	err := ReadLines(context.Background(), strings.NewReader(input), func(lineNo int, line []byte) error {
		numbers = append(numbers, lineNo)
		got = append(got, string(line))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`, `{"a":3}`}, got)
	assert.Equal(t, []int{1, 4, 5}, numbers)
}

func TestReadLines_StopsOnCallbackError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := ReadLines(context.Background(), strings.NewReader("1\n2\n3\n"), func(int, []byte) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestReadLines_LongLine(t *testing.T) {
	long := "{\"control_number\": 1, \"abstract\": \"" + strings.Repeat("x", 200*1024) + "\"}"

	var size int
	err := ReadLines(context.Background(), strings.NewReader(long+"\n"), func(_ int, line []byte) error {
		size = len(line)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, len(long), size)
}
