package scripting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// LogFile is an append-only log file rotated by size: when a write would
// push it past the limit, file becomes file.1, file.1 becomes file.2, and so
// on, keeping at most backups old files.
type LogFile struct {
	mu      sync.Mutex
	path    string
	limit   int64
	backups int
	size    int64
	file    *os.File
}

var _ io.WriteCloser = (*LogFile)(nil)

// OpenLogFile opens (or creates) path for appending, creating parent
// directories. maxSizeMB is clamped to at least 1.
func OpenLogFile(path string, maxSizeMB, backups int) (*LogFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
	}
	f, size, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &LogFile{
		path:    path,
		limit:   int64(max(maxSizeMB, 1)) << 20,
		backups: max(backups, 0),
		size:    size,
		file:    f,
	}, nil
}

func openAppend(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("log file: %w", err)
	}
	return f, info.Size(), nil
}

// Write appends p, rotating first if needed. A single write is never split
// across files.
func (w *LogFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.size > 0 && w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("log file: rotate: %w", err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *LogFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *LogFile) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	existing := w.existingBackups()
	// highest first, so renames never clobber
	slices.Reverse(existing)
	for _, n := range existing {
		if n >= w.backups {
			_ = os.Remove(w.backup(n))
			continue
		}
		_ = os.Rename(w.backup(n), w.backup(n+1))
	}
	if w.backups > 0 {
		_ = os.Rename(w.path, w.backup(1))
	} else {
		_ = os.Remove(w.path)
	}
	f, size, err := openAppend(w.path)
	if err != nil {
		return err
	}
	w.file, w.size = f, size
	return nil
}

func (w *LogFile) backup(n int) string { return w.path + "." + strconv.Itoa(n) }

// existingBackups lists the backup numbers on disk in ascending order.
func (w *LogFile) existingBackups() []int {
	entries, err := os.ReadDir(filepath.Dir(w.path))
	if err != nil {
		return nil
	}
	prefix := filepath.Base(w.path) + "."
	var nums []int
	for _, e := range entries {
		suffix, ok := strings.CutPrefix(e.Name(), prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n >= 1 {
			nums = append(nums, n)
		}
	}
	slices.Sort(nums)
	return nums
}
