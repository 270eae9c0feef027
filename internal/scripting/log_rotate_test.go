package scripting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogFile_AppendsAndCreatesDirs(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "scene.log")

	w, err := OpenLogFile(path, 1, 2)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w, err = OpenLogFile(path, 1, 2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w.Close()
	if _, err := w.Write([]byte("again\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hello\nagain\n" {
		t.Errorf("content = %q", data)
	}
}

func TestLogFile_Rotation(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scene.log")
	w, err := OpenLogFile(path, 1, 2)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	defer w.Close()

	chunk := []byte(strings.Repeat("x", 700*1024))
	for i := range 4 {
		chunk[0] = byte('a' + i)
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	first := func(p string) byte {
		t.Helper()
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		return data[0]
	}
	if got := first(path); got != 'd' {
		t.Errorf("current starts with %c, want d", got)
	}
	if got := first(path + ".1"); got != 'c' {
		t.Errorf(".1 starts with %c, want c", got)
	}
	if got := first(path + ".2"); got != 'b' {
		t.Errorf(".2 starts with %c, want b", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected no .3 backup, stat err = %v", err)
	}
}

func TestLogFile_NoBackups(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scene.log")
	w, err := OpenLogFile(path, 1, 0)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	defer w.Close()

	big := []byte(strings.Repeat("y", 800*1024))
	for range 2 {
		if _, err := w.Write(big); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != int64(len(big)) {
		t.Errorf("size = %d, want %d", info.Size(), len(big))
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Errorf("unexpected backup: %v", err)
	}
}
