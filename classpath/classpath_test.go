package classpath

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeClass(t *testing.T, dir, internalName string, contents []byte) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(internalName)+".class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "com/example/Foo", []byte("fake-bytecode"))

	src := NewDirSource(dir)
	data, err := src.Lookup("com/example/Foo")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if string(data) != "fake-bytecode" {
		t.Errorf("data = %q", data)
	}

	if _, err := src.Lookup("com/example/Missing"); err == nil {
		t.Error("expected error for missing class")
	}
}

func TestZipSource(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "lib.jar")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("com/example/Bar.class")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("zip-bytecode")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	src, err := NewZipSource(zipPath)
	if err != nil {
		t.Fatalf("NewZipSource: %v", err)
	}
	defer src.Close()

	data, err := src.Lookup("com/example/Bar")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if string(data) != "zip-bytecode" {
		t.Errorf("data = %q", data)
	}

	if _, err := src.Lookup("com/example/Missing"); err == nil {
		t.Error("expected error for missing class")
	}
}

func TestClassPath_FirstMatchWins(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	writeClass(t, dir1, "A", []byte("from-dir1"))
	writeClass(t, dir2, "A", []byte("from-dir2"))
	writeClass(t, dir2, "B", []byte("only-in-dir2"))

	cp := New(NewDirSource(dir1), NewDirSource(dir2))

	data, src, err := cp.Lookup("A")
	if err != nil {
		t.Fatalf("Lookup(A): %v", err)
	}
	if string(data) != "from-dir1" {
		t.Errorf("data = %q, want from-dir1 (first source should win)", data)
	}
	if src.String() != dir1 {
		t.Errorf("source = %q, want %q", src.String(), dir1)
	}

	if _, _, err := cp.Lookup("B"); err != nil {
		t.Fatalf("Lookup(B) should fall through to dir2: %v", err)
	}

	if _, _, err := cp.Lookup("Missing"); err == nil {
		t.Error("expected ErrClassNotFound")
	}
}

func TestParseSourceList(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	sources, err := ParseSourceList(dir1+":"+dir2, ':')
	if err != nil {
		t.Fatalf("ParseSourceList: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("len(sources) = %d, want 2", len(sources))
	}
}
