package fileutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stupid-simple/foldershare/fileutils"
)

func TestVerifyWritableDir(t *testing.T) {
	dir := t.TempDir()
	if err := fileutils.VerifyWritableDir(dir); err != nil {
		t.Errorf("expected %s to be writable: %v", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected probe file to be removed, found %d entries", len(entries))
	}
}

func TestVerifyWritableDir_NotDir(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(testPath, data, 0600); err != nil {
		t.Fatal(err)
	}
	if err := fileutils.VerifyWritableDir(testPath); err == nil {
		t.Error("expected error for regular file")
	}
}

func TestVerifyWritableDir_Missing(t *testing.T) {
	if err := fileutils.VerifyWritableDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}
