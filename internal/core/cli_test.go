package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseArgs(t *testing.T) {
	t.Run("accepts an existing csv file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "plant.csv")
		if err := os.WriteFile(path, []byte("h\n"), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := ParseArgs([]string{path})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("rejects missing argument", func(t *testing.T) {
		if _, err := ParseArgs(nil); err == nil {
			t.Error("expected error for no arguments")
		}
	})

	t.Run("rejects more than one argument", func(t *testing.T) {
		if _, err := ParseArgs([]string{"a.csv", "b.csv"}); err == nil {
			t.Error("expected error for two arguments")
		}
	})

	t.Run("rejects nonexistent path", func(t *testing.T) {
		if _, err := ParseArgs([]string{"/no/such/file.csv"}); err == nil {
			t.Error("expected error for nonexistent file")
		}
	})

	t.Run("rejects directory", func(t *testing.T) {
		if _, err := ParseArgs([]string{t.TempDir()}); err == nil {
			t.Error("expected error for directory argument")
		}
	})

	t.Run("rejects non-csv extension", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "plant.xlsx")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ParseArgs([]string{path}); err == nil {
			t.Error("expected error for non-csv extension")
		}
	})
}
