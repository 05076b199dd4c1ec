// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package marker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_Load_MissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "last_id"))

	id, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if id != 0 {
		t.Errorf("missing marker file should load as 0, got %d", id)
	}
}

func TestStore_Load_MalformedContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int64
	}{
		{"garbage", "not-a-number", 0},
		{"empty", "", 0},
		{"float", "12.5", 0},
		{"plain id", "42", 42},
		{"trailing newline", "42\n", 42},
		{"surrounding whitespace", "  42  \n", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "last_id")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write marker file: %v", err)
			}

			id, err := NewStore(path).Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if id != tt.want {
				t.Errorf("Load() = %d, want %d", id, tt.want)
			}
		})
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "last_id"))

	if err := store.Save(103); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	id, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if id != 103 {
		t.Errorf("Load() = %d, want 103", id)
	}

	// No leftover temp files after the rename.
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatalf("failed to list marker dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the marker file in the directory, got %d entries", len(entries))
	}
}

func TestStore_Save_RefusesRegression(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "last_id"))

	if err := store.Save(200); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	err := store.Save(100)
	if err == nil {
		t.Fatal("Save() with a lower id should fail")
	}
	if !errors.Is(err, ErrRegress) {
		t.Errorf("expected ErrRegress, got %v", err)
	}

	// The refused save must not touch the stored value.
	id, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if id != 200 {
		t.Errorf("Load() = %d, want 200", id)
	}
}

func TestStore_Save_EqualValueIsNoop(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "last_id"))

	if err := store.Save(7); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(7); err != nil {
		t.Errorf("Save() with the current value should succeed, got %v", err)
	}

	id, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if id != 7 {
		t.Errorf("Load() = %d, want 7", id)
	}
}

func TestStore_Save_OverMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_id")
	if err := os.WriteFile(path, []byte("corrupted"), 0644); err != nil {
		t.Fatalf("failed to write marker file: %v", err)
	}

	store := NewStore(path)
	if err := store.Save(50); err != nil {
		t.Fatalf("Save() over a malformed marker should succeed, got %v", err)
	}

	id, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if id != 50 {
		t.Errorf("Load() = %d, want 50", id)
	}
}
