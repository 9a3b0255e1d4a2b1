// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/tapecat/lib/catalog"
)

func TestArchiveOpen(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "tapecat.yaml")
	content := "paths:\n  root: " + root + "\nlog:\n  level: error\nlabels:\n  AAAA: LTO001\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	archive := Archive{ConfigPath: path}
	environment, err := archive.Open(&bytes.Buffer{}, "test")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer environment.Close()

	store, err := environment.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if again, _ := environment.Catalog(); again != store {
		t.Error("Catalog opened the database twice")
	}
	if store.Path() != filepath.Join(root, "catalog.db") {
		t.Errorf("catalog path = %s", store.Path())
	}
	if err := store.UpsertTape(context.Background(), catalog.Tape{Name: "LTO002", VolumeUUID: "bbbb"}); err != nil {
		t.Fatal(err)
	}

	labeler := environment.Labeler(store)
	if label, ok := labeler.LabelFor("aaaa"); !ok || label != "LTO001" {
		t.Errorf("configured label = %q, %v", label, ok)
	}
	if label, ok := labeler.LabelFor("bbbb"); !ok || label != "LTO002" {
		t.Errorf("catalog label = %q, %v", label, ok)
	}

	if environment.SearchLimit(0) != 1000 || environment.SearchLimit(5) != 5 {
		t.Errorf("SearchLimit = %d / %d", environment.SearchLimit(0), environment.SearchLimit(5))
	}
}

func TestArchiveOpenInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapecat.yaml")
	if err := os.WriteFile(path, []byte("mount:\n  source: tape\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	archive := Archive{ConfigPath: path}
	_, err := archive.Open(&bytes.Buffer{}, "test")
	var commandErr *CommandError
	if !errors.As(err, &commandErr) || commandErr.Category != CategoryValidation {
		t.Errorf("err = %v, want validation error", err)
	}
}
