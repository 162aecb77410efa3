package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWAL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_wal.db")

	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer w.Close()

	t.Run("WriteEntry then ReplayBeforeCommit", func(t *testing.T) {
		if err := w.WriteEntry([]byte("key1"), []byte("value1")); err != nil {
			t.Fatalf("WriteEntry failed: %v", err)
		}
		entries, err := w.Replay()
		if err != nil {
			t.Fatalf("Replay failed: %v", err)
		}
		if len(entries) != 1 || string(entries[0].Key) != "key1" || string(entries[0].Value) != "value1" {
			t.Fatalf("unexpected replay data: %+v", entries)
		}
		if w.Committed() {
			t.Fatalf("expected uncommitted log")
		}
	})

	t.Run("MarkCommitted then ReplayAfterCommit", func(t *testing.T) {
		if err := w.MarkCommitted(); err != nil {
			t.Fatalf("MarkCommitted failed: %v", err)
		}
		if !w.Committed() {
			t.Fatalf("expected committed log")
		}
		entries, err := w.Replay()
		if err != nil {
			t.Fatalf("Replay failed: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected no entries after commit, got: %+v", entries)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := w.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		entries, err := w.Replay()
		if err != nil {
			t.Fatalf("Replay failed after Clear: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected no entries after Clear, got: %+v", entries)
		}
	})

	t.Run("WriteDelete staged then cleared", func(t *testing.T) {
		if err := w.WriteDelete([]byte("deletedKey")); err != nil {
			t.Fatalf("WriteDelete failed: %v", err)
		}
		entries, err := w.Replay()
		if err != nil {
			t.Fatalf("Replay failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Op != OpDelete || string(entries[0].Key) != "deletedKey" {
			t.Fatalf("unexpected replay data: %+v", entries)
		}
	})
}

func TestWALSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen_wal.db")

	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := w.WriteEntry([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("WriteEntry failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	w2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer w2.Close()
	entries, err := w2.Replay()
	if err != nil {
		t.Fatalf("Replay after reopen failed: %v", err)
	}
	if len(entries) != 1 || string(entries[0].Key) != "k" {
		t.Fatalf("unexpected entries after reopen: %+v", entries)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("wal file missing: %v", err)
	}
}
