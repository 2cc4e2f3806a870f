package storage

import (
	"context"
	"errors"
	"testing"
)

func newTestRepo(t *testing.T) *SnapshotRepo {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := tmpDir + "/test.db"

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return NewSnapshotRepo(db)
}

func TestNewSnapshotRepo(t *testing.T) {
	repo := newTestRepo(t)
	if repo == nil {
		t.Fatal("NewSnapshotRepo() returned nil")
	}
}

func TestSnapshotRepo_LoadMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Load(context.Background(), "visits")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestSnapshotRepo_SaveAndLoad(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	payload := []byte(`{"EW18":{"stationCode":"EW18","visitedDate":"2026-08-30"}}`)
	if err := repo.Save(ctx, "visits", payload); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx, "visits")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Load() = %s, want %s", got, payload)
	}
}

func TestSnapshotRepo_SaveReplaces(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, "visits", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, "visits", []byte(`{"b":2}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx, "visits")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != `{"b":2}` {
		t.Errorf("Load() after second Save() = %s, want {\"b\":2}", got)
	}
}

func TestSnapshotRepo_KeysIndependent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, "visits", []byte("v")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, "other", []byte("o")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx, "visits")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Load(visits) = %s, want v", got)
	}
}
