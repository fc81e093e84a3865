package reports

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestMemoryObjectStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryObjectStore()

	if err := store.Put(ctx, "wrk_rpt_1.txt", []byte("body")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "other.txt", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := store.Get(ctx, "wrk_rpt_1.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "body" {
		t.Fatalf("unexpected body %q", data)
	}
	// The returned slice is a copy.
	data[0] = 'X'
	again, _ := store.Get(ctx, "wrk_rpt_1.txt")
	if string(again) != "body" {
		t.Fatalf("stored object aliased: %q", again)
	}

	names, err := store.List(ctx, "wrk_")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "wrk_rpt_1.txt" {
		t.Fatalf("unexpected listing %v", names)
	}

	if err := store.Delete(ctx, "wrk_rpt_1.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "wrk_rpt_1.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
	if err := store.Delete(ctx, "wrk_rpt_1.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("double delete should report os.ErrNotExist, got %v", err)
	}
}

func TestFSObjectStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSObjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := store.Put(ctx, "wrk_rpt_1.txt", []byte("body")); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := store.Get(ctx, "wrk_rpt_1.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "body" {
		t.Fatalf("unexpected body %q", data)
	}

	names, err := store.List(ctx, "wrk_")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 {
		t.Fatalf("unexpected listing %v", names)
	}

	if err := store.Delete(ctx, "wrk_rpt_1.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "wrk_rpt_1.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestFSObjectStoreRejectsPathTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSObjectStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, name := range []string{"../escape.txt", "a/b.txt", `a\b.txt`, ".."} {
		if err := store.Put(ctx, name, []byte("x")); err == nil {
			t.Errorf("name %q should be rejected", name)
		}
	}
}

func TestOpenObjectStoreFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to memory", func(t *testing.T) {
		t.Setenv(EnvReportStore, "")
		store, err := OpenObjectStoreFromEnv(ctx)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, ok := store.(*MemoryObjectStore); !ok {
			t.Fatalf("expected memory store, got %T", store)
		}
	})

	t.Run("fs requires a directory", func(t *testing.T) {
		t.Setenv(EnvReportStore, "fs")
		t.Setenv(EnvReportDir, "")
		if _, err := OpenObjectStoreFromEnv(ctx); err == nil {
			t.Fatalf("fs without %s should fail", EnvReportDir)
		}
		t.Setenv(EnvReportDir, t.TempDir())
		store, err := OpenObjectStoreFromEnv(ctx)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if _, ok := store.(*FSObjectStore); !ok {
			t.Fatalf("expected fs store, got %T", store)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv(EnvReportStore, "carrier-pigeon")
		if _, err := OpenObjectStoreFromEnv(ctx); err == nil {
			t.Fatalf("unknown driver should fail")
		}
	})
}
