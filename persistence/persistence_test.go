// Copyright 2026 The Ticl Authors
// SPDX-License-Identifier: Apache-2.0

package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestMemoryStorageRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if _, err := s.Read(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read before any Write: err = %v, want ErrNotFound", err)
	}

	if err := s.Write(ctx, []byte("blob-1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "blob-1" {
		t.Fatalf("Read = %q, want %q", got, "blob-1")
	}
}

func TestFileStorageRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.bin")
	s := NewFileStorage(path)

	if _, err := s.Read(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read before any Write: err = %v, want ErrNotFound", err)
	}

	if err := s.Write(ctx, []byte("blob-1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "blob-1" {
		t.Fatalf("Read = %q, want %q", got, "blob-1")
	}

	if err := s.Write(ctx, []byte("blob-2")); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	got, err = s.Read(ctx)
	if err != nil {
		t.Fatalf("Read after overwrite: %v", err)
	}
	if string(got) != "blob-2" {
		t.Fatalf("Read after overwrite = %q, want %q", got, "blob-2")
	}
}

func TestManagerWriteStateReportsOutcome(t *testing.T) {
	ctx := context.Background()
	m := New(NewMemoryStorage())

	var success bool
	m.WriteState(ctx, []byte("blob"), func(ok bool) { success = ok })
	if !success {
		t.Fatal("WriteState against MemoryStorage should always report success")
	}

	got, err := m.ReadState(ctx)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if string(got) != "blob" {
		t.Fatalf("ReadState = %q, want %q", got, "blob")
	}
}
