package sessionstore

import (
	"context"
	"testing"

	"github.com/studyhall/studyhall-go/internal/crypto"
	"github.com/studyhall/studyhall-go/internal/model"
)

func TestMemoryStoreEmptyLoad(t *testing.T) {
	store := NewMemoryStore()

	sess, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if sess != nil {
		t.Error("Load() on an empty store should be nil, nil")
	}
}

func TestMemoryStoreSaveLoadClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := &model.Session{AccessToken: "at", RefreshToken: "rt", ExpiresAt: 123}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if out == nil || out.RefreshToken != "rt" || out.ExpiresAt != 123 {
		t.Errorf("Load() = %+v, want the saved session", out)
	}
	if out == in {
		t.Error("Load() should return a copy, not the stored pointer")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() unexpected error: %v", err)
	}
	out, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if out != nil {
		t.Error("Load() after Clear() should be nil")
	}
}

func TestMemoryStoreSaveIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := &model.Session{AccessToken: "original"}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	in.AccessToken = "mutated"

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if out.AccessToken != "original" {
		t.Error("Save() should copy the session, caller mutation leaked through")
	}
}

func TestNewMySQLStore(t *testing.T) {
	cipher, err := crypto.NewCipher("test-secret")
	if err != nil {
		t.Fatalf("NewCipher() unexpected error: %v", err)
	}

	store := NewMySQLStore(nil, cipher, "client-1")
	if store == nil {
		t.Fatal("expected non-nil MySQLStore")
	}
	if store.clientID != "client-1" {
		t.Errorf("clientID = %q, want client-1", store.clientID)
	}
}
