package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := Data{UserID: 7, Username: "alex", CreatedAt: time.Now()}
	if err := store.Save(ctx, "tok", data, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Lookup(ctx, "tok")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.UserID != 7 || got.Username != "alex" {
		t.Fatalf("lookup = %+v", got)
	}

	if err := store.Delete(ctx, "tok"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Lookup(ctx, "tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup after delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "tok", Data{Username: "alex"}, -time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Lookup(ctx, "tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired lookup: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreUnknownToken(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Lookup(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
