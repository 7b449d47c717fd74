package dedup

import (
	"context"
	"testing"
)

func TestMemoryDeduplicator(t *testing.T) {
	d := NewMemory()
	ctx := context.Background()

	executed, err := d.IsExecuted(ctx, "chat", "e1")
	if err != nil {
		t.Fatalf("IsExecuted: %v", err)
	}
	if executed {
		t.Fatal("fresh key must not be marked")
	}

	if err := d.Save(ctx, "chat", "e1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if executed, _ = d.IsExecuted(ctx, "chat", "e1"); !executed {
		t.Error("saved key must be marked")
	}
}

func TestMemoryDeduplicatorNamespacesAreIsolated(t *testing.T) {
	d := NewMemory()
	ctx := context.Background()

	if err := d.Save(ctx, "chat", "e1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if executed, _ := d.IsExecuted(ctx, "review", "e1"); executed {
		t.Error("same key in another namespace must stay unmarked")
	}
}
