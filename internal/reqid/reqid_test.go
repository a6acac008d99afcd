package reqid

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Fatalf("expected %q from context, got %q ok=%v", id, got, ok)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("id is not a uuid: %v", err)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("unexpected id in empty context")
	}
}

func TestWithID(t *testing.T) {
	got, ok := FromContext(WithID(context.Background(), "abc"))
	if !ok || got != "abc" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	if _, ok := FromContext(WithID(context.Background(), "")); ok {
		t.Fatalf("empty id should not count as present")
	}
}
