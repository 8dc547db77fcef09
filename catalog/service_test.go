package catalog

import (
	"context"
	"errors"
	"testing"
)

func TestService_LookupsRouteByKind(t *testing.T) {
	store := newCountingStore()
	store.entries[KindEventType] = map[string]Entry{"CREATED": {Code: "CREATED", Description: "Dispute created"}}
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.FindReason(ctx, "FRAUD"); err != nil {
		t.Fatalf("find reason: %v", err)
	}
	if _, err := svc.FindStatus(ctx, "PENDING"); err != nil {
		t.Fatalf("find status: %v", err)
	}
	if _, err := svc.FindEventType(ctx, "CREATED"); err != nil {
		t.Fatalf("find event type: %v", err)
	}
	if _, err := svc.FindStatus(ctx, "FRAUD"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for reason code used as status, got %v", err)
	}

	reasons, err := svc.Reasons(ctx)
	if err != nil {
		t.Fatalf("list reasons: %v", err)
	}
	if len(reasons) != 1 || reasons[0].Code != "FRAUD" {
		t.Fatalf("unexpected reasons: %+v", reasons)
	}
}

func TestKind_Table(t *testing.T) {
	for _, k := range Kinds {
		if _, ok := k.table(); !ok {
			t.Fatalf("kind %s has no table", k)
		}
	}
	if _, ok := Kind("bogus").table(); ok {
		t.Fatal("expected unknown kind to have no table")
	}
}
