package db

import (
	"strings"
	"testing"
)

func TestMigrations_OrderedAndComplete(t *testing.T) {
	migrations, err := Migrations()
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected embedded migrations")
	}

	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].Name >= migrations[i].Name {
			t.Fatalf("migrations out of order: %s before %s", migrations[i-1].Name, migrations[i].Name)
		}
	}

	var all strings.Builder
	for _, m := range migrations {
		all.WriteString(m.SQL)
	}
	for _, table := range []string{"dispute_reasons", "dispute_statuses", "dispute_event_types", "transactions", "disputes", "dispute_events", "outbox", "users"} {
		if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("missing table %s in migrations", table)
		}
	}
	for _, code := range []string{"'PENDING'", "'CREATED'", "'STATUS_UPDATED'"} {
		if !strings.Contains(all.String(), code) {
			t.Errorf("seed migration missing %s", code)
		}
	}
}

func TestNewPool_EmptyConnString(t *testing.T) {
	if _, err := NewPool(t.Context(), "", PoolOptions{}); err == nil {
		t.Fatal("expected error for empty connection string")
	}
}
