package mysql

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
)

func TestNewStorageRequiresDB(t *testing.T) {
	_, err := NewStorage(nil)
	if !errors.Is(err, ErrDBRequired) {
		t.Fatalf("expected ErrDBRequired, got %v", err)
	}
}

func TestSanitizeTableName(t *testing.T) {
	cases := []struct {
		name  string
		table string
		err   error
	}{
		{name: "simple", table: "opqueue_snapshots"},
		{name: "qualified", table: "client.opqueue_snapshots"},
		{name: "empty", table: "", err: ErrTableNameRequired},
		{name: "spaces", table: "snap shots", err: ErrInvalidTableName},
		{name: "backtick", table: "snapshots`--", err: ErrInvalidTableName},
		{name: "empty part", table: ".snapshots", err: ErrInvalidTableName},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sanitizeTableName(tc.table)
			if tc.err == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tc.table {
					t.Fatalf("expected %q unchanged, got %q", tc.table, got)
				}

				return
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestSchemaShape(t *testing.T) {
	schema, err := Schema("client_snapshots")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, want := range []string{"client_snapshots", "LONGBLOB", "PRIMARY KEY (`key`)"} {
		if !strings.Contains(schema, want) {
			t.Fatalf("expected schema to contain %q, got:\n%s", want, schema)
		}
	}
}

func TestQueriesUpsert(t *testing.T) {
	q := newQueries("snapshots")
	if !strings.Contains(q.set, "ON DUPLICATE KEY UPDATE") {
		t.Fatalf("expected set to upsert, got %q", q.set)
	}
	for _, query := range []string{q.get, q.set, q.remove} {
		if !strings.Contains(query, "snapshots") || !strings.Contains(query, "?") {
			t.Fatalf("unexpected query %q", query)
		}
	}
}

func TestStorageUsesValidatedTable(t *testing.T) {
	storage, err := NewStorage(&sql.DB{}, WithTable("custom_snapshots"))
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	if !strings.Contains(storage.queries.get, "custom_snapshots") {
		t.Fatalf("expected queries bound to the custom table")
	}
}
