package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type rec struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (r rec) GetID() int64 { return r.ID }

func gateways(t *testing.T) map[string]Gateway {
	t.Helper()
	dir := t.TempDir()
	fg, err := NewFileGateway(filepath.Join(dir, "datos"))
	if err != nil {
		t.Fatalf("file gateway: %v", err)
	}
	sg, err := NewSQLiteGateway(filepath.Join(dir, "db", "test.db"))
	if err != nil {
		t.Fatalf("sqlite gateway: %v", err)
	}
	t.Cleanup(func() { sg.Close() })
	return map[string]Gateway{"file": fg, "sqlite": sg}
}

func TestLoadMissingCollectionIsEmpty(t *testing.T) {
	for name, gw := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			recs, err := Load[rec](gw, Tools)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if recs == nil || len(recs) != 0 {
				t.Fatalf("want empty non-nil slice, got %#v", recs)
			}
		})
	}
}

func TestSaveReplacesWholeCollection(t *testing.T) {
	for name, gw := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			if err := Save(gw, Loans, []rec{{1, "a"}, {2, "b"}, {3, "c"}}); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := Save(gw, Loans, []rec{{2, "b2"}}); err != nil {
				t.Fatalf("save again: %v", err)
			}
			recs, err := Load[rec](gw, Loans)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(recs) != 1 || recs[0].Name != "b2" {
				t.Fatalf("want only replaced record, got %#v", recs)
			}
			// other collections are independent
			other, _ := Load[rec](gw, Users)
			if len(other) != 0 {
				t.Fatalf("users should be empty, got %d", len(other))
			}
		})
	}
}

func TestFileGatewayPrettyPrintsAndCleansTemp(t *testing.T) {
	dir := t.TempDir()
	gw, err := NewFileGateway(dir)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	if err := Save(gw, Tools, []rec{{1, "Taladro ñ"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "tools.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "\n  {") || !strings.Contains(string(raw), "Taladro ñ") {
		t.Fatalf("expected indented UTF-8 JSON, got %s", raw)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadRejectsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	gw, _ := NewFileGateway(dir)
	if err := os.WriteFile(filepath.Join(dir, "users.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load[rec](gw, Users); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSQLiteCollectionsAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	gw, err := NewSQLiteGateway(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = Save(gw, Tools, []rec{{1, "saw"}})
	_ = Save(gw, Users, []rec{{1, "ana"}})
	names, err := gw.Collections()
	if err != nil {
		t.Fatalf("collections: %v", err)
	}
	if len(names) != 2 || names[0] != Tools || names[1] != Users {
		t.Fatalf("unexpected collections %v", names)
	}
	gw.Close()

	// migrations are idempotent on reopen
	gw, err = NewSQLiteGateway(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer gw.Close()
	recs, _ := Load[rec](gw, Tools)
	if len(recs) != 1 || recs[0].Name != "saw" {
		t.Fatalf("data lost across reopen: %#v", recs)
	}
}

func TestNextID(t *testing.T) {
	tests := []struct {
		name string
		recs []rec
		want int64
	}{
		{"empty", nil, 1},
		{"sequential", []rec{{1, ""}, {2, ""}}, 3},
		{"gaps", []rec{{7, ""}, {3, ""}}, 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextID(tc.recs); got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}
