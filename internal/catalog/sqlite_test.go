package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestSQLiteCatalog(t *testing.T) {
	ctx := context.Background()
	c, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "catalog.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = c.Close() }()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{WorldID: "w1", ColonyID: 1, Name: "Hope", Leader: "Kira", Tiles: 1, Status: "persisted", LastWrite: base},
		{WorldID: "w1", ColonyID: 2, Name: "Ridge", Leader: "Tynan", Tiles: 2, Status: "active", LastWrite: base.Add(time.Minute)},
		{WorldID: "w2", ColonyID: 1, Name: "Elsewhere", Status: "persisted", LastWrite: base},
	}
	for _, r := range records {
		if err := c.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	got, err := c.List(ctx, "w1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	testutil.AssertEqual(t, "count", len(got), 2)
	testutil.AssertEqual(t, "newest first", got[0].ColonyID, 2)
	testutil.AssertEqual(t, "leader", got[0].Leader, "Tynan")
	testutil.AssertEqual(t, "last write", got[0].LastWrite.Equal(base.Add(time.Minute)), true)

	records[0].Name = "New Hope"
	records[0].LastWrite = base.Add(time.Hour)
	if err := c.Upsert(ctx, records[0]); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err = c.List(ctx, "w1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	testutil.AssertEqual(t, "count after update", len(got), 2)
	testutil.AssertEqual(t, "updated first", got[0].Name, "New Hope")

	if err := c.Delete(ctx, "w1", 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = c.List(ctx, "w1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	testutil.AssertEqual(t, "count after delete", len(got), 1)

	other, err := c.List(ctx, "w2")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	testutil.AssertEqual(t, "other world", len(other), 1)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Error("expected error for empty path")
	}
}
