package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sl-go/internal/sl"
)

func TestRecordStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create get patch", func(t *testing.T) {
		store := newTestDB(t).Records()

		id, err := store.Create(ctx, sl.RelVolumes, sl.Properties{
			sl.PropName:       sl.Title("NXT 01"),
			sl.PropCapacityGB: sl.Number(931.51),
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if err := store.Patch(ctx, id, sl.Properties{sl.PropUsedGB: sl.Number(10)}); err != nil {
			t.Fatalf("Patch() error = %v", err)
		}

		rec, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if rec.Relation != sl.RelVolumes || rec.Name() != "NXT 01" {
			t.Errorf("record = %+v", rec)
		}
		if rec.Properties.Float(sl.PropCapacityGB) != 931.51 || rec.Properties.Float(sl.PropUsedGB) != 10 {
			t.Errorf("properties = %v", rec.Properties)
		}
	})

	t.Run("renaming through patch updates title queries", func(t *testing.T) {
		store := newTestDB(t).Records()

		id, _ := store.Create(ctx, sl.RelVolumes, sl.Properties{sl.PropName: sl.Title("old")})
		if err := store.Patch(ctx, id, sl.Properties{sl.PropName: sl.Title("new")}); err != nil {
			t.Fatalf("Patch() error = %v", err)
		}

		page, err := store.Query(ctx, sl.RelVolumes, sl.Filter{Property: sl.PropName, Equals: "new"}, "")
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(page.Records) != 1 || page.Records[0].ID != id {
			t.Errorf("Query(new) returned %d records", len(page.Records))
		}
	})

	t.Run("query filters by relation contains", func(t *testing.T) {
		store := newTestDB(t).Records()

		store.Create(ctx, sl.RelStorageEntries, sl.Properties{sl.PropName: sl.Title("a"), sl.PropVolume: sl.RelationTo("v1")})
		store.Create(ctx, sl.RelStorageEntries, sl.Properties{sl.PropName: sl.Title("b"), sl.PropVolume: sl.RelationTo("v2")})
		store.Create(ctx, sl.RelVolumes, sl.Properties{sl.PropName: sl.Title("v1")})

		page, err := store.Query(ctx, sl.RelStorageEntries, sl.Filter{Property: sl.PropVolume, Contains: "v1"}, "")
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(page.Records) != 1 || page.Records[0].Name() != "a" {
			t.Errorf("Query() = %d records", len(page.Records))
		}
	})

	t.Run("pages through large relations", func(t *testing.T) {
		store := newTestDB(t).Records()

		total := recordPageSize + 5
		for i := 0; i < total; i++ {
			if _, err := store.Create(ctx, sl.RelLogEntries, sl.Properties{sl.PropName: sl.Title(fmt.Sprintf("log-%d", i))}); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
		}

		first, err := store.Query(ctx, sl.RelLogEntries, sl.Filter{}, "")
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(first.Records) != recordPageSize || !first.HasMore || first.NextCursor == "" {
			t.Fatalf("first page = %d records, has_more %v", len(first.Records), first.HasMore)
		}

		second, err := store.Query(ctx, sl.RelLogEntries, sl.Filter{}, first.NextCursor)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(second.Records) != 5 || second.HasMore {
			t.Errorf("second page = %d records, has_more %v", len(second.Records), second.HasMore)
		}
		if second.Records[0].Name() != fmt.Sprintf("log-%d", recordPageSize) {
			t.Errorf("second page starts at %q", second.Records[0].Name())
		}
	})

	t.Run("archived records are hidden", func(t *testing.T) {
		store := newTestDB(t).Records()

		id, _ := store.Create(ctx, sl.RelVolumes, sl.Properties{sl.PropName: sl.Title("NXT 01")})
		if err := store.Archive(ctx, id); err != nil {
			t.Fatalf("Archive() error = %v", err)
		}

		if _, err := store.Get(ctx, id); !errors.Is(err, sl.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
		if err := store.Archive(ctx, id); !errors.Is(err, sl.ErrNotFound) {
			t.Errorf("second Archive() error = %v, want ErrNotFound", err)
		}
		if err := store.Patch(ctx, id, sl.Properties{}); !errors.Is(err, sl.ErrNotFound) {
			t.Errorf("Patch() error = %v, want ErrNotFound", err)
		}
		page, _ := store.Query(ctx, sl.RelVolumes, sl.Filter{}, "")
		if len(page.Records) != 0 {
			t.Errorf("Query() returned %d archived records", len(page.Records))
		}
	})

	t.Run("invalid cursor", func(t *testing.T) {
		store := newTestDB(t).Records()
		if _, err := store.Query(ctx, sl.RelVolumes, sl.Filter{}, "abc"); err == nil {
			t.Error("Query() expected error for invalid cursor")
		}
	})
}
