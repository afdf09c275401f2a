package source

import (
	"testing"
	"time"

	"github.com/go-mysql-org/go-mysql/schema"
)

func TestCdcEventToRowMergesDataAndOldData(t *testing.T) {
	ts := time.Unix(0, 0)
	row := cdcEventToRow(cdcEvent{
		kind: "update", database: "app", table: "users", timestamp: ts,
		data:    map[string]any{"id": 1, "name": "new"},
		oldData: map[string]any{"id": 1, "name": "old"},
	})

	if row["_cdc_type"] != "update" || row["_database"] != "app" || row["_table"] != "users" {
		t.Fatalf("missing envelope fields: %v", row)
	}
	if row["name"] != "new" {
		t.Errorf("expected current data merged in, got %v", row["name"])
	}
	old, ok := row["_old_data"].(map[string]any)
	if !ok || old["name"] != "old" {
		t.Errorf("expected _old_data to carry prior values, got %v", row["_old_data"])
	}
}

func TestCdcEventToRowOmitsOldDataWhenAbsent(t *testing.T) {
	row := cdcEventToRow(cdcEvent{kind: "insert", data: map[string]any{"id": 2}})
	if _, ok := row["_old_data"]; ok {
		t.Errorf("expected no _old_data for an insert, got %v", row["_old_data"])
	}
}

func TestRowToMapConvertsByteSlicesToStrings(t *testing.T) {
	cols := []schema.TableColumn{{Name: "id"}, {Name: "label"}}
	row := rowToMap(cols, []any{int64(1), []byte("hello")})

	if row["id"] != int64(1) {
		t.Errorf("expected id preserved, got %v", row["id"])
	}
	if row["label"] != "hello" {
		t.Errorf("expected byte slice decoded to string, got %#v", row["label"])
	}
}

func TestRowToMapIgnoresShortRows(t *testing.T) {
	cols := []schema.TableColumn{{Name: "id"}, {Name: "label"}}
	row := rowToMap(cols, []any{int64(1)})
	if _, ok := row["label"]; ok {
		t.Errorf("expected no entry for a column past the row's length")
	}
}
