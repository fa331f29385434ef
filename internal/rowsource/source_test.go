package rowsource

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/rzpsarthak13/ultratable/internal/coltype"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/registry"
	"github.com/rzpsarthak13/ultratable/internal/table"
)

func openMemory(t *testing.T) (*Source, *table.Workspace) {
	t.Helper()
	reg, err := coltype.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	db, err := sql.Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return New(db, DriverSQLite, reg, 0), table.NewWorkspace(reg)
}

var productColumns = []core.Column{
	{ID: "name", Name: "Name", Type: "text"},
	{ID: "price", Name: "Price", Type: "currency"},
	{ID: "active", Name: "Active", Type: "checkbox"},
	{ID: "tags", Name: "Tags", Type: "tags"},
	{ID: "no", Name: "No", Type: "auto_number"},
}

func TestSaveAndLoad(t *testing.T) {
	src, ws := openMemory(t)
	ctx := context.Background()

	products, err := ws.CreateTable(ctx, core.Schema{TableID: "products", Columns: productColumns})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	lamp, err := products.Insert(ctx, map[string]core.Value{
		"name":   core.Text("lamp"),
		"price":  core.Number(12.5),
		"active": core.Bool(true),
		"tags":   core.List(core.Text("home"), core.Text("light")),
	}, "u1")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := products.Insert(ctx, map[string]core.Value{"name": core.Text("desk")}, "u1"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	n, err := src.Save(ctx, products, "products")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != 2 {
		t.Fatalf("saved %d rows, want 2", n)
	}
	// Saving twice replaces rather than duplicates.
	if _, err := src.Save(ctx, products, "products"); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	restored, err := ws.CreateTable(ctx, core.Schema{TableID: "restored", Columns: productColumns})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	n, err = src.Load(ctx, restored, "products")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d rows, want 2", n)
	}

	row, ok := restored.Row(lamp.ID)
	if !ok {
		t.Fatalf("row %s not restored with its id", lamp.ID)
	}
	for _, id := range []string{"name", "price", "active", "tags"} {
		if !row.Get(id).Equal(lamp.Get(id)) {
			t.Fatalf("%s = %v, want %v", id, row.Get(id), lamp.Get(id))
		}
	}

	tables, err := src.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	if len(tables) != 1 || tables[0] != "products" {
		t.Fatalf("Tables = %v", tables)
	}
}

func TestLoadNativeTable(t *testing.T) {
	src, ws := openMemory(t)
	ctx := context.Background()

	for _, stmt := range []string{
		"CREATE TABLE inventory (id TEXT PRIMARY KEY, Name TEXT, price REAL, active INTEGER, note TEXT)",
		"INSERT INTO inventory VALUES ('a1', 'chair', 40.25, 1, 'ignored')",
		"INSERT INTO inventory VALUES ('a2', 'stool', NULL, 0, NULL)",
	} {
		if _, err := src.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}

	tbl, err := ws.CreateTable(ctx, core.Schema{TableID: "inventory", Columns: productColumns})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := src.Load(ctx, tbl, "inventory"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	chair, ok := tbl.Row("a1")
	if !ok {
		t.Fatalf("row a1 missing")
	}
	if !chair.Get("name").Equal(core.Text("chair")) || !chair.Get("price").Equal(core.Number(40.25)) || !chair.Get("active").Equal(core.Bool(true)) {
		t.Fatalf("chair = %v", chair.Cells)
	}
	stool, _ := tbl.Row("a2")
	if !stool.Get("price").IsNull() || !stool.Get("active").Equal(core.Bool(false)) {
		t.Fatalf("stool = %v", stool.Cells)
	}
}

func TestOpenValidatesDriver(t *testing.T) {
	reg, _ := coltype.NewRegistry()
	if _, err := Open(registry.InternalRowSourceConfig{}, reg); !errors.Is(err, ErrNoDriver) {
		t.Fatalf("no driver: err = %v", err)
	}
	if _, err := Open(registry.InternalRowSourceConfig{Driver: "postgres", DSN: "x"}, reg); err == nil {
		t.Fatalf("unsupported driver accepted")
	}
	if _, err := Open(registry.InternalRowSourceConfig{Driver: DriverMySQL, DSN: "not a dsn"}, reg); err == nil {
		t.Fatalf("malformed mysql dsn accepted")
	}
	src, err := Open(registry.InternalRowSourceConfig{Driver: DriverSQLite, DSN: ":memory:"}, reg)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	src.Close()
}
