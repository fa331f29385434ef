package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rzpsarthak13/ultratable/internal/coltype"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/query"
	"github.com/rzpsarthak13/ultratable/internal/table"
)

const shopYAML = `
tables:
  - id: items
    name: Items
    columns:
      - {id: name, name: Name, type: text}
      - {id: price, name: Price, type: currency}
      - {id: qty, name: Qty, type: number}
      - id: total
        name: Total
        type: formula
        config: {expression: "{price} * {qty}", returnType: number}
      - {id: added, name: Added, type: date}
    rows:
      - id: i1
        cells: {name: pen, price: 2.5, qty: 4, added: 2024-03-01}
      - id: i2
        cells: {Name: ink, price: "10", qty: 1}
  - id: carts
    columns:
      - id: lines
        name: Lines
        type: relation
        config: {targetTableId: items}
      - id: spend
        name: Spend
        type: rollup
        config: {relationFieldId: lines, rollupFieldId: total, aggregation: sum}
    rows:
      - id: c1
        cells:
          lines: [{id: i1}, {id: i2}]
`

func writeShop(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.yaml")
	if err := os.WriteFile(path, []byte(shopYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func loadShop(t *testing.T, path string) *table.Workspace {
	t.Helper()
	reg, err := coltype.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	f, err := readWorkspaceFile(path)
	if err != nil {
		t.Fatalf("readWorkspaceFile: %v", err)
	}
	ws := table.NewWorkspace(reg)
	if err := loadWorkspace(context.Background(), ws, f); err != nil {
		t.Fatalf("loadWorkspace: %v", err)
	}
	return ws
}

func mustTable(t *testing.T, ws *table.Workspace, id string) *table.Table {
	t.Helper()
	tbl, err := ws.Table(id)
	if err != nil {
		t.Fatalf("Table %s: %v", id, err)
	}
	return tbl
}

func TestLoadWorkspaceParsesCells(t *testing.T) {
	ws := loadShop(t, writeShop(t))
	items := mustTable(t, ws, "items")

	pen, ok := items.Row("i1")
	if !ok {
		t.Fatalf("row i1 missing")
	}
	if !pen.Get("added").Equal(core.Text("2024-03-01")) {
		t.Fatalf("added = %v", pen.Get("added"))
	}
	ink, _ := items.Row("i2")
	if !ink.Get("price").Equal(core.Number(10)) || !ink.Get("name").Equal(core.Text("ink")) {
		t.Fatalf("ink = %v", ink.Cells)
	}

	carts := mustTable(t, ws, "carts")
	spend, err := carts.Cell(context.Background(), "c1", "spend")
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if !spend.Equal(core.Number(20)) {
		t.Fatalf("spend = %v, want 20", spend)
	}
}

func TestLoadWorkspaceRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("tables:\n  - id: t\n    columns: [{id: n, type: number}]\n    rows: [{cells: {n: lots}}]\n"), 0o644)
	reg, _ := coltype.NewRegistry()
	f, err := readWorkspaceFile(path)
	if err != nil {
		t.Fatalf("readWorkspaceFile: %v", err)
	}
	if err := loadWorkspace(context.Background(), table.NewWorkspace(reg), f); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("loadWorkspace: err = %v, want ErrInvalidValue", err)
	}
}

func TestEvalRows(t *testing.T) {
	ws := loadShop(t, writeShop(t))
	items := mustTable(t, ws, "items")

	rows, err := selectRows(items, []string{"i2"})
	if err != nil {
		t.Fatalf("selectRows: %v", err)
	}
	s, err := evalRows(context.Background(), items, rows)
	if err != nil {
		t.Fatalf("evalRows: %v", err)
	}
	if strings.Join(s.Columns, ",") != "Name,Price,Qty,Total,Added" {
		t.Fatalf("columns = %v", s.Columns)
	}
	if len(s.Rows) != 1 || s.Rows[0][0] != "ink" || s.Rows[0][3] != "10" {
		t.Fatalf("rows = %v", s.Rows)
	}
	if _, err := selectRows(items, []string{"nope"}); !errors.Is(err, table.ErrRowNotFound) {
		t.Fatalf("selectRows unknown: err = %v", err)
	}

	var buf bytes.Buffer
	s.Show(&buf)
	if !strings.HasPrefix(buf.String(), "Name") || !strings.Contains(buf.String(), "ink") {
		t.Fatalf("Show = %q", buf.String())
	}
}

func TestSummarize(t *testing.T) {
	ws := loadShop(t, writeShop(t))
	items := mustTable(t, ws, "items")

	kinds, err := parseAggregations(items, []string{"Price=sum", "qty = max"})
	if err != nil {
		t.Fatalf("parseAggregations: %v", err)
	}
	s, err := summarize(context.Background(), items, kinds)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(s.Rows) != 2 || s.Rows[0][0] != "Price" || s.Rows[0][2] != "$12.50" || s.Rows[1][2] != "4" {
		t.Fatalf("summary = %v", s.Rows)
	}

	if _, err := parseAggregations(items, []string{"price"}); err == nil {
		t.Fatalf("aggregation without kind accepted")
	}
	defaults, err := parseAggregations(items, nil)
	if err != nil {
		t.Fatalf("default aggregations: %v", err)
	}
	if _, ok := defaults["price"]; !ok {
		t.Fatalf("defaults = %v, want price included", defaults)
	}
}

func TestRunQuery(t *testing.T) {
	ws := loadShop(t, writeShop(t))
	items := mustTable(t, ws, "items")

	s, err := runQuery(context.Background(), items, query.Request{Filter: "price > 5.0"})
	if err != nil {
		t.Fatalf("runQuery: %v", err)
	}
	if s.Total != 1 || s.Rows[0][0] != "ink" {
		t.Fatalf("result = %+v", s)
	}
	s, err = runQuery(context.Background(), items, query.Request{OrderBy: "price desc", Limit: 1})
	if err != nil {
		t.Fatalf("runQuery: %v", err)
	}
	if s.Total != 2 || len(s.Rows) != 1 || s.Rows[0][0] != "ink" {
		t.Fatalf("ordered result = %+v", s)
	}
	if _, err := runQuery(context.Background(), items, query.Request{Filter: "price >"}); err == nil {
		t.Fatalf("malformed filter accepted")
	}
}

func TestImportAndWriteBack(t *testing.T) {
	path := writeShop(t)
	ws := loadShop(t, path)
	items := mustTable(t, ws, "items")

	res := importRows(context.Background(), items, strings.NewReader("Name,Price,Qty\ncup,3,2\nbowl,cheap,1\n"), "cli")
	if res.Imported != 2 || len(res.Problems) != 1 {
		t.Fatalf("import = %+v", res)
	}

	if err := writeWorkspaceFile(path, encodeWorkspace(ws)); err != nil {
		t.Fatalf("writeWorkspaceFile: %v", err)
	}
	reloaded := mustTable(t, loadShop(t, path), "items")
	if reloaded.Len() != 4 {
		t.Fatalf("reloaded rows = %d, want 4", reloaded.Len())
	}
	got, err := reloaded.Filter(context.Background(), reloaded.Rows(), table.Condition{Column: "name", Operator: core.OpEquals, Value: core.Text("cup")})
	if err != nil || len(got) != 1 {
		t.Fatalf("Filter cup = %v, %v", got, err)
	}
	if got[0].Meta.CreatedBy != "cli" {
		t.Fatalf("created by = %q, want cli", got[0].Meta.CreatedBy)
	}
	total, _ := reloaded.Cell(context.Background(), got[0].ID, "total")
	if !total.Equal(core.Number(6)) {
		t.Fatalf("total = %v, want 6", total)
	}
}

func TestListTypes(t *testing.T) {
	reg, _ := coltype.NewRegistry()
	all, err := listTypes(reg, "")
	if err != nil || len(all) != reg.Count() {
		t.Fatalf("listTypes = %d, %v", len(all), err)
	}
	visual, err := listTypes(reg, "visual")
	if err != nil {
		t.Fatalf("listTypes visual: %v", err)
	}
	for _, ti := range visual {
		if ti.Category != core.CategoryVisual {
			t.Fatalf("type %s in visual listing", ti.ID)
		}
	}
	if _, err := listTypes(reg, "bogus"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("bogus category: err = %v", err)
	}
}
