package table

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/changefeed"
	"github.com/rzpsarthak13/ultratable/internal/coltype"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/formula"
	"github.com/rzpsarthak13/ultratable/internal/kvstore"
	"github.com/rzpsarthak13/ultratable/internal/rollup"
)

func newWorkspace(t *testing.T, opts ...Option) *Workspace {
	t.Helper()
	reg, err := coltype.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	clock := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return clock })}, opts...)
	return NewWorkspace(reg, opts...)
}

func ordersTable(t *testing.T, ws *Workspace) *Table {
	t.Helper()
	tbl, err := ws.CreateTable(context.Background(), core.Schema{
		TableID: "orders",
		Name:    "Orders",
		Columns: []core.Column{
			{ID: "item", Name: "Item", Type: "text"},
			{ID: "price", Name: "Price", Type: "currency"},
			{ID: "qty", Name: "Qty", Type: "number"},
			{ID: "total", Name: "Total", Type: "formula", Config: core.Config{"expression": "{price} * {Qty}", "returnType": "number"}},
			{ID: "seq", Name: "No", Type: "auto_number", Config: core.Config{"start": 100}},
		},
	})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return tbl
}

func insert(t *testing.T, tbl *Table, cells map[string]core.Value) core.Row {
	t.Helper()
	row, err := tbl.Insert(context.Background(), cells, "u1")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return row
}

func TestInsertAssignsDefaultsAndSequence(t *testing.T) {
	ws := newWorkspace(t)
	tbl := ordersTable(t, ws)

	a := insert(t, tbl, map[string]core.Value{"item": core.Text("pen"), "Price": core.Number(3)})
	b := insert(t, tbl, map[string]core.Value{"item": core.Text("ink")})

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("row ids = %q, %q", a.ID, b.ID)
	}
	if n, _ := a.Get("seq").AsNumber(); n != 100 {
		t.Fatalf("first auto number = %v, want 100", a.Get("seq"))
	}
	if n, _ := b.Get("seq").AsNumber(); n != 101 {
		t.Fatalf("second auto number = %v, want 101", b.Get("seq"))
	}
	if v := a.Get("price"); !v.Equal(core.Number(3)) {
		t.Fatalf("price stored under column id = %v", v)
	}
	if a.Meta.CreatedBy != "u1" || a.Meta.CreatedAt.IsZero() {
		t.Fatalf("meta = %+v", a.Meta)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}
}

func TestInsertRejectsInvalidAndReadOnly(t *testing.T) {
	ws := newWorkspace(t)
	tbl := ordersTable(t, ws)
	ctx := context.Background()

	if _, err := tbl.Insert(ctx, map[string]core.Value{"qty": core.Text("many")}, ""); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("text in number column: err = %v, want ErrInvalidValue", err)
	}
	if _, err := tbl.Insert(ctx, map[string]core.Value{"total": core.Number(1)}, ""); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("write to formula: err = %v, want ErrReadOnly", err)
	}
	if _, err := tbl.Insert(ctx, map[string]core.Value{"nope": core.Number(1)}, ""); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("unknown column: err = %v, want ErrColumnNotFound", err)
	}
	if tbl.Len() != 0 {
		t.Fatalf("rejected inserts left %d rows", tbl.Len())
	}
}

func TestFormulaCell(t *testing.T) {
	ws := newWorkspace(t)
	tbl := ordersTable(t, ws)
	ctx := context.Background()
	row := insert(t, tbl, map[string]core.Value{"price": core.Number(10), "qty": core.Number(3)})

	v, err := tbl.Cell(ctx, row.ID, "total")
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if !v.Equal(core.Number(30)) {
		t.Fatalf("total = %v, want 30", v)
	}

	if err := tbl.SetCell(ctx, row.ID, "qty", core.Null(), "u2"); err != nil {
		t.Fatalf("SetCell: %v", err)
	}
	v, _ = tbl.Cell(ctx, row.ID, "total")
	if !formula.IsError(v) && !v.Equal(core.Number(0)) {
		t.Fatalf("total with empty qty = %v", v)
	}
}

func TestFormulaCycleYieldsErrorMarker(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	tbl, err := ws.CreateTable(ctx, core.Schema{TableID: "loop", Columns: []core.Column{
		{ID: "a", Name: "A", Type: "formula", Config: core.Config{"expression": "{b} + 1", "returnType": "number"}},
		{ID: "b", Name: "B", Type: "formula", Config: core.Config{"expression": "{a} + 1", "returnType": "number"}},
	}})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	row := insert(t, tbl, nil)
	v, err := tbl.Cell(ctx, row.ID, "a")
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if !formula.IsError(v) {
		t.Fatalf("cyclic formula = %v, want error marker", v)
	}
}

func TestSystemColumns(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	tbl, err := ws.CreateTable(ctx, core.Schema{TableID: "notes", Columns: []core.Column{
		{ID: "body", Type: "text"},
		{ID: "created", Type: "created_time"},
		{ID: "author", Type: "created_by"},
		{ID: "editor", Type: "modified_by"},
	}})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	row := insert(t, tbl, map[string]core.Value{"body": core.Text("hi")})
	if err := tbl.SetCellText(ctx, row.ID, "body", "hello", "u2"); err != nil {
		t.Fatalf("SetCellText: %v", err)
	}

	created, _ := tbl.Cell(ctx, row.ID, "created")
	if s, _ := created.AsText(); s != "2024-03-01T09:30:00Z" {
		t.Fatalf("created_time = %v", created)
	}
	author, _ := tbl.Cell(ctx, row.ID, "author")
	editor, _ := tbl.Cell(ctx, row.ID, "editor")
	if !author.Equal(core.Text("u1")) || !editor.Equal(core.Text("u2")) {
		t.Fatalf("author = %v, editor = %v", author, editor)
	}
	if err := tbl.SetCell(ctx, row.ID, "created", core.Text("x"), ""); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("write to created_time: err = %v, want ErrReadOnly", err)
	}
}

func TestFormattedCellFallsBackForUnknownType(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	tbl, err := ws.CreateTable(ctx, core.Schema{TableID: "legacy", Columns: []core.Column{
		{ID: "old", Name: "Old", Type: "sparkline"},
	}})
	if err != nil {
		t.Fatalf("CreateTable with unknown type: %v", err)
	}
	if err := tbl.Load(ctx, []core.Row{{ID: "r1", Cells: map[string]core.Value{"old": core.Number(4.5)}}}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := tbl.FormattedCell(ctx, "r1", "old")
	if err != nil {
		t.Fatalf("FormattedCell: %v", err)
	}
	if got != "4.5" {
		t.Fatalf("FormattedCell = %q, want 4.5", got)
	}
	if _, err := tbl.AddColumn(ctx, core.Column{Type: "sparkline"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("AddColumn unknown type: err = %v, want ErrUnknownType", err)
	}
}

func TestColumnLifecycle(t *testing.T) {
	ws := newWorkspace(t)
	tbl := ordersTable(t, ws)
	ctx := context.Background()
	a := insert(t, tbl, map[string]core.Value{"qty": core.Number(2)})
	insert(t, tbl, map[string]core.Value{"qty": core.Number(5)})

	col, err := tbl.AddColumn(ctx, core.Column{ID: "ticket", Type: "auto_number"})
	if err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if col.Name != "Auto number" {
		t.Fatalf("default column name = %q", col.Name)
	}
	if v, _ := tbl.Cell(ctx, a.ID, "ticket"); !v.Equal(core.Number(1)) {
		t.Fatalf("backfilled auto number = %v, want 1", v)
	}

	if _, err := tbl.AddColumn(ctx, core.Column{ID: "bad", Type: "formula", Config: core.Config{"expression": "{ghost} + 1"}}); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("formula with unknown field: err = %v, want ErrInvalidValue", err)
	}

	conv, err := tbl.ConvertColumn(ctx, "qty", "text", nil)
	if err != nil {
		t.Fatalf("ConvertColumn: %v", err)
	}
	if conv.Type != "text" {
		t.Fatalf("converted type = %q", conv.Type)
	}
	if v, _ := tbl.Cell(ctx, a.ID, "qty"); !v.Equal(core.Text("2")) {
		t.Fatalf("converted value = %v, want text 2", v)
	}

	purged, err := tbl.DeleteColumn(ctx, "qty")
	if err != nil {
		t.Fatalf("DeleteColumn: %v", err)
	}
	if purged != 2 {
		t.Fatalf("purged = %d, want 2", purged)
	}
	row, _ := tbl.Row(a.ID)
	if _, ok := row.Cells["qty"]; ok {
		t.Fatalf("deleted column still stored on row")
	}
}

func TestSortKeepsEmptyLast(t *testing.T) {
	ws := newWorkspace(t)
	tbl := ordersTable(t, ws)
	ctx := context.Background()
	for _, q := range []core.Value{core.Number(2), core.Null(), core.Number(9), core.Number(5)} {
		insert(t, tbl, map[string]core.Value{"qty": q})
	}

	qtys := func(rows []core.Row) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.Get("qty").String()
		}
		return out
	}

	asc, err := tbl.Sort(ctx, tbl.Rows(), SortKey{Column: "qty"})
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if got := qtys(asc); got[0] != "2" || got[2] != "9" || got[3] != "" {
		t.Fatalf("ascending = %v", got)
	}
	desc, err := tbl.Sort(ctx, tbl.Rows(), SortKey{Column: "Qty", Descending: true})
	if err != nil {
		t.Fatalf("Sort desc: %v", err)
	}
	if got := qtys(desc); got[0] != "9" || got[2] != "2" || got[3] != "" {
		t.Fatalf("descending = %v", got)
	}
}

func TestFilterAndAggregate(t *testing.T) {
	ws := newWorkspace(t)
	tbl := ordersTable(t, ws)
	ctx := context.Background()
	insert(t, tbl, map[string]core.Value{"item": core.Text("pen"), "price": core.Number(5)})
	insert(t, tbl, map[string]core.Value{"item": core.Text("pencil")})
	insert(t, tbl, map[string]core.Value{"item": core.Text("ink"), "price": core.Number(15)})

	rows, err := tbl.Filter(ctx, tbl.Rows(), Condition{Column: "item", Operator: core.OpStartsWith, Value: core.Text("pen")})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Filter matched %d rows, want 2", len(rows))
	}

	sum, err := tbl.Aggregate(ctx, "price", core.AggSum)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !sum.Equal(core.Number(20)) {
		t.Fatalf("sum = %v, want 20", sum)
	}

	sums, err := tbl.Summaries(ctx, tbl.Rows(), map[string]core.AggregationKind{
		"price": core.AggAvg,
		"Item":  core.AggCountNotEmpty,
	})
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if !sums["price"].Equal(core.Number(10)) || !sums["item"].Equal(core.Number(3)) {
		t.Fatalf("Summaries = %v", sums)
	}
}

func TestGroupBy(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	tbl, err := ws.CreateTable(ctx, core.Schema{TableID: "tasks", Columns: []core.Column{
		{ID: "title", Type: "text"},
		{ID: "status", Type: "status"},
	}})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	insert(t, tbl, map[string]core.Value{"title": core.Text("a"), "status": core.Text("done")})
	insert(t, tbl, map[string]core.Value{"title": core.Text("b")})
	insert(t, tbl, map[string]core.Value{"title": core.Text("c"), "status": core.Text("done")})
	row := insert(t, tbl, map[string]core.Value{"title": core.Text("d")})
	if err := tbl.SetCell(ctx, row.ID, "status", core.Null(), ""); err != nil {
		t.Fatalf("SetCell: %v", err)
	}

	groups, err := tbl.GroupBy(ctx, tbl.Rows(), "status")
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	if !groups[0].Key.Equal(core.Text("not_started")) || !groups[1].Key.Equal(core.Text("done")) {
		t.Fatalf("group order = %v, %v", groups[0].Key, groups[1].Key)
	}
	if len(groups[1].Rows) != 2 || !groups[2].Key.IsNull() {
		t.Fatalf("done group = %d rows, last key = %v", len(groups[1].Rows), groups[2].Key)
	}
}

func TestAutoFill(t *testing.T) {
	ws := newWorkspace(t)
	tbl := ordersTable(t, ws)
	ctx := context.Background()
	seed := insert(t, tbl, map[string]core.Value{"qty": core.Number(1)})
	b := insert(t, tbl, nil)
	c := insert(t, tbl, nil)

	got, err := tbl.AutoFill(ctx, "qty", seed.ID, []string{b.ID, c.ID}, core.FillForward, "u1")
	if err != nil {
		t.Fatalf("AutoFill: %v", err)
	}
	if len(got) != 2 || !got[1].Equal(core.Number(3)) {
		t.Fatalf("AutoFill = %v, want [2 3]", got)
	}
	if _, err := tbl.AutoFill(ctx, "total", seed.ID, []string{b.ID}, core.FillForward, ""); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("AutoFill formula: err = %v, want ErrUnsupported", err)
	}
}

func TestRollupAcrossTables(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	items := ordersTable(t, ws)
	a := insert(t, items, map[string]core.Value{"item": core.Text("pen"), "price": core.Number(5), "qty": core.Number(2)})
	b := insert(t, items, map[string]core.Value{"item": core.Text("ink"), "price": core.Number(15), "qty": core.Number(1)})

	carts, err := ws.CreateTable(ctx, core.Schema{TableID: "carts", Columns: []core.Column{
		{ID: "lines", Type: "relation", Config: core.Config{"targetTableId": "orders"}},
		{ID: "spend", Type: "rollup", Config: core.Config{"relationFieldId": "lines", "rollupFieldId": "total", "aggregation": "sum"}},
		{ID: "first", Type: "lookup", Config: core.Config{"relationFieldId": "lines", "lookupFieldId": "item"}},
		{ID: "n", Type: "count", Config: core.Config{"relationFieldId": "lines"}},
		{ID: "broken", Type: "count", Config: core.Config{"relationFieldId": "spend"}},
	}})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	cart := insert(t, carts, map[string]core.Value{"lines": core.List(coltype.Link(a.ID, "pen"), coltype.Link(b.ID, "ink"))})

	check := func(col string, want core.Value) {
		t.Helper()
		v, err := carts.Cell(ctx, cart.ID, col)
		if err != nil {
			t.Fatalf("Cell %s: %v", col, err)
		}
		if !v.Equal(want) {
			t.Fatalf("%s = %v, want %v", col, v, want)
		}
	}
	check("spend", core.Number(25))
	check("first", core.Text("pen"))
	check("n", core.Number(2))
	check("broken", formula.ErrorValue())

	if err := items.DeleteRow(ctx, b.ID); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	check("spend", core.Number(10))
	check("n", core.Number(1))
}

func TestMutationsPublishChangeEvents(t *testing.T) {
	q := changefeed.NewMemoryQueue(100)
	ws := newWorkspace(t, WithChangeQueue(q))
	tbl := ordersTable(t, ws)
	ctx := context.Background()

	row := insert(t, tbl, nil)
	if err := tbl.SetCell(ctx, row.ID, "qty", core.Number(4), ""); err != nil {
		t.Fatalf("SetCell: %v", err)
	}
	if err := tbl.DeleteRow(ctx, row.ID); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}

	events, err := q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	wantOps := []core.ChangeOp{core.ChangeSchema, core.ChangeInsert, core.ChangeUpdate, core.ChangeDelete}
	if len(events) != len(wantOps) {
		t.Fatalf("events = %d, want %d", len(events), len(wantOps))
	}
	for i, e := range events {
		if e.Op != wantOps[i] || e.Table != "orders" {
			t.Fatalf("event %d = %+v, want op %s", i, e, wantOps[i])
		}
		if i > 0 && e.Revision <= events[i-1].Revision {
			t.Fatalf("revisions not increasing: %d then %d", events[i-1].Revision, e.Revision)
		}
	}
	if events[2].Column != "qty" || events[2].RowID != row.ID {
		t.Fatalf("update event = %+v", events[2])
	}
}

func TestWorkspaceTables(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	ordersTable(t, ws)
	if _, err := ws.CreateTable(ctx, core.Schema{TableID: "orders"}); !errors.Is(err, ErrTableExists) {
		t.Fatalf("duplicate table: err = %v, want ErrTableExists", err)
	}
	if _, err := ws.CreateTable(ctx, core.Schema{TableID: "x", Columns: []core.Column{{ID: "r", Type: "relation"}}}); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("relation without target: err = %v, want ErrInvalidValue", err)
	}
	if err := ws.DropTable(ctx, "orders"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, err := ws.Table("orders"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("Table after drop: err = %v", err)
	}
	if len(ws.Tables()) != 0 {
		t.Fatalf("Tables = %d, want 0", len(ws.Tables()))
	}
}

func TestCSVExportImport(t *testing.T) {
	ws := newWorkspace(t)
	src := ordersTable(t, ws)
	ctx := context.Background()
	insert(t, src, map[string]core.Value{"item": core.Text("pen"), "price": core.Number(2.5), "qty": core.Number(4)})

	var buf bytes.Buffer
	if err := src.ExportCSV(ctx, &buf, false); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if got := buf.String(); got != "Item,Price,Qty,Total,No\npen,2.5,4,10,100\n" {
		t.Fatalf("csv = %q", got)
	}

	dst, err := ws.CreateTable(ctx, core.Schema{TableID: "copy", Columns: src.Schema().Columns})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	n, err := dst.ImportCSV(ctx, strings.NewReader(buf.String()+"ink,abc,1,,\n"), "u9")
	if n != 2 {
		t.Fatalf("imported %d rows, want 2", n)
	}
	if !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("bad price: err = %v, want ErrInvalidValue", err)
	}
	rows := dst.Rows()
	if v, _ := dst.Cell(ctx, rows[0].ID, "total"); !v.Equal(core.Number(10)) {
		t.Fatalf("imported total = %v, want 10", v)
	}
	if v, _ := dst.Cell(ctx, rows[1].ID, "seq"); !v.Equal(core.Number(101)) {
		t.Fatalf("second imported auto number = %v, want 101", v)
	}
}

func TestWorkspaceLocale(t *testing.T) {
	ws := newWorkspace(t, WithLocale("de"))
	tbl := ordersTable(t, ws)
	row := insert(t, tbl, map[string]core.Value{"qty": core.Number(1234.5)})

	got, err := tbl.FormattedCell(context.Background(), row.ID, "qty")
	if err != nil {
		t.Fatalf("FormattedCell: %v", err)
	}
	if got != "1.234,5" {
		t.Fatalf("qty = %q, want 1.234,5", got)
	}

	// A column's own locale wins.
	if _, err := tbl.UpdateColumnConfig(context.Background(), "qty", core.Config{"locale": "en"}); err != nil {
		t.Fatalf("UpdateColumnConfig: %v", err)
	}
	if got, _ := tbl.FormattedCell(context.Background(), row.ID, "qty"); got != "1,234.5" {
		t.Fatalf("qty = %q, want 1,234.5", got)
	}
}

// loadCart builds an items table holding one priced row and a carts table
// whose single row rolls it up, both with fixed ids.
func loadCart(t *testing.T, ws *Workspace, price float64) *Table {
	t.Helper()
	ctx := context.Background()
	items, err := ws.CreateTable(ctx, core.Schema{TableID: "items", Columns: []core.Column{
		{ID: "price", Type: "currency"},
	}})
	if err != nil {
		t.Fatalf("CreateTable items: %v", err)
	}
	if err := items.Load(ctx, []core.Row{{ID: "i1", Cells: map[string]core.Value{"price": core.Number(price)}}}); err != nil {
		t.Fatalf("Load items: %v", err)
	}
	carts, err := ws.CreateTable(ctx, core.Schema{TableID: "carts", Columns: []core.Column{
		{ID: "lines", Type: "relation", Config: core.Config{"targetTableId": "items"}},
		{ID: "spend", Type: "rollup", Config: core.Config{"relationFieldId": "lines", "rollupFieldId": "price", "aggregation": "sum"}},
	}})
	if err != nil {
		t.Fatalf("CreateTable carts: %v", err)
	}
	row := core.Row{ID: "c1", Cells: map[string]core.Value{"lines": core.List(coltype.Link("i1", ""))}}
	if err := carts.Load(ctx, []core.Row{row}); err != nil {
		t.Fatalf("Load carts: %v", err)
	}
	return carts
}

func spend(t *testing.T, carts *Table) float64 {
	t.Helper()
	v, err := carts.Cell(context.Background(), "c1", "spend")
	if err != nil {
		t.Fatalf("Cell spend: %v", err)
	}
	f, _ := v.AsNumber()
	return f
}

func TestSharedCacheSeparatesTableInstances(t *testing.T) {
	store := kvstore.NewMemoryKVStore()
	cacheOpt := func() Option {
		return WithCache(rollup.NewCacheHandler(store, "ws", time.Minute, nil))
	}

	first := loadCart(t, newWorkspace(t, cacheOpt()), 10)
	if got := spend(t, first); got != 10 {
		t.Fatalf("first workspace spend = %v, want 10", got)
	}
	second := loadCart(t, newWorkspace(t, cacheOpt()), 99)
	if got := spend(t, second); got != 99 {
		t.Fatalf("second workspace spend = %v, want 99", got)
	}
}

func TestRecreatedTableMissesOldCacheEntries(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryKVStore()
	ws := newWorkspace(t, WithCache(rollup.NewCacheHandler(store, "ws", time.Minute, nil)))

	if got := spend(t, loadCart(t, ws, 10)); got != 10 {
		t.Fatalf("spend = %v, want 10", got)
	}
	for _, id := range []string{"carts", "items"} {
		if err := ws.DropTable(ctx, id); err != nil {
			t.Fatalf("DropTable %s: %v", id, err)
		}
	}
	if got := spend(t, loadCart(t, ws, 42)); got != 42 {
		t.Fatalf("spend after recreate = %v, want 42", got)
	}
}

func TestSummariesWarmDerivedColumns(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryKVStore()
	ws := newWorkspace(t, WithCache(rollup.NewCacheHandler(store, "ws", time.Minute, nil)))
	carts := loadCart(t, ws, 15)

	sums, err := carts.Summaries(ctx, carts.Rows(), map[string]core.AggregationKind{"spend": core.AggSum})
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if f, _ := sums["spend"].AsNumber(); f != 15 {
		t.Fatalf("spend total = %v, want 15", sums["spend"])
	}
	if store.Len() != 1 {
		t.Fatalf("cache holds %d entries after Summaries, want 1", store.Len())
	}

	groups, err := carts.GroupBy(ctx, carts.Rows(), "spend")
	if err != nil {
		t.Fatalf("GroupBy: %v", err)
	}
	if len(groups) != 1 || store.Len() != 1 {
		t.Fatalf("GroupBy = %d groups with %d cache entries, want 1 and 1", len(groups), store.Len())
	}
}
