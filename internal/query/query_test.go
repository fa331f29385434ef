package query

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rzpsarthak13/ultratable/internal/coltype"
	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/table"
)

func fixture(t *testing.T) *table.Table {
	t.Helper()
	reg, err := coltype.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ctx := context.Background()
	ws := table.NewWorkspace(reg)
	tbl, err := ws.CreateTable(ctx, core.Schema{TableID: "tasks", Columns: []core.Column{
		{ID: "title", Name: "Title", Type: "text"},
		{ID: "points", Name: "Points", Type: "number"},
		{ID: "status", Name: "Status", Type: "status"},
		{ID: "done", Name: "Done", Type: "checkbox"},
		{ID: "due", Name: "Due", Type: "date"},
		{ID: "labels", Name: "Labels", Type: "tags"},
	}})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	rows := []map[string]core.Value{
		{"title": core.Text("write docs"), "points": core.Number(3), "status": core.Text("in_progress"), "due": core.Text("2024-03-01"), "labels": core.List(core.Text("docs"))},
		{"title": core.Text("fix login"), "points": core.Number(8), "status": core.Text("done"), "done": core.Bool(true), "due": core.Text("2024-02-10"), "labels": core.List(core.Text("bug"), core.Text("auth"))},
		{"title": core.Text("plan sprint"), "points": core.Number(1)},
		{"title": core.Text("fix typo"), "points": core.Number(5), "status": core.Text("done"), "done": core.Bool(true), "due": core.Text("2024-04-01"), "labels": core.List(core.Text("docs"), core.Text("bug"))},
	}
	for _, cells := range rows {
		if _, err := tbl.Insert(ctx, cells, "u1"); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	return tbl
}

func titles(rows []core.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Get("title").String()
	}
	return out
}

func TestRunFilters(t *testing.T) {
	tbl := fixture(t)
	ctx := context.Background()

	tests := []struct {
		filter string
		want   []string
	}{
		{``, []string{"write docs", "fix login", "plan sprint", "fix typo"}},
		{`points > 4.0`, []string{"fix login", "fix typo"}},
		{`Points <= 3.0 AND title:"docs"`, []string{"write docs"}},
		{`status = "done" OR points = 1.0`, []string{"fix login", "plan sprint", "fix typo"}},
		{`done = true`, []string{"fix login", "fix typo"}},
		{`NOT done = true`, []string{"write docs", "plan sprint"}},
		{`due < "2024-03-01"`, []string{"fix login"}},
		{`due >= "2024-03-01"`, []string{"write docs", "fix typo"}},
		{`due = ""`, []string{"plan sprint"}},
		{`labels:"bug"`, []string{"fix login", "fix typo"}},
	}
	for _, tt := range tests {
		res, err := Run(ctx, tbl, Request{Filter: tt.filter})
		if err != nil {
			t.Fatalf("Run(%q): %v", tt.filter, err)
		}
		got := titles(res.Rows)
		if len(got) != len(tt.want) {
			t.Fatalf("Run(%q) = %v, want %v", tt.filter, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("Run(%q) = %v, want %v", tt.filter, got, tt.want)
			}
		}
	}
}

func TestRunOrdersAndPaginates(t *testing.T) {
	tbl := fixture(t)
	res, err := Run(context.Background(), tbl, Request{OrderBy: "points desc", Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 4 {
		t.Fatalf("Total = %d, want 4", res.Total)
	}
	got := titles(res.Rows)
	if len(got) != 2 || got[0] != "fix typo" || got[1] != "write docs" {
		t.Fatalf("page = %v", got)
	}

	res, err = Run(context.Background(), tbl, Request{Offset: 10})
	if err != nil || len(res.Rows) != 0 {
		t.Fatalf("offset past end = %v, %v", res.Rows, err)
	}
}

func TestRunHugeLimit(t *testing.T) {
	tbl := fixture(t)
	tests := []struct {
		offset, limit, want int
	}{
		{0, math.MaxInt, 4},
		{1, math.MaxInt, 3},
		{3, math.MaxInt - 2, 1},
		{math.MaxInt, math.MaxInt, 0},
	}
	for _, tt := range tests {
		res, err := Run(context.Background(), tbl, Request{Offset: tt.offset, Limit: tt.limit})
		if err != nil {
			t.Fatalf("Run(offset %d, limit %d): %v", tt.offset, tt.limit, err)
		}
		if len(res.Rows) != tt.want {
			t.Fatalf("Run(offset %d, limit %d) = %d rows, want %d", tt.offset, tt.limit, len(res.Rows), tt.want)
		}
	}
}

func TestInvalidQueries(t *testing.T) {
	tbl := fixture(t)
	ctx := context.Background()
	for _, req := range []Request{
		{Filter: `ghost = "x"`},
		{Filter: `points > "many"`},
		{Filter: `done < true`},
		{OrderBy: "ghost desc"},
		{OrderBy: "points sideways"},
	} {
		if _, err := Run(ctx, tbl, req); !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("Run(%+v): err = %v, want ErrInvalidQuery", req, err)
		}
	}
}
