package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/query"
	"github.com/rzpsarthak13/ultratable/internal/registry"
	"github.com/rzpsarthak13/ultratable/internal/rowsource"
	"github.com/rzpsarthak13/ultratable/internal/table"
)

var ErrUnknownCategory = errors.New("unknown category")

// Types

type typeInfo struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Category     core.Category     `json:"category"`
	Description  string            `json:"description"`
	ReadOnly     bool              `json:"readOnly,omitempty"`
	Capabilities core.Capabilities `json:"capabilities"`
}

type typeList []typeInfo

func (l typeList) Show(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tDESCRIPTION")
	for _, t := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Category, t.Description)
	}
	tw.Flush()
}

func listTypes(reg *registry.Registry, category string) (typeList, error) {
	defs := reg.List(core.Category(category))
	if category != "" && len(defs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	out := make(typeList, 0, len(defs))
	for _, def := range defs {
		m := def.Meta()
		out = append(out, typeInfo{
			ID:           m.ID,
			Name:         m.Name,
			Category:     m.Category,
			Description:  m.Description,
			ReadOnly:     m.ReadOnly,
			Capabilities: core.CapabilitiesOf(def),
		})
	}
	return out, nil
}

func showTypes(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	e, err := action.Engine()
	if err != nil {
		action.Exit(nil, err)
	}
	action.Exit(listTypes(e.Registry(), action.getString("category")))
}

// Eval

// evalRows formats every cell of the given rows, computing formulas and
// relation columns.
func evalRows(ctx context.Context, tbl *table.Table, rows []core.Row) (*sheet, error) {
	s := tbl.Schema()
	out := &sheet{Total: len(rows)}
	for _, col := range s.Columns {
		out.Columns = append(out.Columns, col.Name)
	}
	for _, r := range rows {
		line := make([]string, len(s.Columns))
		for i, col := range s.Columns {
			text, err := tbl.FormattedCell(ctx, r.ID, col.ID)
			if err != nil {
				return nil, err
			}
			line[i] = text
		}
		out.Rows = append(out.Rows, line)
	}
	return out, nil
}

// selectRows returns the rows with the given ids; no ids means every row.
func selectRows(tbl *table.Table, ids []string) ([]core.Row, error) {
	if len(ids) == 0 {
		return tbl.Rows(), nil
	}
	rows := make([]core.Row, 0, len(ids))
	for _, id := range ids {
		r, ok := tbl.Row(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", table.ErrRowNotFound, id)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func evalTable(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	tbl, err := action.Table(args[0], args[1])
	if err != nil {
		action.Exit(nil, err)
	}
	rows, err := selectRows(tbl, action.getStringArray("row"))
	if err != nil {
		action.Exit(nil, err)
	}
	action.Start("Eval '%s'", tbl.Name())
	action.Exit(evalRows(action.Context(), tbl, rows))
}

// Export / import

func exportTable(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	tbl, err := action.Table(args[0], args[1])
	if err != nil {
		action.Exit(nil, err)
	}
	withID := action.getBool("with-id")
	fname := action.getString("output")
	if fname == "" {
		action.Exit(nil, tbl.ExportCSV(action.Context(), action.out, withID))
	}
	f, err := os.Create(fname)
	if err != nil {
		action.Exit(nil, err)
	}
	action.Start("Export '%s' to '%s'", tbl.Name(), fname)
	err = tbl.ExportCSV(action.Context(), f, withID)
	action.Exit(nil, errors.Join(err, f.Close()))
}

type importResult struct {
	Imported int      `json:"imported"`
	Problems []string `json:"problems,omitempty"`
}

func (r *importResult) Show(w io.Writer) {
	fmt.Fprintf(w, "%d rows imported\n", r.Imported)
	for _, p := range r.Problems {
		fmt.Fprintf(w, "  %s\n", p)
	}
}

// importRows inserts the CSV records. Cell problems are reported, not fatal.
func importRows(ctx context.Context, tbl *table.Table, r io.Reader, actor string) *importResult {
	n, err := tbl.ImportCSV(ctx, r, actor)
	res := &importResult{Imported: n}
	var joined interface{ Unwrap() []error }
	switch {
	case err == nil:
	case errors.As(err, &joined):
		for _, e := range joined.Unwrap() {
			res.Problems = append(res.Problems, e.Error())
		}
	default:
		res.Problems = []string{err.Error()}
	}
	return res
}

func importTable(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	tbl, err := action.Table(args[0], args[1])
	if err != nil {
		action.Exit(nil, err)
	}
	f, err := os.Open(args[2])
	if err != nil {
		action.Exit(nil, err)
	}
	action.Start("Import '%s' into '%s'", args[2], tbl.Name())
	res := importRows(action.Context(), tbl, f, action.getString("actor"))
	f.Close()
	if !action.getBool("dry-run") {
		if err := writeWorkspaceFile(args[0], encodeWorkspace(tbl.Workspace())); err != nil {
			action.Exit(nil, err)
		}
	}
	action.Exit(res, nil)
}

// Summary

// parseAggregations reads "column=kind" pairs. With none, every column
// whose type aggregates gets its first supported kind.
func parseAggregations(tbl *table.Table, pairs []string) (map[string]core.AggregationKind, error) {
	kinds := make(map[string]core.AggregationKind)
	if len(pairs) == 0 {
		reg := tbl.Workspace().Registry()
		for _, col := range tbl.Schema().Columns {
			def, ok := reg.Get(col.Type)
			if !ok {
				continue
			}
			if agg, ok := def.(core.Aggregator); ok && len(agg.SupportedAggregations()) > 0 {
				kinds[col.ID] = agg.SupportedAggregations()[0]
			}
		}
		return kinds, nil
	}
	for _, pair := range pairs {
		ref, kind, ok := strings.Cut(pair, "=")
		if !ok || ref == "" || kind == "" {
			return nil, fmt.Errorf("invalid aggregation %q, want column=kind", pair)
		}
		col, err := tbl.Column(strings.TrimSpace(ref))
		if err != nil {
			return nil, err
		}
		kinds[col.ID] = core.AggregationKind(strings.TrimSpace(kind))
	}
	return kinds, nil
}

// summarize computes the footer row in schema order.
func summarize(ctx context.Context, tbl *table.Table, kinds map[string]core.AggregationKind) (*sheet, error) {
	values, err := tbl.Summaries(ctx, tbl.Rows(), kinds)
	if err != nil {
		return nil, err
	}
	reg := tbl.Workspace().Registry()
	out := &sheet{Columns: []string{"COLUMN", "AGGREGATION", "VALUE"}}
	for _, col := range tbl.Schema().Columns {
		kind, ok := kinds[col.ID]
		if !ok {
			continue
		}
		v := values[col.ID]
		text := v.String()
		switch kind {
		case core.AggSum, core.AggAvg, core.AggMin, core.AggMax:
			if def, ok := reg.Get(col.Type); ok {
				text = def.Format(v, col.Config)
			}
		}
		out.Rows = append(out.Rows, []string{col.Name, string(kind), text})
	}
	return out, nil
}

func summarizeTable(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	tbl, err := action.Table(args[0], args[1])
	if err != nil {
		action.Exit(nil, err)
	}
	kinds, err := parseAggregations(tbl, action.getStringArray("agg"))
	if err != nil {
		action.Exit(nil, err)
	}
	action.Start("Summarize '%s'", tbl.Name())
	action.Exit(summarize(action.Context(), tbl, kinds))
}

// Query

func runQuery(ctx context.Context, tbl *table.Table, req query.Request) (*sheet, error) {
	res, err := query.Run(ctx, tbl, req)
	if err != nil {
		return nil, err
	}
	out, err := evalRows(ctx, tbl, res.Rows)
	if err != nil {
		return nil, err
	}
	out.Total = res.Total
	return out, nil
}

func queryTable(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	tbl, err := action.Table(args[0], args[1])
	if err != nil {
		action.Exit(nil, err)
	}
	req := query.Request{
		Filter:  action.getString("filter"),
		OrderBy: action.getString("order-by"),
		Offset:  action.getInt("offset"),
		Limit:   action.getInt("limit"),
	}
	action.Start("Query '%s'", tbl.Name())
	action.Exit(runQuery(action.Context(), tbl, req))
}

// SQL row source

func (a *Action) rowSource() *rowsource.Source {
	e, err := a.Engine()
	if err != nil {
		a.Exit(nil, err)
	}
	src, err := e.RowSource()
	if err != nil {
		a.Exit(nil, err)
	}
	return src
}

func sqlTableName(a *Action, tbl *table.Table) string {
	if name := a.getString("sql-table"); name != "" {
		return name
	}
	return tbl.ID()
}

func pushTable(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	tbl, err := action.Table(args[0], args[1])
	if err != nil {
		action.Exit(nil, err)
	}
	src := action.rowSource()
	name := sqlTableName(action, tbl)
	action.Start("Push '%s' to '%s'", tbl.Name(), name)
	n, err := src.Save(action.Context(), tbl, name)
	action.Exit(fmt.Sprintf("%d rows saved", n), err)
}

// pullTable replaces the rows of a workspace table with the rows of a SQL
// table and writes the workspace file back.
func pullTable(cmd *cobra.Command, args []string) {
	action := newAction(cmd)
	src := action.rowSource()
	e, _ := action.Engine()

	f, err := readWorkspaceFile(args[0])
	if err != nil {
		action.Exit(nil, err)
	}
	for i := range f.Tables {
		if f.Tables[i].ID == args[1] {
			f.Tables[i].Rows = nil
		}
	}
	ws := e.Workspace()
	if err := loadWorkspace(action.Context(), ws, f); err != nil {
		action.Exit(nil, err)
	}
	tbl, err := ws.Table(args[1])
	if err != nil {
		action.Exit(nil, err)
	}

	name := sqlTableName(action, tbl)
	action.Start("Pull '%s' into '%s'", name, tbl.Name())
	n, err := src.Load(action.Context(), tbl, name)
	if err != nil {
		action.Exit(nil, err)
	}
	action.Exit(fmt.Sprintf("%d rows loaded", n), writeWorkspaceFile(args[0], encodeWorkspace(ws)))
}
