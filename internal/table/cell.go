package table

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/formula"
	"github.com/rzpsarthak13/ultratable/internal/rollup"
)

// Cell returns a row's value for a column, computing system and derived
// columns. Formula failures and broken derived columns yield the error
// marker value rather than an error.
func (t *Table) Cell(ctx context.Context, rowID, columnRef string) (core.Value, error) {
	row, col, err := t.cellRef(rowID, columnRef)
	if err != nil {
		return core.Null(), err
	}
	return t.compute(ctx, row, col)
}

// FormattedCell returns the display string of a cell. Columns of
// unregistered types fall back to the value's plain text.
func (t *Table) FormattedCell(ctx context.Context, rowID, columnRef string) (string, error) {
	row, col, err := t.cellRef(rowID, columnRef)
	if err != nil {
		return "", err
	}
	v, err := t.compute(ctx, row, col)
	if err != nil {
		return "", err
	}
	return t.format(col, v), nil
}

// Render returns the display description of a cell.
func (t *Table) Render(ctx context.Context, rowID, columnRef string) (core.Display, error) {
	row, col, err := t.cellRef(rowID, columnRef)
	if err != nil {
		return core.Display{}, err
	}
	v, err := t.compute(ctx, row, col)
	if err != nil {
		return core.Display{}, err
	}
	def, ok := t.definition(col)
	if !ok {
		return core.Display{Widget: "text", Text: v.String()}, nil
	}
	return def.Render(v, col.Config), nil
}

// Record returns every cell of a row, computed, keyed by column id.
func (t *Table) Record(ctx context.Context, row core.Row) (map[string]core.Value, error) {
	s := t.Schema()
	out := make(map[string]core.Value, len(s.Columns))
	for _, col := range s.Columns {
		v, err := t.compute(ctx, row, col)
		if err != nil {
			return nil, err
		}
		out[col.ID] = v
	}
	return out, nil
}

func (t *Table) cellRef(rowID, columnRef string) (core.Row, core.Column, error) {
	col, err := t.Column(columnRef)
	if err != nil {
		return core.Row{}, core.Column{}, err
	}
	row, ok := t.Row(rowID)
	if !ok {
		return core.Row{}, core.Column{}, fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	return row, col, nil
}

func (t *Table) format(col core.Column, v core.Value) string {
	def, ok := t.definition(col)
	if !ok {
		return v.String()
	}
	cfg := col.Config
	if t.ws.locale != "" && !cfg.Has("locale") {
		cfg = core.Merge(core.Config{"locale": t.ws.locale}, cfg)
	}
	return def.Format(v, cfg)
}

func (t *Table) compute(ctx context.Context, row core.Row, col core.Column) (core.Value, error) {
	switch col.Type {
	case "formula":
		return t.evalFormula(ctx, row, col), nil
	case rollup.TypeRollup, rollup.TypeLookup, rollup.TypeCount:
		v, err := t.ws.resolver.Resolve(ctx, t.ID(), col, row)
		if errors.Is(err, rollup.ErrBadWiring) || errors.Is(err, rollup.ErrCycle) {
			t.logger.Debug("derived column unresolved", "column", col.ID, "row", row.ID, "error", err)
			return formula.ErrorValue(), nil
		}
		return v, err
	case "created_time":
		return timestamp(row.Meta.CreatedAt), nil
	case "modified_time":
		return timestamp(row.Meta.ModifiedAt), nil
	case "created_by":
		return actorValue(row.Meta.CreatedBy), nil
	case "modified_by":
		return actorValue(row.Meta.ModifiedBy), nil
	}
	return row.Get(col.ID), nil
}

func (t *Table) evalFormula(ctx context.Context, row core.Row, col core.Column) core.Value {
	ctx, err := rollup.Enter(ctx, t.ID(), row.ID, col.ID)
	if err != nil {
		t.logger.Debug("formula cycle", "column", col.ID, "row", row.ID)
		return formula.ErrorValue()
	}
	prog, err := t.ws.formulas.Compile(col.Config.String("expression", ""))
	if err != nil {
		return formula.ErrorValue()
	}
	env := &cellEnv{ctx: ctx, table: t, row: row}
	return formula.Coerce(prog.Run(env), col.Config.String("returnType", "text"))
}

// cellEnv binds formula placeholders to the computed cells of one row.
// Placeholders match a column id first, then a column name.
type cellEnv struct {
	ctx   context.Context
	table *Table
	row   core.Row
}

func (e *cellEnv) Field(name string) (core.Value, bool) {
	col, ok := e.table.column(name)
	if !ok {
		return core.Null(), false
	}
	v, err := e.table.compute(e.ctx, e.row, col)
	if err != nil {
		return formula.ErrorValue(), true
	}
	return v, true
}

func (e *cellEnv) RowIndex() int { return e.table.position(e.row.ID) }

func timestamp(t time.Time) core.Value {
	if t.IsZero() {
		return core.Null()
	}
	return core.Text(t.UTC().Format(time.RFC3339))
}

func actorValue(id string) core.Value {
	if id == "" {
		return core.Null()
	}
	return core.Text(id)
}
