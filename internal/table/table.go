package table

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/formula"
	"github.com/rzpsarthak13/ultratable/internal/rollup"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

const typeAutoNumber = "auto_number"

// sequenceStart is implemented by the auto number type.
type sequenceStart interface {
	Start(cfg core.Config) float64
}

// Table is an ordered set of rows sharing a schema. Row cell maps are never
// mutated in place: writers swap in a modified clone, so snapshots handed to
// readers stay consistent without holding the lock.
type Table struct {
	ws     *Workspace
	logger *slog.Logger

	mu        sync.RWMutex
	schema    core.Schema
	rows      []core.Row
	index     map[string]int
	epoch     string
	revision  uint64
	sequences map[string]float64
}

func newTable(ws *Workspace, s core.Schema) *Table {
	t := &Table{
		ws:        ws,
		logger:    ws.logger.With("table", s.TableID),
		schema:    s,
		index:     make(map[string]int),
		epoch:     uuid.NewString(),
		revision:  1,
		sequences: make(map[string]float64),
	}
	for _, col := range s.Columns {
		if col.Type == typeAutoNumber {
			t.sequences[col.ID] = t.sequenceStart(col)
		}
	}
	return t
}

// ID returns the table id.
func (t *Table) ID() string { return t.schema.TableID }

// Workspace returns the workspace the table belongs to.
func (t *Table) Workspace() *Workspace { return t.ws }

// Name returns the display name.
func (t *Table) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.schema.Name
}

// Schema returns a copy of the schema.
func (t *Table) Schema() core.Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.schema
	s.Columns = append([]core.Column(nil), t.schema.Columns...)
	return s
}

// Revision returns the mutation counter. It starts at 1 and grows with
// every schema or row change.
func (t *Table) Revision() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.revision
}

// Ref pins this table instance at its current revision. The epoch is
// random per instance, so a recreated table never matches old cache keys.
func (t *Table) Ref() rollup.TableRef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return rollup.TableRef{ID: t.schema.TableID, Epoch: t.epoch, Revision: t.revision}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Rows returns the rows in table order.
func (t *Table) Rows() []core.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]core.Row(nil), t.rows...)
}

// Row returns a row by id.
func (t *Table) Row(id string) (core.Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return core.Row{}, false
	}
	return t.rows[i], true
}

// Column resolves a column by id, then by name.
func (t *Table) Column(ref string) (core.Column, error) {
	col, ok := t.column(ref)
	if !ok {
		return core.Column{}, fmt.Errorf("%w: %q in table %s", ErrColumnNotFound, ref, t.ID())
	}
	return col, nil
}

func (t *Table) column(ref string) (core.Column, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if col, ok := t.schema.Column(ref); ok {
		return col, true
	}
	return t.schema.ColumnByName(ref)
}

// position returns the 1-based row position, or 0 for unknown rows.
func (t *Table) position(id string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i, ok := t.index[id]; ok {
		return i + 1
	}
	return 0
}

func (t *Table) rowsByID(ids []string) []core.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.Row, 0, len(ids))
	for _, id := range ids {
		if i, ok := t.index[id]; ok {
			out = append(out, t.rows[i])
		}
	}
	return out
}

func (t *Table) definition(col core.Column) (core.Definition, bool) {
	return t.ws.registry.Get(col.Type)
}

func (t *Table) sequenceStart(col core.Column) float64 {
	if def, ok := t.definition(col); ok {
		if s, ok := def.(sequenceStart); ok {
			return s.Start(col.Config)
		}
	}
	return 1
}

// bump increments the revision and returns the event for it. Callers hold
// the write lock.
func (t *Table) bump(op core.ChangeOp, rowID, columnID string) *core.ChangeEvent {
	t.revision++
	return &core.ChangeEvent{
		Table:     t.schema.TableID,
		Op:        op,
		RowID:     rowID,
		Column:    columnID,
		Revision:  t.revision,
		Timestamp: t.ws.now(),
	}
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.rows))
	for i, r := range t.rows {
		t.index[r.ID] = i
	}
}

// checkColumn validates a new or reconfigured column against the schema.
func (t *Table) checkColumn(col core.Column) (core.Definition, error) {
	def, ok := t.definition(col)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, col.Type)
	}
	if err := validateConfig(def, col); err != nil {
		return nil, err
	}
	if col.Type == "formula" {
		known := func(name string) bool {
			if name == col.ID || name == col.Name {
				return false
			}
			_, ok := t.column(name)
			return ok
		}
		if err := formula.Validate(col.Config.String("expression", ""), known); err != nil {
			return nil, core.Invalid("Formula column %q: %v", col.Name, err)
		}
	}
	return def, nil
}

// AddColumn appends a column. Existing rows read the new column as null,
// except auto number columns, which are numbered in row order.
func (t *Table) AddColumn(ctx context.Context, col core.Column) (core.Column, error) {
	if col.ID == "" {
		col.ID = uuid.NewString()
	}
	def, err := t.checkColumn(col)
	if err != nil {
		return core.Column{}, err
	}
	if col.Name == "" {
		col.Name = def.Meta().Name
	}

	t.mu.Lock()
	if _, ok := t.schema.Column(col.ID); ok {
		t.mu.Unlock()
		return core.Column{}, fmt.Errorf("%w: %s", ErrColumnExists, col.ID)
	}
	t.schema.Columns = append(t.schema.Columns, col)
	if col.Type == typeAutoNumber {
		next := t.sequenceStart(col)
		for i, r := range t.rows {
			r = r.Clone()
			r.Cells[col.ID] = core.Number(next)
			t.rows[i] = r
			next++
		}
		t.sequences[col.ID] = next
	}
	event := t.bump(core.ChangeSchema, "", col.ID)
	t.mu.Unlock()

	t.logger.Info("column added", "column", col.ID, "type", col.Type)
	t.ws.publish(ctx, event)
	return col, nil
}

// UpdateColumn replaces a column's name and configuration. Stored values
// are kept as they are.
func (t *Table) UpdateColumn(ctx context.Context, columnID, name string, cfg core.Config) (core.Column, error) {
	col, err := t.Column(columnID)
	if err != nil {
		return core.Column{}, err
	}
	if name != "" {
		col.Name = name
	}
	col.Config = cfg
	if _, err := t.checkColumn(col); err != nil {
		return core.Column{}, err
	}

	t.mu.Lock()
	for i := range t.schema.Columns {
		if t.schema.Columns[i].ID == col.ID {
			t.schema.Columns[i] = col
		}
	}
	event := t.bump(core.ChangeSchema, "", col.ID)
	t.mu.Unlock()

	t.ws.publish(ctx, event)
	return col, nil
}

// UpdateColumnConfig replaces a column's configuration.
func (t *Table) UpdateColumnConfig(ctx context.Context, columnID string, cfg core.Config) (core.Column, error) {
	return t.UpdateColumn(ctx, columnID, "", cfg)
}

// ConvertColumn changes a column's type. Every stored value is exported
// with the old type and parsed back with the new one; values the new type
// cannot parse become null.
func (t *Table) ConvertColumn(ctx context.Context, columnID, typeID string, cfg core.Config) (core.Column, error) {
	col, err := t.Column(columnID)
	if err != nil {
		return core.Column{}, err
	}
	from, hasFrom := t.definition(col)
	next := col
	next.Type, next.Config = typeID, cfg
	to, err := t.checkColumn(next)
	if err != nil {
		return core.Column{}, err
	}
	if to.Meta().ReadOnly {
		return core.Column{}, fmt.Errorf("%w: cannot convert to %s", ErrReadOnly, typeID)
	}
	parser, canParse := to.(core.Parser)

	t.mu.Lock()
	for i := range t.schema.Columns {
		if t.schema.Columns[i].ID == col.ID {
			t.schema.Columns[i] = next
		}
	}
	converted := 0
	for i, r := range t.rows {
		v := r.Get(col.ID)
		if v.IsNull() {
			continue
		}
		text := v.String()
		if hasFrom {
			text = exportText(from, v, col.Config)
		}
		out := core.Null()
		if canParse {
			out = parser.Parse(text, next.Config)
		}
		r = r.Clone()
		if out.IsNull() {
			delete(r.Cells, col.ID)
		} else {
			r.Cells[col.ID] = out
			converted++
		}
		t.rows[i] = r
	}
	event := t.bump(core.ChangeSchema, "", col.ID)
	t.mu.Unlock()

	t.logger.Info("column converted", "column", col.ID, "from", col.Type, "to", typeID, "values", converted)
	t.ws.publish(ctx, event)
	return next, nil
}

// DeleteColumn removes a column and purges its stored cells. It returns the
// number of purged cells.
func (t *Table) DeleteColumn(ctx context.Context, columnID string) (int, error) {
	col, err := t.Column(columnID)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	cols := t.schema.Columns[:0:0]
	for _, c := range t.schema.Columns {
		if c.ID != col.ID {
			cols = append(cols, c)
		}
	}
	t.schema.Columns = cols
	delete(t.sequences, col.ID)

	purged := 0
	for i, r := range t.rows {
		if _, ok := r.Cells[col.ID]; !ok {
			continue
		}
		r = r.Clone()
		delete(r.Cells, col.ID)
		t.rows[i] = r
		purged++
	}
	event := t.bump(core.ChangeSchema, "", col.ID)
	t.mu.Unlock()

	t.logger.Info("column deleted", "column", col.ID, "purged", purged)
	t.ws.publish(ctx, event)
	return purged, nil
}

// prepareCell checks that a value may be written to a column.
func (t *Table) prepareCell(col core.Column, v core.Value) error {
	return schema.NewSchemaValidator(core.Schema{}, t.ws.registry).ValidateCell(col, v)
}

// Insert appends a row. cells are keyed by column id or name; columns not
// given get the type's default value and auto numbers are assigned.
func (t *Table) Insert(ctx context.Context, cells map[string]core.Value, actor string) (core.Row, error) {
	row := core.Row{ID: uuid.NewString(), Cells: make(map[string]core.Value, len(cells))}
	for ref, v := range cells {
		col, err := t.Column(ref)
		if err != nil {
			return core.Row{}, err
		}
		if err := t.prepareCell(col, v); err != nil {
			return core.Row{}, err
		}
		if !v.IsNull() {
			row.Cells[col.ID] = v
		}
	}

	now := t.ws.now().UTC()
	row.Meta = core.RowMeta{CreatedAt: now, CreatedBy: actor, ModifiedAt: now, ModifiedBy: actor}

	t.mu.Lock()
	for _, col := range t.schema.Columns {
		if _, ok := row.Cells[col.ID]; ok {
			continue
		}
		if col.Type == typeAutoNumber {
			row.Cells[col.ID] = core.Number(t.sequences[col.ID])
			t.sequences[col.ID]++
			continue
		}
		if def, ok := t.definition(col); ok && !def.Meta().DefaultValue.IsNull() {
			row.Cells[col.ID] = def.Meta().DefaultValue
		}
	}
	t.rows = append(t.rows, row)
	t.index[row.ID] = len(t.rows) - 1
	event := t.bump(core.ChangeInsert, row.ID, "")
	t.mu.Unlock()

	t.ws.publish(ctx, event)
	return row, nil
}

// ParseCells converts user input, keyed by column id or name, into values
// with each column type's parser. Input that does not parse is rejected.
func (t *Table) ParseCells(input map[string]string) (map[string]core.Value, error) {
	out := make(map[string]core.Value, len(input))
	for ref, text := range input {
		col, err := t.Column(ref)
		if err != nil {
			return nil, err
		}
		v, err := t.parse(col, text)
		if err != nil {
			return nil, err
		}
		out[col.ID] = v
	}
	return out, nil
}

func (t *Table) parse(col core.Column, text string) (core.Value, error) {
	if strings.TrimSpace(text) == "" {
		return core.Null(), nil
	}
	def, ok := t.definition(col)
	if !ok {
		return core.Text(text), nil
	}
	p, ok := def.(core.Parser)
	if !ok {
		return core.Text(text), nil
	}
	v := p.Parse(text, col.Config)
	if v.IsNull() {
		return v, fmt.Errorf("column %q: %w", col.Name, core.Invalid("Could not read %q as %s", text, def.Meta().Name))
	}
	return v, nil
}

// Load appends stored rows without validation, keeping their ids and
// metadata. Auto number sequences continue after the highest loaded value.
func (t *Table) Load(ctx context.Context, rows []core.Row) error {
	now := t.ws.now().UTC()

	t.mu.Lock()
	for _, r := range rows {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if _, dup := t.index[r.ID]; dup {
			t.mu.Unlock()
			return fmt.Errorf("load %s: duplicate row id %s", t.schema.TableID, r.ID)
		}
		r = r.Clone()
		if r.Meta.CreatedAt.IsZero() {
			r.Meta.CreatedAt = now
		}
		if r.Meta.ModifiedAt.IsZero() {
			r.Meta.ModifiedAt = r.Meta.CreatedAt
		}
		for id, next := range t.sequences {
			if n, ok := r.Get(id).AsNumber(); ok && n >= next {
				t.sequences[id] = n + 1
			}
		}
		t.rows = append(t.rows, r)
		t.index[r.ID] = len(t.rows) - 1
	}
	event := t.bump(core.ChangeInsert, "", "")
	t.mu.Unlock()

	t.logger.Debug("rows loaded", "rows", len(rows))
	t.ws.publish(ctx, event)
	return nil
}

// SetCell writes one value. Null clears the cell.
func (t *Table) SetCell(ctx context.Context, rowID, columnRef string, v core.Value, actor string) error {
	col, err := t.Column(columnRef)
	if err != nil {
		return err
	}
	if err := t.prepareCell(col, v); err != nil {
		return err
	}

	t.mu.Lock()
	i, ok := t.index[rowID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	r := t.rows[i].Clone()
	if v.IsNull() {
		delete(r.Cells, col.ID)
	} else {
		r.Cells[col.ID] = v
	}
	r.Meta.ModifiedAt = t.ws.now().UTC()
	r.Meta.ModifiedBy = actor
	t.rows[i] = r
	event := t.bump(core.ChangeUpdate, rowID, col.ID)
	t.mu.Unlock()

	t.ws.publish(ctx, event)
	return nil
}

// SetCellText parses input with the column's type and writes the result.
func (t *Table) SetCellText(ctx context.Context, rowID, columnRef, input, actor string) error {
	col, err := t.Column(columnRef)
	if err != nil {
		return err
	}
	v, err := t.parse(col, input)
	if err != nil {
		return err
	}
	return t.SetCell(ctx, rowID, col.ID, v, actor)
}

// DeleteRow removes a row. Relation cells elsewhere that point at it are
// left alone; resolution skips ids that no longer exist.
func (t *Table) DeleteRow(ctx context.Context, rowID string) error {
	t.mu.Lock()
	i, ok := t.index[rowID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	t.rows = append(t.rows[:i:i], t.rows[i+1:]...)
	t.reindex()
	event := t.bump(core.ChangeDelete, rowID, "")
	t.mu.Unlock()

	t.ws.publish(ctx, event)
	return nil
}

func exportText(def core.Definition, v core.Value, cfg core.Config) string {
	if e, ok := def.(core.Exporter); ok {
		return e.Export(v, cfg)
	}
	return def.Format(v, cfg)
}
