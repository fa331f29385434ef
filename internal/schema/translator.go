package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/registry"
)

// IDColumn is the header or SQL column carrying the row id.
const IDColumn = "id"

// Scanner is the part of *sql.Rows the translator reads.
type Scanner interface {
	Scan(dest ...any) error
}

// Translator converts cells to and from external formats: CSV text through
// each type's Export and Import, and SQL through the TypeMapper.
type Translator struct {
	registry *registry.Registry
	mapper   *TypeMapper
}

// NewTranslator creates a translator resolving column types in reg.
func NewTranslator(reg *registry.Registry) *Translator {
	return &Translator{registry: reg, mapper: NewTypeMapper()}
}

// ExportCell returns the interchange text of a value. Types without an
// exporter use their display format; unknown types use the plain value.
func (t *Translator) ExportCell(col core.Column, v core.Value) string {
	def, ok := t.registry.Get(col.Type)
	if !ok {
		return v.String()
	}
	if e, ok := def.(core.Exporter); ok {
		return e.Export(v, col.Config)
	}
	return def.Format(v, col.Config)
}

// ImportCell reads interchange text with the column's importer, falling
// back to its parser and then to plain text.
func (t *Translator) ImportCell(col core.Column, s string) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	def, ok := t.registry.Get(col.Type)
	if !ok {
		return core.Text(s), nil
	}
	if imp, ok := def.(core.Importer); ok {
		v, err := imp.Import(s, col.Config)
		if err != nil {
			return core.Null(), fmt.Errorf("column %q: %w", col.Name, err)
		}
		return v, nil
	}
	if p, ok := def.(core.Parser); ok {
		v := p.Parse(s, col.Config)
		if v.IsNull() {
			return v, fmt.Errorf("column %q: %w", col.Name, core.Invalid("Could not read %q", s))
		}
		return v, nil
	}
	return core.Text(s), nil
}

// WriteCSV writes a header of column names followed by one line per
// record. Records are keyed by column id and may carry IDColumn.
func (t *Translator) WriteCSV(w io.Writer, s core.Schema, records []map[string]core.Value, withID bool) error {
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(s.Columns)+1)
	if withID {
		header = append(header, IDColumn)
	}
	for _, col := range s.Columns {
		header = append(header, col.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	line := make([]string, len(header))
	for _, rec := range records {
		line = line[:0]
		if withID {
			line = append(line, rec[IDColumn].String())
		}
		for _, col := range s.Columns {
			line = append(line, t.ExportCell(col, rec[col.ID]))
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads records whose header names columns by name or id. Columns
// of read-only types and unknown headers are ignored. Cells that do not
// import are left out of their record and reported together in the error,
// next to the records that were read.
func (t *Translator) ReadCSV(r io.Reader, s core.Schema) ([]map[string]core.Value, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make([]*core.Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == IDColumn {
			continue
		}
		col, ok := s.Column(name)
		if !ok {
			col, ok = s.ColumnByName(name)
		}
		if !ok || t.readOnly(col) {
			continue
		}
		cols[i] = &col
	}

	var records []map[string]core.Value
	var errs []error
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rec := make(map[string]core.Value, len(fields))
		for i, field := range fields {
			if i >= len(header) {
				break
			}
			if header[i] == IDColumn && field != "" {
				rec[IDColumn] = core.Text(field)
				continue
			}
			if cols[i] == nil {
				continue
			}
			v, err := t.ImportCell(*cols[i], field)
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d: %w", line, err))
				continue
			}
			if !v.IsNull() {
				rec[cols[i].ID] = v
			}
		}
		records = append(records, rec)
	}
	return records, errors.Join(errs...)
}

// ToDB builds an INSERT statement for one row. Values are stored as their
// interchange text when the type has an exporter, so FromDB restores them
// exactly. Read-only columns are not stored.
func (t *Translator) ToDB(table string, s core.Schema, id string, cells map[string]core.Value) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("table name cannot be empty")
	}
	columns := []string{quoteIdent(IDColumn)}
	placeholders := []string{"?"}
	args := []any{id}
	for _, col := range s.Columns {
		if t.readOnly(col) {
			continue
		}
		arg, err := t.driverValue(col, cells[col.ID])
		if err != nil {
			return "", nil, fmt.Errorf("failed to convert value for column '%s': %w", col.Name, err)
		}
		columns = append(columns, quoteIdent(col.ID))
		placeholders = append(placeholders, "?")
		args = append(args, arg)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	return query, args, nil
}

// CreateTableDDL returns a CREATE TABLE statement storing every writable
// column as text.
func (t *Translator) CreateTableDDL(table string, s core.Schema) string {
	defs := []string{quoteIdent(IDColumn) + " VARCHAR(64) PRIMARY KEY"}
	for _, col := range s.Columns {
		if t.readOnly(col) {
			continue
		}
		defs = append(defs, quoteIdent(col.ID)+" TEXT")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

// FromDB scans one result row. columns are the result's column names,
// matched to schema columns by id, then by name; the IDColumn result
// becomes the row id. Scanned values go through the column type's importer
// so dates, booleans and JSON read back as the type stores them.
func (t *Translator) FromDB(row Scanner, columns []string, s core.Schema) (string, map[string]core.Value, error) {
	raw := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return "", nil, fmt.Errorf("failed to scan row: %w", err)
	}

	var id string
	cells := make(map[string]core.Value, len(columns))
	var errs []error
	for i, name := range columns {
		v, err := t.mapper.FromDriverValue(raw[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("column '%s': %w", name, err))
			continue
		}
		if strings.EqualFold(name, IDColumn) {
			id = v.String()
			continue
		}
		col, ok := s.Column(name)
		if !ok {
			col, ok = s.ColumnByName(name)
		}
		if !ok || v.IsNull() {
			continue
		}
		if def, ok := t.registry.Get(col.Type); ok {
			if imp, ok := def.(core.Importer); ok {
				v, err = imp.Import(v.String(), col.Config)
				if err != nil {
					errs = append(errs, fmt.Errorf("column '%s': %w", name, err))
					continue
				}
			}
		}
		if !v.IsNull() {
			cells[col.ID] = v
		}
	}
	return id, cells, errors.Join(errs...)
}

func (t *Translator) driverValue(col core.Column, v core.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if def, ok := t.registry.Get(col.Type); ok {
		if e, ok := def.(core.Exporter); ok {
			return e.Export(v, col.Config), nil
		}
	}
	return t.mapper.ToDriverValue(v)
}

func (t *Translator) readOnly(col core.Column) bool {
	def, ok := t.registry.Get(col.Type)
	return ok && def.Meta().ReadOnly
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
