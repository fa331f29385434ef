package table

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/schema"
)

// ExportCSV writes every row with computed cells, one column per schema
// column in schema order.
func (t *Table) ExportCSV(ctx context.Context, w io.Writer, withID bool) error {
	rows := t.Rows()
	records := make([]map[string]core.Value, 0, len(rows))
	for _, r := range rows {
		rec, err := t.Record(ctx, r)
		if err != nil {
			return fmt.Errorf("export %s: %w", t.ID(), err)
		}
		rec[schema.IDColumn] = core.Text(r.ID)
		records = append(records, rec)
	}
	return schema.NewTranslator(t.ws.registry).WriteCSV(w, t.Schema(), records, withID)
}

// ImportCSV inserts one row per CSV record. Cells that fail to import or
// validate are skipped and reported in the returned error; the rest of the
// row is still inserted. It returns the number of inserted rows.
func (t *Table) ImportCSV(ctx context.Context, r io.Reader, actor string) (int, error) {
	records, readErr := schema.NewTranslator(t.ws.registry).ReadCSV(r, t.Schema())
	inserted := 0
	var errs []error
	if readErr != nil {
		errs = append(errs, readErr)
	}
	sv := schema.NewSchemaValidator(t.Schema(), t.ws.registry)
	for i, rec := range records {
		delete(rec, schema.IDColumn)
		for id, v := range rec {
			col, err := t.Column(id)
			if err == nil {
				err = sv.ValidateCell(col, v)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("record %d: %w", i+1, err))
				delete(rec, id)
			}
		}
		if _, err := t.Insert(ctx, rec, actor); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i+1, err))
			continue
		}
		inserted++
	}
	t.logger.Info("csv imported", "rows", inserted, "problems", len(errs))
	return inserted, errors.Join(errs...)
}
