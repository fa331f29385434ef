package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/table"
)

// workspaceFile is the YAML document the CLI reads and writes:
//
//	tables:
//	  - id: orders
//	    columns:
//	      - {id: price, name: Price, type: currency}
//	    rows:
//	      - id: r1
//	        cells: {price: 12.5}
type workspaceFile struct {
	Tables []tableFile `yaml:"tables"`
}

type tableFile struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name,omitempty"`
	Columns []core.Column `yaml:"columns"`
	Rows    []rowFile     `yaml:"rows,omitempty"`
}

type rowFile struct {
	ID         string         `yaml:"id,omitempty"`
	Cells      map[string]any `yaml:"cells"`
	CreatedAt  time.Time      `yaml:"created_at,omitempty"`
	CreatedBy  string         `yaml:"created_by,omitempty"`
	ModifiedAt time.Time      `yaml:"modified_at,omitempty"`
	ModifiedBy string         `yaml:"modified_by,omitempty"`
}

func readWorkspaceFile(path string) (*workspaceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}
	var f workspaceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse workspace file %s: %w", path, err)
	}
	return &f, nil
}

// loadWorkspace creates every table of the file in ws, then loads the rows.
// Tables are created first so relations may point forward.
func loadWorkspace(ctx context.Context, ws *table.Workspace, f *workspaceFile) error {
	tables := make([]*table.Table, len(f.Tables))
	for i, tf := range f.Tables {
		tbl, err := ws.CreateTable(ctx, core.Schema{TableID: tf.ID, Name: tf.Name, Columns: tf.Columns})
		if err != nil {
			return fmt.Errorf("table %s: %w", tf.ID, err)
		}
		tables[i] = tbl
	}
	for i, tf := range f.Tables {
		rows := make([]core.Row, 0, len(tf.Rows))
		for _, rf := range tf.Rows {
			row, err := decodeRow(tables[i], rf)
			if err != nil {
				return fmt.Errorf("table %s row %s: %w", tf.ID, rf.ID, err)
			}
			rows = append(rows, row)
		}
		if err := tables[i].Load(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}

// decodeRow keys cells by column id. Strings and YAML timestamps go
// through the column's parser; structured values are taken as they are.
func decodeRow(tbl *table.Table, rf rowFile) (core.Row, error) {
	row := core.Row{
		ID:    rf.ID,
		Cells: make(map[string]core.Value, len(rf.Cells)),
		Meta: core.RowMeta{
			CreatedAt:  rf.CreatedAt,
			CreatedBy:  rf.CreatedBy,
			ModifiedAt: rf.ModifiedAt,
			ModifiedBy: rf.ModifiedBy,
		},
	}
	for ref, raw := range rf.Cells {
		col, err := tbl.Column(ref)
		if err != nil {
			return core.Row{}, err
		}
		var text string
		switch x := raw.(type) {
		case string:
			text = x
		case time.Time:
			text = x.UTC().Format(time.RFC3339)
		default:
			row.Cells[col.ID] = core.FromAny(raw)
			continue
		}
		parsed, err := tbl.ParseCells(map[string]string{col.ID: text})
		if err != nil {
			return core.Row{}, err
		}
		row.Cells[col.ID] = parsed[col.ID]
	}
	return row, nil
}

// encodeWorkspace captures the stored state of every table in ws.
func encodeWorkspace(ws *table.Workspace) *workspaceFile {
	var f workspaceFile
	for _, tbl := range ws.Tables() {
		s := tbl.Schema()
		tf := tableFile{ID: s.TableID, Name: s.Name, Columns: s.Columns}
		for _, r := range tbl.Rows() {
			rf := rowFile{
				ID:         r.ID,
				Cells:      make(map[string]any, len(r.Cells)),
				CreatedAt:  r.Meta.CreatedAt,
				CreatedBy:  r.Meta.CreatedBy,
				ModifiedAt: r.Meta.ModifiedAt,
				ModifiedBy: r.Meta.ModifiedBy,
			}
			for id, v := range r.Cells {
				if !v.IsNull() {
					rf.Cells[id] = v.Any()
				}
			}
			tf.Rows = append(tf.Rows, rf)
		}
		f.Tables = append(f.Tables, tf)
	}
	return &f
}

// writeWorkspaceFile replaces path atomically.
func writeWorkspaceFile(path string, f *workspaceFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode workspace: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workspace file: %w", err)
	}
	return os.Rename(tmp, path)
}
