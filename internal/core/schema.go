package core

import "time"

// Column is a named slot in a table schema.
type Column struct {
	// ID is the stable column identifier rows are keyed by.
	ID string `json:"id" yaml:"id"`

	// Name is the display name; formula placeholders may use it.
	Name string `json:"name" yaml:"name"`

	// Type references a registered column type definition.
	Type string `json:"type" yaml:"type"`

	// Config overrides the definition's default configuration.
	Config Config `json:"config,omitempty" yaml:"config,omitempty"`
}

// Schema is the ordered column list of a table.
type Schema struct {
	// TableID identifies the table the schema belongs to.
	TableID string `json:"tableId" yaml:"tableId"`

	// Name is the display name of the table.
	Name string `json:"name" yaml:"name"`

	// Columns contains all column definitions for the table.
	Columns []Column `json:"columns" yaml:"columns"`
}

// Column returns the column with the given id.
func (s *Schema) Column(id string) (Column, bool) {
	for _, c := range s.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByName returns the first column whose name matches.
func (s *Schema) ColumnByName(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// RowMeta is engine-managed row metadata read by the created/modified types.
type RowMeta struct {
	CreatedAt  time.Time `json:"createdAt"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt"`
	ModifiedBy string    `json:"modifiedBy,omitempty"`
}

// Row is one record: cell values keyed by column id plus metadata.
type Row struct {
	ID    string           `json:"id"`
	Cells map[string]Value `json:"cells"`
	Meta  RowMeta          `json:"meta"`
}

// Get returns the stored value for a column, or null.
func (r Row) Get(columnID string) Value {
	if r.Cells == nil {
		return Null()
	}
	return r.Cells[columnID]
}

// Clone returns a copy whose cell map can be mutated independently.
func (r Row) Clone() Row {
	cells := make(map[string]Value, len(r.Cells))
	for k, v := range r.Cells {
		cells[k] = v
	}
	r.Cells = cells
	return r
}
