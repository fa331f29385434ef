package schema

import (
	"errors"
	"fmt"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/registry"
)

var (
	// ErrUnknownColumn is returned for record keys that match no column.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrUnknownType is returned for columns whose type is not registered.
	ErrUnknownType = errors.New("unknown column type")

	// ErrReadOnly is returned for values written to system-computed columns.
	ErrReadOnly = errors.New("column is read-only")
)

// SchemaValidator validates cell values against a schema's column types.
type SchemaValidator struct {
	schema   core.Schema
	registry *registry.Registry
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(s core.Schema, reg *registry.Registry) *SchemaValidator {
	return &SchemaValidator{schema: s, registry: reg}
}

// ValidateCell checks that v may be written to col.
func (sv *SchemaValidator) ValidateCell(col core.Column, v core.Value) error {
	def, ok := sv.registry.Get(col.Type)
	if !ok {
		return fmt.Errorf("column %q: %w %s", col.Name, ErrUnknownType, col.Type)
	}
	if def.Meta().ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, col.Name)
	}
	if val, ok := def.(core.Validator); ok {
		if err := val.Validate(v, col.Config); err != nil {
			return fmt.Errorf("column %q: %w", col.Name, err)
		}
	}
	return nil
}

// ValidateRecord validates every cell of a record keyed by column id or
// name. All failures are reported together.
func (sv *SchemaValidator) ValidateRecord(cells map[string]core.Value) error {
	var errs []error
	for ref, v := range cells {
		col, ok := sv.column(ref)
		if !ok {
			errs = append(errs, fmt.Errorf("%w %q", ErrUnknownColumn, ref))
			continue
		}
		if err := sv.ValidateCell(col, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (sv *SchemaValidator) column(ref string) (core.Column, bool) {
	if col, ok := sv.schema.Column(ref); ok {
		return col, true
	}
	return sv.schema.ColumnByName(ref)
}
