package coltype

import (
	"fmt"

	"github.com/rzpsarthak13/ultratable/internal/core"
	"github.com/rzpsarthak13/ultratable/internal/registry"
)

// Builtins returns every built-in definition in catalog order.
func Builtins() []core.Definition {
	return []core.Definition{
		// basic
		Text(), LongText(), Number(), Decimal(), Currency(), Percent(), Checkbox(),
		// selection
		Dropdown(), MultiSelect(), Status(), Priority(), Tags(),
		// datetime
		Date(), DateTime(), TimeOfDay(), Duration(), CreatedTime(), ModifiedTime(),
		// people
		User(), CreatedBy(), ModifiedBy(),
		// media
		Attachment(), Image(),
		// contact
		Email(), Phone(), URL(), Location(),
		// code
		JSON(), Code(),
		// relations
		Relation(), Lookup(), Rollup(), Count(),
		// formulas
		Formula(), AutoNumber(),
		// visual
		Rating(), Progress(), Vote(), Color(), Button(),
		// advanced
		Barcode(), IPAddress(),
	}
}

// RegisterBuiltins registers the built-in types, skipping any id in skip.
func RegisterBuiltins(reg *registry.Registry, skip ...string) error {
	skipped := make(map[string]bool, len(skip))
	for _, id := range skip {
		skipped[id] = true
	}
	for _, def := range Builtins() {
		if skipped[def.Meta().ID] {
			continue
		}
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("register built-in types: %w", err)
		}
	}
	return nil
}

// NewRegistry returns a frozen registry holding the built-in types.
func NewRegistry() (*registry.Registry, error) {
	reg := registry.New(nil)
	if err := RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	if err := reg.Freeze(); err != nil {
		return nil, err
	}
	return reg, nil
}
