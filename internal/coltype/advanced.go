package coltype

import (
	"net/netip"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
)

// Barcode symbologies.
const (
	BarcodeCode128 = "code128"
	BarcodeEAN13   = "ean13"
	BarcodeUPCA    = "upca"
	BarcodeQR      = "qr"
)

// barcodeType stores the encoded payload as text.
type barcodeType struct {
	base
}

// Barcode is the scannable-code type.
func Barcode() core.Definition {
	return barcodeType{base{meta: core.Meta{
		ID:            "barcode",
		Name:          "Barcode",
		Description:   "Barcode or QR payload",
		Category:      core.CategoryAdvanced,
		Icon:          "scan-barcode",
		DefaultConfig: core.Config{"format": BarcodeCode128},
	}}}
}

// gtinChecksum validates the trailing check digit of EAN-13 / UPC-A codes.
func gtinChecksum(code string) bool {
	sum := 0
	for i, r := range code {
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		// Weights alternate 3,1 counting from the digit left of the check digit.
		if (len(code)-1-i)%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return sum%10 == 0
}

func (b barcodeType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "barcode", Text: b.Format(v, cfg), Icon: b.config(cfg).String("format", BarcodeCode128)}
}

func (b barcodeType) Format(v core.Value, _ core.Config) string { return textOf(v) }

func (b barcodeType) Parse(input string, _ core.Config) core.Value {
	return textImport(strings.TrimSpace(input))
}

func (b barcodeType) Validate(v core.Value, cfg core.Config) error {
	if v.IsEmpty() {
		return nil
	}
	s, ok := v.AsText()
	if !ok {
		return core.Invalid("Barcode must be text")
	}
	switch format := b.config(cfg).String("format", BarcodeCode128); format {
	case BarcodeEAN13:
		if len(s) != 13 || !gtinChecksum(s) {
			return core.Invalid("%q is not a valid EAN-13 code", s)
		}
	case BarcodeUPCA:
		if len(s) != 12 || !gtinChecksum(s) {
			return core.Invalid("%q is not a valid UPC-A code", s)
		}
	case BarcodeCode128:
		for _, r := range s {
			if r > 127 {
				return core.Invalid("Code 128 only encodes ASCII characters")
			}
		}
	}
	return nil
}

func (b barcodeType) ValidateConfig(cfg core.Config) error {
	switch format := cfg.String("format", BarcodeCode128); format {
	case BarcodeCode128, BarcodeEAN13, BarcodeUPCA, BarcodeQR:
		return nil
	default:
		return core.Invalid("Unknown barcode format %q", format)
	}
}

func (b barcodeType) Compare(x, y core.Value, _ core.Config) int {
	return compareStrings(x, y)
}

func (b barcodeType) Operators() []core.FilterOperator { return textOperators }

func (b barcodeType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterText(textOf(v), v.IsEmpty(), fv, op)
}

func (b barcodeType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (b barcodeType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, countReducer, values, kind)
}

func (b barcodeType) Export(v core.Value, _ core.Config) string { return textOf(v) }

func (b barcodeType) Import(s string, _ core.Config) (core.Value, error) {
	return textImport(strings.TrimSpace(s)), nil
}

// ipType stores an IPv4 or IPv6 address in canonical text form.
type ipType struct {
	base
}

// IPAddress is the network address type.
func IPAddress() core.Definition {
	return ipType{base{meta: core.Meta{
		ID:            "ip_address",
		Name:          "IP address",
		Description:   "IPv4 or IPv6 address",
		Category:      core.CategoryAdvanced,
		Icon:          "network",
		DefaultConfig: core.Config{"version": "any"},
	}}}
}

func addr(v core.Value) (netip.Addr, bool) {
	s, ok := v.AsText()
	if !ok {
		return netip.Addr{}, false
	}
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	return a, err == nil
}

func (i ipType) Render(v core.Value, cfg core.Config) core.Display {
	return core.Display{Widget: "text", Text: i.Format(v, cfg), Icon: "network"}
}

func (i ipType) Format(v core.Value, _ core.Config) string {
	if a, ok := addr(v); ok {
		return a.String()
	}
	return textOf(v)
}

func (i ipType) Parse(input string, _ core.Config) core.Value {
	a, ok := addr(core.Text(input))
	if !ok {
		return core.Null()
	}
	return core.Text(a.String())
}

func (i ipType) Validate(v core.Value, cfg core.Config) error {
	if v.IsEmpty() {
		return nil
	}
	a, ok := addr(v)
	if !ok {
		return core.Invalid("%q is not a valid IP address", textOf(v))
	}
	switch i.config(cfg).String("version", "any") {
	case "v4":
		if !a.Is4() {
			return core.Invalid("%q is not an IPv4 address", textOf(v))
		}
	case "v6":
		if !a.Is6() {
			return core.Invalid("%q is not an IPv6 address", textOf(v))
		}
	}
	return nil
}

// Compare orders addresses numerically, IPv4 before IPv6.
func (i ipType) Compare(x, y core.Value, _ core.Config) int {
	if c, ok := nullsLast(x, y); ok {
		return c
	}
	xa, xok := addr(x)
	ya, yok := addr(y)
	switch {
	case xok && yok:
		return xa.Compare(ya)
	case xok:
		return -1
	case yok:
		return 1
	}
	return compareText(textOf(x), textOf(y))
}

func (i ipType) Operators() []core.FilterOperator {
	return []core.FilterOperator{core.OpEquals, core.OpNotEquals, core.OpContains, core.OpStartsWith, core.OpIsEmpty, core.OpIsNotEmpty}
}

// Filter treats a CIDR operand of contains as a subnet match.
func (i ipType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	if op == core.OpContains {
		if prefix, err := netip.ParsePrefix(strings.TrimSpace(fv.String())); err == nil {
			a, ok := addr(v)
			return ok && prefix.Contains(a)
		}
	}
	return filterText(textOf(v), v.IsEmpty(), fv, op)
}

func (i ipType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (i ipType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, countReducer, values, kind)
}

func (i ipType) Export(v core.Value, cfg core.Config) string { return i.Format(v, cfg) }

func (i ipType) Import(s string, cfg core.Config) (core.Value, error) {
	if strings.TrimSpace(s) == "" {
		return core.Null(), nil
	}
	v := i.Parse(s, cfg)
	if v.IsNull() {
		return v, core.Invalid("%q is not a valid IP address", s)
	}
	return v, nil
}
