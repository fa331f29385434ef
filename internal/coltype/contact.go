package coltype

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
)

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]+$`)
)

// linkType is plain text with a format check and a link renderer.
type linkType struct {
	base
	widget string
	href   func(s string) string
	check  func(s string, cfg core.Config) error
}

// Email is an email address.
func Email() core.Definition {
	return linkType{
		base: base{meta: core.Meta{
			ID:            "email",
			Name:          "Email",
			Description:   "Email address",
			Category:      core.CategoryContact,
			Icon:          "mail",
			DefaultConfig: core.Config{},
		}},
		widget: "link",
		href:   func(s string) string { return "mailto:" + s },
		check: func(s string, _ core.Config) error {
			if !emailPattern.MatchString(s) {
				return core.Invalid("%q is not a valid email address", s)
			}
			return nil
		},
	}
}

// Phone is a telephone number.
func Phone() core.Definition {
	return linkType{
		base: base{meta: core.Meta{
			ID:            "phone",
			Name:          "Phone",
			Description:   "Telephone number",
			Category:      core.CategoryContact,
			Icon:          "phone",
			DefaultConfig: core.Config{"minDigits": 7},
		}},
		widget: "link",
		href: func(s string) string {
			return "tel:" + strings.Map(func(r rune) rune {
				if r == '+' || (r >= '0' && r <= '9') {
					return r
				}
				return -1
			}, s)
		},
		check: func(s string, cfg core.Config) error {
			if !phonePattern.MatchString(s) {
				return core.Invalid("%q is not a valid phone number", s)
			}
			digits := 0
			for _, r := range s {
				if r >= '0' && r <= '9' {
					digits++
				}
			}
			if digits < cfg.Int("minDigits", 7) {
				return core.Invalid("%q is too short for a phone number", s)
			}
			return nil
		},
	}
}

// URL is a web address.
func URL() core.Definition {
	return linkType{
		base: base{meta: core.Meta{
			ID:            "url",
			Name:          "URL",
			Description:   "Web address",
			Category:      core.CategoryContact,
			Icon:          "link",
			DefaultConfig: core.Config{"schemes": []string{"http", "https"}},
		}},
		widget: "link",
		href:   func(s string) string { return s },
		check: func(s string, cfg core.Config) error {
			u, err := url.Parse(s)
			if err != nil || u.Host == "" {
				return core.Invalid("%q is not a valid URL", s)
			}
			for _, scheme := range cfg.Strings("schemes") {
				if strings.EqualFold(u.Scheme, scheme) {
					return nil
				}
			}
			return core.Invalid("URL scheme %q is not allowed", u.Scheme)
		},
	}
}

func (l linkType) Render(v core.Value, cfg core.Config) core.Display {
	s := textOf(v)
	d := core.Display{Widget: l.widget, Text: l.Format(v, cfg)}
	if s != "" {
		d.Href = l.href(s)
	}
	return d
}

func (l linkType) Format(v core.Value, _ core.Config) string {
	return strings.TrimSpace(textOf(v))
}

func (l linkType) Parse(input string, _ core.Config) core.Value {
	input = strings.TrimSpace(input)
	if l.meta.ID == "url" && input != "" && !strings.Contains(input, "://") {
		input = "https://" + input
	}
	return textImport(input)
}

func (l linkType) Validate(v core.Value, cfg core.Config) error {
	if v.IsEmpty() {
		return nil
	}
	s, ok := v.AsText()
	if !ok {
		return core.Invalid("Value must be text")
	}
	return l.check(strings.TrimSpace(s), l.config(cfg))
}

func (l linkType) Compare(a, b core.Value, _ core.Config) int {
	return compareStrings(a, b)
}

func (l linkType) Operators() []core.FilterOperator { return textOperators }

func (l linkType) Filter(v, fv core.Value, op core.FilterOperator, _ core.Config) bool {
	return filterText(textOf(v), v.IsEmpty(), fv, op)
}

// Addresses compare case-insensitively for count_unique.
var linkReducer = aggregate.Reducer{Key: func(v core.Value) string {
	return strings.ToLower(strings.TrimSpace(textOf(v)))
}}

func (l linkType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (l linkType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, linkReducer, values, kind)
}

func (l linkType) Export(v core.Value, _ core.Config) string { return textOf(v) }

func (l linkType) Import(s string, _ core.Config) (core.Value, error) {
	return textImport(strings.TrimSpace(s)), nil
}

// locationType stores {address, lat, lng}.
type locationType struct {
	base
}

// Location is a place with optional coordinates.
func Location() core.Definition {
	return locationType{base{meta: core.Meta{
		ID:            "location",
		Name:          "Location",
		Description:   "Address or coordinates",
		Category:      core.CategoryContact,
		Icon:          "map-pin",
		DefaultConfig: core.Config{"mapProvider": "openstreetmap"},
	}}}
}

func coordinates(v core.Value) (float64, float64, bool) {
	lat, latOK := v.Field("lat").AsNumber()
	lng, lngOK := v.Field("lng").AsNumber()
	return lat, lng, latOK && lngOK
}

func (l locationType) Render(v core.Value, cfg core.Config) core.Display {
	d := core.Display{Widget: "location", Text: l.Format(v, cfg), Icon: "map-pin"}
	if lat, lng, ok := coordinates(v); ok {
		d.Href = fmt.Sprintf("https://www.openstreetmap.org/?mlat=%s&mlon=%s",
			strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lng, 'f', -1, 64))
	}
	return d
}

func (l locationType) Format(v core.Value, _ core.Config) string {
	switch v.Kind() {
	case core.KindText:
		return textOf(v)
	case core.KindObject:
		if addr, ok := v.Field("address").AsText(); ok && addr != "" {
			return addr
		}
		if lat, lng, ok := coordinates(v); ok {
			return strconv.FormatFloat(lat, 'f', -1, 64) + ", " + strconv.FormatFloat(lng, 'f', -1, 64)
		}
	}
	return ""
}

// Parse reads "lat, lng" pairs into coordinates and anything else as an
// address.
func (l locationType) Parse(input string, _ core.Config) core.Value {
	input = strings.TrimSpace(input)
	if input == "" {
		return core.Null()
	}
	if parts := strings.Split(input, ","); len(parts) == 2 {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLat == nil && errLng == nil {
			return core.Object(map[string]core.Value{"lat": core.Number(lat), "lng": core.Number(lng)})
		}
	}
	return core.Object(map[string]core.Value{"address": core.Text(input)})
}

func (l locationType) Validate(v core.Value, _ core.Config) error {
	if v.IsNull() {
		return nil
	}
	if v.Kind() != core.KindObject {
		return core.Invalid("Value must be a location")
	}
	lat, latOK := v.Field("lat").AsNumber()
	lng, lngOK := v.Field("lng").AsNumber()
	if latOK != lngOK {
		return core.Invalid("Latitude and longitude must be given together")
	}
	if latOK && (lat < -90 || lat > 90) {
		return core.Invalid("Latitude must be between -90 and 90")
	}
	if lngOK && (lng < -180 || lng > 180) {
		return core.Invalid("Longitude must be between -180 and 180")
	}
	if _, ok := v.Field("address").AsText(); !ok && !latOK {
		return core.Invalid("Location needs an address or coordinates")
	}
	return nil
}

func (l locationType) Operators() []core.FilterOperator {
	return []core.FilterOperator{core.OpContains, core.OpNotContains, core.OpIsEmpty, core.OpIsNotEmpty}
}

func (l locationType) Filter(v, fv core.Value, op core.FilterOperator, cfg core.Config) bool {
	return filterText(l.Format(v, cfg), v.IsEmpty(), fv, op)
}

func (l locationType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (l locationType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, countReducer, values, kind)
}

func (l locationType) Export(v core.Value, _ core.Config) string {
	return exportJSON(v)
}

func (l locationType) Import(s string, cfg core.Config) (core.Value, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		return importJSON(s)
	}
	return l.Parse(s, cfg), nil
}
