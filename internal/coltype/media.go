package coltype

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/rzpsarthak13/ultratable/internal/aggregate"
	"github.com/rzpsarthak13/ultratable/internal/core"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true, ".bmp": true,
}

// fileType stores a list of file objects {name, url, size, mimeType}.
type fileType struct {
	base
	imagesOnly bool
}

// Attachment is the generic file list.
func Attachment() core.Definition {
	return fileType{base: base{meta: core.Meta{
		ID:            "attachment",
		Name:          "Attachment",
		Description:   "Uploaded files",
		Category:      core.CategoryMedia,
		Icon:          "paperclip",
		DefaultConfig: core.Config{"maxFiles": 10, "maxSizeBytes": 25 << 20},
	}}}
}

// Image only accepts image files.
func Image() core.Definition {
	return fileType{
		base: base{meta: core.Meta{
			ID:            "image",
			Name:          "Image",
			Description:   "Uploaded images",
			Category:      core.CategoryMedia,
			Icon:          "image",
			DefaultConfig: core.Config{"maxFiles": 10, "maxSizeBytes": 10 << 20},
		}},
		imagesOnly: true,
	}
}

// files returns the file objects held by v; a lone object is one file.
func files(v core.Value) []core.Value {
	if v.Kind() == core.KindObject {
		return []core.Value{v}
	}
	var out []core.Value
	for _, item := range v.Flatten() {
		if item.Kind() == core.KindObject {
			out = append(out, item)
		}
	}
	return out
}

func fileName(f core.Value) string {
	if name, ok := f.Field("name").AsText(); ok && name != "" {
		return name
	}
	u, _ := f.Field("url").AsText()
	if parsed, err := url.Parse(u); err == nil && parsed.Path != "" {
		return path.Base(parsed.Path)
	}
	return u
}

func isImage(f core.Value) bool {
	if mime, ok := f.Field("mimeType").AsText(); ok && mime != "" {
		return strings.HasPrefix(mime, "image/")
	}
	return imageExtensions[strings.ToLower(path.Ext(fileName(f)))]
}

func (f fileType) Render(v core.Value, cfg core.Config) core.Display {
	widget := "files"
	if f.imagesOnly {
		widget = "gallery"
	}
	d := core.Display{Widget: widget, Text: f.Format(v, cfg)}
	for _, file := range files(v) {
		href, _ := file.Field("url").AsText()
		d.Items = append(d.Items, core.Display{Widget: "file", Text: fileName(file), Href: href, Icon: "file"})
	}
	return d
}

func (f fileType) Format(v core.Value, _ core.Config) string {
	var names []string
	for _, file := range files(v) {
		names = append(names, fileName(file))
	}
	return joinNonEmpty(names, ", ")
}

func (f fileType) Validate(v core.Value, cfg core.Config) error {
	if v.IsNull() {
		return nil
	}
	if v.Kind() != core.KindList {
		return core.Invalid("Value must be a list of files")
	}
	c := f.config(cfg)
	if max := c.Int("maxFiles", 0); max > 0 && len(v.Items()) > max {
		return core.Invalid("At most %d files are allowed", max)
	}
	maxSize := c.FloatOr("maxSizeBytes", 0)
	for _, item := range v.Items() {
		if item.Kind() != core.KindObject {
			return core.Invalid("Every file must be an object")
		}
		u, _ := item.Field("url").AsText()
		if u == "" {
			return core.Invalid("File %q has no url", fileName(item))
		}
		if size, ok := item.Field("size").AsNumber(); ok && maxSize > 0 && size > maxSize {
			return core.Invalid("File %q is too large", fileName(item))
		}
		if f.imagesOnly && !isImage(item) {
			return core.Invalid("File %q is not an image", fileName(item))
		}
	}
	return nil
}

func (f fileType) Operators() []core.FilterOperator {
	return []core.FilterOperator{core.OpContains, core.OpIsEmpty, core.OpIsNotEmpty}
}

func (f fileType) Filter(v, fv core.Value, op core.FilterOperator, cfg core.Config) bool {
	return filterText(f.Format(v, cfg), v.IsEmpty(), fv, op)
}

func (f fileType) SupportedAggregations() []core.AggregationKind { return aggregate.CountKinds }

func (f fileType) Aggregate(values []core.Value, kind core.AggregationKind, _ core.Config) core.Value {
	return reduce(aggregate.CountKinds, countReducer, values, kind)
}

// Export writes the file list as JSON.
func (f fileType) Export(v core.Value, _ core.Config) string {
	return exportJSON(v)
}

// Import accepts the JSON export or a comma-separated list of URLs.
func (f fileType) Import(s string, _ core.Config) (core.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Null(), nil
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		return importJSON(s)
	}
	var items []core.Value
	for _, part := range splitItems(s) {
		if _, err := url.ParseRequestURI(part); err != nil {
			return core.Null(), core.Invalid("%q is not a file url", part)
		}
		items = append(items, core.Object(map[string]core.Value{"url": core.Text(part)}))
	}
	return core.List(items...), nil
}

// exportJSON renders lists and objects as compact JSON; null is blank.
func exportJSON(v core.Value) string {
	if v.IsNull() {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func importJSON(s string) (core.Value, error) {
	var v core.Value
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return core.Null(), core.Invalid("Invalid JSON: %v", err)
	}
	return v, nil
}
