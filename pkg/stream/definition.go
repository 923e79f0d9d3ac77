package stream

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/Sternrassler/coda-tap/pkg/schema"
)

// DefaultKeyProperties is the primary key declared for records when a
// Definition does not name its own.
var DefaultKeyProperties = []string{"id"}

// ErrMissingField is returned when a record lacks a field a child Context
// needs, or the field is not a scalar that can be bound into a path.
var ErrMissingField = errors.New("missing context field")

// ErrUnboundPlaceholder is returned when a path template references a token
// the Context does not carry.
var ErrUnboundPlaceholder = errors.New("unbound path placeholder")

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ContextField binds a field of a parent record to a Context key for its
// children, e.g. {Key: "docId", Field: "id"}.
type ContextField struct {
	Key   string
	Field string
}

// RecordTransform is an optional per-definition hook run after the built-in
// record normalization. Returning keep=false drops the record silently.
type RecordTransform func(record map[string]any, ctx Context) (out map[string]any, keep bool, err error)

// Definition describes one resource collection.
type Definition struct {
	// Name is the unique stream name, e.g. "pages".
	Name string

	// PathTemplate is the resource path with {placeholder} tokens,
	// e.g. "/docs/{docId}/pages".
	PathTemplate string

	// EntityRef names the entity in the API description's component map.
	EntityRef string

	// Parent is the Name of the parent definition. Empty for roots.
	Parent string

	// Description, when set, becomes the top-level description of the
	// published schema.
	Description string

	// KeyProperties overrides DefaultKeyProperties.
	KeyProperties []string

	// Contributes lists the identifiers each record of this definition
	// hands down to its children.
	Contributes []ContextField

	// SchemaPatches are applied in order to the resolved schema.
	SchemaPatches []schema.Patch

	// Polymorphic names top-level fields whose value may be a string,
	// number or boolean. They are split into typed sibling fields.
	Polymorphic []string

	// RecordTransform is an optional hook, see RecordTransform.
	RecordTransform RecordTransform
}

// IsRoot reports whether the definition has no parent.
func (d *Definition) IsRoot() bool {
	return d.Parent == ""
}

// Keys returns the declared primary key fields.
func (d *Definition) Keys() []string {
	if len(d.KeyProperties) > 0 {
		return d.KeyProperties
	}
	return DefaultKeyProperties
}

// Placeholders returns the distinct tokens in PathTemplate, in order.
func (d *Definition) Placeholders() []string {
	matches := placeholderRe.FindAllStringSubmatch(d.PathTemplate, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Path substitutes every placeholder in PathTemplate with its escaped
// Context value.
func (d *Definition) Path(ctx Context) (string, error) {
	var missing string
	path := placeholderRe.ReplaceAllStringFunc(d.PathTemplate, func(tok string) string {
		key := tok[1 : len(tok)-1]
		v, ok := ctx.Get(key)
		if !ok {
			if missing == "" {
				missing = key
			}
			return tok
		}
		return url.PathEscape(v)
	})
	if missing != "" {
		return "", fmt.Errorf("%w: stream %q needs {%s}", ErrUnboundPlaceholder, d.Name, missing)
	}
	return path, nil
}

// ChildContext extends parent with the identifiers this definition's record
// contributes to its children.
func (d *Definition) ChildContext(record map[string]any, parent Context) (Context, error) {
	ctx := parent
	for _, cf := range d.Contributes {
		raw, ok := record[cf.Field]
		if !ok || raw == nil {
			return Context{}, fmt.Errorf("%w: stream %q record has no %q", ErrMissingField, d.Name, cf.Field)
		}
		v, ok := scalarString(raw)
		if !ok {
			return Context{}, fmt.Errorf("%w: stream %q field %q is %T", ErrMissingField, d.Name, cf.Field, raw)
		}
		ctx = ctx.With(cf.Key, v)
	}
	return ctx, nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}
