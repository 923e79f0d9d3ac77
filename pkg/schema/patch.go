package schema

import (
	"fmt"
	"strings"
)

// Variant suffixes used when a polymorphic field is split by runtime type.
const (
	VariantString  = "string"
	VariantNumber  = "number"
	VariantBoolean = "boolean"
)

// VariantField returns the sibling field name for one variant of field,
// e.g. VariantField("value", VariantBoolean) == "value__boolean".
func VariantField(field, variant string) string {
	return field + "__" + variant
}

// Patch is one structural edit to a resolved schema. Property paths are
// dotted names walked through nested "properties" maps; the empty path is the
// schema itself.
type Patch interface {
	Apply(schema map[string]any) error
	String() string
}

// AddProperty injects (or replaces) a property definition.
type AddProperty struct {
	Property string
	Schema   map[string]any
}

// Apply implements Patch.
func (p AddProperty) Apply(s map[string]any) error {
	parentPath, leaf := splitPath(p.Property)
	parent, err := locate(s, parentPath)
	if err != nil {
		return err
	}
	props, ok := parent["properties"].(map[string]any)
	if !ok {
		props = make(map[string]any)
		parent["properties"] = props
	}
	props[leaf] = Clone(p.Schema)
	return nil
}

func (p AddProperty) String() string {
	return fmt.Sprintf("add property %q", p.Property)
}

// SetType overwrites a property's declared type.
type SetType struct {
	Property string
	Type     any
}

// Apply implements Patch.
func (p SetType) Apply(s map[string]any) error {
	target, err := locate(s, p.Property)
	if err != nil {
		return err
	}
	target["type"] = deepCopy(p.Type)
	return nil
}

func (p SetType) String() string {
	return fmt.Sprintf("set type of %q to %v", p.Property, p.Type)
}

// SetDescription overwrites a property's "description" annotation.
type SetDescription struct {
	Property    string
	Description string
}

// Apply implements Patch.
func (p SetDescription) Apply(s map[string]any) error {
	target, err := locate(s, p.Property)
	if err != nil {
		return err
	}
	target["description"] = p.Description
	return nil
}

func (p SetDescription) String() string {
	return fmt.Sprintf("set description of %q", p.Property)
}

// DropKeyword deletes a validation keyword from a property. Dropping a
// keyword that is not present is a no-op.
type DropKeyword struct {
	Property string
	Keyword  string
}

// Apply implements Patch.
func (p DropKeyword) Apply(s map[string]any) error {
	target, err := locate(s, p.Property)
	if err != nil {
		return err
	}
	delete(target, p.Keyword)
	return nil
}

func (p DropKeyword) String() string {
	return fmt.Sprintf("drop %q from %q", p.Keyword, p.Property)
}

// RemoveProperty deletes a property and its entry in the parent's
// "required" list.
type RemoveProperty struct {
	Property string
}

// Apply implements Patch.
func (p RemoveProperty) Apply(s map[string]any) error {
	parentPath, leaf := splitPath(p.Property)
	parent, err := locate(s, parentPath)
	if err != nil {
		return err
	}
	if props, ok := parent["properties"].(map[string]any); ok {
		delete(props, leaf)
	}
	if req, ok := parent["required"].([]any); ok {
		kept := req[:0:0]
		for _, r := range req {
			if r != leaf {
				kept = append(kept, r)
			}
		}
		parent["required"] = kept
	}
	return nil
}

func (p RemoveProperty) String() string {
	return fmt.Sprintf("remove property %q", p.Property)
}

// Flatten returns the patches that replace a polymorphic field with one
// nullable sibling per variant.
func Flatten(field string) []Patch {
	return []Patch{
		RemoveProperty{Property: field},
		AddProperty{Property: VariantField(field, VariantString), Schema: map[string]any{"type": []any{"string", "null"}}},
		AddProperty{Property: VariantField(field, VariantNumber), Schema: map[string]any{"type": []any{"number", "null"}}},
		AddProperty{Property: VariantField(field, VariantBoolean), Schema: map[string]any{"type": []any{"boolean", "null"}}},
	}
}

func splitPath(path string) (parent, leaf string) {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

func locate(s map[string]any, path string) (map[string]any, error) {
	cur := s
	if path == "" {
		return cur, nil
	}
	for _, name := range strings.Split(path, ".") {
		props, ok := cur["properties"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q has no properties", ErrInvalidPatch, path)
		}
		next, ok := props[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: property %q not found", ErrInvalidPatch, path)
		}
		cur = next
	}
	return cur, nil
}
