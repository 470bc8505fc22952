// Package catalog is the registry of service types: which fields each type
// collects, how those fields are validated, and how a ticket's service data
// is summarized for the queue.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed legacy.yaml
var legacyYAML []byte

// FieldType is the input kind of a service field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldRadio    FieldType = "radio"
	FieldSelect   FieldType = "select"
	FieldPhone    FieldType = "tel"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldTime     FieldType = "time"
)

// Option is one allowed value of a choice field.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// UnmarshalYAML accepts either a bare scalar or a {value, label} mapping.
func (o *Option) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Value = node.Value
		o.Label = node.Value
		return nil
	}
	type plain Option
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*o = Option(p)
	if o.Label == "" {
		o.Label = o.Value
	}
	return nil
}

// UnmarshalJSON mirrors UnmarshalYAML for options stored as JSON.
func (o *Option) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err == nil {
		o.Value, o.Label = value, value
		return nil
	}
	type plain Option
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Option(p)
	if o.Label == "" {
		o.Label = o.Value
	}
	return nil
}

// Field describes one entry of a service type's data schema.
type Field struct {
	Name         string    `yaml:"name" json:"name"`
	Label        string    `yaml:"label" json:"label"`
	Type         FieldType `yaml:"type" json:"type"`
	Required     bool      `yaml:"required" json:"required"`
	Options      []Option  `yaml:"options" json:"options,omitempty"`
	Pattern      string    `yaml:"pattern" json:"pattern,omitempty"`
	ErrorMessage string    `yaml:"error_message" json:"error_message,omitempty"`
	Order        int       `yaml:"order" json:"-"`
}

// OptionLabel returns the display label for value.
func (f Field) OptionLabel(value string) string {
	for _, opt := range f.Options {
		if opt.Value == value {
			return opt.Label
		}
	}
	return value
}

// ServiceType is a kind of work a ticket can request.
type ServiceType struct {
	ID              string  `yaml:"-" json:"id,omitempty"`
	Slug            string  `yaml:"slug" json:"slug"`
	Name            string  `yaml:"name" json:"name"`
	Icon            string  `yaml:"icon" json:"icon,omitempty"`
	Order           int     `yaml:"order" json:"display_order"`
	Scheduled       bool    `yaml:"scheduled" json:"scheduled"`
	PrefillCustomer bool    `yaml:"prefill_customer" json:"-"`
	Summary         string  `yaml:"summary" json:"-"`
	Fields          []Field `yaml:"fields" json:"fields"`
	Active          bool    `yaml:"-" json:"active"`
}

// Field looks up a field by name.
func (t ServiceType) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Catalog maps service type slugs to their definitions.
type Catalog struct {
	types map[string]ServiceType
}

// New builds a catalog from types. Later entries win on slug collisions.
func New(types ...ServiceType) *Catalog {
	c := &Catalog{types: make(map[string]ServiceType, len(types))}
	for _, t := range types {
		c.types[t.Slug] = t
	}
	return c
}

// Parse reads a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		ServiceTypes []ServiceType `yaml:"service_types"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range doc.ServiceTypes {
		st := &doc.ServiceTypes[i]
		if st.Slug == "" {
			return nil, fmt.Errorf("parse catalog: service type %d has no slug", i)
		}
		st.Active = true
		if err := compilePatterns(st); err != nil {
			return nil, err
		}
	}
	return New(doc.ServiceTypes...), nil
}

var (
	legacyOnce    sync.Once
	legacyCatalog *Catalog
	legacyErr     error
)

// Legacy returns the built-in catalog shared by every tenant.
func Legacy() (*Catalog, error) {
	legacyOnce.Do(func() {
		legacyCatalog, legacyErr = Parse(legacyYAML)
	})
	return legacyCatalog, legacyErr
}

// Overlay returns a catalog where custom types replace or extend c.
func (c *Catalog) Overlay(custom []ServiceType) *Catalog {
	merged := make([]ServiceType, 0, len(c.types)+len(custom))
	for _, t := range c.types {
		merged = append(merged, t)
	}
	merged = append(merged, custom...)
	return New(merged...)
}

// Lookup finds a service type by slug.
func (c *Catalog) Lookup(slug string) (ServiceType, bool) {
	if c == nil {
		return ServiceType{}, false
	}
	t, ok := c.types[slug]
	return t, ok
}

// Types lists active service types in display order.
func (c *Catalog) Types() []ServiceType {
	out := make([]ServiceType, 0, len(c.types))
	for _, t := range c.types {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

// Label returns the display name for slug, deriving one for unknown slugs.
func (c *Catalog) Label(slug string) string {
	if t, ok := c.Lookup(slug); ok && t.Name != "" {
		return t.Name
	}
	return strings.ReplaceAll(slug, "_", " ")
}
