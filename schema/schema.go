// Package schema describes hyperparameters and data contracts of operators
// as JSON Schema (draft-04) documents extended with optimizer annotations.
package schema

import (
	"encoding/json"
	"sort"
)

// Distributions understood by the grid generator.
const (
	Uniform    = "uniform"
	LogUniform = "loguniform"
)

// Values for LaleType.
const (
	LaleOperator    = "operator"
	LaleAny         = "Any"
	LaleRandomState = "RandomState"
)

type null struct{}

// Null is a Default or Enum value that serializes as JSON null. A nil Default
// means "no default".
var Null interface{} = null{}

// Schema is a draft-04 JSON schema plus the optimizer keywords
// (minimumForOptimizer, distribution, forOptimizer, relevantToOptimizer, ...).
type Schema struct {
	Description string
	Type        []string
	Enum        []interface{}

	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum bool
	ExclusiveMaximum bool

	MinimumForOptimizer          *float64
	MaximumForOptimizer          *float64
	ExclusiveMinimumForOptimizer *bool
	ExclusiveMaximumForOptimizer *bool
	Distribution                 string
	ForOptimizer                 *bool

	Default interface{}

	AnyOf []*Schema
	AllOf []*Schema
	Not   *Schema

	Items    *Schema
	MinItems *int
	MaxItems *int

	Properties           map[string]*Schema
	Required             []string
	RelevantToOptimizer  []string
	AdditionalProperties *bool

	LaleType string
}

// Float returns a pointer to v, for the optional numeric keywords.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// IsForOptimizer reports whether the grid generator may draw values from s.
func (s *Schema) IsForOptimizer() bool {
	return s.ForOptimizer == nil || *s.ForOptimizer
}

// HasType reports whether t is one of the schema's types.
func (s *Schema) HasType(t string) bool {
	for _, x := range s.Type {
		if x == t {
			return true
		}
	}
	return false
}

// JSON renders the schema as a JSON-compatible map.
func (s *Schema) JSON() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{}
	}
	m := make(map[string]interface{})
	if s.Description != "" {
		m["description"] = s.Description
	}
	switch len(s.Type) {
	case 0:
	case 1:
		m["type"] = s.Type[0]
	default:
		m["type"] = append([]string(nil), s.Type...)
	}
	if s.Enum != nil {
		enum := make([]interface{}, len(s.Enum))
		for i, v := range s.Enum {
			enum[i] = jsonValue(v)
		}
		m["enum"] = enum
	}
	putFloat(m, "minimum", s.Minimum)
	putFloat(m, "maximum", s.Maximum)
	if s.ExclusiveMinimum {
		m["exclusiveMinimum"] = true
	}
	if s.ExclusiveMaximum {
		m["exclusiveMaximum"] = true
	}
	putFloat(m, "minimumForOptimizer", s.MinimumForOptimizer)
	putFloat(m, "maximumForOptimizer", s.MaximumForOptimizer)
	putBool(m, "exclusiveMinimumForOptimizer", s.ExclusiveMinimumForOptimizer)
	putBool(m, "exclusiveMaximumForOptimizer", s.ExclusiveMaximumForOptimizer)
	if s.Distribution != "" {
		m["distribution"] = s.Distribution
	}
	putBool(m, "forOptimizer", s.ForOptimizer)
	if s.Default != nil {
		m["default"] = jsonValue(s.Default)
	}
	if s.AnyOf != nil {
		m["anyOf"] = list(s.AnyOf)
	}
	if s.AllOf != nil {
		m["allOf"] = list(s.AllOf)
	}
	if s.Not != nil {
		m["not"] = s.Not.JSON()
	}
	if s.Items != nil {
		m["items"] = s.Items.JSON()
	}
	if s.MinItems != nil {
		m["minItems"] = *s.MinItems
	}
	if s.MaxItems != nil {
		m["maxItems"] = *s.MaxItems
	}
	if s.Properties != nil {
		props := make(map[string]interface{}, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSON()
		}
		m["properties"] = props
	}
	if len(s.Required) > 0 {
		m["required"] = append([]string(nil), s.Required...)
	}
	if s.RelevantToOptimizer != nil {
		m["relevantToOptimizer"] = append([]string(nil), s.RelevantToOptimizer...)
	}
	putBool(m, "additionalProperties", s.AdditionalProperties)
	if s.LaleType != "" {
		m["laleType"] = s.LaleType
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.JSON())
}

func putFloat(m map[string]interface{}, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

func putBool(m map[string]interface{}, key string, v *bool) {
	if v != nil {
		m[key] = *v
	}
}

func list(schemas []*Schema) []interface{} {
	out := make([]interface{}, len(schemas))
	for i, s := range schemas {
		out[i] = s.JSON()
	}
	return out
}

func jsonValue(v interface{}) interface{} {
	if _, ok := v.(null); ok {
		return nil
	}
	return v
}

// Value converts a Default or Enum entry to its Go value (Null becomes nil).
func Value(v interface{}) interface{} {
	return jsonValue(v)
}

// Tags classify an operator, e.g. op: [estimator, classifier].
type Tags struct {
	Pre  []string `json:"pre"`
	Op   []string `json:"op"`
	Post []string `json:"post"`
}

// Has reports whether tag appears among the op tags.
func (t Tags) Has(tag string) bool {
	for _, x := range t.Op {
		if x == tag {
			return true
		}
	}
	return false
}

// Combined is the complete schema of an operator.
type Combined struct {
	Description      string
	DocumentationURL string
	Tags             Tags

	Hyperparams        *Schema
	InputFit           *Schema
	InputPredict       *Schema
	InputPredictProba  *Schema
	InputTransform     *Schema
	OutputPredict      *Schema
	OutputPredictProba *Schema
	OutputTransform    *Schema
}

// Schema renders the combined schema as one object schema whose properties
// are the individual sub-schemas.
func (c *Combined) Schema() *Schema {
	props := map[string]*Schema{}
	add := func(name string, s *Schema) {
		if s != nil {
			props[name] = s
		}
	}
	add("hyperparams", c.Hyperparams)
	add("input_fit", c.InputFit)
	add("input_predict", c.InputPredict)
	add("input_predict_proba", c.InputPredictProba)
	add("input_transform", c.InputTransform)
	add("output_predict", c.OutputPredict)
	add("output_predict_proba", c.OutputPredictProba)
	add("output_transform", c.OutputTransform)
	return &Schema{Description: c.Description, Type: []string{"object"}, Properties: props}
}

// JSON renders the combined schema including tags and documentation URL.
func (c *Combined) JSON() map[string]interface{} {
	m := c.Schema().JSON()
	if c.DocumentationURL != "" {
		m["documentation_url"] = c.DocumentationURL
	}
	m["tags"] = map[string]interface{}{
		"pre":  nonNil(c.Tags.Pre),
		"op":   nonNil(c.Tags.Op),
		"post": nonNil(c.Tags.Post),
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (c *Combined) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.JSON())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// object returns the first allOf conjunct of a hyperparameter schema, which
// carries the properties; a schema without allOf is its own object.
func object(hyperparams *Schema) *Schema {
	if hyperparams == nil {
		return nil
	}
	if len(hyperparams.AllOf) > 0 {
		return hyperparams.AllOf[0]
	}
	return hyperparams
}

// Properties returns the hyperparameter property schemas.
func Properties(hyperparams *Schema) map[string]*Schema {
	if o := object(hyperparams); o != nil {
		return o.Properties
	}
	return nil
}

// Defaults returns the default of every hyperparameter that declares one.
// A JSON null default is returned as nil.
func Defaults(hyperparams *Schema) map[string]interface{} {
	out := make(map[string]interface{})
	for name, p := range Properties(hyperparams) {
		if p.Default != nil {
			out[name] = jsonValue(p.Default)
		}
	}
	return out
}

// Relevant returns the property schemas listed in relevantToOptimizer, keyed
// by name. Names without a property schema are ignored.
func Relevant(hyperparams *Schema) map[string]*Schema {
	o := object(hyperparams)
	if o == nil {
		return nil
	}
	out := make(map[string]*Schema, len(o.RelevantToOptimizer))
	for _, name := range o.RelevantToOptimizer {
		if p, ok := o.Properties[name]; ok {
			out[name] = p
		}
	}
	return out
}

// RelevantNames returns the optimizer-relevant hyperparameter names in sorted order.
func RelevantNames(hyperparams *Schema) []string {
	rel := Relevant(hyperparams)
	names := make([]string, 0, len(rel))
	for name := range rel {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
