package schema

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

const resourceURL = "opgrid-schema.json"

// compiled validators keyed by schema pointer; schemas are immutable once
// attached to an operator.
var compiled sync.Map

func compile(doc map[string]interface{}) (*jsonschema.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode schema")
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft4
	if err := c.AddResource(resourceURL, bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, "invalid schema document")
	}
	sch, err := c.Compile(resourceURL)
	if err != nil {
		return nil, errors.Wrap(err, "schema does not validate against the draft-04 meta-schema")
	}
	return sch, nil
}

// IsSchema verifies that s is a valid draft-04 JSON schema.
func IsSchema(s *Schema) error {
	_, err := compile(s.JSON())
	return err
}

// IsCombinedSchema verifies every sub-schema of an operator.
func IsCombinedSchema(c *Combined) error {
	_, err := compile(c.JSON())
	return err
}

// opaque reports whether a property holds Go values (operators, observers)
// that are not validated as JSON.
func opaque(p *Schema) bool {
	return p.LaleType == LaleOperator || p.LaleType == LaleAny
}

func validator(s *Schema) (*jsonschema.Schema, error) {
	if v, ok := compiled.Load(s); ok {
		return v.(*jsonschema.Schema), nil
	}
	doc := s.JSON()
	// operator と Any のプロパティは任意の値を許す
	if o := object(s); o != nil {
		props := map[string]interface{}{}
		for name, p := range o.Properties {
			if opaque(p) {
				props[name] = map[string]interface{}{}
			} else {
				props[name] = p.JSON()
			}
		}
		target := doc
		if len(s.AllOf) > 0 {
			first := doc["allOf"].([]interface{})[0].(map[string]interface{})
			target = first
		}
		if o.Properties != nil {
			target["properties"] = props
		}
	}
	sch, err := compile(doc)
	if err != nil {
		return nil, err
	}
	compiled.Store(s, sch)
	return sch, nil
}

// Validate checks a Go value against s. Map entries whose property schema
// has laleType operator or Any are not inspected; other values that cannot be
// encoded as JSON (functions, for instance) are validated as empty objects.
func Validate(s *Schema, value interface{}) error {
	sch, err := validator(s)
	if err != nil {
		return err
	}
	instance, err := toJSON(s, value)
	if err != nil {
		return err
	}
	if err := sch.Validate(instance); err != nil {
		return errors.Wrap(err, "value does not match schema")
	}
	return nil
}

func toJSON(s *Schema, value interface{}) (interface{}, error) {
	if m, ok := value.(map[string]interface{}); ok {
		props := Properties(s)
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			if p, ok := props[k]; ok && opaque(p) {
				out[k] = nil
				continue
			}
			jv, err := roundTrip(v)
			if err != nil {
				jv = map[string]interface{}{}
			}
			out[k] = jv
		}
		return out, nil
	}
	return roundTrip(value)
}

func roundTrip(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// v5 は数値を json.Number で受け取る
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
