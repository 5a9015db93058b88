package operators

import (
	"bytes"
	"encoding/json"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

type document struct {
	Class       string                 `json:"class"`
	State       string                 `json:"state"`
	Hyperparams map[string]interface{} `json:"hyperparams,omitempty"`
	Steps       []stepDocument         `json:"steps,omitempty"`
}

type stepDocument struct {
	Name string   `json:"name"`
	Op   document `json:"op"`
}

func toDocument(op Operator) document {
	doc := document{Class: op.Name(), State: op.State().String()}
	switch op.(type) {
	case *Pipeline, *Union:
		for _, s := range op.Steps() {
			doc.Steps = append(doc.Steps, stepDocument{Name: s.Name, Op: toDocument(s.Op)})
		}
	default:
		doc.Hyperparams = op.Hyperparams()
	}
	return doc
}

// ToJSON serializes an operator: class name, state, bound hyperparameters and
// steps. Trained parameters are not included.
func ToJSON(op Operator) ([]byte, error) {
	var buf bytes.Buffer
	if err := model.WriteJSON(&buf, toDocument(op)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromJSON restores an operator written by ToJSON through the registry.
// Trained operators come back trainable.
func FromJSON(data []byte) (Operator, error) {
	var doc document
	if err := model.ReadJSON(bytes.NewReader(data), &doc); err != nil {
		return nil, err
	}
	return fromDocument(doc)
}

func fromDocument(doc document) (Operator, error) {
	switch doc.Class {
	case "Pipeline", "Union":
		ops := make([]Operator, len(doc.Steps))
		for i, s := range doc.Steps {
			op, err := fromDocument(s.Op)
			if err != nil {
				return nil, errors.Wrapf(err, "step %s", s.Name)
			}
			ops[i] = op
		}
		if doc.Class == "Pipeline" {
			return MakePipeline(ops...)
		}
		return MakeUnion(ops...)
	}

	ctor, ok := Lookup(doc.Class)
	if !ok {
		return nil, errors.NewValueError("FromJSON", "unknown operator class "+doc.Class)
	}
	state, ok := ParseState(doc.State)
	if !ok {
		return nil, errors.NewValueError("FromJSON", "unknown state "+doc.State)
	}
	op := ctor()
	if state == Planned {
		return op, nil
	}
	params, _ := normalize(doc.Hyperparams).(map[string]interface{})
	return op.WithParams(params)
}

// normalize converts json.Number into int (when integral) or float64.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		f, _ := x.Float64()
		return f
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

// Save writes ToJSON(op) to path.
func Save(op Operator, path string) error {
	data, err := ToJSON(op)
	if err != nil {
		return err
	}
	return model.SaveJSON(path, json.RawMessage(data))
}

// Load reads an operator written by Save.
func Load(path string) (Operator, error) {
	var raw json.RawMessage
	if err := model.LoadJSON(path, &raw); err != nil {
		return nil, err
	}
	return FromJSON(raw)
}
