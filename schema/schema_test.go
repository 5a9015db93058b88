package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func treeLikeHyperparams() *Schema {
	return &Schema{
		AllOf: []*Schema{{
			Type:                 []string{"object"},
			Required:             []string{"criterion", "max_depth"},
			RelevantToOptimizer:  []string{"criterion", "max_depth"},
			AdditionalProperties: Bool(false),
			Properties: map[string]*Schema{
				"criterion": {Enum: []interface{}{"gini", "entropy"}, Default: "gini"},
				"max_depth": {
					AnyOf: []*Schema{
						{Type: []string{"integer"}, Minimum: Float(1), MinimumForOptimizer: Float(3), MaximumForOptimizer: Float(5)},
						{Enum: []interface{}{Null}},
					},
					Default: Null,
				},
				"op": {LaleType: LaleOperator},
			},
		}},
	}
}

func TestSchemaJSON(t *testing.T) {
	s := treeLikeHyperparams()
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	obj := m["allOf"].([]interface{})[0].(map[string]interface{})
	props := obj["properties"].(map[string]interface{})
	depth := props["max_depth"].(map[string]interface{})
	assert.Contains(t, depth, "default")
	assert.Nil(t, depth["default"])
	assert.Equal(t, []interface{}{nil}, depth["anyOf"].([]interface{})[1].(map[string]interface{})["enum"])
	assert.Equal(t, "integer", depth["anyOf"].([]interface{})[0].(map[string]interface{})["type"])
	assert.Equal(t, false, obj["additionalProperties"])
	assert.Equal(t, "operator", props["op"].(map[string]interface{})["laleType"])
}

func TestIsSchema(t *testing.T) {
	assert.NoError(t, IsSchema(treeLikeHyperparams()))
	assert.NoError(t, IsSchema(&Schema{}))
	assert.Error(t, IsSchema(&Schema{Type: []string{"float"}}))
}

func TestValidate(t *testing.T) {
	s := treeLikeHyperparams()

	assert.NoError(t, Validate(s, map[string]interface{}{"criterion": "gini", "max_depth": nil}))
	assert.NoError(t, Validate(s, map[string]interface{}{"criterion": "entropy", "max_depth": 4}))
	assert.NoError(t, Validate(s, map[string]interface{}{
		"criterion": "gini", "max_depth": 3, "op": func() {},
	}))

	assert.Error(t, Validate(s, map[string]interface{}{"criterion": "mse", "max_depth": nil}))
	assert.Error(t, Validate(s, map[string]interface{}{"criterion": "gini", "max_depth": 0}))
	assert.Error(t, Validate(s, map[string]interface{}{"criterion": "gini", "max_depth": 2.5}))
	assert.Error(t, Validate(s, map[string]interface{}{"criterion": "gini"}))
	assert.Error(t, Validate(s, map[string]interface{}{"criterion": "gini", "max_depth": nil, "extra": 1}))
}

func TestValidate_IntegerValues(t *testing.T) {
	s := treeLikeHyperparams()

	for _, depth := range []interface{}{4, int64(4), uint8(4), 4.0, json.Number("4")} {
		assert.NoError(t, Validate(s, map[string]interface{}{"criterion": "gini", "max_depth": depth}), "%T", depth)
	}
	assert.Error(t, Validate(s, map[string]interface{}{"criterion": "gini", "max_depth": -3}))
	assert.Error(t, Validate(s, map[string]interface{}{"criterion": "gini", "max_depth": 4.5}))
}

func TestDefaultsAndRelevant(t *testing.T) {
	s := treeLikeHyperparams()

	defaults := Defaults(s)
	assert.Equal(t, map[string]interface{}{"criterion": "gini", "max_depth": nil}, defaults)
	assert.NoError(t, Validate(s, defaults))

	rel := Relevant(s)
	assert.Len(t, rel, 2)
	assert.Equal(t, []string{"criterion", "max_depth"}, RelevantNames(s))
	assert.False(t, rel["criterion"].HasType("integer"))
	assert.True(t, rel["max_depth"].AnyOf[0].HasType("integer"))
	assert.True(t, rel["max_depth"].IsForOptimizer())
}

func TestCombined(t *testing.T) {
	c := &Combined{
		Description:      "test operator",
		DocumentationURL: "https://example.org/op",
		Tags:             Tags{Op: []string{"estimator", "classifier"}},
		Hyperparams:      treeLikeHyperparams(),
		InputFit:         &Schema{Type: []string{"object"}, Required: []string{"X", "y"}},
	}
	assert.True(t, c.Tags.Has("classifier"))
	assert.False(t, c.Tags.Has("transformer"))
	require.NoError(t, IsCombinedSchema(c))

	m := c.JSON()
	assert.Equal(t, "https://example.org/op", m["documentation_url"])
	props := m["properties"].(map[string]interface{})
	assert.Contains(t, props, "hyperparams")
	assert.Contains(t, props, "input_fit")
	assert.NotContains(t, props, "output_transform")
}
