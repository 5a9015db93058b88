package linear_model

import (
	"math"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

var (
	_ model.WeightExporter  = (*LinearRegression)(nil)
	_ model.WeightExporter  = (*LogisticRegression)(nil)
	_ model.ClassifierMixin = (*LogisticRegression)(nil)
)

// SetParams の値はJSON由来の float64 でも Go の int でも受け付ける

func asString(key string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(key, "must be a string", v)
	}
	return s, nil
}

func asBool(key string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(key, "must be a boolean", v)
	}
	return b, nil
}

func asFloat(key string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(key, "must be a number", v)
}

func asInt(key string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(key, "must be an integer", v)
}
