package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/core/model"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// Unknown category handling for OrdinalEncoder.
const (
	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"

	// EncodeUnknownAuto encodes unknown categories of column j as
	// len(Categories[j]), one past the largest known code.
	EncodeUnknownAuto = -1
)

// OrdinalEncoder はカテゴリ特徴量を 0..k-1 の整数コードに変換する。
// 未知のカテゴリは handle_unknown が "ignore" の場合 encode_unknown_with の値に、
// 逆変換ではNaNになる。
type OrdinalEncoder struct {
	state *model.StateManager

	// categories は nil なら学習データから自動決定
	categories    [][]float64
	handleUnknown string
	encodeUnknown int

	// Categories は各列の昇順のカテゴリ
	Categories [][]float64
}

// OrdinalEncoderOption configures an OrdinalEncoder.
type OrdinalEncoderOption func(*OrdinalEncoder)

// WithCategories fixes the categories per column instead of learning them.
func WithCategories(categories [][]float64) OrdinalEncoderOption {
	return func(e *OrdinalEncoder) { e.categories = categories }
}

// WithHandleUnknown sets "error" or "ignore".
func WithHandleUnknown(mode string) OrdinalEncoderOption {
	return func(e *OrdinalEncoder) { e.handleUnknown = mode }
}

// WithEncodeUnknownWith sets the code used for unknown categories;
// EncodeUnknownAuto selects len(categories).
func WithEncodeUnknownWith(code int) OrdinalEncoderOption {
	return func(e *OrdinalEncoder) { e.encodeUnknown = code }
}

// NewOrdinalEncoder creates an encoder that learns categories and ignores
// unknown values.
func NewOrdinalEncoder(opts ...OrdinalEncoderOption) *OrdinalEncoder {
	e := &OrdinalEncoder{
		state:         model.NewStateManager(),
		handleUnknown: HandleUnknownIgnore,
		encodeUnknown: EncodeUnknownAuto,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fit learns the sorted categories of every column.
func (e *OrdinalEncoder) Fit(X mat.Matrix) error {
	r, c, err := model.CheckX("OrdinalEncoder.Fit", X)
	if err != nil {
		return err
	}
	if e.handleUnknown != HandleUnknownError && e.handleUnknown != HandleUnknownIgnore {
		return errors.NewValidationError("handle_unknown", "must be 'error' or 'ignore'", e.handleUnknown)
	}

	if e.categories != nil {
		if len(e.categories) != c {
			return errors.NewDimensionError("OrdinalEncoder.Fit", len(e.categories), c, 1)
		}
		e.Categories = make([][]float64, c)
		for j, cats := range e.categories {
			e.Categories[j] = append([]float64(nil), cats...)
			sort.Float64s(e.Categories[j])
		}
		for j := 0; j < c; j++ {
			for _, v := range model.Column(X, j) {
				if e.code(j, v) < 0 {
					return errors.NewValueError("OrdinalEncoder.Fit",
						fmt.Sprintf("found unknown category %v in column %d during fit", v, j))
				}
			}
		}
	} else {
		e.Categories = make([][]float64, c)
		for j := 0; j < c; j++ {
			e.Categories[j] = uniqueSorted(model.Column(X, j))
		}
	}

	e.state.SetDimensions(c, r)
	e.state.SetFitted()
	return nil
}

func (e *OrdinalEncoder) code(j int, v float64) int {
	cats := e.Categories[j]
	i := sort.SearchFloat64s(cats, v)
	if i < len(cats) && cats[i] == v {
		return i
	}
	return -1
}

// UnknownCode returns the code assigned to unknown categories of column j.
func (e *OrdinalEncoder) UnknownCode(j int) int {
	if e.encodeUnknown == EncodeUnknownAuto {
		return len(e.Categories[j])
	}
	return e.encodeUnknown
}

// Transform maps every value to its category code.
func (e *OrdinalEncoder) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.state.RequireFitted("OrdinalEncoder", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := e.state.RequireFeatures("OrdinalEncoder.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			code := e.code(j, v)
			if code < 0 {
				if e.handleUnknown == HandleUnknownError {
					return nil, errors.NewValueError("OrdinalEncoder.Transform",
						fmt.Sprintf("found unknown category %v in column %d during transform", v, j))
				}
				code = e.UnknownCode(j)
			}
			result.Set(i, j, float64(code))
		}
	}
	return result, nil
}

// FitTransform fits the encoder and encodes X.
func (e *OrdinalEncoder) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.Fit(X); err != nil {
		return nil, err
	}
	return e.Transform(X)
}

// InverseTransform maps codes back to categories; codes outside the known
// range, including the unknown code, become NaN.
func (e *OrdinalEncoder) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.state.RequireFitted("OrdinalEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := e.state.RequireFeatures("OrdinalEncoder.InverseTransform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		k := int(v)
		if v != math.Trunc(v) || k < 0 || k >= len(e.Categories[j]) {
			return math.NaN()
		}
		return e.Categories[j][k]
	}, X)
	return result, nil
}

// GetParams returns the hyperparameters using scikit-learn names.
func (e *OrdinalEncoder) GetParams() map[string]interface{} {
	params := map[string]interface{}{
		"categories":          "auto",
		"dtype":               "float64",
		"handle_unknown":      e.handleUnknown,
		"encode_unknown_with": "auto",
	}
	if e.categories != nil {
		params["categories"] = e.categories
	}
	if e.encodeUnknown != EncodeUnknownAuto {
		params["encode_unknown_with"] = e.encodeUnknown
	}
	return params
}

// SetParams sets hyperparameters and resets the fitted state.
func (e *OrdinalEncoder) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "categories":
			cats, err := toCategories(value)
			if err != nil {
				return err
			}
			e.categories = cats
		case "dtype":
		case "handle_unknown":
			s, ok := value.(string)
			if !ok || (s != HandleUnknownError && s != HandleUnknownIgnore) {
				return errors.NewValidationError(key, "must be 'error' or 'ignore'", value)
			}
			e.handleUnknown = s
		case "encode_unknown_with":
			switch v := value.(type) {
			case string:
				if v != "auto" {
					return errors.NewValidationError(key, "must be an integer or 'auto'", value)
				}
				e.encodeUnknown = EncodeUnknownAuto
			case int:
				e.encodeUnknown = v
			case int64:
				e.encodeUnknown = int(v)
			case float64:
				if v != math.Trunc(v) {
					return errors.NewValidationError(key, "must be an integer or 'auto'", value)
				}
				e.encodeUnknown = int(v)
			default:
				return errors.NewValidationError(key, "must be an integer or 'auto'", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	e.state.Reset()
	return nil
}

func toCategories(value interface{}) ([][]float64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "auto" {
			return nil, nil
		}
	case [][]float64:
		return v, nil
	case []interface{}:
		out := make([][]float64, len(v))
		for j, col := range v {
			items, ok := col.([]interface{})
			if !ok {
				return nil, errors.NewValidationError("categories", "each column must be an array of numbers", col)
			}
			for _, item := range items {
				f, ok := toFloat(item)
				if !ok {
					return nil, errors.NewValidationError("categories", "categories must be numbers", item)
				}
				out[j] = append(out[j], f)
			}
		}
		return out, nil
	}
	return nil, errors.NewValidationError("categories", "must be 'auto' or a list of category lists", value)
}

// Clone returns an unfitted encoder with the same hyperparameters.
func (e *OrdinalEncoder) Clone() *OrdinalEncoder {
	return NewOrdinalEncoder(
		WithCategories(e.categories),
		WithHandleUnknown(e.handleUnknown),
		WithEncodeUnknownWith(e.encodeUnknown),
	)
}

func uniqueSorted(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
