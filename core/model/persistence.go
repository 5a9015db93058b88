package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// SaveJSON はvをJSONとしてファイルに保存する
//
// 使用例:
//
//	data, _ := operators.ToJSON(op)
//	err := model.SaveJSON("pipeline.json", json.RawMessage(data))
func SaveJSON(filename string, v interface{}) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	defer file.Close()

	return WriteJSON(file, v)
}

// LoadJSON はファイルからJSONを読み込みvに格納する
func LoadJSON(filename string, v interface{}) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()

	return ReadJSON(file, v)
}

// WriteJSON はvをインデント付きJSONとしてio.Writerに書き込む
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode json")
	}
	return nil
}

// ReadJSON はio.ReaderからJSONを読み込む。数値はjson.Numberとして保持する。
func ReadJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode json")
	}
	return nil
}

// Weights は線形モデルの学習済みパラメータを表す。
// JSONを経由しても float64 の値はビット単位で保持される。
type Weights struct {
	ModelType   string                 `json:"model_type"`
	Classes     []float64              `json:"classes,omitempty"`
	Coef        [][]float64            `json:"coef"`
	Intercept   []float64              `json:"intercept"`
	NFeatures   int                    `json:"n_features"`
	Hyperparams map[string]interface{} `json:"hyperparams,omitempty"`
}

// Validate checks that the coefficient rows and intercepts agree in shape.
func (w *Weights) Validate() error {
	if w.ModelType == "" {
		return errors.NewValidationError("model_type", "must not be empty", w.ModelType)
	}
	if len(w.Coef) == 0 {
		return errors.NewValidationError("coef", "must not be empty", len(w.Coef))
	}
	if len(w.Intercept) != len(w.Coef) {
		return errors.NewValidationError("intercept", "must have one entry per coefficient row", len(w.Intercept))
	}
	for _, row := range w.Coef {
		if len(row) != w.NFeatures {
			return errors.NewDimensionError("Weights.Validate", w.NFeatures, len(row), 1)
		}
	}
	return nil
}

// Hash returns a hex SHA-256 digest of the coefficients and intercepts.
func (w *Weights) Hash() string {
	h := sha256.New()
	var buf [8]byte
	write := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, row := range w.Coef {
		for _, v := range row {
			write(v)
		}
	}
	for _, v := range w.Intercept {
		write(v)
	}
	return hex.EncodeToString(h.Sum(nil))
}
