package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// logLossEps clips probabilities away from 0 and 1 before taking logs.
const logLossEps = 1e-15

func checkBinary(op string, yTrue *mat.VecDense) error {
	for i := 0; i < yTrue.Len(); i++ {
		if v := yTrue.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// BalancedAccuracy はクラスごとの再現率の平均を計算する。
// yPredにしか現れないクラスは無視する。
func BalancedAccuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BalancedAccuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	support := make(map[float64]int)
	hits := make(map[float64]int)
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		support[t]++
		if t == yPred.AtVec(i) {
			hits[t]++
		}
	}
	var sum float64
	for class, s := range support {
		sum += float64(hits[class]) / float64(s)
	}
	return sum / float64(len(support)), nil
}

// AUC はROC曲線下面積を計算する。yPredは正例のスコア。
// 同点のペアは0.5として数える。片方のクラスしか存在しない場合は
// UndefinedMetricWarningを出して0.5を返す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	type scored struct {
		score float64
		label float64
	}
	items := make([]scored, n)
	nPos := 0
	for i := 0; i < n; i++ {
		items[i] = scored{score: yPred.AtVec(i), label: yTrue.AtVec(i)}
		if items[i].label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in yTrue", 0.5))
		return 0.5, nil
	}

	// Mann-Whitney U with average ranks for ties.
	sort.Slice(items, func(a, b int) bool { return items[a].score < items[b].score })
	var rankSumPos float64
	for i := 0; i < n; {
		j := i
		for j < n && items[j].score == items[i].score {
			j++
		}
		avgRank := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			if items[k].label == 1 {
				rankSumPos += avgRank
			}
		}
		i = j
	}
	u := rankSumPos - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する（先頭列を使用）
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	if isEmpty(yTrue) || isEmpty(yPred) {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	return AUC(firstColumn(yTrue), firstColumn(yPred))
}

// BinaryLogLoss は二値分類の対数損失を計算する。yPredは正例の確率。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		p := clip(yPred.AtVec(i))
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// LogLoss は多クラスの対数損失を計算する。probaの列はclassesの順。
// 各行は和が1になるよう正規化してから評価する。
func LogLoss(yTrue *mat.VecDense, proba mat.Matrix, classes []float64) (float64, error) {
	if yTrue == nil || yTrue.Len() == 0 || proba == nil {
		return 0, errors.NewValueError("LogLoss", "empty input")
	}
	n := yTrue.Len()
	rows, cols := proba.Dims()
	if rows != n {
		return 0, errors.NewDimensionError("LogLoss", n, rows, 0)
	}
	if cols != len(classes) {
		return 0, errors.NewDimensionError("LogLoss", len(classes), cols, 1)
	}
	index := make(map[float64]int, len(classes))
	for j, c := range classes {
		index[c] = j
	}

	var sum float64
	for i := 0; i < n; i++ {
		j, ok := index[yTrue.AtVec(i)]
		if !ok {
			return 0, errors.NewValueError("LogLoss", "yTrue contains a label not present in classes")
		}
		var rowSum float64
		for k := 0; k < cols; k++ {
			rowSum += clip(proba.At(i, k))
		}
		sum -= math.Log(clip(proba.At(i, j)) / rowSum)
	}
	return sum / float64(n), nil
}

// AveragePrecision はスコア降順に並べたときの、各正例の位置での
// 適合率の平均を計算する。正例が無い場合は0。
func AveragePrecision(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AveragePrecision", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AveragePrecision", yTrue); err != nil {
		return 0, err
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return yPred.AtVec(order[a]) > yPred.AtVec(order[b])
	})

	var hits int
	var sum float64
	for rank, idx := range order {
		if yTrue.AtVec(idx) == 1 {
			hits++
			sum += float64(hits) / float64(rank+1)
		}
	}
	if hits == 0 {
		return 0, nil
	}
	return sum / float64(hits), nil
}

func clip(p float64) float64 {
	return errors.ClipValue(p, logLossEps, 1-logLossEps)
}

func isEmpty(m mat.Matrix) bool {
	r, c := m.Dims()
	return r == 0 || c == 0
}

func firstColumn(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
