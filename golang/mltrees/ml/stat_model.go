package ml

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
)

//Flags modify Train and Predict.
type Flags int

const (
	UpdateModel       Flags = 1
	RawOutput         Flags = 1
	CompressedInput   Flags = 2
	PreprocessedInput Flags = 4

	PredictAuto    Flags = 0
	PredictSum     Flags = 256
	PredictMaxVote Flags = 512
	PredictMask    Flags = PredictSum | PredictMaxVote
)

//Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

//StatModel is the contract shared by every trainable model.
type StatModel interface {
	//Train fits the model on the train subset of data. On error the model keeps its previous state.
	Train(ctx context.Context, data *TrainData, flags Flags) error
	//Predict returns one response per row of samples; every row holds all variables.
	Predict(samples *mat.Dense, flags Flags) ([]float32, error)
	//PredictSample returns the response for a single sample.
	PredictSample(sample []float32, flags Flags) (float32, error)
	IsTrained() bool
	IsClassifier() bool
	//VarCount returns the number of variables a sample must have.
	VarCount() int
}

//CalcError predicts the test (or train) subset of data and compares it with the known responses.
//Classifiers report the percentage of misclassified samples, regressors the RMS error.
//The predicted responses are returned alongside.
func CalcError(model StatModel, data *TrainData, test bool) (float32, []float32, error) {
	if !model.IsTrained() {
		return 0, nil, ErrNotTrained
	}
	sidx := data.TrainSampleIdx()
	if test {
		sidx = data.TestSampleIdx()
	}
	if len(sidx) == 0 {
		return 0, nil, InvalidArgf("no samples in the selected subset")
	}

	predictions := make([]float32, len(sidx))
	var buf []float32
	errSum := 0.0
	for i, si := range sidx {
		buf = data.Sample(si, buf)
		p, err := model.PredictSample(buf, 0)
		if err != nil {
			return 0, nil, err
		}
		predictions[i] = p

		truth := data.Responses()[si]
		if model.IsClassifier() {
			if p != truth {
				errSum++
			}
		} else {
			d := float64(p - truth)
			errSum += d * d
		}
	}

	n := float64(len(sidx))
	if model.IsClassifier() {
		return float32(100 * errSum / n), predictions, nil
	}
	return float32(math.Sqrt(errSum / n)), predictions, nil
}

//PredictRows applies predictOne to every row of samples after checking the column count.
//Models use it to implement Predict on top of PredictSample.
func PredictRows(samples *mat.Dense, varCount int, flags Flags, predictOne func([]float32, Flags) (float32, error)) ([]float32, error) {
	if samples == nil {
		return nil, InvalidArgf("nil samples")
	}
	rows, cols := samples.Dims()
	if cols != varCount {
		return nil, &DimensionError{What: "sample columns", Expected: varCount, Actual: cols}
	}
	out := make([]float32, rows)
	row := make([]float32, cols)
	for p := 0; p < rows; p++ {
		for q := 0; q < cols; q++ {
			row[q] = float32(samples.At(p, q))
		}
		v, err := predictOne(row, flags)
		if err != nil {
			return nil, err
		}
		out[p] = v
	}
	return out, nil
}
