package ml

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func tenSamples(t *testing.T, opts ...TrainDataOption) *TrainData {
	t.Helper()
	samples := make([]float32, 10)
	responses := make([]float32, 10)
	for i := range samples {
		samples[i] = float32(i)
		responses[i] = float32(i % 2)
	}
	td, err := NewTrainData(samples, 10, 1, RowSample, responses, opts...)
	require.NoError(t, err)
	return td
}

func TestSplitRatioWithoutShuffle(t *testing.T) {
	td := tenSamples(t)
	require.NoError(t, td.SetTrainTestSplitRatio(0.3, false))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, td.TrainSampleIdx())
	assert.Equal(t, []int{7, 8, 9}, td.TestSampleIdx())

	require.NoError(t, td.SetTrainTestSplitRatio(0.3, false))
	assert.Equal(t, []int{7, 8, 9}, td.TestSampleIdx())
}

func TestSplitValidation(t *testing.T) {
	td := tenSamples(t)
	for _, ratio := range []float64{0, 1, -0.5, 1.5} {
		err := td.SetTrainTestSplitRatio(ratio, false)
		assert.ErrorIs(t, err, ErrInvalidArgument, "ratio %g", ratio)
	}
	assert.ErrorIs(t, td.SetTrainTestSplit(11, false), ErrInvalidArgument)
	assert.ErrorIs(t, td.SetTrainTestSplit(-1, false), ErrInvalidArgument)
	require.NoError(t, td.SetTrainTestSplit(10, false))
	assert.Empty(t, td.TestSampleIdx())
}

func TestShuffledSplitIsReproducible(t *testing.T) {
	a := tenSamples(t, WithSeed(42))
	b := tenSamples(t, WithSeed(42))
	require.NoError(t, a.SetTrainTestSplit(6, true))
	require.NoError(t, b.SetTrainTestSplit(6, true))
	assert.Equal(t, a.TrainSampleIdx(), b.TrainSampleIdx())
	assert.Equal(t, a.TestSampleIdx(), b.TestSampleIdx())

	seen := map[int]bool{}
	for _, si := range append(append([]int{}, a.TrainSampleIdx()...), a.TestSampleIdx()...) {
		seen[si] = true
	}
	assert.Len(t, seen, 10)

	a.ShuffleTrainTest()
	assert.Equal(t, 6, a.NTrainSamples())
	assert.Equal(t, 4, a.NTestSamples())
}

func TestColumnLayout(t *testing.T) {
	// two variables, three samples stored column per sample
	samples := []float32{
		1, 2, 3,
		10, 20, 30,
	}
	td, err := NewTrainData(samples, 2, 3, ColSample, []float32{5, 6, 7})
	require.NoError(t, err)
	assert.Equal(t, 3, td.NSamples())
	assert.Equal(t, 2, td.NAllVars())
	assert.Equal(t, float32(20), td.Value(1, 1))
	assert.Equal(t, []float32{3, 1}, td.Values(0, []int{2, 0}))
	assert.Equal(t, []float32{2, 20}, td.Sample(1, nil))

	m := td.TrainSamples()
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 30.0, m.At(2, 1))
}

func TestDimensionErrors(t *testing.T) {
	_, err := NewTrainData([]float32{1, 2, 3}, 2, 2, RowSample, []float32{1, 2})
	var dimErr *DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewTrainData([]float32{1, 2}, 2, 1, RowSample, []float32{1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewTrainData([]float32{1, 2}, 2, 1, RowSample, []float32{1, 2}, WithVarTypes([]VarType{VarOrdered, VarOrdered}))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewTrainData([]float32{1, 2}, 2, 1, RowSample, []float32{1, 2}, WithVarIdx([]int{3}))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewTrainData([]float32{1, 2}, 2, 1, RowSample, []float32{1, 2}, WithSampleWeights([]float32{1, -1}))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewTrainData([]float32{1, 2}, 2, 1, RowSample, []float32{1, DefaultMissingValue})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCategoryMapIsBijection(t *testing.T) {
	const missing = float32(-999)
	samples := []float32{
		7, 0.5,
		3, 1.5,
		7, 2.5,
		missing, 3.5,
		11, 4.5,
		3, 5.5,
	}
	td, err := NewTrainData(samples, 6, 2, RowSample, []float32{0, 1, 0, 1, 2, 2},
		WithVarTypes([]VarType{VarCategorical, VarOrdered}),
		WithResponseType(VarCategorical),
		WithMissingValue(missing))
	require.NoError(t, err)

	assert.Equal(t, 3, td.CatCount(0))
	assert.Equal(t, 0, td.CatCount(1))
	assert.Equal(t, []float32{3, 7, 11}, td.CatMap(0))

	codes, err := td.NormCatValues(0, td.SampleIdx())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1, -1, 2, 0}, codes)
	for i, code := range codes {
		if code < 0 {
			assert.True(t, td.IsMissing(td.Value(i, 0)))
			continue
		}
		assert.Equal(t, td.Value(i, 0), td.CatMap(0)[code])
	}

	_, err = td.NormCatValues(1, td.SampleIdx())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, []float32{0, 1, 2}, td.ClassLabels())
	assert.Equal(t, []int{0, 1, 0, 1, 2, 2}, td.NormCatResponses())
	assert.Equal(t, [][2]int{{0, 3}, {3, 3}}, td.CatOfs())
}

func TestStringCategoriesByFirstOccurrence(t *testing.T) {
	symbols := NewSymbolTable()
	column := symbols.EncodeAll([]string{"red", "red", "blue", "blue"})
	td, err := NewTrainData(column, 4, 1, RowSample, []float32{1, 1, 0, 0},
		WithVarTypes([]VarType{VarCategorical}), WithResponseType(VarCategorical))
	require.NoError(t, err)

	codes, err := td.NormCatValues(0, td.SampleIdx())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1}, codes)

	name, ok := symbols.Symbol(td.CatMap(0)[0])
	require.True(t, ok)
	assert.Equal(t, "red", name)
	name, ok = symbols.Symbol(td.CatMap(0)[1])
	require.True(t, ok)
	assert.Equal(t, "blue", name)
}

func TestVarAndSampleSubsets(t *testing.T) {
	samples := []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	td, err := NewTrainData(samples, 3, 3, RowSample, []float32{1, 2, 3},
		WithVarIdx([]int{2, 0}), WithSampleIdx([]int{2, 0}), WithSampleWeights([]float32{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, td.VarIdx())
	assert.Equal(t, 2, td.NVars())
	assert.Equal(t, 3, td.NAllVars())
	assert.Equal(t, 2, td.NSamples())
	assert.Equal(t, []float32{3, 1}, td.TrainResponses())
	assert.Equal(t, float32(3), td.Weight(2))
}

func TestParseVarTypeSpec(t *testing.T) {
	types, err := ParseVarTypeSpec("ord[0-2,4]cat[3]", 6)
	require.NoError(t, err)
	assert.Equal(t, []VarType{VarOrdered, VarOrdered, VarOrdered, VarCategorical, VarOrdered, VarOrdered}, types)

	types, err = ParseVarTypeSpec("cat[0, 2-3]", 4)
	require.NoError(t, err)
	assert.Equal(t, []VarType{VarCategorical, VarOrdered, VarCategorical, VarCategorical}, types)

	for _, bad := range []string{"ord[0-9]", "num[1]", "cat[1", "ord[1]cat[1]", "cat[x]"} {
		_, err := ParseVarTypeSpec(bad, 4)
		assert.ErrorIs(t, err, ErrInvalidArgument, bad)
	}
}

type constModel struct {
	value      float32
	classifier bool
}

func (m constModel) Train(context.Context, *TrainData, Flags) error { return nil }
func (m constModel) Predict(samples *mat.Dense, flags Flags) ([]float32, error) {
	return PredictRows(samples, 1, flags, m.PredictSample)
}
func (m constModel) PredictSample([]float32, Flags) (float32, error) { return m.value, nil }
func (m constModel) IsTrained() bool                                 { return true }
func (m constModel) IsClassifier() bool                              { return m.classifier }
func (m constModel) VarCount() int                                   { return 1 }

func TestCalcError(t *testing.T) {
	td := tenSamples(t)
	require.NoError(t, td.SetTrainTestSplit(6, false))

	// responses alternate 0/1; the test subset is samples 6..9
	errPercent, predictions, err := CalcError(constModel{value: 1, classifier: true}, td, true)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, errPercent, 1e-6)
	assert.Equal(t, []float32{1, 1, 1, 1}, predictions)

	rms, _, err := CalcError(constModel{value: 0.5}, td, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rms, 1e-6)

	require.NoError(t, td.SetTrainTestSplit(10, false))
	_, _, err = CalcError(constModel{}, td, true)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = constModel{}.Predict(mat.NewDense(1, 2, nil), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNpyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fileName := filepath.Join(dir, "values.npy")
	require.NoError(t, WriteNpy(fileName, []float32{1, 2.5, -3}))

	m, err := ReadNpy(fileName)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, 2.5, m.At(1, 0))
}
