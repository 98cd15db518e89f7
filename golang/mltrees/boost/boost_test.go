package boost

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"gopkg.in/yaml.v2"
)

func stumpParams(t Type, weakCount int) Params {
	params := DefaultParams()
	params.Type = t
	params.WeakCount = weakCount
	params.MinSampleCount = 2
	params.WeightTrimRate = 0
	params.ThreadsNum = 1
	return params
}

func newData(t *testing.T, samples []float32, cols int, responses []float32) *ml.TrainData {
	t.Helper()
	td, err := ml.NewTrainData(samples, len(responses), cols, ml.RowSample, responses, ml.WithResponseType(ml.VarCategorical))
	require.NoError(t, err)
	return td
}

//diagonal labels points of the unit square by x0 + x1 > 1.
func diagonal(t *testing.T, n int, seed uint64) *ml.TrainData {
	rng := ml.NewRand(seed)
	samples := make([]float32, 0, 2*n)
	responses := make([]float32, n)
	for i := 0; i < n; i++ {
		x0, x1 := float32(rng.Float64()), float32(rng.Float64())
		samples = append(samples, x0, x1)
		if x0+x1 > 1 {
			responses[i] = 1
		}
	}
	return newData(t, samples, 2, responses)
}

func TestDiscreteReweighting(t *testing.T) {
	td := newData(t, []float32{0, 1, 2, 3, 4, 5}, 1, []float32{0, 0, 1, 1, 0, 0})

	model := NewBoost()
	model.Params = stumpParams(Discrete, 3)

	previous := []float64{1. / 6, 1. / 6, 1. / 6, 1. / 6, 1. / 6, 1. / 6}
	y := []float64{-1, -1, 1, 1, -1, -1}
	stages := 0
	model.OnStage = func(stage Stage) {
		assert.Equal(t, stages, stage.Index)
		stages++
		sum := 0.0
		for i, w := range stage.Weights {
			sum += w
			if stage.Outputs[i] != y[i] {
				assert.Greater(t, w, previous[i], "stage %d sample %d", stage.Index, i)
			}
		}
		assert.InDelta(t, 1, sum, 1e-12)
		assert.Positive(t, stage.TreeWeight)
		previous = stage.Weights
	}
	require.NoError(t, model.Train(context.Background(), td, 0))
	assert.Equal(t, 3, stages)

	stageErrors, err := model.StageErrors()
	require.NoError(t, err)
	require.Len(t, stageErrors, 3)
	assert.InDeltaSlice(t, []float64{1. / 3, 1. / 3, 0}, stageErrors, 1e-12)
	for i := 1; i < len(stageErrors); i++ {
		assert.LessOrEqual(t, stageErrors[i], stageErrors[i-1]+1e-12)
	}
	treeWeights, err := model.TreeWeights()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6931471805599453, 1.0986122886681098, 1.6094379124341003}, treeWeights, 1e-9)

	errPercent, predictions, err := ml.CalcError(model, td, false)
	require.NoError(t, err)
	assert.Zero(t, errPercent)
	assert.Equal(t, []float32{0, 0, 1, 1, 0, 0}, predictions)
}

func TestVariantsLearnDiagonal(t *testing.T) {
	train := diagonal(t, 300, 1)
	test := diagonal(t, 300, 2)
	for _, boostType := range []Type{Discrete, Real, Logit, Gentle} {
		t.Run(boostType.String(), func(t *testing.T) {
			model := NewBoost()
			model.Params = stumpParams(boostType, 40)
			model.MaxDepth = 2
			model.WeightTrimRate = 0.95
			require.NoError(t, model.Train(context.Background(), train, 0))

			stageErrors, err := model.StageErrors()
			require.NoError(t, err)
			assert.Len(t, stageErrors, 40)
			forest, err := model.Forest()
			require.NoError(t, err)
			assert.Equal(t, 40, forest.TreeCount())
			assert.True(t, model.IsClassifier())

			trainErr, _, err := ml.CalcError(model, train, false)
			require.NoError(t, err)
			assert.Less(t, trainErr, float32(12))
			testErr, _, err := ml.CalcError(model, test, false)
			require.NoError(t, err)
			assert.Less(t, testErr, float32(15))
		})
	}
}

func TestRawOutputIsSignedSum(t *testing.T) {
	train := diagonal(t, 100, 3)
	model := NewBoost()
	model.Params = stumpParams(Real, 10)
	require.NoError(t, model.Train(context.Background(), train, 0))

	for _, sample := range [][]float32{{0.1, 0.1}, {0.9, 0.95}, {0.4, 0.7}} {
		raw, err := model.PredictSample(sample, ml.RawOutput)
		require.NoError(t, err)
		label, err := model.PredictSample(sample, 0)
		require.NoError(t, err)
		if raw > 0 {
			assert.Equal(t, float32(1), label)
		} else {
			assert.Equal(t, float32(0), label)
		}
	}
	low, err := model.PredictSample([]float32{0.05, 0.05}, ml.RawOutput)
	require.NoError(t, err)
	assert.Negative(t, low)
}

func TestRejectsNonBinaryProblems(t *testing.T) {
	model := NewBoost()

	threeClasses := newData(t, []float32{0, 1, 2}, 1, []float32{0, 1, 2})
	assert.ErrorIs(t, model.Train(context.Background(), threeClasses, 0), ml.ErrInvalidArgument)

	regression, err := ml.NewTrainData([]float32{0, 1, 2}, 3, 1, ml.RowSample, []float32{0.5, 1.5, 2})
	require.NoError(t, err)
	assert.ErrorIs(t, model.Train(context.Background(), regression, 0), ml.ErrInvalidArgument)

	binary := newData(t, []float32{0, 1, 2, 3}, 1, []float32{0, 0, 1, 1})
	model.WeakCount = 0
	assert.ErrorIs(t, model.Train(context.Background(), binary, 0), ml.ErrInvalidArgument)
	model.WeakCount = 5
	model.WeightTrimRate = 2
	assert.ErrorIs(t, model.Train(context.Background(), binary, 0), ml.ErrInvalidArgument)
	model.WeightTrimRate = 0.95
	model.Type = Type(42)
	assert.ErrorIs(t, model.Train(context.Background(), binary, 0), ml.ErrInvalidArgument)
	model.Type = Gentle
	assert.ErrorIs(t, model.Train(context.Background(), binary, ml.UpdateModel), ml.ErrUnsupported)

	assert.False(t, model.IsTrained())
	_, err = model.PredictSample([]float32{1}, 0)
	assert.ErrorIs(t, err, ml.ErrNotTrained)
	_, err = model.StageErrors()
	assert.ErrorIs(t, err, ml.ErrNotTrained)
	_, err = model.TreeWeights()
	assert.ErrorIs(t, err, ml.ErrNotTrained)
	_, err = model.Forest()
	assert.ErrorIs(t, err, ml.ErrNotTrained)
}

func TestCancelKeepsPreviousModel(t *testing.T) {
	train := diagonal(t, 100, 4)
	model := NewBoost()
	model.Params = stumpParams(Gentle, 5)
	require.NoError(t, model.Train(context.Background(), train, 0))
	before, err := model.Predict(train.TrainSamples(), ml.RawOutput)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	model.WeakCount = 50
	model.OnStage = func(stage Stage) {
		if stage.Index == 2 {
			cancel()
		}
	}
	assert.ErrorIs(t, model.Train(ctx, train, 0), context.Canceled)

	after, err := model.Predict(train.TrainSamples(), ml.RawOutput)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	stageErrors, err := model.StageErrors()
	require.NoError(t, err)
	assert.Len(t, stageErrors, 5)
}

func TestWeightTrimming(t *testing.T) {
	s := &state{sidx: []int{0, 1, 2, 3}, w: []float64{0.1, 0.5, 0.1, 0.3}}
	assert.Equal(t, []int{1, 3}, s.trimmed(0.75))
	assert.Equal(t, []int{1}, s.trimmed(0.5))
	assert.Equal(t, []int{0, 1, 2, 3}, s.trimmed(0.95))
	assert.Equal(t, []int{0, 1, 2, 3}, s.trimmed(0))
	assert.Equal(t, []int{0, 1, 2, 3}, s.trimmed(1))

	uniform := &state{sidx: []int{0, 1, 2}, w: []float64{1, 1, 1}}
	assert.Equal(t, []int{0, 1, 2}, uniform.trimmed(0.5))
}

func TestSaveLoad(t *testing.T) {
	train := diagonal(t, 120, 5)
	model := NewBoost()
	model.Params = stumpParams(Logit, 8)
	model.Seed = 17
	require.NoError(t, model.Train(context.Background(), train, 0))

	filename := filepath.Join(t.TempDir(), "boost.json.lz4")
	require.NoError(t, model.Save(filename))
	loaded, err := LoadBoost(filename)
	require.NoError(t, err)
	assert.Equal(t, model.Params, loaded.Params)
	want, err := model.StageErrors()
	require.NoError(t, err)
	got, err := loaded.StageErrors()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	a, err := model.Predict(train.TrainSamples(), ml.RawOutput)
	require.NoError(t, err)
	b, err := loaded.Predict(train.TrainSamples(), ml.RawOutput)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParamsFromYAML(t *testing.T) {
	params := DefaultParams()
	config := []byte("boost_type: gentle\nweak_count: 7\nmax_depth: 3\nweight_trim_rate: 0\n")
	require.NoError(t, yaml.Unmarshal(config, &params))
	assert.Equal(t, Gentle, params.Type)
	assert.Equal(t, 7, params.WeakCount)
	assert.Equal(t, 3, params.MaxDepth)
	assert.Equal(t, 10, params.MinSampleCount)
	assert.NoError(t, params.Validate())

	assert.Error(t, yaml.Unmarshal([]byte("boost_type: ada\n"), &params))
	_, err := ParseType("LOGIT")
	assert.NoError(t, err)
}
