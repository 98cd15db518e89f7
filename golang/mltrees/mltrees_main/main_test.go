package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarstars/mltrees/golang/mltrees/boost"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"github.com/tarstars/mltrees/golang/mltrees/rtrees"
	"gonum.org/v1/gonum/mat"
)

func writeNpy(t *testing.T, filename string, m *mat.Dense) {
	t.Helper()
	dst, err := os.Create(filename)
	require.NoError(t, err)
	defer func() { require.NoError(t, dst.Close()) }()
	require.NoError(t, npyio.Write(dst, m))
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	filename := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	return filename
}

//writeThresholdData writes 200 samples of two variables labelled by x0 > 0.5.
func writeThresholdData(t *testing.T, dir string) {
	rng := ml.NewRand(1)
	samples := mat.NewDense(200, 2, nil)
	responses := mat.NewDense(200, 1, nil)
	for p := 0; p < 200; p++ {
		samples.Set(p, 0, rng.Float64())
		samples.Set(p, 1, rng.Float64())
		if samples.At(p, 0) > 0.5 {
			responses.Set(p, 0, 1)
		}
	}
	writeNpy(t, filepath.Join(dir, "samples.npy"), samples)
	writeNpy(t, filepath.Join(dir, "responses.npy"), responses)
}

func TestTrainPredictPipeline(t *testing.T) {
	for _, kind := range []string{"dtrees", "boost", "rtrees"} {
		t.Run(kind, func(t *testing.T) {
			dir := t.TempDir()
			writeThresholdData(t, dir)
			ctx := context.Background()

			trainConfig := writeConfig(t, dir, "train.yaml", fmt.Sprintf(`
model: %[2]s
data:
  filename_samples: %[1]s/samples.npy
  filename_responses: %[1]s/responses.npy
  categorical_responses: true
test_ratio: 0.25
shuffle: true
seed: 3
filename_model: %[1]s/model.json.zst
filename_run_log: %[1]s/runs.db
dtrees:
  cv_folds: 0
  min_sample_count: 2
boost:
  weak_count: 10
  boost_type: gentle
rtrees:
  term_crit:
    max_count: 10
`, dir, kind))
			require.NoError(t, train(ctx, trainConfig))

			predictConfig := writeConfig(t, dir, "predict.yaml", fmt.Sprintf(`
filename_model: %[1]s/model.json.zst
filename_samples: %[1]s/samples.npy
filename_prediction: %[1]s/prediction.npy
`, dir))
			require.NoError(t, predict(ctx, predictConfig))

			prediction, err := ml.ReadNpy(filepath.Join(dir, "prediction.npy"))
			require.NoError(t, err)
			responses, err := ml.ReadNpy(filepath.Join(dir, "responses.npy"))
			require.NoError(t, err)
			rows, _ := prediction.Dims()
			require.Equal(t, 200, rows)
			wrong := 0
			for p := 0; p < rows; p++ {
				if prediction.At(p, 0) != responses.At(p, 0) {
					wrong++
				}
			}
			assert.Less(t, wrong, 20)

			errorConfig := writeConfig(t, dir, "error.yaml", fmt.Sprintf(`
filename_model: %[1]s/model.json.zst
data:
  filename_samples: %[1]s/samples.npy
  filename_responses: %[1]s/responses.npy
`, dir))
			require.NoError(t, calcError(ctx, errorConfig))

			graphConfig := writeConfig(t, dir, "graph.yaml", fmt.Sprintf(`
filename_model: %[1]s/model.json.zst
figure_type: svg
pictures_directory: %[1]s
dump_prefix: tree
`, dir))
			require.NoError(t, graph(ctx, graphConfig))
			_, err = os.Stat(filepath.Join(dir, "tree_00000.svg"))
			assert.NoError(t, err)

			runsConfig := writeConfig(t, dir, "runs.yaml", fmt.Sprintf("filename_run_log: %s/runs.db\n", dir))
			require.NoError(t, runs(ctx, runsConfig))
		})
	}
}

func TestLearningCurveModes(t *testing.T) {
	dir := t.TempDir()
	writeThresholdData(t, dir)
	ctx := context.Background()

	trainConfig := writeConfig(t, dir, "train.yaml", fmt.Sprintf(`
model: boost
data:
  filename_samples: %[1]s/samples.npy
  filename_responses: %[1]s/responses.npy
  categorical_responses: true
filename_model: %[1]s/boost.json
filename_learning_curve: %[1]s/train_curve.npy
boost:
  weak_count: 6
`, dir))
	require.NoError(t, train(ctx, trainConfig))

	lcurveConfig := writeConfig(t, dir, "lcurve.yaml", fmt.Sprintf(`
filename_model: %[1]s/boost.json
filename_learning_curve: %[1]s/curve.npy
`, dir))
	require.NoError(t, lcurve(ctx, lcurveConfig))

	fromTrain, err := ml.ReadNpy(filepath.Join(dir, "train_curve.npy"))
	require.NoError(t, err)
	fromModel, err := ml.ReadNpy(filepath.Join(dir, "curve.npy"))
	require.NoError(t, err)
	assert.True(t, mat.Equal(fromTrain, fromModel))
	rows, _ := fromModel.Dims()
	assert.Equal(t, 6, rows)
}

func TestForestTrainsThroughCommandLine(t *testing.T) {
	dir := t.TempDir()
	writeThresholdData(t, dir)
	ctx := context.Background()

	trainConfig := writeConfig(t, dir, "train.yaml", fmt.Sprintf(`
model: rtrees
data:
  filename_samples: %[1]s/samples.npy
  filename_responses: %[1]s/responses.npy
  categorical_responses: true
filename_model: %[1]s/forest.json.lz4
filename_learning_curve: %[1]s/oob_curve.npy
rtrees:
  calculate_var_importance: true
  term_crit:
    max_count: 8
    epsilon: 0
`, dir))
	require.NoError(t, train(ctx, trainConfig))

	model, err := loadModel(filepath.Join(dir, "forest.json.lz4"))
	require.NoError(t, err)
	forest, err := model.Forest()
	require.NoError(t, err)
	assert.Equal(t, 8, forest.TreeCount())

	curve, err := ml.ReadNpy(filepath.Join(dir, "oob_curve.npy"))
	require.NoError(t, err)
	rows, _ := curve.Dims()
	assert.Equal(t, 8, rows)

	_, err = learningCurve(rtrees.NewRTrees())
	assert.ErrorIs(t, err, ml.ErrNotTrained)
	_, err = learningCurve(boost.NewBoost())
	assert.ErrorIs(t, err, ml.ErrNotTrained)
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	writeThresholdData(t, dir)
	ctx := context.Background()

	unknownModel := writeConfig(t, dir, "unknown.yaml", fmt.Sprintf(`
model: svm
data:
  filename_samples: %[1]s/samples.npy
  filename_responses: %[1]s/responses.npy
filename_model: %[1]s/model.json
`, dir))
	assert.ErrorIs(t, train(ctx, unknownModel), ml.ErrInvalidArgument)

	typo := writeConfig(t, dir, "typo.yaml", "modle: dtrees\n")
	assert.Error(t, train(ctx, typo))

	regressionBoost := writeConfig(t, dir, "regression.yaml", fmt.Sprintf(`
model: boost
data:
  filename_samples: %[1]s/samples.npy
  filename_responses: %[1]s/responses.npy
filename_model: %[1]s/model.json
`, dir))
	assert.ErrorIs(t, train(ctx, regressionBoost), ml.ErrInvalidArgument)
}
