package main

import (
	"os"

	"github.com/tarstars/mltrees/golang/mltrees/boost"
	"github.com/tarstars/mltrees/golang/mltrees/dtrees"
	"github.com/tarstars/mltrees/golang/mltrees/rtrees"
	"gopkg.in/yaml.v2"
)

func decodeConfig(srcConfig string, out interface{}) error {
	content, err := os.ReadFile(srcConfig)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(content, out)
}

//DataConfig names a sample matrix and its responses, both npy files with one sample per row.
type DataConfig struct {
	FileNameSamples      string   `yaml:"filename_samples"`
	FileNameResponses    string   `yaml:"filename_responses"`
	VarTypes             string   `yaml:"var_types"`
	CategoricalResponses bool     `yaml:"categorical_responses"`
	MissingValue         *float32 `yaml:"missing_value"`
}

type TrainConfig struct {
	Model string     `yaml:"model"`
	Data  DataConfig `yaml:"data"`
	//TestRatio is the share of samples held out for the test error.
	TestRatio             float64       `yaml:"test_ratio"`
	Shuffle               bool          `yaml:"shuffle"`
	Seed                  uint64        `yaml:"seed"`
	FileNameModel         string        `yaml:"filename_model"`
	FileNameLearningCurve string        `yaml:"filename_learning_curve"`
	FileNameRunLog        string        `yaml:"filename_run_log"`
	DTrees                dtrees.Params `yaml:"dtrees"`
	Boost                 boost.Params  `yaml:"boost"`
	RTrees                rtrees.Params `yaml:"rtrees"`
}

func defaultTrainConfig() TrainConfig {
	return TrainConfig{
		Model:  dtrees.Kind,
		DTrees: dtrees.DefaultParams(),
		Boost:  boost.DefaultParams(),
		RTrees: rtrees.DefaultParams(),
	}
}

type PredictConfig struct {
	ModelFileName      string `yaml:"filename_model"`
	SamplesFileName    string `yaml:"filename_samples"`
	PredictionFileName string `yaml:"filename_prediction"`
	RawOutput          bool   `yaml:"raw_output"`
}

type ErrorConfig struct {
	ModelFileName string     `yaml:"filename_model"`
	Data          DataConfig `yaml:"data"`
}

type GraphConfig struct {
	ModelFileName     string `yaml:"filename_model"`
	FigureType        string `yaml:"figure_type"`
	PicturesDirectory string `yaml:"pictures_directory"`
	DumpPrefix        string `yaml:"dump_prefix"`
}

type LcurveConfig struct {
	ModelFileName         string `yaml:"filename_model"`
	LearningCurveFileName string `yaml:"filename_learning_curve"`
}

type RunsConfig struct {
	FileNameRunLog string `yaml:"filename_run_log"`
	Limit          int    `yaml:"limit"`
}
