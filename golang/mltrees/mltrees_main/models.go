package main

import (
	"github.com/tarstars/mltrees/golang/mltrees/boost"
	"github.com/tarstars/mltrees/golang/mltrees/dtrees"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"github.com/tarstars/mltrees/golang/mltrees/modelfile"
	"github.com/tarstars/mltrees/golang/mltrees/rtrees"
	"go.uber.org/zap"
)

//treeModel is what the command line needs from every model kind.
type treeModel interface {
	ml.StatModel
	Forest() (*dtrees.Forest, error)
	Save(filename string) error
}

//newModel creates an untrained model of the configured kind.
func newModel(trainConfig *TrainConfig, logger *zap.Logger) (treeModel, error) {
	switch trainConfig.Model {
	case dtrees.Kind:
		model := dtrees.NewDTrees()
		model.Params = trainConfig.DTrees
		model.Logger = logger
		return model, nil
	case boost.Kind:
		model := boost.NewBoost()
		model.Params = trainConfig.Boost
		model.Logger = logger
		return model, nil
	case rtrees.Kind:
		model := rtrees.NewRTrees()
		model.Params = trainConfig.RTrees
		model.Logger = logger
		return model, nil
	}
	return nil, ml.InvalidArgf("unknown model %q", trainConfig.Model)
}

//loadModel reads a model file of any kind.
func loadModel(filename string) (treeModel, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := modelfile.Load(filename, &probe); err != nil {
		return nil, err
	}
	switch probe.Kind {
	case dtrees.Kind:
		return dtrees.LoadDTrees(filename)
	case boost.Kind:
		return boost.LoadBoost(filename)
	case rtrees.Kind:
		return rtrees.LoadRTrees(filename)
	}
	return nil, ml.InvalidArgf("%s holds an unknown model kind %q", filename, probe.Kind)
}

//learningCurve returns the per-stage train error of a boosted model or the running out-of-bag
//error of a forest.
func learningCurve(model treeModel) ([]float64, error) {
	switch m := model.(type) {
	case *boost.Boost:
		return m.StageErrors()
	case *rtrees.RTrees:
		return m.OOBErrors()
	}
	return nil, ml.Unsupportedf("a single tree has no learning curve")
}

//readData loads samples and responses and applies the variable types of dataConfig.
func readData(dataConfig *DataConfig, opts ...ml.TrainDataOption) (*ml.TrainData, error) {
	samples, err := ml.ReadNpy(dataConfig.FileNameSamples)
	if err != nil {
		return nil, err
	}
	responses, err := ml.ReadNpy(dataConfig.FileNameResponses)
	if err != nil {
		return nil, err
	}

	_, nvars := samples.Dims()
	varTypes, err := ml.ParseVarTypeSpec(dataConfig.VarTypes, nvars)
	if err != nil {
		return nil, err
	}
	opts = append(opts, ml.WithVarTypes(varTypes))
	if dataConfig.CategoricalResponses {
		opts = append(opts, ml.WithResponseType(ml.VarCategorical))
	}
	if dataConfig.MissingValue != nil {
		opts = append(opts, ml.WithMissingValue(*dataConfig.MissingValue))
	}
	return ml.NewTrainDataFromDense(samples, ml.RowSample, responses, opts...)
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

func predictFile(model treeModel, samplesFile string, flags ml.Flags) ([]float32, error) {
	samples, err := ml.ReadNpy(samplesFile)
	if err != nil {
		return nil, err
	}
	return model.Predict(samples, flags)
}
