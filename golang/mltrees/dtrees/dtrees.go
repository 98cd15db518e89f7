package dtrees

import (
	"context"

	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"github.com/tarstars/mltrees/golang/mltrees/modelfile"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

//DTrees is a single decision tree for classification or regression.
type DTrees struct {
	Params
	Logger *zap.Logger

	forest *Forest
}

//NewDTrees creates an untrained tree with default parameters.
func NewDTrees() *DTrees {
	return &DTrees{Params: DefaultParams(), Logger: zap.NewNop()}
}

func (dt *DTrees) logger() *zap.Logger {
	if dt.Logger == nil {
		return zap.NewNop()
	}
	return dt.Logger
}

//Train grows the tree on the train subset of data. A failed call leaves the previous tree in place.
func (dt *DTrees) Train(ctx context.Context, data *ml.TrainData, flags ml.Flags) error {
	if flags.Has(ml.UpdateModel) {
		return ml.Unsupportedf("decision trees can't be updated")
	}
	if err := dt.Params.Validate(); err != nil {
		return err
	}
	forest, err := GrowTree(ctx, data, dt.Params, dt.logger())
	if err != nil {
		return err
	}
	dt.forest = forest
	return nil
}

//PredictSample returns the value of the leaf sample reaches.
//With RawOutput a classifier returns the class index instead of the class label.
func (dt *DTrees) PredictSample(sample []float32, flags ml.Flags) (float32, error) {
	if dt.forest == nil {
		return 0, ml.ErrNotTrained
	}
	if err := dt.forest.Schema.checkSample(sample); err != nil {
		return 0, err
	}
	node := dt.forest.Leaf(0, sample)
	if flags.Has(ml.RawOutput) && dt.forest.Schema.Classifier {
		return float32(node.ClassIdx), nil
	}
	return float32(node.Value), nil
}

//Predict predicts every row of samples.
func (dt *DTrees) Predict(samples *mat.Dense, flags ml.Flags) ([]float32, error) {
	if dt.forest == nil {
		return nil, ml.ErrNotTrained
	}
	return ml.PredictRows(samples, dt.forest.Schema.VarCount, flags, dt.PredictSample)
}

//IsTrained reports whether Train has succeeded.
func (dt *DTrees) IsTrained() bool { return dt.forest != nil }

//IsClassifier reports whether the tree predicts class labels.
func (dt *DTrees) IsClassifier() bool { return dt.forest != nil && dt.forest.Schema.Classifier }

//VarCount returns the number of variables of a sample, 0 before training.
func (dt *DTrees) VarCount() int {
	if dt.forest == nil {
		return 0
	}
	return dt.forest.Schema.VarCount
}

//Forest returns the trained tree.
func (dt *DTrees) Forest() (*Forest, error) {
	if dt.forest == nil {
		return nil, ml.ErrNotTrained
	}
	return dt.forest, nil
}

//Roots returns the root node of the tree.
func (dt *DTrees) Roots() ([]int, error) {
	if dt.forest == nil {
		return nil, ml.ErrNotTrained
	}
	return dt.forest.Roots, nil
}

//Nodes returns the node arena.
func (dt *DTrees) Nodes() ([]Node, error) {
	if dt.forest == nil {
		return nil, ml.ErrNotTrained
	}
	return dt.forest.Nodes, nil
}

//Splits returns the split arena.
func (dt *DTrees) Splits() ([]Split, error) {
	if dt.forest == nil {
		return nil, ml.ErrNotTrained
	}
	return dt.forest.Splits, nil
}

//Subsets returns the categorical subset arena.
func (dt *DTrees) Subsets() ([]uint32, error) {
	if dt.forest == nil {
		return nil, ml.ErrNotTrained
	}
	return dt.forest.Subsets, nil
}

type dtreesFile struct {
	Kind   string `json:"kind"`
	Params Params `json:"params"`
	Forest
}

//Kind is the model kind written into DTrees model files.
const Kind = "dtrees"

//Save writes the trained tree to filename.
func (dt *DTrees) Save(filename string) error {
	if dt.forest == nil {
		return ml.ErrNotTrained
	}
	return modelfile.Save(filename, dtreesFile{Kind: Kind, Params: dt.Params, Forest: *dt.forest})
}

//LoadDTrees reads a tree written by Save.
func LoadDTrees(filename string) (*DTrees, error) {
	var file dtreesFile
	if err := modelfile.Load(filename, &file); err != nil {
		return nil, err
	}
	if file.Kind != Kind {
		return nil, ml.InvalidArgf("%s holds a %q model, not %q", filename, file.Kind, Kind)
	}
	forest := file.Forest
	return &DTrees{Params: file.Params, Logger: zap.NewNop(), forest: &forest}, nil
}
