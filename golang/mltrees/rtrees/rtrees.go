package rtrees

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/tarstars/mltrees/golang/mltrees/dtrees"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"github.com/tarstars/mltrees/golang/mltrees/modelfile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

//RTrees is a random forest: bagged trees with a random variable subset at every node.
type RTrees struct {
	Params
	Logger *zap.Logger

	model *model
}

type model struct {
	Forest        dtrees.Forest `json:"forest"`
	OOBErrors     []float64     `json:"oob_errors"`
	VarImportance []float64     `json:"var_importance,omitempty"`
}

//NewRTrees creates an untrained forest with default parameters.
func NewRTrees() *RTrees {
	return &RTrees{Params: DefaultParams(), Logger: zap.NewNop()}
}

func (rt *RTrees) logger() *zap.Logger {
	if rt.Logger == nil {
		return zap.NewNop()
	}
	return rt.Logger
}

//Train grows the forest on the train subset of data. Trees are grown in waves of ThreadsNum;
//the context is checked before each wave. A failed call leaves the previous forest in place.
func (rt *RTrees) Train(ctx context.Context, data *ml.TrainData, flags ml.Flags) error {
	if flags.Has(ml.UpdateModel) {
		return ml.Unsupportedf("random trees can't be updated")
	}
	if err := rt.Params.Validate(); err != nil {
		return err
	}
	sidx := data.TrainSampleIdx()
	if len(sidx) == 0 {
		return ml.InvalidArgf("empty training subset")
	}

	logger := rt.logger()
	m := &model{Forest: dtrees.Forest{Schema: dtrees.SchemaOf(data)}}
	schema := &m.Forest.Schema
	problem, err := dtrees.NewProblem(data, schema, rt.Priors)
	if err != nil {
		return err
	}

	g := &grower{
		problem:  problem,
		params:   rt.Params,
		active:   rt.activeVars(data.NVars()),
		sidx:     sidx,
		trainSet: roaring.New(),
		rows:     make([][]float32, len(data.Responses())),
	}
	for _, si := range sidx {
		g.trainSet.Add(uint32(si))
		if g.rows[si] == nil {
			g.rows[si] = data.Sample(si, nil)
		}
	}

	votes := newOOBVotes(len(data.Responses()), problem.NClasses)
	importance := make([]float64, schema.VarCount)
	threads := rt.Threads()
	maxCount := rt.TermCrit.MaxCount

	done := false
	for start := 0; start < maxCount && !done; start += threads {
		if err := ctx.Err(); err != nil {
			return err
		}
		wave := make([]*grownTree, min(threads, maxCount-start))
		var eg errgroup.Group
		for i := range wave {
			i := i
			eg.Go(func() error {
				gt, err := g.grow(ctx, start+i)
				wave[i] = gt
				return err
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		for i, gt := range wave {
			m.Forest.Graft(schema, gt.arena, gt.root)
			if err := votes.add(gt); err != nil {
				return err
			}
			if gt.importance != nil {
				floats.Add(importance, gt.importance)
			}

			oobErr, ok, err := votes.errorRate(problem, sidx)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			m.OOBErrors = append(m.OOBErrors, oobErr)
			logger.Debug("tree number", zap.Int("tree", start+i+1), zap.Float64("oob_error", oobErr))
			if rt.TermCrit.Epsilon > 0 && oobErr <= rt.TermCrit.Epsilon {
				done = true
				break
			}
		}
	}

	if rt.CalculateVarImportance {
		m.VarImportance = normalizeImportance(importance)
	}
	logger.Info("forest grown",
		zap.Int("trees", m.Forest.TreeCount()),
		zap.Int("nodes", len(m.Forest.Nodes)),
		zap.Int("active_vars", g.active),
		zap.Float64("oob_error", m.oobError()))
	rt.model = m
	return nil
}

//normalizeImportance clamps negative importances to zero and scales the rest to sum to 1.
func normalizeImportance(importance []float64) []float64 {
	for vi, v := range importance {
		if v < 0 {
			importance[vi] = 0
		}
	}
	if sum := floats.Sum(importance); sum > 0 {
		floats.Scale(1/sum, importance)
	}
	return importance
}

func (m *model) oobError() float64 {
	if len(m.OOBErrors) == 0 {
		return 0
	}
	return m.OOBErrors[len(m.OOBErrors)-1]
}

//classVotes counts the trees voting for every class.
func (rt *RTrees) classVotes(sample []float32) []float64 {
	forest := &rt.model.Forest
	counts := make([]float64, forest.Schema.ClassCount())
	for tree := 0; tree < forest.TreeCount(); tree++ {
		counts[forest.Leaf(tree, sample).ClassIdx]++
	}
	return counts
}

//PredictSample returns the majority class (ties go to the lowest class) or the mean of the trees.
//With RawOutput a classifier returns the class index instead of the label.
func (rt *RTrees) PredictSample(sample []float32, flags ml.Flags) (float32, error) {
	if rt.model == nil {
		return 0, ml.ErrNotTrained
	}
	forest := &rt.model.Forest
	if len(sample) != forest.Schema.VarCount {
		return 0, &ml.DimensionError{What: "sample length", Expected: forest.Schema.VarCount, Actual: len(sample)}
	}

	if !forest.Schema.Classifier {
		sum := 0.0
		for tree := 0; tree < forest.TreeCount(); tree++ {
			sum += forest.Leaf(tree, sample).Value
		}
		return float32(sum / float64(forest.TreeCount())), nil
	}

	best := floats.MaxIdx(rt.classVotes(sample))
	if flags.Has(ml.RawOutput) {
		return float32(best), nil
	}
	return forest.Schema.ClassLabels[best], nil
}

//Predict predicts every row of samples.
func (rt *RTrees) Predict(samples *mat.Dense, flags ml.Flags) ([]float32, error) {
	if rt.model == nil {
		return nil, ml.ErrNotTrained
	}
	return ml.PredictRows(samples, rt.model.Forest.Schema.VarCount, flags, rt.PredictSample)
}

//Votes returns, for every row of samples, the number of trees voting for each class.
func (rt *RTrees) Votes(samples *mat.Dense) (*mat.Dense, error) {
	if rt.model == nil {
		return nil, ml.ErrNotTrained
	}
	schema := &rt.model.Forest.Schema
	if !schema.Classifier {
		return nil, ml.InvalidArgf("votes need a classification forest")
	}
	if samples == nil {
		return nil, ml.InvalidArgf("nil samples")
	}
	rows, cols := samples.Dims()
	if cols != schema.VarCount {
		return nil, &ml.DimensionError{What: "sample columns", Expected: schema.VarCount, Actual: cols}
	}

	result := mat.NewDense(rows, schema.ClassCount(), nil)
	sample := make([]float32, cols)
	for p := 0; p < rows; p++ {
		for q := range sample {
			sample[q] = float32(samples.At(p, q))
		}
		result.SetRow(p, rt.classVotes(sample))
	}
	return result, nil
}

//IsTrained reports whether Train has succeeded.
func (rt *RTrees) IsTrained() bool { return rt.model != nil }

//IsClassifier reports whether the forest predicts class labels.
func (rt *RTrees) IsClassifier() bool { return rt.model != nil && rt.model.Forest.Schema.Classifier }

//VarCount returns the number of variables of a sample, 0 before training.
func (rt *RTrees) VarCount() int {
	if rt.model == nil {
		return 0
	}
	return rt.model.Forest.Schema.VarCount
}

//Forest returns the trees.
func (rt *RTrees) Forest() (*dtrees.Forest, error) {
	if rt.model == nil {
		return nil, ml.ErrNotTrained
	}
	return &rt.model.Forest, nil
}

//OOBError returns the out-of-bag error of the whole forest: misclassification rate or mean squared error.
//It fails when no sample was ever out of bag.
func (rt *RTrees) OOBError() (float64, error) {
	errs, err := rt.OOBErrors()
	if err != nil {
		return 0, err
	}
	if len(errs) == 0 {
		return 0, fmt.Errorf("%w: no out-of-bag samples", ml.ErrNotTrained)
	}
	return errs[len(errs)-1], nil
}

//OOBErrors returns the running out-of-bag error after every merged tree that had out-of-bag samples.
func (rt *RTrees) OOBErrors() ([]float64, error) {
	if rt.model == nil {
		return nil, ml.ErrNotTrained
	}
	return rt.model.OOBErrors, nil
}

//VarImportance returns the normalized permutation importance of every variable.
//It fails unless CalculateVarImportance was set for training.
func (rt *RTrees) VarImportance() ([]float64, error) {
	if rt.model == nil {
		return nil, ml.ErrNotTrained
	}
	if rt.model.VarImportance == nil {
		return nil, fmt.Errorf("%w: variable importance was not calculated", ml.ErrNotTrained)
	}
	return rt.model.VarImportance, nil
}

type rtreesFile struct {
	Kind   string `json:"kind"`
	Params Params `json:"params"`
	model
}

//Kind is the model kind written into RTrees model files.
const Kind = "rtrees"

//Save writes the trained forest to filename.
func (rt *RTrees) Save(filename string) error {
	if rt.model == nil {
		return ml.ErrNotTrained
	}
	return modelfile.Save(filename, rtreesFile{Kind: Kind, Params: rt.Params, model: *rt.model})
}

//LoadRTrees reads a forest written by Save.
func LoadRTrees(filename string) (*RTrees, error) {
	var file rtreesFile
	if err := modelfile.Load(filename, &file); err != nil {
		return nil, err
	}
	if file.Kind != Kind {
		return nil, ml.InvalidArgf("%s holds a %q model, not %q", filename, file.Kind, Kind)
	}
	m := file.model
	return &RTrees{Params: file.Params, Logger: zap.NewNop(), model: &m}, nil
}
