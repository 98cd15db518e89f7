package boost

import (
	"context"

	"github.com/tarstars/mltrees/golang/mltrees/dtrees"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"github.com/tarstars/mltrees/golang/mltrees/modelfile"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

//Stage reports one finished boosting stage.
type Stage struct {
	Index int
	//Outputs holds the weak learner output of every train sample, in train subset order.
	Outputs []float64
	//Weights holds the sample weights after reweighting, in train subset order.
	Weights    []float64
	TrainError float64
	TreeWeight float64
}

//Boost is a two-class boosted tree ensemble.
type Boost struct {
	Params
	Logger *zap.Logger
	//OnStage is called after every stage when set.
	OnStage func(Stage)

	model *model
}

type model struct {
	Forest      dtrees.Forest `json:"forest"`
	Weights     []float64     `json:"weights"`
	StageErrors []float64     `json:"stage_errors"`
}

//NewBoost creates an untrained ensemble with default parameters.
func NewBoost() *Boost {
	return &Boost{Params: DefaultParams(), Logger: zap.NewNop()}
}

func (b *Boost) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

//Train boosts WeakCount trees on the train subset of data. The data must have exactly two classes.
//A failed or cancelled call leaves the previous ensemble in place.
func (b *Boost) Train(ctx context.Context, data *ml.TrainData, flags ml.Flags) error {
	if flags.Has(ml.UpdateModel) {
		return ml.Unsupportedf("boosted trees can't be updated")
	}
	if err := b.Params.Validate(); err != nil {
		return err
	}
	if !data.IsClassification() || data.ClassCount() != 2 {
		return ml.InvalidArgf("boosting needs two-class classification data, got %d classes", data.ClassCount())
	}
	sidx := data.TrainSampleIdx()
	if len(sidx) == 0 {
		return ml.InvalidArgf("empty training subset")
	}

	logger := b.logger()
	m := &model{Forest: dtrees.Forest{Schema: dtrees.SchemaOf(data)}}
	schema := &m.Forest.Schema
	baseProblem, err := dtrees.NewProblem(data, schema, b.Priors)
	if err != nil {
		return err
	}

	n := len(data.Responses())
	s := &state{
		sidx: sidx,
		y:    make([]float64, n),
		base: baseProblem.Weights,
		w:    make([]float64, n),
		f:    make([]float64, n),
		z:    make([]float64, n),
	}
	for _, si := range sidx {
		s.y[si] = float64(2*baseProblem.Classes[si] - 1)
		s.w[si] = s.base[si]
	}
	s.normalize()

	r := rules[b.Type]
	if b.Type == Logit {
		s.refreshLogit()
	}

	rows := make([][]float32, n)
	for _, si := range sidx {
		rows[si] = data.Sample(si, nil)
	}
	h := make([]float64, n)

	for stage := 0; stage < b.WeakCount; stage++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		problem := &dtrees.Problem{
			Data:           data,
			Schema:         schema,
			Classification: r.classification,
			Weights:        s.w,
			LeafValue:      r.leafValue,
		}
		if r.classification {
			problem.NClasses = 2
			problem.Classes = baseProblem.Classes
			problem.Responses = baseProblem.Responses
		} else {
			problem.Responses = r.responses(s)
		}

		treeParams := b.Params.Params
		treeParams.Priors = nil
		treeParams.Seed = ml.DeriveSeed(b.Seed, uint64(stage))
		builder := dtrees.NewBuilder(problem, treeParams, dtrees.WithLogger(logger))
		root, err := builder.Grow(ctx, s.trimmed(b.WeightTrimRate))
		if err != nil {
			return err
		}
		tree := m.Forest.Graft(schema, builder.Arena(), root)

		for _, si := range sidx {
			h[si] = m.Forest.Nodes[m.Forest.FindLeaf(schema, tree, rows[si])].Value
		}
		weight := r.update(s, h)
		m.Weights = append(m.Weights, weight)

		trainError := s.trainError()
		m.StageErrors = append(m.StageErrors, trainError)
		logger.Debug("tree number",
			zap.Int("stage", stage+1),
			zap.Float64("tree_weight", weight),
			zap.Float64("train_error", trainError))

		if b.OnStage != nil {
			b.OnStage(Stage{
				Index:      stage,
				Outputs:    gather(h, sidx),
				Weights:    gather(s.w, sidx),
				TrainError: trainError,
				TreeWeight: weight,
			})
		}
	}

	logger.Info("boosting finished",
		zap.Stringer("type", b.Type),
		zap.Int("trees", m.Forest.TreeCount()),
		zap.Int("nodes", len(m.Forest.Nodes)),
		zap.Float64("train_error", m.StageErrors[len(m.StageErrors)-1]))
	b.model = m
	return nil
}

//trainError is the share of train samples whose ensemble sum has the wrong sign.
func (s *state) trainError() float64 {
	wrong := 0
	for _, si := range s.sidx {
		if (s.f[si] > 0) != (s.y[si] > 0) {
			wrong++
		}
	}
	return float64(wrong) / float64(len(s.sidx))
}

func gather(values []float64, sidx []int) []float64 {
	out := make([]float64, len(sidx))
	for i, si := range sidx {
		out[i] = values[si]
	}
	return out
}

//Sum returns the weighted sum of the weak learner outputs for sample.
func (b *Boost) Sum(sample []float32) (float64, error) {
	if b.model == nil {
		return 0, ml.ErrNotTrained
	}
	forest := &b.model.Forest
	if len(sample) != forest.Schema.VarCount {
		return 0, &ml.DimensionError{What: "sample length", Expected: forest.Schema.VarCount, Actual: len(sample)}
	}
	sum := 0.0
	for tree, weight := range b.model.Weights {
		sum += weight * forest.Leaf(tree, sample).Value
	}
	return sum, nil
}

//PredictSample returns the class label of sample. With RawOutput it returns the weighted sum instead.
func (b *Boost) PredictSample(sample []float32, flags ml.Flags) (float32, error) {
	sum, err := b.Sum(sample)
	if err != nil {
		return 0, err
	}
	if flags.Has(ml.RawOutput) {
		return float32(sum), nil
	}
	labels := b.model.Forest.Schema.ClassLabels
	if sum > 0 {
		return labels[1], nil
	}
	return labels[0], nil
}

//Predict predicts every row of samples.
func (b *Boost) Predict(samples *mat.Dense, flags ml.Flags) ([]float32, error) {
	if b.model == nil {
		return nil, ml.ErrNotTrained
	}
	return ml.PredictRows(samples, b.model.Forest.Schema.VarCount, flags, b.PredictSample)
}

//IsTrained reports whether Train has succeeded.
func (b *Boost) IsTrained() bool { return b.model != nil }

//IsClassifier is true for a trained ensemble: boosting only classifies.
func (b *Boost) IsClassifier() bool { return b.model != nil }

//VarCount returns the number of variables of a sample, 0 before training.
func (b *Boost) VarCount() int {
	if b.model == nil {
		return 0
	}
	return b.model.Forest.Schema.VarCount
}

//Forest returns the weak learners.
func (b *Boost) Forest() (*dtrees.Forest, error) {
	if b.model == nil {
		return nil, ml.ErrNotTrained
	}
	return &b.model.Forest, nil
}

//TreeWeights returns the combination weight of every weak learner.
func (b *Boost) TreeWeights() ([]float64, error) {
	if b.model == nil {
		return nil, ml.ErrNotTrained
	}
	return b.model.Weights, nil
}

//StageErrors returns the train error of the ensemble after every stage.
func (b *Boost) StageErrors() ([]float64, error) {
	if b.model == nil {
		return nil, ml.ErrNotTrained
	}
	return b.model.StageErrors, nil
}

type boostFile struct {
	Kind   string `json:"kind"`
	Params Params `json:"params"`
	model
}

//Kind is the model kind written into Boost model files.
const Kind = "boost"

//Save writes the trained ensemble to filename.
func (b *Boost) Save(filename string) error {
	if b.model == nil {
		return ml.ErrNotTrained
	}
	return modelfile.Save(filename, boostFile{Kind: Kind, Params: b.Params, model: *b.model})
}

//LoadBoost reads an ensemble written by Save.
func LoadBoost(filename string) (*Boost, error) {
	var file boostFile
	if err := modelfile.Load(filename, &file); err != nil {
		return nil, err
	}
	if file.Kind != Kind {
		return nil, ml.InvalidArgf("%s holds a %q model, not %q", filename, file.Kind, Kind)
	}
	m := file.model
	return &Boost{Params: file.Params, Logger: zap.NewNop(), model: &m}, nil
}
