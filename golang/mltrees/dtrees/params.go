package dtrees

import (
	"math"
	"runtime"

	"github.com/tarstars/mltrees/golang/mltrees/ml"
)

//Params collects the hyperparameters of a single tree. Boost and RTrees embed it.
type Params struct {
	//MaxDepth bounds the number of splits on any root-to-leaf path.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
	//MinSampleCount is the smallest node that may still be split.
	MinSampleCount int `json:"min_sample_count" yaml:"min_sample_count"`
	//CVFolds enables cost-complexity pruning with this many folds when above 1.
	CVFolds int `json:"cv_folds" yaml:"cv_folds"`
	//UseSurrogates is accepted for compatibility; surrogate splits are not implemented.
	UseSurrogates bool `json:"use_surrogates" yaml:"use_surrogates"`
	//Use1SERule picks the smallest pruned tree within one standard error of the best one.
	Use1SERule bool `json:"use_1se_rule" yaml:"use_1se_rule"`
	//TruncatePrunedTree removes pruned nodes from the arena instead of only disabling them.
	TruncatePrunedTree bool `json:"truncate_pruned_tree" yaml:"truncate_pruned_tree"`
	//RegressionAccuracy stops splitting a regression node whose responses all lie this close to its mean.
	RegressionAccuracy float32 `json:"regression_accuracy" yaml:"regression_accuracy"`
	//MaxCategories bounds the exhaustive subset search over categories of multi-class problems.
	//Variables with more categories are clustered first. At most MaxCategoriesLimit.
	MaxCategories int `json:"max_categories" yaml:"max_categories"`
	//Priors reweights classes: each class receives total weight proportional to its prior.
	Priors []float32 `json:"priors,omitempty" yaml:"priors"`
	//CandidateSplits is the number of ranked splits stored per node, the winner first.
	CandidateSplits int `json:"candidate_splits" yaml:"candidate_splits"`
	//ThreadsNum limits the per-variable split search fan-out; 0 uses GOMAXPROCS.
	ThreadsNum int `json:"threads_num" yaml:"threads_num"`
	//Seed drives the cross-validation fold assignment.
	Seed uint64 `json:"seed" yaml:"seed"`
}

//DefaultParams returns the stock hyperparameters.
func DefaultParams() Params {
	return Params{
		MaxDepth:           math.MaxInt32,
		MinSampleCount:     10,
		CVFolds:            10,
		Use1SERule:         true,
		TruncatePrunedTree: true,
		RegressionAccuracy: 0.01,
		MaxCategories:      10,
		CandidateSplits:    1,
	}
}

//Validate checks the staged values. It is called at the start of every Train.
func (p Params) Validate() error {
	if p.UseSurrogates {
		return ml.Unsupportedf("surrogate splits")
	}
	if p.MaxDepth <= 0 {
		return ml.InvalidArgf("max depth must be positive, got %d", p.MaxDepth)
	}
	if p.MinSampleCount < 1 {
		return ml.InvalidArgf("min sample count must be at least 1, got %d", p.MinSampleCount)
	}
	if p.CVFolds < 0 {
		return ml.InvalidArgf("cv folds must not be negative, got %d", p.CVFolds)
	}
	if p.RegressionAccuracy < 0 || math.IsNaN(float64(p.RegressionAccuracy)) {
		return ml.InvalidArgf("regression accuracy must not be negative, got %g", p.RegressionAccuracy)
	}
	if p.MaxCategories < 2 {
		return ml.InvalidArgf("max categories must be at least 2, got %d", p.MaxCategories)
	}
	if p.MaxCategories > MaxCategoriesLimit {
		return ml.InvalidArgf("max categories must not exceed %d, got %d", MaxCategoriesLimit, p.MaxCategories)
	}
	if p.CandidateSplits < 0 {
		return ml.InvalidArgf("candidate splits must not be negative, got %d", p.CandidateSplits)
	}
	if p.ThreadsNum < 0 {
		return ml.InvalidArgf("threads num must not be negative, got %d", p.ThreadsNum)
	}
	for i, prior := range p.Priors {
		if prior < 0 || math.IsNaN(float64(prior)) {
			return ml.InvalidArgf("prior %d is invalid: %g", i, prior)
		}
	}
	return nil
}

//Threads returns the worker count, GOMAXPROCS when ThreadsNum is 0.
func (p Params) Threads() int {
	if p.ThreadsNum == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return p.ThreadsNum
}

func (p Params) candidates() int {
	if p.CandidateSplits == 0 {
		return 1
	}
	return p.CandidateSplits
}
