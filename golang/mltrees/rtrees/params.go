package rtrees

import (
	"math"

	"github.com/tarstars/mltrees/golang/mltrees/dtrees"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
)

//TermCriteria stops forest growth after MaxCount trees or once the out-of-bag error reaches Epsilon.
//Epsilon <= 0 disables the error criterion.
type TermCriteria struct {
	MaxCount int     `json:"max_count" yaml:"max_count"`
	Epsilon  float64 `json:"epsilon" yaml:"epsilon"`
}

//Params are the tree parameters shared with DTrees plus the forest settings.
type Params struct {
	dtrees.Params `yaml:",inline"`
	//ActiveVarCount is the size of the random variable subset tried at every node; 0 means sqrt of the variable count.
	ActiveVarCount         int          `json:"active_var_count" yaml:"active_var_count"`
	CalculateVarImportance bool         `json:"calculate_var_importance" yaml:"calculate_var_importance"`
	TermCrit               TermCriteria `json:"term_crit" yaml:"term_crit"`
}

//DefaultParams returns unpruned trees of depth 5 grown until 50 trees or an out-of-bag error of 0.1.
func DefaultParams() Params {
	treeParams := dtrees.DefaultParams()
	treeParams.MaxDepth = 5
	treeParams.CVFolds = 0
	return Params{
		Params:   treeParams,
		TermCrit: TermCriteria{MaxCount: 50, Epsilon: 0.1},
	}
}

//Validate checks the staged values.
func (p Params) Validate() error {
	if err := p.Params.Validate(); err != nil {
		return err
	}
	if p.ActiveVarCount < 0 {
		return ml.InvalidArgf("active var count must not be negative, got %d", p.ActiveVarCount)
	}
	if p.TermCrit.MaxCount <= 0 {
		return ml.InvalidArgf("max tree count must be positive, got %d", p.TermCrit.MaxCount)
	}
	if math.IsNaN(p.TermCrit.Epsilon) {
		return ml.InvalidArgf("epsilon is NaN")
	}
	return nil
}

func (p Params) activeVars(nvars int) int {
	k := p.ActiveVarCount
	if k == 0 {
		k = int(math.Ceil(math.Sqrt(float64(nvars))))
	}
	return min(k, nvars)
}
