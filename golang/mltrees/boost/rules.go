package boost

import (
	"math"
	"sort"

	"github.com/tarstars/mltrees/golang/mltrees/dtrees"
)

const (
	probEps = 1e-6
	//zMax clamps LogitBoost working responses.
	zMax = 4.0
)

//state is the per-sample bookkeeping of a boosting run, indexed by sample position in the data.
type state struct {
	sidx []int
	y    []float64
	base []float64
	w    []float64
	f    []float64
	z    []float64
}

//rule describes one boosting variant: what kind of tree is fitted to what, and how its
//outputs move the ensemble and the sample weights.
type rule struct {
	classification bool
	leafValue      func(st *dtrees.NodeStats) float64
	//responses returns the regression targets of the next tree, nil for classification trees.
	responses func(s *state) []float64
	//update folds the weak learner outputs h into the state and returns the tree weight.
	update func(s *state, h []float64) float64
}

var rules = map[Type]rule{
	Discrete: {
		classification: true,
		leafValue: func(st *dtrees.NodeStats) float64 {
			if st.ClassIdx == 1 {
				return 1
			}
			return -1
		},
		update: func(s *state, h []float64) float64 {
			errW, total := 0.0, 0.0
			for _, si := range s.sidx {
				total += s.w[si]
				if h[si] != s.y[si] {
					errW += s.w[si]
				}
			}
			e := math.Min(math.Max(errW/total, 1e-10), 1-1e-10)
			c := math.Log((1 - e) / e)
			scale := math.Exp(c)
			for _, si := range s.sidx {
				if h[si] != s.y[si] {
					s.w[si] *= scale
				}
				s.f[si] += c * h[si]
			}
			s.normalize()
			return c
		},
	},
	Real: {
		classification: true,
		leafValue: func(st *dtrees.NodeStats) float64 {
			if st.Weight <= 0 {
				return 0
			}
			p := math.Min(math.Max(st.ClassWeights[1]/st.Weight, probEps), 1-probEps)
			return 0.5 * math.Log(p/(1-p))
		},
		update: exponentialUpdate,
	},
	Logit: {
		responses: func(s *state) []float64 { return s.z },
		update: func(s *state, h []float64) float64 {
			for _, si := range s.sidx {
				s.f[si] += 0.5 * h[si]
			}
			s.refreshLogit()
			return 0.5
		},
	},
	Gentle: {
		responses: func(s *state) []float64 { return s.y },
		update:    exponentialUpdate,
	},
}

//exponentialUpdate adds h to the ensemble and multiplies weights by exp(-y*h).
func exponentialUpdate(s *state, h []float64) float64 {
	for _, si := range s.sidx {
		s.f[si] += h[si]
		s.w[si] *= math.Exp(-s.y[si] * h[si])
	}
	s.normalize()
	return 1
}

func (s *state) normalize() {
	total := 0.0
	for _, si := range s.sidx {
		total += s.w[si]
	}
	if total <= 0 {
		return
	}
	for _, si := range s.sidx {
		s.w[si] /= total
	}
}

//refreshLogit recomputes the working responses and weights of LogitBoost from the current sum.
func (s *state) refreshLogit() {
	for _, si := range s.sidx {
		p := 1 / (1 + math.Exp(-2*s.f[si]))
		if s.y[si] > 0 {
			s.z[si] = math.Min(1/p, zMax)
		} else {
			s.z[si] = math.Max(-1/(1-p), -zMax)
		}
		s.w[si] = s.base[si] * math.Max(p*(1-p), 1e-10)
	}
	s.normalize()
}

//trimmed returns the samples carrying the heaviest rate share of the weight; every sample at
//least as heavy as the lightest kept one stays, so equal weights are never split.
func (s *state) trimmed(rate float64) []int {
	if rate <= 0 || rate >= 1 {
		return s.sidx
	}
	weights := make([]float64, len(s.sidx))
	total := 0.0
	for i, si := range s.sidx {
		weights[i] = s.w[si]
		total += s.w[si]
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))

	limit, cum := weights[len(weights)-1], 0.0
	for _, w := range weights {
		cum += w
		if cum >= rate*total {
			limit = w
			break
		}
	}
	kept := make([]int, 0, len(s.sidx))
	for _, si := range s.sidx {
		if s.w[si] >= limit {
			kept = append(kept, si)
		}
	}
	return kept
}
