package dtrees

import (
	"math"

	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"gonum.org/v1/gonum/floats"
)

//Problem describes what one tree is fitted to. Classes, Responses and Weights are indexed by
//the sample position in Data, so index subsets never copy the sample matrix.
type Problem struct {
	Data           *ml.TrainData
	Schema         *Schema
	Classification bool
	NClasses       int
	Classes        []int
	Responses      []float64
	Weights        []float64
	//LeafValue overrides the value stored in nodes; boosting uses it for weak-learner outputs.
	LeafValue func(st *NodeStats) float64
}

//NodeStats summarizes the samples that reach a node.
type NodeStats struct {
	Count        int
	Weight       float64
	ClassWeights []float64
	ClassIdx     int
	Sum          float64
	Spread       float64
	Risk         float64
}

//Mean returns the weighted mean response of a regression node.
func (st *NodeStats) Mean() float64 {
	if st.Weight <= 0 {
		return 0
	}
	return st.Sum / st.Weight
}

//NewProblem fits data's own responses over its train subset, applying sample weights and class priors.
func NewProblem(data *ml.TrainData, schema *Schema, priors []float32) (*Problem, error) {
	n := len(data.Responses())
	p := &Problem{
		Data:           data,
		Schema:         schema,
		Classification: data.IsClassification(),
		NClasses:       data.ClassCount(),
		Responses:      make([]float64, n),
		Weights:        make([]float64, n),
	}
	for si, r := range data.Responses() {
		p.Responses[si] = float64(r)
		p.Weights[si] = float64(data.Weight(si))
	}
	if !p.Classification {
		if len(priors) > 0 {
			return nil, ml.InvalidArgf("priors are only meaningful for classification")
		}
		return p, nil
	}

	p.Classes = append([]int(nil), data.NormCatResponses()...)
	if len(priors) == 0 {
		return p, nil
	}
	if len(priors) != p.NClasses {
		return nil, &ml.DimensionError{What: "priors length", Expected: p.NClasses, Actual: len(priors)}
	}
	if err := p.applyPriors(priors, data.TrainSampleIdx()); err != nil {
		return nil, err
	}
	return p, nil
}

//applyPriors rescales weights so that class c carries a share priors[c] of the total train weight.
func (p *Problem) applyPriors(priors []float32, sidx []int) error {
	classW := make([]float64, p.NClasses)
	total := 0.0
	for _, si := range sidx {
		classW[p.Classes[si]] += p.Weights[si]
		total += p.Weights[si]
	}

	pr := make([]float64, p.NClasses)
	for c, v := range priors {
		pr[c] = float64(v)
	}
	sum := floats.Sum(pr)
	if sum <= 0 {
		return ml.InvalidArgf("priors sum to zero")
	}

	factor := make([]float64, p.NClasses)
	for c := range factor {
		if classW[c] > 0 {
			factor[c] = pr[c] / sum * total / classW[c]
		}
	}
	for _, si := range sidx {
		p.Weights[si] *= factor[p.Classes[si]]
	}
	return nil
}

//stats accumulates the node statistics of sidx.
func (p *Problem) stats(sidx []int) NodeStats {
	st := NodeStats{Count: len(sidx)}
	if p.Classification {
		st.ClassWeights = make([]float64, p.NClasses)
		for _, si := range sidx {
			w := p.Weights[si]
			st.ClassWeights[p.Classes[si]] += w
			st.Weight += w
		}
		st.ClassIdx = floats.MaxIdx(st.ClassWeights)
		st.Risk = math.Max(0, st.Weight-st.ClassWeights[st.ClassIdx])
		return st
	}

	st.ClassIdx = -1
	for _, si := range sidx {
		w := p.Weights[si]
		st.Weight += w
		st.Sum += w * p.Responses[si]
	}
	mean := st.Mean()
	for _, si := range sidx {
		d := p.Responses[si] - mean
		st.Risk += p.Weights[si] * d * d
		st.Spread = math.Max(st.Spread, math.Abs(d))
	}
	return st
}

//value returns the prediction a node with statistics st stores.
func (p *Problem) value(st *NodeStats) float64 {
	if p.LeafValue != nil {
		return p.LeafValue(st)
	}
	if p.Classification {
		return float64(p.Schema.ClassLabels[st.ClassIdx])
	}
	return st.Mean()
}

//loss is the weighted error of predicting node for sample si.
func (p *Problem) loss(node *Node, si int) float64 {
	if p.Classification {
		if node.ClassIdx != p.Classes[si] {
			return p.Weights[si]
		}
		return 0
	}
	d := node.Value - p.Responses[si]
	return p.Weights[si] * d * d
}
