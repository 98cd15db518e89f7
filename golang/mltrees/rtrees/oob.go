package rtrees

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/tarstars/mltrees/golang/mltrees/dtrees"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

//grownTree is one tree of a forest before it is merged, with what it says about its out-of-bag samples.
type grownTree struct {
	arena *dtrees.Arena
	root  int
	//oob lists the train samples left out of the bootstrap, ascending.
	oob []int
	//leaves holds the leaf every out-of-bag sample reaches, parallel to oob.
	leaves []*dtrees.Node
	//importance is the error increase caused by permuting each variable, indexed like the sample row.
	importance []float64
}

//grower holds what every tree of one training run reads. Nothing in it is written while trees grow.
type grower struct {
	problem  *dtrees.Problem
	params   Params
	active   int
	sidx     []int
	trainSet *roaring.Bitmap
	rows     [][]float32
}

//grow builds tree number tree on a bootstrap resample of the train subset.
//The generator is derived from the seed and the tree number only.
func (g *grower) grow(ctx context.Context, tree int) (*grownTree, error) {
	rng := ml.NewRand(ml.DeriveSeed(g.params.Seed, uint64(tree)))

	bag := make([]int, len(g.sidx))
	inBag := roaring.New()
	for i := range bag {
		si := g.sidx[rng.Intn(len(g.sidx))]
		bag[i] = si
		inBag.Add(uint32(si))
	}

	treeParams := g.params.Params
	treeParams.ThreadsNum = 1
	treeParams.Priors = nil
	builder := dtrees.NewBuilder(g.problem, treeParams, dtrees.WithActiveVarCount(g.active), dtrees.WithRand(rng))
	root, err := builder.Grow(ctx, bag)
	if err != nil {
		return nil, err
	}

	gt := &grownTree{arena: builder.Arena(), root: root}
	oob := roaring.AndNot(g.trainSet, inBag)
	gt.oob = make([]int, 0, oob.GetCardinality())
	it := oob.Iterator()
	for it.HasNext() {
		si := int(it.Next())
		gt.oob = append(gt.oob, si)
		gt.leaves = append(gt.leaves, gt.leaf(g.problem.Schema, g.rows[si]))
	}

	if g.params.CalculateVarImportance && len(gt.oob) > 0 {
		gt.importance = g.permutationImportance(gt, rng)
	}
	return gt, nil
}

func (gt *grownTree) leaf(schema *dtrees.Schema, sample []float32) *dtrees.Node {
	return &gt.arena.Nodes[gt.arena.FindLeaf(schema, gt.root, sample)]
}

//loss is the error of leaf for sample si: 0 or 1 for classification, squared error for regression.
func (g *grower) loss(leaf *dtrees.Node, si int) float64 {
	p := g.problem
	if p.Classification {
		if leaf.ClassIdx != p.Classes[si] {
			return 1
		}
		return 0
	}
	d := leaf.Value - p.Responses[si]
	return d * d
}

//permutationImportance shuffles each active variable among the out-of-bag samples of gt and
//returns the resulting increase of the mean out-of-bag loss.
func (g *grower) permutationImportance(gt *grownTree, rng *rand.Rand) []float64 {
	n := float64(len(gt.oob))
	baseLoss := 0.0
	for i, si := range gt.oob {
		baseLoss += g.loss(gt.leaves[i], si)
	}

	importance := make([]float64, len(g.rows[gt.oob[0]]))
	values := make([]float32, len(gt.oob))
	buf := make([]float32, len(importance))
	for _, vi := range g.problem.Data.VarIdx() {
		for i, si := range gt.oob {
			values[i] = g.rows[si][vi]
		}
		rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })

		permutedLoss := 0.0
		for i, si := range gt.oob {
			copy(buf, g.rows[si])
			buf[vi] = values[i]
			permutedLoss += g.loss(gt.leaf(g.problem.Schema, buf), si)
		}
		importance[vi] = (permutedLoss - baseLoss) / n
	}
	return importance
}

//oobVotes accumulates the out-of-bag predictions of every tree merged so far.
//Classification keeps a samples x classes vote tensor, regression a running sum per sample.
type oobVotes struct {
	votes  *tensor.Dense
	counts []int
	sums   []float64
}

func newOOBVotes(n, nClasses int) *oobVotes {
	v := &oobVotes{counts: make([]int, n)}
	if nClasses > 0 {
		v.votes = tensor.New(tensor.WithShape(n, nClasses), tensor.Of(tensor.Float64))
	} else {
		v.sums = make([]float64, n)
	}
	return v
}

func (v *oobVotes) add(gt *grownTree) error {
	for i, si := range gt.oob {
		v.counts[si]++
		leaf := gt.leaves[i]
		if v.votes == nil {
			v.sums[si] += leaf.Value
			continue
		}
		current, err := v.votes.At(si, leaf.ClassIdx)
		if err != nil {
			return err
		}
		if err := v.votes.SetAt(current.(float64)+1, si, leaf.ClassIdx); err != nil {
			return err
		}
	}
	return nil
}

//errorRate returns the out-of-bag misclassification rate or mean squared error over the samples
//with at least one vote; ok is false when there are none yet.
func (v *oobVotes) errorRate(p *dtrees.Problem, sidx []int) (rate float64, ok bool, err error) {
	total, voted := 0.0, 0
	for _, si := range sidx {
		if v.counts[si] == 0 {
			continue
		}
		voted++
		if v.votes == nil {
			d := v.sums[si]/float64(v.counts[si]) - p.Responses[si]
			total += d * d
			continue
		}
		best, bestVotes := 0, -1.0
		for c := 0; c < p.NClasses; c++ {
			cur, err := v.votes.At(si, c)
			if err != nil {
				return 0, false, err
			}
			if cur.(float64) > bestVotes {
				best, bestVotes = c, cur.(float64)
			}
		}
		if best != p.Classes[si] {
			total++
		}
	}
	if voted == 0 {
		return 0, false, nil
	}
	return total / float64(voted), true, nil
}
