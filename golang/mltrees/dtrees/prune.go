package dtrees

import (
	"context"
	"math"
	"sort"

	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"gonum.org/v1/gonum/stat"
)

//computeAlphas runs weakest-link pruning on the tree rooted at root without changing it: every
//internal node receives in Alpha the complexity at which it collapses into a leaf. Risks are
//divided by totalW so that trees grown on different amounts of data are comparable.
//It returns the ascending complexities at which the tree shrinks.
func (a *Arena) computeAlphas(root int, totalW float64) []float64 {
	if totalW <= 0 {
		totalW = 1
	}
	collapsed := make([]bool, len(a.Nodes))
	g := make([]float64, len(a.Nodes))

	var seq []float64
	for !a.Nodes[root].IsLeaf() && !collapsed[root] {
		weakest := math.Inf(1)
		a.subtreeRisk(root, totalW, collapsed, g, &weakest)
		a.collapseWeakest(root, weakest, collapsed, g)
		seq = append(seq, weakest)
	}
	return seq
}

//subtreeRisk returns the leaf count and normalized risk of the active subtree at idx and stores
//in g the per-leaf risk increase of collapsing each internal node.
func (a *Arena) subtreeRisk(idx int, totalW float64, collapsed []bool, g []float64, weakest *float64) (int, float64) {
	node := &a.Nodes[idx]
	if node.IsLeaf() || collapsed[idx] {
		return 1, node.Risk / totalW
	}
	leftLeaves, leftRisk := a.subtreeRisk(node.Left, totalW, collapsed, g, weakest)
	rightLeaves, rightRisk := a.subtreeRisk(node.Right, totalW, collapsed, g, weakest)
	leaves, risk := leftLeaves+rightLeaves, leftRisk+rightRisk

	g[idx] = math.Max(0, (node.Risk/totalW-risk)/float64(leaves-1))
	if g[idx] < *weakest {
		*weakest = g[idx]
	}
	return leaves, risk
}

func (a *Arena) collapseWeakest(idx int, weakest float64, collapsed []bool, g []float64) {
	node := &a.Nodes[idx]
	if node.IsLeaf() || collapsed[idx] {
		return
	}
	if g[idx] <= weakest+1e-12 {
		collapsed[idx] = true
		node.Alpha = weakest
		return
	}
	a.collapseWeakest(node.Left, weakest, collapsed, g)
	a.collapseWeakest(node.Right, weakest, collapsed, g)
}

//prune disables every topmost internal node whose collapse complexity does not exceed theta.
func (a *Arena) prune(idx int, theta float64) {
	node := &a.Nodes[idx]
	if node.IsLeaf() {
		return
	}
	if node.Alpha <= theta {
		node.Pruned = true
		return
	}
	a.prune(node.Left, theta)
	a.prune(node.Right, theta)
}

//crossValidate chooses the pruning complexity of the tree rooted at root, grown on sidx.
//Each fold grows a tree on the remaining folds and scores the held-out samples on the pruned
//versions of that tree matching the complexity sequence of the full tree.
func (b *Builder) crossValidate(ctx context.Context, root int, sidx []int) (float64, error) {
	p := b.problem
	thresholds := distinctSorted(append([]float64{0}, b.arena.computeAlphas(root, p.totalWeight(sidx))...))
	folds := min(b.params.CVFolds, len(sidx))
	if folds < 2 || len(thresholds) < 2 {
		return thresholds[0], nil
	}

	betas := make([]float64, len(thresholds))
	for j := range thresholds {
		if j+1 < len(thresholds) {
			betas[j] = math.Sqrt(thresholds[j] * thresholds[j+1])
		} else {
			betas[j] = math.MaxFloat64
		}
	}

	order := append([]int(nil), sidx...)
	rng := ml.NewRand(ml.DeriveSeed(b.params.Seed, 0))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	foldParams := b.params
	foldParams.CVFolds = 0

	sumL := make([]float64, len(betas))
	sumLX := make([]float64, len(betas))
	heldW, heldN := 0.0, 0

	for k := 0; k < folds; k++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		trainPart := make([]int, 0, len(order))
		heldOut := make([]int, 0, len(order)/folds+1)
		for i, si := range order {
			if i%folds == k {
				heldOut = append(heldOut, si)
			} else {
				trainPart = append(trainPart, si)
			}
		}

		fb := NewBuilder(p, foldParams, WithRand(b.rng))
		foldRoot, err := fb.Build(trainPart)
		if err != nil {
			return 0, err
		}
		fb.arena.computeAlphas(foldRoot, p.totalWeight(trainPart))

		for _, si := range heldOut {
			path := fb.arena.path(p.Schema, foldRoot, si, p.Data)
			minAlpha := make([]float64, len(path))
			for i, idx := range path {
				minAlpha[i] = fb.arena.Nodes[idx].Alpha
				if i > 0 {
					minAlpha[i] = math.Min(minAlpha[i], minAlpha[i-1])
				}
			}

			w := p.Weights[si]
			s := len(path) - 1
			for j, beta := range betas {
				for s > 0 && minAlpha[s-1] <= beta {
					s--
				}
				l := p.loss(&fb.arena.Nodes[path[s]], si)
				sumL[j] += l
				if w > 0 {
					sumLX[j] += l * l / w
				}
			}
			heldW += w
			heldN++
		}
	}
	if heldW <= 0 {
		return thresholds[0], nil
	}

	cvErr := make([]float64, len(betas))
	cvSE := make([]float64, len(betas))
	bestJ := 0
	for j := range betas {
		cvErr[j] = sumL[j] / heldW
		variance := math.Max(0, sumLX[j]/heldW-cvErr[j]*cvErr[j])
		cvSE[j] = stat.StdErr(math.Sqrt(variance), float64(heldN))
		if cvErr[j] < cvErr[bestJ] {
			bestJ = j
		}
	}

	chosen := bestJ
	if b.params.Use1SERule {
		limit := cvErr[bestJ] + cvSE[bestJ]
		for j := len(betas) - 1; j > bestJ; j-- {
			if cvErr[j] <= limit {
				chosen = j
				break
			}
		}
	}
	return thresholds[chosen], nil
}

//path returns the nodes visited by training sample si from root down to its leaf.
func (a *Arena) path(s *Schema, root, si int, data *ml.TrainData) []int {
	path := []int{root}
	idx := root
	for !a.Nodes[idx].IsLeaf() {
		node := &a.Nodes[idx]
		if a.direction(s, node, data.Value(si, a.Splits[node.Split].VarIdx)) < 0 {
			idx = node.Left
		} else {
			idx = node.Right
		}
		path = append(path, idx)
	}
	return path
}

func (p *Problem) totalWeight(sidx []int) float64 {
	total := 0.0
	for _, si := range sidx {
		total += p.Weights[si]
	}
	return total
}

func distinctSorted(values []float64) []float64 {
	sort.Float64s(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v > out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
