package dtrees

import (
	"sort"

	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

//Builder grows single trees into its arena. DTrees, Boost and RTrees all grow their trees through it.
//A Builder is used by one goroutine at a time; only the per-variable split search fans out.
type Builder struct {
	problem    *Problem
	params     Params
	vars       []int
	activeVars int
	rng        *rand.Rand
	arena      *Arena
	logger     *zap.Logger
}

//BuilderOption customizes NewBuilder.
type BuilderOption func(*Builder)

//WithActiveVarCount makes every node consider a fresh random subset of k variables.
func WithActiveVarCount(k int) BuilderOption {
	return func(b *Builder) { b.activeVars = k }
}

//WithRand sets the generator used for random variable subsets.
func WithRand(rng *rand.Rand) BuilderOption {
	return func(b *Builder) { b.rng = rng }
}

//WithLogger sets the logger pruning reports to.
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

//NewBuilder creates a builder writing into a fresh arena.
func NewBuilder(problem *Problem, params Params, opts ...BuilderOption) *Builder {
	b := &Builder{
		problem: problem,
		params:  params,
		vars:    problem.Data.VarIdx(),
		arena:   &Arena{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = ml.NewRand(params.Seed)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

//Arena returns the arena trees are written into.
func (b *Builder) Arena() *Arena {
	return b.arena
}

//Build grows a tree over the samples sidx (repetitions allowed) and returns its root.
func (b *Builder) Build(sidx []int) (int, error) {
	if len(sidx) == 0 {
		return -1, ml.InvalidArgf("empty training subset")
	}
	root := b.buildNode(sidx, -1, 0)
	b.arena.Roots = append(b.arena.Roots, root)
	return root, nil
}

//buildNode recurrently builds a node and its subtree and returns the node id.
func (b *Builder) buildNode(sidx []int, parent, depth int) int {
	id := b.arena.addNode(parent)
	st := b.problem.stats(sidx)

	node := &b.arena.Nodes[id]
	node.Value = b.problem.value(&st)
	node.ClassIdx = st.ClassIdx
	node.SampleCount = len(sidx)
	node.Risk = st.Risk

	if b.isTerminal(&st, depth) {
		return id
	}

	ranked := b.theBestSplits(sidx, &st)
	if len(ranked) == 0 {
		return id
	}
	best := ranked[0]
	left, right := b.partition(sidx, &best)
	if len(left) == 0 || len(right) == 0 {
		return id
	}

	prev := -1
	for i := 0; i < len(ranked) && i < b.params.candidates(); i++ {
		cur := b.arena.addSplit(ranked[i].split(), ranked[i].subset)
		if prev < 0 {
			b.arena.Nodes[id].Split = cur
		} else {
			b.arena.Splits[prev].Next = cur
		}
		prev = cur
	}
	b.arena.Nodes[id].DefaultDir = best.defaultDir

	leftID := b.buildNode(left, id, depth+1)
	b.arena.Nodes[id].Left = leftID
	rightID := b.buildNode(right, id, depth+1)
	b.arena.Nodes[id].Right = rightID
	return id
}

func (b *Builder) isTerminal(st *NodeStats, depth int) bool {
	if depth >= b.params.MaxDepth || st.Count < b.params.MinSampleCount || st.Weight <= 0 {
		return true
	}
	if b.problem.Classification {
		return st.Risk <= qualityEps*st.Weight
	}
	return st.Spread < float64(b.params.RegressionAccuracy)
}

//partition routes sidx by the split candidate c.
func (b *Builder) partition(sidx []int, c *candidate) (left, right []int) {
	left = make([]int, 0, len(sidx))
	right = make([]int, 0, len(sidx))
	for _, si := range sidx {
		if b.goesLeft(si, c) {
			left = append(left, si)
		} else {
			right = append(right, si)
		}
	}
	return
}

func (b *Builder) goesLeft(si int, c *candidate) bool {
	data := b.problem.Data
	v := data.Value(si, c.vi)
	if data.IsMissing(v) {
		return c.defaultDir < 0
	}
	if c.subset != nil {
		code := data.CatCode(si, c.vi)
		return code >= 0 && c.subset[code>>5]&(1<<uint(code&31)) != 0
	}
	return v < c.c
}

//nodeVars returns the variables evaluated at a node: all active ones, or a sorted random subset.
func (b *Builder) nodeVars() []int {
	k := b.activeVars
	if k <= 0 || k >= len(b.vars) {
		return b.vars
	}
	perm := append([]int(nil), b.vars...)
	for i := 0; i < k; i++ {
		j := i + b.rng.Intn(len(perm)-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	chosen := perm[:k]
	sort.Ints(chosen)
	return chosen
}
