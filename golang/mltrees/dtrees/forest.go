package dtrees

import (
	"context"

	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"go.uber.org/zap"
)

//Forest is a set of trained trees together with the schema of their training data.
//A single decision tree is a forest with one root.
type Forest struct {
	Schema Schema `json:"schema"`
	Arena
}

//Leaf returns the leaf of tree number tree that sample falls into.
func (f *Forest) Leaf(tree int, sample []float32) *Node {
	return &f.Nodes[f.FindLeaf(&f.Schema, f.Roots[tree], sample)]
}

//TreeCount returns the number of trees.
func (f *Forest) TreeCount() int {
	return len(f.Roots)
}

//GrowTree grows one tree over the train subset of data, prunes it when params ask for it and
//returns it as a single-tree forest. Nothing is shared with previous calls.
func GrowTree(ctx context.Context, data *ml.TrainData, params Params, logger *zap.Logger) (*Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sidx := data.TrainSampleIdx()
	if len(sidx) == 0 {
		return nil, ml.InvalidArgf("empty training subset")
	}

	schema := SchemaOf(data)
	problem, err := NewProblem(data, &schema, params.Priors)
	if err != nil {
		return nil, err
	}

	builder := NewBuilder(problem, params, WithLogger(logger))
	root, err := builder.Grow(ctx, sidx)
	if err != nil {
		return nil, err
	}
	grown := len(builder.arena.Nodes)

	forest := &Forest{Schema: schema}
	if params.TruncatePrunedTree {
		forest.Graft(&forest.Schema, builder.arena, root)
	} else {
		forest.Arena = *builder.arena
	}
	logger.Info("tree grown",
		zap.Int("samples", len(sidx)),
		zap.Int("grown_nodes", grown),
		zap.Int("nodes", len(forest.Nodes)),
		zap.Int("depth", forest.Depth(forest.Roots[0])))
	return forest, nil
}

//Grow builds a tree over sidx and, when CVFolds is above 1, marks the nodes cost-complexity
//pruning removes. Pruned nodes stay in the arena until the tree is grafted elsewhere.
func (b *Builder) Grow(ctx context.Context, sidx []int) (int, error) {
	root, err := b.Build(sidx)
	if err != nil {
		return -1, err
	}
	if b.params.CVFolds > 1 {
		theta, err := b.crossValidate(ctx, root, sidx)
		if err != nil {
			return -1, err
		}
		b.arena.prune(root, theta)
		b.logger.Debug("cost-complexity pruning", zap.Float64("alpha", theta), zap.Int("folds", b.params.CVFolds))
	}
	return root, nil
}
