package dtrees

import (
	"math"

	"github.com/tarstars/mltrees/golang/mltrees/ml"
)

//Node is a tree node stored in an Arena. Parent, Left, Right and Split are arena indices, -1 when absent.
//Risk is the weighted training error of the node seen as a leaf and Alpha the complexity at which
//weakest-link pruning collapses it. A Pruned node keeps its subtree but behaves as a leaf.
type Node struct {
	Value       float64 `json:"value"`
	ClassIdx    int     `json:"class_idx"`
	Parent      int     `json:"parent"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	DefaultDir  int     `json:"default_dir"`
	Split       int     `json:"split"`
	SampleCount int     `json:"sample_count"`
	Risk        float64 `json:"risk"`
	Alpha       float64 `json:"alpha"`
	Pruned      bool    `json:"pruned,omitempty"`
}

func newNode(parent int) Node {
	return Node{ClassIdx: -1, Parent: parent, Left: -1, Right: -1, DefaultDir: -1, Split: -1, Alpha: math.MaxFloat64}
}

//IsLeaf reports whether prediction stops at this node.
func (node Node) IsLeaf() bool {
	return node.Split < 0 || node.Pruned
}

//Split is one split candidate of a node. Ordered variables go left when value < C,
//categorical ones when bit SubsetOfs+code of the subset arena is set. Inversed swaps the sides.
//Next links the following candidate of the same node in descending quality, -1 at the end.
type Split struct {
	VarIdx    int     `json:"var_idx"`
	Inversed  bool    `json:"inversed,omitempty"`
	Quality   float64 `json:"quality"`
	Next      int     `json:"next"`
	C         float32 `json:"c"`
	SubsetOfs int     `json:"subset_ofs"`
}

//Arena holds the nodes, splits and categorical subsets of one or more trees.
//Roots lists the root node of every tree in order.
type Arena struct {
	Nodes   []Node   `json:"nodes"`
	Splits  []Split  `json:"splits"`
	Subsets []uint32 `json:"subsets"`
	Roots   []int    `json:"roots"`
}

func (a *Arena) addNode(parent int) int {
	a.Nodes = append(a.Nodes, newNode(parent))
	return len(a.Nodes) - 1
}

func (a *Arena) addSplit(split Split, subset []uint32) int {
	split.Next = -1
	split.SubsetOfs = -1
	if subset != nil {
		split.SubsetOfs = len(a.Subsets)
		a.Subsets = append(a.Subsets, subset...)
	}
	a.Splits = append(a.Splits, split)
	return len(a.Splits) - 1
}

//subsetWords returns the number of 32-bit words a subset over k categories takes.
func subsetWords(k int) int {
	return (k + 31) / 32
}

func setBit(words []uint32, code int) {
	words[code>>5] |= 1 << uint(code&31)
}

func (a *Arena) subsetBit(ofs, code int) bool {
	return a.Subsets[ofs+(code>>5)]&(1<<uint(code&31)) != 0
}

//direction returns -1 (left) or +1 (right) for value v at an internal node.
func (a *Arena) direction(s *Schema, node *Node, v float32) int {
	split := &a.Splits[node.Split]
	if s.IsMissing(v) {
		return node.DefaultDir
	}

	dir := 1
	if s.VarTypes[split.VarIdx] == ml.VarCategorical {
		code := s.CatCode(split.VarIdx, v)
		if code < 0 {
			return node.DefaultDir
		}
		if a.subsetBit(split.SubsetOfs, code) {
			dir = -1
		}
	} else if v < split.C {
		dir = -1
	}

	if split.Inversed {
		dir = -dir
	}
	return dir
}

//walk descends from root using value(vi) for split variables until stop holds or a leaf is reached.
func (a *Arena) walk(s *Schema, root int, value func(vi int) float32, stop func(*Node) bool) int {
	idx := root
	for {
		node := &a.Nodes[idx]
		if node.IsLeaf() || (stop != nil && stop(node)) {
			return idx
		}
		if a.direction(s, node, value(a.Splits[node.Split].VarIdx)) < 0 {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

//FindLeaf returns the leaf of the tree rooted at root that sample falls into.
func (a *Arena) FindLeaf(s *Schema, root int, sample []float32) int {
	return a.walk(s, root, func(vi int) float32 { return sample[vi] }, nil)
}

//Depth returns the depth of the tree rooted at root, counting splits on the longest active path.
func (a *Arena) Depth(root int) int {
	node := a.Nodes[root]
	if node.IsLeaf() {
		return 0
	}
	return 1 + max(a.Depth(node.Left), a.Depth(node.Right))
}

//Graft copies the active part of the tree rooted at root in src into a as a new tree and returns its root.
//Indices are remapped; pruned subtrees and unreachable nodes are dropped.
func (a *Arena) Graft(s *Schema, src *Arena, root int) int {
	newRoot := a.copyTree(s, src, root, -1)
	a.Roots = append(a.Roots, newRoot)
	return newRoot
}

func (a *Arena) copyTree(s *Schema, src *Arena, idx, parent int) int {
	node := src.Nodes[idx]
	id := a.addNode(parent)

	copied := node
	copied.Parent = parent
	copied.Left, copied.Right, copied.Split = -1, -1, -1
	copied.Pruned = false
	if node.IsLeaf() {
		a.Nodes[id] = copied
		return id
	}

	prev := -1
	for si := node.Split; si >= 0; si = src.Splits[si].Next {
		split := src.Splits[si]
		var subset []uint32
		if split.SubsetOfs >= 0 {
			words := subsetWords(len(s.CatMaps[split.VarIdx]))
			subset = src.Subsets[split.SubsetOfs : split.SubsetOfs+words]
		}
		cur := a.addSplit(split, subset)
		if prev < 0 {
			copied.Split = cur
		} else {
			a.Splits[prev].Next = cur
		}
		prev = cur
	}
	a.Nodes[id] = copied

	left := a.copyTree(s, src, node.Left, id)
	right := a.copyTree(s, src, node.Right, id)
	a.Nodes[id].Left = left
	a.Nodes[id].Right = right
	return id
}
