package dtrees

import (
	"math/bits"
	"sort"

	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"golang.org/x/sync/errgroup"
)

//qualityEps is the relative quality below which a split counts as no improvement.
const qualityEps = 1e-10

//MaxCategoriesLimit is the largest accepted MaxCategories. Up to it the multi-class
//bipartition search stays exhaustive.
const MaxCategoriesLimit = 16

//candidate is the best split found on one variable.
type candidate struct {
	vi         int
	quality    float64
	c          float32
	subset     []uint32
	defaultDir int
}

func (c candidate) split() Split {
	return Split{VarIdx: c.vi, Quality: c.quality, C: c.c}
}

//sideStats accumulates the samples on one side of a split.
//Classification keeps class weights and the sum of their squares, regression the weighted response sum.
type sideStats struct {
	w     float64
	sum   float64
	cw    []float64
	sqSum float64
}

func newSideStats(nClasses int) sideStats {
	if nClasses == 0 {
		return sideStats{}
	}
	return sideStats{cw: make([]float64, nClasses)}
}

func (s *sideStats) clone() sideStats {
	c := *s
	if s.cw != nil {
		c.cw = append([]float64(nil), s.cw...)
	}
	return c
}

//add moves a sample of class cls (or response y) with weight w in; a negative w moves it out.
func (s *sideStats) add(cls int, y, w float64) {
	s.w += w
	if s.cw != nil {
		s.sqSum += w * (2*s.cw[cls] + w)
		s.cw[cls] += w
		return
	}
	s.sum += w * y
}

//addGroup moves a whole category group in (sign 1) or out (sign -1).
func (s *sideStats) addGroup(g *catGroup, sign float64) {
	s.w += sign * g.w
	if s.cw == nil {
		s.sum += sign * g.vec[0]
		return
	}
	s.sqSum = 0
	for k := range s.cw {
		s.cw[k] += sign * g.vec[k]
		s.sqSum += s.cw[k] * s.cw[k]
	}
}

//score is the part of the impurity reduction this side contributes:
//sum of squared class weights over weight (Gini) or squared response sum over weight (variance).
func (s *sideStats) score() float64 {
	if s.w <= 0 {
		return 0
	}
	if s.cw != nil {
		return s.sqSum / s.w
	}
	return s.sum * s.sum / s.w
}

func dirByWeight(leftW, rightW float64) int {
	if leftW >= rightW {
		return -1
	}
	return 1
}

//theBestSplits evaluates every variable of the node and returns the splits with positive quality,
//best first. Ties keep the lower variable index first. With more than one thread each variable
//is scanned in its own task writing to its own result slot.
func (b *Builder) theBestSplits(sidx []int, st *NodeStats) []candidate {
	vars := b.nodeVars()
	result := make([]candidate, len(vars))

	scan := func(q int) candidate {
		vi := vars[q]
		if b.problem.Schema.VarTypes[vi] == ml.VarCategorical {
			return b.scanCategorical(vi, sidx)
		}
		return b.scanOrdered(vi, sidx)
	}

	threadsNum := b.params.Threads()
	if threadsNum == 1 || len(vars) == 1 {
		for q := range vars {
			result[q] = scan(q)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(threadsNum)
		for q := range vars {
			q := q
			g.Go(func() error {
				result[q] = scan(q)
				return nil
			})
		}
		_ = g.Wait()
	}

	scale := st.Risk
	if b.problem.Classification {
		scale = st.Weight
	}
	ranked := result[:0]
	for _, c := range result {
		if c.quality > qualityEps*scale {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].quality > ranked[j].quality })
	return ranked
}

type valuePair struct {
	v  float32
	si int
}

//scanOrdered sorts the present values of vi and scans all thresholds between distinct neighbours.
func (b *Builder) scanOrdered(vi int, sidx []int) candidate {
	p := b.problem
	best := candidate{vi: vi, quality: -1, defaultDir: -1}

	pairs := make([]valuePair, 0, len(sidx))
	for _, si := range sidx {
		v := p.Data.Value(si, vi)
		if p.Data.IsMissing(v) || p.Weights[si] <= 0 {
			continue
		}
		pairs = append(pairs, valuePair{v, si})
	}
	if len(pairs) < 2 {
		return best
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })

	right := newSideStats(p.NClasses)
	for _, pair := range pairs {
		right.add(p.class(pair.si), p.Responses[pair.si], p.Weights[pair.si])
	}
	base := right.score()
	left := newSideStats(p.NClasses)

	bestLeftW, bestRightW := 0.0, 0.0
	for i := 0; i < len(pairs)-1; i++ {
		si := pairs[i].si
		cls, y, w := p.class(si), p.Responses[si], p.Weights[si]
		left.add(cls, y, w)
		right.add(cls, y, -w)
		if pairs[i].v == pairs[i+1].v {
			continue
		}
		q := left.score() + right.score() - base
		if q > best.quality {
			best.quality = q
			best.c = midpoint(pairs[i].v, pairs[i+1].v)
			bestLeftW, bestRightW = left.w, right.w
		}
	}
	best.defaultDir = dirByWeight(bestLeftW, bestRightW)
	return best
}

//midpoint returns a threshold strictly above a and not above b.
func midpoint(a, b float32) float32 {
	c := float32((float64(a) + float64(b)) / 2)
	if c <= a {
		return b
	}
	return c
}

func (p *Problem) class(si int) int {
	if p.Classification {
		return p.Classes[si]
	}
	return 0
}

//catGroup is a set of categories treated as one unit by the subset search.
type catGroup struct {
	cats []int
	vec  []float64
	w    float64
}

//scanCategorical searches the best bipartition of the categories of vi present at the node.
//Regression and two-class problems order categories by mean response and scan prefixes, which is exact;
//multi-class problems search all bipartitions, clustering the categories first when there are too many.
func (b *Builder) scanCategorical(vi int, sidx []int) candidate {
	p := b.problem
	best := candidate{vi: vi, quality: -1, defaultDir: -1}

	k := len(p.Schema.CatMaps[vi])
	if k < 2 {
		return best
	}
	width := 1
	if p.Classification {
		width = p.NClasses
	}
	hist := make([]float64, k*width)
	catW := make([]float64, k)
	for _, si := range sidx {
		code := p.Data.CatCode(si, vi)
		w := p.Weights[si]
		if code < 0 || w <= 0 {
			continue
		}
		catW[code] += w
		if p.Classification {
			hist[code*width+p.Classes[si]] += w
		} else {
			hist[code] += w * p.Responses[si]
		}
	}

	groups := make([]catGroup, 0, k)
	for code := 0; code < k; code++ {
		if catW[code] > 0 {
			groups = append(groups, catGroup{cats: []int{code}, vec: hist[code*width : (code+1)*width], w: catW[code]})
		}
	}
	if len(groups) < 2 {
		return best
	}

	var leftGroups []catGroup
	switch {
	case !p.Classification || p.NClasses == 2:
		leftGroups, best.quality = orderedGroupSearch(groups, p.NClasses)
	default:
		if len(groups) > b.params.MaxCategories {
			groups = clusterCategories(groups, b.params.MaxCategories)
			if len(groups) < 2 {
				return best
			}
		}
		leftGroups, best.quality = exhaustiveGroupSearch(groups, p.NClasses)
	}
	if leftGroups == nil {
		best.quality = -1
		return best
	}

	best.subset = make([]uint32, subsetWords(k))
	leftW, totalW := 0.0, 0.0
	for _, g := range groups {
		totalW += g.w
	}
	for _, g := range leftGroups {
		leftW += g.w
		for _, code := range g.cats {
			setBit(best.subset, code)
		}
	}
	best.defaultDir = dirByWeight(leftW, totalW-leftW)
	return best
}

//orderedGroupSearch sorts groups by mean response (or share of class 1) and returns the best prefix.
func orderedGroupSearch(groups []catGroup, nClasses int) ([]catGroup, float64) {
	key := func(g *catGroup) float64 {
		if nClasses == 2 {
			return g.vec[1] / g.w
		}
		return g.vec[0] / g.w
	}
	sort.SliceStable(groups, func(i, j int) bool { return key(&groups[i]) < key(&groups[j]) })

	right := newSideStats(nClasses)
	for i := range groups {
		right.addGroup(&groups[i], 1)
	}
	base := right.score()
	left := newSideStats(nClasses)

	bestQ, bestLen := -1.0, 0
	for i := 0; i < len(groups)-1; i++ {
		left.addGroup(&groups[i], 1)
		right.addGroup(&groups[i], -1)
		if q := left.score() + right.score() - base; q > bestQ {
			bestQ, bestLen = q, i+1
		}
	}
	if bestLen == 0 {
		return nil, -1
	}
	return groups[:bestLen], bestQ
}

//exhaustiveGroupSearch enumerates the 2^(m-1)-1 bipartitions in Gray-code order, so every step
//moves one group between the sides. The last group always stays on the right.
func exhaustiveGroupSearch(groups []catGroup, nClasses int) ([]catGroup, float64) {
	m := len(groups)
	right := newSideStats(nClasses)
	for i := range groups {
		right.addGroup(&groups[i], 1)
	}
	base := right.score()
	left := newSideStats(nClasses)

	bestQ, bestMask := -1.0, uint64(0)
	mask := uint64(0)
	for i := uint64(1); i < uint64(1)<<(m-1); i++ {
		j := bits.TrailingZeros64(i)
		mask ^= 1 << j
		if mask&(1<<j) != 0 {
			left.addGroup(&groups[j], 1)
			right.addGroup(&groups[j], -1)
		} else {
			left.addGroup(&groups[j], -1)
			right.addGroup(&groups[j], 1)
		}
		if q := left.score() + right.score() - base; q > bestQ {
			bestQ, bestMask = q, mask
		}
	}
	if bestMask == 0 {
		return nil, -1
	}

	leftGroups := make([]catGroup, 0, m)
	for j := 0; j < m; j++ {
		if bestMask&(1<<j) != 0 {
			leftGroups = append(leftGroups, groups[j])
		}
	}
	return leftGroups, bestQ
}
