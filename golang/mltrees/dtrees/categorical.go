package dtrees

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

//maxClusterIterations caps the Lloyd iterations of category clustering.
const maxClusterIterations = 10

//clusterCategories merges category groups with similar class distributions into at most k groups.
//It runs weighted k-means on the class-probability vectors of the groups, seeded with the k heaviest
//groups, so the result depends only on the input.
func clusterCategories(groups []catGroup, k int) []catGroup {
	m := len(groups)
	if m <= k {
		return groups
	}
	width := len(groups[0].vec)

	points := make([][]float64, m)
	for i, g := range groups {
		points[i] = make([]float64, width)
		floats.ScaleTo(points[i], 1/g.w, g.vec)
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return groups[order[i]].w > groups[order[j]].w })

	centroids := make([][]float64, k)
	for c := range centroids {
		centroids[c] = append([]float64(nil), points[order[c]]...)
	}

	assignments := make([]int, m)
	for i := range assignments {
		assignments[i] = -1
	}
	clusterW := make([]float64, k)

	for iter := 0; iter < maxClusterIterations; iter++ {
		changed := false
		for i, pt := range points {
			bestCluster, minDist := 0, floats.Distance(pt, centroids[0], 2)
			for c := 1; c < k; c++ {
				if d := floats.Distance(pt, centroids[c], 2); d < minDist {
					bestCluster, minDist = c, d
				}
			}
			if assignments[i] != bestCluster {
				assignments[i] = bestCluster
				changed = true
			}
		}
		if !changed {
			break
		}

		for c := range clusterW {
			clusterW[c] = 0
		}
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, width)
		}
		for i, pt := range points {
			c := assignments[i]
			floats.AddScaled(sums[c], groups[i].w, pt)
			clusterW[c] += groups[i].w
		}
		for c := range centroids {
			// an empty cluster keeps its previous centroid
			if clusterW[c] > 0 {
				floats.ScaleTo(centroids[c], 1/clusterW[c], sums[c])
			}
		}
	}

	merged := make([]catGroup, k)
	for c := range merged {
		merged[c].vec = make([]float64, width)
	}
	for i, g := range groups {
		c := assignments[i]
		merged[c].cats = append(merged[c].cats, g.cats...)
		floats.Add(merged[c].vec, g.vec)
		merged[c].w += g.w
	}

	out := merged[:0]
	for _, g := range merged {
		if g.w > 0 {
			out = append(out, g)
		}
	}
	return out
}
