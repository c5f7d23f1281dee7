package optimization

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/domain"
	"github.com/aristath/portfin/pkg/formulas"
)

// Linkage selects how the distance between two clusters is measured.
type Linkage string

const (
	LinkageSingle   Linkage = "single"
	LinkageComplete Linkage = "complete"
	LinkageAverage  Linkage = "average"
)

// Valid reports whether the linkage is known.
func (l Linkage) Valid() bool {
	switch l {
	case LinkageSingle, LinkageComplete, LinkageAverage:
		return true
	}
	return false
}

// HierarchicalRiskParity allocates by clustering assets on return correlation
// and splitting capital inversely to cluster risk. Expected returns are ignored.
type HierarchicalRiskParity struct {
	linkage Linkage
	log     zerolog.Logger
}

// NewHierarchicalRiskParity creates an HRP optimizer. An empty linkage means single.
func NewHierarchicalRiskParity(linkage Linkage, log zerolog.Logger) *HierarchicalRiskParity {
	if linkage == "" {
		linkage = LinkageSingle
	}
	return &HierarchicalRiskParity{
		linkage: linkage,
		log:     log.With().Str("component", "hrp_optimizer").Logger(),
	}
}

// Name implements Optimizer.
func (h *HierarchicalRiskParity) Name() string {
	return string(KindHierarchical)
}

type hrpNode struct {
	left, right *hrpNode
	members     []int
	// lowest member index; members are in asset identifier order so this breaks ties by identifier
	first int
}

// Optimize implements Optimizer.
//
// Steps: correlation from covariance, distance d = sqrt(2(1-ρ)), agglomerative
// clustering, quasi-diagonal leaf order, recursive bisection with inverse-variance
// cluster variance. When a weight falls below the floor the smallest such asset
// is dropped and the allocation is recomputed over the rest.
func (h *HierarchicalRiskParity) Optimize(est *Estimate, c Constraints) (domain.Weights, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cov, err := validateEstimate(est, false)
	if err != nil {
		return nil, err
	}

	assets, cov := sortedByAsset(est.Assets, cov)

	active := make([]int, len(assets))
	for i := range active {
		active[i] = i
	}

	for {
		x, err := h.allocate(submatrix(cov, active))
		if err != nil {
			return nil, err
		}

		drop := -1
		for k, v := range x {
			if v < c.MinWeight && (drop < 0 || v <= x[drop]) {
				drop = k
			}
		}
		if drop < 0 || len(active) == 1 {
			w := make(domain.Weights, len(active))
			for k, idx := range active {
				w[assets[idx]] = x[k]
			}
			return w, w.Validate(c.MinWeight)
		}

		h.log.Debug().
			Str("asset", assets[active[drop]]).
			Float64("weight", x[drop]).
			Float64("min_weight", c.MinWeight).
			Msg("Dropping asset below floor")
		active = append(active[:drop:drop], active[drop+1:]...)
	}
}

// allocate runs one HRP pass and returns weights aligned with cov.
func (h *HierarchicalRiskParity) allocate(cov [][]float64) ([]float64, error) {
	n := len(cov)
	if n == 1 {
		return []float64{1}, nil
	}

	corr, err := formulas.CorrelationMatrixFromCovariance(cov)
	if err != nil {
		return nil, fmt.Errorf("correlation from covariance: %w", err)
	}
	dist := formulas.CorrelationToDistance(corr)

	order := leafOrder(h.cluster(dist))
	if len(order) != n {
		return nil, fmt.Errorf("invalid HRP order length %d", len(order))
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = 1
	}
	bisect(x, cov, order)

	var sum float64
	for _, v := range x {
		sum += v
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("invalid HRP weight sum: %v", sum)
	}
	for i := range x {
		x[i] /= sum
	}
	return x, nil
}

// cluster merges the closest pair until one tree remains. Equal distances
// resolve to the pair with the lowest (first, second) member indices.
func (h *HierarchicalRiskParity) cluster(dist [][]float64) *hrpNode {
	nodes := make([]*hrpNode, len(dist))
	for i := range nodes {
		nodes[i] = &hrpNode{members: []int{i}, first: i}
	}

	for len(nodes) > 1 {
		bi, bj := 0, 1
		best := h.linkageDistance(dist, nodes[0], nodes[1])
		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				d := h.linkageDistance(dist, nodes[i], nodes[j])
				if d < best || (d == best && pairBefore(nodes[i], nodes[j], nodes[bi], nodes[bj])) {
					best, bi, bj = d, i, j
				}
			}
		}

		left, right := nodes[bi], nodes[bj]
		if right.first < left.first {
			left, right = right, left
		}
		merged := &hrpNode{
			left:    left,
			right:   right,
			members: append(append([]int(nil), left.members...), right.members...),
			first:   left.first,
		}

		rest := nodes[:0:0]
		for k, node := range nodes {
			if k != bi && k != bj {
				rest = append(rest, node)
			}
		}
		nodes = append(rest, merged)
	}
	return nodes[0]
}

func pairBefore(a1, b1, a2, b2 *hrpNode) bool {
	lo1, hi1 := minMax(a1.first, b1.first)
	lo2, hi2 := minMax(a2.first, b2.first)
	if lo1 != lo2 {
		return lo1 < lo2
	}
	return hi1 < hi2
}

func minMax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}

func (h *HierarchicalRiskParity) linkageDistance(dist [][]float64, a, b *hrpNode) float64 {
	var out float64
	switch h.linkage {
	case LinkageComplete:
		for _, i := range a.members {
			for _, j := range b.members {
				out = math.Max(out, dist[i][j])
			}
		}
	case LinkageAverage:
		for _, i := range a.members {
			for _, j := range b.members {
				out += dist[i][j]
			}
		}
		out /= float64(len(a.members) * len(b.members))
	default:
		out = math.Inf(1)
		for _, i := range a.members {
			for _, j := range b.members {
				out = math.Min(out, dist[i][j])
			}
		}
	}
	return out
}

func leafOrder(node *hrpNode) []int {
	if node.left == nil {
		return []int{node.members[0]}
	}
	return append(leafOrder(node.left), leafOrder(node.right)...)
}

// bisect splits order in halves and scales each half by the other's share of cluster variance.
func bisect(x []float64, cov [][]float64, order []int) {
	if len(order) < 2 {
		return
	}
	left, right := order[:len(order)/2], order[len(order)/2:]

	vl := clusterVariance(cov, left)
	vr := clusterVariance(cov, right)
	alpha := 0.5
	if vl+vr > 0 {
		alpha = 1 - vl/(vl+vr)
	}

	for _, i := range left {
		x[i] *= alpha
	}
	for _, i := range right {
		x[i] *= 1 - alpha
	}
	bisect(x, cov, left)
	bisect(x, cov, right)
}

// clusterVariance is the variance of the inverse-variance portfolio over members.
func clusterVariance(cov [][]float64, members []int) float64 {
	variances := make([]float64, len(members))
	for k, i := range members {
		variances[k] = cov[i][i]
	}
	ivp := formulas.InverseVarianceWeights(variances)

	var v float64
	for a, i := range members {
		for b, j := range members {
			v += ivp[a] * cov[i][j] * ivp[b]
		}
	}
	return math.Max(v, 0)
}

// sortedByAsset reorders assets and the covariance rows/columns by identifier.
func sortedByAsset(assets []string, cov [][]float64) ([]string, [][]float64) {
	idx := make([]int, len(assets))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return assets[idx[a]] < assets[idx[b]] })

	outAssets := make([]string, len(assets))
	for k, i := range idx {
		outAssets[k] = assets[i]
	}
	return outAssets, submatrix(cov, idx)
}

func submatrix(m [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for a, i := range idx {
		out[a] = make([]float64, len(idx))
		for b, j := range idx {
			out[a][b] = m[i][j]
		}
	}
	return out
}
