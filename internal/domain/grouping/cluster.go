package grouping

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ProjectionThreshold is the entry count above which the clustering engine
// abandons the O(n²) distance matrix for a linear 1-D projection.
const ProjectionThreshold = 1200

// Objective selects what the local search optimizes.
type Objective int

const (
	// ObjectiveSimilarity minimizes average intra-group distance.
	ObjectiveSimilarity Objective = iota
	// ObjectiveDiversity maximizes average intra-group distance.
	ObjectiveDiversity
)

// Schedule parameterizes the simulated-annealing refinement. StartTemp 0
// degrades to pure greedy swap-if-improves, which tests rely on for
// reproducibility.
type Schedule struct {
	Iterations int
	StartTemp  float64
	Seed       int64
}

// DefaultSchedule is the production refinement budget.
func DefaultSchedule() Schedule {
	return Schedule{Iterations: 20000, StartTemp: 0.3, Seed: 1}
}

// ClusterGroups partitions entries into groupCount groups under the given
// objective. Below ProjectionThreshold it builds the full pairwise distance
// matrix and refines an initial assignment by local search; above it, a 1-D
// numeric projection keeps cost linear. Variety penalties, when supplied with
// a positive weight, are added to every pairwise cost on the matrix path; the
// projection path deliberately ignores them (documented approximation).
func ClusterGroups(entries []Entry, metas []FieldMeta, groupCount int, objective Objective, penalties *PenaltyTable, varietyWeight float64, sched Schedule) []Group {
	n := len(entries)
	if groupCount > n {
		groupCount = n
	}
	if n == 0 || groupCount < 1 {
		return nil
	}

	if n > ProjectionThreshold {
		return projectClusters(entries, metas, groupCount, objective)
	}

	costs := pairwiseCosts(entries, metas, penalties, varietyWeight)
	assign := seedAssignment(costs, n, groupCount, objective)
	assign = refineClusters(costs, assign, groupCount, objective, sched)

	return buildGroups(entries, assign, groupCount, "Group")
}

// pairwiseCosts builds the symmetric cost matrix: Gower distance plus the
// weighted variety penalty for every pair.
func pairwiseCosts(entries []Entry, metas []FieldMeta, penalties *PenaltyTable, varietyWeight float64) [][]float64 {
	n := len(entries)
	costs := make([][]float64, n)
	for i := range costs {
		costs[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := Distance(metas, entries[i], entries[j])
			if penalties != nil && varietyWeight > 0 {
				c += varietyWeight * penalties.Penalty(entries[i].PersonID, entries[j].PersonID)
			}
			costs[i][j] = c
			costs[j][i] = c
		}
	}
	return costs
}

// seedAssignment places entries one by one into the group that currently
// scores best for the objective, under a soft size ceiling of ceil(n/g).
func seedAssignment(costs [][]float64, n, groupCount int, objective Objective) []int {
	ceiling := (n + groupCount - 1) / groupCount
	assign := make([]int, n)
	members := make([][]int, groupCount)

	for i := 0; i < n; i++ {
		best := -1
		var bestScore float64
		for g := 0; g < groupCount; g++ {
			if len(members[g]) >= ceiling {
				continue
			}
			score := avgCostTo(costs, i, members[g])
			if best == -1 || better(objective, score, bestScore) {
				best = g
				bestScore = score
			}
		}
		assign[i] = best
		members[best] = append(members[best], i)
	}
	return assign
}

// refineClusters runs the bounded annealing pass: propose swapping two members
// across groups, accept improvements always and regressions with a probability
// that cools to zero over the iteration budget. The best assignment seen wins.
func refineClusters(costs [][]float64, assign []int, groupCount int, objective Objective, sched Schedule) []int {
	n := len(assign)
	if n < 2 || groupCount < 2 || sched.Iterations <= 0 {
		return assign
	}
	rng := rand.New(rand.NewSource(sched.Seed))

	members := membersOf(assign, groupCount)
	pairSums := make([]float64, groupCount)
	for g, ms := range members {
		pairSums[g] = intraPairSum(costs, ms)
	}

	// Track score in objective space so lower is always better.
	current := totalScore(pairSums, members)
	if objective == ObjectiveDiversity {
		current = -current
	}
	best := current
	bestAssign := append([]int(nil), assign...)

	for iter := 0; iter < sched.Iterations; iter++ {
		i := rng.Intn(n)
		j := rng.Intn(n)
		gi, gj := assign[i], assign[j]
		if gi == gj {
			continue
		}

		newSumI := pairSums[gi] - costToGroup(costs, i, members[gi], i) + costToGroup(costs, j, members[gi], i)
		newSumJ := pairSums[gj] - costToGroup(costs, j, members[gj], j) + costToGroup(costs, i, members[gj], j)

		oldScore := groupScore(pairSums[gi], len(members[gi])) + groupScore(pairSums[gj], len(members[gj]))
		newScore := groupScore(newSumI, len(members[gi])) + groupScore(newSumJ, len(members[gj]))

		delta := newScore - oldScore
		if objective == ObjectiveDiversity {
			delta = -delta
		}

		if delta >= 0 && !acceptWorse(rng, delta, temperature(sched, iter)) {
			continue
		}

		swapMembers(members, assign, i, j)
		pairSums[gi] = newSumI
		pairSums[gj] = newSumJ
		current += delta

		if current < best {
			best = current
			copy(bestAssign, assign)
		}
	}
	return bestAssign
}

// projectClusters is the large-input fallback: collapse each entry to one
// representative numeric score, then sort into contiguous runs (similarity)
// or interleave round-robin (diversity). Variety penalties do not apply here.
func projectClusters(entries []Entry, metas []FieldMeta, groupCount int, objective Objective) []Group {
	n := len(entries)
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, n)
	for i, e := range entries {
		scores[i] = scored{idx: i, score: projectionScore(metas, e)}
	}
	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score < scores[b].score
		}
		return entries[scores[a].idx].PersonID < entries[scores[b].idx].PersonID
	})

	assign := make([]int, n)
	if objective == ObjectiveSimilarity {
		chunk := (n + groupCount - 1) / groupCount
		for pos, s := range scores {
			assign[s.idx] = pos / chunk
		}
	} else {
		for pos, s := range scores {
			assign[s.idx] = pos % groupCount
		}
	}
	return buildGroups(entries, assign, groupCount, "Group")
}

// projectionScore collapses an entry to a single number: the weighted sum of
// its normalized numeric field values.
func projectionScore(metas []FieldMeta, e Entry) float64 {
	var score float64
	for _, meta := range metas {
		if meta.Type != FieldNumeric || meta.Weight <= 0 {
			continue
		}
		n, ok := e.Attr(meta.FieldID).Numeric()
		if !ok {
			continue
		}
		if meta.Range != nil && meta.Range.Span() > 0 {
			n = (n - meta.Range.Min) / meta.Range.Span()
		}
		score += meta.Weight * n
	}
	return score
}

func buildGroups(entries []Entry, assign []int, groupCount int, prefix string) []Group {
	groups := make([]Group, groupCount)
	for g := range groups {
		groups[g].Name = fmt.Sprintf("%s %d", prefix, g+1)
	}
	for i, g := range assign {
		groups[g].MemberIDs = append(groups[g].MemberIDs, entries[i].PersonID)
	}
	return groups
}

func membersOf(assign []int, groupCount int) [][]int {
	members := make([][]int, groupCount)
	for i, g := range assign {
		members[g] = append(members[g], i)
	}
	return members
}

func intraPairSum(costs [][]float64, members []int) float64 {
	var sum float64
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			sum += costs[members[a]][members[b]]
		}
	}
	return sum
}

// costToGroup sums costs from x to every group member except the excluded one.
func costToGroup(costs [][]float64, x int, members []int, excluding int) float64 {
	var sum float64
	for _, m := range members {
		if m == excluding || m == x {
			continue
		}
		sum += costs[x][m]
	}
	return sum
}

func avgCostTo(costs [][]float64, x int, members []int) float64 {
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range members {
		sum += costs[x][m]
	}
	return sum / float64(len(members))
}

// groupScore is the average intra-group pairwise cost; groups with fewer than
// two members score 0.
func groupScore(pairSum float64, size int) float64 {
	if size < 2 {
		return 0
	}
	return pairSum / float64(size*(size-1)/2)
}

func totalScore(pairSums []float64, members [][]int) float64 {
	var total float64
	for g, ms := range members {
		total += groupScore(pairSums[g], len(ms))
	}
	return total
}

func better(objective Objective, candidate, incumbent float64) bool {
	if objective == ObjectiveDiversity {
		return candidate > incumbent
	}
	return candidate < incumbent
}

func temperature(sched Schedule, iter int) float64 {
	if sched.StartTemp <= 0 || sched.Iterations <= 0 {
		return 0
	}
	return sched.StartTemp * (1 - float64(iter)/float64(sched.Iterations))
}

func acceptWorse(rng *rand.Rand, delta, temp float64) bool {
	if temp <= 0 || delta <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-delta/temp)
}

func swapMembers(members [][]int, assign []int, i, j int) {
	gi, gj := assign[i], assign[j]
	replace(members[gi], i, j)
	replace(members[gj], j, i)
	assign[i], assign[j] = gj, gi
}

func replace(members []int, old, new int) {
	for k, m := range members {
		if m == old {
			members[k] = new
			return
		}
	}
}
