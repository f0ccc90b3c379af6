package grouping

import (
	"math/rand"
	"sort"
	"strings"
)

// BalancedTeams deals entries into teamCount near-equal-strength teams.
// Strength is the weighted sum of the balance-field values. When partition
// fields are given, entries are bucketed by category first and the snake
// draft continues across buckets, so every team receives a near-even share
// of each category. A bounded swap refinement then shrinks the spread
// between team averages, never returning a worse assignment than the draft.
func BalancedTeams(entries []Entry, metas []FieldMeta, teamCount int, partitionFields []string, penalties *PenaltyTable, varietyWeight float64, sched Schedule) []Group {
	n := len(entries)
	if teamCount > n {
		teamCount = n
	}
	if n == 0 || teamCount < 1 {
		return nil
	}

	strengths := make([]float64, n)
	for i, e := range entries {
		strengths[i] = weightedStrength(metas, e)
	}

	order := draftOrder(entries, strengths, partitionFields)

	// Snake draft: forward pass 1..K, reverse pass K..1, repeating. The
	// position counter runs across partition buckets.
	assign := make([]int, n)
	for pos, idx := range order {
		assign[idx] = snakeTeam(pos, teamCount)
	}

	assign = refineTeams(strengths, entries, assign, teamCount, penalties, varietyWeight, sched)

	return buildGroups(entries, assign, teamCount, "Team")
}

// draftOrder returns entry indices in deal order: partition buckets by sorted
// label, each bucket sorted descending by strength. Without partition fields
// there is a single bucket.
func draftOrder(entries []Entry, strengths []float64, partitionFields []string) []int {
	buckets := make(map[string][]int)
	for i, e := range entries {
		label := ""
		if len(partitionFields) > 0 {
			labels := make([]string, len(partitionFields))
			for k, fieldID := range partitionFields {
				labels[k] = splitLabel(e.Attr(fieldID))
			}
			label = strings.Join(labels, " + ")
		}
		buckets[label] = append(buckets[label], i)
	}

	labels := make([]string, 0, len(buckets))
	for label := range buckets {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	order := make([]int, 0, len(entries))
	for _, label := range labels {
		idxs := buckets[label]
		sort.SliceStable(idxs, func(a, b int) bool {
			if strengths[idxs[a]] != strengths[idxs[b]] {
				return strengths[idxs[a]] > strengths[idxs[b]]
			}
			return entries[idxs[a]].PersonID < entries[idxs[b]].PersonID
		})
		order = append(order, idxs...)
	}
	return order
}

func snakeTeam(pos, teamCount int) int {
	round := pos / teamCount
	offset := pos % teamCount
	if round%2 == 1 {
		return teamCount - 1 - offset
	}
	return offset
}

// refineTeams proposes swapping members between two teams and keeps changes
// that reduce the cost: the spread between team strength averages plus the
// weighted variety term. The best assignment seen is returned, so refinement
// cannot end worse than the draft.
func refineTeams(strengths []float64, entries []Entry, assign []int, teamCount int, penalties *PenaltyTable, varietyWeight float64, sched Schedule) []int {
	n := len(assign)
	if n < 2 || teamCount < 2 || sched.Iterations <= 0 {
		return assign
	}
	rng := rand.New(rand.NewSource(sched.Seed))

	sums := make([]float64, teamCount)
	sizes := make([]int, teamCount)
	for i, t := range assign {
		sums[t] += strengths[i]
		sizes[t]++
	}

	useVariety := penalties != nil && varietyWeight > 0 && penalties.Len() > 0

	cost := func() float64 {
		c := spread(sums, sizes)
		if useVariety {
			c += varietyWeight * intraPenalty(entries, assign, penalties)
		}
		return c
	}

	current := cost()
	best := current
	bestAssign := append([]int(nil), assign...)

	for iter := 0; iter < sched.Iterations; iter++ {
		i := rng.Intn(n)
		j := rng.Intn(n)
		ti, tj := assign[i], assign[j]
		if ti == tj {
			continue
		}

		sums[ti] += strengths[j] - strengths[i]
		sums[tj] += strengths[i] - strengths[j]
		assign[i], assign[j] = tj, ti

		candidate := cost()
		delta := candidate - current

		if delta < 0 || acceptWorse(rng, delta, temperature(sched, iter)) {
			current = candidate
			if current < best {
				best = current
				copy(bestAssign, assign)
			}
			continue
		}

		// Revert.
		sums[ti] += strengths[i] - strengths[j]
		sums[tj] += strengths[j] - strengths[i]
		assign[i], assign[j] = ti, tj
	}
	return bestAssign
}

func weightedStrength(metas []FieldMeta, e Entry) float64 {
	var sum float64
	for _, meta := range metas {
		if meta.Weight <= 0 {
			continue
		}
		if n, ok := e.Attr(meta.FieldID).Numeric(); ok {
			sum += meta.Weight * n
		}
	}
	return sum
}

// spread is the gap between the strongest and weakest team averages.
func spread(sums []float64, sizes []int) float64 {
	first := true
	var min, max float64
	for t := range sums {
		if sizes[t] == 0 {
			continue
		}
		avg := sums[t] / float64(sizes[t])
		if first {
			min, max = avg, avg
			first = false
			continue
		}
		if avg < min {
			min = avg
		}
		if avg > max {
			max = avg
		}
	}
	return max - min
}

// intraPenalty averages the variety penalty over all intra-team pairs.
func intraPenalty(entries []Entry, assign []int, penalties *PenaltyTable) float64 {
	var total float64
	var pairs int
	for i := 0; i < len(assign); i++ {
		for j := i + 1; j < len(assign); j++ {
			if assign[i] != assign[j] {
				continue
			}
			total += penalties.Penalty(entries[i].PersonID, entries[j].PersonID)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}
