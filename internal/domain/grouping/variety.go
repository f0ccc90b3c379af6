package grouping

// DefaultLookback is how many recent confirmed runs feed the variety penalty.
const DefaultLookback = 10

// PairKey identifies an unordered pair of people. The lexicographically
// smaller id always comes first, so lookups are order-independent.
type PairKey [2]string

// NewPairKey canonicalizes two person ids into a PairKey.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{a, b}
}

// PenaltyTable converts historical co-grouping counts into per-pair penalties:
// penalty = min(count/lookback, 1). Pairs absent from the table cost 0.
type PenaltyTable struct {
	lookback int
	counts   map[PairKey]int
}

// NewPenaltyTable creates an empty table with the given lookback window.
// A non-positive lookback falls back to DefaultLookback.
func NewPenaltyTable(lookback int) *PenaltyTable {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &PenaltyTable{lookback: lookback, counts: make(map[PairKey]int)}
}

// Record counts one historical co-grouping of the pair.
func (t *PenaltyTable) Record(a, b string) {
	if a == b {
		return
	}
	t.counts[NewPairKey(a, b)]++
}

// Penalty returns the pair's penalty in [0,1].
func (t *PenaltyTable) Penalty(a, b string) float64 {
	if t == nil || len(t.counts) == 0 {
		return 0
	}
	count := t.counts[NewPairKey(a, b)]
	if count == 0 {
		return 0
	}
	p := float64(count) / float64(t.lookback)
	if p > 1 {
		return 1
	}
	return p
}

// Len reports how many distinct pairs carry a penalty.
func (t *PenaltyTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.counts)
}
