package history

import (
	"context"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/formsense/repkit/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then repIndex ASC (deterministic). The BST
// comparator treats "less" as ranking earlier, so in-order traversal walks
// the history from best rep to worst.

// scoreScale controls fixed-point scaling from float64. Scores live in
// [0, 100], so six decimal places are plenty.
const scoreScale = 1_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	return scoreFP(math.Round(x * scoreScale))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

// record keeps everything about a rep that is not part of the treap key.
type record struct {
	score    scoreFP
	duration time.Duration
	startTS  time.Time
	faults   int
}

// treap node
type node struct {
	repIndex int
	score    scoreFP
	prio     uint64
	left     *node
	right    *node
	size     int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aIdx) ranks earlier than (bScore, bIdx).
func less(aScore scoreFP, aIdx int, bScore scoreFP, bIdx int) bool {
	if aScore != bScore {
		return aScore > bScore // higher score ranks earlier
	}
	return aIdx < bIdx // tie-breaker by rep order
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// scoreToPriority keeps higher scores near the treap root.
func scoreToPriority(score scoreFP) uint64 {
	const offset = uint64(1) << 63
	return uint64(score) + offset
}

func insert(n *node, repIndex int, score scoreFP) *node {
	if n == nil {
		return &node{repIndex: repIndex, score: score, prio: scoreToPriority(score), size: 1}
	}
	if less(score, repIndex, n.score, n.repIndex) {
		n.left = insert(n.left, repIndex, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, repIndex, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, repIndex int, score scoreFP) *node {
	if n == nil {
		return nil
	}
	if score == n.score && repIndex == n.repIndex {
		// Merge children by rotating the higher priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, repIndex, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, repIndex, score)
		}
	} else if less(score, repIndex, n.score, n.repIndex) {
		n.left = deleteNode(n.left, repIndex, score)
	} else {
		n.right = deleteNode(n.right, repIndex, score)
	}
	fix(n)
	return n
}

// rankOf returns the 1-based rank of (score, repIndex) using subtree sizes.
func rankOf(n *node, score scoreFP, repIndex int) int {
	rank := 1
	for n != nil {
		if score == n.score && repIndex == n.repIndex {
			return rank + nsize(n.left)
		}
		if less(score, repIndex, n.score, n.repIndex) {
			n = n.left
		} else {
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, records map[int]record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, records, out)
	if len(*out) < limit {
		if rec, exists := records[n.repIndex]; exists {
			*out = append(*out, entryFor(n.repIndex, rec, len(*out)+1))
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

func entryFor(repIndex int, rec record, rank int) Entry {
	return Entry{
		Rank:     rank,
		RepIndex: repIndex,
		Score:    toFloat(rec.score),
		Duration: rec.duration,
		StartTS:  rec.startTS,
		Faults:   rec.faults,
	}
}

// TreapStore implements Store with expected O(log n) writes and ranked reads.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	byIndex map[int]record
}

// NewTreapStore constructs an empty rep history store.
func NewTreapStore() *TreapStore {
	return &TreapStore{
		byIndex: make(map[int]record),
	}
}

// Record implements Store.Record.
func (s *TreapStore) Record(ctx context.Context, e Entry) error {
	ns := toFixedPoint(e.Score)

	s.mu.Lock()
	if old, ok := s.byIndex[e.RepIndex]; ok {
		s.root = deleteNode(s.root, e.RepIndex, old.score)
	}
	s.byIndex[e.RepIndex] = record{
		score:    ns,
		duration: e.Duration,
		startTS:  e.StartTS,
		faults:   e.Faults,
	}
	s.root = insert(s.root, e.RepIndex, ns)
	count := len(s.byIndex)
	s.mu.Unlock()

	metrics.UpdateHistoryReps(count)
	return nil
}

// ByIndex implements Store.ByIndex.
func (s *TreapStore) ByIndex(ctx context.Context, repIndex int) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byIndex[repIndex]
	if !ok {
		metrics.RecordErrorByComponent("history", "not_found")
		return Entry{}, ErrNotFound
	}
	return entryFor(repIndex, rec, rankOf(s.root, rec.score, repIndex)), nil
}

// Best implements Store.Best.
func (s *TreapStore) Best(ctx context.Context) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.root
	if n == nil {
		return Entry{}, ErrEmpty
	}
	for n.left != nil {
		n = n.left
	}
	return entryFor(n.repIndex, s.byIndex[n.repIndex], 1), nil
}

// TopN implements Store.TopN.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, s.byIndex, &out)
	return out, nil
}

// Count implements Store.Count.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byIndex)
}

// Stats implements Store.Stats.
func (s *TreapStore) Stats(ctx context.Context) (SessionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.byIndex) == 0 {
		return SessionStats{}, ErrEmpty
	}

	scores := make([]float64, 0, len(s.byIndex))
	var totalDuration time.Duration
	var totalFaults int
	for _, rec := range s.byIndex {
		scores = append(scores, toFloat(rec.score))
		totalDuration += rec.duration
		totalFaults += rec.faults
	}

	best := s.root
	for best.left != nil {
		best = best.left
	}
	worst := s.root
	for worst.right != nil {
		worst = worst.right
	}

	stats := SessionStats{
		Reps:          len(scores),
		MeanScore:     stat.Mean(scores, nil),
		MeanDuration:  totalDuration / time.Duration(len(scores)),
		TotalFaults:   totalFaults,
		BestRepIndex:  best.repIndex,
		WorstRepIndex: worst.repIndex,
	}
	if len(scores) > 1 {
		stats.ScoreStdDev = stat.StdDev(scores, nil)
	}
	return stats, nil
}
