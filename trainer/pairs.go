package trainer

import (
	"bytes"
	"cmp"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"
)

// pair is an adjacent (left, right) token ID pair in the token sequence.
type pair struct {
	left, right int
}

// countPairs returns the frequency of every distinct adjacent token pair.
// Pairs that never co-occur are absent from the result.
func countPairs(ids []int) map[pair]int {
	freqs := make(map[pair]int)
	for i := 0; i+1 < len(ids); i++ {
		freqs[pair{ids[i], ids[i+1]}]++
	}

	return freqs
}

// candidate is a pair plus the byte sequences backing it, ordered for
// selection.
type candidate struct {
	pair  pair
	count int
	left  []byte
	right []byte
}

// selectPair returns the most frequent pair. Ties are broken by the
// lexicographically greatest underlying byte sequences, left compared
// first, so selection is deterministic regardless of map iteration order.
// ok is false when freqs is empty, the terminal condition for training.
func selectPair(freqs map[pair]int, vocab *Vocabulary) (p pair, count int, ok bool) {
	if len(freqs) == 0 {
		return pair{}, 0, false
	}

	candidates := heap.NewWith(func(a, b *candidate) int {
		if a.count != b.count {
			return cmp.Compare(b.count, a.count)
		}

		if c := bytes.Compare(b.left, a.left); c != 0 {
			return c
		}

		return bytes.Compare(b.right, a.right)
	})

	for p, n := range freqs {
		candidates.Push(&candidate{
			pair:  p,
			count: n,
			left:  vocab.Bytes(p.left),
			right: vocab.Bytes(p.right),
		})
	}

	best, _ := candidates.Pop()
	return best.pair, best.count, true
}

// applyMerge rewrites ids in a single left-to-right pass, replacing every
// non-overlapping occurrence of p with id. A consumed pair is never
// re-matched against itself: after a replacement the scan advances past
// both elements. Returns a new sequence; the input is not mutated.
func applyMerge(ids []int, p pair, id int) []int {
	out := make([]int, 0, len(ids))
	for i := 0; i < len(ids); {
		if i+1 < len(ids) && ids[i] == p.left && ids[i+1] == p.right {
			out = append(out, id)
			i += 2
			continue
		}

		out = append(out, ids[i])
		i++
	}

	return out
}
