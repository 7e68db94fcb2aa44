package rarity

import (
	"container/heap"

	"github.com/yasirali179/go-trait-rarity/models"
)

// scoreHeap is a min-heap of item scores; the root is always the least rare
// of the retained items, so it can be evicted when a rarer one arrives.
type scoreHeap []models.ItemScore

func (h scoreHeap) Len() int {
	return len(h)
}

func (h scoreHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].URL > h[j].URL
}

func (h scoreHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *scoreHeap) Push(x any) {
	*h = append(*h, x.(models.ItemScore))
}

func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopRarest returns the k highest-scoring items, rarest first. Ties are
// broken by URL so the output is deterministic.
func TopRarest(scores []models.ItemScore, k int) []models.ItemScore {
	if k <= 0 || len(scores) == 0 {
		return nil
	}

	h := &scoreHeap{}
	heap.Init(h)
	for _, score := range scores {
		if h.Len() < k {
			heap.Push(h, score)
			continue
		}
		root := (*h)[0]
		if score.Score > root.Score || (score.Score == root.Score && score.URL < root.URL) {
			heap.Pop(h)
			heap.Push(h, score)
		}
	}

	out := make([]models.ItemScore, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(models.ItemScore)
	}
	return out
}
