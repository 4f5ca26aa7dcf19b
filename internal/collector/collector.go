// Package collector implements the bounded per-type retention of
// spec.md §4.9: at most K discrepancies are kept per type, ranked by
// |cost_difference|, while running count and cost totals keep
// accumulating over every offer regardless of retention.
package collector

import (
	"container/heap"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
)

// DefaultMaxPerType bounds in-memory retention per discrepancy type
// when a Collector is constructed with New(0). Totals reported in the
// summary are exact even when a type's exemplar list is truncated to
// this many rows.
const DefaultMaxPerType = 1000

// Collector is a Sink (see internal/classifier; the engine also offers
// it internal/hungcall's exemplars) that retains the top maxPerType discrepancies per type by
// |cost_difference|, while tracking exact running counts and cost
// sums independent of what gets evicted.
type Collector struct {
	maxPerType int
	heaps      map[models.DiscrepancyType]*boundedHeap
	counts     map[models.DiscrepancyType]int64
	sums       map[models.DiscrepancyType]decimal.Decimal
}

// New builds a Collector retaining up to maxPerType exemplars per
// discrepancy type. maxPerType <= 0 falls back to DefaultMaxPerType.
func New(maxPerType int) *Collector {
	if maxPerType <= 0 {
		maxPerType = DefaultMaxPerType
	}
	return &Collector{
		maxPerType: maxPerType,
		heaps:      make(map[models.DiscrepancyType]*boundedHeap),
		counts:     make(map[models.DiscrepancyType]int64),
		sums:       make(map[models.DiscrepancyType]decimal.Decimal),
	}
}

// Offer records one discrepancy. It is always counted toward Count
// and CostSum for its type; it is retained as an exemplar only if it
// ranks among the top maxPerType by |cost_difference| seen so far.
func (c *Collector) Offer(d models.Discrepancy) {
	c.counts[d.Type]++
	c.sums[d.Type] = c.sums[d.Type].Add(d.CostDifference)

	h, ok := c.heaps[d.Type]
	if !ok {
		h = &boundedHeap{}
		heap.Init(h)
		c.heaps[d.Type] = h
	}

	rank := d.CostDifference.Abs()
	if h.Len() < c.maxPerType {
		heap.Push(h, rankedDiscrepancy{d: d, rank: rank})
		return
	}
	if rank.GreaterThan((*h)[0].rank) {
		(*h)[0] = rankedDiscrepancy{d: d, rank: rank}
		heap.Fix(h, 0)
	}
}

// Count returns the exact number of discrepancies offered for type t.
func (c *Collector) Count(t models.DiscrepancyType) int64 {
	return c.counts[t]
}

// CostSum returns the exact signed sum of cost_difference across every
// discrepancy offered for type t, independent of retention.
func (c *Collector) CostSum(t models.DiscrepancyType) decimal.Decimal {
	if s, ok := c.sums[t]; ok {
		return s
	}
	return decimal.Zero
}

// TotalOffered returns the exact count across all types.
func (c *Collector) TotalOffered() int64 {
	var total int64
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Readout returns the retained exemplars in final order: grouped by
// models.TypeOrder, then by |cost_difference| descending within a
// type (spec.md §4.9). hasMore reports whether any type's retained
// count was capped below its true offered count.
func (c *Collector) Readout() (rows []models.Discrepancy, hasMore bool) {
	for _, t := range models.TypeOrder {
		h, ok := c.heaps[t]
		if !ok {
			continue
		}
		items := append([]rankedDiscrepancy(nil), (*h)...)
		sort.Slice(items, func(i, j int) bool {
			return items[i].rank.GreaterThan(items[j].rank)
		})
		for _, it := range items {
			rows = append(rows, it.d)
		}
		if int64(len(items)) < c.counts[t] {
			hasMore = true
		}
	}
	return rows, hasMore
}

type rankedDiscrepancy struct {
	d    models.Discrepancy
	rank decimal.Decimal
}

// boundedHeap is a min-heap on rank, so the smallest-magnitude kept
// exemplar is always at the root and is the first candidate evicted
// when a larger one arrives.
type boundedHeap []rankedDiscrepancy

func (h boundedHeap) Len() int            { return len(h) }
func (h boundedHeap) Less(i, j int) bool  { return h[i].rank.LessThan(h[j].rank) }
func (h boundedHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *boundedHeap) Push(x interface{}) { *h = append(*h, x.(rankedDiscrepancy)) }
func (h *boundedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
