// Package metrics computes flow analytics from a board snapshot: card
// distribution, lead and cycle time, cumulative flow, throughput and
// bottleneck ranking. Everything here is a pure function over the
// append-only history log; the package performs no writes.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/flowboard/flowboard/internal/models"
)

// Snapshot is a consistent point-in-time view of one board. Producers must
// read all four record sets inside a single transaction so the snapshot
// never interleaves with an in-flight mutation.
type Snapshot struct {
	Board   models.Board
	Columns []models.Column
	Cards   []models.Card
	Events  []models.CardEvent
	Now     time.Time
}

// activeCards returns the snapshot's cards that have not been removed.
func (s *Snapshot) activeCards() []models.Card {
	out := make([]models.Card, 0, len(s.Cards))
	for _, c := range s.Cards {
		if c.Status == models.CardActive {
			out = append(out, c)
		}
	}
	return out
}

// terminalColumns returns the set of done-like column IDs.
func (s *Snapshot) terminalColumns() map[string]bool {
	terminal := make(map[string]bool)
	for _, col := range s.Columns {
		if col.IsTerminal {
			terminal[col.ID] = true
		}
	}
	return terminal
}

// Bucket is one slice of a distribution.
type Bucket struct {
	Key     string `json:"key"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// DistributionReport counts cards per column, assignee, priority and label.
// Percentages are integer-rounded; buckets may not sum to exactly 100.
type DistributionReport struct {
	Total      int      `json:"total"`
	ByColumn   []Bucket `json:"byColumn"`
	ByAssignee []Bucket `json:"byAssignee"`
	ByPriority []Bucket `json:"byPriority"`
	ByLabel    []Bucket `json:"byLabel"`
}

// Distribution computes the card distribution over active cards.
func Distribution(s *Snapshot) DistributionReport {
	cards := s.activeCards()
	total := len(cards)

	byColumn := map[string]int{}
	byAssignee := map[string]int{}
	byPriority := map[string]int{}
	byLabel := map[string]int{}

	for _, c := range cards {
		byColumn[c.ColumnID]++
		if c.Assignee != "" {
			byAssignee[c.Assignee]++
		}
		byPriority[string(c.Priority)]++
		for _, l := range c.Labels {
			byLabel[l]++
		}
	}

	return DistributionReport{
		Total:      total,
		ByColumn:   buckets(byColumn, total),
		ByAssignee: buckets(byAssignee, total),
		ByPriority: buckets(byPriority, total),
		ByLabel:    buckets(byLabel, total),
	}
}

func buckets(counts map[string]int, total int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for key, count := range counts {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(count) * 100 / float64(total)))
		}
		out = append(out, Bucket{Key: key, Count: count, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
