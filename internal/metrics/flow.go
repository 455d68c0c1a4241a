package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/flowboard/flowboard/internal/models"
)

const dayFormat = "2006-01-02"

// FlowDay is one calendar day of the cumulative flow series. Created and
// Completed are running cumulative totals.
type FlowDay struct {
	Day        string `json:"day"`
	Created    int    `json:"created"`
	Completed  int    `json:"completed"`
	InProgress int    `json:"inProgress"`
}

// FlowReport is the cumulative flow series plus any integrity anomalies
// found along the way. A negative in-progress count is reported, never
// silently corrected.
type FlowReport struct {
	Days      []FlowDay `json:"days"`
	Anomalies []string  `json:"anomalies,omitempty"`
}

// CumulativeFlow groups creations and completions by calendar day and
// produces running totals from the first event day to the last.
func CumulativeFlow(s *Snapshot) FlowReport {
	createdByDay := map[string]int{}
	completedByDay := map[string]int{}

	for _, ev := range s.Events {
		if ev.Kind == models.EventCreated {
			createdByDay[ev.CreatedAt.Format(dayFormat)]++
		}
	}
	for _, completedAt := range completionTimes(s) {
		completedByDay[completedAt.Format(dayFormat)]++
	}

	first, last, ok := dayRange(createdByDay, completedByDay)
	if !ok {
		return FlowReport{}
	}

	var report FlowReport
	cumCreated, cumCompleted := 0, 0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayFormat)
		cumCreated += createdByDay[key]
		cumCompleted += completedByDay[key]
		inProgress := cumCreated - cumCompleted
		if inProgress < 0 {
			report.Anomalies = append(report.Anomalies,
				fmt.Sprintf("day %s: %d completions exceed %d creations", key, cumCompleted, cumCreated))
		}
		report.Days = append(report.Days, FlowDay{
			Day:        key,
			Created:    cumCreated,
			Completed:  cumCompleted,
			InProgress: inProgress,
		})
	}
	return report
}

func dayRange(sets ...map[string]int) (time.Time, time.Time, bool) {
	var first, last time.Time
	found := false
	for _, set := range sets {
		for key := range set {
			day, err := time.Parse(dayFormat, key)
			if err != nil {
				continue
			}
			if !found || day.Before(first) {
				first = day
			}
			if !found || day.After(last) {
				last = day
			}
			found = true
		}
	}
	return first, last, found
}

// PeriodCount is the number of completions in one period.
type PeriodCount struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// ThroughputReport groups completions by day and by ISO week.
type ThroughputReport struct {
	Daily  []PeriodCount `json:"daily"`
	Weekly []PeriodCount `json:"weekly"`
}

// Throughput counts completed cards per calendar day and per ISO week.
func Throughput(s *Snapshot) ThroughputReport {
	daily := map[string]int{}
	weekly := map[string]int{}
	for _, completedAt := range completionTimes(s) {
		daily[completedAt.Format(dayFormat)]++
		year, week := completedAt.ISOWeek()
		weekly[fmt.Sprintf("%d-W%02d", year, week)]++
	}
	return ThroughputReport{
		Daily:  sortedPeriods(daily),
		Weekly: sortedPeriods(weekly),
	}
}

func sortedPeriods(counts map[string]int) []PeriodCount {
	out := make([]PeriodCount, 0, len(counts))
	for period, count := range counts {
		out = append(out, PeriodCount{Period: period, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// Bottleneck is a column ranked by how long its current residents have
// been sitting in it.
type Bottleneck struct {
	ColumnID          string  `json:"columnId"`
	ColumnName        string  `json:"columnName"`
	CardCount         int     `json:"cardCount"`
	AverageDwellHours float64 `json:"averageDwellHours"`
}

// Bottlenecks ranks columns by the average dwell time of currently
// resident cards, descending, and reports the top three. A column with no
// resident cards is excluded rather than ranked at zero.
func Bottlenecks(s *Snapshot) []Bottleneck {
	entries := currentEntryTimes(s)

	dwell := map[string]time.Duration{}
	count := map[string]int{}
	for _, c := range s.activeCards() {
		entered, ok := entries[c.ID]
		if !ok {
			entered = c.CreatedAt
		}
		d := s.Now.Sub(entered)
		if d < 0 {
			d = 0
		}
		dwell[c.ColumnID] += d
		count[c.ColumnID]++
	}

	names := make(map[string]string, len(s.Columns))
	for _, col := range s.Columns {
		names[col.ID] = col.Name
	}

	out := make([]Bottleneck, 0, len(dwell))
	for columnID, total := range dwell {
		n := count[columnID]
		out = append(out, Bottleneck{
			ColumnID:          columnID,
			ColumnName:        names[columnID],
			CardCount:         n,
			AverageDwellHours: total.Hours() / float64(n),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageDwellHours != out[j].AverageDwellHours {
			return out[i].AverageDwellHours > out[j].AverageDwellHours
		}
		return out[i].ColumnID < out[j].ColumnID
	})
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// currentEntryTimes returns, per card, when it entered its current column.
func currentEntryTimes(s *Snapshot) map[string]time.Time {
	entries := make(map[string]time.Time)
	for _, ev := range s.Events {
		switch ev.Kind {
		case models.EventCreated, models.EventMoved:
			entries[ev.CardID] = ev.CreatedAt
		}
	}
	return entries
}
