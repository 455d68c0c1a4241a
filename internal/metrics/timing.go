package metrics

import (
	"sort"
	"time"

	"github.com/flowboard/flowboard/internal/models"
)

// CardLeadTime is the lead time of one completed card.
type CardLeadTime struct {
	CardID string `json:"cardId"`
	Hours  int    `json:"hours"`
}

// LeadTimeReport covers every card that has entered a terminal column.
type LeadTimeReport struct {
	Cards        []CardLeadTime `json:"cards"`
	AverageHours float64        `json:"averageHours"`
}

// LeadTimes computes lead time (creation to first entry into a terminal
// column) in whole hours, floor-rounded and clamped to zero.
func LeadTimes(s *Snapshot) LeadTimeReport {
	completions := completionTimes(s)

	created := make(map[string]time.Time)
	for _, ev := range s.Events {
		if ev.Kind == models.EventCreated {
			created[ev.CardID] = ev.CreatedAt
		}
	}

	var report LeadTimeReport
	var totalHours int
	ids := make([]string, 0, len(completions))
	for id := range completions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		start, ok := created[id]
		if !ok {
			continue
		}
		hours := int(completions[id].Sub(start).Hours())
		if hours < 0 {
			hours = 0
		}
		report.Cards = append(report.Cards, CardLeadTime{CardID: id, Hours: hours})
		totalHours += hours
	}
	if len(report.Cards) > 0 {
		report.AverageHours = float64(totalHours) / float64(len(report.Cards))
	}
	return report
}

// completionTimes returns, per card, the timestamp of its first move into a
// terminal column.
func completionTimes(s *Snapshot) map[string]time.Time {
	terminal := s.terminalColumns()
	done := make(map[string]time.Time)
	for _, ev := range s.Events {
		if ev.Kind != models.EventMoved || !terminal[ev.ToColumnID] {
			continue
		}
		if _, seen := done[ev.CardID]; !seen {
			done[ev.CardID] = ev.CreatedAt
		}
	}
	return done
}

// CardColumnTime is the time one card spent in one column.
type CardColumnTime struct {
	CardID   string  `json:"cardId"`
	ColumnID string  `json:"columnId"`
	Hours    float64 `json:"hours"`
}

// ColumnCycleTime aggregates dwell time for one column.
type ColumnCycleTime struct {
	ColumnID     string  `json:"columnId"`
	TotalHours   float64 `json:"totalHours"`
	CardCount    int     `json:"cardCount"`
	AverageHours float64 `json:"averageHours"`
}

// CycleTimeReport is the per-column and per-card cycle time breakdown.
type CycleTimeReport struct {
	Columns []ColumnCycleTime `json:"columns"`
	PerCard []CardColumnTime  `json:"perCard"`
}

// CycleTimes accumulates, per column, the time between each card entering
// and leaving it. A card still resident in a column accrues up to the
// snapshot time.
func CycleTimes(s *Snapshot) CycleTimeReport {
	type stay struct {
		cardID   string
		columnID string
		dur      time.Duration
	}
	var stays []stay

	// Fold each card's event log into column residency intervals.
	byCard := eventsByCard(s.Events)
	removed := make(map[string]bool)
	for _, c := range s.Cards {
		if c.Status == models.CardRemoved {
			removed[c.ID] = true
		}
	}

	cardIDs := make([]string, 0, len(byCard))
	for id := range byCard {
		cardIDs = append(cardIDs, id)
	}
	sort.Strings(cardIDs)

	for _, cardID := range cardIDs {
		var currentColumn string
		var entered time.Time
		for _, ev := range byCard[cardID] {
			switch ev.Kind {
			case models.EventCreated:
				currentColumn = ev.ToColumnID
				entered = ev.CreatedAt
			case models.EventMoved:
				if currentColumn != "" {
					stays = append(stays, stay{cardID, currentColumn, ev.CreatedAt.Sub(entered)})
				}
				currentColumn = ev.ToColumnID
				entered = ev.CreatedAt
			}
		}
		// Open interval: still in a column at snapshot time.
		if currentColumn != "" && !removed[cardID] {
			stays = append(stays, stay{cardID, currentColumn, s.Now.Sub(entered)})
		}
	}

	perCard := make([]CardColumnTime, 0, len(stays))
	totals := map[string]time.Duration{}
	observed := map[string]map[string]bool{}
	for _, st := range stays {
		if st.dur < 0 {
			st.dur = 0
		}
		perCard = append(perCard, CardColumnTime{
			CardID:   st.cardID,
			ColumnID: st.columnID,
			Hours:    st.dur.Hours(),
		})
		totals[st.columnID] += st.dur
		if observed[st.columnID] == nil {
			observed[st.columnID] = map[string]bool{}
		}
		observed[st.columnID][st.cardID] = true
	}

	columns := make([]ColumnCycleTime, 0, len(totals))
	for _, col := range s.Columns {
		count := len(observed[col.ID])
		entry := ColumnCycleTime{
			ColumnID:   col.ID,
			TotalHours: totals[col.ID].Hours(),
			CardCount:  count,
		}
		if count > 0 {
			entry.AverageHours = entry.TotalHours / float64(count)
		}
		columns = append(columns, entry)
	}

	return CycleTimeReport{Columns: columns, PerCard: perCard}
}

func eventsByCard(events []models.CardEvent) map[string][]models.CardEvent {
	byCard := make(map[string][]models.CardEvent)
	for _, ev := range events {
		byCard[ev.CardID] = append(byCard[ev.CardID], ev)
	}
	return byCard
}
