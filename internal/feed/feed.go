package feed

import (
	"sort"
	"time"

	"github.com/vlaradar/vlaradar/internal/models"
)

// PeriodGroup is one week of items in the rendered feed.
type PeriodGroup struct {
	Label string        `json:"label"`
	Start time.Time     `json:"start"`
	Items []models.Item `json:"items"`
}

// WeekStart returns the Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -daysSinceMonday)
}

// GroupByPeriod buckets snapshot items into weekly periods, most recent
// period first. Within a period, items keep snapshot order: snapshots in
// the order given, items in their snapshot order. An item without its own
// timestamp falls back to the snapshot's run date.
func GroupByPeriod(snapshots []models.Snapshot) []PeriodGroup {
	byStart := make(map[time.Time]*PeriodGroup)

	for _, snap := range snapshots {
		runDate, runDateErr := time.Parse(models.RunDateLayout, snap.RunDate)

		for _, item := range snap.Items {
			bucketTime := item.BucketTime()
			if bucketTime.IsZero() {
				if runDateErr != nil {
					continue
				}
				bucketTime = runDate
			}

			start := WeekStart(bucketTime)
			group, ok := byStart[start]
			if !ok {
				group = &PeriodGroup{
					Label: start.Format(models.RunDateLayout),
					Start: start,
				}
				byStart[start] = group
			}
			group.Items = append(group.Items, item)
		}
	}

	groups := make([]PeriodGroup, 0, len(byStart))
	for _, g := range byStart {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Start.After(groups[j].Start)
	})

	return groups
}
