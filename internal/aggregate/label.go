package aggregate

import (
	"time"

	"mailintel/internal/model"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"

	longDateLayout = "January 2, 2006"
)

// FormatDateLabel compares calendar days in now's location.
func FormatDateLabel(date, now time.Time) string {
	loc := now.Location()
	d := date.In(loc)

	if sameDay(d, now) {
		return LabelToday
	}
	if sameDay(d, now.AddDate(0, 0, -1)) {
		return LabelYesterday
	}
	return d.Format(longDateLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// BucketByDateLabel keeps labels in first-seen order. Groups sharing a
// label land in the same section even when not adjacent.
func BucketByDateLabel(groups []model.ConversationGroup, now time.Time) []model.DateSection {
	sections := make([]model.DateSection, 0)
	index := make(map[string]int)
	for _, g := range groups {
		label := FormatDateLabel(g.Date, now)
		i, ok := index[label]
		if !ok {
			i = len(sections)
			index[label] = i
			sections = append(sections, model.DateSection{Label: label})
		}
		sections[i].Groups = append(sections[i].Groups, g)
	}
	return sections
}
