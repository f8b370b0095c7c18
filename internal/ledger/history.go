package ledger

import (
	"slices"
	"strings"
	"time"

	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models"
)

// monthLayouts are the month labels the balance series is known to use.
var monthLayouts = []string{
	"2006-01",
	"2006-01-02",
	time.RFC3339,
	"2006/01",
	"01/2006",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"Jan 06",
}

func parseMonth(label string) (time.Time, bool) {
	label = strings.TrimSpace(label)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, label); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortByMonth orders points oldest first. Labels that cannot be parsed
// keep their relative order after every parsed one.
func sortByMonth(points []models.BalanceHistoryPoint) {
	type keyed struct {
		point models.BalanceHistoryPoint
		at    time.Time
		ok    bool
	}

	keys := make([]keyed, len(points))
	for i, p := range points {
		at, ok := parseMonth(p.Month)
		keys[i] = keyed{point: p, at: at, ok: ok}
	}

	slices.SortStableFunc(keys, func(a, b keyed) int {
		switch {
		case a.ok && b.ok:
			return a.at.Compare(b.at)
		case a.ok:
			return -1
		case b.ok:
			return 1
		default:
			return 0
		}
	})

	for i, k := range keys {
		points[i] = k.point
	}
}
