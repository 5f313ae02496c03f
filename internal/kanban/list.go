package kanban

import (
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/pipeline-crm/internal/model"
)

// Criteria narrows the client table.  Zero values match everything.
type Criteria struct {
	Search   string
	Stage    model.Stage
	Assignee string // creator user id
	Year     int
	Month    time.Month // only read when Year is set; 0 means any month
}

// Filter keeps the clients matching every set criterion.  The date
// criteria look at the last touch, update time or else creation time.
func Filter(cs []model.Client, cr Criteria) []model.Client {
	q := strings.ToLower(strings.TrimSpace(cr.Search))
	out := make([]model.Client, 0, len(cs))
	for _, c := range cs {
		if !matches(c, q) {
			continue
		}
		if cr.Stage != "" && c.Stage != cr.Stage {
			continue
		}
		if cr.Assignee != "" && c.UserID != cr.Assignee {
			continue
		}
		if cr.Year != 0 {
			t := c.LastTouched()
			if t.Year() != cr.Year || (cr.Month != 0 && t.Month() != cr.Month) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

type SortField string

const (
	SortName      SortField = "name"
	SortDealValue SortField = "deal_value"
	SortStage     SortField = "stage"
	SortUpdated   SortField = "updatedAt"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Toggle mirrors a column header click: the same field flips direction,
// a new field starts ascending.
func Toggle(curField SortField, curDir Direction, clicked SortField) (SortField, Direction) {
	if curField == clicked && curDir == Asc {
		return clicked, Desc
	}
	return clicked, Asc
}

// Sort orders cs in place.  Ties keep their input order.
func Sort(cs []model.Client, field SortField, dir Direction) {
	compare := func(a, b model.Client) int {
		switch field {
		case SortName:
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortDealValue:
			return cmp(a.DealValue, b.DealValue)
		case SortStage:
			return cmp(int64(a.Stage.Index()), int64(b.Stage.Index()))
		case SortUpdated:
			return a.LastTouched().Compare(b.LastTouched())
		}
		return 0
	}
	sort.SliceStable(cs, func(i, j int) bool {
		r := compare(cs[i], cs[j])
		if dir == Desc {
			r = -r
		}
		return r < 0
	})
}

func cmp(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
