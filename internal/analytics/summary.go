// Package analytics derives pipeline metrics from the client list.  The
// shapes here are what chart and CSV/PDF exporters consume.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/iliyamo/pipeline-crm/internal/model"
)

type Metrics struct {
	TotalDeals    int     `json:"totalDeals"`
	TotalRevenue  int64   `json:"totalRevenue"`
	PipelineValue int64   `json:"pipelineValue"`
	AvgDealSize   float64 `json:"avgDealSize"`
	WinRate       float64 `json:"winRate"`
	WonCount      int     `json:"wonCount"`
	LostCount     int     `json:"lostCount"`
	ActiveCount   int     `json:"activeCount"`
}

type StageCount struct {
	Stage model.Stage `json:"stage"`
	Label string      `json:"name"`
	Count int         `json:"value"`
}

type FunnelStep struct {
	Stage model.Stage `json:"stageId"`
	Label string      `json:"stage"`
	Count int         `json:"count"`
	Rate  int         `json:"rate"`
}

type StageRevenue struct {
	Stage model.Stage `json:"stageId"`
	Label string      `json:"stage"`
	Value int64       `json:"value"`
}

type Member struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Deals   int    `json:"deals"`
	Value   int64  `json:"value"`
	Won     int    `json:"won"`
	WinRate int    `json:"winRate"`
}

type Month struct {
	Month string `json:"month"`
	Deals int    `json:"deals"`
	Won   int    `json:"won"`
}

type Summary struct {
	Metrics           Metrics        `json:"metrics"`
	StageDistribution []StageCount   `json:"stageDistribution"`
	ConversionFunnel  []FunnelStep   `json:"conversionFunnel"`
	RevenueByStage    []StageRevenue `json:"revenueByStage"`
	TeamPerformance   []Member       `json:"teamPerformance"`
	MonthlyTrend      []Month        `json:"monthlyTrend"`
}

var funnelStages = []model.Stage{
	model.StageLead,
	model.StageContacted,
	model.StageQualified,
	model.StageProposal,
	model.StageNegotiation,
	model.StageWon,
}

// Compute builds the summary.  users resolve creator ids to current
// names for team performance; a creator missing from users falls back to
// the client's creator name snapshot.
func Compute(clients []model.Client, users []model.User) Summary {
	return Summary{
		Metrics:           computeMetrics(clients),
		StageDistribution: stageDistribution(clients),
		ConversionFunnel:  conversionFunnel(clients),
		RevenueByStage:    revenueByStage(clients),
		TeamPerformance:   teamPerformance(clients, users),
		MonthlyTrend:      monthlyTrend(clients),
	}
}

func computeMetrics(clients []model.Client) Metrics {
	var m Metrics
	var total int64
	m.TotalDeals = len(clients)
	for _, c := range clients {
		total += c.DealValue
		switch c.Stage {
		case model.StageWon:
			m.WonCount++
			m.TotalRevenue += c.DealValue
		case model.StageLost:
			m.LostCount++
		default:
			m.ActiveCount++
			m.PipelineValue += c.DealValue
		}
	}
	if m.TotalDeals > 0 {
		m.AvgDealSize = float64(total) / float64(m.TotalDeals)
	}
	if closed := m.WonCount + m.LostCount; closed > 0 {
		m.WinRate = float64(m.WonCount) / float64(closed) * 100
	}
	return m
}

// stageDistribution lists stages that hold at least one client.
func stageDistribution(clients []model.Client) []StageCount {
	counts := map[model.Stage]int{}
	for _, c := range clients {
		counts[c.Stage]++
	}
	out := []StageCount{}
	for _, st := range model.Stages {
		if n := counts[st]; n > 0 {
			out = append(out, StageCount{Stage: st, Label: st.Label(), Count: n})
		}
	}
	return out
}

// conversionFunnel counts, for each step, the clients that reached it or
// went beyond.  Lost clients never count.
func conversionFunnel(clients []model.Client) []FunnelStep {
	total := len(clients)
	out := make([]FunnelStep, 0, len(funnelStages))
	for i, st := range funnelStages {
		n := 0
		for _, c := range clients {
			if c.Stage != model.StageLost && c.Stage.Index() >= i {
				n++
			}
		}
		rate := 0
		if total > 0 {
			rate = int(math.Round(float64(n) / float64(total) * 100))
		}
		out = append(out, FunnelStep{Stage: st, Label: st.Label(), Count: n, Rate: rate})
	}
	return out
}

func revenueByStage(clients []model.Client) []StageRevenue {
	sums := map[model.Stage]int64{}
	for _, c := range clients {
		sums[c.Stage] += c.DealValue
	}
	out := make([]StageRevenue, 0, len(model.Stages))
	for _, st := range model.Stages {
		out = append(out, StageRevenue{Stage: st, Label: st.Label(), Value: sums[st]})
	}
	return out
}

func teamPerformance(clients []model.Client, users []model.User) []Member {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	byUser := map[string]*Member{}
	order := []string{}
	for _, c := range clients {
		m, ok := byUser[c.UserID]
		if !ok {
			name, known := names[c.UserID]
			if !known {
				name = c.CreatorName
			}
			m = &Member{UserID: c.UserID, Name: name}
			byUser[c.UserID] = m
			order = append(order, c.UserID)
		}
		m.Deals++
		m.Value += c.DealValue
		if c.Stage == model.StageWon {
			m.Won++
		}
	}
	out := make([]Member, 0, len(order))
	for _, id := range order {
		m := byUser[id]
		if m.Deals > 0 {
			m.WinRate = int(math.Round(float64(m.Won) / float64(m.Deals) * 100))
		}
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// monthlyTrend buckets clients by the calendar month of creation,
// regardless of year.
func monthlyTrend(clients []model.Client) []Month {
	out := make([]Month, 12)
	for i := range out {
		out[i].Month = time.Month(i + 1).String()[:3]
	}
	for _, c := range clients {
		if c.CreatedAt.IsZero() {
			continue
		}
		idx := int(c.CreatedAt.UTC().Month()) - 1
		out[idx].Deals++
		if c.Stage == model.StageWon {
			out[idx].Won++
		}
	}
	return out
}
