package model

import (
	"strings"
	"time"
)

// Stage is a pipeline stage.  The set is closed and ordered; any stage may
// be assigned from any other.
type Stage string

const (
	StageLead        Stage = "lead"
	StageContacted   Stage = "contacted"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageLead,
	StageContacted,
	StageQualified,
	StageProposal,
	StageNegotiation,
	StageWon,
	StageLost,
}

var stageLabels = map[Stage]string{
	StageLead:        "Lead",
	StageContacted:   "Contacted",
	StageQualified:   "Qualified",
	StageProposal:    "Proposal Sent",
	StageNegotiation: "Negotiation",
	StageWon:         "Won",
	StageLost:        "Lost",
}

// Valid reports whether s is a member of the stage enum.
func (s Stage) Valid() bool {
	_, ok := stageLabels[s]
	return ok
}

// Label is the human readable column title.
func (s Stage) Label() string { return stageLabels[s] }

// Index is the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Closed reports whether s is a terminal outcome (won or lost).  Closed
// stages are still movable; the flag only matters for analytics.
func (s Stage) Closed() bool { return s == StageWon || s == StageLost }

// ParseStage normalizes raw and checks it against the enum.
func ParseStage(raw string) (Stage, bool) {
	s := Stage(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// Client is a sales opportunity, one row of the `clients` table.
// CreatorName is a snapshot of the creator's name taken at insert time; it
// is not updated when the user is renamed.
type Client struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Company     string     `json:"company"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	DealValue   int64      `json:"deal_value"`
	Stage       Stage      `json:"stage"`
	UserID      string     `json:"userId"`
	CreatorName string     `json:"creator_name"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// LastTouched is UpdatedAt when set, otherwise CreatedAt.
func (c Client) LastTouched() time.Time {
	if c.UpdatedAt != nil {
		return *c.UpdatedAt
	}
	return c.CreatedAt
}
