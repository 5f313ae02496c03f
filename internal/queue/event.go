// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import "time"

// PipelineQueue is the durable queue every pipeline activity event goes to.
const PipelineQueue = "pipeline.activity"

// Event kinds.
const (
	ClientCreated      = "client.created"
	ClientStageChanged = "client.stage_changed"
	ClientUpdated      = "client.updated"
	ClientDeleted      = "client.deleted"
)

// PipelineEvent is published after a client mutation commits.  It carries
// enough for downstream consumers to log or notify without querying the
// primary database.
type PipelineEvent struct {
	Kind       string    `json:"kind"`
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	DealValue  int64     `json:"deal_value,omitempty"`
	ActorID    string    `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	OccurredAt time.Time `json:"occurred_at"`
}
