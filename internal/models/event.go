package models

import "time"

// Analytics actions recorded by the save pipeline.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// Event is an analytics record: who did what to which object.
type Event struct {
	ID        int64             `json:"id,omitempty"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject"`
	ObjectID  int64             `json:"object_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
