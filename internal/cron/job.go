// Package cron implements the distributed-cron scheduler of spec.md §4.6:
// coordinated periodic job dispatch across N provider instances, using a
// durable per-job stream (internal/cron/stream) as the tick source and a
// short-TTL lattice-wide lock (internal/cron/lock) as the leader election
// per firing.
package cron

import "encoding/json"

// Job is a registered distributed-cron job, keyed by (TargetID, LinkName,
// JobName) per spec.md §4.6.
type Job struct {
	TargetID      string          `json:"target_id"`
	LinkName      string          `json:"link_name"`
	JobName       string          `json:"job_name"`
	CronExpr      string          `json:"cron_expression"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Key is the job's unique identity: (target_id, link_name, job_name).
func (j Job) Key() string {
	return j.TargetID + "/" + j.LinkName + "/" + j.JobName
}

// StreamKey is the per-job stream subject, per spec.md §4.6:
// "cronjob.<target>.<job>".
func (j Job) StreamKey() string {
	return "cronjob." + j.TargetID + "." + j.JobName
}

// State names a step in the per-job state machine of spec.md §4.6.
type State string

const (
	StateRegistered     State = "registered"
	StateStreamCreated  State = "stream_created"
	StateConsumerActive State = "consumer_active"
	StateFiring         State = "firing"
	StateDeleted        State = "deleted"
)
