package ctlproto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types, per spec.md §4.4. Every implementation MUST publish
// *_scaled/*_stopped in a way a subscriber can use to determine
// convergence of a prior early-ack command.
const (
	EventComponentScaled      = "component_scaled"
	EventComponentScaleFailed = "component_scale_failed"
	EventProviderStarted      = "provider_started"
	EventProviderStartFailed  = "provider_start_failed"
	EventProviderStopped      = "provider_stopped"
	EventLinkDefinitionSet    = "link_definition_set"
	EventLinkDefinitionDel    = "link_definition_deleted"
	EventLabelsChanged        = "labels_changed"
	EventHostStarted          = "host_started"
	EventHostStopped          = "host_stopped"
	EventHostHeartbeat        = "host_heartbeat"
	EventCronJobFired         = "cron_job_fired"
)

// CloudEvent is the cloudevents-formatted JSON envelope hosts publish
// events in (spec.md §4.4).
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Time            string          `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// NewCloudEvent wraps data (any JSON-marshalable payload) into a
// CloudEvent sourced from hostID, stamped with the current time.
func NewCloudEvent(hostID, eventType string, data any, now time.Time) (*CloudEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.NewString(),
		Source:          hostID,
		Type:            eventType,
		Time:            now.UTC().Format(time.RFC3339Nano),
		DataContentType: "application/json",
		Data:            raw,
	}, nil
}

// ComponentScaledData is the payload of a component_scaled event.
type ComponentScaledData struct {
	ComponentID string            `json:"component_id"`
	ImageRef    string            `json:"image_ref"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Count       int               `json:"count"`
}

// ComponentScaleFailedData is the payload of a component_scale_failed
// event.
type ComponentScaleFailedData struct {
	ComponentID string            `json:"component_id"`
	ImageRef    string            `json:"image_ref"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Error       string            `json:"error"`
}

// ProviderStartedData is the payload of a provider_started event.
type ProviderStartedData struct {
	ProviderID string `json:"provider_id"`
	ImageRef   string `json:"image_ref"`
	LinkName   string `json:"link_name"`
	ContractID string `json:"contract_id"`
}

// ProviderStartFailedData is the payload of a provider_start_failed event.
type ProviderStartFailedData struct {
	ProviderID string `json:"provider_id"`
	ImageRef   string `json:"image_ref"`
	LinkName   string `json:"link_name"`
	Error      string `json:"error"`
}

// ProviderStoppedData is the payload of a provider_stopped event.
type ProviderStoppedData struct {
	ProviderID string `json:"provider_id"`
	LinkName   string `json:"link_name"`
}

// CronJobFiredData is the payload of a cron_job_fired event: the
// distributed-cron scheduler's Invoker publishes one every time it wins
// the per-firing lock for a job (spec.md §4.6), so a firing is observable
// over the bus even when no provider-side Invoker is wired in.
type CronJobFiredData struct {
	TargetID string `json:"target_id"`
	LinkName string `json:"link_name"`
	JobName  string `json:"job_name"`
}

// LabelsChangedData is the payload of a labels_changed event.
type LabelsChangedData struct {
	Labels map[string]string `json:"labels"`
}

// HostHeartbeatData is the payload of a host_heartbeat event.
type HostHeartbeatData struct {
	UptimeSeconds int64             `json:"uptime_seconds"`
	Labels        map[string]string `json:"labels,omitempty"`
	Version       string            `json:"version,omitempty"`
}
