package notify

import (
	"encoding/json"
	"log"

	"tracker-kronotrack/internal/stream"
)

// Cause explains a forced stop so the user sees what to fix.
type Cause string

const (
	CauseServicesDisabled  Cause = "location_services_disabled"
	CausePermissionRevoked Cause = "location_permission_revoked"
	CausePrecisionRevoked  Cause = "precise_location_revoked"
)

// Port is the session's notification surface. The platform bridge turns these
// into local notifications and dialogs.
type Port interface {
	TrackingActive(participant, eventName string)
	TrackingStopped()
	ForcedStop(cause Cause)
	StartFailed(err error)
}

// StatusTopic is the stream topic notices are broadcast on.
const StatusTopic = "status"

type notice struct {
	Kind        string `json:"kind"`
	Participant string `json:"participant,omitempty"`
	EventName   string `json:"event_name,omitempty"`
	Cause       string `json:"cause,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Notifier logs notices and, when a hub is attached, broadcasts them on the
// status topic for the bridge to render.
type Notifier struct {
	hub *stream.Hub
}

func New(hub *stream.Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) TrackingActive(participant, eventName string) {
	log.Printf("tracking active: %s (%s)", participant, eventName)
	n.publish(notice{Kind: "tracking_active", Participant: participant, EventName: eventName})
}

func (n *Notifier) TrackingStopped() {
	log.Printf("tracking stopped")
	n.publish(notice{Kind: "tracking_stopped"})
}

func (n *Notifier) ForcedStop(cause Cause) {
	log.Printf("tracking disabled: %s", cause)
	n.publish(notice{Kind: "tracking_disabled", Cause: string(cause)})
}

func (n *Notifier) StartFailed(err error) {
	log.Printf("start tracking failed: %v", err)
	n.publish(notice{Kind: "start_failed", Error: err.Error()})
}

func (n *Notifier) publish(msg notice) {
	if n.hub == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	n.hub.Broadcast(StatusTopic, payload)
}
