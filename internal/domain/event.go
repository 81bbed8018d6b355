package domain

import "time"

// EventType tags a push-channel event envelope.
type EventType string

const (
	EventTransaction    EventType = "transaction"
	EventAlert          EventType = "alert"
	EventAnalysis       EventType = "token_analysis"
	EventNewLaunch      EventType = "new_launch"
	EventWhaleMagnet    EventType = "whale_magnet"
	EventCurveProgress  EventType = "bonding_curve_progress"
	EventCurveCompleted EventType = "bonding_curve_completed"
)

// AlertEventType returns the level-specific variant of the alert event.
func AlertEventType(level AlertLevel) EventType {
	return EventType("alert_" + string(level))
}

// Event is the typed envelope delivered to all push subscribers.
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
