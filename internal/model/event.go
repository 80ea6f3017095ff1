package model

import "time"

// EventType classifies learner events.
type EventType string

const (
	EventMasteryUpdated    EventType = "mastery_updated"
	EventItemAnswered      EventType = "item_answered"
	EventActivityCompleted EventType = "activity_completed"
)

// Event is a learner-tracking record. Mastery events carry the before/after
// pair emitted by the aggregator.
type Event struct {
	ID            string    `json:"id,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	Type          EventType `json:"type"`
	OccurredAt    time.Time `json:"occurredAt"`
	SkillID       SkillID   `json:"skillId,omitempty"`
	MasteryBefore float64   `json:"masteryBefore,omitempty"`
	MasteryAfter  float64   `json:"masteryAfter,omitempty"`
	EntityID      string    `json:"entityId,omitempty"`
}

// Delta converts a mastery event back to the aggregator's delta form.
func (e Event) Delta() (MasteryDelta, bool) {
	if e.Type != EventMasteryUpdated || e.SkillID == "" {
		return MasteryDelta{}, false
	}
	return MasteryDelta{SkillID: e.SkillID, Before: e.MasteryBefore, After: e.MasteryAfter, At: e.OccurredAt}, true
}

// MasteryEvent wraps a delta as a tracking event for userID.
func MasteryEvent(userID string, d MasteryDelta) Event {
	return Event{
		UserID:        userID,
		Type:          EventMasteryUpdated,
		OccurredAt:    d.At,
		SkillID:       d.SkillID,
		MasteryBefore: d.Before,
		MasteryAfter:  d.After,
	}
}
