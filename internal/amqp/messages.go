package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a change in planning data.
type EventType string

const (
	BudgetCreated      EventType = "budget.created"
	BudgetSaved        EventType = "budget.saved"
	ProjectionCreated  EventType = "projection.created"
	ProjectionUpdated  EventType = "projection.updated"
	ProjectionDeleted  EventType = "projection.deleted"
	ProjectionApproved EventType = "projection.approved"
)

// PlanningEvent is a small notification that planning data of a brand/year
// changed. Consumers re-read whatever they need from the store.
type PlanningEvent struct {
	Type         EventType `json:"type"`
	Brand        string    `json:"brand"`
	Year         int       `json:"year"`
	Month        int       `json:"month,omitempty"`
	Category     string    `json:"category,omitempty"`
	ProjectionID string    `json:"projection_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewPlanningEvent stamps the event with at, the publisher's clock.
func NewPlanningEvent(t EventType, brand string, year int, at time.Time) *PlanningEvent {
	return &PlanningEvent{
		Type:      t,
		Brand:     brand,
		Year:      year,
		Timestamp: at,
	}
}

func (e *PlanningEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func PlanningEventFromJSON(data []byte) (*PlanningEvent, error) {
	var e PlanningEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Type == "" || e.Year == 0 {
		return nil, fmt.Errorf("incomplete planning event")
	}
	return &e, nil
}
