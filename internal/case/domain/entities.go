package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// Complainant links a user to a case. Confirmation is set by the trainee
// on every screening pass.
type Complainant struct {
	UserID      types.ID  `json:"user_id"`
	IsConfirmed bool      `json:"is_confirmed"`
	AddedAt     time.Time `json:"added_at"`
}

// Scene describes where and when a police-registered crime happened.
type Scene struct {
	Location   string    `json:"location"`
	OccurredAt time.Time `json:"occurred_at"`
	Witnesses  []Witness `json:"witnesses"`
}

// Witness is a bystander recorded at the scene
type Witness struct {
	ID           types.ID           `json:"id"`
	Phone        string             `json:"phone"`
	NationalCode types.NationalCode `json:"national_code"`
}

// Validate checks the scene before it is attached to a case
func (s *Scene) Validate(now time.Time) error {
	s.Location = strings.TrimSpace(s.Location)
	if s.Location == "" {
		return errors.Validation("scene location is required", map[string]string{"field": "scene.location"})
	}
	if s.OccurredAt.IsZero() {
		return errors.Validation("scene occurrence time is required", map[string]string{"field": "scene.occurred_at"})
	}
	if s.OccurredAt.After(now) {
		return errors.Validation("scene occurrence time is in the future", map[string]string{"field": "scene.occurred_at"})
	}

	for i, w := range s.Witnesses {
		field := fmt.Sprintf("scene.witnesses[%d]", i)
		if strings.TrimSpace(w.Phone) == "" {
			return errors.Validation("witness phone is required", map[string]string{"field": field + ".phone"})
		}
		code, err := types.ParseNationalCode(string(w.NationalCode))
		if err != nil || code.IsZero() {
			return errors.Validation("witness national code must be 10 digits", map[string]string{"field": field + ".national_code"})
		}
		s.Witnesses[i].NationalCode = code
	}
	return nil
}

// EventType defines types of case timeline events
type EventType string

const (
	EventTypeCreated          EventType = "created"
	EventTypeStatusChanged    EventType = "status_changed"
	EventTypeComplainantAdded EventType = "complainant_added"
)

// CaseEvent is one entry in the case timeline
type CaseEvent struct {
	ID          types.ID       `json:"id"`
	CaseID      types.ID       `json:"case_id"`
	Type        EventType      `json:"type"`
	ActorID     types.ID       `json:"actor_id"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
