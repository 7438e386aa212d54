// Package domain holds the investigation records attached to a case:
// suspects, warrants, interrogations, verdicts and evidence.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// SuspectStatus is the arrest lifecycle of a suspect. It only moves forward.
type SuspectStatus string

const (
	SuspectIdentified  SuspectStatus = "IDENTIFIED"
	SuspectUnderArrest SuspectStatus = "UNDER_ARREST"
	SuspectArrested    SuspectStatus = "ARRESTED"
)

// Triggers recorded when a suspect changes status
const (
	TriggerWarrant  = "warrant"
	TriggerSergeant = "sergeant_review"
	TriggerManual   = "mark_arrested"
)

// Suspect is a person of interest on exactly one case. The national code,
// not the ID, identifies the person across cases.
type Suspect struct {
	ID            types.ID           `json:"id"`
	CaseID        types.ID           `json:"case_id"`
	FirstName     string             `json:"first_name"`
	LastName      string             `json:"last_name"`
	NationalCode  types.NationalCode `json:"national_code,omitempty"`
	Details       string             `json:"details"`
	IsMainSuspect bool               `json:"is_main_suspect"`
	IsOnBoard     bool               `json:"is_on_board"`
	Status        SuspectStatus      `json:"status"`
	CreatedBy     types.ID           `json:"created_by"`

	// CreatedAt is the identification time and starts the pursuit clock.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// SuspectInput carries the fields of a new suspect
type SuspectInput struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	NationalCode  string `json:"national_code"`
	Details       string `json:"details"`
	IsMainSuspect bool   `json:"is_main_suspect"`
}

// NewSuspect identifies a suspect on a case. Naming a main suspect here is
// held to the same rule as SetMain.
func NewSuspect(actor auth.Actor, caseID types.ID, in SuspectInput, caseActive bool, now time.Time) (*Suspect, error) {
	if !actor.Roles.HasAny(auth.OfficerOrHigher...) {
		return nil, errors.Forbidden("only officers and above can add suspects")
	}

	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" && last == "" {
		return nil, errors.Validation("suspect name is required", map[string]string{"field": "first_name"})
	}

	code, err := types.ParseNationalCode(in.NationalCode)
	if err != nil {
		return nil, errors.Validation(err.Error(), map[string]string{"field": "national_code"})
	}

	s := &Suspect{
		ID:           types.NewID(),
		CaseID:       caseID,
		FirstName:    first,
		LastName:     last,
		NationalCode: code,
		Details:      in.Details,
		Status:       SuspectIdentified,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.IsMainSuspect {
		if err := s.SetMain(actor, true, caseActive, now); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FullName joins the name parts
func (s *Suspect) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// IsArrested mirrors Status == ARRESTED for older clients.
func (s *Suspect) IsArrested() bool {
	return s.Status == SuspectArrested
}

// PlaceUnderArrest moves an IDENTIFIED suspect to UNDER_ARREST. It reports
// false, without error, for suspects already further along.
func (s *Suspect) PlaceUnderArrest(now time.Time) bool {
	if s.Status != SuspectIdentified {
		return false
	}
	s.Status = SuspectUnderArrest
	s.UpdatedAt = now
	return true
}

// MarkArrested completes the arrest of a suspect under a warrant
func (s *Suspect) MarkArrested(actor auth.Actor, now time.Time) error {
	if !actor.Roles.HasAny(auth.SergeantGroup...) {
		return errors.Forbidden("only sergeants can mark a suspect arrested")
	}
	if s.Status != SuspectUnderArrest {
		return errors.Validation("suspect is not under arrest", map[string]string{
			"suspect_id": s.ID.String(),
			"status":     string(s.Status),
		})
	}
	s.Status = SuspectArrested
	s.UpdatedAt = now
	return nil
}

// SetMain flags or unflags the suspect as a main suspect. Only allowed
// while the investigation is active.
func (s *Suspect) SetMain(actor auth.Actor, main bool, caseActive bool, now time.Time) error {
	if !actor.Roles.HasAny(auth.DetectiveGroup...) {
		return errors.Forbidden("only detectives can change main suspects")
	}
	if !caseActive {
		return errors.InvalidState("main suspects can only change while the case is active", "")
	}
	s.IsMainSuspect = main
	s.UpdatedAt = now
	return nil
}

// ToggleBoard pins or unpins the suspect on the detective board.
func (s *Suspect) ToggleBoard(actor auth.Actor, now time.Time) error {
	if err := CanArrangeBoard(actor); err != nil {
		return err
	}
	s.IsOnBoard = !s.IsOnBoard
	s.UpdatedAt = now
	return nil
}

// MarshalJSON adds the derived is_arrested flag.
func (s Suspect) MarshalJSON() ([]byte, error) {
	type plain Suspect
	return json.Marshal(struct {
		plain
		IsArrested bool `json:"is_arrested"`
	}{plain(s), s.IsArrested()})
}
