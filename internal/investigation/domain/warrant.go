package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// WarrantType defines what a warrant authorizes
type WarrantType string

const (
	WarrantArrest WarrantType = "arrest"
	WarrantSearch WarrantType = "search"
)

// WarrantStatus is the review state of a warrant
type WarrantStatus string

const (
	WarrantPending  WarrantStatus = "PENDING"
	WarrantApproved WarrantStatus = "APPROVED"
	WarrantRejected WarrantStatus = "REJECTED"
)

// Warrant is a request to act against a case, optionally naming a suspect
type Warrant struct {
	ID          types.ID      `json:"id"`
	CaseID      types.ID      `json:"case_id"`
	SuspectID   types.ID      `json:"suspect_id,omitempty"`
	Type        WarrantType   `json:"type"`
	Status      WarrantStatus `json:"status"`
	Reason      string        `json:"reason"`
	RequesterID types.ID      `json:"requester_id"`
	ApproverID  types.ID      `json:"approver_id,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ReviewedAt  *time.Time    `json:"reviewed_at,omitempty"`
	Version     int           `json:"version"`
}

// NewWarrant files a warrant request. A targeted suspect must belong to
// the same case.
func NewWarrant(actor auth.Actor, caseID types.ID, suspect *Suspect, wt WarrantType, reason string, now time.Time) (*Warrant, error) {
	if !actor.Roles.HasAny(auth.OfficerOrHigher...) {
		return nil, errors.Forbidden("only officers and above can request warrants")
	}
	if wt != WarrantArrest && wt != WarrantSearch {
		return nil, errors.Validation("unknown warrant type", map[string]string{"type": string(wt)})
	}

	w := &Warrant{
		ID:          types.NewID(),
		CaseID:      caseID,
		Type:        wt,
		Status:      WarrantPending,
		Reason:      strings.TrimSpace(reason),
		RequesterID: actor.ID,
		CreatedAt:   now,
	}
	if suspect != nil {
		if suspect.CaseID != caseID {
			return nil, errors.Validation("suspect does not belong to this case", map[string]string{
				"suspect_id": suspect.ID.String(),
			})
		}
		w.SuspectID = suspect.ID
	}
	return w, nil
}

// Review approves or rejects a pending warrant
func (w *Warrant) Review(actor auth.Actor, approved bool, notes string, now time.Time) error {
	if !actor.Roles.HasAny(auth.SergeantGroup...) {
		return errors.Forbidden("only sergeants can review warrants")
	}
	if w.Status != WarrantPending {
		return errors.InvalidState(fmt.Sprintf("warrant is already %s", w.Status), string(w.Status))
	}

	w.Status = WarrantRejected
	if approved {
		w.Status = WarrantApproved
	}
	w.ApproverID = actor.ID
	w.Notes = notes
	w.ReviewedAt = &now
	return nil
}
