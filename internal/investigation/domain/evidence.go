package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// EvidenceKind discriminates the evidence payload. It is fixed when the
// evidence is recorded.
type EvidenceKind string

const (
	KindWitnessTestimony       EvidenceKind = "witness_testimony"
	KindBiological             EvidenceKind = "biological"
	KindVehicle                EvidenceKind = "vehicle"
	KindIdentificationDocument EvidenceKind = "identification_document"
	KindOther                  EvidenceKind = "other"
)

// EvidenceDetails is the kind-specific payload of a piece of evidence.
type EvidenceDetails interface {
	Kind() EvidenceKind
	Validate() error
}

type WitnessTestimony struct {
	Transcript string `json:"transcript"`
}

func (WitnessTestimony) Kind() EvidenceKind { return KindWitnessTestimony }

func (d WitnessTestimony) Validate() error {
	if strings.TrimSpace(d.Transcript) == "" {
		return errors.Validation("testimony transcript is required", map[string]string{"field": "details.transcript"})
	}
	return nil
}

// Biological evidence awaits medical and database follow-up before a
// coroner verifies it.
type Biological struct {
	MedicalFollowUp  string `json:"medical_follow_up,omitempty"`
	DatabaseFollowUp string `json:"database_follow_up,omitempty"`
	Verified         bool   `json:"verified"`
}

func (Biological) Kind() EvidenceKind { return KindBiological }
func (Biological) Validate() error    { return nil }

// Vehicle evidence carries exactly one of license plate or serial number.
type Vehicle struct {
	Model        string `json:"model"`
	Color        string `json:"color"`
	LicensePlate string `json:"license_plate,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

func (Vehicle) Kind() EvidenceKind { return KindVehicle }

func (d Vehicle) Validate() error {
	if strings.TrimSpace(d.Model) == "" {
		return errors.Validation("vehicle model is required", map[string]string{"field": "details.model"})
	}
	plate := strings.TrimSpace(d.LicensePlate) != ""
	serial := strings.TrimSpace(d.SerialNumber) != ""
	if plate == serial {
		return errors.Validation("exactly one of license plate or serial number is required",
			map[string]string{"field": "details.license_plate"})
	}
	return nil
}

type IdentificationDocument struct {
	OwnerFullName string            `json:"owner_full_name"`
	ExtraInfo     map[string]string `json:"extra_info,omitempty"`
}

func (IdentificationDocument) Kind() EvidenceKind { return KindIdentificationDocument }

func (d IdentificationDocument) Validate() error {
	if strings.TrimSpace(d.OwnerFullName) == "" {
		return errors.Validation("document owner is required", map[string]string{"field": "details.owner_full_name"})
	}
	return nil
}

type Other struct{}

func (Other) Kind() EvidenceKind { return KindOther }
func (Other) Validate() error    { return nil }

// DecodeDetails parses a stored or submitted payload for the given kind.
func DecodeDetails(kind EvidenceKind, raw json.RawMessage) (EvidenceDetails, error) {
	var d EvidenceDetails
	switch kind {
	case KindWitnessTestimony:
		d = &WitnessTestimony{}
	case KindBiological:
		d = &Biological{}
	case KindVehicle:
		d = &Vehicle{}
	case KindIdentificationDocument:
		d = &IdentificationDocument{}
	case KindOther:
		return Other{}, nil
	default:
		return nil, errors.Validation("unknown evidence kind", map[string]string{"kind": string(kind)})
	}

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, d); err != nil {
			return nil, errors.Validation("invalid evidence details", map[string]string{"kind": string(kind)})
		}
	}

	switch v := d.(type) {
	case *WitnessTestimony:
		return *v, nil
	case *Biological:
		return *v, nil
	case *Vehicle:
		return *v, nil
	case *IdentificationDocument:
		return *v, nil
	}
	return d, nil
}

// Evidence is an item recorded against a case
type Evidence struct {
	ID          types.ID        `json:"id"`
	CaseID      types.ID        `json:"case_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	RecordedBy  types.ID        `json:"recorded_by"`
	IsOnBoard   bool            `json:"is_on_board"`
	Details     EvidenceDetails `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Kind returns the discriminator of the payload
func (e *Evidence) Kind() EvidenceKind {
	if e.Details == nil {
		return KindOther
	}
	return e.Details.Kind()
}

// NewEvidence records evidence on a case that is still open to changes
func NewEvidence(actor auth.Actor, caseID types.ID, caseClosed bool, title, description string, details EvidenceDetails, now time.Time) (*Evidence, error) {
	if !actor.Roles.HasAny(auth.OfficerOrHigher...) {
		return nil, errors.Forbidden("only officers and above can record evidence")
	}
	if caseClosed {
		return nil, errors.InvalidState("cannot record evidence on a closed case", "")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.Validation("evidence title is required", map[string]string{"field": "title"})
	}
	if details == nil {
		details = Other{}
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}

	return &Evidence{
		ID:          types.NewID(),
		CaseID:      caseID,
		Title:       title,
		Description: description,
		RecordedBy:  actor.ID,
		Details:     details,
		CreatedAt:   now,
	}, nil
}

// VerifyBiological records the coroner's verification with follow-up results.
func (e *Evidence) VerifyBiological(actor auth.Actor, medical, database string) error {
	if !actor.Roles.HasAny(auth.RoleCoroner) {
		return errors.Forbidden("only a coroner can verify biological evidence")
	}
	bio, ok := e.Details.(Biological)
	if !ok {
		return errors.Validation("only biological evidence can be verified", map[string]string{"kind": string(e.Kind())})
	}
	if bio.Verified {
		return errors.InvalidState("evidence is already verified", "verified")
	}

	bio.Verified = true
	if medical != "" {
		bio.MedicalFollowUp = medical
	}
	if database != "" {
		bio.DatabaseFollowUp = database
	}
	e.Details = bio
	return nil
}

// ToggleBoard pins or unpins the evidence on the detective board.
func (e *Evidence) ToggleBoard(actor auth.Actor) error {
	if err := CanArrangeBoard(actor); err != nil {
		return err
	}
	e.IsOnBoard = !e.IsOnBoard
	return nil
}

func (e Evidence) MarshalJSON() ([]byte, error) {
	type plain Evidence
	return json.Marshal(struct {
		plain
		Kind    EvidenceKind    `json:"kind"`
		Details EvidenceDetails `json:"details"`
	}{plain(e), e.Kind(), e.Details})
}
