// Package domain holds the citizen tip reward workflow: a report moves from
// officer review to detective review and, once approved, can be paid out
// exactly once against its tracking or reward code.
package domain

import (
	"strings"
	"time"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// Status is the position of a reward report in review
type Status string

const (
	StatusPendingOfficer   Status = "PENDING_OFFICER"
	StatusPendingDetective Status = "PENDING_DETECTIVE"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingOfficer, StatusPendingDetective, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.Validation("unknown reward status", map[string]string{"status": s})
	}
	return st, nil
}

// PayerGateway marks payouts confirmed by the payment gateway callback.
const PayerGateway = "gateway"

// Report is a citizen's tip about a suspect
type Report struct {
	ID          types.ID `json:"id"`
	ReporterID  types.ID `json:"reporter_id"`
	Description string   `json:"description"`

	SuspectID           types.ID           `json:"suspect_id,omitempty"`
	SuspectNationalCode types.NationalCode `json:"suspect_national_code,omitempty"`
	SuspectFullName     string             `json:"suspect_full_name"`

	Status         Status   `json:"status"`
	OfficerID      types.ID `json:"officer_id,omitempty"`
	OfficerNotes   string   `json:"officer_notes,omitempty"`
	DetectiveID    types.ID `json:"detective_id,omitempty"`
	DetectiveNotes string   `json:"detective_notes,omitempty"`

	RewardAmount int64      `json:"reward_amount"`
	TrackingCode string     `json:"tracking_code,omitempty"`
	RewardCode   string     `json:"reward_code,omitempty"`
	IsPaid       bool       `json:"is_paid"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	PaidBy       string     `json:"paid_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// SubmitInput is what a citizen provides with a tip
type SubmitInput struct {
	Description         string   `json:"description"`
	SuspectID           types.ID `json:"suspect_id"`
	SuspectNationalCode string   `json:"suspect_national_code"`
	SuspectFullName     string   `json:"suspect_full_name"`
}

// NewReport files a tip. Any authenticated user may submit one.
func NewReport(reporter auth.Actor, in SubmitInput, now time.Time) (*Report, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, errors.Validation("description is required", map[string]string{"field": "description"})
	}
	code, err := types.ParseNationalCode(in.SuspectNationalCode)
	if err != nil {
		return nil, errors.Validation("suspect national code must be 10 digits", map[string]string{"field": "suspect_national_code"})
	}

	return &Report{
		ID:                  types.NewID(),
		ReporterID:          reporter.ID,
		Description:         description,
		SuspectID:           in.SuspectID,
		SuspectNationalCode: code,
		SuspectFullName:     strings.TrimSpace(in.SuspectFullName),
		Status:              StatusPendingOfficer,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// OfficerReview forwards the tip to detectives or rejects it. The officer
// may link the tip to a known suspect.
func (r *Report) OfficerReview(actor auth.Actor, approved bool, notes string, suspectID types.ID, now time.Time) error {
	if !actor.Roles.HasAny(auth.OfficerOrHigher...) {
		return errors.Forbidden("only officers and above can review reward reports")
	}
	if r.Status != StatusPendingOfficer {
		return errors.InvalidState("report is not awaiting officer review", string(r.Status))
	}

	r.OfficerID = actor.ID
	r.OfficerNotes = strings.TrimSpace(notes)
	if !suspectID.IsZero() {
		r.SuspectID = suspectID
	}
	r.Status = StatusRejected
	if approved {
		r.Status = StatusPendingDetective
	}
	r.UpdatedAt = now
	return nil
}

// CheckDetectiveReview reports whether the actor may make the final
// decision now. Approval does a lookup before mutating, so the guard is
// exposed on its own.
func (r *Report) CheckDetectiveReview(actor auth.Actor) error {
	if !actor.Roles.HasAny(auth.DetectiveGroup...) {
		return errors.Forbidden("only detectives can make the final reward decision")
	}
	if r.Status != StatusPendingDetective {
		return errors.InvalidState("report is not awaiting detective review", string(r.Status))
	}
	return nil
}

// Approval carries everything resolved before a report is approved
type Approval struct {
	Suspect      SuspectRef
	Amount       int64
	TrackingCode string
	RewardCode   string
}

// SuspectRef identifies the suspect a reward is paid against
type SuspectRef struct {
	ID           types.ID
	NationalCode types.NationalCode
	FullName     string
}

// Approve attaches the resolved suspect, the amount and the payout codes.
func (r *Report) Approve(actor auth.Actor, notes string, a Approval, now time.Time) error {
	if err := r.CheckDetectiveReview(actor); err != nil {
		return err
	}
	if a.Suspect.ID.IsZero() {
		return NoSuspect()
	}
	if a.TrackingCode == "" || a.RewardCode == "" {
		return errors.Validation("payout codes are required", nil)
	}

	r.DetectiveID = actor.ID
	r.DetectiveNotes = strings.TrimSpace(notes)
	r.SuspectID = a.Suspect.ID
	if r.SuspectNationalCode.IsZero() {
		r.SuspectNationalCode = a.Suspect.NationalCode
	}
	if r.SuspectFullName == "" {
		r.SuspectFullName = a.Suspect.FullName
	}
	r.RewardAmount = a.Amount
	r.TrackingCode = a.TrackingCode
	r.RewardCode = a.RewardCode
	r.Status = StatusApproved
	r.UpdatedAt = now
	return nil
}

// Reject closes the report without a reward
func (r *Report) Reject(actor auth.Actor, notes string, now time.Time) error {
	if err := r.CheckDetectiveReview(actor); err != nil {
		return err
	}
	r.DetectiveID = actor.ID
	r.DetectiveNotes = strings.TrimSpace(notes)
	r.Status = StatusRejected
	r.UpdatedAt = now
	return nil
}

// MarkPaid records a payout handed over by police. A non-empty tracking
// code must match the report's.
func (r *Report) MarkPaid(actor auth.Actor, trackingCode string, now time.Time) error {
	if !actor.Roles.HasAny(auth.OfficerOrHigher...) {
		return errors.Forbidden("only officers and above can mark rewards paid")
	}
	trackingCode = strings.TrimSpace(trackingCode)
	if trackingCode != "" && r.TrackingCode != "" && trackingCode != r.TrackingCode {
		return errors.Validation("tracking code does not match", map[string]string{"field": "tracking_code"})
	}
	return r.pay(actor.ID.String(), now)
}

// ConfirmGatewayPayment records a payout reported by the payment gateway.
func (r *Report) ConfirmGatewayPayment(now time.Time) error {
	return r.pay(PayerGateway, now)
}

func (r *Report) pay(payer string, now time.Time) error {
	if r.Status != StatusApproved {
		return errors.Validation("only approved reports can be paid", map[string]string{"status": string(r.Status)})
	}
	if r.IsPaid {
		return errors.Validation("reward is already paid", map[string]string{"tracking_code": r.TrackingCode})
	}
	r.IsPaid = true
	r.PaidAt = &now
	r.PaidBy = payer
	r.UpdatedAt = now
	return nil
}

// MatchesCode reports whether code is this report's tracking or reward code.
func (r *Report) MatchesCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	return code == r.TrackingCode || strings.EqualFold(code, r.RewardCode)
}

// NoSuspect is returned when a detective approves a tip that cannot be
// tied to any suspect.
func NoSuspect() *errors.AppError {
	return errors.Validation("suspect not found for reward calculation", map[string]string{"field": "suspect_id"})
}

// CodeTaken is returned by storage when a generated code is already used.
func CodeTaken(code string) *errors.AppError {
	err := errors.Conflict("payout code already in use")
	err.Details = map[string]string{"code": code}
	return err
}
