package domain

import (
	"strings"
	"time"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// VerdictResult is the court's decision for one suspect
type VerdictResult string

const (
	VerdictGuilty   VerdictResult = "GUILTY"
	VerdictInnocent VerdictResult = "INNOCENT"
)

// Verdict is the final ruling on a suspect within a case. There is at most
// one per (case, suspect).
type Verdict struct {
	ID          types.ID      `json:"id"`
	CaseID      types.ID      `json:"case_id"`
	SuspectID   types.ID      `json:"suspect_id"`
	JudgeID     types.ID      `json:"judge_id"`
	Result      VerdictResult `json:"result"`
	Title       string        `json:"title"`
	Punishment  string        `json:"punishment,omitempty"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"created_at"`
}

// VerdictInput carries the judge's ruling
type VerdictInput struct {
	SuspectID   types.ID      `json:"suspect_id"`
	Result      VerdictResult `json:"result"`
	Title       string        `json:"title"`
	Punishment  string        `json:"punishment"`
	Description string        `json:"description"`
}

// NewVerdict records a judge's ruling. Uniqueness per (case, suspect) is
// checked by the caller against storage.
func NewVerdict(actor auth.Actor, caseID types.ID, suspect *Suspect, in VerdictInput, now time.Time) (*Verdict, error) {
	if !actor.Roles.HasAny(auth.JudgeOnly...) {
		return nil, errors.Forbidden("only judges can record verdicts")
	}
	if suspect.CaseID != caseID {
		return nil, errors.Validation("suspect does not belong to this case", map[string]string{
			"suspect_id": suspect.ID.String(),
		})
	}

	result := VerdictResult(strings.ToUpper(strings.TrimSpace(string(in.Result))))
	if result != VerdictGuilty && result != VerdictInnocent {
		return nil, errors.Validation("result must be GUILTY or INNOCENT", map[string]string{"field": "result"})
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.Validation("verdict title is required", map[string]string{"field": "title"})
	}

	return &Verdict{
		ID:          types.NewID(),
		CaseID:      caseID,
		SuspectID:   suspect.ID,
		JudgeID:     actor.ID,
		Result:      result,
		Title:       title,
		Punishment:  in.Punishment,
		Description: in.Description,
		CreatedAt:   now,
	}, nil
}

// DuplicateVerdict is the error for a second ruling on the same pair.
func DuplicateVerdict(caseID, suspectID types.ID) error {
	return errors.Validation("a verdict already exists for this suspect in this case", map[string]string{
		"case_id":    caseID.String(),
		"suspect_id": suspectID.String(),
	})
}
