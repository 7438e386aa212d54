package domain

import (
	"fmt"
	"time"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

const (
	minScore = 1
	maxScore = 10
)

// interrogators may record an interrogation
var interrogators = append([]auth.Role{auth.RoleSergeant}, auth.DetectiveGroup...)

// Interrogation is the record of questioning an arrested suspect
type Interrogation struct {
	ID             types.ID  `json:"id"`
	CaseID         types.ID  `json:"case_id"`
	SuspectID      types.ID  `json:"suspect_id"`
	InterrogatorID types.ID  `json:"interrogator_id"`
	Score          int       `json:"score"`
	Transcript     string    `json:"transcript"`
	Feedback       *Feedback `json:"feedback,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Feedback is the captain's assessment of an interrogation
type Feedback struct {
	CaptainID   types.ID  `json:"captain_id"`
	FinalScore  int       `json:"final_score"`
	IsConfirmed bool      `json:"is_confirmed"`
	Notes       string    `json:"notes,omitempty"`
	GivenAt     time.Time `json:"given_at"`
}

func validScore(field string, score int) error {
	if score < minScore || score > maxScore {
		return errors.Validation(fmt.Sprintf("%s must be between %d and %d", field, minScore, maxScore),
			map[string]string{"field": field})
	}
	return nil
}

// NewInterrogation records questioning of an arrested suspect
func NewInterrogation(actor auth.Actor, suspect *Suspect, score int, transcript string, now time.Time) (*Interrogation, error) {
	if !actor.Roles.HasAny(interrogators...) {
		return nil, errors.Forbidden("only detectives and sergeants can record interrogations")
	}
	if suspect.Status != SuspectArrested {
		return nil, errors.Validation("suspect must be arrested before interrogation", map[string]string{
			"suspect_id": suspect.ID.String(),
			"status":     string(suspect.Status),
		})
	}
	if err := validScore("score", score); err != nil {
		return nil, err
	}

	return &Interrogation{
		ID:             types.NewID(),
		CaseID:         suspect.CaseID,
		SuspectID:      suspect.ID,
		InterrogatorID: actor.ID,
		Score:          score,
		Transcript:     transcript,
		CreatedAt:      now,
	}, nil
}

// GiveFeedback attaches the captain's assessment. Each interrogation takes
// feedback once.
func (i *Interrogation) GiveFeedback(actor auth.Actor, finalScore int, confirmed bool, notes string, now time.Time) error {
	if !actor.Roles.HasAny(auth.CaptainGroup...) {
		return errors.Forbidden("only captains can give interrogation feedback")
	}
	if i.Feedback != nil {
		return errors.InvalidState("interrogation already has feedback", "reviewed")
	}
	if err := validScore("final_score", finalScore); err != nil {
		return err
	}

	i.Feedback = &Feedback{
		CaptainID:   actor.ID,
		FinalScore:  finalScore,
		IsConfirmed: confirmed,
		Notes:       notes,
		GivenAt:     now,
	}
	return nil
}
