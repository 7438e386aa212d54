package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

const maxConnectionDescription = 255

// CanArrangeBoard reports whether the actor may read or change a case's
// detective board.
func CanArrangeBoard(actor auth.Actor) error {
	if !actor.Roles.HasAny(auth.DetectiveGroup...) {
		return errors.Forbidden("only detectives can arrange the board")
	}
	return nil
}

// BoardEnd is one side of a board connection. Exactly one of the two IDs
// is set on a valid end.
type BoardEnd struct {
	EvidenceID types.ID
	SuspectID  types.ID
}

func (e BoardEnd) set() int {
	n := 0
	if !e.EvidenceID.IsZero() {
		n++
	}
	if !e.SuspectID.IsZero() {
		n++
	}
	return n
}

// BoardConnectionInput names both ends of a new connection
type BoardConnectionInput struct {
	FromEvidenceID types.ID `json:"from_evidence_id"`
	FromSuspectID  types.ID `json:"from_suspect_id"`
	ToEvidenceID   types.ID `json:"to_evidence_id"`
	ToSuspectID    types.ID `json:"to_suspect_id"`
	Description    string   `json:"description"`
}

// BoardConnection is a line a detective draws between two pinned records
// of the same case.
type BoardConnection struct {
	ID             types.ID  `json:"id"`
	CaseID         types.ID  `json:"case_id"`
	FromEvidenceID types.ID  `json:"from_evidence_id,omitempty"`
	FromSuspectID  types.ID  `json:"from_suspect_id,omitempty"`
	ToEvidenceID   types.ID  `json:"to_evidence_id,omitempty"`
	ToSuspectID    types.ID  `json:"to_suspect_id,omitempty"`
	Description    string    `json:"description"`
	CreatedBy      types.ID  `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewBoardConnection checks the shape of a connection. The ends still have
// to be resolved and passed to CheckEnds before it is stored.
func NewBoardConnection(actor auth.Actor, caseID types.ID, in BoardConnectionInput, now time.Time) (*BoardConnection, error) {
	if err := CanArrangeBoard(actor); err != nil {
		return nil, err
	}

	c := &BoardConnection{
		ID:             types.NewID(),
		CaseID:         caseID,
		FromEvidenceID: in.FromEvidenceID,
		FromSuspectID:  in.FromSuspectID,
		ToEvidenceID:   in.ToEvidenceID,
		ToSuspectID:    in.ToSuspectID,
		Description:    strings.TrimSpace(in.Description),
		CreatedBy:      actor.ID,
		CreatedAt:      now,
	}
	if c.From().set() != 1 {
		return nil, errors.Validation("a connection starts at exactly one suspect or evidence", map[string]string{"side": "from"})
	}
	if c.To().set() != 1 {
		return nil, errors.Validation("a connection ends at exactly one suspect or evidence", map[string]string{"side": "to"})
	}
	if c.From() == c.To() {
		return nil, errors.Validation("a record cannot be connected to itself", nil)
	}
	if utf8.RuneCountInString(c.Description) > maxConnectionDescription {
		return nil, errors.Validation("description is too long", map[string]string{"field": "description"})
	}
	return c, nil
}

func (c *BoardConnection) From() BoardEnd {
	return BoardEnd{EvidenceID: c.FromEvidenceID, SuspectID: c.FromSuspectID}
}

func (c *BoardConnection) To() BoardEnd {
	return BoardEnd{EvidenceID: c.ToEvidenceID, SuspectID: c.ToSuspectID}
}

// CheckEnds takes the cases the two resolved ends belong to.
func (c *BoardConnection) CheckEnds(fromCase, toCase types.ID) error {
	if fromCase != c.CaseID || toCase != c.CaseID {
		return errors.Validation("both ends must belong to this case", map[string]string{
			"case_id": c.CaseID.String(),
		})
	}
	return nil
}

// Board is the detective board of one case: the pinned records and the
// connections drawn between them.
type Board struct {
	CaseID      types.ID          `json:"case_id"`
	Suspects    []Suspect         `json:"suspects"`
	Evidence    []Evidence        `json:"evidence"`
	Connections []BoardConnection `json:"connections"`
}
