package domain

import (
	"context"
	"time"

	"github.com/noirepd/precinct/internal/shared/types"
)

// Repository defines persistence for investigation records. Updates of
// versioned records are compare-and-swap on Version, like cases.
type Repository interface {
	// Suspects
	SaveSuspect(ctx context.Context, s *Suspect) error
	FindSuspect(ctx context.Context, id types.ID) (*Suspect, error)
	UpdateSuspect(ctx context.Context, s *Suspect) error
	ListSuspects(ctx context.Context, filter SuspectFilter) ([]Suspect, error)

	// LatestSuspectByNationalCode returns the most recently identified
	// suspect row carrying the code.
	LatestSuspectByNationalCode(ctx context.Context, code types.NationalCode) (*Suspect, error)

	// CountMainSuspects and ArrestMainSuspects back the case workflow.
	CountMainSuspects(ctx context.Context, caseID types.ID) (total, unarrested int, err error)
	ArrestMainSuspects(ctx context.Context, caseID, actorID types.ID, now time.Time) ([]types.ID, error)

	// Warrants
	SaveWarrant(ctx context.Context, w *Warrant) error
	FindWarrant(ctx context.Context, id types.ID) (*Warrant, error)
	UpdateWarrant(ctx context.Context, w *Warrant) error
	ListWarrants(ctx context.Context, caseID types.ID) ([]Warrant, error)

	// Interrogations. SaveFeedback fails with InvalidState when feedback
	// was stored concurrently.
	SaveInterrogation(ctx context.Context, i *Interrogation) error
	FindInterrogation(ctx context.Context, id types.ID) (*Interrogation, error)
	SaveFeedback(ctx context.Context, i *Interrogation) error
	ListInterrogations(ctx context.Context, suspectID types.ID) ([]Interrogation, error)

	// Verdicts. SaveVerdict fails with DuplicateVerdict on a second
	// ruling for the same pair.
	SaveVerdict(ctx context.Context, v *Verdict) error
	VerdictExists(ctx context.Context, caseID, suspectID types.ID) (bool, error)
	ListVerdicts(ctx context.Context, caseID types.ID) ([]Verdict, error)

	// Evidence
	SaveEvidence(ctx context.Context, e *Evidence) error
	FindEvidence(ctx context.Context, id types.ID) (*Evidence, error)
	UpdateEvidence(ctx context.Context, e *Evidence) error
	ListEvidence(ctx context.Context, caseID types.ID, kind *EvidenceKind) ([]Evidence, error)

	// Board connections, listed oldest first
	SaveBoardConnection(ctx context.Context, c *BoardConnection) error
	FindBoardConnection(ctx context.Context, id types.ID) (*BoardConnection, error)
	DeleteBoardConnection(ctx context.Context, id types.ID) error
	ListBoardConnections(ctx context.Context, caseID types.ID) ([]BoardConnection, error)
}

// SuspectFilter narrows suspect listings. Zero values match everything.
type SuspectFilter struct {
	CaseID       types.ID
	Status       *SuspectStatus
	NationalCode types.NationalCode
}

// Matches applies the filter to one suspect; in-memory stores use it.
func (f SuspectFilter) Matches(s *Suspect) bool {
	if !f.CaseID.IsZero() && s.CaseID != f.CaseID {
		return false
	}
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if !f.NationalCode.IsZero() && s.NationalCode != f.NationalCode {
		return false
	}
	return true
}
