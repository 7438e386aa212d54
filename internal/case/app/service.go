// Package app runs case workflow transitions against storage: load, guard,
// compare-and-swap write, then notify.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/shared/config"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/events"
	"github.com/noirepd/precinct/internal/shared/metrics"
	"github.com/noirepd/precinct/internal/shared/types"
)

// SuspectGateway is the view of the suspect store the case workflow needs.
// The investigation repositories implement it.
type SuspectGateway interface {
	// CountMainSuspects returns how many main suspects the case has and how
	// many of those are not yet ARRESTED.
	CountMainSuspects(ctx context.Context, caseID types.ID) (total, unarrested int, err error)

	// ArrestMainSuspects moves every IDENTIFIED main suspect of the case to
	// UNDER_ARREST and returns the IDs it moved.
	ArrestMainSuspects(ctx context.Context, caseID, actorID types.ID, now time.Time) ([]types.ID, error)
}

// Service is the case state machine
type Service struct {
	repo      domain.Repository
	suspects  SuspectGateway
	directory auth.Directory
	tx        database.Transactor
	publisher events.Publisher
	rules     config.WorkflowConfig
	now       func() time.Time
}

// NewService creates a new case service
func NewService(
	repo domain.Repository,
	suspects SuspectGateway,
	directory auth.Directory,
	tx database.Transactor,
	publisher events.Publisher,
	rules config.WorkflowConfig,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		suspects:  suspects,
		directory: directory,
		tx:        tx,
		publisher: publisher,
		rules:     rules,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// --- Inputs ---

// FileComplaintInput opens a complaint. A missing crime level means LEVEL_3.
type FileComplaintInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	CrimeLevel  *domain.CrimeLevel `json:"crime_level,omitempty"`
}

type RegisterSceneInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	CrimeLevel  *domain.CrimeLevel `json:"crime_level,omitempty"`
	Scene       domain.Scene       `json:"scene"`
}

type ReviewInput struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

type TraineeReviewInput struct {
	Approved              bool       `json:"approved"`
	Notes                 string     `json:"notes"`
	ConfirmedComplainants []types.ID `json:"confirmed_complainants"`
}

type ResubmitInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// --- Creation ---

// FileComplaint opens a case from a citizen complaint
func (s *Service) FileComplaint(ctx context.Context, actor auth.Actor, in FileComplaintInput) (*domain.Case, error) {
	c, err := domain.NewComplaint(actor, in.Title, in.Description, crimeLevel(in.CrimeLevel), s.now())
	if err != nil {
		return nil, err
	}
	return s.create(ctx, actor, c)
}

// RegisterScene opens a case from a police-registered crime scene
func (s *Service) RegisterScene(ctx context.Context, actor auth.Actor, in RegisterSceneInput) (*domain.Case, error) {
	c, err := domain.NewSceneReport(actor, in.Title, in.Description, crimeLevel(in.CrimeLevel), in.Scene, s.now())
	metrics.RecordAuthorizationDecision("case", "register_scene", !errors.IsForbidden(err))
	if err != nil {
		return nil, err
	}
	return s.create(ctx, actor, c)
}

func crimeLevel(l *domain.CrimeLevel) domain.CrimeLevel {
	if l == nil {
		return domain.CrimeLevel3
	}
	return *l
}

func (s *Service) create(ctx context.Context, actor auth.Actor, c *domain.Case) (*domain.Case, error) {
	pending := append([]domain.CaseEvent(nil), c.PendingEvents()...)
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}

	metrics.RecordCaseCreated(string(c.Origin()), int(c.CrimeLevel))
	zap.S().Infow("case created",
		"case_id", c.ID,
		"origin", c.Origin(),
		"status", c.Status,
		"actor", actor.ID,
	)
	s.publish(ctx, pending)
	return c, nil
}

// --- Reads ---

// Get returns a case the actor may see. Cases outside the actor's
// visibility are reported as not found.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id types.ID) (*domain.Case, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.VisibilityFor(actor).Allows(c) {
		return nil, errors.NotFound("case", id.String())
	}
	return c, nil
}

// List returns the cases visible to the actor
func (s *Service) List(ctx context.Context, actor auth.Actor, filter domain.ListFilter) ([]domain.Case, int, error) {
	return s.repo.List(ctx, domain.VisibilityFor(actor), filter)
}

// Events returns the timeline of a visible case
func (s *Service) Events(ctx context.Context, actor auth.Actor, id types.ID, limit, offset int) ([]domain.CaseEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.GetEvents(ctx, id, limit, offset)
}

// Stats counts cases for the dashboard
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	return s.repo.Stats(ctx)
}

// --- Transitions ---

// TraineeReview screens a complaint
func (s *Service) TraineeReview(ctx context.Context, actor auth.Actor, id types.ID, in TraineeReviewInput) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "trainee_review", func(_ context.Context, c *domain.Case) error {
		return c.TraineeReview(actor, in.Approved, in.Notes, in.ConfirmedComplainants, s.rules.MaxSubmissionAttempts, s.now())
	}, nil)
}

// Resubmit sends a rejected complaint back to screening
func (s *Service) Resubmit(ctx context.Context, actor auth.Actor, id types.ID, in ResubmitInput) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "resubmit", func(_ context.Context, c *domain.Case) error {
		return c.Resubmit(actor, in.Title, in.Description, s.now())
	}, nil)
}

// OfficerReview approves or returns a case, ranking the reviewer against
// the creator's current roles.
func (s *Service) OfficerReview(ctx context.Context, actor auth.Actor, id types.ID, in ReviewInput) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "officer_review", func(ctx context.Context, c *domain.Case) error {
		creatorRoles, err := s.directory.RoleSet(ctx, c.CreatorID)
		if err != nil {
			return errors.Wrap(err, "failed to resolve case creator")
		}
		return c.OfficerReview(actor, creatorRoles, in.Approved, in.Notes, s.now())
	}, nil)
}

// SubmitResolution hands the case to the sergeant
func (s *Service) SubmitResolution(ctx context.Context, actor auth.Actor, id types.ID) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "submit_resolution", func(ctx context.Context, c *domain.Case) error {
		total, _, err := s.suspects.CountMainSuspects(ctx, c.ID)
		if err != nil {
			return err
		}
		return c.SubmitResolution(actor, total, s.now())
	}, nil)
}

// SergeantReview decides on a resolution. Approval arrests the main
// suspects in the same transaction as the case update.
func (s *Service) SergeantReview(ctx context.Context, actor auth.Actor, id types.ID, in ReviewInput) (*domain.Case, error) {
	now := s.now()
	var moved []types.ID
	c, err := s.mutate(ctx, actor, id, "sergeant_review", func(_ context.Context, c *domain.Case) error {
		return c.SergeantReview(actor, in.Approved, in.Notes, now)
	}, func(ctx context.Context, c *domain.Case) error {
		if c.Status != domain.StatusInPursuit {
			return nil
		}
		var err error
		moved, err = s.suspects.ArrestMainSuspects(ctx, c.ID, actor.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(moved) > 0 {
		for range moved {
			metrics.RecordSuspectTransition("IDENTIFIED", "UNDER_ARREST", "sergeant_review")
		}
		zap.S().Infow("main suspects under arrest",
			"case_id", c.ID,
			"suspects", moved,
			"actor", actor.ID,
		)
	}
	return c, nil
}

// ConfirmArrests closes the pursuit once every main suspect is arrested
func (s *Service) ConfirmArrests(ctx context.Context, actor auth.Actor, id types.ID) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "confirm_arrests", func(ctx context.Context, c *domain.Case) error {
		total, unarrested, err := s.suspects.CountMainSuspects(ctx, c.ID)
		if err != nil {
			return err
		}
		return c.ConfirmArrests(actor, total, unarrested, s.now())
	}, nil)
}

// ChiefReview is the final sign-off on critical cases
func (s *Service) ChiefReview(ctx context.Context, actor auth.Actor, id types.ID, in ReviewInput) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "chief_review", func(_ context.Context, c *domain.Case) error {
		return c.ChiefReview(actor, in.Approved, in.Notes, s.now())
	}, nil)
}

// AddComplainant links another user to the case
func (s *Service) AddComplainant(ctx context.Context, actor auth.Actor, id, userID types.ID) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "add_complainant", func(_ context.Context, c *domain.Case) error {
		return c.AddComplainant(actor, userID, s.now())
	}, nil)
}

type caseFunc func(ctx context.Context, c *domain.Case) error

// mutate loads the case, applies the transition, writes it back under the
// version check and runs after in the same transaction. Events are
// published only once the transaction has committed.
func (s *Service) mutate(ctx context.Context, actor auth.Actor, id types.ID, action string, apply, after caseFunc) (*domain.Case, error) {
	var (
		updated *domain.Case
		from    domain.Status
		pending []domain.CaseEvent
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		from = c.Status

		if err := apply(ctx, c); err != nil {
			return err
		}

		pending = append([]domain.CaseEvent(nil), c.PendingEvents()...)
		if err := s.repo.Update(ctx, c); err != nil {
			return err
		}
		if after != nil {
			if err := after(ctx, c); err != nil {
				return err
			}
		}
		updated = c
		return nil
	})

	metrics.RecordAuthorizationDecision("case", action, !errors.IsForbidden(err))
	if err != nil {
		zap.S().Debugw("case transition refused",
			"case_id", id,
			"action", action,
			"actor", actor.ID,
			"error", err,
		)
		return nil, err
	}

	if from != updated.Status {
		metrics.RecordCaseTransition(string(from), string(updated.Status))
		zap.S().Infow("case transition",
			"case_id", updated.ID,
			"action", action,
			"from", from,
			"to", updated.Status,
			"actor", actor.ID,
		)
	}
	s.publish(ctx, pending)
	return updated, nil
}

func (s *Service) publish(ctx context.Context, pending []domain.CaseEvent) {
	evts := make([]events.Event, 0, len(pending))
	for _, e := range pending {
		evts = append(evts, events.NewEvent("case."+string(e.Type), "case", e.CaseID, e.Data).WithActor(e.ActorID))
	}
	events.Notify(ctx, s.publisher, evts...)
}
