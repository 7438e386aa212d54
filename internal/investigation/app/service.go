// Package app runs the investigation workflows: suspects and their arrest
// lifecycle, warrants, interrogations, verdicts and evidence.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noirepd/precinct/internal/auth"
	casedomain "github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/investigation/domain"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/events"
	"github.com/noirepd/precinct/internal/shared/metrics"
	"github.com/noirepd/precinct/internal/shared/types"
)

// CaseReader loads the case an investigation record hangs off.
type CaseReader interface {
	FindByID(ctx context.Context, id types.ID) (*casedomain.Case, error)
}

// readers may list investigation records
var readers = append([]auth.Role{auth.RoleJudge, auth.RoleCoroner}, auth.OfficerOrHigher...)

// Service implements the investigation workflows
type Service struct {
	repo      domain.Repository
	cases     CaseReader
	tx        database.Transactor
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo domain.Repository, cases CaseReader, tx database.Transactor, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		cases:     cases,
		tx:        tx,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// --- Inputs ---

type WarrantInput struct {
	SuspectID types.ID           `json:"suspect_id"`
	Type      domain.WarrantType `json:"type"`
	Reason    string             `json:"reason"`
}

type ReviewInput struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

type SetMainInput struct {
	IsMainSuspect bool `json:"is_main_suspect"`
}

// --- Suspects ---

// AddSuspect identifies a suspect on an open case
func (s *Service) AddSuspect(ctx context.Context, actor auth.Actor, caseID types.ID, in domain.SuspectInput) (*domain.Suspect, error) {
	c, err := s.openCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	suspect, err := domain.NewSuspect(actor, c.ID, in, c.Status == casedomain.StatusActive, s.now())
	s.authorize("add_suspect", err)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveSuspect(ctx, suspect); err != nil {
		return nil, err
	}

	zap.S().Infow("suspect added",
		"suspect_id", suspect.ID,
		"case_id", c.ID,
		"main", suspect.IsMainSuspect,
		"actor", actor.ID,
	)
	s.notify(ctx, actor, "suspect.added", suspect.ID, map[string]any{
		"case_id":         c.ID,
		"is_main_suspect": suspect.IsMainSuspect,
	})
	return suspect, nil
}

func (s *Service) GetSuspect(ctx context.Context, actor auth.Actor, id types.ID) (*domain.Suspect, error) {
	if err := canRead(actor); err != nil {
		return nil, err
	}
	return s.repo.FindSuspect(ctx, id)
}

func (s *Service) ListSuspects(ctx context.Context, actor auth.Actor, filter domain.SuspectFilter) ([]domain.Suspect, error) {
	if err := canRead(actor); err != nil {
		return nil, err
	}
	return s.repo.ListSuspects(ctx, filter)
}

// SetMainSuspect flags a suspect as main while its case is ACTIVE
func (s *Service) SetMainSuspect(ctx context.Context, actor auth.Actor, id types.ID, in SetMainInput) (*domain.Suspect, error) {
	var out *domain.Suspect
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		suspect, err := s.repo.FindSuspect(ctx, id)
		if err != nil {
			return err
		}
		c, err := s.cases.FindByID(ctx, suspect.CaseID)
		if err != nil {
			return err
		}
		if err := suspect.SetMain(actor, in.IsMainSuspect, c.Status == casedomain.StatusActive, s.now()); err != nil {
			return err
		}
		if err := s.repo.UpdateSuspect(ctx, suspect); err != nil {
			return err
		}
		out = suspect
		return nil
	})
	s.authorize("set_main_suspect", err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkArrested completes an arrest
func (s *Service) MarkArrested(ctx context.Context, actor auth.Actor, id types.ID) (*domain.Suspect, error) {
	var out *domain.Suspect
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		suspect, err := s.repo.FindSuspect(ctx, id)
		if err != nil {
			return err
		}
		if err := suspect.MarkArrested(actor, s.now()); err != nil {
			return err
		}
		if err := s.repo.UpdateSuspect(ctx, suspect); err != nil {
			return err
		}
		out = suspect
		return nil
	})
	s.authorize("mark_arrested", err)
	if err != nil {
		return nil, err
	}

	s.suspectMoved(ctx, actor, out, domain.SuspectUnderArrest, domain.TriggerManual)
	return out, nil
}

// --- Warrants ---

// RequestWarrant files a warrant on an open case
func (s *Service) RequestWarrant(ctx context.Context, actor auth.Actor, caseID types.ID, in WarrantInput) (*domain.Warrant, error) {
	c, err := s.openCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	var target *domain.Suspect
	if !in.SuspectID.IsZero() {
		if target, err = s.repo.FindSuspect(ctx, in.SuspectID); err != nil {
			return nil, err
		}
	}

	w, err := domain.NewWarrant(actor, c.ID, target, in.Type, in.Reason, s.now())
	s.authorize("request_warrant", err)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveWarrant(ctx, w); err != nil {
		return nil, err
	}

	zap.S().Infow("warrant requested",
		"warrant_id", w.ID,
		"case_id", c.ID,
		"type", w.Type,
		"actor", actor.ID,
	)
	return w, nil
}

// ReviewWarrant approves or rejects a pending warrant. Approval places an
// IDENTIFIED target under arrest in the same transaction.
func (s *Service) ReviewWarrant(ctx context.Context, actor auth.Actor, id types.ID, in ReviewInput) (*domain.Warrant, error) {
	now := s.now()
	var (
		out    *domain.Warrant
		target *domain.Suspect
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		w, err := s.repo.FindWarrant(ctx, id)
		if err != nil {
			return err
		}
		if err := w.Review(actor, in.Approved, in.Notes, now); err != nil {
			return err
		}
		if err := s.repo.UpdateWarrant(ctx, w); err != nil {
			return err
		}
		out = w

		if w.Status != domain.WarrantApproved || w.SuspectID.IsZero() {
			return nil
		}
		suspect, err := s.repo.FindSuspect(ctx, w.SuspectID)
		if err != nil {
			return err
		}
		if !suspect.PlaceUnderArrest(now) {
			return nil
		}
		if err := s.repo.UpdateSuspect(ctx, suspect); err != nil {
			return err
		}
		target = suspect
		return nil
	})
	s.authorize("review_warrant", err)
	if err != nil {
		return nil, err
	}

	zap.S().Infow("warrant reviewed",
		"warrant_id", out.ID,
		"status", out.Status,
		"actor", actor.ID,
	)
	s.notify(ctx, actor, "warrant.reviewed", out.ID, map[string]any{
		"case_id":    out.CaseID,
		"status":     out.Status,
		"suspect_id": out.SuspectID,
	})
	if target != nil {
		s.suspectMoved(ctx, actor, target, domain.SuspectIdentified, domain.TriggerWarrant)
	}
	return out, nil
}

func (s *Service) ListWarrants(ctx context.Context, actor auth.Actor, caseID types.ID) ([]domain.Warrant, error) {
	if err := canRead(actor); err != nil {
		return nil, err
	}
	return s.repo.ListWarrants(ctx, caseID)
}

// --- helpers ---

// openCase loads a case that still accepts investigation records
func (s *Service) openCase(ctx context.Context, caseID types.ID) (*casedomain.Case, error) {
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status.IsTerminal() {
		return nil, errors.InvalidState("case is closed", string(c.Status))
	}
	return c, nil
}

func canRead(actor auth.Actor) error {
	if !actor.Roles.HasAny(readers...) {
		return errors.Forbidden("investigation records are restricted to police and court roles")
	}
	return nil
}

func (s *Service) authorize(action string, err error) {
	if err == nil || errors.IsForbidden(err) {
		metrics.RecordAuthorizationDecision("investigation", action, err == nil)
	}
}

func (s *Service) suspectMoved(ctx context.Context, actor auth.Actor, suspect *domain.Suspect, from domain.SuspectStatus, trigger string) {
	metrics.RecordSuspectTransition(string(from), string(suspect.Status), trigger)
	zap.S().Infow("suspect status changed",
		"suspect_id", suspect.ID,
		"from", from,
		"to", suspect.Status,
		"trigger", trigger,
		"actor", actor.ID,
	)
	s.notify(ctx, actor, "suspect.status_changed", suspect.ID, map[string]any{
		"case_id": suspect.CaseID,
		"from":    from,
		"to":      suspect.Status,
		"trigger": trigger,
	})
}

func (s *Service) notify(ctx context.Context, actor auth.Actor, eventType string, subject types.ID, data map[string]any) {
	events.Notify(ctx, s.publisher, events.NewEvent(eventType, "investigation", subject, data).WithActor(actor.ID))
}
