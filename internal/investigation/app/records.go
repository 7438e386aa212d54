package app

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/investigation/domain"
	"github.com/noirepd/precinct/internal/shared/types"
)

type InterrogationInput struct {
	Score      int    `json:"score"`
	Transcript string `json:"transcript"`
}

type FeedbackInput struct {
	FinalScore  int    `json:"final_score"`
	IsConfirmed bool   `json:"is_confirmed"`
	Notes       string `json:"notes"`
}

type EvidenceInput struct {
	Kind        domain.EvidenceKind `json:"kind"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Details     json.RawMessage     `json:"details"`
}

type VerifyInput struct {
	MedicalFollowUp  string `json:"medical_follow_up"`
	DatabaseFollowUp string `json:"database_follow_up"`
}

// --- Interrogations ---

// RecordInterrogation stores the questioning of an arrested suspect
func (s *Service) RecordInterrogation(ctx context.Context, actor auth.Actor, suspectID types.ID, in InterrogationInput) (*domain.Interrogation, error) {
	suspect, err := s.repo.FindSuspect(ctx, suspectID)
	if err != nil {
		return nil, err
	}

	i, err := domain.NewInterrogation(actor, suspect, in.Score, in.Transcript, s.now())
	s.authorize("record_interrogation", err)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveInterrogation(ctx, i); err != nil {
		return nil, err
	}

	zap.S().Infow("interrogation recorded",
		"interrogation_id", i.ID,
		"suspect_id", suspect.ID,
		"score", i.Score,
		"actor", actor.ID,
	)
	return i, nil
}

// GiveFeedback attaches the captain's assessment once
func (s *Service) GiveFeedback(ctx context.Context, actor auth.Actor, id types.ID, in FeedbackInput) (*domain.Interrogation, error) {
	i, err := s.repo.FindInterrogation(ctx, id)
	if err != nil {
		return nil, err
	}

	err = i.GiveFeedback(actor, in.FinalScore, in.IsConfirmed, in.Notes, s.now())
	s.authorize("interrogation_feedback", err)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveFeedback(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

func (s *Service) ListInterrogations(ctx context.Context, actor auth.Actor, suspectID types.ID) ([]domain.Interrogation, error) {
	if err := canRead(actor); err != nil {
		return nil, err
	}
	return s.repo.ListInterrogations(ctx, suspectID)
}

// --- Verdicts ---

// RecordVerdict stores a judge's ruling. A second ruling on the same
// suspect within the case is refused here and by storage.
func (s *Service) RecordVerdict(ctx context.Context, actor auth.Actor, caseID types.ID, in domain.VerdictInput) (*domain.Verdict, error) {
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	suspect, err := s.repo.FindSuspect(ctx, in.SuspectID)
	if err != nil {
		return nil, err
	}

	v, err := domain.NewVerdict(actor, c.ID, suspect, in, s.now())
	s.authorize("record_verdict", err)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.VerdictExists(ctx, c.ID, suspect.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.DuplicateVerdict(c.ID, suspect.ID)
	}
	if err := s.repo.SaveVerdict(ctx, v); err != nil {
		return nil, err
	}

	zap.S().Infow("verdict recorded",
		"verdict_id", v.ID,
		"case_id", c.ID,
		"suspect_id", suspect.ID,
		"result", v.Result,
		"judge", actor.ID,
	)
	s.notify(ctx, actor, "verdict.recorded", v.ID, map[string]any{
		"case_id":    c.ID,
		"suspect_id": suspect.ID,
		"result":     v.Result,
	})
	return v, nil
}

func (s *Service) ListVerdicts(ctx context.Context, actor auth.Actor, caseID types.ID) ([]domain.Verdict, error) {
	if err := canRead(actor); err != nil {
		return nil, err
	}
	return s.repo.ListVerdicts(ctx, caseID)
}

// --- Evidence ---

// RecordEvidence stores evidence of the given kind on a case
func (s *Service) RecordEvidence(ctx context.Context, actor auth.Actor, caseID types.ID, in EvidenceInput) (*domain.Evidence, error) {
	c, err := s.cases.FindByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	details, err := domain.DecodeDetails(in.Kind, in.Details)
	if err != nil {
		return nil, err
	}

	e, err := domain.NewEvidence(actor, c.ID, c.Status.IsTerminal(), in.Title, in.Description, details, s.now())
	s.authorize("record_evidence", err)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveEvidence(ctx, e); err != nil {
		return nil, err
	}

	zap.S().Infow("evidence recorded",
		"evidence_id", e.ID,
		"case_id", c.ID,
		"kind", e.Kind(),
		"actor", actor.ID,
	)
	s.notify(ctx, actor, "evidence.recorded", e.ID, map[string]any{
		"case_id": c.ID,
		"kind":    e.Kind(),
	})
	return e, nil
}

// VerifyBiological records the coroner's verification
func (s *Service) VerifyBiological(ctx context.Context, actor auth.Actor, id types.ID, in VerifyInput) (*domain.Evidence, error) {
	return s.updateEvidence(ctx, "verify_evidence", id, func(e *domain.Evidence) error {
		return e.VerifyBiological(actor, in.MedicalFollowUp, in.DatabaseFollowUp)
	})
}

// ToggleBoard pins or unpins evidence on the detective board
func (s *Service) ToggleBoard(ctx context.Context, actor auth.Actor, id types.ID) (*domain.Evidence, error) {
	return s.updateEvidence(ctx, "toggle_board", id, func(e *domain.Evidence) error {
		return e.ToggleBoard(actor)
	})
}

func (s *Service) ListEvidence(ctx context.Context, actor auth.Actor, caseID types.ID, kind *domain.EvidenceKind) ([]domain.Evidence, error) {
	if err := canRead(actor); err != nil {
		return nil, err
	}
	return s.repo.ListEvidence(ctx, caseID, kind)
}

// --- Board ---

// ToggleSuspectBoard pins or unpins a suspect on the detective board
func (s *Service) ToggleSuspectBoard(ctx context.Context, actor auth.Actor, id types.ID) (*domain.Suspect, error) {
	var out *domain.Suspect
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		suspect, err := s.repo.FindSuspect(ctx, id)
		if err != nil {
			return err
		}
		if err := suspect.ToggleBoard(actor, s.now()); err != nil {
			return err
		}
		if err := s.repo.UpdateSuspect(ctx, suspect); err != nil {
			return err
		}
		out = suspect
		return nil
	})
	s.authorize("toggle_board", err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConnectOnBoard draws a connection between two records of an open case
func (s *Service) ConnectOnBoard(ctx context.Context, actor auth.Actor, caseID types.ID, in domain.BoardConnectionInput) (*domain.BoardConnection, error) {
	c, err := s.openCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	conn, err := domain.NewBoardConnection(actor, c.ID, in, s.now())
	s.authorize("connect_board", err)
	if err != nil {
		return nil, err
	}
	fromCase, err := s.endCase(ctx, conn.From())
	if err != nil {
		return nil, err
	}
	toCase, err := s.endCase(ctx, conn.To())
	if err != nil {
		return nil, err
	}
	if err := conn.CheckEnds(fromCase, toCase); err != nil {
		return nil, err
	}
	if err := s.repo.SaveBoardConnection(ctx, conn); err != nil {
		return nil, err
	}

	zap.S().Infow("board connection drawn",
		"connection_id", conn.ID,
		"case_id", c.ID,
		"actor", actor.ID,
	)
	s.notify(ctx, actor, "board.connected", conn.ID, map[string]any{
		"case_id": c.ID,
	})
	return conn, nil
}

// Disconnect removes a board connection
func (s *Service) Disconnect(ctx context.Context, actor auth.Actor, id types.ID) error {
	err := domain.CanArrangeBoard(actor)
	s.authorize("disconnect_board", err)
	if err != nil {
		return err
	}
	conn, err := s.repo.FindBoardConnection(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.openCase(ctx, conn.CaseID); err != nil {
		return err
	}
	if err := s.repo.DeleteBoardConnection(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, actor, "board.disconnected", id, map[string]any{
		"case_id": conn.CaseID,
	})
	return nil
}

func (s *Service) ListBoardConnections(ctx context.Context, actor auth.Actor, caseID types.ID) ([]domain.BoardConnection, error) {
	if err := domain.CanArrangeBoard(actor); err != nil {
		return nil, err
	}
	if _, err := s.cases.FindByID(ctx, caseID); err != nil {
		return nil, err
	}
	return s.repo.ListBoardConnections(ctx, caseID)
}

// Board collects the pinned suspects and evidence of a case together with
// its connections.
func (s *Service) Board(ctx context.Context, actor auth.Actor, caseID types.ID) (*domain.Board, error) {
	connections, err := s.ListBoardConnections(ctx, actor, caseID)
	if err != nil {
		return nil, err
	}
	suspects, err := s.repo.ListSuspects(ctx, domain.SuspectFilter{CaseID: caseID})
	if err != nil {
		return nil, err
	}
	evidence, err := s.repo.ListEvidence(ctx, caseID, nil)
	if err != nil {
		return nil, err
	}

	board := &domain.Board{
		CaseID:      caseID,
		Suspects:    []domain.Suspect{},
		Evidence:    []domain.Evidence{},
		Connections: connections,
	}
	for _, sp := range suspects {
		if sp.IsOnBoard {
			board.Suspects = append(board.Suspects, sp)
		}
	}
	for _, e := range evidence {
		if e.IsOnBoard {
			board.Evidence = append(board.Evidence, e)
		}
	}
	return board, nil
}

// endCase loads the record behind one end of a connection and returns its
// case.
func (s *Service) endCase(ctx context.Context, end domain.BoardEnd) (types.ID, error) {
	if !end.SuspectID.IsZero() {
		sp, err := s.repo.FindSuspect(ctx, end.SuspectID)
		if err != nil {
			return "", err
		}
		return sp.CaseID, nil
	}
	e, err := s.repo.FindEvidence(ctx, end.EvidenceID)
	if err != nil {
		return "", err
	}
	return e.CaseID, nil
}

func (s *Service) updateEvidence(ctx context.Context, action string, id types.ID, apply func(*domain.Evidence) error) (*domain.Evidence, error) {
	var out *domain.Evidence
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.repo.FindEvidence(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(e); err != nil {
			return err
		}
		if err := s.repo.UpdateEvidence(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	s.authorize(action, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}
