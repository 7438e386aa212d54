// Package app runs the reward workflow for citizen tips, from submission
// through the two reviews to payout and payout verification.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noirepd/precinct/internal/auth"
	invdomain "github.com/noirepd/precinct/internal/investigation/domain"
	"github.com/noirepd/precinct/internal/reward/domain"
	"github.com/noirepd/precinct/internal/shared/config"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/events"
	"github.com/noirepd/precinct/internal/shared/metrics"
	"github.com/noirepd/precinct/internal/shared/types"
)

// SuspectFinder resolves the suspect a tip is about
type SuspectFinder interface {
	FindSuspect(ctx context.Context, id types.ID) (*invdomain.Suspect, error)
	LatestSuspectByNationalCode(ctx context.Context, code types.NationalCode) (*invdomain.Suspect, error)
}

// RewardCalculator prices a suspect. scoring.Ranker implements it.
type RewardCalculator interface {
	RewardAmount(ctx context.Context, suspectID types.ID, now time.Time) (int64, error)
}

// Service implements the reward report workflow. Every transition is a
// single versioned write of one report.
type Service struct {
	repo      domain.Repository
	suspects  SuspectFinder
	calc      RewardCalculator
	codes     *domain.CodeGenerator
	attempts  int
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo domain.Repository, suspects SuspectFinder, calc RewardCalculator, cfg config.WorkflowConfig, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	attempts := cfg.CodeAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Service{
		repo:      repo,
		suspects:  suspects,
		calc:      calc,
		codes:     domain.NewCodeGenerator(cfg),
		attempts:  attempts,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithCodes replaces the payout code generator.
func (s *Service) WithCodes(codes *domain.CodeGenerator) *Service {
	s.codes = codes
	return s
}

type ReviewInput struct {
	Approved  bool     `json:"approved"`
	Notes     string   `json:"notes"`
	SuspectID types.ID `json:"suspect_id"`
}

type MarkPaidInput struct {
	TrackingCode string `json:"tracking_code"`
}

// PaymentResult is what the gateway callback reports back
type PaymentResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	TrackingCode string `json:"tracking_code"`
	Amount       int64  `json:"amount"`
}

// Payout is the verified view of an approved reward
type Payout struct {
	ReportID            types.ID           `json:"report_id"`
	TrackingCode        string             `json:"tracking_code"`
	RewardCode          string             `json:"reward_code"`
	RewardAmount        int64              `json:"reward_amount"`
	SuspectFullName     string             `json:"suspect_full_name"`
	SuspectNationalCode types.NationalCode `json:"suspect_national_code"`
	ReporterID          types.ID           `json:"reporter_id"`
	Status              domain.Status      `json:"status"`
	IsPaid              bool               `json:"is_paid"`
	PaidAt              *time.Time         `json:"paid_at,omitempty"`
}

// Submit files a new tip from any authenticated user
func (s *Service) Submit(ctx context.Context, actor auth.Actor, in domain.SubmitInput) (*domain.Report, error) {
	rep, err := domain.NewReport(actor, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, rep); err != nil {
		return nil, err
	}

	metrics.RecordRewardStatus(string(rep.Status))
	zap.S().Infow("reward report submitted",
		"report_id", rep.ID,
		"reporter", actor.ID,
		"has_suspect", !rep.SuspectID.IsZero() || !rep.SuspectNationalCode.IsZero(),
	)
	return rep, nil
}

// Get returns one report. Reporters only see their own.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id types.ID) (*domain.Report, error) {
	rep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeAll(actor) && rep.ReporterID != actor.ID {
		return nil, errors.NotFound("reward report", id.String())
	}
	return rep, nil
}

// List returns every report to police and superusers, and the caller's
// own reports to everyone else.
func (s *Service) List(ctx context.Context, actor auth.Actor, status *domain.Status) ([]domain.Report, error) {
	filter := domain.ListFilter{Status: status}
	if !canSeeAll(actor) {
		filter.ReporterID = actor.ID
	}
	return s.repo.List(ctx, filter)
}

// OfficerReview is the first review of a tip
func (s *Service) OfficerReview(ctx context.Context, actor auth.Actor, id types.ID, in ReviewInput) (*domain.Report, error) {
	rep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := rep.Status

	err = rep.OfficerReview(actor, in.Approved, in.Notes, in.SuspectID, s.now())
	s.authorize("officer_review", err)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rep); err != nil {
		return nil, err
	}

	s.reviewed(ctx, actor, rep, from)
	return rep, nil
}

// DetectiveReview makes the final decision. Approval resolves the suspect,
// prices the reward and issues payout codes; when no suspect can be
// resolved the report stays where it was.
func (s *Service) DetectiveReview(ctx context.Context, actor auth.Actor, id types.ID, in ReviewInput) (*domain.Report, error) {
	rep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := rep.Status
	now := s.now()

	err = rep.CheckDetectiveReview(actor)
	s.authorize("detective_review", err)
	if err != nil {
		return nil, err
	}

	if !in.Approved {
		if err := rep.Reject(actor, in.Notes, now); err != nil {
			return nil, err
		}
		if err := s.repo.Update(ctx, rep); err != nil {
			return nil, err
		}
		s.reviewed(ctx, actor, rep, from)
		return rep, nil
	}

	suspect, err := s.resolveSuspect(ctx, rep, in.SuspectID)
	if err != nil {
		return nil, err
	}
	amount, err := s.calc.RewardAmount(ctx, suspect.ID, now)
	if err != nil {
		return nil, err
	}

	approved, err := s.approve(ctx, actor, rep, in.Notes, suspect, amount, now)
	if err != nil {
		return nil, err
	}

	metrics.RecordRewardApproved(approved.RewardAmount)
	s.reviewed(ctx, actor, approved, from)
	return approved, nil
}

// MarkPaid records a payout handed over at the station
func (s *Service) MarkPaid(ctx context.Context, actor auth.Actor, id types.ID, in MarkPaidInput) (*domain.Report, error) {
	rep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = rep.MarkPaid(actor, in.TrackingCode, s.now())
	s.authorize("mark_paid", err)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rep); err != nil {
		return nil, err
	}

	s.paid(ctx, actor.ID, rep, "police")
	return rep, nil
}

// PaymentCallback applies the gateway's verdict on a payment. Only "OK"
// pays; anything else leaves the report untouched.
func (s *Service) PaymentCallback(ctx context.Context, id types.ID, status string) (*PaymentResult, error) {
	rep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &PaymentResult{TrackingCode: rep.TrackingCode, Amount: rep.RewardAmount}
	if strings.TrimSpace(status) != "OK" {
		result.Message = "payment was cancelled or failed"
		zap.S().Infow("payment not completed", "report_id", rep.ID, "status", status)
		return result, nil
	}

	if err := rep.ConfirmGatewayPayment(s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rep); err != nil {
		return nil, err
	}

	s.paid(ctx, "", rep, domain.PayerGateway)
	result.Success = true
	result.Message = "payment completed"
	return result, nil
}

// VerifyPayout checks a claimed payout against the suspect's national code.
// An unknown code and a mismatched national code fail identically.
func (s *Service) VerifyPayout(ctx context.Context, actor auth.Actor, nationalCode, code string) (*Payout, error) {
	allowed := actor.Roles.HasAny(auth.OfficerOrHigher...)
	metrics.RecordAuthorizationDecision("reward", "verify_payout", allowed)
	if !allowed {
		return nil, errors.Forbidden("only officers and above can verify payouts")
	}

	code = strings.TrimSpace(code)
	national, err := types.ParseNationalCode(nationalCode)
	if err != nil || national.IsZero() || code == "" {
		return nil, errors.Validation("national code and tracking or reward code are required", nil)
	}

	rep, err := s.repo.FindApprovedByCode(ctx, code)
	if errors.IsNotFound(err) {
		return nil, payoutNotFound()
	}
	if err != nil {
		return nil, err
	}

	stored := rep.SuspectNationalCode
	if stored.IsZero() && !rep.SuspectID.IsZero() {
		suspect, err := s.suspects.FindSuspect(ctx, rep.SuspectID)
		if err != nil && !errors.IsNotFound(err) {
			return nil, err
		}
		if suspect != nil {
			stored = suspect.NationalCode
		}
	}
	if stored != national {
		zap.S().Infow("payout verification mismatch", "report_id", rep.ID, "actor", actor.ID)
		return nil, payoutNotFound()
	}

	return &Payout{
		ReportID:            rep.ID,
		TrackingCode:        rep.TrackingCode,
		RewardCode:          rep.RewardCode,
		RewardAmount:        rep.RewardAmount,
		SuspectFullName:     rep.SuspectFullName,
		SuspectNationalCode: stored,
		ReporterID:          rep.ReporterID,
		Status:              rep.Status,
		IsPaid:              rep.IsPaid,
		PaidAt:              rep.PaidAt,
	}, nil
}

// resolveSuspect prefers an explicit suspect id, then the most recently
// identified suspect carrying the tip's national code.
func (s *Service) resolveSuspect(ctx context.Context, rep *domain.Report, explicit types.ID) (domain.SuspectRef, error) {
	id := explicit
	if id.IsZero() {
		id = rep.SuspectID
	}

	var (
		suspect *invdomain.Suspect
		err     error
	)
	switch {
	case !id.IsZero():
		suspect, err = s.suspects.FindSuspect(ctx, id)
	case !rep.SuspectNationalCode.IsZero():
		suspect, err = s.suspects.LatestSuspectByNationalCode(ctx, rep.SuspectNationalCode)
	default:
		return domain.SuspectRef{}, domain.NoSuspect()
	}
	if errors.IsNotFound(err) {
		return domain.SuspectRef{}, domain.NoSuspect()
	}
	if err != nil {
		return domain.SuspectRef{}, err
	}

	return domain.SuspectRef{
		ID:           suspect.ID,
		NationalCode: suspect.NationalCode,
		FullName:     suspect.FullName(),
	}, nil
}

// approve issues fresh codes and writes the approval. Codes are checked
// before the write, and a collision at write time starts over with new ones.
func (s *Service) approve(ctx context.Context, actor auth.Actor, rep *domain.Report, notes string, suspect domain.SuspectRef, amount int64, now time.Time) (*domain.Report, error) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		tracking, err := s.unusedCode(ctx, s.codes.Tracking)
		if err != nil {
			return nil, err
		}
		reward, err := s.unusedCode(ctx, s.codes.Reward)
		if err != nil {
			return nil, err
		}

		candidate := *rep
		err = candidate.Approve(actor, notes, domain.Approval{
			Suspect:      suspect,
			Amount:       amount,
			TrackingCode: tracking,
			RewardCode:   reward,
		}, now)
		if err != nil {
			return nil, err
		}

		err = s.repo.Update(ctx, &candidate)
		if errors.IsConflict(err) {
			zap.S().Warnw("payout code taken at write, regenerating",
				"report_id", rep.ID,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		return &candidate, nil
	}
	return nil, errors.Internal(fmt.Errorf("no unused payout code after %d attempts", s.attempts))
}

func (s *Service) unusedCode(ctx context.Context, generate func() (string, error)) (string, error) {
	for i := 0; i < s.attempts; i++ {
		code, err := generate()
		if err != nil {
			return "", errors.Internal(err)
		}
		used, err := s.repo.CodeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !used {
			return code, nil
		}
	}
	return "", errors.Internal(fmt.Errorf("no unused payout code after %d attempts", s.attempts))
}

func canSeeAll(actor auth.Actor) bool {
	return actor.Roles.HasAny(auth.OfficerOrHigher...)
}

func payoutNotFound() error {
	return errors.NotFound("reward", "")
}

func (s *Service) authorize(action string, err error) {
	if err == nil || errors.IsForbidden(err) {
		metrics.RecordAuthorizationDecision("reward", action, err == nil)
	}
}

func (s *Service) reviewed(ctx context.Context, actor auth.Actor, rep *domain.Report, from domain.Status) {
	metrics.RecordRewardStatus(string(rep.Status))
	zap.S().Infow("reward report reviewed",
		"report_id", rep.ID,
		"from", from,
		"to", rep.Status,
		"amount", rep.RewardAmount,
		"actor", actor.ID,
	)
	events.Notify(ctx, s.publisher, events.NewEvent("reward.reviewed", "reward", rep.ID, map[string]any{
		"from":          from,
		"to":            rep.Status,
		"suspect_id":    rep.SuspectID,
		"reward_amount": rep.RewardAmount,
	}).WithActor(actor.ID))
}

func (s *Service) paid(ctx context.Context, actorID types.ID, rep *domain.Report, channel string) {
	metrics.RecordRewardPayout(channel)
	zap.S().Infow("reward paid",
		"report_id", rep.ID,
		"amount", rep.RewardAmount,
		"channel", channel,
		"paid_by", rep.PaidBy,
	)
	events.Notify(ctx, s.publisher, events.NewEvent("reward.paid", "reward", rep.ID, map[string]any{
		"amount":  rep.RewardAmount,
		"channel": channel,
	}).WithActor(actorID))
}
