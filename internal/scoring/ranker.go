package scoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	casedomain "github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/metrics"
	"github.com/noirepd/precinct/internal/shared/types"
)

// Source reads snapshots for scoring. Reads may run outside a transaction.
type Source interface {
	Suspects(ctx context.Context) ([]SuspectSnapshot, error)
	// SuspectGroup returns the suspect and every other row sharing its
	// national code.
	SuspectGroup(ctx context.Context, suspectID types.ID) (SuspectSnapshot, []SuspectSnapshot, error)
	Verdicts(ctx context.Context) ([]VerdictSnapshot, error)
}

// CaseCounter is satisfied by the case repository
type CaseCounter interface {
	Stats(ctx context.Context) (casedomain.Stats, error)
}

// RewardCounter is satisfied by the reward repository
type RewardCounter interface {
	Totals(ctx context.Context) (RewardTotals, error)
}

// Board is a computed most-wanted list
type Board struct {
	Entries    []Entry   `json:"entries"`
	ComputedAt time.Time `json:"computed_at"`
}

// Ranker serves rankings and statistics. Most-wanted reads go through the
// cache when one is configured and fall back to a live computation.
type Ranker struct {
	source  Source
	engine  Engine
	cache   Cache
	ttl     time.Duration
	cases   CaseCounter
	rewards RewardCounter
	now     func() time.Time
}

// NewRanker creates a ranker. cache may be nil.
func NewRanker(source Source, engine Engine, cache Cache, ttl time.Duration, cases CaseCounter, rewards RewardCounter) *Ranker {
	return &Ranker{
		source:  source,
		engine:  engine,
		cache:   cache,
		ttl:     ttl,
		cases:   cases,
		rewards: rewards,
		now:     time.Now,
	}
}

// WithClock overrides the ranker's clock.
func (r *Ranker) WithClock(now func() time.Time) *Ranker {
	r.now = now
	return r
}

// Engine exposes the numeric rules for callers computing rewards.
func (r *Ranker) Engine() Engine {
	return r.engine
}

// RewardAmount computes the reward for information on a suspect as of now.
func (r *Ranker) RewardAmount(ctx context.Context, suspectID types.ID, now time.Time) (int64, error) {
	target, rows, err := r.source.SuspectGroup(ctx, suspectID)
	if err != nil {
		return 0, err
	}
	return r.engine.RewardAmountForSuspect(target, rows, now), nil
}

// MostWanted returns the cached board, computing it on a miss.
func (r *Ranker) MostWanted(ctx context.Context) (*Board, error) {
	if r.cache != nil {
		board, err := r.cache.Load(ctx)
		if err != nil {
			zap.S().Warnw("most wanted cache read failed", "error", err)
		} else if board != nil {
			return board, nil
		}
	}
	return r.Refresh(ctx)
}

// Refresh recomputes the board and stores it in the cache.
func (r *Ranker) Refresh(ctx context.Context) (*Board, error) {
	rows, err := r.source.Suspects(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load suspects")
	}

	now := r.now()
	board := &Board{Entries: r.engine.MostWanted(rows, now), ComputedAt: now}
	metrics.SetMostWantedEntries(len(board.Entries))

	if r.cache != nil {
		if err := r.cache.Store(ctx, board, r.ttl); err != nil {
			zap.S().Warnw("most wanted cache write failed", "error", err)
		}
	}
	return board, nil
}

// CriminalRanking counts guilty verdicts per person
func (r *Ranker) CriminalRanking(ctx context.Context) ([]CriminalEntry, error) {
	verdicts, err := r.source.Verdicts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load verdicts")
	}
	return CriminalRanking(verdicts), nil
}

// RewardTotals summarizes reward reports
type RewardTotals struct {
	Count           int   `json:"count"`
	PaidCount       int   `json:"paid_count"`
	TotalAmountPaid int64 `json:"total_amount_paid"`
}

type SuspectTotals struct {
	Total        int `json:"total"`
	UnderPursuit int `json:"under_pursuit"`
}

// Stats is the platform-wide summary
type Stats struct {
	Cases      casedomain.Stats `json:"cases"`
	Suspects   SuspectTotals    `json:"suspects"`
	Rewards    RewardTotals     `json:"rewards"`
	ServerTime time.Time        `json:"server_time"`
}

// Stats aggregates counts across cases, suspects and rewards. Suspects
// under pursuit are those whose case is open.
func (r *Ranker) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	cases, err := r.cases.Stats(ctx)
	if err != nil {
		return s, errors.Wrap(err, "failed to count cases")
	}
	s.Cases = cases

	rows, err := r.source.Suspects(ctx)
	if err != nil {
		return s, errors.Wrap(err, "failed to load suspects")
	}
	s.Suspects.Total = len(rows)
	for _, row := range rows {
		if IsCaseOpen(row.Case) {
			s.Suspects.UnderPursuit++
		}
	}

	if r.rewards != nil {
		totals, err := r.rewards.Totals(ctx)
		if err != nil {
			return s, errors.Wrap(err, "failed to count rewards")
		}
		s.Rewards = totals
	}

	s.ServerTime = r.now()
	return s, nil
}
