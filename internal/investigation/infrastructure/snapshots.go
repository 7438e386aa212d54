package infrastructure

import (
	"context"
	"strings"

	casedomain "github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/investigation/domain"
	"github.com/noirepd/precinct/internal/scoring"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// CaseSnapshotter lists every case; the in-memory case store provides it.
type CaseSnapshotter interface {
	Snapshot() []casedomain.Case
}

// MemorySource joins the in-memory case and investigation stores into
// scoring snapshots.
type MemorySource struct {
	cases CaseSnapshotter
	repo  *MemoryRepository
}

func NewMemorySource(cases CaseSnapshotter, repo *MemoryRepository) *MemorySource {
	return &MemorySource{cases: cases, repo: repo}
}

func (m *MemorySource) caseIndex() map[types.ID]*scoring.CaseSnapshot {
	index := make(map[types.ID]*scoring.CaseSnapshot)
	for _, c := range m.cases.Snapshot() {
		index[c.ID] = &scoring.CaseSnapshot{ID: c.ID, Status: c.Status, CrimeLevel: c.CrimeLevel}
	}
	return index
}

func (m *MemorySource) Suspects(ctx context.Context) ([]scoring.SuspectSnapshot, error) {
	suspects, err := m.repo.ListSuspects(ctx, domain.SuspectFilter{})
	if err != nil {
		return nil, err
	}
	cases := m.caseIndex()

	out := make([]scoring.SuspectSnapshot, 0, len(suspects))
	for i := range suspects {
		out = append(out, snapshotOf(&suspects[i], cases[suspects[i].CaseID]))
	}
	return out, nil
}

func (m *MemorySource) SuspectGroup(ctx context.Context, suspectID types.ID) (scoring.SuspectSnapshot, []scoring.SuspectSnapshot, error) {
	target, err := m.repo.FindSuspect(ctx, suspectID)
	if err != nil {
		return scoring.SuspectSnapshot{}, nil, err
	}
	cases := m.caseIndex()
	snap := snapshotOf(target, cases[target.CaseID])
	if target.NationalCode.IsZero() {
		return snap, []scoring.SuspectSnapshot{snap}, nil
	}

	same, err := m.repo.ListSuspects(ctx, domain.SuspectFilter{NationalCode: target.NationalCode})
	if err != nil {
		return scoring.SuspectSnapshot{}, nil, err
	}
	group := make([]scoring.SuspectSnapshot, 0, len(same))
	for i := range same {
		group = append(group, snapshotOf(&same[i], cases[same[i].CaseID]))
	}
	return snap, group, nil
}

func (m *MemorySource) Verdicts(ctx context.Context) ([]scoring.VerdictSnapshot, error) {
	verdicts, err := m.repo.ListVerdicts(ctx, "")
	if err != nil {
		return nil, err
	}

	out := make([]scoring.VerdictSnapshot, 0, len(verdicts))
	for _, v := range verdicts {
		s, err := m.repo.FindSuspect(ctx, v.SuspectID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, scoring.VerdictSnapshot{
			SuspectID:    v.SuspectID,
			NationalCode: s.NationalCode,
			FullName:     s.FullName(),
			Guilty:       v.Result == domain.VerdictGuilty,
			CreatedAt:    v.CreatedAt,
		})
	}
	return out, nil
}

func snapshotOf(s *domain.Suspect, c *scoring.CaseSnapshot) scoring.SuspectSnapshot {
	return scoring.SuspectSnapshot{
		ID:           s.ID,
		NationalCode: s.NationalCode,
		FullName:     s.FullName(),
		Arrested:     s.IsArrested(),
		CreatedAt:    s.CreatedAt,
		Case:         c,
	}
}

const snapshotQuery = `
	SELECT s.id, s.national_code, s.first_name, s.last_name, s.status, s.created_at,
		c.id, c.status, c.crime_level
	FROM investigation.suspects s
	LEFT JOIN cases.cases c ON c.id = s.case_id`

// Suspects reads every suspect with its case for scoring.
func (r *PostgresRepository) Suspects(ctx context.Context) ([]scoring.SuspectSnapshot, error) {
	return r.querySnapshots(ctx, snapshotQuery)
}

// SuspectGroup reads the suspect and every row sharing its national code.
func (r *PostgresRepository) SuspectGroup(ctx context.Context, suspectID types.ID) (scoring.SuspectSnapshot, []scoring.SuspectSnapshot, error) {
	rows, err := r.querySnapshots(ctx, snapshotQuery+`
		WHERE s.id = $1
		   OR s.national_code = (SELECT national_code FROM investigation.suspects WHERE id = $1)`, suspectID)
	if err != nil {
		return scoring.SuspectSnapshot{}, nil, err
	}
	for _, s := range rows {
		if s.ID == suspectID {
			return s, rows, nil
		}
	}
	return scoring.SuspectSnapshot{}, nil, errors.NotFound("suspect", suspectID.String())
}

// Verdicts reads every verdict with the suspect's identity.
func (r *PostgresRepository) Verdicts(ctx context.Context) ([]scoring.VerdictSnapshot, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, `
		SELECT v.suspect_id, s.national_code, s.first_name, s.last_name, v.result, v.created_at
		FROM investigation.verdicts v
		JOIN investigation.suspects s ON s.id = v.suspect_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load verdicts")
	}
	defer rows.Close()

	var out []scoring.VerdictSnapshot
	for rows.Next() {
		var v scoring.VerdictSnapshot
		var code *string
		var first, last, result string
		if err := rows.Scan(&v.SuspectID, &code, &first, &last, &result, &v.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan verdict")
		}
		if code != nil {
			v.NationalCode = types.NationalCode(*code)
		}
		v.FullName = strings.TrimSpace(first + " " + last)
		v.Guilty = domain.VerdictResult(result) == domain.VerdictGuilty
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) querySnapshots(ctx context.Context, query string, args ...any) ([]scoring.SuspectSnapshot, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load suspects")
	}
	defer rows.Close()

	var out []scoring.SuspectSnapshot
	for rows.Next() {
		var s scoring.SuspectSnapshot
		var code *string
		var first, last, status string
		var caseID types.ID
		var caseStatus *string
		var level *int
		if err := rows.Scan(&s.ID, &code, &first, &last, &status, &s.CreatedAt, &caseID, &caseStatus, &level); err != nil {
			return nil, errors.Wrap(err, "failed to scan suspect")
		}
		if code != nil {
			s.NationalCode = types.NationalCode(*code)
		}
		s.FullName = strings.TrimSpace(first + " " + last)
		s.Arrested = domain.SuspectStatus(status) == domain.SuspectArrested
		if caseStatus != nil && level != nil {
			s.Case = &scoring.CaseSnapshot{
				ID:         caseID,
				Status:     casedomain.Status(*caseStatus),
				CrimeLevel: casedomain.CrimeLevel(*level),
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
