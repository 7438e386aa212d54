package infrastructure

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noirepd/precinct/internal/reward/domain"
	"github.com/noirepd/precinct/internal/scoring"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

const (
	trackingCodeKey = "reward_reports_tracking_code_key"
	rewardCodeKey   = "reward_reports_reward_code_key"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const reportColumns = `
	id, reporter_id, description, suspect_id, suspect_national_code, suspect_full_name,
	status, officer_id, officer_notes, detective_id, detective_notes,
	reward_amount, tracking_code, reward_code, is_paid, paid_at, paid_by,
	created_at, updated_at, version`

func (r *PostgresRepository) Save(ctx context.Context, rep *domain.Report) error {
	q := database.Conn(ctx, r.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO rewards.reward_reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1)`,
		rep.ID, rep.ReporterID, rep.Description, rep.SuspectID, nullableCode(rep.SuspectNationalCode.String()), rep.SuspectFullName,
		string(rep.Status), rep.OfficerID, rep.OfficerNotes, rep.DetectiveID, rep.DetectiveNotes,
		rep.RewardAmount, nullableCode(rep.TrackingCode), nullableCode(rep.RewardCode), rep.IsPaid, rep.PaidAt, rep.PaidBy,
		rep.CreatedAt, rep.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save reward report")
	}
	rep.Version = 1
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Report, error) {
	q := database.Conn(ctx, r.pool)

	rep, err := scanReport(q.QueryRow(ctx, `SELECT `+reportColumns+` FROM rewards.reward_reports WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("reward report", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find reward report")
	}
	return rep, nil
}

// Update writes the report if its version is unchanged since it was loaded.
func (r *PostgresRepository) Update(ctx context.Context, rep *domain.Report) error {
	q := database.Conn(ctx, r.pool)

	result, err := q.Exec(ctx, `
		UPDATE rewards.reward_reports SET
			suspect_id = $3, suspect_national_code = $4, suspect_full_name = $5,
			status = $6, officer_id = $7, officer_notes = $8, detective_id = $9, detective_notes = $10,
			reward_amount = $11, tracking_code = $12, reward_code = $13,
			is_paid = $14, paid_at = $15, paid_by = $16,
			updated_at = $17, version = version + 1
		WHERE id = $1 AND version = $2`,
		rep.ID, rep.Version,
		rep.SuspectID, nullableCode(rep.SuspectNationalCode.String()), rep.SuspectFullName,
		string(rep.Status), rep.OfficerID, rep.OfficerNotes, rep.DetectiveID, rep.DetectiveNotes,
		rep.RewardAmount, nullableCode(rep.TrackingCode), nullableCode(rep.RewardCode),
		rep.IsPaid, rep.PaidAt, rep.PaidBy,
		rep.UpdatedAt,
	)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err, trackingCodeKey):
			return domain.CodeTaken(rep.TrackingCode)
		case database.IsUniqueViolation(err, rewardCodeKey):
			return domain.CodeTaken(rep.RewardCode)
		}
		return errors.Wrap(err, "failed to update reward report")
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rewards.reward_reports WHERE id = $1)`, rep.ID).Scan(&exists); err != nil {
			return errors.Wrap(err, "failed to check reward report")
		}
		if !exists {
			return errors.NotFound("reward report", rep.ID.String())
		}
		return errors.Stale("reward report", rep.ID.String())
	}

	rep.Version++
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Report, error) {
	q := database.Conn(ctx, r.pool)

	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	rows, err := q.Query(ctx, `
		SELECT `+reportColumns+` FROM rewards.reward_reports
		WHERE ($1::uuid IS NULL OR reporter_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id DESC`,
		filter.ReporterID, status)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reward reports")
	}
	defer rows.Close()

	out := []domain.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan reward report")
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) FindApprovedByCode(ctx context.Context, code string) (*domain.Report, error) {
	q := database.Conn(ctx, r.pool)

	rep, err := scanReport(q.QueryRow(ctx, `
		SELECT `+reportColumns+` FROM rewards.reward_reports
		WHERE status = $1 AND (tracking_code = $2 OR upper(reward_code) = upper($2))
		LIMIT 1`,
		string(domain.StatusApproved), code))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("reward", "")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find reward")
	}
	return rep, nil
}

func (r *PostgresRepository) CodeInUse(ctx context.Context, code string) (bool, error) {
	q := database.Conn(ctx, r.pool)

	var used bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM rewards.reward_reports WHERE tracking_code = $1 OR reward_code = $1)`,
		code).Scan(&used)
	if err != nil {
		return false, errors.Wrap(err, "failed to check payout code")
	}
	return used, nil
}

// Totals counts reports for the platform statistics
func (r *PostgresRepository) Totals(ctx context.Context) (scoring.RewardTotals, error) {
	q := database.Conn(ctx, r.pool)

	var t scoring.RewardTotals
	err := q.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_paid),
		       COALESCE(SUM(reward_amount) FILTER (WHERE is_paid), 0)
		FROM rewards.reward_reports`).Scan(&t.Count, &t.PaidCount, &t.TotalAmountPaid)
	if err != nil {
		return t, errors.Wrap(err, "failed to count reward reports")
	}
	return t, nil
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var rep domain.Report
	var code, tracking, reward *string
	var status string
	err := row.Scan(
		&rep.ID, &rep.ReporterID, &rep.Description, &rep.SuspectID, &code, &rep.SuspectFullName,
		&status, &rep.OfficerID, &rep.OfficerNotes, &rep.DetectiveID, &rep.DetectiveNotes,
		&rep.RewardAmount, &tracking, &reward, &rep.IsPaid, &rep.PaidAt, &rep.PaidBy,
		&rep.CreatedAt, &rep.UpdatedAt, &rep.Version,
	)
	if err != nil {
		return nil, err
	}
	rep.Status = domain.Status(status)
	if code != nil {
		rep.SuspectNationalCode = types.NationalCode(*code)
	}
	if tracking != nil {
		rep.TrackingCode = *tracking
	}
	if reward != nil {
		rep.RewardCode = *reward
	}
	return &rep, nil
}

// nullableCode stores empty codes as NULL so the unique indexes ignore them.
func nullableCode(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
