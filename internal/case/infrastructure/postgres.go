package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noirepd/precinct/internal/case/domain"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
	tx   database.Transactor
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, tx: database.NewTransactor(pool)}
}

const caseColumns = `
	id, title, description, crime_level, status, submission_attempts,
	review_notes, creator_id, scene_location, scene_occurred_at,
	created_at, updated_at, version`

// Save saves a new case with its scene, complainants and initial events
func (r *PostgresRepository) Save(ctx context.Context, c *domain.Case) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := database.Conn(ctx, r.pool)

		var location *string
		var occurredAt *time.Time
		if c.Scene != nil {
			location = &c.Scene.Location
			occurredAt = &c.Scene.OccurredAt
		}

		_, err := q.Exec(ctx, `
			INSERT INTO cases.cases (
				id, title, description, crime_level, status, submission_attempts,
				review_notes, creator_id, scene_location, scene_occurred_at,
				created_at, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)`,
			c.ID, c.Title, c.Description, int(c.CrimeLevel), string(c.Status), c.SubmissionAttempts,
			c.ReviewNotes, c.CreatorID, location, occurredAt,
			c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err, "") {
				return errors.Conflict("case already exists")
			}
			return errors.Wrap(err, "failed to save case")
		}

		if c.Scene != nil {
			for _, w := range c.Scene.Witnesses {
				_, err := q.Exec(ctx,
					`INSERT INTO cases.scene_witnesses (id, case_id, phone, national_code) VALUES ($1, $2, $3, $4)`,
					w.ID, c.ID, w.Phone, w.NationalCode.String())
				if err != nil {
					return errors.Wrap(err, "failed to save witness")
				}
			}
		}

		if err := r.replaceComplainants(ctx, q, c); err != nil {
			return err
		}
		if err := r.saveEvents(ctx, q, c.GetDomainEvents()); err != nil {
			return err
		}

		c.Version = 1
		return nil
	})
}

// FindByID finds a case by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Case, error) {
	q := database.Conn(ctx, r.pool)

	row := q.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases.cases WHERE id = $1`, id)
	c, err := scanCase(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("case", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find case")
	}

	if c.Scene != nil {
		witnesses, err := r.getWitnesses(ctx, q, id)
		if err != nil {
			return nil, err
		}
		c.Scene.Witnesses = witnesses
	}

	byCase, err := r.getComplainants(ctx, q, []types.ID{id})
	if err != nil {
		return nil, err
	}
	c.Complainants = byCase[id]
	if c.Complainants == nil {
		c.Complainants = []domain.Complainant{}
	}

	return c, nil
}

// Update writes the case if its version is unchanged since it was loaded.
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Case) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := database.Conn(ctx, r.pool)

		result, err := q.Exec(ctx, `
			UPDATE cases.cases SET
				title = $3, description = $4, status = $5, submission_attempts = $6,
				review_notes = $7, updated_at = $8, version = version + 1
			WHERE id = $1 AND version = $2`,
			c.ID, c.Version,
			c.Title, c.Description, string(c.Status), c.SubmissionAttempts,
			c.ReviewNotes, c.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to update case")
		}
		if result.RowsAffected() == 0 {
			var exists bool
			if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cases.cases WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
				return errors.Wrap(err, "failed to check case")
			}
			if !exists {
				return errors.NotFound("case", c.ID.String())
			}
			return errors.Stale("case", c.ID.String())
		}

		if err := r.replaceComplainants(ctx, q, c); err != nil {
			return err
		}
		if err := r.saveEvents(ctx, q, c.GetDomainEvents()); err != nil {
			return err
		}

		c.Version++
		return nil
	})
}

// List lists the cases visible to the caller that match the filter
func (r *PostgresRepository) List(ctx context.Context, vis domain.Visibility, filter domain.ListFilter) ([]domain.Case, int, error) {
	q := database.Conn(ctx, r.pool)

	var conditions []string
	var args []any
	argNum := 1

	if !vis.All {
		conditions = append(conditions, fmt.Sprintf(
			"(status = ANY($%d) OR creator_id = $%d OR id IN (SELECT case_id FROM cases.complainants WHERE user_id = $%d))",
			argNum, argNum+1, argNum+1))
		args = append(args, vis.StatusStrings(), vis.UserID)
		argNum += 2
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, string(*filter.Status))
		argNum++
	}

	if filter.CrimeLevel != nil {
		conditions = append(conditions, fmt.Sprintf("crime_level = $%d", argNum))
		args = append(args, int(*filter.CrimeLevel))
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM cases.cases "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count cases")
	}

	limit, offset := filter.PageBounds()
	query := fmt.Sprintf(`SELECT %s FROM cases.cases %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		caseColumns, whereClause, argNum, argNum+1)
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list cases")
	}
	defer rows.Close()

	var cases []domain.Case
	var ids []types.ID
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan case")
		}
		cases = append(cases, *c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "failed to list cases")
	}

	if len(ids) > 0 {
		byCase, err := r.getComplainants(ctx, q, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range cases {
			cases[i].Complainants = byCase[cases[i].ID]
			if cases[i].Complainants == nil {
				cases[i].Complainants = []domain.Complainant{}
			}
		}
	}

	return cases, total, nil
}

// GetEvents returns the case timeline, newest first
func (r *PostgresRepository) GetEvents(ctx context.Context, caseID types.ID, limit, offset int) ([]domain.CaseEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := database.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, case_id, type, actor_id, description, data, timestamp
		FROM cases.case_events
		WHERE case_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3`, caseID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}
	defer rows.Close()

	var events []domain.CaseEvent
	for rows.Next() {
		var e domain.CaseEvent
		var eventType string
		var dataJSON []byte

		if err := rows.Scan(&e.ID, &e.CaseID, &eventType, &e.ActorID, &e.Description, &dataJSON, &e.Timestamp); err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		e.Type = domain.EventType(eventType)
		if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
			e.Data = nil
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Stats counts cases for the dashboard
func (r *PostgresRepository) Stats(ctx context.Context) (domain.Stats, error) {
	var open []string
	for _, st := range domain.AllStatuses {
		if st.IsOpen() {
			open = append(open, string(st))
		}
	}

	var s domain.Stats
	err := database.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = ANY($1)),
			COUNT(*) FILTER (WHERE status = $2)
		FROM cases.cases`, open, string(domain.StatusSolved),
	).Scan(&s.Total, &s.Active, &s.Solved)
	if err != nil {
		return domain.Stats{}, errors.Wrap(err, "failed to count cases")
	}
	return s, nil
}

func scanCase(row pgx.Row) (*domain.Case, error) {
	var c domain.Case
	var level int
	var status string
	var location *string
	var occurredAt *time.Time

	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &level, &status, &c.SubmissionAttempts,
		&c.ReviewNotes, &c.CreatorID, &location, &occurredAt,
		&c.CreatedAt, &c.UpdatedAt, &c.Version,
	)
	if err != nil {
		return nil, err
	}

	c.CrimeLevel = domain.CrimeLevel(level)
	c.Status = domain.Status(status)
	if location != nil {
		c.Scene = &domain.Scene{Location: *location, Witnesses: []domain.Witness{}}
		if occurredAt != nil {
			c.Scene.OccurredAt = *occurredAt
		}
	}
	return &c, nil
}

func (r *PostgresRepository) replaceComplainants(ctx context.Context, q database.Querier, c *domain.Case) error {
	if _, err := q.Exec(ctx, `DELETE FROM cases.complainants WHERE case_id = $1`, c.ID); err != nil {
		return errors.Wrap(err, "failed to clear complainants")
	}
	for _, cp := range c.Complainants {
		_, err := q.Exec(ctx,
			`INSERT INTO cases.complainants (case_id, user_id, is_confirmed, added_at) VALUES ($1, $2, $3, $4)`,
			c.ID, cp.UserID, cp.IsConfirmed, cp.AddedAt)
		if err != nil {
			return errors.Wrap(err, "failed to save complainant")
		}
	}
	return nil
}

func (r *PostgresRepository) getComplainants(ctx context.Context, q database.Querier, caseIDs []types.ID) (map[types.ID][]domain.Complainant, error) {
	rows, err := q.Query(ctx, `
		SELECT case_id, user_id, is_confirmed, added_at
		FROM cases.complainants
		WHERE case_id = ANY($1)
		ORDER BY added_at`, idStrings(caseIDs))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get complainants")
	}
	defer rows.Close()

	out := make(map[types.ID][]domain.Complainant)
	for rows.Next() {
		var caseID types.ID
		var cp domain.Complainant
		if err := rows.Scan(&caseID, &cp.UserID, &cp.IsConfirmed, &cp.AddedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan complainant")
		}
		out[caseID] = append(out[caseID], cp)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) getWitnesses(ctx context.Context, q database.Querier, caseID types.ID) ([]domain.Witness, error) {
	rows, err := q.Query(ctx, `SELECT id, phone, national_code FROM cases.scene_witnesses WHERE case_id = $1`, caseID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get witnesses")
	}
	defer rows.Close()

	witnesses := []domain.Witness{}
	for rows.Next() {
		var w domain.Witness
		var code string
		if err := rows.Scan(&w.ID, &w.Phone, &code); err != nil {
			return nil, errors.Wrap(err, "failed to scan witness")
		}
		w.NationalCode = types.NationalCode(code)
		witnesses = append(witnesses, w)
	}
	return witnesses, rows.Err()
}

func (r *PostgresRepository) saveEvents(ctx context.Context, q database.Querier, events []domain.CaseEvent) error {
	for _, e := range events {
		dataJSON, err := json.Marshal(e.Data)
		if err != nil {
			return errors.Wrap(err, "failed to marshal event data")
		}

		var actorID *types.ID
		if !e.ActorID.IsZero() {
			actorID = &e.ActorID
		}

		_, err = q.Exec(ctx, `
			INSERT INTO cases.case_events (id, case_id, type, actor_id, description, data, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.CaseID, string(e.Type), actorID, e.Description, dataJSON, e.Timestamp,
		)
		if err != nil {
			return errors.Wrap(err, "failed to save event")
		}
	}
	return nil
}

func idStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
