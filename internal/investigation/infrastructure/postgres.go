package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noirepd/precinct/internal/investigation/domain"
	"github.com/noirepd/precinct/internal/shared/database"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// PostgresRepository implements domain.Repository using PostgreSQL. Writes
// join the transaction carried by ctx, if any.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const suspectColumns = `
	id, case_id, first_name, last_name, national_code, details,
	is_main_suspect, is_on_board, status, created_by, created_at, updated_at, version`

func (r *PostgresRepository) SaveSuspect(ctx context.Context, s *domain.Suspect) error {
	_, err := database.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO investigation.suspects (`+suspectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)`,
		s.ID, s.CaseID, s.FirstName, s.LastName, nullableCode(s.NationalCode), s.Details,
		s.IsMainSuspect, s.IsOnBoard, string(s.Status), s.CreatedBy, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return errors.Conflict("suspect already exists")
		}
		return errors.Wrap(err, "failed to save suspect")
	}
	s.Version = 1
	return nil
}

func (r *PostgresRepository) FindSuspect(ctx context.Context, id types.ID) (*domain.Suspect, error) {
	row := database.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+suspectColumns+` FROM investigation.suspects WHERE id = $1`, id)
	s, err := scanSuspect(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("suspect", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find suspect")
	}
	return s, nil
}

func (r *PostgresRepository) UpdateSuspect(ctx context.Context, s *domain.Suspect) error {
	q := database.Conn(ctx, r.pool)
	result, err := q.Exec(ctx, `
		UPDATE investigation.suspects SET
			first_name = $3, last_name = $4, national_code = $5, details = $6,
			is_main_suspect = $7, is_on_board = $8, status = $9, updated_at = $10,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		s.ID, s.Version,
		s.FirstName, s.LastName, nullableCode(s.NationalCode), s.Details,
		s.IsMainSuspect, s.IsOnBoard, string(s.Status), s.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update suspect")
	}
	if result.RowsAffected() == 0 {
		return missingOrStale(ctx, q, "suspect", `investigation.suspects`, s.ID)
	}
	s.Version++
	return nil
}

func (r *PostgresRepository) ListSuspects(ctx context.Context, filter domain.SuspectFilter) ([]domain.Suspect, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+suspectColumns+` FROM investigation.suspects
		WHERE ($1::uuid IS NULL OR case_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR national_code = $3)
		ORDER BY created_at DESC, id DESC`,
		filter.CaseID, statusArg(filter.Status), nullableCode(filter.NationalCode),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list suspects")
	}
	defer rows.Close()

	suspects := []domain.Suspect{}
	for rows.Next() {
		s, err := scanSuspect(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan suspect")
		}
		suspects = append(suspects, *s)
	}
	return suspects, rows.Err()
}

func (r *PostgresRepository) LatestSuspectByNationalCode(ctx context.Context, code types.NationalCode) (*domain.Suspect, error) {
	if code.IsZero() {
		return nil, errors.NotFound("suspect", "")
	}
	row := database.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+suspectColumns+` FROM investigation.suspects
		WHERE national_code = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, code.String())
	s, err := scanSuspect(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("suspect", code.Masked())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find suspect")
	}
	return s, nil
}

func (r *PostgresRepository) CountMainSuspects(ctx context.Context, caseID types.ID) (int, int, error) {
	var total, unarrested int
	err := database.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status <> $2)
		FROM investigation.suspects
		WHERE case_id = $1 AND is_main_suspect`,
		caseID, string(domain.SuspectArrested),
	).Scan(&total, &unarrested)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to count main suspects")
	}
	return total, unarrested, nil
}

// ArrestMainSuspects moves every IDENTIFIED main suspect of the case to
// UNDER_ARREST in one statement.
func (r *PostgresRepository) ArrestMainSuspects(ctx context.Context, caseID, _ types.ID, now time.Time) ([]types.ID, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, `
		UPDATE investigation.suspects
		SET status = $2, updated_at = $3, version = version + 1
		WHERE case_id = $1 AND is_main_suspect AND status = $4
		RETURNING id`,
		caseID, string(domain.SuspectUnderArrest), now, string(domain.SuspectIdentified),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to arrest main suspects")
	}
	defer rows.Close()

	var moved []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan suspect id")
		}
		moved = append(moved, id)
	}
	return moved, rows.Err()
}

// Warrants

const warrantColumns = `
	id, case_id, suspect_id, type, status, reason, requester_id,
	approver_id, notes, reviewed_at, created_at, version`

func (r *PostgresRepository) SaveWarrant(ctx context.Context, w *domain.Warrant) error {
	_, err := database.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO investigation.warrants (`+warrantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)`,
		w.ID, w.CaseID, w.SuspectID, string(w.Type), string(w.Status), w.Reason, w.RequesterID,
		w.ApproverID, w.Notes, w.ReviewedAt, w.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save warrant")
	}
	w.Version = 1
	return nil
}

func (r *PostgresRepository) FindWarrant(ctx context.Context, id types.ID) (*domain.Warrant, error) {
	row := database.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+warrantColumns+` FROM investigation.warrants WHERE id = $1`, id)
	w, err := scanWarrant(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("warrant", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find warrant")
	}
	return w, nil
}

func (r *PostgresRepository) UpdateWarrant(ctx context.Context, w *domain.Warrant) error {
	q := database.Conn(ctx, r.pool)
	result, err := q.Exec(ctx, `
		UPDATE investigation.warrants SET
			status = $3, approver_id = $4, notes = $5, reviewed_at = $6, version = version + 1
		WHERE id = $1 AND version = $2`,
		w.ID, w.Version, string(w.Status), w.ApproverID, w.Notes, w.ReviewedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update warrant")
	}
	if result.RowsAffected() == 0 {
		return missingOrStale(ctx, q, "warrant", `investigation.warrants`, w.ID)
	}
	w.Version++
	return nil
}

func (r *PostgresRepository) ListWarrants(ctx context.Context, caseID types.ID) ([]domain.Warrant, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+warrantColumns+` FROM investigation.warrants
		WHERE case_id = $1
		ORDER BY created_at DESC, id DESC`, caseID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list warrants")
	}
	defer rows.Close()

	warrants := []domain.Warrant{}
	for rows.Next() {
		w, err := scanWarrant(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan warrant")
		}
		warrants = append(warrants, *w)
	}
	return warrants, rows.Err()
}

// Interrogations

const interrogationColumns = `
	id, case_id, suspect_id, interrogator_id, score, transcript,
	feedback_by, final_score, is_confirmed, feedback_notes, feedback_at, created_at`

func (r *PostgresRepository) SaveInterrogation(ctx context.Context, i *domain.Interrogation) error {
	_, err := database.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO investigation.interrogations (
			id, case_id, suspect_id, interrogator_id, score, transcript, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		i.ID, i.CaseID, i.SuspectID, i.InterrogatorID, i.Score, i.Transcript, i.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save interrogation")
	}
	return nil
}

func (r *PostgresRepository) FindInterrogation(ctx context.Context, id types.ID) (*domain.Interrogation, error) {
	row := database.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+interrogationColumns+` FROM investigation.interrogations WHERE id = $1`, id)
	i, err := scanInterrogation(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("interrogation", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find interrogation")
	}
	return i, nil
}

// SaveFeedback only writes when no feedback is stored yet.
func (r *PostgresRepository) SaveFeedback(ctx context.Context, i *domain.Interrogation) error {
	fb := i.Feedback
	q := database.Conn(ctx, r.pool)
	result, err := q.Exec(ctx, `
		UPDATE investigation.interrogations SET
			feedback_by = $2, final_score = $3, is_confirmed = $4, feedback_notes = $5, feedback_at = $6
		WHERE id = $1 AND feedback_by IS NULL`,
		i.ID, fb.CaptainID, fb.FinalScore, fb.IsConfirmed, fb.Notes, fb.GivenAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save feedback")
	}
	if result.RowsAffected() == 0 {
		if _, err := r.FindInterrogation(ctx, i.ID); err != nil {
			return err
		}
		return errors.InvalidState("interrogation already has feedback", "reviewed")
	}
	return nil
}

func (r *PostgresRepository) ListInterrogations(ctx context.Context, suspectID types.ID) ([]domain.Interrogation, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+interrogationColumns+` FROM investigation.interrogations
		WHERE suspect_id = $1
		ORDER BY created_at DESC, id DESC`, suspectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list interrogations")
	}
	defer rows.Close()

	out := []domain.Interrogation{}
	for rows.Next() {
		i, err := scanInterrogation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan interrogation")
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// Verdicts

const verdictsUniqueConstraint = "verdicts_case_suspect_key"

func (r *PostgresRepository) SaveVerdict(ctx context.Context, v *domain.Verdict) error {
	_, err := database.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO investigation.verdicts (
			id, case_id, suspect_id, judge_id, result, title, punishment, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.CaseID, v.SuspectID, v.JudgeID, string(v.Result), v.Title, v.Punishment, v.Description, v.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, verdictsUniqueConstraint) {
			return domain.DuplicateVerdict(v.CaseID, v.SuspectID)
		}
		return errors.Wrap(err, "failed to save verdict")
	}
	return nil
}

func (r *PostgresRepository) VerdictExists(ctx context.Context, caseID, suspectID types.ID) (bool, error) {
	var exists bool
	err := database.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM investigation.verdicts WHERE case_id = $1 AND suspect_id = $2)`,
		caseID, suspectID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check verdict")
	}
	return exists, nil
}

func (r *PostgresRepository) ListVerdicts(ctx context.Context, caseID types.ID) ([]domain.Verdict, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, case_id, suspect_id, judge_id, result, title, punishment, description, created_at
		FROM investigation.verdicts
		WHERE case_id = $1
		ORDER BY created_at DESC, id DESC`, caseID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list verdicts")
	}
	defer rows.Close()

	out := []domain.Verdict{}
	for rows.Next() {
		var v domain.Verdict
		var result string
		if err := rows.Scan(&v.ID, &v.CaseID, &v.SuspectID, &v.JudgeID, &result,
			&v.Title, &v.Punishment, &v.Description, &v.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan verdict")
		}
		v.Result = domain.VerdictResult(result)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Evidence

const evidenceColumns = `id, case_id, kind, title, description, recorded_by, payload, is_on_board, created_at`

func (r *PostgresRepository) SaveEvidence(ctx context.Context, e *domain.Evidence) error {
	payload, err := json.Marshal(e.Details)
	if err != nil {
		return errors.Wrap(err, "failed to marshal evidence details")
	}
	_, err = database.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO investigation.evidence (`+evidenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.CaseID, string(e.Kind()), e.Title, e.Description, e.RecordedBy, payload, e.IsOnBoard, e.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save evidence")
	}
	return nil
}

func (r *PostgresRepository) FindEvidence(ctx context.Context, id types.ID) (*domain.Evidence, error) {
	row := database.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+evidenceColumns+` FROM investigation.evidence WHERE id = $1`, id)
	e, err := scanEvidence(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("evidence", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find evidence")
	}
	return e, nil
}

// UpdateEvidence writes the mutable parts: payload and board flag.
func (r *PostgresRepository) UpdateEvidence(ctx context.Context, e *domain.Evidence) error {
	payload, err := json.Marshal(e.Details)
	if err != nil {
		return errors.Wrap(err, "failed to marshal evidence details")
	}
	result, err := database.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE investigation.evidence SET payload = $2, is_on_board = $3 WHERE id = $1`,
		e.ID, payload, e.IsOnBoard)
	if err != nil {
		return errors.Wrap(err, "failed to update evidence")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("evidence", e.ID.String())
	}
	return nil
}

func (r *PostgresRepository) ListEvidence(ctx context.Context, caseID types.ID, kind *domain.EvidenceKind) ([]domain.Evidence, error) {
	var kindArg *string
	if kind != nil {
		k := string(*kind)
		kindArg = &k
	}

	rows, err := database.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+evidenceColumns+` FROM investigation.evidence
		WHERE case_id = $1 AND ($2::text IS NULL OR kind = $2)
		ORDER BY created_at DESC, id DESC`, caseID, kindArg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list evidence")
	}
	defer rows.Close()

	out := []domain.Evidence{}
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan evidence")
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Board connections

const connectionColumns = `
	id, case_id, from_evidence_id, from_suspect_id, to_evidence_id, to_suspect_id,
	description, created_by, created_at`

func (r *PostgresRepository) SaveBoardConnection(ctx context.Context, c *domain.BoardConnection) error {
	_, err := database.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO investigation.board_connections (`+connectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.CaseID, c.FromEvidenceID, c.FromSuspectID, c.ToEvidenceID, c.ToSuspectID,
		c.Description, c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save board connection")
	}
	return nil
}

func (r *PostgresRepository) FindBoardConnection(ctx context.Context, id types.ID) (*domain.BoardConnection, error) {
	row := database.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM investigation.board_connections WHERE id = $1`, id)
	c, err := scanConnection(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("board connection", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find board connection")
	}
	return c, nil
}

func (r *PostgresRepository) DeleteBoardConnection(ctx context.Context, id types.ID) error {
	result, err := database.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM investigation.board_connections WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete board connection")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("board connection", id.String())
	}
	return nil
}

func (r *PostgresRepository) ListBoardConnections(ctx context.Context, caseID types.ID) ([]domain.BoardConnection, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+connectionColumns+` FROM investigation.board_connections
		WHERE case_id = $1
		ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list board connections")
	}
	defer rows.Close()

	out := []domain.BoardConnection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan board connection")
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanConnection(row pgx.Row) (*domain.BoardConnection, error) {
	var c domain.BoardConnection
	err := row.Scan(&c.ID, &c.CaseID, &c.FromEvidenceID, &c.FromSuspectID, &c.ToEvidenceID, &c.ToSuspectID,
		&c.Description, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanSuspect(row pgx.Row) (*domain.Suspect, error) {
	var s domain.Suspect
	var code *string
	var status string
	err := row.Scan(&s.ID, &s.CaseID, &s.FirstName, &s.LastName, &code, &s.Details,
		&s.IsMainSuspect, &s.IsOnBoard, &status, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &s.Version)
	if err != nil {
		return nil, err
	}
	if code != nil {
		s.NationalCode = types.NationalCode(*code)
	}
	s.Status = domain.SuspectStatus(status)
	return &s, nil
}

func scanWarrant(row pgx.Row) (*domain.Warrant, error) {
	var w domain.Warrant
	var wt, status string
	err := row.Scan(&w.ID, &w.CaseID, &w.SuspectID, &wt, &status, &w.Reason, &w.RequesterID,
		&w.ApproverID, &w.Notes, &w.ReviewedAt, &w.CreatedAt, &w.Version)
	if err != nil {
		return nil, err
	}
	w.Type = domain.WarrantType(wt)
	w.Status = domain.WarrantStatus(status)
	return &w, nil
}

func scanInterrogation(row pgx.Row) (*domain.Interrogation, error) {
	var i domain.Interrogation
	var captainID types.ID
	var finalScore *int
	var confirmed *bool
	var notes string
	var givenAt *time.Time
	err := row.Scan(&i.ID, &i.CaseID, &i.SuspectID, &i.InterrogatorID, &i.Score, &i.Transcript,
		&captainID, &finalScore, &confirmed, &notes, &givenAt, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	if !captainID.IsZero() {
		fb := &domain.Feedback{CaptainID: captainID, Notes: notes}
		if finalScore != nil {
			fb.FinalScore = *finalScore
		}
		if confirmed != nil {
			fb.IsConfirmed = *confirmed
		}
		if givenAt != nil {
			fb.GivenAt = *givenAt
		}
		i.Feedback = fb
	}
	return &i, nil
}

func scanEvidence(row pgx.Row) (*domain.Evidence, error) {
	var e domain.Evidence
	var kind string
	var payload []byte
	err := row.Scan(&e.ID, &e.CaseID, &kind, &e.Title, &e.Description, &e.RecordedBy, &payload, &e.IsOnBoard, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	details, err := domain.DecodeDetails(domain.EvidenceKind(kind), payload)
	if err != nil {
		return nil, err
	}
	e.Details = details
	return &e, nil
}

func missingOrStale(ctx context.Context, q database.Querier, resource, table string, id types.ID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return errors.Wrap(err, "failed to check "+resource)
	}
	if !exists {
		return errors.NotFound(resource, id.String())
	}
	return errors.Stale(resource, id.String())
}

func nullableCode(code types.NationalCode) *string {
	if code.IsZero() {
		return nil
	}
	s := code.String()
	return &s
}

func statusArg(status *domain.SuspectStatus) *string {
	if status == nil {
		return nil
	}
	s := string(*status)
	return &s
}
