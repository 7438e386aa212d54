package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// Directory resolves the current RoleSet of a stored user. The case
// workflow uses it to rank a case creator against the reviewer.
type Directory interface {
	RoleSet(ctx context.Context, userID types.ID) (RoleSet, error)
}

// PostgresDirectory reads roles from the accounts schema.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) RoleSet(ctx context.Context, userID types.ID) (RoleSet, error) {
	var superuser bool
	err := d.pool.QueryRow(ctx, `SELECT is_superuser FROM accounts.users WHERE id = $1`, userID).Scan(&superuser)
	if err == pgx.ErrNoRows {
		return RoleSet{}, errors.NotFound("user", userID.String())
	}
	if err != nil {
		return RoleSet{}, errors.Wrap(err, "failed to load user")
	}

	rows, err := d.pool.Query(ctx, `SELECT role FROM accounts.user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return RoleSet{}, errors.Wrap(err, "failed to load user roles")
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return RoleSet{}, errors.Wrap(err, "failed to scan user roles")
	}

	return NewRoleSet(codes, superuser), nil
}

// StaticDirectory is an in-memory Directory. Users it does not know
// resolve to an empty RoleSet, which ranks like a citizen.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[types.ID]RoleSet
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{users: make(map[types.ID]RoleSet)}
}

// Set records or replaces a user's roles.
func (d *StaticDirectory) Set(userID types.ID, rs RoleSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[userID] = rs
}

func (d *StaticDirectory) RoleSet(_ context.Context, userID types.ID) (RoleSet, error) {
	if userID.IsZero() {
		return RoleSet{}, fmt.Errorf("user id is required")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.users[userID], nil
}
