package domain

import (
	"context"

	"github.com/noirepd/precinct/internal/shared/types"
)

// Repository defines the interface for reward report persistence
type Repository interface {
	Save(ctx context.Context, r *Report) error
	FindByID(ctx context.Context, id types.ID) (*Report, error)

	// Update writes the report only if its stored version still equals
	// r.Version, then increments r.Version. A lost race yields a Stale
	// error. A tracking or reward code already held by another report
	// yields CodeTaken and nothing is written.
	Update(ctx context.Context, r *Report) error

	List(ctx context.Context, filter ListFilter) ([]Report, error)

	// FindApprovedByCode looks up an APPROVED report by tracking code or
	// reward code.
	FindApprovedByCode(ctx context.Context, code string) (*Report, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
}

// ListFilter narrows report listings. A zero ReporterID lists every reporter.
type ListFilter struct {
	ReporterID types.ID
	Status     *Status
}

// Matches applies the filter to one report; in-memory stores use it.
func (f ListFilter) Matches(r *Report) bool {
	if !f.ReporterID.IsZero() && r.ReporterID != f.ReporterID {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	return true
}
