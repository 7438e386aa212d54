package domain

import (
	"context"
	"strings"

	"github.com/noirepd/precinct/internal/shared/types"
)

// Repository defines the interface for case persistence
type Repository interface {
	Save(ctx context.Context, c *Case) error
	FindByID(ctx context.Context, id types.ID) (*Case, error)

	// Update writes the case only if its stored version still equals
	// c.Version, then increments c.Version. A lost race yields an
	// InvalidState error and nothing is written. Pending timeline events
	// are stored in the same write.
	Update(ctx context.Context, c *Case) error

	// List returns the cases matching both the visibility predicate and the filter.
	List(ctx context.Context, vis Visibility, filter ListFilter) ([]Case, int, error)

	GetEvents(ctx context.Context, caseID types.ID, limit, offset int) ([]CaseEvent, error)
	Stats(ctx context.Context) (Stats, error)
}

// ListFilter defines filters for listing cases
type ListFilter struct {
	Status     *Status     `json:"status,omitempty"`
	CrimeLevel *CrimeLevel `json:"crime_level,omitempty"`
	Search     string      `json:"search,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}

// Stats counts cases for the dashboard. Active counts every open status.
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Solved int `json:"solved"`
}

// Matches applies the filter to one case; in-memory stores use it.
func (f ListFilter) Matches(c *Case) bool {
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.CrimeLevel != nil && c.CrimeLevel != *f.CrimeLevel {
		return false
	}
	if f.Search != "" && !containsFold(c.Title, f.Search) && !containsFold(c.Description, f.Search) {
		return false
	}
	return true
}

// PageBounds clamps limit and offset the way every store pages results.
func (f ListFilter) PageBounds() (limit, offset int) {
	limit = 50
	if f.Limit > 0 && f.Limit <= 100 {
		limit = f.Limit
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
