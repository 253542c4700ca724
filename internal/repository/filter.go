package repository

import (
	"courtbook/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Page size bounds for list queries.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ReservationFilter selects reservations. Zero values mean "no constraint";
// each set field contributes one predicate scope.
type ReservationFilter struct {
	UserID   *uint
	Status   models.ReservationStatus
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}

// Scopes returns the predicate scopes for the set fields. The query must
// join slots for the date predicates.
func (f ReservationFilter) Scopes() []func(*gorm.DB) *gorm.DB {
	var exprs []clause.Expression
	if f.UserID != nil {
		exprs = append(exprs, clause.Eq{Column: col("reservations", "user_id"), Value: *f.UserID})
	}
	if f.Status != "" {
		exprs = append(exprs, clause.Eq{Column: col("reservations", "status"), Value: string(f.Status)})
	}
	if f.DateFrom != "" {
		exprs = append(exprs, clause.Gte{Column: col("slots", "date"), Value: f.DateFrom})
	}
	if f.DateTo != "" {
		exprs = append(exprs, clause.Lte{Column: col("slots", "date"), Value: f.DateTo})
	}

	scopes := make([]func(*gorm.DB) *gorm.DB, 0, len(exprs))
	for _, expr := range exprs {
		scopes = append(scopes, where(expr))
	}
	return scopes
}

// Page returns the limit/offset scope.
func (f ReservationFilter) Page() func(*gorm.DB) *gorm.DB {
	limit, offset := f.Bounds()
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit).Offset(offset)
	}
}

// Bounds returns the effective limit and offset of the filter.
func (f ReservationFilter) Bounds() (limit, offset int) {
	return PageBounds(f.Limit, f.Offset)
}

// PageBounds clamps the page size to MaxPageSize and the offset to zero.
func PageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func col(table, name string) clause.Column {
	return clause.Column{Table: table, Name: name}
}

func where(expr clause.Expression) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Where{Exprs: []clause.Expression{expr}})
	}
}
