// Package repository implements the data access layer for the booking engine.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"courtbook/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repositories bundles every repository bound to the same connection or transaction.
type Repositories struct {
	Venues       VenueRepository
	Slots        SlotRepository
	Reservations ReservationRepository
	Sanctions    SanctionRepository
	Users        UserRepository
	Comments     CommentRepository
}

// New binds all repositories to db, which may be a transaction handle.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Venues:       NewVenueRepository(db),
		Slots:        NewSlotRepository(db),
		Reservations: NewReservationRepository(db),
		Sanctions:    NewSanctionRepository(db),
		Users:        NewUserRepository(db),
		Comments:     NewCommentRepository(db),
	}
}

// UnitOfWork runs a function inside one database transaction. The
// transaction commits when fn returns nil and rolls back on an error or panic.
type UnitOfWork struct {
	db   *gorm.DB
	opts []*sql.TxOptions
}

// NewUnitOfWork returns a UnitOfWork. isolation is one of "", "read_committed",
// "repeatable_read" or "serializable"; empty keeps the store default.
func NewUnitOfWork(db *gorm.DB, isolation string) *UnitOfWork {
	u := &UnitOfWork{db: db}
	if level, ok := isolationLevels[isolation]; ok {
		u.opts = []*sql.TxOptions{{Isolation: level}}
	}
	return u
}

var isolationLevels = map[string]sql.IsolationLevel{
	"read_committed":  sql.LevelReadCommitted,
	"repeatable_read": sql.LevelRepeatableRead,
	"serializable":    sql.LevelSerializable,
}

// Do executes fn with repositories bound to a fresh transaction.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, New(tx))
	}, u.opts...)
}

// Read returns repositories bound to the plain connection for read-only work.
func (u *UnitOfWork) Read() *Repositories {
	return New(u.db)
}

// DB returns the underlying connection.
func (u *UnitOfWork) DB() *gorm.DB {
	return u.db
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func notFound(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}
