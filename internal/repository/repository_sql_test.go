package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestSlotRepository_ClaimAvailable(t *testing.T) {
	claimSQL := regexp.QuoteMeta(`UPDATE "slots" SET "status"=$1,"updated_at"=$2 WHERE id = $3 AND status = $4`)

	tests := []struct {
		name    string
		rows    int64
		execErr error
		claimed bool
		wantErr bool
	}{
		{name: "claimed", rows: 1, claimed: true},
		{name: "lost race", rows: 0, claimed: false},
		{name: "store error", execErr: errors.New("connection reset"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewSlotRepository(db)

			mock.ExpectBegin()
			exec := mock.ExpectExec(claimSQL).
				WithArgs("reserved", sqlmock.AnyArg(), 5, "available")
			if tt.execErr != nil {
				exec.WillReturnError(tt.execErr)
				mock.ExpectRollback()
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, tt.rows))
				mock.ExpectCommit()
			}

			claimed, err := repo.ClaimAvailable(context.Background(), 5)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.claimed, claimed)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReservationRepository_TransitionIsConditional(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "reservations" SET .+ WHERE id = \$4 AND status = \$5`).
		WithArgs(sqlmock.AnyArg(), "confirmed", sqlmock.AnyArg(), 9, "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	changed, err := repo.Transition(context.Background(), 9, models.ReservationPending, map[string]interface{}{
		"status":       models.ReservationConfirmed,
		"confirmed_at": time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetForUpdateLocksRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "role"}).
		AddRow(3, "Ana", "ana@example.com", "user")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs(3, 1).
		WillReturnRows(rows)

	user, err := repo.GetForUpdate(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
		WithArgs(99, 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.GetByID(context.Background(), 99)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanctionRepository_DeactivateOnlyActive(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSanctionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "sanctions" SET .+ WHERE id = \$5 AND active = \$6`).
		WithArgs(false, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 4, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	admin := uint(1)
	changed, err := repo.Deactivate(context.Background(), 4, &admin, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
