package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"courtbook/internal/cache"
	"courtbook/internal/config"
	"courtbook/internal/models"
	"courtbook/internal/repository"
	"courtbook/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   *BookingService
	now   time.Time
	admin Actor
	alice Actor
	bob   Actor
	venue *models.Venue
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		db:  testutil.NewTestDB(t),
		now: time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC),
	}
	opts.Clock = func() time.Time { return f.now }
	f.svc = NewBookingService(repository.NewUnitOfWork(f.db, ""), opts)

	f.admin = f.user(t, "admin", models.RoleAdmin)
	f.alice = f.user(t, "alice", models.RoleUser)
	f.bob = f.user(t, "bob", models.RoleUser)

	venue, err := f.svc.CreateVenue(context.Background(), f.admin, VenueInput{
		Name:      "Cancha Norte",
		Address:   "Av. Amazonas 100",
		Latitude:  -0.18,
		Longitude: -78.48,
		SportType: "futbol",
	})
	require.NoError(t, err)
	f.venue = venue
	return f
}

func (f *fixture) user(t *testing.T, name string, role models.Role) Actor {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: role}
	require.NoError(t, f.db.Create(u).Error)
	return Actor{UserID: u.ID, Role: role}
}

func (f *fixture) slot(t *testing.T, date, start, end string) *models.Slot {
	t.Helper()
	s, err := f.svc.CreateSlot(context.Background(), f.admin, CreateSlotInput{
		VenueID: f.venue.ID, Date: date, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) slotStatus(t *testing.T, id uint) models.SlotStatus {
	t.Helper()
	var s models.Slot
	require.NoError(t, f.db.First(&s, id).Error)
	return s.Status
}

func (f *fixture) blockedUntil(t *testing.T, userID uint) *time.Time {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.First(&u, userID).Error)
	return u.BlockedUntil
}

// assertSlotInvariant checks that every slot is reserved exactly when one
// active reservation references it.
func assertSlotInvariant(t *testing.T, db *gorm.DB) {
	t.Helper()
	var slots []models.Slot
	require.NoError(t, db.Find(&slots).Error)
	for _, s := range slots {
		var active int64
		require.NoError(t, db.Model(&models.Reservation{}).
			Where("slot_id = ? AND status IN ?", s.ID, models.ActiveReservationStatuses).
			Count(&active).Error)
		require.LessOrEqual(t, active, int64(1), "slot %d has %d active reservations", s.ID, active)
		if active == 1 {
			assert.Equal(t, models.SlotReserved, s.Status, "slot %d", s.ID)
		} else {
			assert.Equal(t, models.SlotAvailable, s.Status, "slot %d", s.ID)
		}
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.IsCode(err, code), "want %s, got %v", code, err)
}

func TestBookingService_ReservationLifecycle(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.slot(t, "2025-06-01", "10:00", "11:00")

	r1, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID, Notes: "five a side"})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPending, r1.Status)
	assert.Equal(t, f.alice.UserID, r1.UserID)
	require.NotNil(t, r1.Slot)
	assert.Equal(t, f.venue.ID, r1.Slot.VenueID)
	assert.Equal(t, models.SlotReserved, f.slotStatus(t, s.ID))

	_, err = f.svc.CreateReservation(ctx, f.bob, CreateReservationInput{SlotID: s.ID})
	requireCode(t, err, models.CodeConflict)

	confirmed, err := f.svc.ConfirmReservation(ctx, f.admin, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	cancelled, err := f.svc.CancelReservation(ctx, f.alice, r1.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, DefaultUserCancelReason, *cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, models.SlotAvailable, f.slotStatus(t, s.ID))

	// The released slot can be booked again; the cancelled row stays as history.
	r2, err := f.svc.CreateReservation(ctx, f.bob, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPending, r2.Status)

	var history int64
	require.NoError(t, f.db.Model(&models.Reservation{}).Where("slot_id = ?", s.ID).Count(&history).Error)
	assert.Equal(t, int64(2), history)
	assertSlotInvariant(t, f.db)
}

func TestBookingService_OverlapRejected(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	first := f.slot(t, "2025-06-01", "10:00", "11:00")
	overlapping := f.slot(t, "2025-06-01", "10:30", "11:30")
	adjacent := f.slot(t, "2025-06-01", "11:00", "12:00")
	otherDay := f.slot(t, "2025-06-02", "10:30", "11:30")

	r, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: first.ID})
	require.NoError(t, err)
	_, err = f.svc.ConfirmReservation(ctx, f.admin, r.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: overlapping.ID})
	requireCode(t, err, models.CodeConflict)
	assert.Equal(t, models.SlotAvailable, f.slotStatus(t, overlapping.ID), "rejected create must roll back")

	_, err = f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: adjacent.ID})
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: otherDay.ID})
	require.NoError(t, err)

	// Another user is not affected by alice's reservations.
	_, err = f.svc.CreateReservation(ctx, f.bob, CreateReservationInput{SlotID: overlapping.ID})
	require.NoError(t, err)
	assertSlotInvariant(t, f.db)
}

func TestBookingService_CreateReservationErrors(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{})
	requireCode(t, err, models.CodeValidation)

	_, err = f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: 999})
	requireCode(t, err, models.CodeNotFound)

	s := f.slot(t, "2025-06-01", "10:00", "11:00")
	_, err = f.svc.CreateReservation(ctx, Actor{UserID: 999, Role: models.RoleUser}, CreateReservationInput{SlotID: s.ID})
	requireCode(t, err, models.CodeNotFound)

	_, err = f.svc.CreateReservation(ctx, Actor{}, CreateReservationInput{SlotID: s.ID})
	requireCode(t, err, models.CodeUnauthorized)
}

func TestBookingService_SanctionBlocksReservation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earlier := f.slot(t, "2025-05-25", "10:00", "11:00")
	s := f.slot(t, "2025-06-01", "10:00", "11:00")

	r, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: earlier.ID})
	require.NoError(t, err)

	sanction, err := f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{
		UserID:        f.alice.UserID,
		ReservationID: &r.ID,
		Reason:        "no show",
		DurationDays:  7,
	})
	require.NoError(t, err)
	assert.True(t, sanction.Active)
	assert.Equal(t, f.now.Add(7*24*time.Hour), sanction.ExpiresAt.UTC())

	until := f.blockedUntil(t, f.alice.UserID)
	require.NotNil(t, until)
	assert.True(t, until.Equal(f.now.Add(7*24*time.Hour)))

	_, err = f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	requireCode(t, err, models.CodeBlockedUser)
	assert.Equal(t, models.SlotAvailable, f.slotStatus(t, s.ID))

	st, err := f.svc.CheckBlocked(ctx, Actor{}, f.alice.UserID)
	require.NoError(t, err)
	assert.True(t, st.Blocked)
	assert.Equal(t, 7, st.DaysRemaining)

	lifted, err := f.svc.LiftSanction(ctx, f.admin, sanction.ID)
	require.NoError(t, err)
	assert.False(t, lifted.Active)
	require.NotNil(t, lifted.LiftedBy)
	assert.Equal(t, f.admin.UserID, *lifted.LiftedBy)
	assert.Nil(t, f.blockedUntil(t, f.alice.UserID))

	_, err = f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)

	st, err = f.svc.CheckBlocked(ctx, Actor{}, f.alice.UserID)
	require.NoError(t, err)
	assert.False(t, st.Blocked)
	assert.Nil(t, st.ExpiresAt)
}

func TestBookingService_SanctionStacking(t *testing.T) {
	tests := []struct {
		name      string
		stacking  string
		wantAfter time.Duration
	}{
		{"latest wins", config.StackingLatest, 3 * 24 * time.Hour},
		{"maximum wins", config.StackingMax, 10 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{Stacking: tt.stacking})
			ctx := context.Background()

			long, err := f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.bob.UserID, Reason: "abuse", DurationDays: 10})
			require.NoError(t, err)
			short, err := f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.bob.UserID, Reason: "late", DurationDays: 3})
			require.NoError(t, err)

			until := f.blockedUntil(t, f.bob.UserID)
			require.NotNil(t, until)
			assert.True(t, until.Equal(f.now.Add(tt.wantAfter)), "blocked_until = %s", until)

			// Lifting re-derives from what remains under either policy.
			_, err = f.svc.LiftSanction(ctx, f.admin, long.ID)
			require.NoError(t, err)
			until = f.blockedUntil(t, f.bob.UserID)
			require.NotNil(t, until)
			assert.True(t, until.Equal(short.ExpiresAt))

			_, err = f.svc.LiftSanction(ctx, f.admin, short.ID)
			require.NoError(t, err)
			assert.Nil(t, f.blockedUntil(t, f.bob.UserID))

			// Lifting twice is harmless.
			_, err = f.svc.LiftSanction(ctx, f.admin, short.ID)
			require.NoError(t, err)
		})
	}
}

func TestBookingService_ShorterSanctionDoesNotOpenGap(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	long, err := f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.bob.UserID, Reason: "abuse", DurationDays: 30})
	require.NoError(t, err)
	_, err = f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.bob.UserID, Reason: "late", DurationDays: 7})
	require.NoError(t, err)

	// Day 8: the short sanction has lapsed but the sweep has not run yet.
	f.now = f.now.Add(8 * 24 * time.Hour)
	st, err := f.svc.CheckBlocked(ctx, Actor{}, f.bob.UserID)
	require.NoError(t, err)
	assert.True(t, st.Blocked)
	require.NotNil(t, st.ExpiresAt)
	assert.True(t, st.ExpiresAt.Equal(long.ExpiresAt))

	n, err := f.svc.ExpireSanctions(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err = f.svc.CheckBlocked(ctx, Actor{}, f.bob.UserID)
	require.NoError(t, err)
	assert.True(t, st.Blocked)
	assert.True(t, st.ExpiresAt.Equal(long.ExpiresAt))
}

func TestBookingService_CreateSanctionValidation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.slot(t, "2025-06-01", "10:00", "11:00")
	r, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)

	_, err = f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.bob.UserID, DurationDays: 3})
	requireCode(t, err, models.CodeValidation)
	_, err = f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.bob.UserID, Reason: "x", DurationDays: 0})
	requireCode(t, err, models.CodeValidation)
	_, err = f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: 999, Reason: "x", DurationDays: 1})
	requireCode(t, err, models.CodeNotFound)
	_, err = f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.bob.UserID, ReservationID: &r.ID, Reason: "x", DurationDays: 1})
	requireCode(t, err, models.CodeValidation)
	_, err = f.svc.CreateSanction(ctx, f.alice, ApplySanctionInput{UserID: f.bob.UserID, Reason: "x", DurationDays: 1})
	requireCode(t, err, models.CodeForbidden)
	_, err = f.svc.LiftSanction(ctx, f.admin, 999)
	requireCode(t, err, models.CodeNotFound)
}

func TestBookingService_CancelRules(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.slot(t, "2025-06-01", "10:00", "11:00")

	r, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)

	_, err = f.svc.CancelReservation(ctx, f.bob, r.ID, "")
	requireCode(t, err, models.CodeForbidden)

	_, err = f.svc.CancelReservation(ctx, f.alice, 999, "")
	requireCode(t, err, models.CodeNotFound)

	cancelled, err := f.svc.CancelReservation(ctx, f.admin, r.ID, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultAdminCancelReason, *cancelled.CancelReason)

	_, err = f.svc.CancelReservation(ctx, f.alice, r.ID, "")
	requireCode(t, err, models.CodeConflict)

	r2, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)
	withReason, err := f.svc.CancelReservation(ctx, f.alice, r2.ID, "rain")
	require.NoError(t, err)
	assert.Equal(t, "rain", *withReason.CancelReason)

	r3, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)
	f.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	_, err = f.svc.CancelReservation(ctx, f.alice, r3.ID, "")
	requireCode(t, err, models.CodeConflict)
	assert.Equal(t, models.SlotReserved, f.slotStatus(t, s.ID))
	assertSlotInvariant(t, f.db)
}

func TestBookingService_CancelUsesBookingTimezone(t *testing.T) {
	loc := time.FixedZone("ECT", -5*60*60)
	f := newFixture(t, Options{Location: loc})
	ctx := context.Background()
	s := f.slot(t, "2025-06-01", "10:00", "11:00")

	r, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)

	// 10:00 local is 15:00 UTC, so 14:00 UTC is still before the start.
	f.now = time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	_, err = f.svc.CancelReservation(ctx, f.alice, r.ID, "")
	require.NoError(t, err)
}

func TestBookingService_IllegalTransitions(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.slot(t, "2025-06-01", "10:00", "11:00")
	operator := f.user(t, "op", models.RoleOperator)

	r, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)

	_, err = f.svc.CompleteReservation(ctx, operator, r.ID)
	requireCode(t, err, models.CodeConflict)

	_, err = f.svc.ConfirmReservation(ctx, operator, r.ID)
	requireCode(t, err, models.CodeForbidden)

	_, err = f.svc.ConfirmReservation(ctx, f.admin, r.ID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmReservation(ctx, f.admin, r.ID)
	requireCode(t, err, models.CodeConflict)

	completed, err := f.svc.CompleteReservation(ctx, operator, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, models.SlotAvailable, f.slotStatus(t, s.ID))

	_, err = f.svc.CancelReservation(ctx, f.alice, r.ID, "")
	requireCode(t, err, models.CodeConflict)
	_, err = f.svc.CompleteReservation(ctx, f.admin, r.ID)
	requireCode(t, err, models.CodeConflict)
	assertSlotInvariant(t, f.db)
}

func TestBookingService_ConcurrentCreateSingleWinner(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.slot(t, "2025-06-01", "10:00", "11:00")

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const contenders = 8
	actors := make([]Actor, contenders)
	for i := range actors {
		actors[i] = f.user(t, fmt.Sprintf("player%d", i), models.RoleUser)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for _, actor := range actors {
		wg.Add(1)
		go func(a Actor) {
			defer wg.Done()
			_, err := f.svc.CreateReservation(ctx, a, CreateReservationInput{SlotID: s.ID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if models.IsCode(err, models.CodeConflict) {
				conflicts++
			}
		}(actor)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, contenders-1, conflicts)
	assertSlotInvariant(t, f.db)
}

func TestBookingService_DeleteVenueCascade(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s1 := f.slot(t, "2025-06-01", "10:00", "11:00")
	s2 := f.slot(t, "2025-06-01", "11:00", "12:00")
	f.slot(t, "2025-06-02", "10:00", "11:00")

	r1, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s1.ID})
	require.NoError(t, err)
	_, err = f.svc.CancelReservation(ctx, f.alice, r1.ID, "")
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, f.bob, CreateReservationInput{SlotID: s1.ID})
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s2.ID})
	require.NoError(t, err)
	sanction, err := f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.alice.UserID, ReservationID: &r1.ID, Reason: "late", DurationDays: 1})
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.Comment{UserID: f.bob.UserID, VenueID: f.venue.ID, Body: "good grass", Rating: 5}).Error)

	_, err = f.svc.DeleteVenue(ctx, f.alice, f.venue.ID)
	requireCode(t, err, models.CodeForbidden)

	report, err := f.svc.DeleteVenue(ctx, f.admin, f.venue.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Slots)
	assert.Equal(t, int64(3), report.Reservations)
	assert.Equal(t, int64(1), report.Comments)

	var slots, reservations, venues int64
	require.NoError(t, f.db.Model(&models.Slot{}).Where("venue_id = ?", f.venue.ID).Count(&slots).Error)
	require.NoError(t, f.db.Model(&models.Reservation{}).Count(&reservations).Error)
	require.NoError(t, f.db.Model(&models.Venue{}).Where("id = ?", f.venue.ID).Count(&venues).Error)
	assert.Zero(t, slots)
	assert.Zero(t, reservations)
	assert.Zero(t, venues)

	var kept models.Sanction
	require.NoError(t, f.db.First(&kept, sanction.ID).Error)
	assert.Nil(t, kept.ReservationID)
	assert.True(t, kept.Active)

	_, err = f.svc.DeleteVenue(ctx, f.admin, f.venue.ID)
	requireCode(t, err, models.CodeNotFound)
}

func TestBookingService_DeleteSlot(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	held := f.slot(t, "2025-06-01", "10:00", "11:00")
	history := f.slot(t, "2025-06-01", "11:00", "12:00")
	free := f.slot(t, "2025-06-01", "12:00", "13:00")

	_, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: held.ID})
	require.NoError(t, err)
	r, err := f.svc.CreateReservation(ctx, f.bob, CreateReservationInput{SlotID: history.ID})
	require.NoError(t, err)
	_, err = f.svc.CancelReservation(ctx, f.bob, r.ID, "")
	require.NoError(t, err)

	requireCode(t, f.svc.DeleteSlot(ctx, f.admin, held.ID), models.CodeConflict)
	requireCode(t, f.svc.DeleteSlot(ctx, f.admin, history.ID), models.CodeConflict)
	require.NoError(t, f.svc.DeleteSlot(ctx, f.admin, free.ID))
	requireCode(t, f.svc.DeleteSlot(ctx, f.admin, free.ID), models.CodeNotFound)
}

func TestBookingService_DuplicateSlot(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.slot(t, "2025-06-01", "10:00", "11:00")

	_, err := f.svc.CreateSlot(ctx, f.admin, CreateSlotInput{VenueID: f.venue.ID, Date: "2025-06-01", StartTime: "10:00", EndTime: "11:00"})
	requireCode(t, err, models.CodeConflict)

	_, err = f.svc.CreateSlot(ctx, f.admin, CreateSlotInput{VenueID: f.venue.ID, Date: "2025-06-01", StartTime: "11:00", EndTime: "10:00"})
	requireCode(t, err, models.CodeValidation)

	_, err = f.svc.CreateSlot(ctx, f.admin, CreateSlotInput{VenueID: 999, Date: "2025-06-01", StartTime: "10:00", EndTime: "11:00"})
	requireCode(t, err, models.CodeNotFound)
}

func TestBookingService_UpdateSlot(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	held := f.slot(t, "2025-06-01", "10:00", "11:00")
	free := f.slot(t, "2025-06-01", "11:00", "12:00")

	_, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: held.ID})
	require.NoError(t, err)

	moved := models.Window{Date: "2025-06-01", Start: "14:00", End: "15:00"}
	_, err = f.svc.UpdateSlot(ctx, f.admin, held.ID, UpdateSlotInput{Window: &moved})
	requireCode(t, err, models.CodeConflict)

	updated, err := f.svc.UpdateSlot(ctx, f.admin, free.ID, UpdateSlotInput{Window: &moved})
	require.NoError(t, err)
	assert.Equal(t, "14:00", updated.StartTime)

	clash := held.Window()
	_, err = f.svc.UpdateSlot(ctx, f.admin, free.ID, UpdateSlotInput{Window: &clash})
	requireCode(t, err, models.CodeConflict)

	available := models.SlotAvailable
	reserved := models.SlotReserved
	_, err = f.svc.UpdateSlot(ctx, f.admin, held.ID, UpdateSlotInput{Status: &available})
	requireCode(t, err, models.CodeConflict)
	_, err = f.svc.UpdateSlot(ctx, f.admin, free.ID, UpdateSlotInput{Status: &reserved})
	requireCode(t, err, models.CodeConflict)

	// Setting the consistent value repairs a drifted stored status.
	require.NoError(t, f.db.Model(&models.Slot{}).Where("id = ?", held.ID).Update("status", models.SlotAvailable).Error)
	_, err = f.svc.UpdateSlot(ctx, f.admin, held.ID, UpdateSlotInput{Status: &reserved})
	require.NoError(t, err)
	assertSlotInvariant(t, f.db)

	_, err = f.svc.UpdateSlot(ctx, f.admin, held.ID, UpdateSlotInput{})
	requireCode(t, err, models.CodeValidation)
}

func TestBookingService_UpdateSlotKeepsReservationHistory(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s := f.slot(t, "2025-06-01", "10:00", "11:00")

	r, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)
	_, err = f.svc.CancelReservation(ctx, f.alice, r.ID, "")
	require.NoError(t, err)

	moved := models.Window{Date: "2025-07-01", Start: "18:00", End: "19:00"}
	_, err = f.svc.UpdateSlot(ctx, f.admin, s.ID, UpdateSlotInput{Window: &moved})
	requireCode(t, err, models.CodeConflict)

	got, err := f.svc.GetReservation(ctx, f.alice, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Slot)
	assert.Equal(t, s.Window(), got.Slot.Window())

	// Status edits stay allowed once the reservation is history.
	available := models.SlotAvailable
	_, err = f.svc.UpdateSlot(ctx, f.admin, s.ID, UpdateSlotInput{Status: &available})
	require.NoError(t, err)
}

func TestBookingService_DeleteUserCascade(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	s1 := f.slot(t, "2025-06-01", "10:00", "11:00")
	s2 := f.slot(t, "2025-06-01", "12:00", "13:00")

	_, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s1.ID})
	require.NoError(t, err)
	r2, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s2.ID})
	require.NoError(t, err)
	_, err = f.svc.CancelReservation(ctx, f.alice, r2.ID, "")
	require.NoError(t, err)
	_, err = f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.alice.UserID, ReservationID: &r2.ID, Reason: "late", DurationDays: 2})
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.UserProfile{UserID: f.alice.UserID, Phone: "0999"}).Error)
	require.NoError(t, f.db.Create(&models.Comment{UserID: f.alice.UserID, VenueID: f.venue.ID, Body: "ok", Rating: 3}).Error)

	_, err = f.svc.DeleteUser(ctx, f.bob, f.alice.UserID)
	requireCode(t, err, models.CodeForbidden)

	report, err := f.svc.DeleteUser(ctx, f.alice, f.alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Reservations)
	assert.Equal(t, int64(1), report.SlotsReleased)
	assert.Equal(t, int64(1), report.Comments)
	assert.Equal(t, []uint{f.venue.ID}, report.VenueIDs)

	assert.Equal(t, models.SlotAvailable, f.slotStatus(t, s1.ID))
	for _, m := range []interface{}{&models.Reservation{}, &models.Sanction{}, &models.UserProfile{}, &models.Comment{}} {
		var n int64
		require.NoError(t, f.db.Model(m).Where("user_id = ?", f.alice.UserID).Count(&n).Error)
		assert.Zero(t, n, "%T rows left", m)
	}
	assert.ErrorIs(t, f.db.First(&models.User{}, f.alice.UserID).Error, gorm.ErrRecordNotFound)
	assertSlotInvariant(t, f.db)
}

func TestBookingService_AvailabilityEffectiveStatus(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	held := f.slot(t, "2025-06-01", "10:00", "11:00")
	f.slot(t, "2025-06-01", "11:00", "12:00")
	f.slot(t, "2025-06-02", "10:00", "11:00")

	_, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: held.ID})
	require.NoError(t, err)
	// Simulate a drifted stored status; the read side still reports reserved.
	require.NoError(t, f.db.Model(&models.Slot{}).Where("id = ?", held.ID).Update("status", models.SlotAvailable).Error)

	av, err := f.svc.GetAvailability(ctx, Actor{}, f.venue.ID, "2025-06-01")
	require.NoError(t, err)
	require.Len(t, av.Slots, 2)
	assert.Equal(t, f.venue.Name, av.Venue.Name)
	assert.Equal(t, held.ID, av.Slots[0].ID)
	assert.Equal(t, models.SlotReserved, av.Slots[0].Status)
	assert.Equal(t, models.SlotAvailable, av.Slots[0].StoredStatus)
	assert.Equal(t, models.SlotAvailable, av.Slots[1].Status)

	all, err := f.svc.GetAvailability(ctx, Actor{}, f.venue.ID, "")
	require.NoError(t, err)
	assert.Len(t, all.Slots, 3)

	_, err = f.svc.GetAvailability(ctx, Actor{}, f.venue.ID, "June 1")
	requireCode(t, err, models.CodeValidation)
	_, err = f.svc.GetAvailability(ctx, Actor{}, 999, "")
	requireCode(t, err, models.CodeNotFound)
}

func TestBookingService_AvailabilityCacheInvalidatedOnCommit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, Options{Cache: cache.NewAvailability(client, time.Minute)})
	ctx := context.Background()
	s := f.slot(t, "2025-06-01", "10:00", "11:00")

	av, err := f.svc.GetAvailability(ctx, Actor{}, f.venue.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, av.Slots[0].Status)
	assert.True(t, mr.Exists(cache.AvailabilityKey(f.venue.ID)))

	_, err = f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.AvailabilityKey(f.venue.ID)))

	av, err = f.svc.GetAvailability(ctx, Actor{}, f.venue.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, models.SlotReserved, av.Slots[0].Status)

	// A rejected operation leaves the cache alone.
	_, err = f.svc.CreateReservation(ctx, f.bob, CreateReservationInput{SlotID: s.ID})
	requireCode(t, err, models.CodeConflict)
	assert.True(t, mr.Exists(cache.AvailabilityKey(f.venue.ID)))
}

// interleavingCache runs beforeStore once, between the database read and
// the cache fill of a getAvailability call.
type interleavingCache struct {
	*cache.Availability
	beforeStore func()
}

func (c *interleavingCache) Store(ctx context.Context, venueID uint, date string, gen int64, v interface{}) bool {
	if hook := c.beforeStore; hook != nil {
		c.beforeStore = nil
		hook()
	}
	return c.Availability.Store(ctx, venueID, date, gen, v)
}

func TestBookingService_AvailabilityFillRacingCommit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ic := &interleavingCache{Availability: cache.NewAvailability(client, time.Minute)}
	f := newFixture(t, Options{Cache: ic})
	ctx := context.Background()
	s := f.slot(t, "2025-06-01", "10:00", "11:00")

	ic.beforeStore = func() {
		_, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: s.ID})
		require.NoError(t, err)
	}
	av, err := f.svc.GetAvailability(ctx, Actor{}, f.venue.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, av.Slots[0].Status, "read happened before the commit")
	assert.False(t, mr.Exists(cache.AvailabilityKey(f.venue.ID)), "listing read before the commit must not be cached")

	av, err = f.svc.GetAvailability(ctx, Actor{}, f.venue.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, models.SlotReserved, av.Slots[0].Status)
	assert.Equal(t, models.SlotReserved, av.Slots[0].StoredStatus)
	assert.True(t, mr.Exists(cache.AvailabilityKey(f.venue.ID)))
}

func TestBookingService_ListReservations(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	early := f.slot(t, "2025-06-01", "10:00", "11:00")
	late := f.slot(t, "2025-06-03", "10:00", "11:00")
	bobs := f.slot(t, "2025-06-02", "10:00", "11:00")

	rEarly, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: early.ID})
	require.NoError(t, err)
	rLate, err := f.svc.CreateReservation(ctx, f.alice, CreateReservationInput{SlotID: late.ID})
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, f.bob, CreateReservationInput{SlotID: bobs.ID})
	require.NoError(t, err)
	_, err = f.svc.CancelReservation(ctx, f.alice, rEarly.ID, "")
	require.NoError(t, err)

	// A user only ever sees their own reservations.
	page, err := f.svc.ListReservations(ctx, f.alice, ReservationQuery{UserID: &f.bob.UserID})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, rLate.ID, page.Items[0].ID)
	assert.Equal(t, rEarly.ID, page.Items[1].ID)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, repository.DefaultPageSize, page.Limit)

	page, err = f.svc.ListReservations(ctx, f.alice, ReservationQuery{Status: models.ReservationCancelled})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, rEarly.ID, page.Items[0].ID)

	page, err = f.svc.ListReservations(ctx, f.admin, ReservationQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)

	page, err = f.svc.ListReservations(ctx, f.admin, ReservationQuery{UserID: &f.bob.UserID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = f.svc.ListReservations(ctx, f.admin, ReservationQuery{DateFrom: "2025-06-02", DateTo: "2025-06-02"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = f.svc.ListReservations(ctx, f.admin, ReservationQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(3), page.Total)

	_, err = f.svc.ListReservations(ctx, f.admin, ReservationQuery{Status: "lost"})
	requireCode(t, err, models.CodeValidation)
	_, err = f.svc.ListReservations(ctx, f.admin, ReservationQuery{DateFrom: "01/06/2025"})
	requireCode(t, err, models.CodeValidation)

	got, err := f.svc.GetReservation(ctx, f.alice, rLate.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Slot)
	require.NotNil(t, got.Slot.Venue)
	_, err = f.svc.GetReservation(ctx, f.bob, rLate.ID)
	requireCode(t, err, models.CodeForbidden)
}

func TestBookingService_ExpireSanctions(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	short, err := f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.alice.UserID, Reason: "a", DurationDays: 1})
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)
	long, err := f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.alice.UserID, Reason: "b", DurationDays: 5})
	require.NoError(t, err)
	_, err = f.svc.CreateSanction(ctx, f.admin, ApplySanctionInput{UserID: f.bob.UserID, Reason: "c", DurationDays: 1})
	require.NoError(t, err)

	n, err := f.svc.ExpireSanctions(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(2 * 24 * time.Hour)
	n, err = f.svc.ExpireSanctions(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var expired models.Sanction
	require.NoError(t, f.db.First(&expired, short.ID).Error)
	assert.False(t, expired.Active)

	until := f.blockedUntil(t, f.alice.UserID)
	require.NotNil(t, until)
	assert.True(t, until.Equal(long.ExpiresAt))
	assert.Nil(t, f.blockedUntil(t, f.bob.UserID))

	active, err := f.svc.ListActiveSanctions(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, long.ID, active[0].ID)

	history, err := f.svc.ListUserSanctions(ctx, f.alice, f.alice.UserID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	_, err = f.svc.ListUserSanctions(ctx, f.bob, f.alice.UserID)
	requireCode(t, err, models.CodeForbidden)
}

func TestBookingService_Venues(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.CreateVenue(ctx, f.admin, VenueInput{Name: " "})
	requireCode(t, err, models.CodeValidation)
	_, err = f.svc.CreateVenue(ctx, f.admin, VenueInput{Name: "x", Latitude: 91})
	requireCode(t, err, models.CodeValidation)
	_, err = f.svc.CreateVenue(ctx, f.alice, VenueInput{Name: "x"})
	requireCode(t, err, models.CodeForbidden)

	_, err = f.svc.CreateVenue(ctx, f.admin, VenueInput{Name: "Coliseo", SportType: "basket"})
	require.NoError(t, err)

	updated, err := f.svc.UpdateVenue(ctx, f.admin, f.venue.ID, VenueInput{Name: "Cancha Sur", SportType: "futbol"})
	require.NoError(t, err)
	assert.Equal(t, "Cancha Sur", updated.Name)
	_, err = f.svc.UpdateVenue(ctx, f.admin, 999, VenueInput{Name: "nope"})
	requireCode(t, err, models.CodeNotFound)

	venues, err := f.svc.ListVenues(ctx, Actor{}, "futbol", 0, 0)
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.Equal(t, f.venue.ID, venues[0].ID)

	all, err := f.svc.ListVenues(ctx, Actor{}, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := f.svc.GetVenue(ctx, Actor{}, f.venue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cancha Sur", got.Name)
}
