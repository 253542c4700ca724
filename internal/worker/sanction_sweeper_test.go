package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/repository"
	"courtbook/internal/service"
	"courtbook/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expirerStub struct {
	mu     sync.Mutex
	calls  int
	limits []int
	n      int
	err    error
}

func (s *expirerStub) ExpireSanctions(_ context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.limits = append(s.limits, limit)
	return s.n, s.err
}

func (s *expirerStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSanctionSweeper_RunOnce(t *testing.T) {
	t.Parallel()

	stub := &expirerStub{n: 3}
	w := NewSanctionSweeper(stub, time.Minute)
	assert.Equal(t, 3, w.RunOnce(context.Background()))
	assert.Equal(t, []int{DefaultSweepBatch}, stub.limits)

	failing := &expirerStub{n: 1, err: errors.New("db down")}
	assert.Equal(t, 1, NewSanctionSweeper(failing, time.Minute).RunOnce(context.Background()))
}

func TestSanctionSweeper_StartStopsWithContext(t *testing.T) {
	t.Parallel()

	stub := &expirerStub{}
	w := NewSanctionSweeper(stub, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return stub.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSanctionSweeper_ExpiresThroughService(t *testing.T) {
	db := testutil.NewTestDB(t)
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	svc := service.NewBookingService(repository.NewUnitOfWork(db, ""), service.Options{
		Clock: func() time.Time { return now },
	})

	admin := &models.User{Name: "admin", Email: "admin@example.com", Role: models.RoleAdmin}
	user := &models.User{Name: "ana", Email: "ana@example.com", Role: models.RoleUser}
	require.NoError(t, db.Create(admin).Error)
	require.NoError(t, db.Create(user).Error)

	_, err := svc.CreateSanction(context.Background(), service.Actor{UserID: admin.ID, Role: models.RoleAdmin},
		service.ApplySanctionInput{UserID: user.ID, Reason: "no show", DurationDays: 1})
	require.NoError(t, err)

	w := NewSanctionSweeper(svc, time.Minute)
	assert.Zero(t, w.RunOnce(context.Background()))

	now = now.Add(25 * time.Hour)
	assert.Equal(t, 1, w.RunOnce(context.Background()))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Nil(t, reloaded.BlockedUntil)
}
