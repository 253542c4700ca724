package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/middleware"
	"courtbook/internal/models"
	"courtbook/internal/observability"
	"courtbook/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// AvailabilityCache stores availability listings per venue. Implementations
// must be safe to call with a disabled backend.
type AvailabilityCache interface {
	Fetch(ctx context.Context, venueID uint, date string, dst interface{}) bool
	// Generation is read before loading a listing; Store drops the listing
	// if the venue was invalidated after that read.
	Generation(ctx context.Context, venueID uint) (int64, bool)
	Store(ctx context.Context, venueID uint, date string, gen int64, v interface{}) bool
	InvalidateVenues(ctx context.Context, venueIDs ...uint)
}

type noopCache struct{}

func (noopCache) Fetch(context.Context, uint, string, interface{}) bool        { return false }
func (noopCache) Generation(context.Context, uint) (int64, bool)               { return 0, false }
func (noopCache) Store(context.Context, uint, string, int64, interface{}) bool { return false }
func (noopCache) InvalidateVenues(context.Context, ...uint)                    {}

// Options configures a BookingService.
type Options struct {
	// Location interprets slot dates and times. Defaults to UTC.
	Location *time.Location
	// Stacking is the sanction stacking policy. Defaults to config.StackingMax.
	Stacking string
	// Clock overrides time.Now in tests.
	Clock func() time.Time
	// Cache is consulted by getAvailability and invalidated after commits.
	Cache AvailabilityCache
}

// BookingService runs every public booking operation as one unit of work:
// authorize once, open a transaction, run the component checks and writes,
// commit or roll back, then classify the error.
type BookingService struct {
	uow     *repository.UnitOfWork
	slots   SlotRegistry
	overlap OverlapValidator
	gate    SanctionGate
	machine ReservationMachine
	cascade CascadeCoordinator
	cache   AvailabilityCache
	clock   func() time.Time
}

func NewBookingService(uow *repository.UnitOfWork, opts Options) *BookingService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Stacking == "" {
		opts.Stacking = config.StackingMax
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Cache == nil {
		opts.Cache = noopCache{}
	}
	return &BookingService{
		uow:     uow,
		slots:   SlotRegistry{},
		overlap: OverlapValidator{},
		gate:    SanctionGate{Stacking: opts.Stacking},
		machine: ReservationMachine{Location: opts.Location},
		cascade: CascadeCoordinator{},
		cache:   opts.Cache,
		clock:   opts.Clock,
	}
}

func (s *BookingService) now() time.Time {
	return s.clock().UTC()
}

// unit is the per-operation state collected while the transaction runs.
type unit struct {
	grant  grant
	venues []uint
	attrs  []any
}

// touch marks venues whose availability listing must be invalidated after commit.
func (u *unit) touch(venueIDs ...uint) {
	u.venues = append(u.venues, venueIDs...)
}

// log adds attributes to the operation's completion log record.
func (u *unit) log(attrs ...any) {
	u.attrs = append(u.attrs, attrs...)
}

type work func(ctx context.Context, repos *repository.Repositories, u *unit) error

// mutate runs fn inside one transaction.
func (s *BookingService) mutate(ctx context.Context, op Operation, actor Actor, fn work) error {
	return s.run(ctx, op, actor, true, fn)
}

// read runs fn against the plain connection.
func (s *BookingService) read(ctx context.Context, op Operation, actor Actor, fn work) error {
	return s.run(ctx, op, actor, false, fn)
}

func (s *BookingService) run(ctx context.Context, op Operation, actor Actor, write bool, fn work) error {
	g, err := authorize(op, actor)
	if err != nil {
		observability.RecordOperation(string(op), errorCode(err))
		return err
	}

	ctx = middleware.WithCorrelationID(ctx, observability.NewCorrelationID())
	span, ctx := observability.NewSpan(ctx, "booking."+string(op),
		attribute.String("booking.operation", string(op)),
		attribute.Int64("booking.actor_id", int64(actor.UserID)),
	)
	defer span.End()

	u := &unit{grant: g}
	done := observability.TrackTransaction(string(op))
	if write {
		err = s.uow.Do(ctx, func(ctx context.Context, repos *repository.Repositories) error {
			return fn(ctx, repos, u)
		})
	} else {
		err = fn(ctx, s.uow.Read(), u)
	}
	done()

	if err != nil {
		err = database.ClassifyError(err)
		span.SetError(err)
		code := errorCode(err)
		observability.RecordOperation(string(op), code)
		attrs := append([]any{
			slog.String("operation", string(op)),
			slog.String("code", code),
			slog.String("error", err.Error()),
		}, u.attrs...)
		if code == models.CodeInternal {
			middleware.Logger.ErrorContext(ctx, "booking operation failed", attrs...)
		} else {
			middleware.Logger.InfoContext(ctx, "booking operation rejected", attrs...)
		}
		return err
	}

	observability.RecordOperation(string(op), "")
	if len(u.venues) > 0 {
		s.cache.InvalidateVenues(ctx, u.venues...)
	}
	if write {
		middleware.Logger.InfoContext(ctx, "booking operation committed",
			append([]any{slog.String("operation", string(op))}, u.attrs...)...)
	}
	return nil
}

func errorCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return models.CodeInternal
}
