// Package app wires repositories and services into the dispatch engine.
// The HTTP server and dispatchctl share this graph.
package app

import (
	"github.com/jmoiron/sqlx"
	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/database"
	"github.com/shieldforce/guard-dispatch/internal/queue"
	"github.com/shieldforce/guard-dispatch/internal/services"
	"github.com/sirupsen/logrus"
)

// Engine holds every long-lived component of the service
type Engine struct {
	Shifts       *database.ShiftRepository
	Bookings     *database.BookingRepository
	Personnel    *database.PersonnelRepository
	Availability *database.AvailabilityRepository

	Scores       *services.ShieldScoreService
	Notifier     *services.NotificationService
	ShiftSvc     *services.ShiftService
	AvailSvc     *services.AvailabilityService
	Planner      *services.AutoAssignmentService
	Cancellation *services.CancellationService
	Dispatcher   *services.DispatcherService
	Reviews      *services.ReviewService
	BookingSvc   *services.BookingService
	Cron         *services.CronService
}

// Build constructs the engine. The cron scheduler is created but not started.
func Build(cfg *config.Config, db *sqlx.DB, q *queue.RedisQueue, logger *logrus.Logger) *Engine {
	e := &Engine{
		Shifts:       database.NewShiftRepository(db),
		Bookings:     database.NewBookingRepository(db),
		Personnel:    database.NewPersonnelRepository(db),
		Availability: database.NewAvailabilityRepository(db),
	}
	policy := cfg.Dispatch.Policy

	e.Scores = services.NewShieldScoreService(database.NewShieldScoreRepository(db), logger)
	e.Notifier = services.NewNotificationService(database.NewNotificationRepository(db), q, logger)
	payments := services.NewPaymentPublisher(q)

	e.ShiftSvc = services.NewShiftService(e.Shifts, e.Bookings, e.Personnel, e.Scores, e.Notifier, payments, policy, logger)
	e.AvailSvc = services.NewAvailabilityService(e.Availability, e.Shifts, cfg.Location(), logger)
	e.Planner = services.NewAutoAssignmentService(e.Shifts, e.Bookings, e.Personnel, e.AvailSvc,
		services.NewScorer(policy), e.ShiftSvc, logger)
	e.Cancellation = services.NewCancellationService(e.Shifts, e.Bookings, e.Personnel, e.ShiftSvc,
		e.Planner, e.Scores, e.Notifier, policy, logger)
	e.Dispatcher = services.NewDispatcherService(e.Shifts, e.Bookings, e.Personnel, e.ShiftSvc,
		e.Notifier, q, cfg.Dispatch, cfg.Redis.OfferTTL, logger)
	e.Reviews = services.NewReviewService(e.Shifts, e.Bookings, database.NewReviewRepository(db), e.Scores, logger)
	e.BookingSvc = services.NewBookingService(e.Bookings, e.Shifts, logger)
	// Zero timeout keeps each sweep inside a one-minute schedule
	e.Cron = services.NewCronService(e.Dispatcher, cfg.Dispatch.SweepSchedule, 0, logger)

	return e
}
