package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/internal/services"
	"github.com/shieldforce/guard-dispatch/pkg/validator"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles booking posting and auto-assignment
type BookingHandler struct {
	bookings BookingManager
	planner  AutoAssigner
	logger   *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingManager, planner AutoAssigner, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, planner: planner, logger: logger}
}

// PostBooking creates a booking and its pending shifts
// POST /api/v1/bookings
func (h *BookingHandler) PostBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req models.PostBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	booking, err := h.bookings.PostBooking(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"shifts":     len(booking.Shifts),
	}).Info("Booking posted")

	c.JSON(http.StatusCreated, booking)
}

// GetBooking returns a booking with its shifts and derived status
// GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// AutoAssign fills the booking's unfilled shifts with ranked offers
// POST /api/v1/bookings/:id/auto-assign
func (h *BookingHandler) AutoAssign(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var opts services.AutoAssignOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if err := validator.Struct(opts); err != nil {
		badRequest(c, err.Error())
		return
	}

	// Same visibility rule as reading the booking
	if _, err := h.bookings.GetBooking(c.Request.Context(), id, actor); err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.planner.AutoAssignShifts(c.Request.Context(), id, opts)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
