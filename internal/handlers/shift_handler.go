package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/internal/services"
	"github.com/sirupsen/logrus"
)

// ShiftHandler handles guard and venue actions on a single shift
type ShiftHandler struct {
	lifecycle ShiftLifecycle
	canceller ShiftCanceller
	reviewer  ShiftReviewer
	personnel PersonnelLookup
	logger    *logrus.Logger
}

// NewShiftHandler creates a new ShiftHandler
func NewShiftHandler(
	lifecycle ShiftLifecycle,
	canceller ShiftCanceller,
	reviewer ShiftReviewer,
	personnel PersonnelLookup,
	logger *logrus.Logger,
) *ShiftHandler {
	return &ShiftHandler{
		lifecycle: lifecycle,
		canceller: canceller,
		reviewer:  reviewer,
		personnel: personnel,
		logger:    logger,
	}
}

// LocationRequest is the optional body of check-in and check-out
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" binding:"omitempty,longitude"`
}

// CancelShiftRequest is the body of POST /shifts/:id/cancel
type CancelShiftRequest struct {
	CancelledBy models.CancelledBy `json:"cancelled_by" binding:"required"`
	Reason      string             `json:"reason" binding:"required,max=500"`
	HoursNotice *float64           `json:"hours_notice,omitempty"`
}

// NoShowRequest is the body of POST /shifts/:id/no-show
type NoShowRequest struct {
	Notes string `json:"notes" binding:"max=1000"`
}

// ReviewRequest is the body of POST /shifts/:id/review
type ReviewRequest struct {
	Rating  int     `json:"rating" binding:"required"`
	Comment *string `json:"comment,omitempty" binding:"omitempty,max=2000"`
}

// guardAction resolves the shift id and the caller's personnel record
func (h *ShiftHandler) guardAction(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	shiftID, ok := uuidParam(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	guard, err := h.personnel.GetByUserID(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return uuid.Nil, uuid.Nil, false
	}
	if guard == nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "No personnel profile for this user",
			"code":    "PERSONNEL_NOT_FOUND",
		})
		return uuid.Nil, uuid.Nil, false
	}
	return shiftID, guard.ID, true
}

// AcceptShift accepts an offered shift
// POST /api/v1/shifts/:id/accept
func (h *ShiftHandler) AcceptShift(c *gin.Context) {
	shiftID, personnelID, ok := h.guardAction(c)
	if !ok {
		return
	}
	res, err := h.lifecycle.AcceptShift(c.Request.Context(), shiftID, personnelID)
	respondOutcome(c, h.logger, res, res, err)
}

// DeclineShift declines an offered shift
// POST /api/v1/shifts/:id/decline
func (h *ShiftHandler) DeclineShift(c *gin.Context) {
	shiftID, personnelID, ok := h.guardAction(c)
	if !ok {
		return
	}
	res, err := h.lifecycle.DeclineShift(c.Request.Context(), shiftID, personnelID)
	respondOutcome(c, h.logger, res, res, err)
}

func (h *ShiftHandler) bindLocation(c *gin.Context) (services.Location, bool) {
	var req LocationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return services.Location{}, false
		}
	}
	return services.Location{Latitude: req.Latitude, Longitude: req.Longitude}, true
}

// CheckIn records arrival on site
// POST /api/v1/shifts/:id/check-in
func (h *ShiftHandler) CheckIn(c *gin.Context) {
	shiftID, personnelID, ok := h.guardAction(c)
	if !ok {
		return
	}
	loc, ok := h.bindLocation(c)
	if !ok {
		return
	}
	res, err := h.lifecycle.CheckIn(c.Request.Context(), shiftID, personnelID, loc)
	respondOutcome(c, h.logger, res, res, err)
}

// CheckOut completes the shift and computes pay
// POST /api/v1/shifts/:id/check-out
func (h *ShiftHandler) CheckOut(c *gin.Context) {
	shiftID, personnelID, ok := h.guardAction(c)
	if !ok {
		return
	}
	loc, ok := h.bindLocation(c)
	if !ok {
		return
	}
	res, err := h.lifecycle.CheckOut(c.Request.Context(), shiftID, personnelID, loc)
	respondOutcome(c, h.logger, res, res, err)
}

// CancelShift cancels on behalf of the venue, the guard or the agency
// POST /api/v1/shifts/:id/cancel
func (h *ShiftHandler) CancelShift(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	shiftID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req CancelShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.canceller.CancelShift(c.Request.Context(), services.CancelRequest{
		ShiftID:             shiftID,
		CancelledBy:         req.CancelledBy,
		Reason:              req.Reason,
		HoursNoticeOverride: req.HoursNotice,
		Actor:               actor,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOutcome(c, h.logger, res, &res.TransitionResult, nil)
}

// MarkNoShow records that the assigned guard never arrived
// POST /api/v1/shifts/:id/no-show
func (h *ShiftHandler) MarkNoShow(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	shiftID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req NoShowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	res, err := h.lifecycle.MarkNoShow(c.Request.Context(), shiftID, actor, req.Notes)
	respondOutcome(c, h.logger, res, res, err)
}

// SubmitReview rates a completed shift
// POST /api/v1/shifts/:id/review
func (h *ShiftHandler) SubmitReview(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	shiftID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.reviewer.SubmitReview(c.Request.Context(), shiftID, actor, req.Rating, req.Comment)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if result.Error != nil {
		c.JSON(statusForKind(result.Error.Kind), result)
		return
	}
	c.JSON(http.StatusCreated, result)
}
