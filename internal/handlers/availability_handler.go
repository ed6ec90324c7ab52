package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// AvailabilityHandler manages a guard's weekly, blocked and special availability
type AvailabilityHandler struct {
	availability AvailabilityManager
	personnel    PersonnelLookup
	logger       *logrus.Logger
	now          func() time.Time
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(availability AvailabilityManager, personnel PersonnelLookup, logger *logrus.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		personnel:    personnel,
		logger:       logger,
		now:          time.Now,
	}
}

// ownPersonnel resolves :id and checks the caller may edit it
func (h *AvailabilityHandler) ownPersonnel(c *gin.Context) (uuid.UUID, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		return uuid.Nil, false
	}
	personnelID, ok := uuidParam(c, "id")
	if !ok {
		return uuid.Nil, false
	}
	if actor.IsAdmin() {
		return personnelID, true
	}

	guard, err := h.personnel.GetByUserID(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return uuid.Nil, false
	}
	if guard == nil || guard.ID != personnelID {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You can only manage your own availability",
			"code":    "NOT_OWNER",
		})
		return uuid.Nil, false
	}
	return personnelID, true
}

// fromDate reads ?from=YYYY-MM-DD, defaulting to today
func (h *AvailabilityHandler) fromDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("from")
	if raw == "" {
		now := h.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	from, err := time.Parse(dateLayout, raw)
	if err != nil {
		badRequest(c, "from must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return from, true
}

// GetAvailability returns the full availability configuration
// GET /api/v1/personnel/:id/availability
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	personnelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	from, ok := h.fromDate(c)
	if !ok {
		return
	}

	result, err := h.availability.Get(c.Request.Context(), personnelID, from)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetWeekly upserts one day of the weekly pattern
// PUT /api/v1/personnel/:id/availability/weekly
func (h *AvailabilityHandler) SetWeekly(c *gin.Context) {
	personnelID, ok := h.ownPersonnel(c)
	if !ok {
		return
	}
	var req models.UpsertWeeklyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.availability.SetWeekly(c.Request.Context(), personnelID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BlockDate marks a date unavailable
// POST /api/v1/personnel/:id/availability/blocked
func (h *AvailabilityHandler) BlockDate(c *gin.Context) {
	personnelID, ok := h.ownPersonnel(c)
	if !ok {
		return
	}
	var req models.BlockDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.availability.BlockDate(c.Request.Context(), personnelID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// UnblockDate removes a blocked date
// DELETE /api/v1/personnel/:id/availability/blocked/:date
func (h *AvailabilityHandler) UnblockDate(c *gin.Context) {
	personnelID, ok := h.ownPersonnel(c)
	if !ok {
		return
	}
	if err := h.availability.UnblockDate(c.Request.Context(), personnelID, c.Param("date")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Date unblocked"})
}

// SetSpecial upserts a one-off window for a date
// PUT /api/v1/personnel/:id/availability/special
func (h *AvailabilityHandler) SetSpecial(c *gin.Context) {
	personnelID, ok := h.ownPersonnel(c)
	if !ok {
		return
	}
	var req models.UpsertSpecialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.availability.SetSpecial(c.Request.Context(), personnelID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RemoveSpecial deletes a special window
// DELETE /api/v1/personnel/:id/availability/special/:date
func (h *AvailabilityHandler) RemoveSpecial(c *gin.Context) {
	personnelID, ok := h.ownPersonnel(c)
	if !ok {
		return
	}
	if err := h.availability.RemoveSpecial(c.Request.Context(), personnelID, c.Param("date")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Special availability removed"})
}

// CheckAvailability resolves a window, e.g. ?date=2026-03-16&start=18:00&end=02:00
// GET /api/v1/personnel/:id/availability/check
func (h *AvailabilityHandler) CheckAvailability(c *gin.Context) {
	personnelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	date, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}
	start, err := models.ParseTimeOfDay(c.Query("start"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	end, err := models.ParseTimeOfDay(c.Query("end"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.availability.Resolve(c.Request.Context(), personnelID, date, start, end)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpcomingWindows expands availability over the next ?days (default 14)
// GET /api/v1/personnel/:id/availability/upcoming
func (h *AvailabilityHandler) UpcomingWindows(c *gin.Context) {
	personnelID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	from, ok := h.fromDate(c)
	if !ok {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "14"))
	if err != nil {
		badRequest(c, "days must be a number")
		return
	}

	windows, err := h.availability.UpcomingWindows(c.Request.Context(), personnelID, from, days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"windows": windows, "count": len(windows)})
}
