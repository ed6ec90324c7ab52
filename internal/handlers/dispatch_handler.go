package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DispatchHandler exposes the no-show dispatcher
type DispatchHandler struct {
	dispatcher Dispatcher
	personnel  PersonnelLookup
	sweeper    SweepRunner
	logger     *logrus.Logger
}

// NewDispatchHandler creates a new DispatchHandler
func NewDispatchHandler(dispatcher Dispatcher, personnel PersonnelLookup, sweeper SweepRunner, logger *logrus.Logger) *DispatchHandler {
	return &DispatchHandler{
		dispatcher: dispatcher,
		personnel:  personnel,
		sweeper:    sweeper,
		logger:     logger,
	}
}

// AssignReplacementRequest lets an admin assign on a guard's behalf
type AssignReplacementRequest struct {
	PersonnelID *uuid.UUID `json:"personnel_id,omitempty"`
}

// CheckGuardStatus polls an accepted shift for lateness
// POST /api/v1/shifts/:id/guard-status
func (h *DispatchHandler) CheckGuardStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	shiftID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.dispatcher.CheckGuardStatus(c.Request.Context(), shiftID, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if result.Error != nil {
		c.JSON(statusForKind(result.Error.Kind), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// FindReplacement sends urgent offers to standby guards
// POST /api/v1/shifts/:id/find-replacement
func (h *DispatchHandler) FindReplacement(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	shiftID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.dispatcher.FindReplacement(c.Request.Context(), shiftID, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOutcome(c, h.logger, result, &result.TransitionResult, nil)
}

// AssignReplacement claims an urgent shift. Guards claim for themselves;
// admins may name the guard in the body.
// POST /api/v1/shifts/:id/assign-replacement
func (h *DispatchHandler) AssignReplacement(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	shiftID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req AssignReplacementRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	var personnelID uuid.UUID
	if actor.IsAdmin() && req.PersonnelID != nil {
		personnelID = *req.PersonnelID
	} else {
		guard, err := h.personnel.GetByUserID(c.Request.Context(), actor.UserID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		if guard == nil {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "No personnel profile for this user",
				"code":    "PERSONNEL_NOT_FOUND",
			})
			return
		}
		personnelID = guard.ID
	}

	res, err := h.dispatcher.AssignReplacement(c.Request.Context(), shiftID, personnelID)
	respondOutcome(c, h.logger, res, res, err)
}

// RunSweep runs the at-risk sweep immediately
// POST /api/v1/admin/dispatch/sweep
func (h *DispatchHandler) RunSweep(c *gin.Context) {
	h.logger.Info("[MANUAL] At-risk sweep requested via API")

	result, err := h.sweeper.RunSweepNow(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CronStatus reports the scheduler state
// GET /api/v1/admin/cron/status
func (h *DispatchHandler) CronStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sweeper.GetJobStatus())
}
