package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shieldforce/guard-dispatch/internal/middleware"
	"github.com/shieldforce/guard-dispatch/internal/models"
)

// Handlers groups everything mounted under /api/v1
type Handlers struct {
	Booking      *BookingHandler
	Shift        *ShiftHandler
	Dispatch     *DispatchHandler
	Availability *AvailabilityHandler
}

// RegisterRoutes mounts the API on api. auth must authenticate the
// caller; role checks are applied per route.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	venue := middleware.RequireRole(models.RoleVenue, models.RoleAdmin)
	guard := middleware.RequireRole(models.RolePersonnel, models.RoleAdmin)
	operator := middleware.RequireRole(models.RoleVenue, models.RoleAgency, models.RoleAdmin)

	bookings := api.Group("/bookings", auth)
	{
		bookings.POST("", venue, h.Booking.PostBooking)
		bookings.GET("/:id", h.Booking.GetBooking)
		bookings.POST("/:id/auto-assign", operator, h.Booking.AutoAssign)
	}

	shifts := api.Group("/shifts", auth)
	{
		shifts.POST("/:id/accept", guard, h.Shift.AcceptShift)
		shifts.POST("/:id/decline", guard, h.Shift.DeclineShift)
		shifts.POST("/:id/check-in", guard, h.Shift.CheckIn)
		shifts.POST("/:id/check-out", guard, h.Shift.CheckOut)
		shifts.POST("/:id/cancel", h.Shift.CancelShift)
		shifts.POST("/:id/no-show", venue, h.Shift.MarkNoShow)
		shifts.POST("/:id/review", venue, h.Shift.SubmitReview)

		shifts.POST("/:id/guard-status", operator, h.Dispatch.CheckGuardStatus)
		shifts.POST("/:id/find-replacement", operator, h.Dispatch.FindReplacement)
		shifts.POST("/:id/assign-replacement", guard, h.Dispatch.AssignReplacement)
	}

	personnel := api.Group("/personnel/:id/availability", auth)
	{
		personnel.GET("", h.Availability.GetAvailability)
		personnel.GET("/check", h.Availability.CheckAvailability)
		personnel.GET("/upcoming", h.Availability.UpcomingWindows)
		personnel.PUT("/weekly", guard, h.Availability.SetWeekly)
		personnel.POST("/blocked", guard, h.Availability.BlockDate)
		personnel.DELETE("/blocked/:date", guard, h.Availability.UnblockDate)
		personnel.PUT("/special", guard, h.Availability.SetSpecial)
		personnel.DELETE("/special/:date", guard, h.Availability.RemoveSpecial)
	}

	admin := api.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/dispatch/sweep", h.Dispatch.RunSweep)
		admin.GET("/cron/status", h.Dispatch.CronStatus)
	}
}
