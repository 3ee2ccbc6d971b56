package routes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"eventsphere/middlewares"
	"eventsphere/models"
	"eventsphere/utils"
)

// POST /api/registrations/:eventId
func (d *deps) registerForEvent(c *gin.Context) {
	id, _ := middlewares.CurrentIdentity(c)
	eventID := c.Param("eventId")
	ctx := c.Request.Context()

	reg, err := d.regs.Register(ctx, eventID, id.UserID)
	d.metrics.RegistrationOutcome(registrationOutcome(err))
	if err != nil {
		_ = c.Error(err)
		return
	}
	// registeredCount changed
	d.inv.PurgeEvent(ctx, eventID)

	zerolog.Ctx(ctx).Info().Str("event_id", eventID).Msg("registered for event")
	c.JSON(http.StatusCreated, gin.H{"message": "Registered successfully", "registration": reg})
}

// DELETE /api/registrations/:eventId
func (d *deps) cancelRegistration(c *gin.Context) {
	id, _ := middlewares.CurrentIdentity(c)
	eventID := c.Param("eventId")
	ctx := c.Request.Context()

	if err := d.regs.Cancel(ctx, eventID, id.UserID); err != nil {
		_ = c.Error(err)
		return
	}
	d.metrics.RegistrationOutcome(middlewares.OutcomeCancelled)
	d.inv.PurgeEvent(ctx, eventID)

	c.JSON(http.StatusOK, gin.H{"message": "Registration cancelled"})
}

// GET /api/registrations/:eventId/attendees
func (d *deps) listAttendees(c *gin.Context) {
	attendees, err := d.attendees(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, attendees)
}

// GET /api/registrations/:eventId/attendees/csv
func (d *deps) exportAttendees(c *gin.Context) {
	attendees, err := d.attendees(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", utils.AttendeesFilename(c.Param("eventId"))))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := utils.WriteAttendeesCSV(c.Writer, attendees); err != nil {
		// headers are already out; all that is left is to log it
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("csv export failed")
	}
}

// attendees returns the event's attendees, or ErrEventNotFound.
func (d *deps) attendees(c *gin.Context) ([]models.Attendee, error) {
	ctx := c.Request.Context()
	eventID := c.Param("eventId")

	if _, err := d.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	attendees, err := d.regs.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if attendees == nil {
		attendees = []models.Attendee{}
	}
	return attendees, nil
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return middlewares.OutcomeRegistered
	case errors.Is(err, models.ErrEventFull):
		return middlewares.OutcomeFull
	case errors.Is(err, models.ErrAlreadyRegistered):
		return middlewares.OutcomeDuplicate
	case errors.Is(err, models.ErrEventNotFound):
		return middlewares.OutcomeNotFound
	default:
		return middlewares.OutcomeError
	}
}
