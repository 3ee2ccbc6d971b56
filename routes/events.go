package routes

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"eventsphere/middlewares"
	"eventsphere/models"
)

// GET /api/events
func (d *deps) listEvents(c *gin.Context) {
	f, err := parseEventFilter(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	events, total, err := d.events.List(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, models.EventPage{Events: events, Total: total, Page: f.Page, Limit: f.Limit})
}

// GET /api/events/:id
func (d *deps) getEvent(c *gin.Context) {
	event, err := d.events.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// GET /api/events/stats
func (d *deps) eventStats(c *gin.Context) {
	stats, err := d.events.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if stats.Categories == nil {
		stats.Categories = map[string]int64{}
	}
	c.JSON(http.StatusOK, stats)
}

// POST /api/events
func (d *deps) createEvent(c *gin.Context) {
	id, _ := middlewares.CurrentIdentity(c)
	in, _ := middlewares.Payload[models.EventInput](c)

	event, err := models.NewEvent(*in, id.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	if err := d.events.Create(ctx, &event); err != nil {
		_ = c.Error(err)
		return
	}
	d.inv.PurgeEventsList(ctx)

	zerolog.Ctx(ctx).Info().Str("event_id", event.ID).Msg("event created")
	c.JSON(http.StatusCreated, event)
}

// PUT /api/events/:id
func (d *deps) updateEvent(c *gin.Context) {
	patch, _ := middlewares.Payload[models.EventPatch](c)
	ctx := c.Request.Context()

	event, err := d.events.Update(ctx, c.Param("id"), *patch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	d.inv.PurgeEvent(ctx, event.ID)

	zerolog.Ctx(ctx).Info().Str("event_id", event.ID).Msg("event updated")
	c.JSON(http.StatusOK, event)
}

// DELETE /api/events/:id
func (d *deps) deleteEvent(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if err := d.events.Delete(ctx, id); err != nil {
		_ = c.Error(err)
		return
	}
	d.inv.PurgeEvent(ctx, id)

	zerolog.Ctx(ctx).Info().Str("event_id", id).Msg("event deleted")
	c.Status(http.StatusNoContent)
}

// parseEventFilter reads category, search, startDate, endDate, page and limit.
func parseEventFilter(c *gin.Context) (models.EventFilter, error) {
	f := models.EventFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     1,
		Limit:    models.DefaultPageSize,
	}
	var problems []string

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > models.MaxPageSize {
			problems = append(problems, "limit must be between 1 and "+strconv.Itoa(models.MaxPageSize))
		} else {
			f.Limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil || n < 1:
			problems = append(problems, "page must be a positive integer")
		case int64(n-1) > math.MaxInt64/int64(f.Limit):
			// the offset (page-1)*limit must fit in an int64
			problems = append(problems, "page is out of range")
		default:
			f.Page = n
		}
	}
	if v := c.Query("startDate"); v != "" {
		t, _, err := parseDate(v)
		if err != nil {
			problems = append(problems, "startDate must be an RFC 3339 timestamp or YYYY-MM-DD")
		} else {
			f.From = &t
		}
	}
	if v := c.Query("endDate"); v != "" {
		t, dayOnly, err := parseDate(v)
		if err != nil {
			problems = append(problems, "endDate must be an RFC 3339 timestamp or YYYY-MM-DD")
		} else {
			// a bare day includes the whole day
			if dayOnly {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			f.To = &t
		}
	}

	if len(problems) > 0 {
		return models.EventFilter{}, &models.ValidationError{Problems: problems}
	}
	return f, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	return t, true, err
}
