package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leadline/internal/api/auth"
	"github.com/leadline/internal/lead"
	"github.com/leadline/internal/store"
)

func (s *Server) getLeads(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	params := store.ListLeadsParams{
		Page:      page,
		Limit:     limit,
		Status:    store.LeadStatus(c.QueryParam("status")),
		SortBy:    c.QueryParam("sort_by"),
		SortOrder: c.QueryParam("sort_order"),
	}

	leads, total, err := s.leads.List(c.Request().Context(), params)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"leads": leads,
			"total": total,
			"page":  page,
		},
	})
}

type updateLeadStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateLeadStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lead id")
	}

	var req updateLeadStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	updated, err := s.leads.Transition(c.Request().Context(), id, store.LeadStatus(req.Status))
	if err != nil {
		var invalid *lead.InvalidTransitionError
		if errors.As(err, &invalid) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"status":  "fail",
				"message": invalid.Error(),
				"allowed": invalid.Allowed,
			})
		}
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   map[string]interface{}{"lead": updated},
	})
}

type addNoteRequest struct {
	Content string `json:"content"`
}

func (s *Server) addLeadNote(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lead id")
	}

	var req addNoteRequest
	if err := c.Bind(&req); err != nil || req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "note content is required")
	}

	addedBy := ""
	if claims := auth.ClaimsFromContext(c); claims != nil {
		addedBy = claims.Email
	}

	note, err := s.leads.AddNote(c.Request().Context(), id, req.Content, addedBy)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   map[string]interface{}{"note": note},
	})
}

type manualFollowUpRequest struct {
	Message    string  `json:"message"`
	DelayHours float64 `json:"delay_hours"`
}

func (s *Server) scheduleLeadFollowUp(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid lead id")
	}

	if s.scheduler == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "follow-up queue unavailable")
	}

	var req manualFollowUpRequest
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.DelayHours <= 0 {
		req.DelayHours = 1
	}

	target, err := s.leadStore.FindByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if target == nil {
		return echo.NewHTTPError(http.StatusNotFound, "lead not found")
	}

	delay := time.Duration(req.DelayHours * float64(time.Hour))
	if err := s.scheduler.Schedule(c.Request().Context(), target.ID, target.Phone, req.Message, delay); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   map[string]interface{}{"scheduledIn": req.DelayHours},
	})
}
