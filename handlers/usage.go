package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/example/keydash/config"
	"github.com/example/keydash/usage"
	"github.com/labstack/echo/v4"
)

// GetUsage aggregates usage across all stored admin keys. The window comes
// either from the days shorthand (7, 30 or 90, ending now) or from explicit
// start/end dates (YYYY-MM-DD, end inclusive).
func (h *Handler) GetUsage(c echo.Context) error {
	w, err := h.usageWindow(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	report, err := h.Aggregator.Aggregate(c.Request().Context(), w)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to aggregate usage"})
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) usageWindow(c echo.Context) (usage.Window, error) {
	startParam := c.QueryParam("start")
	endParam := c.QueryParam("end")
	if startParam != "" || endParam != "" {
		if startParam == "" || endParam == "" {
			return usage.Window{}, errors.New("both start and end are required for an explicit range")
		}
		start, err := time.Parse("2006-01-02", startParam)
		if err != nil {
			return usage.Window{}, err
		}
		end, err := time.Parse("2006-01-02", endParam)
		if err != nil {
			return usage.Window{}, err
		}
		// End date is an inclusive day boundary.
		return usage.NewWindow(start, end.AddDate(0, 0, 1))
	}

	days := config.AppConfig.DefaultUsageDays
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return usage.Window{}, err
		}
		days = parsed
	}
	return usage.WindowFromDays(days, time.Now())
}
