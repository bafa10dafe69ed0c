package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dayeon/shop-reservation/internal/middleware"
	"github.com/dayeon/shop-reservation/internal/model"
	"github.com/dayeon/shop-reservation/internal/service"
)

// PointHandler exposes the loyalty point ledger.  All endpoints
// require an authenticated user; guests have no ledger.
type PointHandler struct {
	Points *service.PointService
}

// NewPointHandler constructs a PointHandler.
func NewPointHandler(points *service.PointService) *PointHandler {
	if points == nil {
		panic("nil service passed to NewPointHandler")
	}
	return &PointHandler{Points: points}
}

func pointEventJSON(e *model.PointEvent) echo.Map {
	m := echo.Map{
		"id":          e.ID,
		"amount":      e.Amount,
		"type":        e.Type,
		"description": e.Description,
		"created_at":  e.CreatedAt,
	}
	if e.ReservationID != nil {
		m["reservation_id"] = *e.ReservationID
	}
	if e.ExpiresAt != nil {
		m["expires_at"] = *e.ExpiresAt
	}
	return m
}

// Get handles GET /v1/me/points?page=N&limit=M.  It returns the
// derived balance together with one page of ledger history, newest
// first.
func (h *PointHandler) Get(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx := c.Request().Context()
	balance, err := h.Points.Balance(ctx, *uid)
	if err != nil {
		return fail(c, err)
	}
	events, hasMore, err := h.Points.History(ctx, *uid, page, limit)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(events))
	for i := range events {
		out = append(out, pointEventJSON(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"balance":  balance,
		"history":  out,
		"has_more": hasMore,
	})
}

// Consume handles POST /v1/me/points/consume.  A spend beyond the
// current balance answers 422 without touching the ledger.
func (h *PointHandler) Consume(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	var body struct {
		Amount        int64   `json:"amount"`
		ReservationID *uint64 `json:"reservation_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if _, err := h.Points.Consume(c.Request().Context(), *uid, body.Amount, body.ReservationID); err != nil {
		return fail(c, err)
	}
	balance, err := h.Points.Balance(c.Request().Context(), *uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": balance})
}
