package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dayeon/shop-reservation/internal/middleware"
	"github.com/dayeon/shop-reservation/internal/service"
)

// CreditHandler exposes the caller's own trust score.
type CreditHandler struct {
	Credit *service.CreditService
}

// NewCreditHandler constructs a CreditHandler.
func NewCreditHandler(credit *service.CreditService) *CreditHandler {
	if credit == nil {
		panic("nil service passed to NewCreditHandler")
	}
	return &CreditHandler{Credit: credit}
}

// Get handles GET /v1/me/credit?limit=M.  It returns the derived score
// and the latest score changes, newest first.
func (h *CreditHandler) Get(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx := c.Request().Context()
	score, err := h.Credit.Score(ctx, *uid)
	if err != nil {
		return fail(c, err)
	}
	events, err := h.Credit.Recent(ctx, *uid, limit)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(events))
	for _, e := range events {
		m := echo.Map{
			"delta":      e.Delta,
			"reason":     e.Reason,
			"created_at": e.CreatedAt,
		}
		if e.ReferenceID != nil {
			m["reference_id"] = *e.ReferenceID
		}
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"score":   score,
		"history": out,
	})
}
