package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dayeon/shop-reservation/internal/middleware"
	"github.com/dayeon/shop-reservation/internal/model"
	"github.com/dayeon/shop-reservation/internal/service"
)

// ReservationHandler exposes the booking lifecycle over HTTP:
// availability, creation, settlement, cancellation and reschedule.
// Guests may create and settle reservations; all other identity rules
// live in the service layer.
type ReservationHandler struct {
	Booking *service.BookingService
	Slots   *service.SlotService
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(booking *service.BookingService, slots *service.SlotService) *ReservationHandler {
	if booking == nil || slots == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Booking: booking, Slots: slots}
}

// reservationJSON is the wire shape of a reservation.
func reservationJSON(r *model.Reservation) echo.Map {
	return echo.Map{
		"id":        r.ID,
		"user_id":   r.UserID,
		"shop_id":   r.ShopID,
		"course_id": r.CourseID,
		"date":      r.Date,
		"time":      r.Time,
		"status":    r.Status,
	}
}

// GetSlots handles GET /v1/shops/:id/slots?date=YYYY-MM-DD.  It
// returns the free time slots for the shop on that date.  The answer
// is advisory and may be cached briefly; the slot guard at creation
// time is what actually decides a race.
func (h *ReservationHandler) GetSlots(c echo.Context) error {
	shopID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid shop id"})
	}
	date := c.QueryParam("date")
	if date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date is required"})
	}
	slots, err := h.Slots.Available(c.Request().Context(), shopID, date)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "slots": slots})
}

// Create handles POST /v1/reservations.  The body carries shop,
// course, date and time; the caller may be a guest.  A taken slot
// answers 409.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body struct {
		ShopID   uint64 `json:"shop_id"`
		CourseID uint64 `json:"course_id"`
		Date     string `json:"date"`
		Time     string `json:"time"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ShopID == 0 || body.CourseID == 0 || body.Date == "" || body.Time == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "shop_id, course_id, date and time are required"})
	}
	res, err := h.Booking.Create(c.Request().Context(), middleware.UserID(c), body.ShopID, body.CourseID, body.Date, body.Time)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, reservationJSON(res))
}

// Settle handles POST /v1/reservations/:id/settle.  The body may
// spend points and apply a downloaded coupon; when the remainder is
// zero the reservation confirms without touching the payment gateway.
func (h *ReservationHandler) Settle(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		UsePoints int64   `json:"use_points"`
		GrantID   *uint64 `json:"user_coupon_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Booking.Settle(c.Request().Context(), middleware.UserID(c), id, body.UsePoints, body.GrantID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, reservationJSON(res))
}

// Cancel handles DELETE /v1/reservations/:id.  Spent points and an
// applied coupon are returned best-effort before the status flips.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Booking.Cancel(c.Request().Context(), middleware.UserID(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.StatusCancelled})
}

// Reschedule handles PATCH /v1/reservations/:id.  The reservation
// moves to the new slot in place and resets to pending.
func (h *ReservationHandler) Reschedule(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		Date string `json:"date"`
		Time string `json:"time"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Date == "" || body.Time == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date and time are required"})
	}
	res, err := h.Booking.Reschedule(c.Request().Context(), middleware.UserID(c), id, body.Date, body.Time)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, reservationJSON(res))
}

// ListMine handles GET /v1/me/reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	list, err := h.Booking.ListByUser(c.Request().Context(), *uid)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(list))
	for i := range list {
		out = append(out, reservationJSON(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}
