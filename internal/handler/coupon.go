package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dayeon/shop-reservation/internal/middleware"
	"github.com/dayeon/shop-reservation/internal/service"
)

// CouponHandler exposes the coupon wallet: downloading a coupon,
// listing the grants that apply to a purchase, and applying a grant
// to a reservation.
type CouponHandler struct {
	Coupons *service.CouponService
}

// NewCouponHandler constructs a CouponHandler.
func NewCouponHandler(coupons *service.CouponService) *CouponHandler {
	if coupons == nil {
		panic("nil service passed to NewCouponHandler")
	}
	return &CouponHandler{Coupons: coupons}
}

// Download handles POST /v1/coupons/:id/download.  Each user may
// download a coupon once; an exhausted quota answers 409.
func (h *CouponHandler) Download(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	couponID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coupon id"})
	}
	grant, err := h.Coupons.Download(c.Request().Context(), *uid, couponID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user_coupon_id": grant.ID,
		"coupon_id":      grant.CouponID,
	})
}

// Applicable handles GET /v1/shops/:id/coupons/applicable?price=N.
// It lists the caller's unused grants that can discount a purchase of
// that price at the shop.
func (h *CouponHandler) Applicable(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	shopID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid shop id"})
	}
	price, err := strconv.ParseInt(c.QueryParam("price"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price is required"})
	}
	grants, err := h.Coupons.Applicable(c.Request().Context(), *uid, shopID, price)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(grants))
	for i := range grants {
		out = append(out, echo.Map{
			"user_coupon_id": grants[i].ID,
			"coupon_id":      grants[i].CouponID,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"coupons": out})
}

// Apply handles POST /v1/user-coupons/:id/apply.  The grant is bound
// to the reservation only if it was still unused; a grant already
// spent elsewhere answers 409.
func (h *CouponHandler) Apply(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	grantID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user coupon id"})
	}
	var body struct {
		ReservationID uint64 `json:"reservation_id"`
	}
	if err := c.Bind(&body); err != nil || body.ReservationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation_id is required"})
	}
	if err := h.Coupons.Apply(c.Request().Context(), *uid, grantID, body.ReservationID); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"applied": true})
}
