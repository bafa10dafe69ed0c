package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dayeon/shop-reservation/internal/repository"
	"github.com/dayeon/shop-reservation/internal/service"
)

// fail translates service and repository errors into the HTTP
// responses the API contract promises.  Expected failure modes map to
// 4xx with a user-facing message; anything unrecognized is a 500 with
// a generic body so internals never leak.
func fail(c echo.Context, err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Msg})
	}
	var ee *service.ExternalServiceError
	if errors.As(err, &ee) {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment service unavailable, reservation cancelled"})
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrSlotTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": "time slot already taken"})
	case errors.Is(err, repository.ErrSoldOut):
		return c.JSON(http.StatusConflict, echo.Map{"error": "coupon sold out"})
	case errors.Is(err, repository.ErrAlreadyDownloaded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "coupon already downloaded"})
	case errors.Is(err, repository.ErrCouponUsed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "coupon already used"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflicting update, please retry"})
	case errors.Is(err, service.ErrInsufficientBalance):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "insufficient point balance"})
	case errors.Is(err, service.ErrPastDate):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date is in the past"})
	case errors.Is(err, service.ErrInvalidStatus):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation status does not allow this"})
	case errors.Is(err, service.ErrBlacklisted):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "reservations are blocked for this account"})
	case errors.Is(err, service.ErrPaymentCancelled):
		// The user backed out; the reservation was released.
		return c.JSON(http.StatusOK, echo.Map{"status": "cancelled", "message": "payment cancelled"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// pathID parses a positive numeric :id path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
