package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/dayeon/shop-reservation/internal/config"
	"github.com/dayeon/shop-reservation/internal/handler"
	"github.com/dayeon/shop-reservation/internal/middleware"
)

// Register wires every route of the API onto the Echo instance.
//
// The whole /v1 tree runs behind the optional-identity middleware, so
// guests pass through and authenticated callers get their user ID in
// context.  Endpoints that only make sense for a known user
// additionally require one.  The slot-availability read sits behind
// the response cache; it is an advisory read, so a briefly stale
// answer is harmless.
func Register(
	e *echo.Echo,
	cfg config.Config,
	rdb *redis.Client,
	reservations *handler.ReservationHandler,
	points *handler.PointHandler,
	coupons *handler.CouponHandler,
	credit *handler.CreditHandler,
) {
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1",
		middleware.Identity(cfg.JWTSecret),
		middleware.RateLimit(config.LoadRateLimitConfig(), rdb),
	)

	cached := middleware.ResponseCache(config.LoadCacheConfig(), rdb)
	v1.GET("/shops/:id/slots", reservations.GetSlots, cached)

	// Booking lifecycle; guests allowed, ownership enforced in the
	// service layer.
	v1.POST("/reservations", reservations.Create)
	v1.POST("/reservations/:id/settle", reservations.Settle)
	v1.DELETE("/reservations/:id", reservations.Cancel)
	v1.PATCH("/reservations/:id", reservations.Reschedule)

	auth := v1.Group("", middleware.RequireUser())
	auth.GET("/me/reservations", reservations.ListMine)
	auth.GET("/me/points", points.Get)
	auth.POST("/me/points/consume", points.Consume)
	auth.GET("/me/credit", credit.Get)
	auth.POST("/coupons/:id/download", coupons.Download)
	auth.GET("/shops/:id/coupons/applicable", coupons.Applicable)
	auth.POST("/user-coupons/:id/apply", coupons.Apply)
}
