package router

import (
	"net/http"

	"github.com/orchardlane/backend/internal/auth"
	"github.com/orchardlane/backend/internal/coupons"
	"github.com/orchardlane/backend/internal/dashboard"
	"github.com/orchardlane/backend/internal/handlers"
	"github.com/orchardlane/backend/internal/middleware"
)

// New returns an http.Handler that serves the API under /api/v1.
// authMW resolves the Bearer token into a context user; admin routes
// additionally require the admin role.
func New(
	authHandler *auth.Handler,
	loyaltyHandler *handlers.LoyaltyHandler,
	ordersHandler *handlers.OrdersHandler,
	couponsHandler *coupons.Handler,
	dashHandler *dashboard.Handler,
	authMW func(http.Handler) http.Handler,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	user := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(middleware.RequireAdmin(h)) }

	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)

	mux.Handle("GET "+base+"/account/me", user(dashHandler.GetMe))
	mux.Handle("GET "+base+"/account/vouchers", user(dashHandler.ListVouchers))
	mux.Handle("GET "+base+"/account/milestones", user(dashHandler.ListMilestones))

	mux.Handle("GET "+base+"/loyalty/progress", user(loyaltyHandler.Progress))
	mux.Handle("GET "+base+"/loyalty/history", user(loyaltyHandler.History))
	mux.Handle("POST "+base+"/loyalty/redeem", user(loyaltyHandler.Redeem))
	mux.Handle("POST "+base+"/loyalty/check-milestones", user(loyaltyHandler.CheckMilestones))
	mux.Handle("POST "+base+"/loyalty/adjust", admin(loyaltyHandler.Adjust))
	mux.Handle("GET "+base+"/loyalty/audit/{user_id}", admin(dashHandler.AuditUser))

	mux.Handle("POST "+base+"/orders/complete", admin(ordersHandler.CompleteOrder))

	// Code lookup is public so checkout can preview a discount pre-login.
	mux.HandleFunc("GET "+base+"/coupons/{code}/validate", couponsHandler.Validate)
	mux.Handle("POST "+base+"/coupons/apply", user(couponsHandler.Apply))
	mux.Handle("POST "+base+"/coupons", admin(couponsHandler.Create))
	mux.Handle("GET "+base+"/coupons/{code}/stats", admin(couponsHandler.GetStats))

	return mux
}
