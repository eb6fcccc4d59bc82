// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetdesk/internal/http/handlers"
	"fleetdesk/internal/http/middleware"
	"fleetdesk/internal/infra"
	"fleetdesk/internal/modules/audit"
	"fleetdesk/internal/modules/dispatch"
	"fleetdesk/internal/modules/driver"
	"fleetdesk/internal/modules/inventory"
	"fleetdesk/internal/modules/order"
	"fleetdesk/internal/modules/route"
	"fleetdesk/internal/modules/settings"
	"fleetdesk/internal/modules/wallet"
)

type Deps struct {
	Order     *order.Service
	Inventory *inventory.Service
	Wallet    *wallet.Service
	Driver    *driver.Service
	Dispatch  *dispatch.Service
	Route     *route.Service
	Audit     *audit.Service
	Settings  *settings.Service
	Verifier  infra.TokenVerifier
	Log       *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(d.Log), middleware.Recovery(d.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(d.Verifier))

	admin := api.Group("", middleware.RequireRole(middleware.RoleAdmin))
	{
		orders := handlers.NewOrderHandler(d.Order)
		admin.POST("/orders", orders.Create)
		admin.GET("/orders", orders.List)
		admin.GET("/orders/unassigned", orders.Unassigned)
		admin.GET("/orders/pending-verification", orders.PendingVerifications)
		admin.GET("/orders/:id", orders.Get)
		admin.POST("/orders/:id/status", orders.UpdateStatus)
		admin.POST("/orders/:id/cancel", orders.Cancel)
		admin.POST("/orders/:id/fail", orders.MarkFailed)
		admin.POST("/orders/:id/return", orders.MarkReturned)
		admin.POST("/orders/:id/payment/approve", orders.ApprovePayment)
		admin.POST("/orders/:id/payment/reject", orders.RejectPayment)
		admin.GET("/payments/history", orders.VerificationHistory)

		products := handlers.NewInventoryHandler(d.Inventory)
		admin.POST("/products", products.Create)
		admin.GET("/products", products.List)
		admin.GET("/products/low-stock", products.LowStock)
		admin.GET("/products/:id", products.Get)
		admin.POST("/products/:id/restock", products.Restock)
		admin.GET("/products/:id/history", products.History)

		drivers := handlers.NewDriverHandler(d.Driver, d.Wallet, d.Route)
		admin.POST("/drivers", drivers.Create)
		admin.GET("/drivers", drivers.List)
		admin.GET("/drivers/available", drivers.Available)
		admin.GET("/drivers/nearby", drivers.Nearby)
		admin.GET("/drivers/:id", drivers.Get)
		admin.PUT("/drivers/:id/duty", drivers.SetDuty)
		admin.GET("/drivers/:id/orders", drivers.Orders)
		admin.GET("/wallets", drivers.Wallets)
		admin.POST("/wallets/:id/settle", drivers.Settle)
		admin.GET("/wallets/:id/history", drivers.SettlementHistory)

		dispatchH := handlers.NewDispatchHandler(d.Dispatch, d.Route)
		admin.POST("/dispatch/assign", dispatchH.Assign)
		admin.GET("/dispatch/assigned", dispatchH.Assigned)
		admin.POST("/routes", dispatchH.CreateRoute)
		admin.GET("/routes", dispatchH.ListRoutes)
		admin.GET("/routes/:id", dispatchH.GetRoute)
		admin.PUT("/routes/:id/sequence", dispatchH.Resequence)
		admin.GET("/routes/:id/suggestion", dispatchH.Suggest)
		admin.GET("/routes/:id/legs", dispatchH.Legs)
		admin.POST("/routes/:id/activate", dispatchH.Activate)
		admin.POST("/routes/:id/complete", dispatchH.Complete)

		adminH := handlers.NewAdminHandler(d.Audit, d.Settings)
		admin.GET("/audit", adminH.Audit)
		admin.GET("/audit/recent", adminH.RecentAudit)
		admin.GET("/settings/warehouse", adminH.Warehouse)
		admin.PUT("/settings/warehouse", adminH.SetWarehouse)
	}

	app := api.Group("/driver", middleware.RequireRole(middleware.RoleDriver, middleware.RoleAdmin))
	{
		me := handlers.NewDriverAppHandler(d.Driver, d.Order, d.Route)
		app.GET("/me", me.Me)
		app.PUT("/me/duty", me.SetDuty)
		app.PUT("/me/location", me.UpdateLocation)
		app.PUT("/me/push-token", me.SetPushToken)
		app.GET("/me/routes", me.Routes)
		app.POST("/routes/:id/progress", me.Progress)
		app.POST("/orders/:id/status", me.UpdateOrderStatus)
	}

	return r
}
