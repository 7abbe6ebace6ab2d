package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anihan/coop-market-backend/api/controllers"
	"github.com/anihan/coop-market-backend/api/middleware"
	"github.com/anihan/coop-market-backend/internal/earnings"
	"github.com/anihan/coop-market-backend/internal/notifications"
	"github.com/anihan/coop-market-backend/internal/orders"
	"github.com/anihan/coop-market-backend/internal/products"
	"github.com/anihan/coop-market-backend/internal/stock"
	"github.com/anihan/coop-market-backend/pkg/config"
	"github.com/anihan/coop-market-backend/pkg/db"
	"github.com/anihan/coop-market-backend/pkg/logger"
	"github.com/anihan/coop-market-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	stockService stock.Service,
	productsService products.Service,
	ordersService orders.Service,
	earningsService earnings.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(productsService, logg))
			r.Post("/", controllers.CreateProduct(productsService, logg))
			r.Get("/{productId}", controllers.GetProduct(productsService, logg))
			r.Patch("/{productId}/prices", controllers.UpdateProductPrices(productsService, logg))
			r.Post("/{productId}/archive", controllers.ArchiveProduct(productsService, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", controllers.ListMemberStock(stockService, logg))
			r.Post("/", controllers.AddStockSupply(stockService, logg))
			r.Get("/trail", controllers.SearchStockTrail(stockService, logg))
			r.Get("/{stockId}", controllers.GetStockEntry(stockService, logg))
			r.Post("/{stockId}/adjust", controllers.AdjustStock(stockService, logg))
			r.Get("/{stockId}/trail", controllers.StockTrail(stockService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Post("/", controllers.CreateOrder(ordersService, logg))
			r.Get("/{orderId}", controllers.GetOrder(ordersService, logg))
			r.Get("/{orderId}/items", controllers.ListOrderItems(ordersService, logg))
			r.Get("/{orderId}/earnings", controllers.ListOrderEarnings(earningsService, logg))
			r.Post("/{orderId}/approve", controllers.ApproveOrder(ordersService, logg))
			r.Post("/{orderId}/reject", controllers.RejectOrder(ordersService, logg))
			r.Post("/{orderId}/delay", controllers.DelayOrder(ordersService, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersService, logg))
			r.Post("/{orderId}/delivery", controllers.AdvanceDelivery(ordersService, logg))
			r.Post("/{orderId}/receive", controllers.ReceiveOrder(ordersService, logg))
		})

		r.Route("/earnings", func(r chi.Router) {
			r.Get("/", controllers.ListMemberEarnings(earningsService, logg))
			r.Get("/total", controllers.MemberEarningsTotal(earningsService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Get("/unread-count", controllers.UnreadNotificationsCount(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	return r
}
