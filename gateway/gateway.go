package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/pkg/app"
	"github.com/evansochadeka/BenFarm/pkg/auth"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/models"
)

type Gateway struct {
	app     *app.App
	config  *config.Config
	logger  *zap.Logger
	router  *gin.Engine
	limiter *userLimiter
	server  *http.Server
}

func NewGateway(a *app.App) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(a.Logger.Named("http")))
	router.Use(metricsMiddleware(a.Metrics))
	router.Use(cors.New(corsConfig(a.Config.Gateway.AllowOrigins)))

	g := &Gateway{
		app:     a,
		config:  a.Config,
		logger:  a.Logger.Named("gateway"),
		router:  router,
		limiter: newUserLimiter(a.Config.Assistant.RatePerMin),
	}
	g.SetupRoutes()
	return g
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.AllowCredentials = true
	for _, o := range origins {
		if o == "*" {
			cfg.AllowOriginFunc = func(string) bool { return true }
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", g.health)
	g.router.GET("/metrics", gin.WrapH(g.app.Metrics.Handler()))
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	ws := g.router.Group("/ws", g.authenticate, requireUser)
	ws.GET("/chat/:room", g.chatSocket)

	v1 := g.router.Group("/api/v1", g.authenticate)
	{
		a := v1.Group("/auth")
		a.POST("/register", g.register)
		a.POST("/login", g.login)
		a.POST("/logout", g.logout)
		a.GET("/me", requireUser, g.me)

		v1.GET("/products", g.listProducts)
		v1.GET("/products/categories", g.productCategories)
		v1.GET("/products/:id", g.getProduct)

		inv := v1.Group("/inventory", requireUser, requireCapability(auth.CapManageInventory))
		inv.GET("", g.listInventory)
		inv.POST("", g.createProduct)
		inv.GET("/low-stock", g.lowStock)
		inv.GET("/ledger", g.sellerLedger)
		inv.PUT("/:id", g.updateProduct)
		inv.DELETE("/:id", g.deleteProduct)
		inv.POST("/:id/restock", g.restockProduct)
		inv.POST("/:id/adjust", g.adjustProduct)
		inv.GET("/:id/ledger", g.productLedger)

		c := v1.Group("/cart", requireUser, requireCapability(auth.CapUseCart))
		c.GET("", g.viewCart)
		c.POST("/items", g.addCartItem)
		c.PUT("/items/:productID", g.setCartItem)
		c.DELETE("/items/:productID", g.removeCartItem)
		c.DELETE("", g.clearCart)
		v1.POST("/checkout", requireUser, requireCapability(auth.CapUseCart), g.checkout)

		o := v1.Group("/orders", requireUser, requireCapability(auth.CapViewOrders))
		o.GET("", g.listOrders)
		o.GET("/:id", g.getOrder)
		o.GET("/:id/history", g.orderHistory)
		o.PUT("/:id/status", requireCapability(auth.CapUpdateOrder), g.updateOrderStatus)
		v1.GET("/sales/orders", requireUser, requireCapability(auth.CapViewSales), g.sellerOrders)
		v1.GET("/deliveries", requireUser, requireCapability(auth.CapDeliver), g.deliveries)

		p := v1.Group("", requireUser, requireCapability(auth.CapPOS))
		p.POST("/pos/sales", g.createSale)
		p.GET("/pos/sales", g.listSales)
		p.GET("/pos/dashboard", g.posDashboard)
		p.GET("/customers", g.listCustomers)
		p.POST("/customers", g.createCustomer)
		p.GET("/customers/:id", g.getCustomer)
		p.POST("/customers/:id/communications", g.logCommunication)
		p.GET("/crm/follow-ups", g.followUps)
		p.POST("/crm/communications/:id/complete", g.completeFollowUp)

		v1.GET("/agrovets", requireUser, requireCapability(auth.CapFindAgrovets), g.findAgrovets)
		v1.GET("/agrovets/:id/reviews", g.agrovetReviews)
		v1.POST("/reviews", requireUser, requireCapability(auth.CapWriteReview), g.createReview)
		v1.POST("/reviews/:id/response", requireUser, requireCapability(auth.CapRespondReview), g.respondToReview)

		cm := v1.Group("/community")
		cm.GET("/posts", g.listPosts)
		cm.GET("/posts/:id", g.getPost)
		cm.POST("/posts", requireUser, requireCapability(auth.CapCommunity), g.createPost)
		cm.POST("/posts/:id/replies", requireUser, requireCapability(auth.CapCommunity), g.replyToPost)
		cm.POST("/posts/:id/like", requireUser, requireCapability(auth.CapCommunity), g.likePost)

		m := v1.Group("/messages", requireUser, requireCapability(auth.CapMessage))
		m.POST("", g.sendMessage)
		m.GET("", g.conversations)
		m.GET("/:userID", g.thread)

		n := v1.Group("/notifications", requireUser)
		n.GET("", g.listNotifications)
		n.POST("/:id/read", g.markNotificationRead)
		n.POST("/read-all", g.markAllNotificationsRead)

		v1.POST("/assistant/chat", requireUser, requireCapability(auth.CapAssistant), g.rateLimit, g.assistantChat)
		d := v1.Group("/disease", requireUser)
		d.POST("/detect", requireCapability(auth.CapDetectDisease), g.rateLimit, g.detectDisease)
		d.GET("/reports", g.listDiseaseReports)
		d.GET("/reports/:id", g.getDiseaseReport)
		d.POST("/reports/:id/review", requireCapability(auth.CapReviewReports), g.reviewDiseaseReport)

		v1.GET("/weather", requireUser, requireCapability(auth.CapWeather), g.weather)

		v1.GET("/chat/:room/messages", requireUser, g.chatHistory)

		adm := v1.Group("/admin", requireUser, requireCapability(auth.CapAdmin))
		adm.GET("/users", g.adminUsers)
		adm.POST("/users/:id/toggle-active", g.adminToggleActive)
		adm.POST("/users/:id/verify", g.adminVerify)
		adm.GET("/orders", g.adminOrders)
		adm.GET("/stats", g.adminStats)
		adm.GET("/reviews", g.adminReviews)
		adm.POST("/reviews/:id/approve", g.setReviewStatus(models.ReviewApproved))
		adm.POST("/reviews/:id/reject", g.setReviewStatus(models.ReviewRejected))
		adm.POST("/reviews/:id/feature", g.featureReview)
		adm.DELETE("/reviews/:id", g.deleteReview)
		adm.GET("/messages", g.adminMessages)
		adm.DELETE("/messages/:id", g.adminDeleteMessage)
		adm.DELETE("/conversations/:userA/:userB", g.adminDeleteConversation)
		adm.DELETE("/disease/reports/:id", g.adminDeleteDiseaseReport)
		mod := v1.Group("/admin/posts", requireUser, requireCapability(auth.CapModerate))
		mod.POST("/:id/pin", g.pinPost)
		mod.POST("/:id/close", g.closePost)
		mod.DELETE("/:id", g.deletePost)
	}
}

// Handler exposes the router for tests and custom servers.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Gateway.Host, g.config.Gateway.Port)
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func (g *Gateway) health(c *gin.Context) {
	sqlDB, err := g.app.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		g.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}
