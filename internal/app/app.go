// Package app assembles the services and the HTTP router.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"filemart/internal/accounts"
	"filemart/internal/config"
	"filemart/internal/downloads"
	"filemart/internal/handlers"
	"filemart/internal/logging"
	"filemart/internal/middleware"
	"filemart/internal/obs"
	"filemart/internal/orders"
	"filemart/internal/repository"
	"filemart/internal/tokens"
)

type Stores struct {
	Users       repository.UserRepository
	Revocations repository.RevocationRepository
	Grants      repository.GrantRepository
	Orders      repository.OrderRepository
	Products    repository.ProductRepository
}

type Services struct {
	Tokens    *tokens.Service
	Accounts  *accounts.Service
	Downloads *downloads.Service
	Orders    *orders.Service
	Catalog   *orders.Catalog
}

func NewServices(cfg config.Config, stores Stores, resolver downloads.FileResolver, mailer accounts.Mailer, log logging.Logger) Services {
	tokenSvc := tokens.NewService(stores.Users, stores.Revocations, tokens.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, log)

	accountSvc := accounts.NewService(stores.Users, tokenSvc, mailer, accounts.Config{ResetURL: cfg.ResetURL}, log)
	for _, p := range cfg.OAuthProviders {
		switch {
		case p != accounts.ProviderGoogle:
			log.Warn(context.Background(), "unsupported oauth provider ignored", "provider", p)
		case cfg.GoogleClientID == "":
			log.Warn(context.Background(), "google login disabled, GOOGLE_CLIENT_ID is not set")
		default:
			accountSvc.RegisterProvider(p, accounts.NewGoogleProvider(stores.Users, cfg.GoogleClientID))
		}
	}

	downloadSvc := downloads.NewService(stores.Grants, resolver, downloads.Config{
		BaseURL:             cfg.BaseURL,
		DefaultExpiryDays:   cfg.DownloadExpiryDays,
		DefaultMaxDownloads: cfg.DownloadMax,
	}, log)

	return Services{
		Tokens:    tokenSvc,
		Accounts:  accountSvc,
		Downloads: downloadSvc,
		Orders:    orders.NewService(stores.Orders, stores.Products, downloadSvc, log),
		Catalog:   orders.NewCatalog(stores.Products),
	}
}

type RouterOptions struct {
	Production         bool
	RefreshTTL         time.Duration
	CORSOrigins        []string
	RateLimitPerSecond int
	RateLimitBurst     int
	UploadDir          string
	Ping               handlers.Pinger
}

func RouterOptionsFrom(cfg config.Config, ping handlers.Pinger) RouterOptions {
	return RouterOptions{
		Production:         cfg.Production(),
		RefreshTTL:         cfg.RefreshTokenTTL,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		UploadDir:          cfg.UploadDir,
		Ping:               ping,
	}
}

func corsConfig(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Downloads-Remaining", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func NewRouter(svc Services, opts RouterOptions, log logging.Logger) *gin.Engine {
	obs.Init()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Observe(log), corsConfig(opts.CORSOrigins))

	cookies := handlers.CookieConfig{Secure: opts.Production, MaxAge: opts.RefreshTTL}
	if cookies.MaxAge <= 0 {
		cookies.MaxAge = tokens.DefaultRefreshTTL
	}
	gate := middleware.AuthGate(svc.Tokens, log)
	admin := middleware.AdminOnly()

	r.GET("/healthz", handlers.Healthz(opts.Ping, log))
	r.GET("/metrics", gin.WrapH(obs.Handler()))

	auth := r.Group("/auth")
	if opts.RateLimitPerSecond > 0 {
		auth.Use(middleware.NewRateLimiter(opts.RateLimitPerSecond, opts.RateLimitBurst).Middleware())
	}
	{
		auth.POST("/register", handlers.Register(svc.Accounts, cookies, log))
		auth.POST("/login", handlers.Login(svc.Accounts, cookies, log))
		auth.POST("/refresh-token", handlers.RefreshToken(svc.Tokens, cookies, log))
		auth.POST("/logout", gate, handlers.Logout(svc.Accounts, cookies, log))
		auth.GET("/me", gate, handlers.GetMe(svc.Accounts, log))
		auth.PUT("/me", gate, handlers.UpdateMe(svc.Accounts, log))
		auth.DELETE("/me", gate, handlers.DeleteMe(svc.Accounts, cookies, log))
		auth.POST("/change-password", gate, handlers.ChangePassword(svc.Accounts, log))
		auth.POST("/forgot-password", handlers.ForgotPassword(svc.Accounts, log))
		auth.POST("/reset-password/:token", handlers.ResetPassword(svc.Accounts, log))
		auth.POST("/oauth/:provider", handlers.OAuthLogin(svc.Accounts, cookies, log))
	}

	r.GET("/products", handlers.GetProducts(svc.Catalog, log))

	orderRoutes := r.Group("/orders", gate)
	{
		orderRoutes.POST("", handlers.CreateOrder(svc.Orders, log))
		orderRoutes.GET("", handlers.ListMyOrders(svc.Orders, log))
	}

	adminRoutes := r.Group("/admin", gate, admin)
	{
		adminRoutes.POST("/products", handlers.CreateProduct(svc.Catalog, log))
		adminRoutes.POST("/files", handlers.UploadFile(opts.UploadDir, log))
		adminRoutes.POST("/orders/:id/pay", handlers.PayOrder(svc.Orders, log))
	}

	dl := r.Group("/downloads")
	{
		dl.POST("/generate-link/:fileId", gate, admin, handlers.GenerateLink(svc.Downloads, log))
		dl.DELETE("/revoke-link/:token", gate, admin, handlers.RevokeLink(svc.Downloads, log))
		dl.GET("/links", gate, admin, handlers.ListLinks(svc.Downloads, log))
		dl.POST("/links/:token/reset", gate, admin, handlers.ResetLink(svc.Downloads, log))
		dl.GET("/mine", gate, handlers.MyDownloads(svc.Downloads, log))
		dl.GET("/:token", handlers.Download(svc.Downloads, log))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}
