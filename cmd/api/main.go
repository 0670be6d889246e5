package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"storefront/internal/addresses"
	"storefront/internal/admin"
	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/categories"
	"storefront/internal/config"
	"storefront/internal/contact"
	"storefront/internal/db"
	"storefront/internal/domain/user"
	"storefront/internal/httpx"
	"storefront/internal/logger"
	"storefront/internal/mail"
	"storefront/internal/newsletter"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/products"
	"storefront/internal/reviews"
	"storefront/internal/testimonials"
	"storefront/internal/upload"
	"storefront/internal/wishlist"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.IsProduction())
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	// money goes over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	pool, err := db.NewPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Info("database ready")

	router, err := newRouter(cfg, log, pool)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "address", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		log.Info("shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}

func newRouter(cfg config.Config, log *slog.Logger, pool *pgxpool.Pool) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	httpx.RegisterValidators()

	mailer := mail.New(mail.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}, log)
	composer := mail.Composer{Shop: cfg.ShopName, FrontendURL: cfg.FrontendURL}

	jwtMgr := auth.NewJWTManager(auth.JWTConfig{
		Issuer:         cfg.JWTIssuer,
		AccessSecret:   cfg.JWTAccessSecret,
		RefreshSecret:  cfg.JWTRefreshSecret,
		AccessTTLMin:   cfg.AccessTokenTTLMin,
		RefreshTTLDays: cfg.RefreshTokenTTLDays,
	})
	users := auth.NewUserRepo(pool)

	authed := auth.Authenticate(jwtMgr, users)
	optional := auth.OptionalAuth(jwtMgr, users)
	adminOnly := []gin.HandlerFunc{authed, auth.RequireRole(user.RoleAdmin)}

	orderSvc := orders.NewService(orders.NewRepo(pool), mailer, composer, cfg.Coupons, log)

	// optional integrations stay nil interfaces when unconfigured
	var gateway payments.Gateway
	if rzp := payments.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret); rzp != nil {
		gateway = rzp
	} else {
		log.Warn("razorpay is not configured; online payments are disabled")
	}
	var images upload.ObjectStore
	cld, err := upload.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.UploadFolder)
	if err != nil {
		return nil, err
	}
	if cld != nil {
		images = cld
	} else {
		log.Warn("cloudinary is not configured; image uploads are disabled")
	}

	r := gin.New()
	r.Use(
		httpx.Recovery(log),
		httpx.RequestID(),
		httpx.Logger(log),
		httpx.SecurityHeaders(cfg.IsProduction()),
		httpx.CORS(cfg.CORSOrigins),
		httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware(),
	)
	r.NoRoute(httpx.NoRoute)

	health := func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			httpx.Fail(c, http.StatusServiceUnavailable, "Database unavailable", nil)
			return
		}
		httpx.OK(c, "OK", gin.H{"environment": cfg.AppEnv})
	}
	r.GET("/health", health)

	api := r.Group("/api")
	api.GET("/health", health)

	auth.NewHandler(auth.Dependencies{
		Cfg:      cfg,
		JWT:      jwtMgr,
		Users:    users,
		Refresh:  auth.NewRefreshRepo(pool),
		OTP:      auth.NewOTPRepo(pool),
		Mailer:   mailer,
		Composer: composer,
		Log:      log,
	}).Routes(api, authed)

	addresses.NewHandler(addresses.NewRepo(pool)).Routes(api, authed)
	categories.NewHandler(categories.NewRepo(pool)).Routes(api, adminOnly...)
	products.NewHandler(products.NewRepo(pool)).Routes(api, optional, adminOnly...)
	cart.NewHandler(cart.NewRepo(pool)).Routes(api, authed)
	wishlist.NewHandler(wishlist.NewRepo(pool)).Routes(api, authed)
	orders.NewHandler(orderSvc).Routes(api, authed, auth.RequireRole(user.RoleAdmin))
	payments.NewHandler(gateway, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret, orderSvc, log).Routes(api, authed)
	reviews.NewHandler(reviews.NewRepo(pool)).Routes(api, authed)
	testimonials.NewHandler(testimonials.NewRepo(pool)).Routes(api, adminOnly...)
	newsletter.NewHandler(newsletter.NewRepo(pool), mailer, composer, log).Routes(api, adminOnly...)
	contact.NewHandler(contact.NewRepo(pool)).Routes(api, optional, adminOnly...)
	upload.NewHandler(images, log).Routes(api, adminOnly...)
	admin.NewHandler(admin.NewRepo(pool), orderSvc).Routes(api, adminOnly...)

	return r, nil
}
