package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"satoshidaily/internal/auth"
	"satoshidaily/internal/cache"
	"satoshidaily/internal/client/captcha"
	"satoshidaily/internal/client/resend"
	"satoshidaily/internal/config"
	cronrunner "satoshidaily/internal/cron"
	"satoshidaily/internal/db"
	"satoshidaily/internal/game"
	"satoshidaily/internal/handler"
	"satoshidaily/internal/logger"
	"satoshidaily/internal/oracle"
	gormrepository "satoshidaily/internal/repository/gorm"
	"satoshidaily/internal/service"
)

func main() {
	cfgPath := os.Getenv("SD_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SD_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	redisStore := cache.New(cfg.Redis)
	if err := redisStore.Ping(context.Background()); err != nil {
		logger.Warn("redis unreachable at startup", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	priceOracle, err := oracle.NewPriceOracle(cfg.PriceOracle, logger)
	if err != nil {
		logger.Fatal("price oracle init failed", zap.Error(err))
	}

	submissionSvc := &service.SubmissionService{
		Repo:    store,
		Pending: redisStore,
		Config:  cfg.Game,
		Logger:  logger,
	}

	var notifier service.Notifier = &service.LogNotifier{Logger: logger}
	mail := &resend.Client{
		HTTP:    &http.Client{Timeout: cfg.Notify.Timeout},
		BaseURL: cfg.Notify.ResendBaseURL,
		APIKey:  cfg.Notify.ResendAPIKey,
		From:    cfg.Notify.FromEmail,
	}
	if mail.Configured() && cfg.Notify.OperatorEmail != "" {
		notifier = &service.EmailNotifier{Mail: mail, Operator: cfg.Notify.OperatorEmail, Logger: logger}
	}

	settlementSvc := &service.SettlementService{
		Repo:     store,
		Oracle:   priceOracle,
		Notifier: notifier,
		Config:   cfg.Game,
		Logger:   logger,
	}

	viewSvc := &service.ReadViewService{Repo: store, Logger: logger}

	sessionJWT := auth.JWT{
		Secret:   []byte(cfg.Auth.JWTSecret),
		TokenTTL: cfg.Auth.SessionTTL,
	}
	var captchaVerifier service.CaptchaVerifier
	if cfg.Captcha.Secret != "" {
		captchaVerifier = &captcha.Client{
			HTTP:      &http.Client{Timeout: cfg.Captcha.Timeout},
			VerifyURL: cfg.Captcha.VerifyURL,
			Secret:    cfg.Captcha.Secret,
		}
	} else {
		logger.Warn("captcha secret not set, signup is unprotected")
	}
	authSvc := &service.AuthService{
		Repo:     store,
		Captcha:  captchaVerifier,
		Tokens:   redisStore,
		JWT:      sessionJWT,
		TokenTTL: cfg.Auth.LoginTokenTTL,
		Logger:   logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.SessionMiddleware(sessionJWT))
	engine.Use(handler.AnonCookieMiddleware())
	engine.Use(handler.RateLimitMiddleware(redisStore, cfg.RateLimit, logger))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	gameHandler := &handler.GameHandler{
		Submissions: submissionSvc,
		Views:       viewSvc,
		Repo:        store,
	}
	gameHandler.Register(engine)
	viewHandler := &handler.ViewHandler{Views: viewSvc}
	viewHandler.Register(engine)
	authHandler := &handler.AuthHandler{Auth: authSvc}
	authHandler.Register(engine)
	analyticsHandler := &handler.AnalyticsHandler{Repo: store}
	analyticsHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)

	seedDays := func(ctx context.Context) {
		today := game.Date(time.Now().UTC())
		for _, date := range []string{today, game.NextDate(today)} {
			if err := submissionSvc.SeedDay(ctx, date); err != nil {
				logger.Warn("seed day failed", zap.String("game_date", date), zap.Error(err))
			}
		}
	}

	tick := cfg.Cron.SettlementTickSeconds
	if tick <= 0 {
		tick = 60
	}
	_, err = cronRunner.Add(fmt.Sprintf("@every %ds", tick), func(ctx context.Context) {
		if err := settlementSvc.RunOnce(ctx); err != nil {
			logger.Warn("settlement tick failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("cron register settlement failed", zap.Error(err))
	}

	_, err = cronRunner.Add(cfg.Cron.SeedSpec, seedDays)
	if err != nil {
		logger.Fatal("cron register seed failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	// Run both jobs once at startup so a freshly deployed (or restarted)
	// instance has today's row and catches up on any unsettled days.
	seedDays(ctx)
	if err := settlementSvc.RunOnce(ctx); err != nil {
		logger.Warn("startup settlement pass failed", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
