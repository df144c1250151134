package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/gigbid/internal/config"
	"github.com/Windi-Fikriyansyah/gigbid/internal/db"
	"github.com/Windi-Fikriyansyah/gigbid/internal/handlers"
	"github.com/Windi-Fikriyansyah/gigbid/internal/logger"
	"github.com/Windi-Fikriyansyah/gigbid/internal/middleware"
	"github.com/Windi-Fikriyansyah/gigbid/internal/realtime"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/auth"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/bid"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/filestore"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/gig"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/review"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/token"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store/gormstore"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store/memstore"
	"github.com/Windi-Fikriyansyah/gigbid/internal/utils"
)

type backend interface {
	store.UserStore
	store.GigStore
	store.BidStore
	store.ReviewStore
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "development")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("store unavailable")
	}

	hub := realtime.NewHub(log)
	go hub.Run(ctx)

	var notifier bid.Notifier = hub
	if cfg.RedisAddr != "" {
		rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		rn := realtime.NewRedisNotifier(rdb, hub, log)
		go func() {
			if err := rn.Run(ctx); err != nil {
				log.Error().Err(err).Msg("notification subscriber stopped")
			}
		}()
		notifier = rn
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis notifications enabled")
	} else {
		log.Warn().Msg("REDIS_ADDR not set, notifications reach this instance only")
	}

	tokens, err := token.New(token.Config{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		Issuer:        cfg.JWTIssuer,
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
		ResetTTL:      cfg.ResetTokenTTL,
	}, utils.SystemClock{})
	if err != nil {
		log.Fatal().Err(err).Msg("token service")
	}

	authSvc := auth.NewService(st, tokens, utils.NewPasswordHasher(cfg.BcryptCost), utils.SystemClock{}, log)
	gigSvc := gig.NewService(st, log)
	bidSvc := bid.NewService(st, st, notifier, log)
	reviewSvc := review.NewService(st, st, log)

	authH := &handlers.AuthHandler{
		Auth:             authSvc,
		AccessTTL:        tokens.AccessTTL(),
		RefreshTTL:       tokens.RefreshTTL(),
		CookieSecure:     cfg.CookieSecure,
		ExposeResetToken: !cfg.IsProduction(),
		Log:              log,
	}
	googleH := &handlers.GoogleOAuthHandler{
		Session:         authH,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}

	app := fiber.New(fiber.Config{
		AppName:      "gigbid",
		ErrorHandler: handlers.ErrorHandler(log),
		BodyLimit:    4 * 1024 * 1024,
	})

	origins := cfg.AllowedOrigins()
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: origins != "*",
	}))

	handlers.Router{
		Auth:          authH,
		Google:        googleH,
		Profile:       handlers.NewProfileHandler(authSvc, filestore.NewLocal(cfg.UploadDir), authH),
		Categories:    handlers.NewCategoryHandler(gigSvc),
		Gigs:          handlers.NewGigHandler(gigSvc),
		Dashboard:     handlers.NewFreelancerDashboardHandler(bidSvc),
		Bids:          handlers.NewBidHandler(bidSvc),
		Reviews:       handlers.NewReviewHandler(reviewSvc),
		Notifications: handlers.NewNotificationHandler(hub, tokens, log),
		UploadDir:     cfg.UploadDir,
	}.Mount(app, handlers.NewGuards(tokens))

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddress()).Str("env", cfg.AppEnv).Msg("server starting")
		errc <- app.Listen(cfg.HTTPAddress())
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}

func openStore(cfg config.Config, log zerolog.Logger) (backend, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return memstore.New(), nil
	case config.DriverPostgres:
		gdb, err := db.Connect(cfg.DBDSN, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(gdb); err != nil {
			return nil, err
		}
		return gormstore.New(gdb), nil
	default:
		return nil, errors.New("unknown DB_DRIVER " + cfg.DBDriver)
	}
}
