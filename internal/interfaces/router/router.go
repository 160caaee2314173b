package router

import (
	"context"
	"net/http"

	authsvc "landlease/internal/application/auth"
	lesvc "landlease/internal/application/listingevents"
	listsvc "landlease/internal/application/listings"
	sessionsvc "landlease/internal/application/session"
	uploadsvc "landlease/internal/application/uploads"
	"landlease/internal/config"
	"landlease/internal/domain"
	"landlease/internal/infrastructure/assetstore"
	"landlease/internal/infrastructure/database"
	"landlease/internal/infrastructure/events"
	"landlease/internal/infrastructure/repository"
	authhandler "landlease/internal/interfaces/handlers/auth"
	healthhandler "landlease/internal/interfaces/handlers/health"
	lehandler "landlease/internal/interfaces/handlers/listingevents"
	listhandler "landlease/internal/interfaces/handlers/listings"
	sessionhandler "landlease/internal/interfaces/handlers/session"
	uploadhandler "landlease/internal/interfaces/handlers/uploads"
	"landlease/internal/middleware"

	"cloud.google.com/go/firestore"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	return database.Ping(g.db)
}

// CreateApp wires every store, service and route. Resources opened here are closed by the
// app's shutdown hook.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	ctx := context.Background()

	rdb, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, domain.ConfigurationError("REDIS_URL is not a valid redis URL")
	}
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	// local sqlite databases are created on the fly; postgres is migrated with `landlease migrate`
	if cfg.DatabaseDriver == "sqlite" {
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}
	store, err := assetstore.New(ctx, cfg.AssetStore, cfg.AssetCallTimeout)
	if err != nil {
		return nil, nil, nil, err
	}

	var closers []func()
	var base domain.ListingRepository = &repository.SQLListingRepository{DB: db}
	if cfg.ListingStore == config.ListingStoreFirestore {
		fs, err := firestore.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { _ = fs.Close() })
		base = &repository.FirestoreListingRepository{Client: fs, Collection: cfg.FirestoreCollection}
	}
	repo := &repository.CachedListingRepository{Next: base, Rdb: rdb, TTL: cfg.ListingCacheTTL}

	publisher := events.Multi{&events.GormRecorder{DB: db}}
	if cfg.NatsURL != "" {
		nc, err := events.NewNATSPublisher(cfg.NatsURL, cfg.NatsSubjectPrefix)
		if err != nil {
			// the bus is optional; the audit table still records every event
			log.Warn().Err(err).Str("url", cfg.NatsURL).Msg("NATS unavailable, listing events recorded in SQL only")
		} else {
			publisher = append(publisher, nc)
			closers = append(closers, nc.Close)
		}
	}

	broadcaster := sessionsvc.NewBroadcaster()
	changes, unsubscribe := broadcaster.Subscribe(64)
	closers = append(closers, unsubscribe)
	go func() {
		for ch := range changes {
			log.Info().Str("user_id", ch.UserID).Bool("anonymous", ch.Anonymous).Bool("signed_in", ch.SignedIn).Msg("identity changed")
		}
	}()

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler(rdb),
		EnableTrustedProxyCheck: true,
		BodyLimit:               cfg.MaxUploadBytes,
	})
	app.Hooks().OnShutdown(func() error {
		for _, c := range closers {
			c()
		}
		return nil
	})

	app.Use(recover.New())
	app.Use(middleware.Tracing())
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix:  cfg.FrontendURLEndsWith,
		DevPassword:    cfg.DevPassword,
		AllowLocalhost: !cfg.IsProduction(),
	}))
	if cfg.SessionSecret == "" {
		log.Warn().Msg("SESSION_SECRET is not set; session cookies use a development key")
	}
	app.Use(middleware.SessionCookieGuard(cfg.SessionSecret))
	app.Use(middleware.Session(rdb))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.ErrorLog(rdb))
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             &gormDBPinger{db: db},
		Assets:         store,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	sessionCfg := middleware.SessionConfig{
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}

	ah := &authhandler.Handlers{
		Service:     &authsvc.Service{DB: db},
		Rdb:         rdb,
		Config:      sessionCfg,
		Broadcaster: broadcaster,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/register", ah.Register)
	authGroup.Post("/login", ah.Login)
	authGroup.Post("/anonymous", ah.Anonymous)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)
	authGroup.Delete("/sessions", ah.LogoutAll)

	sh := &sessionhandler.Handlers{Rdb: rdb, Config: sessionCfg, Broadcaster: broadcaster}
	sg := app.Group("/api/v1/session")
	sg.Get("/", sh.Get)
	sg.Post("/navigate", sh.Navigate)
	sg.Post("/toggle-mode", sh.ToggleMode)

	// Upload proxy
	ups := &uploadsvc.Service{Store: store, StagingDir: cfg.StagingDir, CallTimeout: cfg.AssetCallTimeout}
	uph := &uploadhandler.Handlers{Service: ups}
	app.Post("/upload", middleware.RequireAuth(), uph.Upload)
	app.Delete("/asset/*", middleware.RequireAuth(), uph.DeleteAsset)
	app.Post("/upload-cloudinary", middleware.RequireAuth(), uph.UploadLegacy)
	app.Delete("/delete-cloudinary/:publicId", middleware.RequireAuth(), uph.DeleteLegacy)

	// Listings
	ls := &listsvc.Service{
		Repo:              repo,
		Assets:            store,
		Events:            publisher,
		CallTimeout:       cfg.AssetCallTimeout,
		CompensateOrphans: cfg.CompensateOrphans,
	}
	lh := &listhandler.Handlers{Service: ls, Uploads: ups}
	lg := app.Group("/api/v1/listings", middleware.RequireAuth())
	lg.Post("/", lh.CreateListing)
	lg.Get("/mine", lh.GetMyListings)
	lg.Get("/search", lh.SearchListings)
	lg.Get("/:id", lh.GetListingByID)
	lg.Delete("/:id", lh.DeleteListing)

	// ListingEvents
	leh := &lehandler.Handlers{Service: &lesvc.Service{DB: db}}
	leg := app.Group("/api/v1/listing-events", middleware.RequireAuth())
	leg.Get("/mine", leh.GetMyListingEvents)
	leg.Get("/listing/:id", leh.GetListingEvents)

	return app, db, rdb, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
