package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/activitymap"
	"github.com/goliatone/go-auth-session/middleware/bearer"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config *Config
	bunDB  *bun.DB
	redis  redis.UniversalClient
	repo   *auth.PrincipalRepository
	auther *auth.Auther
	srv    *fiber.App
	logger *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("authd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := LoadConfig()
	if err != nil {
		lgr.GetLogger("config").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Server.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(cfg))
		fmt.Println("============")
	}

	app := &App{config: cfg, logger: lgr}
	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		app.GetLogger("persistence").Error("failed to set up persistence", "error", err)
		os.Exit(1)
	}
	defer app.bunDB.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := WithAuthenticator(ctx, app, reg); err != nil {
		app.GetLogger("auth").Error("failed to set up authenticator", "error", err)
		os.Exit(1)
	}

	WithHTTPServer(app, reg)

	go func() {
		if err := app.srv.Listen(cfg.Server.Addr); err != nil {
			app.GetLogger("http").Error("server stopped", "error", err)
		}
	}()

	app.GetLogger("http").Info("listening", "addr", cfg.Server.Addr)

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	if err := app.srv.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		app.GetLogger("http").Error("shutdown error", "error", err)
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	dbCfg := app.config.Database

	var db *bun.DB
	if dbCfg.IsPostgres() {
		sqldb, err := sql.Open("pgx", dbCfg.DSN)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		sqldb, err := sql.Open(sqliteshim.ShimName, dbCfg.DSN)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "database unreachable")
	}

	app.bunDB = db
	app.repo = auth.NewPrincipalRepository(db,
		auth.WithRepositoryLogger(app.GetLogger("principals")),
		auth.WithRepositoryActivitySink(AuditSink(app.GetLogger("audit"))),
	)

	return app.repo.CreateSchema(ctx)
}

// AuditSink logs normalized activity records.
func AuditSink(logger glog.Logger) auth.ActivitySink {
	return activitymap.Sink(func(n activitymap.Normalized) error {
		logger.Info("activity",
			"verb", n.Verb,
			"actor", n.ActorID,
			"metadata", print.MaybePrettyJSON(n.Metadata),
		)
		return nil
	}, activitymap.WithChannel("authd"))
}

func WithAuthenticator(ctx context.Context, app *App, reg prometheus.Registerer) error {
	cfg := app.config
	logger := app.GetLogger("auth")

	auther, err := auth.NewAuthenticator(app.repo, cfg.Auth,
		auth.WithTokenLogger(app.GetLogger("auth:tokens")),
	)
	if err != nil {
		return err
	}

	auther.
		WithLogger(logger).
		WithMetrics(auth.NewMetrics(reg)).
		WithCredentialVerifier(auth.NewBcryptVerifier(cfg.Login.BcryptCost)).
		WithStoreTimeout(cfg.Login.StoreTimeout).
		WithActivitySink(AuditSink(app.GetLogger("audit")))

	if cfg.Login.RateBurst > 0 {
		auther.WithLoginLimiter(auth.NewRateLoginLimiter(cfg.Login.RateInterval, cfg.Login.RateBurst))
	}

	switch {
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "redis unreachable")
		}
		app.redis = client
		auther.WithRefreshDenylist(auth.NewRedisDenylist(client, ""))
	case cfg.Login.StrictRotation:
		logger.Warn("strict rotation using in-process denylist")
		auther.WithRefreshDenylist(auth.NewMemoryDenylist())
	}

	app.auther = auther

	return SeedOwner(ctx, app)
}

// SeedOwner registers the configured owner once. An existing key is left alone.
func SeedOwner(ctx context.Context, app *App) error {
	owner := app.config.Owner
	if owner.Email == "" || owner.Password == "" {
		return nil
	}

	_, err := app.auther.Join(ctx, auth.JoinRequest{
		CredentialKey: owner.Email,
		Secret:        owner.Password,
		RoleKind:      auth.RoleOwner,
	})
	if stderrors.Is(err, auth.ErrCredentialKeyTaken) {
		return nil
	}
	return err
}

func WithHTTPServer(app *App, reg *prometheus.Registry) {
	cfg := app.config

	srv := fiber.New(fiber.Config{
		AppName:               "authd",
		DisableStartupMessage: true,
	})

	protect := bearer.New(bearer.FromConfig(cfg.Auth, app.auther))
	adminOnly := bearer.New(bearer.FromConfig(cfg.Auth, app.auther, auth.RoleAdmin, auth.RoleOwner))

	auth.RegisterAuthRoutes(srv.Group("/auth"), protect,
		auth.WithControllerAuthenticator(app.auther),
		auth.WithControllerConfig(cfg.Auth),
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
		auth.WithControllerDebug(cfg.Server.Debug),
	)

	srv.Get("/admin/ping", adminOnly, func(c *fiber.Ctx) error {
		p, _ := auth.PrincipalFromFiber(c, cfg.Auth.GetContextKey())
		return c.JSON(fiber.Map{"pong": true, "principal": p})
	}).Name("admin.ping")

	srv.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	app.srv = srv
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
