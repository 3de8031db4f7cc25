// Package app wires configuration, storage, sessions, mail and the HTTP
// surface into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AAReynosoG/gateward/internal/captcha"
	httpapi "github.com/AAReynosoG/gateward/internal/http"
	"github.com/AAReynosoG/gateward/internal/mail"
	"github.com/AAReynosoG/gateward/internal/render"
	"github.com/AAReynosoG/gateward/internal/service"
	"github.com/AAReynosoG/gateward/internal/session"
	"github.com/AAReynosoG/gateward/internal/store"
	"github.com/AAReynosoG/gateward/internal/store/drivers/sqlite"
	"github.com/AAReynosoG/gateward/pkg/cryptox"
	"github.com/AAReynosoG/gateward/pkg/signurl"
	"github.com/AAReynosoG/gateward/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the web app with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	redis    *redis.Client
	sessions *session.Manager

	accountService *service.AccountService
	authService    *service.AuthService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateward",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)
	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	return app, nil
}

// Run starts the server and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("gateward starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown drains in-flight requests and releases resources.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateward...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.redis.Close(); err != nil {
		app.logger.Error("error closing redis client", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gateward stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to reach database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initSessions() error {
	client := redis.NewClient(&redis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.redis = client
	app.sessions = session.NewManager(
		session.NewRedisStore(client, app.cfg.SessionTTL),
		app.cfg.SecureCookies,
	)
	return nil
}

func (app *Application) initServices() error {
	signingKey := app.cfg.LinkSigningKey
	if signingKey == "" {
		signingKey = cryptox.MustGenerateToken(cryptox.TokenSize256)
		app.logger.Warn("no link signing key configured, verification links will not survive restarts")
	}

	var mailer mail.Mailer
	if app.cfg.SMTPHost != "" {
		smtp, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.SMTPFrom,
		})
		if err != nil {
			return err
		}
		mailer = smtp
	} else {
		mailer = mail.NewLogMailer(app.logger)
		app.logger.Warn("no smtp relay configured, verification links are logged instead")
	}

	app.accountService = &service.AccountService{
		Store:   app.db,
		Mailer:  mailer,
		Signer:  signurl.New(signingKey, app.cfg.AppName),
		BaseURL: app.cfg.BaseURL,
	}
	app.authService = &service.AuthService{
		Store:  app.db,
		Issuer: app.cfg.AppName,
	}
	return nil
}

func (app *Application) initHTTP() error {
	views, err := render.New()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	router := httpapi.NewRouter(app.sessions, views, app.logger)
	router.AccountService = app.accountService
	router.AuthService = app.authService
	if app.cfg.RecaptchaSecret != "" {
		router.Captcha = captcha.NewRecaptcha(app.cfg.RecaptchaSecret)
	} else {
		router.Captcha = captcha.AllowAll{}
		app.logger.Warn("no recaptcha secret configured, captcha checks always pass")
	}
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
