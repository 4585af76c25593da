package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aichukanov/docta-auth/internal/config"
	"github.com/aichukanov/docta-auth/internal/handler"
	"github.com/aichukanov/docta-auth/internal/provider"
	"github.com/aichukanov/docta-auth/internal/repository"
	"github.com/aichukanov/docta-auth/internal/service"
	"github.com/aichukanov/docta-auth/internal/utils"
	"github.com/aichukanov/docta-auth/pkg/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Flow cookies only need to survive one provider round trip.
const flowCookieMaxAge = 10 * time.Minute

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	router := gin.Default()
	router.Use(otelgin.Middleware("docta-auth"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	BuildRoutes(router, infra, cfg, Providers(cfg))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Providers builds the enabled OAuth providers from configuration
func Providers(cfg *config.Config) map[string]provider.Provider {
	providers := make(map[string]provider.Provider)

	if cfg.OAuth.Google.Enabled() {
		providers["google"] = provider.NewGoogle(cfg.OAuth.Google.ClientID, cfg.OAuth.Google.ClientSecret)
	}
	if cfg.OAuth.Facebook.Enabled() {
		providers["facebook"] = provider.NewFacebook(cfg.OAuth.Facebook.ClientID, cfg.OAuth.Facebook.ClientSecret)
	}

	return providers
}

// BuildRoutes wires repositories, services and handlers onto the router.
// The acceptance suite reuses it against its own infrastructure.
func BuildRoutes(router *gin.Engine, infra Infrastructure, cfg *config.Config, providers map[string]provider.Provider) {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())

	stateManager := utils.NewStateManager(cfg.Security.StateSecret, cfg.OAuth.StateTTL.Duration)

	sessionService := service.NewSessionService(repos.Session, repos.User, cfg.Session.TTL.Duration, logger)
	auditService := service.NewAuditService(
		repos.LoginHistory,
		cfg.Security.SuspiciousWindow.Duration,
		cfg.Security.SuspiciousThreshold,
		logger,
	)
	resetTokens := service.NewTokenService(repos.PasswordReset)
	emailTokens := service.NewTokenService(repos.EmailVerification)

	accountService := service.NewAccountService(
		repos.User,
		resetTokens,
		emailTokens,
		sessionService,
		auditService,
		cfg.Security.BCryptCost,
		service.TokenTTLs{
			PasswordReset:     cfg.Token.PasswordResetTTL.Duration,
			EmailVerification: cfg.Token.EmailVerificationTTL.Duration,
			EmailChange:       cfg.Token.EmailChangeTTL.Duration,
		},
		logger,
	)

	oauthService := service.NewOAuthService(
		providers,
		repos.User,
		repos.OAuthAccount,
		sessionService,
		auditService,
		stateManager,
		logger,
	)

	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	cookies := handler.CookieOptions{
		Secure:        cfg.Env == "production",
		SessionMaxAge: int(cfg.Session.TTL.Duration.Seconds()),
		FlowMaxAge:    int(flowCookieMaxAge.Seconds()),
	}

	authHandler := handler.NewAuthHandler(accountService, sessionService, auditService, cookies)
	oauthHandler := handler.NewOAuthHandler(oauthService, cfg.Server.PublicBaseURL, cookies)

	router.Use(handler.SessionMiddleware(sessionService))

	router.GET("/metrics", observability.PrometheusHandler(infra.MetricsHandler()))
	router.GET("/health", healthChecker.Handler)

	rateLimit := handler.RateLimitMiddleware(
		rateLimiter,
		cfg.Security.RateLimitRequests,
		cfg.Security.RateLimitWindow.Duration,
		handler.IPBasedKey,
	)

	oauth := router.Group("/auth/:provider")
	{
		oauth.GET("", oauthHandler.Begin)
		oauth.GET("/callback", oauthHandler.Callback)
	}

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", rateLimit, authHandler.Register)
			auth.POST("/login", rateLimit, authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", handler.RequireAuth(), authHandler.GetMe)
			auth.GET("/security", handler.RequireAuth(), authHandler.Security)

			auth.POST("/password-reset/request", rateLimit, authHandler.RequestPasswordReset)
			auth.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset)

			auth.POST("/verify-email/request", handler.RequireAuth(), rateLimit, authHandler.RequestEmailVerification)
			auth.POST("/verify-email/confirm", authHandler.ConfirmEmailVerification)

			auth.POST("/email-change/request", handler.RequireAuth(), rateLimit, authHandler.RequestEmailChange)
			auth.POST("/email-change/confirm", authHandler.ConfirmEmailChange)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
