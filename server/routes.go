package server

import (
	"github.com/goliatone/go-gallery/auth"
	"github.com/goliatone/go-gallery/images"
	"github.com/goliatone/go-gallery/middleware/jwtware"
)

func (a *App) registerRoutes() {
	validator := auth.TokenValidatorAdapter{Service: a.auther.TokenService()}
	contextKey := a.config.Auth.GetContextKey()

	protected := jwtware.New(jwtware.Config{
		TokenValidator:  validator,
		ContextKey:      contextKey,
		AuthScheme:      a.config.Auth.GetAuthScheme(),
		ContextEnricher: auth.ContextEnricherAdapter,
	})

	adminOnly := jwtware.New(jwtware.Config{
		TokenValidator:  validator,
		ContextKey:      contextKey,
		AuthScheme:      a.config.Auth.GetAuthScheme(),
		ContextEnricher: auth.ContextEnricherAdapter,
		RequiredRole:    auth.RoleAdmin,
	})

	authController := auth.NewAuthController(
		auth.WithControllerRepo(a.repo),
		auth.WithControllerAuther(a.auther),
		auth.WithControllerLogger(a.GetLogger("auth-http")),
		auth.WithControllerContextKey(contextKey),
	)

	imageController := images.NewImageController(
		images.WithImageControllerService(a.imgSvc),
		images.WithImageControllerLogger(a.GetLogger("image-http")),
		images.WithImageControllerContextKey(contextKey),
	)

	api := a.router.Group("/api")

	auth.RegisterAuthRoutes(api.Group("/auth"), authController, protected)
	auth.RegisterHomeRoutes(api.Group("/home"), authController, protected)
	images.RegisterImageRoutes(api.Group("/image"), imageController, protected, adminOnly)
}
