package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tripsnap/api/internal/api/apikey"
	"github.com/tripsnap/api/internal/api/images"
	"github.com/tripsnap/api/internal/api/session"
	"github.com/tripsnap/api/internal/api/user"
	"github.com/tripsnap/api/internal/middleware"
	"github.com/tripsnap/api/pkg/cache"
	"github.com/tripsnap/api/pkg/config"
	"github.com/tripsnap/api/pkg/logging"
	"github.com/tripsnap/api/pkg/metrics"
	"github.com/tripsnap/api/pkg/resolver"
	pkgServer "github.com/tripsnap/api/pkg/server"
)

// VersionInfo contains build version information
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// Options wires a Server
type Options struct {
	Config   *config.Config
	Resolver *resolver.Resolver
	// Cache persists API keys created at runtime; optional
	Cache       cache.Cache
	InstanceID  string
	VersionInfo *VersionInfo
}

// Server represents the API server
type Server struct {
	echo        *echo.Echo
	apiKeys     []config.APIKey
	apiKeysMu   sync.RWMutex
	keyStore    cache.Cache
	port        string
	instanceID  string
	publicURL   string
	versionInfo *VersionInfo
	sessions    *session.Registry
}

// GetAPIKeys returns a copy of the current API keys
func (s *Server) GetAPIKeys() []config.APIKey {
	s.apiKeysMu.RLock()
	defer s.apiKeysMu.RUnlock()
	keys := make([]config.APIKey, len(s.apiKeys))
	copy(keys, s.apiKeys)
	return keys
}

// UpdateAPIKeys replaces the in-memory API keys list
func (s *Server) UpdateAPIKeys(keys []config.APIKey) {
	s.apiKeysMu.Lock()
	defer s.apiKeysMu.Unlock()
	s.apiKeys = make([]config.APIKey, len(keys))
	copy(s.apiKeys, keys)
}

// AddAPIKey adds a key and persists the runtime keys when a cache is configured
func (s *Server) AddAPIKey(ctx context.Context, key config.APIKey) error {
	s.apiKeysMu.Lock()
	defer s.apiKeysMu.Unlock()

	for _, k := range s.apiKeys {
		if k.Name == key.Name {
			return apikey.ErrDuplicateName
		}
	}

	if s.keyStore != nil {
		runtimeKeys, err := pkgServer.LoadRuntimeKeys(ctx, s.keyStore)
		if err != nil {
			return err
		}
		if err := pkgServer.SaveRuntimeKeys(ctx, s.keyStore, append(runtimeKeys, key)); err != nil {
			return err
		}
	}
	s.apiKeys = append(s.apiKeys, key)
	return nil
}

// New creates a new API server instance and registers all routes on e
func New(e *echo.Echo, opts Options) (*Server, error) {
	cfg := opts.Config
	versionInfo := opts.VersionInfo
	if versionInfo == nil {
		versionInfo = &VersionInfo{Version: "dev"}
	}

	sessions, err := session.NewRegistry(opts.Resolver, session.DefaultMaxSessions)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		echo:        e,
		port:        cfg.Server.Port,
		instanceID:  opts.InstanceID,
		publicURL:   cfg.Server.PublicURL,
		versionInfo: versionInfo,
		sessions:    sessions,
		keyStore:    opts.Cache,
	}

	keys := cfg.Auth.APIKeys
	if opts.Cache != nil {
		runtimeKeys, err := pkgServer.LoadRuntimeKeys(context.Background(), opts.Cache)
		if err != nil {
			return nil, err
		}
		keys = append(append([]config.APIKey{}, keys...), runtimeKeys...)
	}
	srv.UpdateAPIKeys(keys)

	imageHandler := images.NewHandler(opts.Resolver)
	sessionHandler := session.NewHandler(sessions)
	userHandler := user.NewHandler()
	apiKeyHandler := apikey.NewHandler(srv)

	// API routes with authentication; keys are read on each request so they can be swapped at runtime
	auth := middleware.NewAuthenticator(srv.GetAPIKeys, cfg.Auth.JWTSecret)
	api := e.Group("/api/v1", auth.Middleware())
	// Version header only on authenticated requests
	api.Use(middleware.VersionMiddleware(versionInfo.Version))

	images.RegisterRoutes(api.Group("/images"), imageHandler)
	session.RegisterRoutes(api.Group("/sessions"), sessionHandler)
	user.RegisterRoutes(api.Group("/user"), userHandler)
	apikey.RegisterRoutes(api, apiKeyHandler)
	api.GET("/version", srv.handleVersion)

	// Health check and metrics (no auth required, for load balancers)
	e.GET("/health", srv.handleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return srv, nil
}

// handleHealth returns 200, or the API info when ?info=true
func (s *Server) handleHealth(c echo.Context) error {
	if c.QueryParam("info") == "true" {
		return c.JSON(http.StatusOK, map[string]string{
			"public_url": s.publicURL,
			"api_id":     s.instanceID,
		})
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, s.versionInfo)
}

// Start starts the API server and blocks until it stops
func (s *Server) Start() error {
	addr := ":" + s.port
	logging.Logger.Info("Starting server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes session galleries
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.sessions.Close()
	return err
}
