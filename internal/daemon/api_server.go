package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"

	"github.com/aether-ai/mcpregd/internal/api"
	"github.com/aether-ai/mcpregd/internal/cmd"
	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/errors"
	"github.com/aether-ai/mcpregd/internal/manager"
)

// APIServer manages the HTTP API for the daemon.
// NewAPIServer should be used to create instances of APIServer.
type APIServer struct {
	// Logger for API server operations.
	logger hclog.Logger

	// Registry owns the registered server descriptors.
	registry contracts.ServerRegistry

	// Validator checks descriptors for dry-run validation requests.
	validator contracts.DescriptorValidator

	// ToolManager maintains protocol connections and runs tool calls.
	toolManager *manager.Manager

	// Addr specifies the network address to bind.
	addr string

	// CORS configuration for cross-origin requests.
	cors CORSConfig

	// ShutdownTimeout specifies how long to wait for graceful shutdown.
	shutdownTimeout time.Duration
}

// NewAPIServer creates a new API server with the provided dependencies and options.
// Applies default options first, then user-provided options to ensure all fields have valid values.
func NewAPIServer(deps APIDependencies, opt ...APIOption) (*APIServer, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for API server: %w", err)
	}

	apiOpts, err := NewAPIOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid API options: %w", err)
	}

	return &APIServer{
		logger:          deps.Logger.Named("api"),
		registry:        deps.Registry,
		validator:       deps.Validator,
		toolManager:     deps.ToolManager,
		addr:            deps.Addr,
		cors:            apiOpts.CORS,
		shutdownTimeout: apiOpts.ShutdownTimeout,
	}, nil
}

// Start starts the API server and blocks until the context is canceled or an error occurs.
func (a *APIServer) Start(ctx context.Context) error {
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)

	if a.cors.Enabled {
		a.applyCORS(mux)
	}

	config := huma.DefaultConfig("mcpregd docs", cmd.Version())
	config.Info.Version = api.APIVersion
	router := humachi.New(mux, config)

	// Configure the error handling wrapping.
	huma.NewErrorWithContext = errorHandler(a.logger)

	apiPathPrefix, err := api.RegisterRoutes(router, a.registry, a.validator, a.toolManager)
	if err != nil {
		return fmt.Errorf("failed to register API routes: %w", err)
	}

	srv := &http.Server{
		Addr:    a.addr,
		Handler: mux,
	}
	errCh := make(chan error, 1)

	// Start the API.
	go func() {
		a.logger.Info("Starting API server", "address", a.addr, "prefix", apiPathPrefix)
		if a.cors.Enabled {
			a.logger.Info("CORS enabled", "origins", a.cors.AllowOrigins)
		}
		if err := srv.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Handle graceful shutdown.
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down API server...")
		_ = srv.Shutdown(shutdownCtx)
		a.logger.Info("Shutdown complete")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// applyCORS applies CORS middleware to the router based on the configured options.
func (a *APIServer) applyCORS(mux *chi.Mux) {
	a.logger.Info("Enabling CORS", "origins", a.cors.AllowOrigins)

	corsOptions := cors.Options{
		AllowedOrigins:   a.cors.AllowOrigins,
		AllowedMethods:   a.cors.AllowMethods,
		AllowedHeaders:   a.cors.AllowedHeaders,
		ExposedHeaders:   a.cors.ExposedHeaders,
		AllowCredentials: a.cors.AllowCredentials,
		MaxAge:           int(a.cors.MaxAge.Seconds()),
	}

	// Handle wildcard origins properly.
	for i, origin := range corsOptions.AllowedOrigins {
		if origin == "*" {
			corsOptions.AllowedOrigins = []string{"*"}
			corsOptions.AllowCredentials = false
			break
		}
		corsOptions.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	mux.Use(cors.Handler(corsOptions))
}

// mapError maps application domain errors to appropriate HTTP status codes.
//
// This function is the central place where domain errors from internal/errors are converted to HTTP responses.
// When adding new errors to internal/errors/errors.go, you MUST add them here to prevent them from falling
// through to the default case which returns HTTP 500.
//
// NOTE: Keep this function in sync with internal/errors/errors.go.
// Every error defined there should have an explicit case here otherwise it will default to 500.
//
// Mapping guidelines:
//   - 400: Client errors (bad input, invalid requests)
//   - 404: Resource not found errors
//   - 409: Conflicts with current registry or connection state
//   - 502: External server/dependency failures
//   - 500: Unexpected internal errors (default case)
func mapError(logger hclog.Logger, err error) huma.StatusError {
	switch {
	case stdErrors.Is(err, errors.ErrImmutableServerID):
		return huma.Error400BadRequest(err.Error())
	case stdErrors.Is(err, errors.ErrServerValidationFailed):
		return huma.Error400BadRequest(err.Error())
	case stdErrors.Is(err, errors.ErrServerNotFound):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrHealthNotTracked):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrServerAlreadyExists):
		return huma.Error409Conflict(err.Error())
	case stdErrors.Is(err, errors.ErrServerNotConnected):
		return huma.Error409Conflict(err.Error())
	case stdErrors.Is(err, errors.ErrNotConnected):
		return huma.Error409Conflict(err.Error())
	case stdErrors.Is(err, errors.ErrRequestTimeout):
		logger.Error("Request to server timed out", "error", err)
		return huma.Error504GatewayTimeout(err.Error())
	case stdErrors.Is(err, errors.ErrConnectTimeout):
		logger.Error("Connect to server timed out", "error", err)
		return huma.Error504GatewayTimeout(err.Error())
	case stdErrors.Is(err, errors.ErrToolListFailed):
		logger.Error("Tool list failed", "error", err)
		return huma.Error502BadGateway("server error listing tools", err)
	case stdErrors.Is(err, errors.ErrToolCallFailed):
		logger.Error("Tool call failed", "error", err)
		return huma.Error502BadGateway("server error calling tool", err)
	case stdErrors.Is(err, errors.ErrConnectionClosed):
		logger.Error("Connection closed mid-request", "error", err)
		return huma.Error502BadGateway("server connection closed", err)
	default:
		logger.Error("Unexpected error handling request", "error", err)
		return huma.Error500InternalServerError("Internal server error", err)
	}
}

// errorHandler wraps error handling for the application when converting to API friendly errors.
// It allows the logger to be supplied to functions that resolve huma.StatusError.
// Errors that are already field-level details (request validation, descriptor
// validation) keep their status and details instead of being remapped.
func errorHandler(logger hclog.Logger) func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
	return func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if len(errs) == 0 {
			return huma.NewError(status, msg)
		}

		details := make([]*huma.ErrorDetail, 0, len(errs))
		for _, err := range errs {
			detailer, ok := err.(huma.ErrorDetailer)
			if !ok {
				details = nil
				break
			}
			details = append(details, detailer.ErrorDetail())
		}
		if details != nil {
			return &huma.ErrorModel{
				Status: status,
				Title:  http.StatusText(status),
				Detail: msg,
				Errors: details,
			}
		}

		if len(errs) == 1 {
			return mapError(logger, errs[0])
		}
		return mapError(logger, stdErrors.Join(errs...))
	}
}
