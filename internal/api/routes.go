package api

import (
	"fmt"
	"net/url"
	"reflect"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/domain"
	"github.com/aether-ai/mcpregd/internal/manager"
)

// APIVersion is the version used in the OpenAPI spec and URL paths.
const APIVersion = "v1"

// RegisterRoutes registers all API routes on the provided Huma router.
// This is the single source of truth for the API route structure.
// Returns the API path prefix (e.g., "/api/v1") under which the routes are created.
func RegisterRoutes(
	router huma.API,
	registry contracts.ServerRegistry,
	validator contracts.DescriptorValidator,
	toolManager *manager.Manager,
) (string, error) {
	if router == nil || reflect.ValueOf(router).IsNil() {
		return "", fmt.Errorf("router cannot be nil")
	}
	if registry == nil || reflect.ValueOf(registry).IsNil() {
		return "", fmt.Errorf("registry cannot be nil")
	}
	if validator == nil || reflect.ValueOf(validator).IsNil() {
		return "", fmt.Errorf("validator cannot be nil")
	}
	if toolManager == nil {
		return "", fmt.Errorf("tool manager cannot be nil")
	}

	apiVersionID := router.OpenAPI().Info.Version

	apiPathPrefix, err := url.JoinPath("/api", apiVersionID)
	if err != nil {
		return "", fmt.Errorf("failed to construct API path prefix: %w", err)
	}

	versionedGroup := huma.NewGroup(router, apiPathPrefix)
	RegisterLivenessRoute(versionedGroup, "/health")
	RegisterServerRoutes(versionedGroup, registry, "/servers")
	RegisterValidationRoutes(versionedGroup, validator, "/validate")
	RegisterToolRoutes(versionedGroup, registry, toolManager)

	return apiPathPrefix, nil
}

// validationError renders a failed validation result as an HTTP 400 with one
// error detail per field violation.
func validationError(result domain.ValidationResult) error {
	details := make([]error, 0, len(result.Errors))
	for _, fieldErr := range result.Errors {
		details = append(details, &huma.ErrorDetail{
			Message:  fieldErr.Message,
			Location: fieldErr.Field,
			Value:    fieldErr.Value,
		})
	}
	return huma.Error400BadRequest("server descriptor failed validation", details...)
}
