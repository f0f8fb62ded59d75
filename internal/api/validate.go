package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/aether-ai/mcpregd/internal/contracts"
	"github.com/aether-ai/mcpregd/internal/domain"
)

// ValidateRequest carries one descriptor to validate without registering it.
type ValidateRequest struct {
	Body ServerPayload `doc:"Server descriptor to validate"`
}

// ValidateBatchRequest carries a batch of descriptors to validate together,
// including cross-descriptor duplicate id detection.
type ValidateBatchRequest struct {
	Body struct {
		Servers []ServerPayload `json:"servers" doc:"Server descriptors to validate as a batch"`
	}
}

// ValidateResponse wraps a validation result. Validation requests return 200
// whether the descriptor passed or not; the verdict is in the body.
type ValidateResponse struct {
	Body domain.ValidationResult
}

// RegisterValidationRoutes sets up the dry-run validation endpoints.
func RegisterValidationRoutes(routerAPI huma.API, validator contracts.DescriptorValidator, apiPathPrefix string) {
	validateAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Validation"}

	huma.Register(
		validateAPI,
		huma.Operation{
			OperationID: "validateServers",
			Method:      http.MethodPost,
			Summary:     "Validate a batch of server descriptors",
			Tags:        tags,
		},
		func(ctx context.Context, input *ValidateBatchRequest) (*ValidateResponse, error) {
			descriptors := make([]domain.ServerDescriptor, 0, len(input.Body.Servers))
			for _, payload := range input.Body.Servers {
				descriptors = append(descriptors, payload.ToDomain())
			}
			return &ValidateResponse{Body: validator.ValidateList(descriptors)}, nil
		},
	)

	huma.Register(
		validateAPI,
		huma.Operation{
			OperationID: "validateServer",
			Method:      http.MethodPost,
			Path:        "/server",
			Summary:     "Validate a single server descriptor",
			Tags:        tags,
		},
		func(ctx context.Context, input *ValidateRequest) (*ValidateResponse, error) {
			return &ValidateResponse{Body: validator.Validate(input.Body.ToDomain())}, nil
		},
	)
}
