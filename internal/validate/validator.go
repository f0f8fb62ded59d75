// Package validate checks server descriptors against structural and
// protocol-specific rules. Validation is pure: all violations are collected
// into a ValidationResult and nothing is thrown, so callers inspect .Valid.
package validate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/aether-ai/mcpregd/internal/domain"
)

// Validator validates server descriptors. NewValidator must be used to create
// instances so the schema is compiled once.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the descriptor schema.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(descriptorSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile descriptor schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks a single descriptor. Defaults are applied to a copy first so
// the effective configuration is what gets validated. Rules run in order
// (structural, protocol-specific, authentication-specific) and every violation
// is reported.
func (v *Validator) Validate(d domain.ServerDescriptor) domain.ValidationResult {
	d.ApplyDefaults()

	result := domain.Valid()
	result.Merge(v.structural(d))
	result.Merge(protocolRules(d))
	result.Merge(authRules(d))

	return result
}

// ValidateList checks a batch of descriptors. Each descriptor's errors are
// prefixed with its index (servers[i].field), and duplicate ids within the
// batch are rejected per offending index, independent of what is already
// registered elsewhere.
func (v *Validator) ValidateList(descriptors []domain.ServerDescriptor) domain.ValidationResult {
	result := domain.Valid()
	seen := make(map[string]struct{}, len(descriptors))

	for i, d := range descriptors {
		one := v.Validate(d)
		for _, fe := range one.Errors {
			fe.Field = fmt.Sprintf("servers[%d].%s", i, fe.Field)
			result.Merge(domain.Invalid(fe))
		}

		if d.ID == "" {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			result.Merge(domain.Invalid(domain.FieldError{
				Field:   fmt.Sprintf("servers[%d].id", i),
				Message: fmt.Sprintf("Duplicate server ID: %q", d.ID),
				Value:   d.ID,
			}))
			continue
		}
		seen[d.ID] = struct{}{}
	}

	return result
}

// structural runs the schema phase plus the endpoint URL syntax check.
func (v *Validator) structural(d domain.ServerDescriptor) domain.ValidationResult {
	result := domain.Valid()

	raw, err := json.Marshal(d)
	if err != nil {
		result.Merge(domain.Invalid(domain.FieldError{
			Field:   "(root)",
			Message: fmt.Sprintf("descriptor is not serializable: %v", err),
		}))
		return result
	}

	outcome, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		result.Merge(domain.Invalid(domain.FieldError{
			Field:   "(root)",
			Message: fmt.Sprintf("schema validation failed: %v", err),
		}))
		return result
	}

	for _, desc := range outcome.Errors() {
		result.Merge(domain.Invalid(domain.FieldError{
			Field:   schemaField(desc),
			Message: desc.Description(),
			Value:   desc.Value(),
		}))
	}

	if d.Endpoint != "" {
		if u, err := url.Parse(d.Endpoint); err != nil || u.Scheme == "" {
			result.Merge(domain.Invalid(domain.FieldError{
				Field:   "endpoint",
				Message: "endpoint must be a syntactically valid URL with a scheme",
				Value:   d.Endpoint,
			}))
		}
	}

	return result
}

// protocolRules enforces the per-protocol field requirements.
func protocolRules(d domain.ServerDescriptor) domain.ValidationResult {
	result := domain.Valid()

	switch d.Protocol {
	case domain.ProtocolStdio:
		if strings.TrimSpace(d.Command) == "" {
			result.Merge(domain.Invalid(domain.FieldError{
				Field:   "command",
				Message: "command is required when protocol is stdio",
			}))
		}
	case domain.ProtocolWebSocket:
		if !strings.HasPrefix(d.Endpoint, "ws://") && !strings.HasPrefix(d.Endpoint, "wss://") {
			result.Merge(domain.Invalid(domain.FieldError{
				Field:   "endpoint",
				Message: "endpoint must start with ws:// or wss:// when protocol is websocket",
				Value:   d.Endpoint,
			}))
		}
	}

	return result
}

// authRules enforces the credential requirements of each authentication variant.
func authRules(d domain.ServerDescriptor) domain.ValidationResult {
	result := domain.Valid()
	auth := d.Authentication

	switch auth.Type {
	case domain.AuthBearer, domain.AuthAPIKey:
		if strings.TrimSpace(auth.Token) == "" {
			result.Merge(domain.Invalid(domain.FieldError{
				Field:   "authentication.token",
				Message: fmt.Sprintf("token is required for %s authentication", auth.Type),
			}))
		}
	case domain.AuthBasic:
		if strings.TrimSpace(auth.Username) == "" {
			result.Merge(domain.Invalid(domain.FieldError{
				Field:   "authentication.username",
				Message: "username is required for basic authentication",
			}))
		}
		if strings.TrimSpace(auth.Password) == "" {
			result.Merge(domain.Invalid(domain.FieldError{
				Field:   "authentication.password",
				Message: "password is required for basic authentication",
			}))
		}
	}

	return result
}

// schemaField normalizes gojsonschema's field naming to descriptor field paths.
func schemaField(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field == "(root)" {
		// Required-property violations report against the root; the property
		// name is in the error details.
		if prop, ok := desc.Details()["property"].(string); ok {
			return prop
		}
	}
	return field
}
