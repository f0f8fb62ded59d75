package api

import "github.com/aether-ai/mcpregd/internal/domain"

// ServerPayload is the wire shape of a server descriptor. It differs from the
// domain type only in Enabled, which is optional on the wire and defaults to
// true when omitted.
type ServerPayload struct {
	ID             string                   `json:"id"                       doc:"Unique server identifier" example:"github-tools"`
	Name           string                   `json:"name"                     doc:"Human-readable name"      example:"GitHub Tools"`
	Description    string                   `json:"description,omitempty"    doc:"Free-form description"`
	Endpoint       string                   `json:"endpoint"                 doc:"Server endpoint URL"      example:"https://tools.example.com/sse"`
	Protocol       domain.Protocol          `json:"protocol,omitempty"       doc:"Wire protocol"            enum:"stdio,sse,websocket"`
	Command        string                   `json:"command,omitempty"        doc:"Command to launch for stdio servers"`
	Args           []string                 `json:"args,omitempty"           doc:"Arguments for the stdio command"`
	Env            map[string]string        `json:"env,omitempty"            doc:"Environment for the stdio command"`
	Authentication domain.Authentication    `json:"authentication,omitzero"  doc:"Authentication used when contacting the server"`
	Enabled        *bool                    `json:"enabled,omitempty"        doc:"Whether the server participates in health checks and tool calls (default true)"`
	HealthCheck    domain.HealthCheckConfig `json:"healthCheck,omitzero"     doc:"Recurring health probe configuration"`
	RetryPolicy    domain.RetryPolicy       `json:"retryPolicy,omitzero"     doc:"In-probe retry configuration"`
	Tags           []string                 `json:"tags,omitempty"           doc:"Free-form tags for filtering"`
}

// ToDomain converts the payload to its domain form, resolving the optional
// Enabled flag to its default.
func (p ServerPayload) ToDomain() domain.ServerDescriptor {
	return domain.ServerDescriptor{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Endpoint:       p.Endpoint,
		Protocol:       p.Protocol,
		Command:        p.Command,
		Args:           p.Args,
		Env:            p.Env,
		Authentication: p.Authentication,
		Enabled:        p.Enabled == nil || *p.Enabled,
		HealthCheck:    p.HealthCheck,
		RetryPolicy:    p.RetryPolicy,
		Tags:           p.Tags,
	}
}
