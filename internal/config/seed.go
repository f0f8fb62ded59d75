package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aether-ai/mcpregd/internal/domain"
)

// seedFile is the YAML shape of the server seed file.
type seedFile struct {
	Servers []seedServer `yaml:"servers"`
}

// seedServer mirrors the domain descriptor with an optional Enabled flag,
// which defaults to true when omitted from the file.
type seedServer struct {
	ID             string                   `yaml:"id"`
	Name           string                   `yaml:"name"`
	Description    string                   `yaml:"description"`
	Endpoint       string                   `yaml:"endpoint"`
	Protocol       domain.Protocol          `yaml:"protocol"`
	Command        string                   `yaml:"command"`
	Args           []string                 `yaml:"args"`
	Env            map[string]string        `yaml:"env"`
	Authentication domain.Authentication    `yaml:"authentication"`
	Enabled        *bool                    `yaml:"enabled"`
	HealthCheck    domain.HealthCheckConfig `yaml:"healthCheck"`
	RetryPolicy    domain.RetryPolicy       `yaml:"retryPolicy"`
	Tags           []string                 `yaml:"tags"`
}

func (s seedServer) toDomain() domain.ServerDescriptor {
	return domain.ServerDescriptor{
		ID:             s.ID,
		Name:           s.Name,
		Description:    s.Description,
		Endpoint:       s.Endpoint,
		Protocol:       s.Protocol,
		Command:        s.Command,
		Args:           s.Args,
		Env:            s.Env,
		Authentication: s.Authentication,
		Enabled:        s.Enabled == nil || *s.Enabled,
		HealthCheck:    s.HealthCheck,
		RetryPolicy:    s.RetryPolicy,
		Tags:           s.Tags,
	}
}

// LoadServers reads the YAML seed file and returns its descriptors. An empty
// path returns no descriptors and no error.
func LoadServers(path string) ([]domain.ServerDescriptor, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read servers file %q: %w", path, err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse servers file %q: %w", path, err)
	}

	descriptors := make([]domain.ServerDescriptor, 0, len(file.Servers))
	for _, server := range file.Servers {
		descriptors = append(descriptors, server.toDomain())
	}
	return descriptors, nil
}
