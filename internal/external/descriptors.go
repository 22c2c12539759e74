package external

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// rawDescriptorFile mirrors the external-server descriptor YAML file format
// (spec.md §6 "a mapping mcpServers: {<id>: {command,args,env} |
// {url,transport,auth}}").
type rawDescriptorFile struct {
	MCPServers map[string]rawDescriptor `yaml:"mcpServers"`
}

type rawDescriptor struct {
	// stdio
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Cwd     string            `yaml:"cwd"`

	// sse | http_stream | websocket
	URL       string       `yaml:"url"`
	Transport string       `yaml:"transport"`
	Auth      *rawHTTPAuth `yaml:"auth"`

	RequestTimeoutSec      int `yaml:"request_timeout_sec"`
	HealthCheckIntervalSec int `yaml:"health_check_interval_sec"`
	CapabilityRefreshSec   int `yaml:"capability_refresh_sec"`
}

type rawHTTPAuth struct {
	Type     string `yaml:"type"`
	Token    string `yaml:"token"`
	Header   string `yaml:"header"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoadDescriptors reads path (an external-server descriptor file) into a
// deterministically ordered slice of Descriptor, one per mcpServers entry.
func LoadDescriptors(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading external-server descriptor file %s: %w", path, err)
	}

	var raw rawDescriptorFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing external-server descriptor file %s: %w", path, err)
	}

	names := make([]string, 0, len(raw.MCPServers))
	for name := range raw.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]Descriptor, 0, len(names))
	for _, name := range names {
		d, err := buildDescriptor(name, raw.MCPServers[name])
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func buildDescriptor(name string, raw rawDescriptor) (Descriptor, error) {
	d := Descriptor{
		Name:                name,
		RestartPolicy:       DefaultRestartPolicy(),
		RequestTimeout:      30 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		CapabilityRefresh:   5 * time.Minute,
	}

	switch {
	case raw.Command != "":
		d.Transport = TransportStdio
		d.Command = raw.Command
		d.Args = raw.Args
		d.Env = raw.Env
		d.Cwd = raw.Cwd

	case raw.URL != "":
		switch TransportType(raw.Transport) {
		case TransportSSE, TransportHTTPStream, TransportWebsocket:
			d.Transport = TransportType(raw.Transport)
		case "":
			return Descriptor{}, fmt.Errorf("external server %q: transport is required alongside url", name)
		default:
			return Descriptor{}, fmt.Errorf("external server %q: unrecognised transport %q", name, raw.Transport)
		}
		d.BaseURL = raw.URL
		if raw.Auth != nil {
			d.Auth = &HTTPAuth{
				Type:     raw.Auth.Type,
				Token:    raw.Auth.Token,
				Header:   raw.Auth.Header,
				Username: raw.Auth.Username,
				Password: raw.Auth.Password,
			}
		}

	default:
		return Descriptor{}, fmt.Errorf("external server %q: must declare either command (stdio) or url+transport", name)
	}

	if raw.RequestTimeoutSec > 0 {
		d.RequestTimeout = time.Duration(raw.RequestTimeoutSec) * time.Second
	}
	if raw.HealthCheckIntervalSec > 0 {
		d.HealthCheckInterval = time.Duration(raw.HealthCheckIntervalSec) * time.Second
	}
	if raw.CapabilityRefreshSec > 0 {
		d.CapabilityRefresh = time.Duration(raw.CapabilityRefreshSec) * time.Second
	}

	return d, nil
}
