package capabilities

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/giantswarm/magictunnel/internal/config"
	"github.com/giantswarm/magictunnel/internal/template"
	"github.com/giantswarm/magictunnel/pkg/logging"

	"gopkg.in/yaml.v3"
)

var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// rawCapabilityFile mirrors the capability YAML file format in spec.md §6.
type rawCapabilityFile struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Tools       []rawToolSpec `yaml:"tools"`
}

type rawToolSpec struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Hidden      *bool                  `yaml:"hidden"`
	Enabled     *bool                  `yaml:"enabled"`
	InputSchema map[string]interface{} `yaml:"input_schema"`
	Routing     rawRoutingSpec         `yaml:"routing"`
	Annotations map[string]interface{} `yaml:"annotations"`
}

type rawRoutingSpec struct {
	Type string `yaml:"type"`

	// subprocess
	Command       string            `yaml:"command"`
	Args          []string          `yaml:"args"`
	Env           map[string]string `yaml:"env"`
	Cwd           string            `yaml:"cwd"`
	StdinTemplate string            `yaml:"stdin_template"`

	// http + subprocess share timeout
	Timeout int `yaml:"timeout"`

	// http
	Method          string            `yaml:"method"`
	URLTemplate     string            `yaml:"url_template"`
	Headers         map[string]string `yaml:"headers"`
	BodyTemplate    string            `yaml:"body_template"`
	Auth            *AuthSpec         `yaml:"auth"`
	ResponseMapping string            `yaml:"response_mapping"`

	// external_mcp
	ServerID       string `yaml:"server_id"`
	RemoteToolName string `yaml:"remote_tool_name"`

	// internal
	BuiltinID string `yaml:"builtin_id"`

	// grpc
	Target  string `yaml:"target"`
	Service string `yaml:"service"`

	// graphql
	Endpoint string `yaml:"endpoint"`
	Query    string `yaml:"query"`
}

// LoadResult is the product of a Load call: the definitions that parsed and
// validated cleanly, plus every file-level failure encountered along the
// way (spec.md §4.1 "Partial success").
type LoadResult struct {
	Definitions []ToolDefinition
	Errors      *config.ConfigurationErrorCollection
}

// Load walks configRoot/capabilities for *.yaml/*.yml files and parses each
// into zero or more Tool Definitions (spec.md §4.1).
func Load(configRoot string) (LoadResult, error) {
	const subdir = "capabilities"
	dir := filepath.Join(configRoot, subdir)
	errColl := config.NewConfigurationErrorCollection()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return LoadResult{Errors: errColl}, nil
		}
		return LoadResult{}, fmt.Errorf("failed to read capabilities directory %s: %w", dir, err)
	}

	engine := template.New()
	var definitions []ToolDefinition

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		filePath := filepath.Join(dir, entry.Name())
		fileDefs, fileErr := loadFile(filePath, engine)
		if fileErr != nil {
			errColl.Add(*fileErr)
			continue
		}
		definitions = append(definitions, fileDefs...)
	}

	logging.Info("CapabilityLoader", "Loaded %d tool definitions from %s (%d file errors)",
		len(definitions), dir, errColl.Count())

	return LoadResult{Definitions: definitions, Errors: errColl}, nil
}

func loadFile(filePath string, engine *template.Engine) ([]ToolDefinition, *config.ConfigurationError) {
	fileName := filepath.Base(filePath)

	data, err := os.ReadFile(filePath)
	if err != nil {
		ce := config.NewConfigurationError(filePath, fileName, "capabilities", "capabilities", string(config.ErrorKindIO), err.Error())
		return nil, &ce
	}

	var raw rawCapabilityFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		ce := config.NewConfigurationError(filePath, fileName, "capabilities", "capabilities", string(config.ErrorKindParse), err.Error())
		return nil, &ce
	}

	providerID := raw.Name
	if providerID == "" {
		providerID = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}

	seen := make(map[string]bool, len(raw.Tools))
	definitions := make([]ToolDefinition, 0, len(raw.Tools))

	for _, rawTool := range raw.Tools {
		def, err := buildDefinition(rawTool, providerID, filePath, engine)
		if err != nil {
			ce := config.NewConfigurationError(filePath, fileName, "capabilities", "capabilities", err.kind, err.Error())
			return nil, &ce
		}
		if seen[def.Name] {
			ce := config.NewConfigurationError(filePath, fileName, "capabilities", "capabilities",
				string(config.ErrorKindDuplicateName), fmt.Sprintf("duplicate tool name %q within file", def.Name))
			return nil, &ce
		}
		seen[def.Name] = true
		definitions = append(definitions, def)
	}

	return definitions, nil
}

// loaderError carries the ErrorKind alongside a Go error so loadFile can map
// it directly onto a config.ConfigurationError.
type loaderError struct {
	kind string
	msg  string
}

func (e *loaderError) Error() string { return e.msg }

func schemaErr(format string, args ...interface{}) *loaderError {
	return &loaderError{kind: string(config.ErrorKindSchema), msg: fmt.Sprintf(format, args...)}
}

func templateRefErr(format string, args ...interface{}) *loaderError {
	return &loaderError{kind: string(config.ErrorKindTemplateReference), msg: fmt.Sprintf(format, args...)}
}

func buildDefinition(raw rawToolSpec, providerID, sourceFile string, engine *template.Engine) (ToolDefinition, *loaderError) {
	if raw.Name == "" {
		return ToolDefinition{}, schemaErr("tool name is required")
	}
	if !toolNamePattern.MatchString(raw.Name) {
		return ToolDefinition{}, schemaErr("tool name %q must match [A-Za-z0-9_-]+", raw.Name)
	}
	if raw.InputSchema == nil {
		return ToolDefinition{}, schemaErr("tool %q: input_schema is required", raw.Name)
	}
	if schemaType, _ := raw.InputSchema["type"].(string); schemaType != "object" {
		return ToolDefinition{}, schemaErr("tool %q: input_schema.type must be \"object\"", raw.Name)
	}

	routing, err := buildRouting(raw.Name, raw.Routing, raw.InputSchema, engine)
	if err != nil {
		return ToolDefinition{}, err
	}

	hidden := false
	if raw.Hidden != nil {
		hidden = *raw.Hidden
	}
	enabled := true
	if raw.Enabled != nil {
		enabled = *raw.Enabled
	}

	return ToolDefinition{
		Name:        raw.Name,
		Description: raw.Description,
		Hidden:      hidden,
		Enabled:     enabled,
		InputSchema: raw.InputSchema,
		Routing:     routing,
		Annotations: raw.Annotations,
		SourceFile:  sourceFile,
		ProviderID:  providerID,
	}, nil
}

func buildRouting(toolName string, raw rawRoutingSpec, inputSchema map[string]interface{}, engine *template.Engine) (RoutingSpec, *loaderError) {
	routingType := RoutingType(raw.Type)
	if !recognisedRoutingTypes[routingType] {
		return RoutingSpec{}, schemaErr("tool %q: unrecognised routing.type %q", toolName, raw.Type)
	}

	properties, _ := inputSchema["properties"].(map[string]interface{})
	if properties == nil {
		properties = map[string]interface{}{}
	}

	checkRefs := func(templates ...string) *loaderError {
		for _, t := range templates {
			if t == "" {
				continue
			}
			if err := engine.ValidateReferences(t, properties); err != nil {
				return templateRefErr("tool %q: %v", toolName, err)
			}
		}
		return nil
	}

	spec := RoutingSpec{Type: routingType}

	switch routingType {
	case RoutingSubprocess:
		if raw.Command == "" {
			return RoutingSpec{}, schemaErr("tool %q: routing.command is required for subprocess", toolName)
		}
		if err := checkRefs(raw.Args...); err != nil {
			return RoutingSpec{}, err
		}
		if err := checkRefs(raw.StdinTemplate); err != nil {
			return RoutingSpec{}, err
		}
		spec.Subprocess = &SubprocessRouting{
			Command:       raw.Command,
			Args:          raw.Args,
			Env:           raw.Env,
			Cwd:           raw.Cwd,
			TimeoutSec:    raw.Timeout,
			StdinTemplate: raw.StdinTemplate,
		}

	case RoutingHTTP:
		if raw.Method == "" || raw.URLTemplate == "" {
			return RoutingSpec{}, schemaErr("tool %q: routing.method and routing.url_template are required for http", toolName)
		}
		if err := checkRefs(raw.URLTemplate, raw.BodyTemplate); err != nil {
			return RoutingSpec{}, err
		}
		spec.HTTP = &HTTPRouting{
			Method:          raw.Method,
			URLTemplate:     raw.URLTemplate,
			Headers:         raw.Headers,
			BodyTemplate:    raw.BodyTemplate,
			Auth:            raw.Auth,
			ResponseMapping: raw.ResponseMapping,
			TimeoutSec:      raw.Timeout,
		}

	case RoutingExternalMCP:
		if raw.ServerID == "" || raw.RemoteToolName == "" {
			return RoutingSpec{}, schemaErr("tool %q: routing.server_id and routing.remote_tool_name are required for external_mcp", toolName)
		}
		spec.ExternalMCP = &ExternalMCPRouting{ServerID: raw.ServerID, RemoteToolName: raw.RemoteToolName}

	case RoutingInternal:
		if raw.BuiltinID == "" {
			return RoutingSpec{}, schemaErr("tool %q: routing.builtin_id is required for internal", toolName)
		}
		spec.Internal = &InternalRouting{BuiltinID: raw.BuiltinID}

	case RoutingGRPC:
		if raw.Target == "" || raw.Service == "" {
			return RoutingSpec{}, schemaErr("tool %q: routing.target and routing.service are required for grpc", toolName)
		}
		spec.GRPC = &GRPCRouting{Target: raw.Target, Service: raw.Service, Method: raw.Method}

	case RoutingGraphQL:
		if raw.Endpoint == "" || raw.Query == "" {
			return RoutingSpec{}, schemaErr("tool %q: routing.endpoint and routing.query are required for graphql", toolName)
		}
		if err := checkRefs(raw.Query); err != nil {
			return RoutingSpec{}, err
		}
		spec.GraphQL = &GraphQLRouting{Endpoint: raw.Endpoint, Query: raw.Query}
	}

	return spec, nil
}
