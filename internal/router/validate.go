package router

import (
	"fmt"

	"github.com/giantswarm/magictunnel/internal/capabilities"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateArguments checks args against def's declared input schema
// (spec.md §4.4 step 2: "Validate arguments against the declared input
// schema. Mismatch ⇒ InvalidArguments with path-qualified messages"). It is
// exported so discovery's argument-extraction gating step can run the same
// check before invoking the router.
func ValidateArguments(def capabilities.ToolDefinition, args map[string]interface{}) error {
	return validateArguments(def, args)
}

func validateArguments(def capabilities.ToolDefinition, args map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(def.InputSchema)
	docLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return &InvalidArgumentsError{ToolName: def.Name, Problems: []string{fmt.Sprintf("schema error: %v", err)}}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return &InvalidArgumentsError{ToolName: def.Name, Problems: problems}
}
