package template

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine substitutes {{key}} / {{key.sub}} placeholders with values from a
// flat or nested context map. The plain Replace/ReplaceForArgv path never
// evaluates code: a value is matched, stringified, and substituted verbatim.
// RenderGoTemplate is the one escape hatch into full text/template+sprig
// expressions, reserved for http routing's body/url templates — never used
// for subprocess argv (spec.md §9 "Templates instead of shell").
type Engine struct {
	templatePattern *regexp.Regexp
}

// New creates a new template engine.
func New() *Engine {
	return &Engine{
		templatePattern: regexp.MustCompile(`\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_.-]*)\s*\}\}`),
	}
}

// shellMetacharacters are rejected in argv-bound values: subprocess routing
// invokes the binary directly via argv, so there is no shell to interpret
// these, but a value containing them is almost certainly an injection
// attempt against something downstream that assumes shell semantics.
var shellMetacharacters = regexp.MustCompile(`[;&|$` + "`" + `<>\\\n]`)

// Replace replaces all template variables in a value with values from the
// context. Strings, maps, and slices are walked recursively; any other type
// is returned unchanged.
func (e *Engine) Replace(value interface{}, context map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return e.replaceString(v, context, false)
	case map[string]interface{}:
		return e.replaceMap(v, context)
	case []interface{}:
		return e.replaceSlice(v, context)
	default:
		return value, nil
	}
}

// ReplaceForArgv behaves like Replace but rejects any substituted value
// containing a shell metacharacter, for rendering one argv element of a
// subprocess routing spec.
func (e *Engine) ReplaceForArgv(value string, context map[string]interface{}) (string, error) {
	return e.replaceString(value, context, true)
}

func (e *Engine) replaceString(tmpl string, context map[string]interface{}, strict bool) (string, error) {
	matches := e.templatePattern.FindAllStringSubmatch(tmpl, -1)

	var missingVars []string
	result := tmpl
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		varPath := match[1]

		replacement, err := e.resolvePath(varPath, context)
		if err != nil {
			missingVars = append(missingVars, varPath)
			continue
		}

		replacementStr := stringify(replacement)
		if strict && shellMetacharacters.MatchString(replacementStr) {
			return "", fmt.Errorf("value for %q contains a forbidden shell metacharacter", varPath)
		}

		for _, placeholder := range placeholderForms(varPath) {
			result = strings.ReplaceAll(result, placeholder, replacementStr)
		}
	}

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missingVars, ", "))
	}
	return result, nil
}

func placeholderForms(varPath string) []string {
	return []string{
		fmt.Sprintf("{{ %s }}", varPath),
		fmt.Sprintf("{{ .%s }}", varPath),
		fmt.Sprintf("{{%s}}", varPath),
		fmt.Sprintf("{{.%s}}", varPath),
	}
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case int, int32, int64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (e *Engine) replaceMap(m map[string]interface{}, context map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m))
	for key, value := range m {
		replaced, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error in key %q: %w", key, err)
		}
		result[key] = replaced
	}
	return result, nil
}

func (e *Engine) replaceSlice(s []interface{}, context map[string]interface{}) ([]interface{}, error) {
	result := make([]interface{}, len(s))
	for i, value := range s {
		replaced, err := e.Replace(value, context)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		result[i] = replaced
	}
	return result, nil
}

// ExtractVariables returns every distinct variable name referenced by value.
func (e *Engine) ExtractVariables(value interface{}) []string {
	variables := make(map[string]bool)
	e.extractVariablesRecursive(value, variables)

	result := make([]string, 0, len(variables))
	for varName := range variables {
		result = append(result, varName)
	}
	return result
}

func (e *Engine) extractVariablesRecursive(value interface{}, variables map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, match := range e.templatePattern.FindAllStringSubmatch(v, -1) {
			if len(match) >= 2 {
				variables[match[1]] = true
			}
		}
	case map[string]interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	}
}

// ValidateContext ensures every variable value references is present in
// context, without actually rendering it.
func (e *Engine) ValidateContext(value interface{}, context map[string]interface{}) error {
	var missing []string
	for _, varName := range e.ExtractVariables(value) {
		root := strings.SplitN(varName, ".", 2)[0]
		if _, exists := context[root]; !exists {
			missing = append(missing, varName)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateReferences ensures every variable value references has its root
// declared in properties — the capability loader's `template_reference`
// check (spec.md §4.1: "Templates in routing specs must reference only keys
// declared in input_schema.properties").
func (e *Engine) ValidateReferences(value interface{}, properties map[string]interface{}) error {
	var unknown []string
	for _, varName := range e.ExtractVariables(value) {
		root := strings.SplitN(varName, ".", 2)[0]
		if _, declared := properties[root]; !declared {
			unknown = append(unknown, varName)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("references undeclared input_schema properties: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func (e *Engine) resolvePath(path string, context map[string]interface{}) (interface{}, error) {
	parts := strings.Split(path, ".")
	rootName := parts[0]
	currentValue, exists := context[rootName]
	if !exists {
		return nil, fmt.Errorf("variable %q not found in context", rootName)
	}

	for i, part := range parts[1:] {
		var err error
		currentValue, err = getProperty(currentValue, part)
		if err != nil {
			return nil, fmt.Errorf("failed to access property %q at position %d in path %q: %w", part, i+1, path, err)
		}
	}
	return currentValue, nil
}

func getProperty(obj interface{}, property string) (interface{}, error) {
	m, ok := obj.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("cannot access property %q on non-object type %T", property, obj)
	}
	value, exists := m[property]
	if !exists {
		return nil, fmt.Errorf("property %q not found in object", property)
	}
	return value, nil
}

// RenderGoTemplate renders templateStr as a full text/template with Sprig's
// function map, for http routing's body/url templates where richer
// expressions (conditionals, string functions) are useful. Never called
// from subprocess routing.
func (e *Engine) RenderGoTemplate(templateStr string, context map[string]interface{}) (interface{}, error) {
	tmpl, err := template.New("template").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return nil, fmt.Errorf("template execution failed: %w", err)
	}

	result := buf.String()
	if result == "true" {
		return true, nil
	}
	if result == "false" {
		return false, nil
	}
	return result, nil
}
