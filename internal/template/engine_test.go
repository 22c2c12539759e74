package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplace_SimpleSubstitution(t *testing.T) {
	e := New()
	result, err := e.Replace("cat {{path}}", map[string]interface{}{"path": "/tmp/x"})
	require.NoError(t, err)
	assert.Equal(t, "cat /tmp/x", result)
}

func TestReplace_DotPath(t *testing.T) {
	e := New()
	ctx := map[string]interface{}{"user": map[string]interface{}{"name": "ada"}}
	result, err := e.Replace("hello {{ user.name }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello ada", result)
}

func TestReplace_MissingVariable(t *testing.T) {
	e := New()
	_, err := e.Replace("{{missing}}", map[string]interface{}{})
	assert.Error(t, err)
}

func TestReplace_Map(t *testing.T) {
	e := New()
	ctx := map[string]interface{}{"host": "example.com"}
	result, err := e.Replace(map[string]interface{}{"url": "https://{{host}}/ping"}, ctx)
	require.NoError(t, err)
	m := result.(map[string]interface{})
	assert.Equal(t, "https://example.com/ping", m["url"])
}

func TestReplaceForArgv_RejectsShellMetacharacters(t *testing.T) {
	e := New()
	_, err := e.ReplaceForArgv("{{path}}", map[string]interface{}{"path": "/tmp/x; rm -rf /"})
	assert.Error(t, err)
}

func TestReplaceForArgv_AllowsPlainValues(t *testing.T) {
	e := New()
	result, err := e.ReplaceForArgv("{{path}}", map[string]interface{}{"path": "/tmp/x"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", result)
}

func TestExtractVariables(t *testing.T) {
	e := New()
	vars := e.ExtractVariables(map[string]interface{}{
		"a": "{{host}}",
		"b": []interface{}{"{{port}}", "static"},
	})
	assert.ElementsMatch(t, []string{"host", "port"}, vars)
}

func TestValidateReferences_RejectsUndeclaredProperty(t *testing.T) {
	e := New()
	err := e.ValidateReferences("{{path}} {{secret}}", map[string]interface{}{"path": map[string]interface{}{"type": "string"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "secret")
}

func TestValidateReferences_AllDeclared(t *testing.T) {
	e := New()
	err := e.ValidateReferences("{{path}}", map[string]interface{}{"path": map[string]interface{}{"type": "string"}})
	assert.NoError(t, err)
}

func TestRenderGoTemplate_Conditional(t *testing.T) {
	e := New()
	result, err := e.RenderGoTemplate(`{{ if eq .status "ok" }}healthy{{ else }}unhealthy{{ end }}`, map[string]interface{}{"status": "ok"})
	require.NoError(t, err)
	assert.Equal(t, "healthy", result)
}
