package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validJSON() string {
	return `{
		"id": "example-app",
		"name": "Example App",
		"entry": "./index.js",
		"permissions": ["storage:read", "session:hook"],
		"openclaw": {"minVersion": "2.0.0"}
	}`
}

func TestParse_Valid(t *testing.T) {
	m, warnings, err := Parse([]byte(validJSON()))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "example-app", m.ID)
	assert.Equal(t, "2.0.0", m.OpenClaw.MinVersion)
	assert.True(t, m.HasPermission(PermStorageRead))
	assert.False(t, m.HasPermission(PermStorageWrite))
}

func TestParse_MissingRequiredField(t *testing.T) {
	for _, field := range []string{"id", "name", "entry", "permissions", "openclaw"} {
		t.Run(field, func(t *testing.T) {
			var raw map[string]interface{}
			_ = json.Unmarshal([]byte(validJSON()), &raw)
			delete(raw, field)
			_, _, err := fromRaw(raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "INVALID_MANIFEST")
		})
	}
}

func TestParse_InvalidID(t *testing.T) {
	var raw map[string]interface{}
	_ = json.Unmarshal([]byte(validJSON()), &raw)
	raw["id"] = "Not_Kebab"
	_, _, err := fromRaw(raw)
	require.Error(t, err)
}

func TestParse_PermissionsNotSequence(t *testing.T) {
	var raw map[string]interface{}
	_ = json.Unmarshal([]byte(validJSON()), &raw)
	raw["permissions"] = "storage:read"
	_, _, err := fromRaw(raw)
	require.Error(t, err)
}

func TestParse_UnknownPermissionWarns(t *testing.T) {
	var raw map[string]interface{}
	_ = json.Unmarshal([]byte(validJSON()), &raw)
	raw["permissions"] = []interface{}{"storage:read", "made:up"}
	m, warnings, err := fromRaw(raw)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NotEmpty(t, warnings)
}

func TestParse_ShortNameWarnsButAccepts(t *testing.T) {
	var raw map[string]interface{}
	_ = json.Unmarshal([]byte(validJSON()), &raw)
	raw["shortName"] = "toolong"
	m, warnings, err := fromRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "toolong", m.ShortName)
	assert.NotEmpty(t, warnings)
}

func TestParse_InvalidVersion(t *testing.T) {
	var raw map[string]interface{}
	_ = json.Unmarshal([]byte(validJSON()), &raw)
	raw["version"] = "v1"
	_, _, err := fromRaw(raw)
	require.Error(t, err)
}

func TestParse_MissingMinVersion(t *testing.T) {
	var raw map[string]interface{}
	_ = json.Unmarshal([]byte(validJSON()), &raw)
	raw["openclaw"] = map[string]interface{}{}
	_, _, err := fromRaw(raw)
	require.Error(t, err)
}

func TestValidateMinVersion(t *testing.T) {
	m, _, err := Parse([]byte(validJSON()))
	require.NoError(t, err)

	ok, err := ValidateMinVersion(m, "2.1.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ValidateMinVersion(m, "1.9.0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateConfig_SchemaEnforced(t *testing.T) {
	m := &Manifest{
		Config: Config{
			Schema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"apiKey"},
				"properties": map[string]interface{}{
					"apiKey": map[string]interface{}{"type": "string"},
				},
			},
		},
	}
	err := ValidateConfig(m, map[string]interface{}{"apiKey": "xyz"})
	assert.NoError(t, err)

	err = ValidateConfig(m, map[string]interface{}{})
	assert.Error(t, err)
}

