package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigModelJSONTags(t *testing.T) {
	model := ConfigModel{
		ID:    "metrodisplay",
		Build: BuildProperties{Version: "v1.2.0", Revision: "abc12345"},
		FPS:   60,
	}

	data, err := json.Marshal(model)
	require.NoError(t, err)
	jsonString := string(data)

	assert.Contains(t, jsonString, `"id":"metrodisplay"`)
	assert.Contains(t, jsonString, `"version":"v1.2.0"`)
	assert.Contains(t, jsonString, `"vcs.revision":"abc12345"`)
	assert.Contains(t, jsonString, `"fps":60`)
	assert.NotContains(t, jsonString, "vcs.modified")
}

func TestCurrentBuild(t *testing.T) {
	assert.NotPanics(t, func() { CurrentBuild() })
}
