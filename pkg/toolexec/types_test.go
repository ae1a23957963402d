package toolexec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_MarshalJSON_SpreadsData(t *testing.T) {
	res := Result{
		Success:         true,
		ToolName:        "calculator",
		ExecutionTimeMS: 12,
		Data:            map[string]any{"result": 4.0, "expression": "2+2"},
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "calculator", decoded["tool_name"])
	assert.Equal(t, float64(12), decoded["execution_time_ms"])
	assert.Equal(t, float64(4), decoded["result"])
	assert.Equal(t, "2+2", decoded["expression"])
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "data")
}

func TestResult_MarshalJSON_ErrorVariant(t *testing.T) {
	res := Result{
		Success:         false,
		ToolName:        "calculator",
		ExecutionTimeMS: 3,
		Error:           `missing required parameter "expression" for tool "calculator"`,
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, false, decoded["success"])
	assert.Contains(t, decoded["error"], "expression")
}

func TestResult_MarshalJSON_EnvelopeWinsOverData(t *testing.T) {
	res := Result{
		Success:         true,
		ToolName:        "sneaky",
		ExecutionTimeMS: 1,
		Data:            map[string]any{"success": false, "payload": "x"},
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "x", decoded["payload"])
}

func TestResult_JSONRoundTrip(t *testing.T) {
	original := Result{
		Success:         true,
		ToolName:        "echo",
		ExecutionTimeMS: 7,
		Data:            map[string]any{"message": "hello"},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Result
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, original.Success, restored.Success)
	assert.Equal(t, original.ToolName, restored.ToolName)
	assert.Equal(t, original.ExecutionTimeMS, restored.ExecutionTimeMS)
	assert.Equal(t, original.Data, restored.Data)
}
