package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionToolInvoke(t *testing.T) {
	sum := NewFunctionTool(
		"calculate_sum",
		"Calculate the sum of two numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"a", "b"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
	)

	result, err := sum.Invoke(context.Background(), map[string]any{"a": 1.5, "b": 2.5})
	require.NoError(t, err)
	assert.Equal(t, 4.0, result)
}

func TestFunctionToolValidation(t *testing.T) {
	echo := NewFunctionTool(
		"echo",
		"Echo the input",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	)

	_, err := echo.Invoke(context.Background(), map[string]any{})

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionToolExecutionError(t *testing.T) {
	failing := NewFunctionTool(
		"broken",
		"Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	)

	_, err := failing.Invoke(context.Background(), map[string]any{})

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionToolFromStruct(t *testing.T) {
	type args struct {
		City string `json:"city" description:"City name"`
		Days int    `json:"days,omitempty"`
	}

	weather := NewFunctionToolFromStruct("get_weather", "Get weather", args{},
		func(_ context.Context, a map[string]any) (any, error) { return a["city"], nil })

	schema := weather.Parameters()
	properties := schema["properties"].(map[string]any)
	assert.Contains(t, properties, "city")
	assert.Contains(t, properties, "days")
	assert.Equal(t, []string{"city"}, schema["required"])
}

func TestTransferNaming(t *testing.T) {
	assert.Equal(t, "transfer_to_researcher", TransferToolName("researcher"))
	assert.True(t, IsTransfer("transfer_to_researcher"))
	assert.False(t, IsTransfer("dataset_retrieval"))
	assert.Equal(t, "researcher", TransferTarget("transfer_to_researcher"))
	assert.Equal(t, "", TransferTarget("get_weather"))
}

func TestTransferToolSchema(t *testing.T) {
	transfer := NewTransferTool("researcher", "",
		func(_ context.Context, args map[string]any) (any, error) {
			return args["task_description"], nil
		})

	assert.Equal(t, "transfer_to_researcher", transfer.Name())

	result, err := transfer.Invoke(context.Background(), map[string]any{"task_description": "find sources"})
	require.NoError(t, err)
	assert.Equal(t, "find sources", result)

	_, err = transfer.Invoke(context.Background(), map[string]any{})
	assert.Error(t, err)
}
