package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
)

// stringArg returns an optional string argument
func stringArg(request mcp.CallToolRequest, name string) string {
	if v, ok := request.GetArguments()[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// numberArg returns an optional numeric argument. JSON numbers arrive as
// float64; ints are accepted for in-process callers.
func numberArg(request mcp.CallToolRequest, name string) (float64, bool, error) {
	raw, ok := request.GetArguments()[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("%s must be a number", name)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%s must be a number", name)
	}
}

func requireNumber(request mcp.CallToolRequest, name string) (float64, error) {
	v, ok, err := numberArg(request, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("required argument %q not found", name)
	}
	return v, nil
}

// stringsArg returns an optional list-of-strings argument
func stringsArg(request mcp.CallToolRequest, name string) ([]string, error) {
	raw, ok := request.GetArguments()[name]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must be a list of strings", name)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		// Some clients send a single id unwrapped.
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("%s must be a list of strings", name)
	}
}

func requireStrings(request mcp.CallToolRequest, name string) ([]string, error) {
	v, err := stringsArg(request, name)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("required argument %q not found", name)
	}
	return v, nil
}

func categoryArg(request mcp.CallToolRequest, name string, required bool) (pid.Category, error) {
	raw := stringArg(request, name)
	if raw == "" {
		if required {
			return "", fmt.Errorf("required argument %q not found", name)
		}
		return "", nil
	}
	for _, c := range pid.Categories() {
		if strings.EqualFold(string(c), raw) {
			return c, nil
		}
	}
	return "", pid.ValidationError("unknown category %q", raw)
}

// jsonResult renders v as an indented JSON text result
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
