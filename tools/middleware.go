// Package tools registers the MCP tool surface (~browser.*, forms.*,
// files.*, jobs.*, search.*, observability.*, session.*) against a
// runtime.Runtime, wrapping every handler with the C6 middleware:
// request id assignment, call governance, envelope construction, error
// classification, and payload budget reduction.
package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/navigator/internal/envelope"
	"github.com/use-agent/navigator/internal/runtime"
	"github.com/use-agent/navigator/models"
)

// Handler is what each tools/*.go file implements: read args, act
// through rt, and return a flat payload (envelope keys merged in by the
// middleware) plus the page/frame the result is scoped to.
type Handler func(ctx context.Context, rt *runtime.Runtime, args map[string]any) (payload map[string]any, pageID int, frameID string, err error)

// Wrap produces the mcp-go handler for one tool, applying the C6
// pipeline around fn.
func Wrap(rt *runtime.Runtime, fn Handler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestID := rt.IDGen.Next(time.Now())

		if !rt.Governor.Allow() {
			env := envelope.Build(requestID, time.Now(), models.PageContext{Closed: true}, nil,
				models.NewToolError(models.ErrCodeTimeout, "tool call rate limit exceeded", nil))
			merged := envelope.MergePayload(env, nil)
			return jsonResult(merged), nil
		}

		args := req.GetArguments()
		payload, pageID, frameID, err := fn(ctx, rt, args)

		pc := rt.PageContext(pageID, frameID)
		env := envelope.Build(requestID, time.Now(), pc, payload, err)
		merged := envelope.MergePayload(env, payload)
		merged = envelope.ApplyBudget(merged, rt.Cfg.Capture.MaxResponseBytes)

		return jsonResult(merged), nil
	}
}

func jsonResult(payload map[string]any) *mcp.CallToolResult {
	ok, _ := payload["ok"].(bool)
	if !ok {
		if detail, has := payload["error"]; has {
			if ed, isDetail := detail.(*models.ErrorDetail); isDetail {
				return mcp.NewToolResultError(ed.Message)
			}
		}
	}
	return mcp.NewToolResultStructured(payload, "")
}

// argString/argInt/argBool/argFloat read optional args with a default,
// tolerating the loose any-typed map mcp-go hands handlers.
func argString(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func argFloat(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
