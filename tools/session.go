package tools

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/navigator/internal/capture"
	"github.com/use-agent/navigator/internal/driver"
	"github.com/use-agent/navigator/internal/runtime"
	"github.com/use-agent/navigator/models"
)

// RegisterSession wires session.* (capture profile control, pages, and
// storage-state import/export through the security gate).
func RegisterSession(s *server.MCPServer, rt *runtime.Runtime) {
	s.AddTool(mcp.NewTool("session.set_capture_profile",
		mcp.WithDescription("Set the active capture profile for list/snapshot/read_page/visual_snapshot defaults."),
		mcp.WithString("profile", mcp.Required(), mcp.Enum(capture.ProfileLight, capture.ProfileBalanced, capture.ProfileFull)),
	), Wrap(rt, handleSetCaptureProfile))

	s.AddTool(mcp.NewTool("session.list_pages",
		mcp.WithDescription("List every tracked page, closed ones included (closed=true)."),
	), Wrap(rt, handleListPages))

	s.AddTool(mcp.NewTool("session.select_page",
		mcp.WithDescription("Make a page the active page for calls that omit pageId."),
		mcp.WithNumber("pageId", mcp.Required()),
	), Wrap(rt, handleSelectPage))

	s.AddTool(mcp.NewTool("session.close_page",
		mcp.WithDescription("Close a page."),
		mcp.WithNumber("pageId", mcp.Required()),
	), Wrap(rt, handleClosePage))

	s.AddTool(mcp.NewTool("session.export_storage_state",
		mcp.WithDescription("Export cookies to a JSON file under the write allowlist; the per-origin storage section is written empty."),
		mcp.WithString("path", mcp.Required()),
	), Wrap(rt, handleExportStorageState))

	s.AddTool(mcp.NewTool("session.import_storage_state",
		mcp.WithDescription("Import cookies from a JSON file under the read allowlist; per-origin storage entries in the file are not applied."),
		mcp.WithString("path", mcp.Required()),
	), Wrap(rt, handleImportStorageState))
}

func handleSetCaptureProfile(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	profile := argString(args, "profile", "")
	if err := rt.Capture.SetActive(profile); err != nil {
		return nil, 0, "", models.NewToolError(models.ErrCodeNotFound, err.Error(), err)
	}
	return map[string]any{"status": "profile_set", "profile": profile}, 0, "", nil
}

func handleListPages(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pages := rt.Pages.ListPages()
	items := make([]any, 0, len(pages))
	for _, p := range pages {
		items = append(items, map[string]any{"pageId": p.PageID, "url": p.URL, "title": p.Title, "closed": p.Closed})
	}
	return map[string]any{"items": items, "count": len(items)}, rt.Pages.ActivePage(), "", nil
}

func handleSelectPage(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID := argInt(args, "pageId", 0)
	if !rt.Pages.SelectPage(pageID) {
		return nil, 0, "", models.NotFound("page")
	}
	return map[string]any{"status": "selected"}, pageID, "", nil
}

func handleClosePage(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID := argInt(args, "pageId", 0)
	if err := rt.Driver.ClosePage(ctx, pageID); err != nil {
		return nil, pageID, "", err
	}
	rt.Tracker.PageClosed(pageID)
	rt.Pages.PageClosed(pageID)
	rt.Elements.InvalidatePage(pageID)
	return map[string]any{"status": "closed"}, 0, "", nil
}

func handleExportStorageState(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	path := argString(args, "path", "")
	resolved, err := rt.Security.CheckWrite(path)
	if err != nil {
		return nil, 0, "", err
	}
	state, err := rt.Driver.ExportStorageState(ctx)
	if err != nil {
		return nil, 0, "", err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, 0, "", models.NewToolError(models.ErrCodeInternal, "failed to encode storage state", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return nil, 0, "", models.NewToolError(models.ErrCodeInternal, "failed to write storage state", err)
	}
	return map[string]any{"status": "exported", "path": resolved}, 0, "", nil
}

func handleImportStorageState(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	path := argString(args, "path", "")
	resolved, err := rt.Security.CheckRead(path)
	if err != nil {
		return nil, 0, "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, 0, "", models.NewToolError(models.ErrCodeInternal, "failed to read storage state", err)
	}
	var state driver.StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, 0, "", models.NewToolError(models.ErrCodeInternal, "failed to decode storage state", err)
	}
	if err := rt.Driver.ImportStorageState(ctx, &state); err != nil {
		return nil, 0, "", err
	}
	return map[string]any{"status": "imported"}, 0, "", nil
}
