package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/navigator/internal/driver"
	"github.com/use-agent/navigator/internal/events"
	"github.com/use-agent/navigator/internal/runtime"
	"github.com/use-agent/navigator/models"
)

// RegisterObservability wires observability.* — dialogs, downloads,
// popups, console/network queries, and the generic expect_event wait.
func RegisterObservability(s *server.MCPServer, rt *runtime.Runtime) {
	s.AddTool(mcp.NewTool("observability.list_dialogs",
		mcp.WithDescription("List dialogs, pending ones by default."),
		mcp.WithBoolean("includeResolved", mcp.Description("Include already-resolved dialogs")),
	), Wrap(rt, handleListDialogs))

	s.AddTool(mcp.NewTool("observability.handle_dialog",
		mcp.WithDescription("Accept or dismiss a pending dialog."),
		mcp.WithString("dialogId", mcp.Required()),
		mcp.WithString("action", mcp.Required(), mcp.Enum("accept", "dismiss")),
		mcp.WithString("promptText", mcp.Description("Text to submit for a prompt() dialog")),
	), Wrap(rt, handleHandleDialog))

	s.AddTool(mcp.NewTool("observability.wait_for_download",
		mcp.WithDescription("Wait for the next unconsumed download."),
		mcp.WithNumber("timeoutMs", mcp.Description("Wait timeout in milliseconds")),
		mcp.WithBoolean("peek", mcp.Description("Inspect without marking consumed")),
	), Wrap(rt, handleWaitForDownload))

	s.AddTool(mcp.NewTool("files.save_download",
		mcp.WithDescription("Persist a captured download to a path under the write allowlist."),
		mcp.WithString("downloadId", mcp.Required()),
		mcp.WithString("path", mcp.Required()),
	), Wrap(rt, handleSaveDownload))

	s.AddTool(mcp.NewTool("observability.wait_for_popup",
		mcp.WithDescription("Wait for the next popup/new-page event."),
		mcp.WithNumber("timeoutMs", mcp.Description("Wait timeout in milliseconds")),
		mcp.WithBoolean("peek", mcp.Description("Inspect without marking consumed")),
		mcp.WithBoolean("select", mcp.Description("Make the new page active")),
	), Wrap(rt, handleWaitForPopup))

	s.AddTool(mcp.NewTool("observability.list_console",
		mcp.WithDescription("List captured console/exception messages."),
	), Wrap(rt, handleListConsole))

	s.AddTool(mcp.NewTool("observability.list_network",
		mcp.WithDescription("List captured network requests."),
	), Wrap(rt, handleListNetwork))

	s.AddTool(mcp.NewTool("observability.expect_event",
		mcp.WithDescription("Arm a wait for a dialog/download/popup/console/network event, optionally after running an action."),
		mcp.WithString("eventType", mcp.Required(), mcp.Enum("dialog", "download", "popup", "console", "network")),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Substring or regex to match against the event's subject")),
		mcp.WithBoolean("regex", mcp.Description("Treat pattern as a regular expression")),
		mcp.WithNumber("status", mcp.Description("Network status code to match")),
		mcp.WithString("method", mcp.Description("Network method to match")),
		mcp.WithNumber("timeoutMs", mcp.Required()),
		mcp.WithString("afterAction", mcp.Enum("click", "press", "goto", "reload", "back", "forward", "hover")),
		mcp.WithString("elementId", mcp.Description("Element for a click/press/hover afterAction")),
		mcp.WithString("selector", mcp.Description("Selector for a click/press/hover afterAction")),
		mcp.WithString("url", mcp.Description("URL for a goto afterAction")),
		mcp.WithString("key", mcp.Description("Key for a press afterAction")),
		mcp.WithNumber("pageId", mcp.Description("Target page for afterAction")),
	), Wrap(rt, handleExpectEvent))
}

func handleListDialogs(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	includeResolved := argBool(args, "includeResolved", false)
	dialogs := rt.Events.ListDialogs(includeResolved)
	items := make([]any, 0, len(dialogs))
	for _, d := range dialogs {
		items = append(items, map[string]any{
			"dialogId": d.DialogID, "pageId": d.PageID, "type": d.Type,
			"message": d.Message, "status": d.Status,
		})
	}
	return map[string]any{"dialogs": items, "count": len(items)}, 0, "", nil
}

func handleHandleDialog(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	dialogID := argString(args, "dialogId", "")
	accept := argString(args, "action", "dismiss") == "accept"
	promptText := argString(args, "promptText", "")

	rec, err := rt.Events.HandleDialog(dialogID, accept, promptText)
	if err != nil {
		return nil, 0, "", err
	}
	action := driver.DialogDismiss
	if accept {
		action = driver.DialogAccept
	}
	if derr := rt.Driver.HandleDialog(ctx, rec.PageID, action, promptText); derr != nil {
		rt.Logger.Warn("driver dialog handling failed after recording resolution", "dialogId", dialogID, "error", derr)
	}
	return map[string]any{"dialogId": rec.DialogID, "status": string(rec.Status)}, rec.PageID, "", nil
}

func handleWaitForDownload(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	timeout := runtime.CallTimeout(argInt(args, "timeoutMs", 0), defaultCallTimeout)
	peek := argBool(args, "peek", false)
	rec, err := rt.Events.WaitForDownload(ctx, timeout, peek)
	if err != nil {
		return nil, 0, "", err
	}
	return map[string]any{
		"downloadId": rec.DownloadID, "suggestedFilename": rec.SuggestedFilename, "url": rec.URL,
	}, rec.PageID, "", nil
}

func handleSaveDownload(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	downloadID := argString(args, "downloadId", "")
	path := argString(args, "path", "")

	rec, ok := rt.Events.GetDownload(downloadID)
	if !ok {
		return nil, 0, "", models.NotFound("download " + downloadID)
	}
	dctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()
	data, err := rt.Driver.DownloadBytes(dctx, rec.SourceGUID)
	if err != nil {
		return nil, rec.PageID, "", err
	}
	saved, err := rt.Events.SaveDownload(rt.Security, downloadID, path, data)
	if err != nil {
		return nil, 0, "", err
	}
	return map[string]any{"downloadId": saved.DownloadID, "savedPath": saved.SavedPath, "textPreview": saved.TextPreview}, saved.PageID, "", nil
}

func handleWaitForPopup(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	timeout := runtime.CallTimeout(argInt(args, "timeoutMs", 0), defaultCallTimeout)
	peek := argBool(args, "peek", false)
	rec, err := rt.Events.WaitForPopup(ctx, timeout, peek)
	if err != nil {
		return nil, 0, "", err
	}
	if argBool(args, "select", false) {
		rt.Pages.SelectPage(rec.NewPageID)
	}
	return map[string]any{"popupId": rec.PopupID, "newPageId": rec.NewPageID, "url": rec.URL}, rec.NewPageID, "", nil
}

func handleListConsole(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	records := rt.Events.ListConsole()
	items := make([]any, 0, len(records))
	for _, r := range records {
		items = append(items, map[string]any{"id": r.ID, "pageId": r.PageID, "level": r.Level, "text": r.Text})
	}
	return map[string]any{"messages": items, "count": len(items)}, 0, "", nil
}

func handleListNetwork(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	records := rt.Events.ListNetwork()
	items := make([]any, 0, len(records))
	for _, r := range records {
		items = append(items, map[string]any{
			"requestId": r.RequestID, "method": r.Method, "url": r.URL,
			"status": r.Status, "failed": r.Failed, "finished": r.Finished,
		})
	}
	return map[string]any{"requests": items, "count": len(items)}, 0, "", nil
}

func handleExpectEvent(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	afterAction := argString(args, "afterAction", "")
	if err := events.ValidateAfterAction(afterAction); err != nil {
		return nil, 0, "", err
	}

	var status *int
	if s, ok := args["status"].(float64); ok {
		v := int(s)
		status = &v
	}
	spec := events.ExpectEventSpec{
		EventType: events.EventType(argString(args, "eventType", "")),
		Pattern:   argString(args, "pattern", ""),
		Regex:     argBool(args, "regex", false),
		Status:    status,
		Method:    argString(args, "method", ""),
	}

	wait := rt.Events.Arm(spec)

	if afterAction != "" {
		if err := runAfterAction(ctx, rt, afterAction, args); err != nil {
			return nil, 0, "", err
		}
	}

	timeoutMs := argInt(args, "timeoutMs", 5000)
	v, err := wait.Wait(ctx, timeoutMs)
	if err != nil {
		return nil, 0, "", err
	}
	return map[string]any{"matched": v}, 0, "", nil
}

func runAfterAction(ctx context.Context, rt *runtime.Runtime, action string, args map[string]any) error {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return err
	}
	switch action {
	case "goto":
		return rt.Driver.Navigate(ctx, pageID, argString(args, "url", ""), defaultCallTimeout)
	case "reload":
		return rt.Driver.Reload(ctx, pageID, defaultCallTimeout)
	case "back":
		return rt.Driver.Back(ctx, pageID, defaultCallTimeout)
	case "forward":
		return rt.Driver.Forward(ctx, pageID, defaultCallTimeout)
	case "click", "hover", "press":
		sel, err := resolveSelector(rt, pageID, args)
		if action == "press" {
			return rt.Driver.Press(ctx, pageID, frameID, argString(args, "key", ""))
		}
		if err != nil {
			return err
		}
		if action == "click" {
			return rt.Driver.Click(ctx, pageID, frameID, sel)
		}
		return rt.Driver.Hover(ctx, pageID, frameID, sel)
	}
	return models.NewToolError(models.ErrCodeNotFound, "unsupported afterAction", nil)
}
