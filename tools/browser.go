package tools

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/navigator/internal/capture"
	"github.com/use-agent/navigator/internal/driver"
	"github.com/use-agent/navigator/internal/readable"
	"github.com/use-agent/navigator/internal/runtime"
	"github.com/use-agent/navigator/models"
)

const defaultCallTimeout = 15 * time.Second

// RegisterBrowser wires the browser.* namespace: navigation, element
// interaction, accessibility/text capture, and the read-mode/evaluate
// expansions.
func RegisterBrowser(s *server.MCPServer, rt *runtime.Runtime) {
	s.AddTool(mcp.NewTool("browser.goto",
		mcp.WithDescription("Navigate a page to a URL."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Destination URL")),
		mcp.WithNumber("pageId", mcp.Description("Target page; defaults to the active page")),
		mcp.WithNumber("timeoutMs", mcp.Description("Navigation timeout in milliseconds")),
	), Wrap(rt, handleGoto))

	s.AddTool(mcp.NewTool("browser.reload",
		mcp.WithDescription("Reload the active or given page."),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
	), Wrap(rt, handleReload))

	s.AddTool(mcp.NewTool("browser.back",
		mcp.WithDescription("Navigate back in history."),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
	), Wrap(rt, handleBack))

	s.AddTool(mcp.NewTool("browser.forward",
		mcp.WithDescription("Navigate forward in history."),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
	), Wrap(rt, handleForward))

	s.AddTool(mcp.NewTool("browser.click",
		mcp.WithDescription("Click a cached element by elementId, or a live CSS selector."),
		mcp.WithString("elementId", mcp.Description("An elementId from a prior list call (take_snapshot uids are not accepted)")),
		mcp.WithString("selector", mcp.Description("A live CSS selector, if elementId is not given")),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
	), Wrap(rt, handleClick))

	s.AddTool(mcp.NewTool("browser.hover",
		mcp.WithDescription("Hover a cached element or live CSS selector."),
		mcp.WithString("elementId", mcp.Description("An elementId from a prior list call (take_snapshot uids are not accepted)")),
		mcp.WithString("selector", mcp.Description("A live CSS selector, if elementId is not given")),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
	), Wrap(rt, handleHover))

	s.AddTool(mcp.NewTool("browser.fill",
		mcp.WithDescription("Fill a text input or textarea."),
		mcp.WithString("elementId", mcp.Description("An elementId from a prior list call (take_snapshot uids are not accepted)")),
		mcp.WithString("selector", mcp.Description("A live CSS selector, if elementId is not given")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Text to type")),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
	), Wrap(rt, handleFill))

	s.AddTool(mcp.NewTool("browser.press",
		mcp.WithDescription("Press a named key (Enter, Tab, Escape, arrows, Backspace, Space)."),
		mcp.WithString("key", mcp.Required()),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
	), Wrap(rt, handlePress))

	s.AddTool(mcp.NewTool("browser.scroll_to",
		mcp.WithDescription("Scroll a cached element or selector into view."),
		mcp.WithString("elementId", mcp.Description("An elementId from a prior list call (take_snapshot uids are not accepted)")),
		mcp.WithString("selector", mcp.Description("A live CSS selector, if elementId is not given")),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
	), Wrap(rt, handleScrollTo))

	s.AddTool(mcp.NewTool("browser.list",
		mcp.WithDescription("List elements on the page, using the active capture profile's defaults."),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
		mcp.WithString("detail", mcp.Enum(capture.DetailLow, capture.DetailHigh), mcp.Description("Capture detail level")),
		mcp.WithBoolean("interactiveOnly", mcp.Description("Override: only interactive elements")),
		mcp.WithBoolean("visibleOnly", mcp.Description("Override: only visible elements")),
		mcp.WithBoolean("viewportOnly", mcp.Description("Override: only elements in the viewport")),
		mcp.WithNumber("maxItems", mcp.Description("Override: maximum items returned")),
	), Wrap(rt, handleList))

	s.AddTool(mcp.NewTool("browser.take_snapshot",
		mcp.WithDescription("Capture an accessibility-tree snapshot of the page."),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
		mcp.WithString("detail", mcp.Enum(capture.DetailLow, capture.DetailHigh)),
	), Wrap(rt, handleTakeSnapshot))

	s.AddTool(mcp.NewTool("browser.read_page",
		mcp.WithDescription("Extract the page's main article content as compact Markdown."),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
		mcp.WithString("detail", mcp.Enum(capture.DetailLow, capture.DetailHigh)),
	), Wrap(rt, handleReadPage))

	s.AddTool(mcp.NewTool("browser.visual_snapshot",
		mcp.WithDescription("Capture a screenshot of the page."),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
		mcp.WithString("detail", mcp.Enum(capture.DetailLow, capture.DetailHigh)),
		mcp.WithBoolean("fullPage", mcp.Description("Override: capture the full scrollable page")),
	), Wrap(rt, handleVisualSnapshot))

	s.AddTool(mcp.NewTool("browser.evaluate",
		mcp.WithDescription("Evaluate arbitrary JavaScript in the page (disabled by default; requires an origin allowlist)."),
		mcp.WithString("expression", mcp.Required()),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
		mcp.WithNumber("timeoutMs", mcp.Description("Execution time budget override")),
	), Wrap(rt, handleEvaluate))
}

func resolvePageFrame(rt *runtime.Runtime, args map[string]any) (int, string, error) {
	requested := argInt(args, "pageId", 0)
	pageID, err := rt.ResolvePage(requested)
	if err != nil {
		return 0, "", err
	}
	frameID := argString(args, "frameId", "")
	return pageID, frameID, nil
}

func handleGoto(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, _, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	url := argString(args, "url", "")
	if url == "" {
		return nil, pageID, "", fmt.Errorf("NOT_FOUND: url is required")
	}
	timeout := runtime.CallTimeout(argInt(args, "timeoutMs", 0), defaultCallTimeout)
	if err := rt.Driver.Navigate(ctx, pageID, url, timeout); err != nil {
		return nil, pageID, "", err
	}
	rt.Elements.InvalidatePage(pageID)
	return map[string]any{"status": "navigated"}, pageID, "", nil
}

func handleReload(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, _, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	if err := rt.Driver.Reload(ctx, pageID, defaultCallTimeout); err != nil {
		return nil, pageID, "", err
	}
	rt.Elements.InvalidatePage(pageID)
	return map[string]any{"status": "reloaded"}, pageID, "", nil
}

func handleBack(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, _, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	if err := rt.Driver.Back(ctx, pageID, defaultCallTimeout); err != nil {
		return nil, pageID, "", err
	}
	rt.Elements.InvalidatePage(pageID)
	return map[string]any{"status": "navigated_back"}, pageID, "", nil
}

func handleForward(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, _, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	if err := rt.Driver.Forward(ctx, pageID, defaultCallTimeout); err != nil {
		return nil, pageID, "", err
	}
	rt.Elements.InvalidatePage(pageID)
	return map[string]any{"status": "navigated_forward"}, pageID, "", nil
}

// resolveSelector turns either an explicit elementId or a raw selector
// argument into a live selector, validating a cached elementId's
// dom-version context first (§4.3) so a stale cache entry surfaces as
// STALE_REF rather than silently resolving to the wrong node.
func resolveSelector(rt *runtime.Runtime, pageID int, args map[string]any) (string, error) {
	if elementID := argString(args, "elementId", ""); elementID != "" {
		entry, ok := rt.Elements.Resolve(elementID)
		if !ok {
			return "", models.NotFound("element " + elementID)
		}
		if !rt.Tracker.MatchesContext(entry.Context) {
			return "", models.StaleRef("element " + elementID)
		}
		return entry.Selector, nil
	}
	if sel := argString(args, "selector", ""); sel != "" {
		return sel, nil
	}
	return "", fmt.Errorf("NOT_FOUND: elementId or selector is required")
}

func handleClick(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	sel, err := resolveSelector(rt, pageID, args)
	if err != nil {
		return nil, pageID, frameID, err
	}
	if err := rt.Driver.Click(ctx, pageID, frameID, sel); err != nil {
		return nil, pageID, frameID, err
	}
	rt.Elements.InvalidatePage(pageID)
	return map[string]any{"status": "clicked", "selector": sel}, pageID, frameID, nil
}

func handleHover(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	sel, err := resolveSelector(rt, pageID, args)
	if err != nil {
		return nil, pageID, frameID, err
	}
	if err := rt.Driver.Hover(ctx, pageID, frameID, sel); err != nil {
		return nil, pageID, frameID, err
	}
	return map[string]any{"status": "hovered", "selector": sel}, pageID, frameID, nil
}

func handleFill(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	sel, err := resolveSelector(rt, pageID, args)
	if err != nil {
		return nil, pageID, frameID, err
	}
	value := argString(args, "value", "")
	if err := rt.Driver.Fill(ctx, pageID, frameID, sel, value); err != nil {
		return nil, pageID, frameID, err
	}
	rt.Elements.InvalidatePage(pageID)
	return map[string]any{"status": "filled", "selector": sel}, pageID, frameID, nil
}

func handlePress(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	key := argString(args, "key", "")
	if err := rt.Driver.Press(ctx, pageID, frameID, key); err != nil {
		return nil, pageID, frameID, err
	}
	rt.Elements.InvalidatePage(pageID)
	return map[string]any{"status": "pressed", "key": key}, pageID, frameID, nil
}

func handleScrollTo(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	sel, err := resolveSelector(rt, pageID, args)
	if err != nil {
		return nil, pageID, frameID, err
	}
	if err := rt.Driver.ScrollTo(ctx, pageID, frameID, sel); err != nil {
		return nil, pageID, frameID, err
	}
	rt.Elements.InvalidatePage(pageID)
	return map[string]any{"status": "scrolled", "selector": sel}, pageID, frameID, nil
}

func handleList(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	detail := argString(args, "detail", capture.DetailLow)
	defaults := rt.Capture.Defaults("list", detail)

	interactiveOnly := argBool(args, "interactiveOnly", defaults["interactiveOnly"].(bool))
	visibleOnly := argBool(args, "visibleOnly", defaults["visibleOnly"].(bool))
	viewportOnly := argBool(args, "viewportOnly", defaults["viewportOnly"].(bool))
	maxItems := argInt(args, "maxItems", defaults["maxItems"].(int))

	elements, err := rt.Driver.ListElements(ctx, pageID, frameID, interactiveOnly, visibleOnly, viewportOnly, maxItems)
	if err != nil {
		return nil, pageID, frameID, err
	}

	ctxKey, ok := rt.Tracker.GetDomContext(pageID, frameID)
	items := make([]any, 0, len(elements))
	for _, el := range elements {
		item := map[string]any{
			"tag": el.Tag, "type": el.Type, "role": el.Role, "text": el.Text,
			"href": el.Href, "ariaLabel": el.AriaLabel, "visible": el.Visible, "inViewport": el.InViewport,
		}
		if ok {
			item["elementId"] = rt.Elements.Store(pageID, ctxKey, el.Selector)
		}
		if defaults["includeSelectors"] == true {
			item["selector"] = el.Selector
		}
		items = append(items, item)
	}
	return map[string]any{"items": items, "count": len(items)}, pageID, frameID, nil
}

func handleTakeSnapshot(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	detail := argString(args, "detail", capture.DetailLow)
	defaults := rt.Capture.Defaults("take_snapshot", detail)

	root, _, err := rt.Driver.AXTree(ctx, pageID, frameID, defaults["maxNodes"].(int), defaults["maxDepth"].(int))
	if err != nil {
		return nil, pageID, frameID, err
	}

	ctxKey, hasCtx := rt.Tracker.GetDomContext(pageID, frameID)
	var nodes []any
	var walkAX func(n driver.AXNode)
	walkAX = func(n driver.AXNode) {
		node := map[string]any{"role": n.Role, "name": n.Name}
		if hasCtx {
			node["uid"] = rt.Elements.StoreUID(pageID, ctxKey, n.NodeID, n.BackendNodeID)
		}
		nodes = append(nodes, node)
		for _, c := range n.Children {
			walkAX(c)
		}
	}
	walkAX(root)

	return map[string]any{"nodes": nodes, "count": len(nodes)}, pageID, frameID, nil
}

func handleReadPage(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	detail := argString(args, "detail", capture.DetailLow)
	defaults := rt.Capture.Defaults("read_page", detail)

	pages := rt.Pages.ListPages()
	var pageURL string
	for _, p := range pages {
		if p.PageID == pageID {
			pageURL = p.URL
		}
	}

	html, err := rt.Driver.HTML(ctx, pageID, frameID)
	if err != nil {
		return nil, pageID, frameID, err
	}
	result, err := readable.Distill(html, pageURL, defaults["maxChars"].(int))
	if err != nil {
		return nil, pageID, frameID, models.NewToolError(models.ErrCodeInternal, "failed to distill page content", err)
	}
	return map[string]any{
		"title": result.Title, "content": result.Content, "format": "markdown",
		"tokensEstimate": result.TokensEstimate, "rawTokensEstimate": result.RawTokensEstimate,
	}, pageID, frameID, nil
}

func handleVisualSnapshot(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	img, err := rt.Driver.Screenshot(ctx, pageID)
	if err != nil {
		return nil, pageID, frameID, err
	}
	return map[string]any{"imageBytes": len(img), "format": "png"}, pageID, frameID, nil
}

func handleEvaluate(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	pages := rt.Pages.ListPages()
	var origin string
	for _, p := range pages {
		if p.PageID == pageID {
			if u, err := url.Parse(p.URL); err == nil && u.Host != "" {
				origin = u.Scheme + "://" + u.Host
			}
		}
	}
	timeBudget, byteBudget, err := rt.Security.CheckEvaluate(origin)
	if err != nil {
		return nil, pageID, frameID, err
	}
	expr := argString(args, "expression", "")
	result, err := rt.Driver.EvalJS(ctx, pageID, frameID, origin, expr, timeBudget, byteBudget)
	if err != nil {
		return nil, pageID, frameID, err
	}
	return map[string]any{"result": result}, pageID, frameID, nil
}
