package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/navigator/internal/elemcache"
	"github.com/use-agent/navigator/internal/readable"
	"github.com/use-agent/navigator/internal/runtime"
	"github.com/use-agent/navigator/models"
)

// RegisterForms wires forms.google_* (audit/fill of Google-style web
// forms) and the jobs.*/search.* domain extractors, both built as thin
// compositions over the already-wired driver, netfetch probe, and
// readability distiller rather than bespoke scraping logic.
func RegisterForms(s *server.MCPServer, rt *runtime.Runtime) {
	s.AddTool(mcp.NewTool("forms.google_audit",
		mcp.WithDescription("Audit a Google Forms-style page: list questions, their input selectors, and whether they are required."),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
	), Wrap(rt, handleGoogleFormAudit))

	s.AddTool(mcp.NewTool("forms.google_fill",
		mcp.WithDescription("Fill a Google Forms-style page from a list of {selector, value} answers produced by forms.google_audit."),
		mcp.WithNumber("pageId", mcp.Description("Target page")),
		mcp.WithArray("answers", mcp.Required(), mcp.Description("[{selector, value}]")),
		mcp.WithBoolean("submit", mcp.Description("Click the submit control after filling")),
	), Wrap(rt, handleGoogleFormFill))

	s.AddTool(mcp.NewTool("jobs.search",
		mcp.WithDescription("Fetch a job-listing URL, distill it to a readable summary, and append it to a text digest file."),
		mcp.WithString("url", mcp.Required()),
		mcp.WithString("outputPath", mcp.Required(), mcp.Description("Digest file path under the write allowlist")),
	), Wrap(rt, handleJobsSearch))

	s.AddTool(mcp.NewTool("search.query",
		mcp.WithDescription("Fetch a search-result or article URL, distill it to a readable summary, and append it to a text digest file."),
		mcp.WithString("url", mcp.Required()),
		mcp.WithString("outputPath", mcp.Required(), mcp.Description("Digest file path under the write allowlist")),
	), Wrap(rt, handleSearchQuery))
}

// googleFormQuestionSelectors are the CSS shapes a Google Forms render
// settles into for each answer widget; listItem scoping keeps multiple
// questions of the same widget kind from colliding.
var googleFormQuestionSelectors = []string{
	`div[role="listitem"] input[type="text"]`,
	`div[role="listitem"] textarea`,
	`div[role="listitem"] div[role="radio"]`,
	`div[role="listitem"] div[role="checkbox"]`,
	`div[role="listitem"] div[role="listbox"]`,
}

func handleGoogleFormAudit(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	html, err := rt.Driver.HTML(ctx, pageID, frameID)
	if err != nil {
		return nil, pageID, "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, pageID, "", models.NewToolError(models.ErrCodeInternal, "failed to parse form markup", err)
	}

	questions := make([]any, 0)
	doc.Find(`div[role="listitem"]`).Each(func(i int, item *goquery.Selection) {
		label := strings.TrimSpace(item.Find(`div[role="heading"]`).First().Text())
		if label == "" {
			label = strings.TrimSpace(item.Find("span").First().Text())
		}
		required := item.Find(`span[aria-label="Required question"]`).Length() > 0

		kind, selector := classifyGoogleFormWidget(item)
		if selector == "" {
			return
		}
		questions = append(questions, map[string]any{
			"index":    i,
			"label":    label,
			"kind":     kind,
			"selector": selector,
			"required": required,
		})
	})

	return map[string]any{"questions": questions, "count": len(questions)}, pageID, frameID, nil
}

// classifyGoogleFormWidget inspects one listitem's descendants against
// googleFormQuestionSelectors in priority order and returns a selector
// scoped to that listitem's position so forms.google_fill can re-resolve
// it without caching an elementId across the audit/fill call boundary.
func classifyGoogleFormWidget(item *goquery.Selection) (kind, selector string) {
	for idx, sel := range googleFormQuestionSelectors {
		if item.Find(sel).Length() == 0 {
			continue
		}
		ok, err := elemcache.ValidateSelector(renderOuterHTML(item), sel)
		if err != nil || !ok {
			continue
		}
		switch idx {
		case 0:
			return "text", sel
		case 1:
			return "paragraph", sel
		case 2:
			return "radio", sel
		case 3:
			return "checkbox", sel
		case 4:
			return "dropdown", sel
		}
	}
	return "", ""
}

func renderOuterHTML(s *goquery.Selection) string {
	html, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return html
}

func handleGoogleFormFill(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	pageID, frameID, err := resolvePageFrame(rt, args)
	if err != nil {
		return nil, 0, "", err
	}
	rawAnswers, _ := args["answers"].([]any)
	filled := 0
	for _, raw := range rawAnswers {
		answer, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		selector, _ := answer["selector"].(string)
		value, _ := answer["value"].(string)
		if selector == "" {
			continue
		}
		if err := rt.Driver.Fill(ctx, pageID, frameID, selector, value); err != nil {
			return nil, pageID, frameID, err
		}
		filled++
	}

	if argBool(args, "submit", false) {
		if err := rt.Driver.Click(ctx, pageID, frameID, `div[role="button"][jsname]`); err != nil {
			return nil, pageID, frameID, err
		}
	}

	return map[string]any{"status": "filled", "filled": filled}, pageID, frameID, nil
}

// handleJobsSearch and handleSearchQuery share one fetch-distill-append
// pipeline: an HTTP-first probe through netfetch, falling back to the
// already-open browser when the plain request is blocked or empty, then
// readability distillation and an appended digest record in the §6 file
// format. They differ only in tool identity, not behavior.
func handleJobsSearch(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	return runExtractor(ctx, rt, args)
}

func handleSearchQuery(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	return runExtractor(ctx, rt, args)
}

func runExtractor(ctx context.Context, rt *runtime.Runtime, args map[string]any) (map[string]any, int, string, error) {
	url := argString(args, "url", "")
	outputPath := argString(args, "outputPath", "")
	if url == "" || outputPath == "" {
		return nil, 0, "", fmt.Errorf("NOT_FOUND: url and outputPath are required")
	}
	resolved, err := rt.Security.CheckWrite(outputPath)
	if err != nil {
		return nil, 0, "", err
	}

	html, pageID, err := fetchForExtraction(ctx, rt, url)
	if err != nil {
		return nil, pageID, "", err
	}

	maxChars := rt.Cfg.Capture.MaxResponseBytes / 4
	result, err := readable.Distill(html, url, maxChars)
	if err != nil {
		return nil, pageID, "", models.NewToolError(models.ErrCodeInternal, "failed to distill page content", err)
	}

	record := formatExtractorRecord(result.Title, url, result.Content)
	if err := appendExtractorRecord(resolved, record); err != nil {
		return nil, pageID, "", models.NewToolError(models.ErrCodeInternal, "failed to write digest record", err)
	}

	return map[string]any{
		"status":   "recorded",
		"title":    result.Title,
		"url":      url,
		"savedPath": resolved,
	}, pageID, "", nil
}

// fetchForExtraction tries the HTTP-first probe (cheap, no browser
// round-trip) and only falls back to the real browser, navigating the
// active page itself to url, when the probe comes back empty or
// failing — mirroring the "remember what worked last" staged-engine
// idiom without the bookkeeping, since the digest tools are one-shot.
func fetchForExtraction(ctx context.Context, rt *runtime.Runtime, url string) (string, int, error) {
	if status, body, err := rt.Fetch.Fetch(ctx, url); err == nil && status < 400 && len(body) > 0 {
		return string(body), 0, nil
	}

	pageID, err := rt.ResolvePage(0)
	if err != nil {
		return "", 0, err
	}
	if err := rt.Driver.Navigate(ctx, pageID, url, defaultCallTimeout); err != nil {
		return "", pageID, err
	}
	html, err := rt.Driver.HTML(ctx, pageID, "")
	if err != nil {
		return "", pageID, err
	}
	return html, pageID, nil
}

func formatExtractorRecord(title, url, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "URL: %s\n", url)
	fmt.Fprintf(&b, "Summary: %s\n\n", summary)
	return b.String()
}

func appendExtractorRecord(path, record string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(record)
	return err
}
