package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/orisano/pixelmatch"
	"github.com/ysmood/gson"
	"github.com/use-agent/navigator/config"
)

// RodDriver is the go-rod-backed Driver implementation. It owns the
// browser process/connection, a registry of open pages keyed by a stable
// pageId (never a raw *rod.Page held by any caller outside this file), and
// one event-listener goroutine per page attached idempotently on first use.
//
// Lifecycle mirrors the teacher's scraper.Scraper: launch (or attach),
// connect, and a Close that drains everything on shutdown.
type RodDriver struct {
	cfg     config.BrowserConfig
	browser *rod.Browser

	mu        sync.Mutex
	pages     map[int]*rod.Page
	nextPage  int
	attached  map[int]bool // pages with an event listener already installed
	closed    map[int]bool

	downloadDir string
	downloadsMu sync.Mutex
	downloadDone map[string]bool

	events chan Event
	logger *slog.Logger
}

// NewRodDriver launches (or attaches to) a browser per cfg and returns a
// ready Driver. Stealth flags mirror the teacher's launcher setup.
func NewRodDriver(cfg config.BrowserConfig, logger *slog.Logger) (*RodDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var controlURL string
	var err error

	switch {
	case cfg.CDPEndpoint != "":
		controlURL = cfg.CDPEndpoint
	case cfg.ForceCDP:
		return nil, errors.New("forceCdp set but no cdpEndpoint provided")
	default:
		l := launcher.New().Headless(cfg.Headless)
		if cfg.ExecutablePath != "" {
			l = l.Bin(cfg.ExecutablePath)
		}
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(normalizeProfileDir(cfg.UserDataDir, cfg.ProfileDirectory))
		} else if cfg.RequireProfile {
			return nil, errors.New("requireProfile set but no userDataDir configured")
		}

		// Reduce automation fingerprints regardless of the stealth flag;
		// stealth.JS (injected per-page below) handles the rest.
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-popup-blocking"))
		l.Set(flags.Flag("disable-prompt-on-repost"))
		l.Set(flags.Flag("no-first-run"))

		controlURL, err = l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	downloadDir, err := os.MkdirTemp("", "navigator-downloads-")
	if err != nil {
		return nil, fmt.Errorf("create download staging dir: %w", err)
	}
	if err := (proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllowAndName,
		DownloadPath:  downloadDir,
		EventsEnabled: true,
	}).Call(browser); err != nil {
		return nil, fmt.Errorf("enable download staging: %w", err)
	}

	d := &RodDriver{
		cfg:          cfg,
		browser:      browser,
		pages:        make(map[int]*rod.Page),
		attached:     make(map[int]bool),
		closed:       make(map[int]bool),
		downloadDir:  downloadDir,
		downloadDone: make(map[string]bool),
		events:       make(chan Event, 256),
		logger:       logger,
	}

	if existing, err := browser.Pages(); err == nil {
		for _, p := range existing {
			id := d.registerPage(p)
			d.ensureListeners(id, p)
		}
	}

	go d.watchTargets()

	return d, nil
}

func normalizeProfileDir(userDataDir, profileDirectory string) string {
	if profileDirectory == "" {
		return userDataDir
	}
	return userDataDir + string('/') + profileDirectory
}

func (d *RodDriver) Events() <-chan Event { return d.events }

// AttachContext resets the page registry. A fresh generation tag is the
// page manager's responsibility (§3.1); the driver's job here is only to
// forget its own page bookkeeping so ids are not silently reused across
// an attach/detach cycle.
func (d *RodDriver) AttachContext(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages = make(map[int]*rod.Page)
	d.attached = make(map[int]bool)
	d.closed = make(map[int]bool)
	d.nextPage = 0
	return nil
}

func (d *RodDriver) Pages(ctx context.Context) ([]PageInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]PageInfo, 0, len(d.pages))
	for id, p := range d.pages {
		info, err := p.Info()
		if err != nil {
			out = append(out, PageInfo{PageID: id, Closed: true})
			continue
		}
		out = append(out, PageInfo{PageID: id, URL: info.URL, Title: info.Title, Closed: d.closed[id]})
	}
	return out, nil
}

func (d *RodDriver) ClosePage(ctx context.Context, pageID int) error {
	d.mu.Lock()
	p, ok := d.pages[pageID]
	if ok {
		d.closed[pageID] = true
	}
	d.mu.Unlock()
	if !ok {
		return NotFoundErr("page")
	}
	return p.Close()
}

// watchTargets registers newly created pages/targets (including popups)
// as they appear, tagging each with a stable pageId and idempotently
// installing its per-page event listener.
func (d *RodDriver) watchTargets() {
	d.browser.EachEvent(func(e *proto.TargetTargetCreated) {
		if e.TargetInfo.Type != proto.TargetTargetInfoTypePage {
			return
		}
		page, err := d.browser.PageFromTarget(e.TargetInfo.TargetID)
		if err != nil {
			d.logger.Warn("attach new page target failed", "error", err)
			return
		}
		if d.cfg.Stealth {
			if js, err := stealth.JS(); err == nil {
				_, _ = page.EvalOnNewDocument(js)
			} else {
				d.logger.Warn("stealth script unavailable", "error", err)
			}
		}
		pageID := d.registerPage(page)
		d.ensureListeners(pageID, page)
		d.events <- Event{Kind: EventPageOpened, PageID: pageID}
	})()
}

func (d *RodDriver) registerPage(p *rod.Page) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextPage++
	id := d.nextPage
	d.pages[id] = p
	return id
}

func (d *RodDriver) page(pageID int) (*rod.Page, error) {
	d.mu.Lock()
	p, ok := d.pages[pageID]
	closed := d.closed[pageID]
	d.mu.Unlock()
	if !ok {
		return nil, NotFoundErr("page")
	}
	if closed {
		return nil, NavigationErr("page is closed")
	}
	return p, nil
}

// ensureListeners attaches one set of per-page listeners, idempotently,
// covering dialogs, downloads, console, and network (§4.7). It is safe to
// call multiple times for the same pageID; only the first call installs.
func (d *RodDriver) ensureListeners(pageID int, p *rod.Page) {
	d.mu.Lock()
	if d.attached[pageID] {
		d.mu.Unlock()
		return
	}
	d.attached[pageID] = true
	d.mu.Unlock()

	go p.EachEvent(
		func(e *proto.PageJavascriptDialogOpening) {
			d.events <- Event{
				Kind: EventDialog, PageID: pageID,
				DialogType: string(e.Type), DialogMessage: e.Message, DialogDefault: e.DefaultPrompt,
			}
		},
		func(e *proto.PageFrameAttached) {
			d.events <- Event{
				Kind: EventFrameAttached, PageID: pageID,
				FrameID: string(e.FrameID), ParentFrameID: string(e.ParentFrameID),
			}
		},
		func(e *proto.PageFrameNavigated) {
			d.events <- Event{
				Kind: EventFrameNavigated, PageID: pageID,
				FrameID: string(e.Frame.ID), ParentFrameID: string(e.Frame.ParentID),
				IsMain: e.Frame.ParentID == "", FrameName: e.Frame.Name, FrameURL: e.Frame.URL,
			}
		},
		func(e *proto.PageFrameDetached) {
			d.events <- Event{Kind: EventFrameDetached, PageID: pageID, FrameID: string(e.FrameID)}
		},
		func(e *proto.PageDownloadWillBegin) {
			d.events <- Event{
				Kind: EventDownload, PageID: pageID,
				DownloadID: e.GUID, SuggestedFilename: e.SuggestedFilename, DownloadURL: e.URL,
			}
		},
		func(e *proto.PageDownloadProgress) {
			if e.State == proto.PageDownloadProgressStateCompleted {
				d.markDownloadComplete(e.GUID)
			}
		},
		func(e *proto.RuntimeConsoleAPICalled) {
			text := ""
			if len(e.Args) > 0 {
				text = e.Args[0].Description
			}
			d.events <- Event{Kind: EventConsole, PageID: pageID, ConsoleLevel: string(e.Type), ConsoleText: text}
		},
		func(e *proto.RuntimeExceptionThrown) {
			d.events <- Event{
				Kind: EventConsole, PageID: pageID, ConsoleLevel: "exception",
				ConsoleText: e.ExceptionDetails.Text, ConsoleLine: e.ExceptionDetails.LineNumber,
			}
		},
		func(e *proto.NetworkRequestWillBeSent) {
			d.events <- Event{
				Kind: EventNetwork, PageID: pageID, NetworkRequestID: string(e.RequestID),
				NetworkMethod: e.Request.Method, NetworkURL: e.Request.URL,
			}
		},
		func(e *proto.NetworkResponseReceived) {
			d.events <- Event{
				Kind: EventNetwork, PageID: pageID, NetworkRequestID: string(e.RequestID),
				NetworkURL: e.Response.URL, NetworkStatus: e.Response.Status,
			}
		},
		func(e *proto.NetworkLoadingFinished) {
			d.events <- Event{Kind: EventNetwork, PageID: pageID, NetworkRequestID: string(e.RequestID), NetworkFinished: true}
		},
		func(e *proto.NetworkLoadingFailed) {
			d.events <- Event{
				Kind: EventNetwork, PageID: pageID, NetworkRequestID: string(e.RequestID),
				NetworkFailed: true, NetworkReason: e.ErrorText,
			}
		},
	)()

	_ = proto.RuntimeEnable{}.Call(p)
	_ = proto.NetworkEnable{}.Call(p)
	_ = proto.PageEnable{}.Call(p)

	if len(d.cfg.ExtraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(d.cfg.ExtraHeaders)}.Call(p)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func (d *RodDriver) frameOrRoot(p *rod.Page, frameID string) *rod.Page {
	if frameID == "" || frameID == "main" {
		return p
	}
	if f, err := p.Frame(proto.PageFrameID(frameID)); err == nil {
		return f
	}
	return p
}

func (d *RodDriver) Navigate(ctx context.Context, pageID int, url string, timeout time.Duration) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	bound := p.Context(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		bound = p.Context(tctx)
	}
	if err := bound.Navigate(url); err != nil {
		return categorize(err, "navigation failed")
	}
	_ = bound.WaitDOMStable(300*time.Millisecond, 0.1)
	return nil
}

func (d *RodDriver) Reload(ctx context.Context, pageID int, timeout time.Duration) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	if err := p.Context(ctx).Reload(); err != nil {
		return categorize(err, "reload failed")
	}
	return nil
}

func (d *RodDriver) Back(ctx context.Context, pageID int, timeout time.Duration) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	if err := p.Context(ctx).NavigateBack(); err != nil {
		return categorize(err, "back navigation failed")
	}
	return nil
}

func (d *RodDriver) Forward(ctx context.Context, pageID int, timeout time.Duration) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	if err := p.Context(ctx).NavigateForward(); err != nil {
		return categorize(err, "forward navigation failed")
	}
	return nil
}

func (d *RodDriver) Click(ctx context.Context, pageID int, frameID, selector string) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	f := d.frameOrRoot(p.Context(ctx), frameID)
	el, err := f.Element(selector)
	if err != nil {
		return NotFoundErr("element")
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorize(err, "click failed")
	}
	return nil
}

func (d *RodDriver) Hover(ctx context.Context, pageID int, frameID, selector string) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	f := d.frameOrRoot(p.Context(ctx), frameID)
	el, err := f.Element(selector)
	if err != nil {
		return NotFoundErr("element")
	}
	if err := el.Hover(); err != nil {
		return categorize(err, "hover failed")
	}
	return nil
}

func (d *RodDriver) Fill(ctx context.Context, pageID int, frameID, selector, value string) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	f := d.frameOrRoot(p.Context(ctx), frameID)
	el, err := f.Element(selector)
	if err != nil {
		return NotFoundErr("element")
	}
	if err := el.SelectAllText(); err != nil {
		return categorize(err, "fill failed")
	}
	if err := el.Input(value); err != nil {
		return categorize(err, "fill failed")
	}
	return nil
}

func (d *RodDriver) Press(ctx context.Context, pageID int, frameID, key string) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	k, ok := keyByName[key]
	if !ok {
		return NotFoundErr("key " + key)
	}
	if err := p.Context(ctx).Keyboard.Press(k); err != nil {
		return categorize(err, "key press failed")
	}
	return nil
}

func (d *RodDriver) ScrollTo(ctx context.Context, pageID int, frameID, selector string) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	f := d.frameOrRoot(p.Context(ctx), frameID)
	el, err := f.Element(selector)
	if err != nil {
		return NotFoundErr("element")
	}
	if err := el.ScrollIntoView(); err != nil {
		return categorize(err, "scroll failed")
	}
	return nil
}

func (d *RodDriver) ListElements(ctx context.Context, pageID int, frameID string, interactiveOnly, visibleOnly, viewportOnly bool, maxItems int) ([]ElementInfo, error) {
	p, err := d.page(pageID)
	if err != nil {
		return nil, err
	}
	f := d.frameOrRoot(p.Context(ctx), frameID)

	sel := "a, button, input, select, textarea, [role], [onclick]"
	if !interactiveOnly {
		sel = "*"
	}
	els, err := f.Elements(sel)
	if err != nil {
		return nil, categorize(err, "list elements failed")
	}

	out := make([]ElementInfo, 0, min(len(els), maxItems))
	for _, el := range els {
		if len(out) >= maxItems {
			break
		}
		visible, _ := el.Visible()
		if visibleOnly && !visible {
			continue
		}
		shape, _ := el.Shape()
		inViewport := !viewportOnly || (shape != nil && len(shape.Quads) > 0)
		if viewportOnly && !inViewport {
			continue
		}
		tag, _ := el.Eval(`() => this.tagName.toLowerCase()`)
		text, _ := el.Eval(`() => (this.innerText || this.value || '').slice(0, 200)`)
		href, _ := el.Eval(`() => this.getAttribute('href') || ''`)
		aria, _ := el.Eval(`() => this.getAttribute('aria-label') || ''`)
		role, _ := el.Eval(`() => this.getAttribute('role') || ''`)
		typ, _ := el.Eval(`() => this.getAttribute('type') || ''`)

		out = append(out, ElementInfo{
			Selector:   uniqueSelector(tag.Value.Str(), len(out)),
			Tag:        tag.Value.Str(),
			Type:       typ.Value.Str(),
			Role:       role.Value.Str(),
			Text:       text.Value.Str(),
			Href:       href.Value.Str(),
			AriaLabel:  aria.Value.Str(),
			Visible:    visible,
			InViewport: inViewport,
		})
	}
	return out, nil
}

// uniqueSelector is a placeholder selector-plan: in the absence of a
// stable id/data-testid the driver falls back to an nth-of-type style
// selector computed at capture time. Re-resolution (C3) treats any
// mismatch as STALE_REF rather than trusting this blindly.
func uniqueSelector(tag string, index int) string {
	if tag == "" {
		tag = "*"
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", tag, index+1)
}

func (d *RodDriver) AXTree(ctx context.Context, pageID int, frameID string, maxNodes, maxDepth int) (AXNode, map[int64]string, error) {
	p, err := d.page(pageID)
	if err != nil {
		return AXNode{}, nil, err
	}
	result, err := proto.AccessibilityGetFullAXTree{}.Call(p.Context(ctx))
	if err != nil {
		return AXNode{}, nil, categorize(err, "accessibility tree capture failed")
	}

	byID := map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode{}
	for _, n := range result.Nodes {
		n := n
		byID[n.NodeID] = n
	}

	uidToBackend := make(map[int64]string)
	var seq int64
	var build func(id proto.AccessibilityAXNodeID, depth int) AXNode
	build = func(id proto.AccessibilityAXNodeID, depth int) AXNode {
		n, ok := byID[id]
		if !ok || depth > maxDepth || int(seq) >= maxNodes {
			return AXNode{}
		}
		seq++
		role, name := "", ""
		if n.Role != nil {
			role = n.Role.Value.Str()
		}
		if n.Name != nil {
			name = n.Name.Value.Str()
		}
		backend := int64(n.BackendDOMNodeID)
		nodeID := string(n.NodeID)
		uidToBackend[seq] = fmt.Sprintf("%d", backend)

		out := AXNode{NodeID: nodeID, BackendNodeID: backend, Role: role, Name: name}
		for _, c := range n.ChildIDs {
			if int(seq) >= maxNodes {
				break
			}
			out.Children = append(out.Children, build(c, depth+1))
		}
		return out
	}

	var root AXNode
	for _, n := range result.Nodes {
		if n.ParentID == "" {
			root = build(n.NodeID, 0)
			break
		}
	}
	_ = frameID // CDP's full AX tree is page-scoped; OOPIFs are out of scope for this driver.
	return root, nil, nil
}

func (d *RodDriver) ResolveBackendNode(ctx context.Context, pageID int, frameID string, backendNodeID int64) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	_, err = proto.DOMDescribeNode{BackendNodeID: proto.DOMBackendNodeID(backendNodeID)}.Call(p.Context(ctx))
	if err != nil {
		return NotFoundErr("backend node")
	}
	return nil
}

func (d *RodDriver) HTML(ctx context.Context, pageID int, frameID string) (string, error) {
	p, err := d.page(pageID)
	if err != nil {
		return "", err
	}
	f := d.frameOrRoot(p.Context(ctx), frameID)
	html, err := f.HTML()
	if err != nil {
		return "", categorize(err, "html extraction failed")
	}
	return html, nil
}

func (d *RodDriver) InnerText(ctx context.Context, pageID int, frameID string) (string, error) {
	p, err := d.page(pageID)
	if err != nil {
		return "", err
	}
	f := d.frameOrRoot(p.Context(ctx), frameID)
	res, err := f.Eval(`() => document.body ? document.body.innerText : ''`)
	if err != nil {
		return "", categorize(err, "inner text extraction failed")
	}
	return res.Value.Str(), nil
}

func (d *RodDriver) Screenshot(ctx context.Context, pageID int) ([]byte, error) {
	p, err := d.page(pageID)
	if err != nil {
		return nil, err
	}
	data, err := p.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return nil, categorize(err, "screenshot failed")
	}
	return data, nil
}

// VisuallyStable takes two screenshots `interval` apart and reports
// whether the mismatched-pixel fraction between them is below threshold
// (§4.7 "Visual stability"), grounded on orisano/pixelmatch.
func (d *RodDriver) VisuallyStable(ctx context.Context, pageID int, interval time.Duration, threshold float64) (bool, error) {
	first, err := d.Screenshot(ctx, pageID)
	if err != nil {
		return false, err
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(interval):
	}
	second, err := d.Screenshot(ctx, pageID)
	if err != nil {
		return false, err
	}
	img1, err := png.Decode(bytes.NewReader(first))
	if err != nil {
		return false, fmt.Errorf("decode screenshot: %w", err)
	}
	img2, err := png.Decode(bytes.NewReader(second))
	if err != nil {
		return false, fmt.Errorf("decode screenshot: %w", err)
	}
	if img1.Bounds() != img2.Bounds() {
		return false, nil
	}
	diff := image.NewRGBA(img1.Bounds())
	mismatched, err := pixelmatch.MatchPixel(img1, img2, diff, &pixelmatch.Options{Threshold: 0.1})
	if err != nil {
		return false, err
	}
	total := img1.Bounds().Dx() * img1.Bounds().Dy()
	if total == 0 {
		return true, nil
	}
	return float64(mismatched)/float64(total) < threshold, nil
}

func (d *RodDriver) EvalJS(ctx context.Context, pageID int, frameID, origin, expr string, timeout time.Duration, maxBytes int) (string, error) {
	p, err := d.page(pageID)
	if err != nil {
		return "", err
	}
	f := d.frameOrRoot(p.Context(ctx), frameID)

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := f.Context(tctx).Eval(expr)
	if err != nil {
		return "", categorize(err, "evaluate failed")
	}
	out := res.Value.Raw()
	s := fmt.Sprintf("%v", out)
	if len(s) > maxBytes {
		return "", fmt.Errorf("PERMISSION: evaluate result of %d bytes exceeds the %d-byte output budget", len(s), maxBytes)
	}
	return s, nil
}

func (d *RodDriver) HandleDialog(ctx context.Context, pageID int, action DialogAction, promptText string) error {
	p, err := d.page(pageID)
	if err != nil {
		return err
	}
	accept := action == DialogAccept
	err = proto.PageHandleJavaScriptDialog{Accept: accept, PromptText: promptText}.Call(p.Context(ctx))
	if err != nil {
		return categorize(err, "dialog handling failed")
	}
	return nil
}

func (d *RodDriver) markDownloadComplete(guid string) {
	d.downloadsMu.Lock()
	defer d.downloadsMu.Unlock()
	d.downloadDone[guid] = true
}

// DownloadBytes polls for the staging file named by the CDP-assigned guid
// (Browser.setDownloadBehavior's allowAndName behavior names the file
// after the guid) until Page.downloadProgress reports it complete, then
// reads it whole. Staged files are never removed by the driver; the
// write allowlist controls where save_download actually persists them.
func (d *RodDriver) DownloadBytes(ctx context.Context, downloadID string) ([]byte, error) {
	path := filepath.Join(d.downloadDir, downloadID)
	for {
		d.downloadsMu.Lock()
		done := d.downloadDone[downloadID]
		d.downloadsMu.Unlock()
		if done {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, categorize(err, "read staged download failed")
			}
			return data, nil
		}
		select {
		case <-ctx.Done():
			return nil, categorize(ctx.Err(), "wait for download bytes canceled")
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (d *RodDriver) ExportStorageState(ctx context.Context) (*StorageState, error) {
	d.mu.Lock()
	var anyPage *rod.Page
	for _, p := range d.pages {
		anyPage = p
		break
	}
	d.mu.Unlock()
	if anyPage == nil {
		return &StorageState{Origins: map[string]map[string]string{}}, nil
	}

	cookies, err := anyPage.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, categorize(err, "cookie export failed")
	}
	out := &StorageState{Origins: map[string]map[string]string{}}
	for _, c := range cookies {
		out.Cookies = append(out.Cookies, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	return out, nil
}

func (d *RodDriver) ImportStorageState(ctx context.Context, state *StorageState) error {
	d.mu.Lock()
	var anyPage *rod.Page
	for _, p := range d.pages {
		anyPage = p
		break
	}
	d.mu.Unlock()
	if anyPage == nil {
		return errors.New("no page available to import storage state into")
	}
	for _, c := range state.Cookies {
		_, err := proto.NetworkSetCookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path}.Call(anyPage.Context(ctx))
		if err != nil {
			return categorize(err, "cookie import failed")
		}
	}
	return nil
}

func (d *RodDriver) Close() error {
	close(d.events)
	d.browser.MustClose()
	return nil
}

// categorize wraps raw rod/CDP errors into the closed error taxonomy the
// envelope middleware (C6) recognizes, mirroring scraper/page.go's
// categorizeError.
func categorize(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("TIMEOUT: %s: %w", msg, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("TIMEOUT: request canceled: %w", err)
	}
	return fmt.Errorf("NAVIGATION: %s: %w", msg, err)
}

// NotFoundErr and NavigationErr build plain errors carrying a code prefix
// that the envelope middleware's classifier matches, so this package does
// not depend on the models package.
func NotFoundErr(what string) error  { return fmt.Errorf("NOT_FOUND: %s", what) }
func NavigationErr(msg string) error { return fmt.Errorf("NAVIGATION: %s", msg) }

var keyByName = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"ArrowDown":  input.ArrowDown,
	"ArrowUp":    input.ArrowUp,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Backspace":  input.Backspace,
	"Space":      input.Space,
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
