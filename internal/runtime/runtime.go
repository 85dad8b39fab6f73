// Package runtime wires the tool-runtime core components together: it
// owns the driver's event-dispatch loop and exposes the single object
// every tools/ handler calls into.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/navigator/config"
	"github.com/use-agent/navigator/internal/capture"
	"github.com/use-agent/navigator/internal/driver"
	"github.com/use-agent/navigator/internal/elemcache"
	"github.com/use-agent/navigator/internal/envelope"
	"github.com/use-agent/navigator/internal/events"
	"github.com/use-agent/navigator/internal/domtrack"
	"github.com/use-agent/navigator/internal/netfetch"
	"github.com/use-agent/navigator/internal/pagemgr"
	"github.com/use-agent/navigator/internal/security"
	"github.com/use-agent/navigator/models"
)

// Runtime is the shared context every tool handler closes over.
type Runtime struct {
	Cfg      config.Config
	Driver   driver.Driver
	Tracker  *domtrack.Tracker
	Pages    *pagemgr.Manager
	Elements *elemcache.Cache
	Capture  *capture.Registry
	Events   *events.Plane
	Security *security.Gate
	Fetch    *netfetch.Client
	IDGen    *envelope.IDGenerator
	Governor *envelope.Governor
	Logger   *slog.Logger
}

// New assembles a Runtime from config and an already-constructed
// driver, and starts the single event-dispatch goroutine that keeps
// Tracker/Pages/Events/Elements in sync with the browser.
func New(cfg config.Config, drv driver.Driver, logger *slog.Logger) (*Runtime, error) {
	gate, err := security.New(
		cfg.Security.ReadAllowlist, cfg.Security.WriteAllowlist,
		cfg.Security.AllowEvaluate, cfg.Security.EvaluateAllowOrigins,
		cfg.Security.EvalTimeBudget, cfg.Security.EvalByteBudget,
	)
	if err != nil {
		return nil, fmt.Errorf("build security gate: %w", err)
	}

	rt := &Runtime{
		Cfg:      cfg,
		Driver:   drv,
		Tracker:  domtrack.New(),
		Pages:    pagemgr.New(),
		Elements: elemcache.New(),
		Capture:  capture.NewRegistry(),
		Events: events.New(events.Capacities{
			Console: cfg.Events.ConsoleCapacity, Network: cfg.Events.NetworkCapacity,
			Dialog: cfg.Events.DialogCapacity, Download: cfg.Events.DownloadCapacity,
			Popup: cfg.Events.PopupCapacity,
		}),
		Security: gate,
		Fetch:    netfetch.New(cfg.Extractor.HTTPTimeout),
		IDGen:    envelope.NewIDGenerator(),
		Governor: envelope.NewGovernor(cfg.Envelope.CallsPerSecond, cfg.Envelope.CallBurst),
		Logger:   logger,
	}
	if err := rt.Capture.SetActive(cfg.Capture.DefaultProfile); err != nil {
		return nil, err
	}

	go rt.dispatchEvents()
	return rt, nil
}

// dispatchEvents is the single goroutine translating driver.Event values
// into updates on Tracker/Pages/Elements/Events — the one place true
// concurrency exists outside the tool-call runner itself (§5).
func (rt *Runtime) dispatchEvents() {
	for ev := range rt.Driver.Events() {
		gen := rt.Pages.Generation()
		switch ev.Kind {
		case driver.EventPageOpened:
			rt.Tracker.PageOpened(ev.PageID)
			rt.Pages.PageOpened(ev.PageID, "", "")
		case driver.EventPageClosed:
			rt.Tracker.PageClosed(ev.PageID)
			rt.Pages.PageClosed(ev.PageID)
			rt.Elements.InvalidatePage(ev.PageID)
		case driver.EventFrameAttached:
			rt.Tracker.FrameAttached(ev.PageID, ev.FrameID, ev.ParentFrameID)
		case driver.EventFrameNavigated:
			rt.Tracker.FrameNavigated(ev.PageID, ev.FrameID, ev.ParentFrameID, ev.IsMain, ev.FrameName, ev.FrameURL)
			if ev.IsMain {
				rt.Pages.PageNavigated(ev.PageID, ev.FrameURL, ev.FrameName)
			}
			// A navigation invalidates every cached selector/uid for the
			// page, even in a subframe: elementIds minted against the old
			// document are never valid against the new one.
			rt.Elements.InvalidatePage(ev.PageID)
		case driver.EventFrameDetached:
			rt.Tracker.FrameDetached(ev.PageID, ev.FrameID)
			rt.Elements.InvalidatePage(ev.PageID)
		case driver.EventDialog:
			rt.Events.DialogOpened(ev.PageID, gen, ev.DialogType, ev.DialogMessage, ev.DialogDefault)
		case driver.EventDownload:
			rt.Events.DownloadStarted(ev.PageID, gen, ev.DownloadID, ev.SuggestedFilename, ev.DownloadURL)
		case driver.EventPopup:
			rt.Pages.PageOpened(ev.PopupNewPage, ev.PopupURL, "")
			rt.Tracker.PageOpened(ev.PopupNewPage)
			rt.Events.PopupOpened(gen, ev.PopupOpenerPage, ev.PopupNewPage, ev.PopupURL)
		case driver.EventConsole:
			rt.Events.ConsoleMessage(ev.PageID, gen, ev.ConsoleLevel, ev.ConsoleText, ev.ConsoleURL, ev.ConsoleLine)
		case driver.EventNetwork:
			rt.dispatchNetwork(ev, gen)
		}
	}
}

func (rt *Runtime) dispatchNetwork(ev driver.Event, gen string) {
	switch {
	case ev.NetworkFailed:
		rt.Events.NetworkFailed(ev.NetworkRequestID, ev.NetworkReason)
	case ev.NetworkFinished:
		rt.Events.NetworkFinished(ev.NetworkRequestID)
	case ev.NetworkStatus != 0:
		rt.Events.NetworkResponse(ev.NetworkRequestID, ev.NetworkStatus)
	default:
		rt.Events.NetworkRequest(ev.PageID, gen, ev.NetworkRequestID, ev.NetworkMethod, ev.NetworkURL)
	}
}

// PageContext builds the envelope identity snapshot for pageID, falling
// back to a closed/empty context if the page is unknown.
func (rt *Runtime) PageContext(pageID int, frameID string) models.PageContext {
	ctx, ok := rt.Tracker.GetDomContext(pageID, frameID)
	if !ok {
		return models.PageContext{Closed: true}
	}
	frame, _ := rt.Tracker.GetFrameByID(pageID, ctx.FrameID)
	var url, title string
	for _, p := range rt.Pages.ListPages() {
		if p.PageID == pageID {
			url, title = p.URL, p.Title
		}
	}
	_ = frame
	return models.PageContext{
		PageID: pageID, URL: url, Title: title,
		DomVersion: ctx.String(), ActiveFrameID: ctx.FrameID,
	}
}

// ResolvePage resolves an optional requested page id to the active page,
// returning a NOT_FOUND ToolError if neither refers to an open page.
func (rt *Runtime) ResolvePage(requested int) (int, error) {
	id, ok := rt.Pages.ResolvePageID(requested)
	if !ok {
		return 0, models.NotFound("page")
	}
	return id, nil
}

// CallTimeout returns def when no timeout is requested, else the requested
// value capped at 300s (§5); short requests are not raised to a minimum.
func CallTimeout(requestedMs int, def time.Duration) time.Duration {
	if requestedMs <= 0 {
		return def
	}
	d := time.Duration(requestedMs) * time.Millisecond
	if d > 300*time.Second {
		d = 300 * time.Second
	}
	return d
}

// Shutdown closes the driver and lets the dispatch goroutine drain.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	return rt.Driver.Close()
}
