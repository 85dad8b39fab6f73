// Package driver defines the small interface the tool-runtime core consumes
// from the browser automation layer, and a go-rod-backed implementation of
// it. The core never imports go-rod directly outside this package — every
// other package in the module talks to browsers only through Driver.
package driver

import (
	"context"
	"time"
)

// PageInfo is a snapshot of one open page/tab as the driver sees it.
type PageInfo struct {
	PageID  int
	URL     string
	Title   string
	Closed  bool
}

// FrameInfo is a snapshot of one frame within a page.
type FrameInfo struct {
	FrameID       string
	ParentFrameID string
	IsMain        bool
	Name          string
	URL           string
}

// ElementInfo is one entry produced by ListElements, enough for the
// element cache (C3) to build a selector-plan entry from.
type ElementInfo struct {
	Selector string
	Tag      string
	Type     string
	Role     string
	Text     string
	Href     string
	AriaLabel string
	Visible  bool
	InViewport bool
}

// AXNode is one node of an accessibility tree, consumed from CDP
// Accessibility.getFullAXTree (§6). NodeID is the accessibility node's own
// id (what the uid format `ax-<nodeId>` names); BackendNodeID is the DOM
// backend node id used to re-resolve the live node via DOMDescribeNode.
type AXNode struct {
	NodeID        string
	BackendNodeID int64
	Role          string
	Name          string
	Children      []AXNode
}

// Cookie mirrors the minimal cookie shape needed for storage-state export.
type Cookie struct {
	Name, Value, Domain, Path string
}

// StorageState is the document exported/imported by the storage-state
// tools (§6 File formats).
type StorageState struct {
	Cookies []Cookie                    `json:"cookies"`
	Origins map[string]map[string]string `json:"origins"` // origin -> key -> value (localStorage)
}

// EventKind enumerates the lifecycle/event-plane events a Driver emits.
type EventKind string

const (
	EventFrameAttached  EventKind = "frame_attached"
	EventFrameNavigated EventKind = "frame_navigated"
	EventFrameDetached  EventKind = "frame_detached"
	EventPageOpened     EventKind = "page_opened"
	EventPageClosed     EventKind = "page_closed"
	EventDialog         EventKind = "dialog"
	EventDownload       EventKind = "download"
	EventPopup          EventKind = "popup"
	EventConsole        EventKind = "console"
	EventNetwork        EventKind = "network"
)

// Event is the unified notification shape pushed onto the Driver's event
// channel. Only the fields relevant to Kind are populated.
type Event struct {
	Kind   EventKind
	PageID int

	FrameID       string
	ParentFrameID string
	IsMain        bool
	FrameName     string
	FrameURL      string

	DialogType    string
	DialogMessage string
	DialogDefault string

	DownloadID        string
	SuggestedFilename string
	DownloadURL       string

	PopupOpenerPage int
	PopupNewPage    int
	PopupURL        string

	ConsoleLevel string
	ConsoleText  string
	ConsoleURL   string
	ConsoleLine  int

	NetworkRequestID string
	NetworkMethod    string
	NetworkURL       string
	NetworkStatus    int
	NetworkFailed    bool
	NetworkReason    string
	NetworkFinished  bool
}

// DialogAction is the caller's resolution of a pending dialog.
type DialogAction string

const (
	DialogAccept  DialogAction = "accept"
	DialogDismiss DialogAction = "dismiss"
)

// Driver is the interface the tool-runtime core consumes from the browser
// automation layer. It is intentionally page/frame-id based (not handle
// based) so the core never holds a reference that could be invalidated by
// the underlying driver's own memory model (§9 re-architecture notes).
type Driver interface {
	// Events returns a channel of lifecycle/event-plane notifications.
	// The channel is closed when the driver shuts down.
	Events() <-chan Event

	// AttachContext (re)establishes the backing automation context,
	// discarding any page/frame state from a previous context.
	AttachContext(ctx context.Context) error

	Pages(ctx context.Context) ([]PageInfo, error)
	ClosePage(ctx context.Context, pageID int) error

	Navigate(ctx context.Context, pageID int, url string, timeout time.Duration) error
	Reload(ctx context.Context, pageID int, timeout time.Duration) error
	Back(ctx context.Context, pageID int, timeout time.Duration) error
	Forward(ctx context.Context, pageID int, timeout time.Duration) error

	Click(ctx context.Context, pageID int, frameID, selector string) error
	Hover(ctx context.Context, pageID int, frameID, selector string) error
	Fill(ctx context.Context, pageID int, frameID, selector, value string) error
	Press(ctx context.Context, pageID int, frameID, key string) error
	ScrollTo(ctx context.Context, pageID int, frameID, selector string) error

	ListElements(ctx context.Context, pageID int, frameID string, interactiveOnly, visibleOnly, viewportOnly bool, maxItems int) ([]ElementInfo, error)
	AXTree(ctx context.Context, pageID int, frameID string, maxNodes, maxDepth int) (AXNode, map[int64]string, error)
	ResolveBackendNode(ctx context.Context, pageID int, frameID string, backendNodeID int64) error

	HTML(ctx context.Context, pageID int, frameID string) (string, error)
	InnerText(ctx context.Context, pageID int, frameID string) (string, error)
	Screenshot(ctx context.Context, pageID int) ([]byte, error)

	EvalJS(ctx context.Context, pageID int, frameID, origin, expr string, timeout time.Duration, maxBytes int) (string, error)

	HandleDialog(ctx context.Context, pageID int, action DialogAction, promptText string) error

	// DownloadBytes blocks until the staged download identified by
	// downloadID (the CDP-assigned GUID from the download event, not the
	// event plane's own dl-<n> id) finishes writing to the driver's
	// download staging directory, then returns its bytes.
	DownloadBytes(ctx context.Context, downloadID string) ([]byte, error)

	ExportStorageState(ctx context.Context) (*StorageState, error)
	ImportStorageState(ctx context.Context, state *StorageState) error

	Close() error
}
