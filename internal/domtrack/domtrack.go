// Package domtrack implements the DOM Version Tracker (C1): the single
// source of truth for "has this page/frame changed since a uid or
// selector plan was captured". Every other component that caches
// anything keyed off page state reads its context key from here.
package domtrack

import (
	"fmt"
	"sync"

	"github.com/use-agent/navigator/internal/driver"
)

// DomContext is the versioned identity of one frame at one instant. The
// wire-facing domVersion string is p<pageDomVersion>:<frameId>@<frameDomVersion>.
type DomContext struct {
	PageID          int
	PageDomVersion  int
	FrameID         string
	FrameDomVersion int
	IsMain          bool
}

func (c DomContext) String() string {
	return fmt.Sprintf("p%d:%s@%d", c.PageDomVersion, c.FrameID, c.FrameDomVersion)
}

type frameState struct {
	info    driver.FrameInfo
	version int
}

// pageState keys all frame bookkeeping by the canonical id the tracker
// itself assigns ("main", "f1", "f2", ...) rather than the raw CDP frame
// id the driver observes; rawToCanonical translates incoming driver
// events from one id space to the other.
type pageState struct {
	version        int
	frames         map[string]*frameState
	mainID         string
	rawToCanonical map[string]string
	frameSeq       int
}

// Tracker owns all page/frame version bookkeeping. It is written to only
// from the single goroutine that drains the driver's event channel
// (§5 concurrency model), but reads can come from any tool-handling
// goroutine, so it still serializes through a mutex.
type Tracker struct {
	mu    sync.Mutex
	pages map[int]*pageState
}

func New() *Tracker {
	return &Tracker{pages: make(map[int]*pageState)}
}

func (t *Tracker) page(pageID int) *pageState {
	p, ok := t.pages[pageID]
	if !ok {
		p = &pageState{frames: make(map[string]*frameState), rawToCanonical: make(map[string]string)}
		t.pages[pageID] = p
	}
	return p
}

// canonicalize returns the canonical id for a raw CDP frame id under p,
// minting one ("main" for the root frame, "f<seq>" otherwise) the first
// time that raw id is seen.
func (p *pageState) canonicalize(rawFrameID string, isMain bool) string {
	if rawFrameID == "" {
		return ""
	}
	if id, ok := p.rawToCanonical[rawFrameID]; ok {
		return id
	}
	var id string
	if isMain {
		id = "main"
	} else {
		p.frameSeq++
		id = fmt.Sprintf("f%d", p.frameSeq)
	}
	p.rawToCanonical[rawFrameID] = id
	return id
}

// PageOpened registers a new page at version 0.
func (t *Tracker) PageOpened(pageID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.page(pageID)
}

// PageClosed drops all bookkeeping for a page; any context key referring
// to it will subsequently miss and the caller sees STALE_REF/NOT_FOUND.
func (t *Tracker) PageClosed(pageID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pages, pageID)
}

// FrameAttached registers a new frame at version 0 under its page,
// bumping the page's own version since its frame set changed. rawFrameID/
// rawParentFrameID are the driver's own (opaque) ids; the tracker mints
// and returns the wire-facing canonical id ("main" or "f<seq>", §3/§4.1).
func (t *Tracker) FrameAttached(pageID int, rawFrameID, rawParentFrameID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.page(pageID)
	p.version++
	isMain := rawParentFrameID == ""
	canonical := p.canonicalize(rawFrameID, isMain)
	parentCanonical := p.rawToCanonical[rawParentFrameID]
	p.frames[canonical] = &frameState{info: driver.FrameInfo{
		FrameID: canonical, ParentFrameID: parentCanonical, IsMain: isMain,
	}}
	if isMain {
		p.mainID = canonical
	}
	return canonical
}

// FrameNavigated bumps the navigated frame's own version and the page's
// version (other frames keep their versions) and records its url/name.
// Returns the frame's canonical id.
func (t *Tracker) FrameNavigated(pageID int, rawFrameID, rawParentFrameID string, isMain bool, name, url string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.page(pageID)
	canonical := p.canonicalize(rawFrameID, isMain)
	parentCanonical := p.rawToCanonical[rawParentFrameID]
	f, ok := p.frames[canonical]
	if !ok {
		f = &frameState{}
		p.frames[canonical] = f
	}
	f.version++
	p.version++
	f.info = driver.FrameInfo{FrameID: canonical, ParentFrameID: parentCanonical, IsMain: isMain, Name: name, URL: url}
	if isMain {
		p.mainID = canonical
	}
	return canonical
}

// FrameDetached removes a frame and bumps the owning page's version.
func (t *Tracker) FrameDetached(pageID int, rawFrameID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.page(pageID)
	canonical, ok := p.rawToCanonical[rawFrameID]
	if !ok {
		return
	}
	delete(p.frames, canonical)
	delete(p.rawToCanonical, rawFrameID)
	p.version++
}

// GetDomContext returns the current context for a (pageId, frameId) pair.
// frameId == "" resolves to the page's main frame. Returns false if the
// page or frame is unknown — callers translate that into NOT_FOUND.
func (t *Tracker) GetDomContext(pageID int, frameID string) (DomContext, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pages[pageID]
	if !ok {
		return DomContext{}, false
	}
	if frameID == "" {
		frameID = p.mainID
	}
	if frameID == "" {
		return DomContext{}, false
	}
	f, ok := p.frames[frameID]
	if !ok {
		return DomContext{}, false
	}
	return DomContext{
		PageID: pageID, PageDomVersion: p.version,
		FrameID: frameID, FrameDomVersion: f.version, IsMain: f.info.IsMain,
	}, true
}

// ListFrames returns a snapshot of every known frame under a page.
func (t *Tracker) ListFrames(pageID int) []driver.FrameInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pages[pageID]
	if !ok {
		return nil
	}
	out := make([]driver.FrameInfo, 0, len(p.frames))
	for _, f := range p.frames {
		out = append(out, f.info)
	}
	return out
}

// GetFrameByID returns one frame's info, or false if it is not known
// under this page (a stale frameId from a previous navigation, say).
func (t *Tracker) GetFrameByID(pageID int, frameID string) (driver.FrameInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pages[pageID]
	if !ok {
		return driver.FrameInfo{}, false
	}
	f, ok := p.frames[frameID]
	if !ok {
		return driver.FrameInfo{}, false
	}
	return f.info, true
}

// MatchesContext reports whether a previously captured DomContext is
// still current — the core staleness check every cache consults.
func (t *Tracker) MatchesContext(key DomContext) bool {
	cur, ok := t.GetDomContext(key.PageID, key.FrameID)
	if !ok {
		return false
	}
	return cur.PageDomVersion == key.PageDomVersion && cur.FrameDomVersion == key.FrameDomVersion
}
