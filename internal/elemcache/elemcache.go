// Package elemcache implements the Element Cache & UID Map (C3). Tools
// never hand out or accept raw DOM handles; they deal in opaque
// elementId/uid strings that are only ever meaningful together with the
// dom-version context they were minted under.
package elemcache

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/navigator/internal/domtrack"
)

// ElementEntry is one cached selector-plan entry (§4.3).
type ElementEntry struct {
	ElementID string
	Selector  string
	PageID    int
	FrameID   string
	Context   domtrack.DomContext
}

// UIDEntry binds an ax-<nodeId> uid to the backend DOM node CDP needs to
// re-resolve it.
type UIDEntry struct {
	UID           string
	NodeID        string
	BackendNodeID int64
	PageID        int
	FrameID       string
	Context       domtrack.DomContext
}

// Cache holds both the element-id table and the uid table. Entries are
// never mutated in place. Resolve does not check freshness: callers
// compare an entry's Context with the tracker and translate a mismatch
// into STALE_REF.
type Cache struct {
	mu       sync.Mutex
	elements map[string]ElementEntry
	uids     map[string]UIDEntry
	seq      int64
}

func New() *Cache {
	return &Cache{
		elements: make(map[string]ElementEntry),
		uids:     make(map[string]UIDEntry),
	}
}

// Store mints a new elementId for a captured selector under ctx.
func (c *Cache) Store(pageID int, ctx domtrack.DomContext, selector string) string {
	id := fmt.Sprintf("el-%d", atomic.AddInt64(&c.seq, 1))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elements[id] = ElementEntry{ElementID: id, Selector: selector, PageID: pageID, FrameID: ctx.FrameID, Context: ctx}
	return id
}

// Resolve returns a previously stored entry. The caller is responsible
// for checking the entry's Context against the tracker's current state
// (e.g. via domtrack.Tracker.MatchesContext) before trusting the
// selector for a live DOM operation.
func (c *Cache) Resolve(elementID string) (ElementEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.elements[elementID]
	return e, ok
}

// StoreUID mints (or returns the existing) ax-<nodeId> uid for an
// accessibility node, keeping the backend DOM node id alongside it so
// ResolveBackendNode can re-resolve the live element. Entries are keyed
// by uid alone and record ctx's frame as given; there is no per-frame
// table and no fallback to the page's main frame.
func (c *Cache) StoreUID(pageID int, ctx domtrack.DomContext, nodeID string, backendNodeID int64) string {
	uid := fmt.Sprintf("ax-%s", nodeID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uids[uid] = UIDEntry{UID: uid, NodeID: nodeID, BackendNodeID: backendNodeID, PageID: pageID, FrameID: ctx.FrameID, Context: ctx}
	return uid
}

func (c *Cache) ResolveUID(uid string) (UIDEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.uids[uid]
	return e, ok
}

// InvalidatePage drops every element/uid entry scoped to a page, used
// when a page closes or navigates and after each mutating browser tool
// call against it.
func (c *Cache) InvalidatePage(pageID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.elements {
		if e.PageID == pageID {
			delete(c.elements, id)
		}
	}
	for id, e := range c.uids {
		if e.PageID == pageID {
			delete(c.uids, id)
		}
	}
}

// ValidateSelector parses selector as a CSS selector and confirms it
// matches at least one node in html, catching a malformed or
// no-longer-matching selector before a live resolve attempt ever reaches
// the browser (§4.3). It never mutates or touches the live page.
func ValidateSelector(html, selector string) (bool, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return false, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, fmt.Errorf("parse html: %w", err)
	}
	return sel.MatchFirst(doc.Get(0)) != nil, nil
}
