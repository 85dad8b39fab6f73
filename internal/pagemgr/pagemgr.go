// Package pagemgr implements the Page Manager (C2): page id assignment,
// active-page selection, and the browser-context generation tag that
// every event-plane record is stamped with (§3.1).
package pagemgr

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/use-agent/navigator/internal/driver"
)

type pageRecord struct {
	id     int
	url    string
	title  string
	closed bool
	blank  bool
}

// Manager tracks open pages and which one is "active" — the implicit
// target of any tool call that omits pageId. Like domtrack, it is
// written from the single event-dispatch goroutine but read from any
// tool goroutine.
type Manager struct {
	mu         sync.Mutex
	pages      map[int]*pageRecord
	order      []int
	activeID   int
	generation string
}

func New() *Manager {
	return &Manager{
		pages:      make(map[int]*pageRecord),
		generation: uuid.NewString(),
	}
}

// Generation returns the current browser-context generation tag. The
// runtime stamps each event-plane record with the tag current when its
// event is dispatched; nothing compares a record's tag with this one.
func (m *Manager) Generation() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// AttachContext mints a fresh generation tag, invalidating every record
// captured under the previous one, and forgets all page bookkeeping.
func (m *Manager) AttachContext(ctx context.Context, driv driver.Driver) error {
	if err := driv.AttachContext(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.pages = make(map[int]*pageRecord)
	m.order = nil
	m.activeID = 0
	m.generation = uuid.NewString()
	m.mu.Unlock()

	pages, err := driv.Pages(ctx)
	if err != nil {
		return err
	}
	for _, p := range pages {
		m.PageOpened(p.PageID, p.URL, p.Title)
	}
	return nil
}

// PageOpened registers a page (from a Navigate call or a driver-reported
// popup/new-target event) and, if it is the first non-blank page seen,
// makes it active.
func (m *Manager) PageOpened(pageID int, url, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blank := isBlankURL(url)
	m.pages[pageID] = &pageRecord{id: pageID, url: url, title: title, blank: blank}
	m.order = append(m.order, pageID)
	if m.activeID == 0 || (m.isBlankLocked(m.activeID) && !blank) {
		m.activeID = pageID
	}
}

func (m *Manager) isBlankLocked(pageID int) bool {
	p, ok := m.pages[pageID]
	return ok && p.blank
}

// isBlankURL reports whether url is empty, about:blank, or a browser
// new-tab page.
func isBlankURL(url string) bool {
	switch url {
	case "", "about:blank", "chrome://newtab/", "chrome://new-tab-page/":
		return true
	}
	return false
}

// PageClosed marks a page closed and, if it was active, selects a
// replacement preferring the most recently opened non-blank, non-closed
// remaining page. Closed pages stay in m.pages/m.order — §3 Lifecycles
// requires they remain listable (closed=true) but not selectable;
// ResolvePageID/SelectPage enforce the not-selectable half.
func (m *Manager) PageClosed(pageID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[pageID]
	if !ok {
		return
	}
	p.closed = true
	if m.activeID != pageID {
		return
	}
	m.activeID = 0
	for i := len(m.order) - 1; i >= 0; i-- {
		cand := m.pages[m.order[i]]
		if cand != nil && !cand.closed && !cand.blank {
			m.activeID = m.order[i]
			return
		}
	}
	for i := len(m.order) - 1; i >= 0; i-- {
		cand := m.pages[m.order[i]]
		if cand != nil && !cand.closed {
			m.activeID = m.order[i]
			return
		}
	}
}

// PageNavigated updates a tracked page's url/title/blank status.
func (m *Manager) PageNavigated(pageID int, url, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[pageID]
	if !ok {
		return
	}
	p.url, p.title = url, title
	p.blank = isBlankURL(url)
}

// SelectPage explicitly sets the active page. Returns false if the page
// is unknown or closed — closed pages remain listable but not selectable.
func (m *Manager) SelectPage(pageID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[pageID]
	if !ok || p.closed {
		return false
	}
	m.activeID = pageID
	return true
}

// ActivePage returns the id of the currently active page, or 0 if there
// are no open pages.
func (m *Manager) ActivePage() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// ResolvePageID returns requested if nonzero, else the active page.
// Returns false if the result does not refer to a known, open page.
func (m *Manager) ResolvePageID(requested int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := requested
	if id == 0 {
		id = m.activeID
	}
	if id == 0 {
		return 0, false
	}
	p, ok := m.pages[id]
	if !ok || p.closed {
		return 0, false
	}
	return id, true
}

// ListPages returns a snapshot of every tracked page.
func (m *Manager) ListPages() []driver.PageInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driver.PageInfo, 0, len(m.pages))
	for _, id := range m.order {
		p, ok := m.pages[id]
		if !ok {
			continue
		}
		out = append(out, driver.PageInfo{PageID: p.id, URL: p.url, Title: p.title, Closed: p.closed})
	}
	return out
}
