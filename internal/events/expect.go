package events

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/use-agent/navigator/models"
)

// EventType is the closed set of event kinds expect_event can wait on.
type EventType string

const (
	EventTypeDialog   EventType = "dialog"
	EventTypeDownload EventType = "download"
	EventTypePopup    EventType = "popup"
	EventTypeConsole  EventType = "console"
	EventTypeNetwork  EventType = "network"
)

// AfterActions is the closed allowlist an expect_event call's
// afterAction must come from (§4.7).
var AfterActions = map[string]bool{
	"click": true, "press": true, "goto": true, "reload": true,
	"back": true, "forward": true, "hover": true,
}

// ExpectEventSpec is the parsed form of an expect_event tool call.
type ExpectEventSpec struct {
	EventType   EventType
	Pattern     string
	Regex       bool
	Status      *int
	Method      string
	TimeoutMs   int
	AfterAction string
}

func ValidateAfterAction(action string) error {
	if action == "" {
		return nil
	}
	if !AfterActions[action] {
		return fmt.Errorf("NOT_FOUND: afterAction %q is not a supported action", action)
	}
	return nil
}

type waiter struct {
	eventType EventType
	matches   func(subject string) bool
	status    *int
	method    string
	resultCh  chan any
}

func (p *Plane) notify(t EventType, subject string) {
	p.notifyMatch(t, subject, nil, "")
}

func (p *Plane) notifyMatch(t EventType, subject string, status *int, method string) {
	p.mu.Lock()
	var hit *waiter
	remaining := p.waiters[:0]
	for _, w := range p.waiters {
		if w.eventType == t && w.matches(subject) && statusMatches(w.status, status) && methodMatches(w.method, method) {
			hit = w
			continue
		}
		remaining = append(remaining, w)
	}
	p.waiters = remaining
	p.mu.Unlock()

	if hit != nil {
		hit.resultCh <- subject
	}
}

func statusMatches(want, got *int) bool {
	if want == nil {
		return true
	}
	return got != nil && *want == *got
}

func methodMatches(want, got string) bool {
	if want == "" {
		return true
	}
	return strings.EqualFold(want, got)
}

// Arm registers a waiter before the triggering action runs, so a fast
// event firing between arming and the actual Wait call is never missed
// (§4.7: "armed before the action runs").
func (p *Plane) Arm(spec ExpectEventSpec) *armedWait {
	var matchFn func(string) bool
	if spec.Regex {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			matchFn = func(string) bool { return false }
		} else {
			matchFn = re.MatchString
		}
	} else {
		matchFn = func(subject string) bool { return strings.Contains(subject, spec.Pattern) }
	}

	w := &waiter{eventType: spec.EventType, matches: matchFn, status: spec.Status, method: spec.Method, resultCh: make(chan any, 1)}
	p.mu.Lock()
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()
	return &armedWait{plane: p, w: w}
}

type armedWait struct {
	plane *Plane
	w     *waiter
}

// Wait blocks until the armed waiter fires, the context is canceled, or
// timeoutMs elapses.
func (a *armedWait) Wait(ctx context.Context, timeoutMs int) (any, error) {
	defer a.plane.disarm(a.w)

	tctx, cancel := contextWithMillis(ctx, timeoutMs)
	defer cancel()

	select {
	case v := <-a.w.resultCh:
		return v, nil
	case <-tctx.Done():
		return nil, models.NewToolError(models.ErrCodeTimeout, "expect_event timed out waiting for a match", tctx.Err())
	}
}

func (p *Plane) disarm(target *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.waiters[:0]
	for _, w := range p.waiters {
		if w != target {
			out = append(out, w)
		}
	}
	p.waiters = out
}
