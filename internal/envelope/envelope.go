// Package envelope implements the Tool Middleware & Envelope Builder
// (C6): request id assignment, a per-session call governor, envelope
// construction from live page context, error classification into the
// closed taxonomy, and the hookup into the payload budget reducer.
package envelope

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/navigator/internal/budget"
	"github.com/use-agent/navigator/models"
)

// IDGenerator mints requestId values of the form req-<unix_ms>-<seq>.
type IDGenerator struct {
	seq int64
}

func NewIDGenerator() *IDGenerator { return &IDGenerator{} }

func (g *IDGenerator) Next(now time.Time) string {
	n := atomic.AddInt64(&g.seq, 1)
	return fmt.Sprintf("req-%d-%d", now.UnixMilli(), n)
}

// Governor is the per-session call rate limiter (§4.6 step 2). Unlike a
// typical rate.Limiter use, Allow is checked synchronously and a denial
// is classified as TIMEOUT rather than ever blocking — the single
// tool-call runner must never sleep here.
type Governor struct {
	limiter *rate.Limiter
}

func NewGovernor(callsPerSecond float64, burst int) *Governor {
	return &Governor{limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst)}
}

func (g *Governor) Allow() bool { return g.limiter.Allow() }

// classifiers is the fixed, ordered ruleset (§4.6 step 5) matched by
// substring against a lowercased error message. Order matters: more
// specific substrings are checked before generic ones.
var classifiers = []struct {
	substr string
	code   string
}{
	{"permission", models.ErrCodePermission},
	{"stale_ref", models.ErrCodeStaleRef},
	{"stale reference", models.ErrCodeStaleRef},
	{"timeout", models.ErrCodeTimeout},
	{"deadline exceeded", models.ErrCodeTimeout},
	{"context canceled", models.ErrCodeTimeout},
	{"navigation", models.ErrCodeNavigation},
	{"not_found", models.ErrCodeNotFound},
	{"not found", models.ErrCodeNotFound},
}

// Classify turns any error into the closed six-code taxonomy. A
// *models.ToolError carries its code directly; any other error is
// matched against the fixed ruleset, defaulting to INTERNAL.
func Classify(err error) *models.ErrorDetail {
	if err == nil {
		return nil
	}
	var toolErr *models.ToolError
	if errors.As(err, &toolErr) {
		return toolErr.ToDetail()
	}
	msg := strings.ToLower(err.Error())
	for _, c := range classifiers {
		if strings.Contains(msg, c.substr) {
			return &models.ErrorDetail{Code: c.code, Message: err.Error()}
		}
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

// Build assembles an envelope from live page context, a handler's raw
// result payload (or nil on error), and a governing error. Colliding
// payload keys (those in models.ReservedKeys) are renamed payload<Key>.
func Build(requestID string, now time.Time, pc models.PageContext, payload map[string]any, handlerErr error) models.Envelope {
	env := models.Envelope{
		OK:        handlerErr == nil,
		RequestID: requestID,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
	if !pc.Closed {
		env.PageID = &pc.PageID
		env.URL = &pc.URL
		env.Title = &pc.Title
		env.DomVersion = &pc.DomVersion
		env.ActiveFrameID = &pc.ActiveFrameID
	}
	if handlerErr != nil {
		env.Error = Classify(handlerErr)
	}
	return env
}

// MergePayload flattens an envelope and a handler's payload into a
// single map ready for JSON encoding, renaming any payload key that
// collides with a reserved envelope key.
func MergePayload(env models.Envelope, payload map[string]any) map[string]any {
	out := map[string]any{
		"ok":        env.OK,
		"requestId": env.RequestID,
		"timestamp": env.Timestamp,
	}
	if env.PageID != nil {
		out["pageId"] = *env.PageID
	} else {
		out["pageId"] = nil
	}
	if env.URL != nil {
		out["url"] = *env.URL
	} else {
		out["url"] = nil
	}
	if env.Title != nil {
		out["title"] = *env.Title
	} else {
		out["title"] = nil
	}
	if env.DomVersion != nil {
		out["domVersion"] = *env.DomVersion
	} else {
		out["domVersion"] = nil
	}
	if env.ActiveFrameID != nil {
		out["activeFrameId"] = *env.ActiveFrameID
	} else {
		out["activeFrameId"] = nil
	}
	if env.Error != nil {
		out["error"] = env.Error
	}

	for k, v := range payload {
		key := k
		if models.ReservedKeys[key] {
			key = "payload" + strings.ToUpper(key[:1]) + key[1:]
		}
		out[key] = v
	}
	return out
}

// ApplyBudget runs the reducer over the FULL merged envelope+payload map
// so the size check (and, if truncation is needed, the resulting object)
// covers everything about to be sent on the wire — envelope fields like
// error.message included — not just the caller's payload keys. This is
// what makes Testable Property #1 (every response fits maxBytes) hold
// even when an oversized error message, not an oversized payload, is
// what pushed the response over budget.
func ApplyBudget(merged map[string]any, maxBytes int) map[string]any {
	out, _, _, _ := budget.Reduce(merged, maxBytes)
	return out
}

// ParseSeq extracts the sequence component of a requestId, for tests
// that need to assert monotonicity without depending on wall-clock time.
func ParseSeq(requestID string) (int64, error) {
	parts := strings.Split(requestID, "-")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed requestId %q", requestID)
	}
	return strconv.ParseInt(parts[2], 10, 64)
}
