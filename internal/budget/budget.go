// Package budget implements the Payload Budget Reducer (C5): a pure,
// deterministic, idempotent function that shrinks a response payload
// until its JSON encoding fits a byte budget, annotating the envelope
// with truncation metadata along the way.
package budget

import (
	"encoding/json"
	"sort"

	"github.com/use-agent/navigator/models"
)

// arrayLimits gives per-key element caps for the first reduction pass
// (§4.5 step 3).
var arrayLimits = map[string]int{
	"items": 120, "nodes": 120,
	"links":    60,
	"requests": 60, "messages": 60, "dialogs": 60,
	"questions": 80, "results": 80, "texts": 80,
}

const defaultArrayLimit = 80

// stringCaps gives per-key string length caps for the first pass.
var stringCaps = map[string]int{
	"html": 2500,
}

const defaultStringCap = 3000

const objectKeyCap = 40

// passthroughKeys is the minimal set kept in the step-5 fallback.
var passthroughKeys = map[string]bool{
	"status": true, "eventType": true, "selector": true,
	"count": true, "returned": true, "totalMatches": true,
}

// Reduce applies the reducer algorithm to payload — the FULL merged
// envelope+payload map C6 is about to send — so that the final encoded
// object, truncation metadata included, fits within maxBytes. Reserved
// envelope keys (models.ReservedKeys) are never touched by the ordinary
// typed-cap/shrink passes; only the step-6 hard-guarantee loop overrides
// that protection, and only as the last resort before {truncated:true}.
// Reduce returns the ready-to-send object: when truncated, the
// truncation metadata is already merged in and size-checked, not left
// for the caller to bolt on afterward.
func Reduce(payload map[string]any, maxBytes int) (out map[string]any, truncated bool, originalBytes int, retryWith map[string]any) {
	originalBytes = jsonSize(payload)
	if originalBytes <= maxBytes {
		return payload, false, originalBytes, nil
	}

	retry := defaultRetryHint()

	work := clone(payload)
	applyTypedCaps(work)
	capErrorMessage(work, defaultStringCap)
	if candidate, ok := fitsWithMeta(work, maxBytes, originalBytes, retry); ok {
		return candidate, true, originalBytes, retry
	}

	for pass := 0; pass < 6; pass++ {
		shrinkLargest(work)
		if candidate, ok := fitsWithMeta(work, maxBytes, originalBytes, retry); ok {
			return candidate, true, originalBytes, retry
		}
	}

	work = minimalFallback(work)
	if candidate, ok := fitsWithMeta(work, maxBytes, originalBytes, retry); ok {
		return candidate, true, originalBytes, retry
	}

	// Step 6: final hard-guarantee loop. Each step only removes bytes,
	// so this always terminates at {truncated:true} or earlier.
	candidate := withMeta(work, maxBytes, originalBytes, nil)
	delete(candidate, "originalBytes")
	if jsonSize(candidate) <= maxBytes {
		return candidate, true, originalBytes, nil
	}
	if id, ok := candidate["requestId"].(string); ok && len(id) > 8 {
		candidate["requestId"] = id[:8]
		if jsonSize(candidate) <= maxBytes {
			return candidate, true, originalBytes, nil
		}
	}
	capErrorMessage(candidate, 200)
	if jsonSize(candidate) <= maxBytes {
		return candidate, true, originalBytes, nil
	}
	delete(candidate, "ok")
	if jsonSize(candidate) <= maxBytes {
		return candidate, true, originalBytes, nil
	}
	return map[string]any{"truncated": true}, true, originalBytes, nil
}

// withMeta returns a copy of work with truncation metadata merged in.
func withMeta(work map[string]any, maxBytes, originalBytes int, retryWith map[string]any) map[string]any {
	out := clone(work)
	out["truncated"] = true
	out["truncationReason"] = "response_payload_budget_exceeded"
	out["maxPayloadBytes"] = maxBytes
	out["originalBytes"] = originalBytes
	if retryWith != nil {
		out["retryWith"] = retryWith
	}
	return out
}

// fitsWithMeta reports whether work, once truncation metadata is merged
// in, encodes within maxBytes — the check the non-final passes were
// missing, since metadata itself costs bytes.
func fitsWithMeta(work map[string]any, maxBytes, originalBytes int, retryWith map[string]any) (map[string]any, bool) {
	candidate := withMeta(work, maxBytes, originalBytes, retryWith)
	if jsonSize(candidate) <= maxBytes {
		return candidate, true
	}
	return nil, false
}

// capErrorMessage truncates a reserved "error" envelope field's message
// in place on a clone, for the rare case (an INTERNAL/eval error with a
// long wrapped message) where the protected envelope itself is what
// blows the budget.
func capErrorMessage(work map[string]any, cap int) {
	detail, ok := work["error"].(*models.ErrorDetail)
	if !ok || len(detail.Message) <= cap {
		return
	}
	capped := *detail
	capped.Message = detail.Message[:cap]
	work["error"] = &capped
}

func defaultRetryHint() map[string]any {
	return map[string]any{
		"detail": "low", "fullPage": false, "maxItems": 80, "limit": 20,
		"includeText": false, "includeBBox": false,
	}
}

func clone(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func isEnvelopeKey(k string) bool { return models.ReservedKeys[k] }

func applyTypedCaps(work map[string]any) {
	for k, v := range work {
		if isEnvelopeKey(k) {
			continue
		}
		work[k] = reduceValue(k, v)
	}
}

func reduceValue(key string, v any) any {
	switch val := v.(type) {
	case string:
		cap := stringCaps[key]
		if cap == 0 {
			cap = defaultStringCap
		}
		if len(val) > cap {
			return val[:cap]
		}
		return val
	case []any:
		limit, ok := arrayLimits[key]
		if !ok {
			limit = defaultArrayLimit
		}
		if len(val) > limit {
			return val[:limit]
		}
		return val
	case map[string]any:
		return capObjectKeys(val, objectKeyCap)
	default:
		return v
	}
}

func capObjectKeys(obj map[string]any, limit int) map[string]any {
	if len(obj) <= limit {
		return obj
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]any, limit)
	for _, k := range keys[:limit] {
		out[k] = obj[k]
	}
	return out
}

// shrinkLargest sorts non-envelope keys by estimated byte cost
// descending (ties broken by key name, so the choice never depends on map
// iteration order) and applies a half-and-floor reduction to the costliest
// one (§4.5 step 4).
func shrinkLargest(work map[string]any) {
	type costed struct {
		key  string
		cost int
	}
	var costs []costed
	for k, v := range work {
		if isEnvelopeKey(k) {
			continue
		}
		costs = append(costs, costed{k, jsonSize(v)})
	}
	if len(costs) == 0 {
		return
	}
	sort.Slice(costs, func(i, j int) bool {
		if costs[i].cost != costs[j].cost {
			return costs[i].cost > costs[j].cost
		}
		return costs[i].key < costs[j].key
	})
	k := costs[0].key
	switch val := work[k].(type) {
	case string:
		half := len(val) / 2
		work[k] = val[:half]
	case []any:
		half := len(val) / 2
		if half < 10 {
			half = 10
		}
		if half > len(val) {
			half = len(val)
		}
		work[k] = val[:half]
	case map[string]any:
		work[k] = capObjectKeys(val, 20)
	}
}

// minimalFallback degrades to envelope keys plus a small passthrough set
// (§4.5 step 5).
func minimalFallback(work map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range work {
		if isEnvelopeKey(k) || passthroughKeys[k] {
			out[k] = v
			continue
		}
		if k == "id" || k == "ids" {
			out[k] = v
		}
	}
	return out
}

func jsonSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}
