// Package capture implements the Capture Profile Registry (C4): a frozen
// table of per-tool capture defaults across profile (light/balanced/full)
// and detail (low/high), from which getCaptureDefaults returns a shallow
// copy so callers can freely apply overrides without mutating the table.
package capture

import "fmt"

// Profile names (§6: session state, default "light").
const (
	ProfileLight    = "light"
	ProfileBalanced = "balanced"
	ProfileFull     = "full"
)

// Detail levels.
const (
	DetailLow  = "low"
	DetailHigh = "high"
)

// Options is a generic bag of capture defaults. Tool handlers type-assert
// the keys they expect and ignore unknown keys; they have no fallback of
// their own for a missing key, and every entry of a tool carries the same
// key set.
type Options map[string]any

// Copy returns a shallow copy so the frozen table is never mutated by a
// caller applying overrides in place.
func (o Options) Copy() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

type key struct {
	profile string
	tool    string
	detail  string
}

var table = map[key]Options{
	{ProfileLight, "snapshot", DetailLow}:  {"maxChars": 6000, "maxLinks": 30, "includeHeadings": false, "includeFormsSummary": false},
	{ProfileLight, "snapshot", DetailHigh}: {"maxChars": 9000, "maxLinks": 45, "includeHeadings": true, "includeFormsSummary": true},
	{ProfileBalanced, "snapshot", DetailLow}:  {"maxChars": 10000, "maxLinks": 60, "includeHeadings": true, "includeFormsSummary": false},
	{ProfileBalanced, "snapshot", DetailHigh}: {"maxChars": 16000, "maxLinks": 90, "includeHeadings": true, "includeFormsSummary": true},
	{ProfileFull, "snapshot", DetailLow}:  {"maxChars": 20000, "maxLinks": 120, "includeHeadings": true, "includeFormsSummary": true},
	{ProfileFull, "snapshot", DetailHigh}: {"maxChars": 32000, "maxLinks": 200, "includeHeadings": true, "includeFormsSummary": true},

	{ProfileLight, "list", DetailLow}:  {"maxItems": 120, "maxTextChars": 80, "interactiveOnly": true, "visibleOnly": true, "viewportOnly": true, "includeSelectors": false},
	{ProfileLight, "list", DetailHigh}: {"maxItems": 180, "maxTextChars": 120, "interactiveOnly": true, "visibleOnly": true, "viewportOnly": false, "includeSelectors": true},
	{ProfileBalanced, "list", DetailLow}:  {"maxItems": 240, "maxTextChars": 120, "interactiveOnly": true, "visibleOnly": true, "viewportOnly": false, "includeSelectors": true},
	{ProfileBalanced, "list", DetailHigh}: {"maxItems": 320, "maxTextChars": 160, "interactiveOnly": false, "visibleOnly": true, "viewportOnly": false, "includeSelectors": true},
	{ProfileFull, "list", DetailLow}:  {"maxItems": 500, "maxTextChars": 200, "interactiveOnly": false, "visibleOnly": false, "viewportOnly": false, "includeSelectors": true},
	{ProfileFull, "list", DetailHigh}: {"maxItems": 800, "maxTextChars": 280, "interactiveOnly": false, "visibleOnly": false, "viewportOnly": false, "includeSelectors": true},

	{ProfileLight, "take_snapshot", DetailLow}:  {"interestingOnly": true, "maxNodes": 300, "maxDepth": 12},
	{ProfileLight, "take_snapshot", DetailHigh}: {"interestingOnly": true, "maxNodes": 600, "maxDepth": 16},
	{ProfileBalanced, "take_snapshot", DetailLow}:  {"interestingOnly": true, "maxNodes": 800, "maxDepth": 20},
	{ProfileBalanced, "take_snapshot", DetailHigh}: {"interestingOnly": false, "maxNodes": 1200, "maxDepth": 24},
	{ProfileFull, "take_snapshot", DetailLow}:  {"interestingOnly": false, "maxNodes": 1500, "maxDepth": 28},
	{ProfileFull, "take_snapshot", DetailHigh}: {"interestingOnly": false, "maxNodes": 2000, "maxDepth": 32},

	{ProfileLight, "read_page", DetailLow}:  {"maxChars": 4000, "format": "markdown"},
	{ProfileLight, "read_page", DetailHigh}: {"maxChars": 8000, "format": "markdown"},
	{ProfileBalanced, "read_page", DetailLow}:  {"maxChars": 10000, "format": "markdown"},
	{ProfileBalanced, "read_page", DetailHigh}: {"maxChars": 20000, "format": "markdown"},
	{ProfileFull, "read_page", DetailLow}:  {"maxChars": 30000, "format": "markdown"},
	{ProfileFull, "read_page", DetailHigh}: {"maxChars": 60000, "format": "markdown"},

	{ProfileLight, "visual_snapshot", DetailLow}:  {"fullPage": false, "format": "jpeg", "quality": 60},
	{ProfileLight, "visual_snapshot", DetailHigh}: {"fullPage": false, "format": "jpeg", "quality": 80},
	{ProfileBalanced, "visual_snapshot", DetailLow}:  {"fullPage": false, "format": "png", "quality": 0},
	{ProfileBalanced, "visual_snapshot", DetailHigh}: {"fullPage": true, "format": "png", "quality": 0},
	{ProfileFull, "visual_snapshot", DetailLow}:  {"fullPage": true, "format": "png", "quality": 0},
	{ProfileFull, "visual_snapshot", DetailHigh}: {"fullPage": true, "format": "png", "quality": 0},
}

var validProfiles = map[string]bool{ProfileLight: true, ProfileBalanced: true, ProfileFull: true}

// GetCaptureDefaults returns a frozen table entry's shallow copy. An
// unknown (profile, tool, detail) combination falls back to the
// light/low entry for that tool if one exists, else an empty set.
func GetCaptureDefaults(profile, tool, detail string) Options {
	if o, ok := table[key{profile, tool, detail}]; ok {
		return o.Copy()
	}
	if o, ok := table[key{ProfileLight, tool, DetailLow}]; ok {
		return o.Copy()
	}
	return Options{}
}

// ValidateProfile reports whether profile is one of the three known
// profile names.
func ValidateProfile(profile string) error {
	if !validProfiles[profile] {
		return fmt.Errorf("unknown capture profile %q", profile)
	}
	return nil
}

// Registry holds the active session-wide profile (§4.4: "session state,
// set by a dedicated tool; the default is light").
type Registry struct {
	active string
}

func NewRegistry() *Registry {
	return &Registry{active: ProfileLight}
}

func (r *Registry) Active() string { return r.active }

func (r *Registry) SetActive(profile string) error {
	if err := ValidateProfile(profile); err != nil {
		return err
	}
	r.active = profile
	return nil
}

func (r *Registry) Defaults(tool, detail string) Options {
	return GetCaptureDefaults(r.active, tool, detail)
}
