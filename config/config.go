// Package config loads navigator-mcp's configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser  BrowserConfig
	Security SecurityConfig
	Capture  CaptureConfig
	Envelope EnvelopeConfig
	Events   EventsConfig
	Log      LogConfig
	Debug    DebugConfig
	Extractor ExtractorConfig
}

// BrowserConfig controls the browser driver.
type BrowserConfig struct {
	Headless        bool   // default: true
	Stealth         bool   // default: false
	Channel         string // e.g. "chrome", "chromium"
	ExecutablePath  string
	UserDataDir     string
	ProfileDirectory string
	CDPEndpoint     string
	CDPPort         int
	ForceCDP        bool
	RequireProfile  bool
	ExtraHeaders    map[string]string // extra HTTP headers sent with every page request
}

// SecurityConfig controls the security gate (C8).
type SecurityConfig struct {
	ReadAllowlist       []string
	WriteAllowlist      []string
	AllowEvaluate       bool
	EvaluateAllowOrigins []string // "*" means any origin
	EvalTimeBudget      time.Duration // default: 5s
	EvalByteBudget      int           // default: 200_000
}

// CaptureConfig controls the capture profile registry (C4) and default profile.
type CaptureConfig struct {
	DefaultProfile   string // "light" | "balanced" | "full"
	MaxResponseBytes int    // default: 280000; clamped to [32768, 2000000]
}

// EnvelopeConfig controls the tool middleware's call governor (C6).
type EnvelopeConfig struct {
	CallsPerSecond float64 // default: 20
	CallBurst      int     // default: 40
}

// EventsConfig controls the event plane's ring buffer capacities (C7).
type EventsConfig struct {
	ConsoleCapacity  int // default: 200
	NetworkCapacity  int // default: 300
	DialogCapacity   int // default: 400
	DownloadCapacity int // default: 400
	PopupCapacity    int // default: 200
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DebugConfig controls the optional gin-backed loopback sidecar server.
type DebugConfig struct {
	Addr string // empty disables the sidecar
}

// ExtractorConfig controls the domain extractors' HTTP-first probe.
type ExtractorConfig struct {
	HTTPTimeout time.Duration // default: 8s
}

// Load reads configuration from environment variables with sane defaults.
// Every key has a primary name and an "MCP_NAVIGATOR_"-prefixed alias; the
// alias is consulted first so the value survives sanitization by hosts
// that strip unprefixed environment variables before spawning the server.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:         envBoolOr("NAVIGATOR_HEADLESS", true),
			Stealth:          envBoolOr("NAVIGATOR_STEALTH", false),
			Channel:          envOr("NAVIGATOR_CHANNEL", ""),
			ExecutablePath:   envOr("NAVIGATOR_EXECUTABLE_PATH", ""),
			UserDataDir:      envOr("NAVIGATOR_USER_DATA_DIR", ""),
			ProfileDirectory: envOr("NAVIGATOR_PROFILE_DIRECTORY", ""),
			CDPEndpoint:      envOr("NAVIGATOR_CDP_ENDPOINT", ""),
			CDPPort:          envIntOr("NAVIGATOR_CDP_PORT", 0),
			ForceCDP:         envBoolOr("NAVIGATOR_FORCE_CDP", false),
			RequireProfile:   envBoolOr("NAVIGATOR_REQUIRE_PROFILE", false),
			ExtraHeaders:     envMapOr("NAVIGATOR_EXTRA_HEADERS", nil),
		},
		Security: SecurityConfig{
			ReadAllowlist:        envSliceOr("NAVIGATOR_READ_ALLOWLIST", nil),
			WriteAllowlist:       envSliceOr("NAVIGATOR_WRITE_ALLOWLIST", nil),
			AllowEvaluate:        envBoolOr("NAVIGATOR_ALLOW_EVALUATE", false),
			EvaluateAllowOrigins: envSliceOr("NAVIGATOR_EVALUATE_ALLOW_ORIGINS", nil),
			EvalTimeBudget:       envDurationOr("NAVIGATOR_EVAL_TIME_BUDGET", 5*time.Second),
			EvalByteBudget:       envIntOr("NAVIGATOR_EVAL_BYTE_BUDGET", 200_000),
		},
		Capture: CaptureConfig{
			DefaultProfile:   envOr("NAVIGATOR_CAPTURE_PROFILE", "light"),
			MaxResponseBytes: clampInt(envIntOr("NAVIGATOR_MAX_RESPONSE_BYTES", 280_000), 32_768, 2_000_000),
		},
		Envelope: EnvelopeConfig{
			CallsPerSecond: envFloatOr("NAVIGATOR_CALLS_PER_SECOND", 20.0),
			CallBurst:      envIntOr("NAVIGATOR_CALL_BURST", 40),
		},
		Events: EventsConfig{
			ConsoleCapacity:  envIntOr("NAVIGATOR_CONSOLE_CAPACITY", 200),
			NetworkCapacity:  envIntOr("NAVIGATOR_NETWORK_CAPACITY", 300),
			DialogCapacity:   envIntOr("NAVIGATOR_DIALOG_CAPACITY", 400),
			DownloadCapacity: envIntOr("NAVIGATOR_DOWNLOAD_CAPACITY", 400),
			PopupCapacity:    envIntOr("NAVIGATOR_POPUP_CAPACITY", 200),
		},
		Log: LogConfig{
			Level:  envOr("NAVIGATOR_LOG_LEVEL", "info"),
			Format: envOr("NAVIGATOR_LOG_FORMAT", "json"),
		},
		Debug: DebugConfig{
			Addr: envOr("NAVIGATOR_DEBUG_ADDR", ""),
		},
		Extractor: ExtractorConfig{
			HTTPTimeout: envDurationOr("NAVIGATOR_EXTRACTOR_HTTP_TIMEOUT", 8*time.Second),
		},
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --- helper functions ("MCP_NAVIGATOR_" alias first, primary key second) ---

func envOr(key, fallback string) string {
	if v := os.Getenv("MCP_" + key); v != "" {
		return v
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := envOr(key, ""); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := envOr(key, ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := envOr(key, ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := envOr(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := envOr(key, ""); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses a comma-separated "Key:Value,Key2:Value2" environment
// variable into a map, e.g. NAVIGATOR_EXTRA_HEADERS="X-Client:navigator".
func envMapOr(key string, fallback map[string]string) map[string]string {
	v := envOr(key, "")
	if v == "" {
		return fallback
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || k == "" {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
