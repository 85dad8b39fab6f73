// Package security implements the Security Gate (C8): path allowlisting
// for file I/O and origin allowlisting for arbitrary script execution.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// Gate holds the resolved allowlist roots and evaluate policy loaded
// from config (§6).
type Gate struct {
	readRoots  []string
	writeRoots []string

	allowEvaluate  bool
	evalOrigins    []string // normalized; "*" permitted verbatim
	evalTimeBudget time.Duration
	evalByteBudget int
}

// New builds a Gate from the allowlist root directories and the evaluate
// policy. Each root is resolved with filepath.EvalSymlinks (and kept as
// given, cleaned, when that fails) so later comparisons are against a
// canonical path.
func New(readRoots, writeRoots []string, allowEvaluate bool, evaluateAllowOrigins []string, evalTimeBudget time.Duration, evalByteBudget int) (*Gate, error) {
	g := &Gate{
		readRoots:      cleanAll(readRoots),
		writeRoots:     cleanAll(writeRoots),
		allowEvaluate:  allowEvaluate,
		evalTimeBudget: evalTimeBudget,
		evalByteBudget: evalByteBudget,
	}
	for _, o := range evaluateAllowOrigins {
		norm, err := normalizeOrigin(o)
		if err != nil {
			return nil, fmt.Errorf("invalid evaluate allow-origin %q: %w", o, err)
		}
		g.evalOrigins = append(g.evalOrigins, norm)
	}
	return g, nil
}

func cleanAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			out = append(out, filepath.Clean(resolved))
		} else {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}

// CheckRead resolves path (following symlinks) and confirms it falls
// under one of the read roots. Returns the resolved absolute path.
func (g *Gate) CheckRead(path string) (string, error) {
	return checkWithin(path, g.readRoots, "read")
}

// CheckWrite resolves path's existing parent directory and confirms the
// target falls under one of the write roots. The file itself need not
// exist yet.
func (g *Gate) CheckWrite(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("PERMISSION: resolve write path: %w", err)
	}
	dir := filepath.Dir(abs)
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("PERMISSION: write directory does not exist: %w", err)
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(abs))
	if !withinAny(resolved, g.writeRoots) {
		return "", fmt.Errorf("PERMISSION: %q is outside the write allowlist", path)
	}
	return resolved, nil
}

func checkWithin(path string, roots []string, verb string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("PERMISSION: resolve %s path: %w", verb, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("PERMISSION: %s path does not exist: %w", verb, err)
	}
	if !withinAny(resolved, roots) {
		return "", fmt.Errorf("PERMISSION: %q is outside the %s allowlist", path, verb)
	}
	return resolved, nil
}

func withinAny(resolved string, roots []string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, resolved)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)) {
			return true
		}
	}
	return false
}

// CheckEvaluate reports whether arbitrary script execution is permitted
// against frameOrigin, and returns the time/byte budgets to enforce.
func (g *Gate) CheckEvaluate(frameOrigin string) (time.Duration, int, error) {
	if !g.allowEvaluate {
		return 0, 0, fmt.Errorf("PERMISSION: arbitrary script execution is disabled")
	}
	norm, err := normalizeOrigin(frameOrigin)
	if err != nil {
		return 0, 0, fmt.Errorf("PERMISSION: invalid frame origin: %w", err)
	}
	for _, allowed := range g.evalOrigins {
		if allowed == "*" || allowed == norm {
			return g.evalTimeBudget, g.evalByteBudget, nil
		}
	}
	return 0, 0, fmt.Errorf("PERMISSION: origin %q is not in the evaluate allowlist", frameOrigin)
}

// normalizeOrigin lowercases the scheme/host and converts the host to its
// ASCII (punycode) form via idna so Unicode and punycode forms of the
// same host compare equal. The literal "*" passes through unchanged.
func normalizeOrigin(origin string) (string, error) {
	if origin == "*" {
		return "*", nil
	}
	scheme, host, found := strings.Cut(origin, "://")
	if !found {
		return "", fmt.Errorf("origin %q has no scheme", origin)
	}
	host, port, hasPort := strings.Cut(host, ":")
	ascii, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		return "", err
	}
	norm := strings.ToLower(scheme) + "://" + ascii
	if hasPort {
		norm += ":" + port
	}
	return norm, nil
}
