// internal/rules/refpath.go
package rules

import (
	"strconv"
	"strings"
)

/*
 * Dotted-path resolution against the evaluation context.
 *
 * The first segment selects a context namespace (presentation, slide, vars,
 * settings, meta); remaining segments traverse nested maps and slices.
 * Numeric segments index into slices.
 *
 * Resolution is total: any missing segment, wrong-type traversal, or
 * out-of-range index yields (nil, false). Never panics, never errors -
 * paths arrive from user-authored rules and must be safe even when
 * malformed. Missing data is modeled as a failed lookup, and the evaluator
 * turns failed lookups into failed matches.
 */

// ResolvePath looks up a dotted path in the context.
// The boolean reports whether the full path resolved to a value; a resolved
// nil is distinguishable from a missing path.
func ResolvePath(path string, ctx *Context) (any, bool) {
	if path == "" || ctx == nil {
		return nil, false
	}

	segments := strings.Split(path, ".")
	ns, ok := ctx.Namespace(segments[0])
	if !ok {
		return nil, false
	}
	return resolveSegments(segments[1:], ns)
}

// resolveSegments walks nested maps and slices one segment at a time.
func resolveSegments(segments []string, current any) (any, bool) {
	if len(segments) == 0 {
		return current, true
	}

	seg := segments[0]
	rest := segments[1:]

	switch v := current.(type) {
	case map[string]any:
		next, ok := v[seg]
		if !ok {
			return nil, false
		}
		return resolveSegments(rest, next)

	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return resolveSegments(rest, v[idx])

	case map[string]string:
		// Settings snapshots arrive as flat string maps.
		next, ok := v[seg]
		if !ok {
			return nil, false
		}
		return resolveSegments(rest, next)

	default:
		// Scalar or nil with path remaining.
		return nil, false
	}
}
