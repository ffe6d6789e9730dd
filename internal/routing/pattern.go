package routing

import "strings"

// PathPattern matches allowlist paths with {param} segments, for example
// /kekhai/declarations/{id}. A segment is either a literal or a parameter;
// parameters match any single non-empty segment.
type PathPattern struct {
	segments []patternSegment
}

type patternSegment struct {
	literal string
	param   bool
}

// parsePathPattern compiles raw into a PathPattern. It reports ok=false when
// raw contains no parameter segments (plain paths go through the exact-match
// table instead) or when braces are malformed.
func parsePathPattern(raw string) (PathPattern, bool) {
	if !strings.Contains(raw, "{") || !strings.HasPrefix(raw, "/") {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	segs := make([]patternSegment, 0, len(parts))
	for _, s := range parts {
		switch {
		case s == "":
			return PathPattern{}, false
		case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
			if len(s) <= 2 {
				return PathPattern{}, false
			}
			segs = append(segs, patternSegment{param: true})
		case strings.ContainsAny(s, "{}"):
			return PathPattern{}, false
		default:
			segs = append(segs, patternSegment{literal: s})
		}
	}
	return PathPattern{segments: segs}, true
}

func (p PathPattern) Match(path string) bool {
	if len(p.segments) == 0 {
		return false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return false
	}
	for i, seg := range p.segments {
		if in[i] == "" {
			return false
		}
		if seg.param {
			continue
		}
		if in[i] != seg.literal {
			return false
		}
	}
	return true
}

func splitPathSegments(path string) []string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
