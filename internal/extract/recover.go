package extract

import (
	"encoding/json"
	"strings"
)

// Recovery strategies, in the order they are attempted
const (
	StrategyDirect     = "direct"
	StrategyArrayScan  = "array_scan"
	StrategyObjectScan = "object_scan"
)

// requiredKeys must all appear in an object for the object scan to try it
var requiredKeys = []string{`"year"`, `"event_type"`, `"description"`}

// Candidates turns a raw completion reply into a list of unvalidated event
// objects. It stops at the first strategy that parses and reports which one
// did. ok is false when nothing could be recovered.
func Candidates(reply string) (items []json.RawMessage, strategy string, ok bool) {
	body := StripFences(reply)

	if err := json.Unmarshal([]byte(body), &items); err == nil {
		return items, StrategyDirect, true
	}

	if arr, found := FirstBalanced(body, '[', ']'); found {
		if err := json.Unmarshal([]byte(arr), &items); err == nil {
			return items, StrategyArrayScan, true
		}
	}

	items = nil
	for _, obj := range AllBalanced(body, '{', '}') {
		if !hasKeys(obj, requiredKeys) {
			continue
		}
		if !json.Valid([]byte(obj)) {
			continue
		}
		items = append(items, json.RawMessage(obj))
	}
	if len(items) > 0 {
		return items, StrategyObjectScan, true
	}

	return nil, "", false
}

// StripFences removes a surrounding ``` or ```json code fence
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// drop the info string ("json", "JSON") up to the first newline
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if info := strings.TrimSpace(s[:nl]); !strings.ContainsAny(info, "[{") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// FirstBalanced returns the first complete open...close span, ignoring
// delimiters that appear inside JSON strings.
func FirstBalanced(s string, open, close byte) (string, bool) {
	for start := strings.IndexByte(s, open); start >= 0; {
		if end := matchClose(s, start, open, close); end >= 0 {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// AllBalanced returns every complete open...close span. A span that
// never closes is skipped so complete spans nested inside it are still
// found.
func AllBalanced(s string, open, close byte) []string {
	var spans []string
	i := 0
	for i < len(s) {
		rel := strings.IndexByte(s[i:], open)
		if rel < 0 {
			break
		}
		start := i + rel
		end := matchClose(s, start, open, close)
		if end < 0 {
			i = start + 1
			continue
		}
		spans = append(spans, s[start:end+1])
		i = end + 1
	}
	return spans
}

// matchClose returns the index of the delimiter closing s[start], or -1
func matchClose(s string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func hasKeys(obj string, keys []string) bool {
	for _, k := range keys {
		if !strings.Contains(obj, k) {
			return false
		}
	}
	return true
}
