package flow

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	errx "github.com/flowsmith/server/internal/core/error"
)

// fencePattern matches a triple-backtick block and captures its info string
// (json, javascript, ...) and body.
var fencePattern = regexp.MustCompile("(?is)```([a-z0-9_+.-]*)[ \\t]*\\r?\\n?(.*?)```")

// maxFences bounds how many fenced blocks are inspected.
const maxFences = 16

// Extract recovers a JSON object string from agent text.
//
// Strategies in priority order: a fenced block (json-tagged blocks first), the
// first balanced object found by a quote-aware scanner (preferring one that
// decodes), and finally the naive span from the first '{' to the last '}'.
// Text that is already a bare object is returned unchanged by the scanner.
func Extract(text string) (string, error) {
	if inner, ok := fenced(text); ok {
		return inner, nil
	}

	trimmed := strings.TrimSpace(text)
	if obj, ok := scanBalanced(trimmed); ok {
		return obj, nil
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start >= 0 && end > start {
		return trimmed[start : end+1], nil
	}

	return "", errx.NoJSONFound()
}

// fenced returns the body of the first non-empty json-tagged fence, or else
// of the first non-empty fence with any other tag.
func fenced(text string) (string, bool) {
	fallback := ""
	consumed := 0
	for _, m := range fencePattern.FindAllStringSubmatchIndex(text, maxFences) {
		if m[0] < consumed {
			// Opened inside the object of an earlier fence.
			continue
		}
		inner, end := fenceBody(text, m[4], m[5])
		consumed = end
		if inner == "" {
			continue
		}
		if strings.EqualFold(text[m[2]:m[3]], "json") {
			return inner, true
		}
		if fallback == "" {
			fallback = inner
		}
	}
	return fallback, fallback != ""
}

// fenceBody returns the trimmed body of a fence whose content starts at start
// and whose lazy match ends at lazyEnd, plus the offset where the fence ends.
// The lazy match stops at the first backtick run, even one inside a JSON
// string, so a body that starts with an object is bracket-matched first.
func fenceBody(text string, start, lazyEnd int) (string, int) {
	lead := len(text[start:]) - len(strings.TrimLeft(text[start:], " \t\r\n"))
	objStart := start + lead
	if objStart < len(text) && text[objStart] == '{' {
		if end, state := matchObject(text, objStart); state == matched && end >= lazyEnd {
			rest := text[end+1:]
			tail := strings.TrimLeft(rest, " \t\r\n")
			if strings.HasPrefix(tail, "```") {
				return text[objStart : end+1], len(text) - len(tail) + 3
			}
		}
	}
	return strings.TrimSpace(text[start:lazyEnd]), lazyEnd + 3
}

// scanBalanced returns the first top-level balanced {...} span of s in a
// single pass. Spans that decode as JSON win over earlier ones that do not,
// so a stray "{name}" in prose does not shadow the real payload. Objects
// nested inside a span are never candidates on their own. A mismatched
// closer abandons the open object and scanning resumes after it.
func scanBalanced(s string) (string, bool) {
	first := ""
	stack := make([]byte, 0, 16)
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
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
			// Quotes in prose outside any object are ignored.
			inString = len(stack) > 0
		case '{':
			if len(stack) == 0 {
				start = i
			}
			stack = append(stack, '}')
		case '[':
			if len(stack) > 0 {
				stack = append(stack, ']')
			}
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			if stack[len(stack)-1] != c {
				stack = stack[:0]
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				continue
			}
			candidate := s[start : i+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
			if first == "" {
				first = candidate
			}
		}
	}
	return first, first != ""
}

type scanState int

const (
	matched scanState = iota
	mismatched
	unterminated
)

// matchObject returns the index of the brace closing the object opened at
// s[start]. Brackets inside string literals are ignored; escapes are honoured.
func matchObject(s string, start int) (int, scanState) {
	stack := make([]byte, 0, 16)
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
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1, mismatched
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, matched
			}
		}
	}
	return -1, unterminated
}

// Decode parses an extracted object. Numbers are kept as json.Number so the
// document is forwarded downstream exactly as the agent wrote it.
func Decode(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errx.JSONSyntax(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errx.JSONSyntax(errors.New("unexpected data after top-level value"))
	}
	return v, nil
}
