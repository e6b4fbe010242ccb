package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEEvent is a parsed Server-Sent Event.
type SSEEvent struct {
	Type string // event: value
	Data string // data: value, multi-line joined with \n
}

// ParseSSEEvents parses an SSE stream body into structured events.
//
// Multiple "data:" lines are joined with newline, an empty line terminates
// an event, data without an explicit event type defaults to "message", and
// comment lines starting with ":" are ignored.
func ParseSSEEvents(t *testing.T, body string) []SSEEvent {
	t.Helper()

	var events []SSEEvent
	var current SSEEvent
	var dataLines []string

	scanner := bufio.NewScanner(strings.NewReader(body))
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		switch {
		case strings.HasPrefix(text, "event: "):
			if current.Type != "" && len(dataLines) > 0 {
				t.Fatalf("sse parse error at line %d: new event before previous terminated (%q)", line, text)
			}
			current.Type = strings.TrimPrefix(text, "event: ")

		case strings.HasPrefix(text, "data: "):
			if current.Type == "" {
				current.Type = "message"
			}
			dataLines = append(dataLines, strings.TrimPrefix(text, "data: "))

		case text == "":
			if current.Type != "" {
				current.Data = strings.Join(dataLines, "\n")
				events = append(events, current)
				current = SSEEvent{}
				dataLines = nil
			}

		default:
			if !strings.HasPrefix(text, ":") {
				t.Fatalf("sse parse error at line %d: unexpected line %q", line, text)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("sse scan error: %v", err)
	}
	if current.Type != "" {
		t.Fatalf("sse stream ended without terminating event %q", current.Type)
	}
	return events
}

// FindEvent returns the first event of the given type, or nil.
func FindEvent(events []SSEEvent, eventType string) *SSEEvent {
	for i := range events {
		if events[i].Type == eventType {
			return &events[i]
		}
	}
	return nil
}

// FindAllEvents returns every event of the given type.
func FindAllEvents(events []SSEEvent, eventType string) []SSEEvent {
	var found []SSEEvent
	for _, e := range events {
		if e.Type == eventType {
			found = append(found, e)
		}
	}
	return found
}
