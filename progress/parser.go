// Package progress turns the raw output stream of a build into structured
// progress signals.
//
// The build system prints free-form text. Two kinds of lines matter:
//   - the start marker ("Starting ninja...") that signals the compilation
//     engine itself has begun, as opposed to preceding setup phases
//   - ninja status lines of the form "[ 42% 100/238 12s remaining]"
//
// Everything else passes through untouched. The exact status-line grammar is
// a versioned contract with the build system; changes to it must come with
// matching cases in parser_test.go.
package progress

import (
	"regexp"
	"strconv"
	"strings"
)

// PackageMarker precedes the final artifact path in the build output.
const PackageMarker = "Package Complete:"

// statusPattern matches ninja status lines: a bracketed percentage,
// a completed/total pair, and an optional trailing ETA ending in "remaining".
// Only the first match in a line is used.
var statusPattern = regexp.MustCompile(`\[\s*(\d+)%\s+(\d+)/(\d+)(?:\s+(.*?remaining))?[^\]]*\]`)

// Event is one parsed progress sample. Immutable once produced.
type Event struct {
	// Percent is the completion percentage, 0-100.
	Percent int
	// Completed and Total are the unit counts, e.g. 100/238.
	Completed int
	Total     int
	// Remaining is the build system's ETA estimate ("12s"), empty if the
	// status line carried none.
	Remaining string
}

// Line is the classification of one raw output line. Raw is always set;
// nothing the build prints is ever dropped.
type Line struct {
	// Raw is the line exactly as the build produced it.
	Raw string
	// StreamStart is true if this line contains the start marker.
	StreamStart bool
	// Progress is the parsed progress sample, nil for non-status lines and
	// for status-shaped lines seen before the start marker.
	Progress *Event
	// PackagePath is the artifact path announced by a PackageMarker line,
	// empty otherwise.
	PackagePath string
}

// Parser classifies output lines one at a time. It carries a single piece of
// state: whether the start marker has been seen. The latch is monotonic for
// the lifetime of the parser; lines before it never produce progress events,
// which avoids false matches from unrelated tooling output during setup.
//
// Not safe for concurrent use. The supervisor owns one parser per session.
type Parser struct {
	startMarker string
	started     bool
}

// NewParser creates a parser with the given start marker.
func NewParser(startMarker string) *Parser {
	return &Parser{startMarker: startMarker}
}

// Started reports whether the start marker has been observed.
func (p *Parser) Started() bool {
	return p.started
}

// Parse classifies one raw line. Malformed input (partial writes, binary
// noise) is never an error; a non-match simply yields no event.
func (p *Parser) Parse(raw string) Line {
	line := Line{Raw: raw}

	if strings.Contains(raw, p.startMarker) {
		line.StreamStart = true
		p.started = true
	}

	if path := extractPackagePath(raw); path != "" {
		line.PackagePath = path
	}

	if !p.started {
		return line
	}

	m := statusPattern.FindStringSubmatch(raw)
	if m == nil {
		return line
	}

	percent, err := strconv.Atoi(m[1])
	if err != nil || percent < 0 || percent > 100 {
		return line
	}
	completed, err := strconv.Atoi(m[2])
	if err != nil {
		return line
	}
	total, err := strconv.Atoi(m[3])
	if err != nil || completed <= 0 || total <= 0 {
		return line
	}

	line.Progress = &Event{
		Percent:   percent,
		Completed: completed,
		Total:     total,
		Remaining: trimRemaining(m[4]),
	}
	return line
}

// extractPackagePath pulls the artifact path out of a PackageMarker line.
// The path is the first whitespace-delimited token after the marker.
func extractPackagePath(raw string) string {
	_, after, found := strings.Cut(raw, PackageMarker)
	if !found {
		return ""
	}
	fields := strings.Fields(after)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// trimRemaining normalizes the captured ETA: " 12s remaining" becomes "12s".
func trimRemaining(capture string) string {
	s := strings.TrimSpace(capture)
	s = strings.TrimSuffix(s, "remaining")
	return strings.TrimSpace(s)
}
