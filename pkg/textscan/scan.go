// Package textscan extracts usage figures and known error phrases from
// terminal status output. All functions are pure: no I/O, no state.
package textscan

import (
	"regexp"
	"strconv"
	"strings"
)

// percentWindow is how many lines after the label line are scanned for a
// percent figure. Status screens interleave several metrics; an unbounded
// scan would pick up numbers belonging to a different section.
const percentWindow = 12

var percentLeftRe = regexp.MustCompile(`(?i)(\d+)\s*%\s*left`)

// StripControlSequences removes ANSI escape sequences (CSI, OSC and
// two-byte escape forms) so that label matching on colorized output is
// reliable. Printable characters are never removed; applying it twice
// yields the same result as once.
func StripControlSequences(text string) string {
	if !strings.ContainsRune(text, 0x1b) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		if text[i] != 0x1b {
			b.WriteByte(text[i])
			i++
			continue
		}
		if i+1 >= len(text) {
			// trailing bare ESC
			i++
			continue
		}
		switch text[i+1] {
		case '[': // CSI: parameters then a final byte in @-~
			i += 2
			for i < len(text) {
				c := text[i]
				i++
				if c >= 0x40 && c <= 0x7e {
					break
				}
			}
		case ']': // OSC: terminated by BEL or ESC \
			i += 2
			for i < len(text) {
				if text[i] == 0x07 {
					i++
					break
				}
				if text[i] == 0x1b && i+1 < len(text) && text[i+1] == '\\' {
					i += 2
					break
				}
				i++
			}
		default: // two-byte escape (e.g. ESC M, ESC 7)
			i += 2
		}
	}
	return b.String()
}

// ExtractPercent finds the first line containing label (case-insensitive),
// then scans that line and the next 12 lines for the first "<NN>% left"
// figure. First match wins; matches outside the window are never returned.
func ExtractPercent(label, text string) (int, bool) {
	if label == "" {
		return 0, false
	}
	needle := strings.ToLower(label)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		end := i + percentWindow
		if end >= len(lines) {
			end = len(lines) - 1
		}
		for j := i; j <= end; j++ {
			if m := percentLeftRe.FindStringSubmatch(lines[j]); m != nil {
				value, err := strconv.Atoi(m[1])
				if err != nil {
					continue
				}
				return value, true
			}
		}
		return 0, false
	}
	return 0, false
}

// ErrorKind classifies a known error phrase found in status output.
type ErrorKind int

const (
	// ErrNone: no known error phrase present.
	ErrNone ErrorKind = iota
	// ErrDataNotReady: the CLI reported usage data is not available yet.
	ErrDataNotReady
	// ErrUpdateAvailable: the CLI advertised a newer version of itself.
	ErrUpdateAvailable
)

// ExtractKnownError tests the output for known failure phrases. It is
// checked before percent extraction: a matched phrase aborts parsing
// instead of salvaging partial numbers.
func ExtractKnownError(cliName, text string) ErrorKind {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "data not available yet") {
		return ErrDataNotReady
	}
	if strings.Contains(lower, "update available") && strings.Contains(lower, strings.ToLower(cliName)) {
		return ErrUpdateAvailable
	}
	return ErrNone
}
