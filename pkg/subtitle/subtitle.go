// Package subtitle converts subtitle payloads for browser playback.
package subtitle

import (
	"regexp"
	"strings"
)

var (
	timestampRe = regexp.MustCompile(`\d{1,2}:\d{2}:\d{2}[,.]\d{1,3}`)
	sequenceRe  = regexp.MustCompile(`^\d+$`)
)

// IsSRT reports whether the file name carries an SRT extension.
func IsSRT(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".srt")
}

// ToVTT converts an SRT document to WebVTT.
//
// The conversion prepends the WEBVTT header, drops the cue sequence
// numbers SRT requires but VTT forbids, converts comma decimal
// separators in timestamps to periods, and normalizes Windows line
// endings. Input that already starts with a WEBVTT header is returned
// with line endings normalized only.
func ToVTT(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")

	if strings.HasPrefix(strings.TrimLeft(src, "\uFEFF\n"), "WEBVTT") {
		return src
	}

	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		// SRT cue counter: a bare number directly above a timestamp line.
		if sequenceRe.MatchString(trimmed) && i+1 < len(lines) && strings.Contains(lines[i+1], "-->") {
			continue
		}

		if strings.Contains(line, "-->") {
			line = timestampRe.ReplaceAllStringFunc(line, func(ts string) string {
				return strings.ReplaceAll(ts, ",", ".")
			})
		}

		out = append(out, line)
	}

	body := strings.TrimLeft(strings.Join(out, "\n"), "\n")
	return "WEBVTT\n\n" + body
}
