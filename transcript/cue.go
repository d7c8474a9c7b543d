package transcript

import (
	"strings"
)

// LineKind tags one line of a cue-based subtitle payload.
type LineKind int

const (
	LineText LineKind = iota
	LineBlank
	LineHeader
	LineIndex
	LineTiming
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineHeader:
		return "header"
	case LineIndex:
		return "index"
	case LineTiming:
		return "timing"
	default:
		return "text"
	}
}

const (
	vttSignature = "WEBVTT"
	timingArrow  = "-->"
)

// Classify tags a single trimmed line. inHeader reports whether the previous
// line was a header line; only "Key: value" metadata continues the header.
func Classify(line string, inHeader bool) LineKind {
	switch {
	case line == "":
		return LineBlank
	case isSignature(line), inHeader && isMetadata(line):
		return LineHeader
	case isIndex(line):
		return LineIndex
	case isTiming(line):
		return LineTiming
	default:
		return LineText
	}
}

func isSignature(line string) bool {
	if !strings.HasPrefix(line, vttSignature) {
		return false
	}
	rest := line[len(vttSignature):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

// isMetadata matches header settings such as "Kind: captions".
func isMetadata(line string) bool {
	key, value, ok := strings.Cut(line, ":")
	if !ok || key == "" || strings.TrimSpace(value) == "" || isTiming(line) {
		return false
	}
	return !strings.ContainsAny(key, " \t")
}

func isIndex(line string) bool {
	for i := 0; i < len(line); i++ {
		if line[i] < '0' || line[i] > '9' {
			return false
		}
	}
	return true
}

func isTiming(line string) bool {
	return strings.Contains(line, timingArrow)
}

// ParseCues extracts the spoken text of a cue payload: every text line, trimmed,
// joined with single spaces in original order.
func ParseCues(payload string) string {
	var sb strings.Builder
	inHeader := false

	payload = strings.TrimPrefix(payload, "\ufeff")
	for _, raw := range strings.Split(payload, "\n") {
		line := strings.TrimSpace(raw)
		kind := Classify(line, inHeader)

		inHeader = kind == LineHeader
		if kind == LineText {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(line)
		}
	}
	return sb.String()
}
