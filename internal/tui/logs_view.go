package tui

import (
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rusenback/dockerstats/internal/metrics"
)

var (
	errorPattern   = regexp.MustCompile(`(?i)\b(error|err|fatal|fail|failed|exception|panic)\b`)
	warningPattern = regexp.MustCompile(`(?i)\b(warn|warning|caution)\b`)
	infoPattern    = regexp.MustCompile(`(?i)\b(info|information)\b`)
	debugPattern   = regexp.MustCompile(`(?i)\b(debug|trace)\b`)

	ipPattern  = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	urlPattern = regexp.MustCompile(`https?://[^\s]+`)

	timestampStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	errorLogStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	warningLogStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387"))
	infoLogStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA"))
	debugLogStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	defaultLogStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))

	ipStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	urlStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89DCEB"))
)

// splitTimestamp separates the engine timestamp prefix from a log line.
func splitTimestamp(line string) (string, string) {
	head, rest, ok := strings.Cut(line, " ")
	if !ok {
		return "", line
	}
	ts, ok := metrics.ParseEngineTime(head)
	if !ok {
		return "", line
	}
	return ts.Local().Format("15:04:05"), rest
}

func logStyle(message string) lipgloss.Style {
	switch {
	case errorPattern.MatchString(message):
		return errorLogStyle
	case warningPattern.MatchString(message):
		return warningLogStyle
	case infoPattern.MatchString(message):
		return infoLogStyle
	case debugPattern.MatchString(message):
		return debugLogStyle
	default:
		return defaultLogStyle
	}
}

// styleLogLine colours one log line by level and cuts it to maxWidth
// visible cells.
func styleLogLine(line string, maxWidth int) string {
	ts, message := splitTimestamp(line)
	prefix := ""
	if ts != "" {
		prefix = timestampStyle.Render(ts) + " "
	}

	room := maxWidth - lipgloss.Width(prefix)
	if room < 4 {
		room = 4
	}
	message = truncate(message, room)

	style := logStyle(message)
	var out strings.Builder
	last := 0
	for _, h := range highlights(message) {
		out.WriteString(style.Render(message[last:h.start]))
		out.WriteString(h.style.Render(message[h.start:h.end]))
		last = h.end
	}
	out.WriteString(style.Render(message[last:]))
	return prefix + out.String()
}

type highlight struct {
	start, end int
	style      lipgloss.Style
}

// highlights returns non-overlapping URL and IP spans in order.
func highlights(message string) []highlight {
	var out []highlight
	for _, m := range urlPattern.FindAllStringIndex(message, -1) {
		out = append(out, highlight{m[0], m[1], urlStyle})
	}
	for _, m := range ipPattern.FindAllStringIndex(message, -1) {
		if !overlaps(out, m[0], m[1]) {
			out = append(out, highlight{m[0], m[1], ipStyle})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func overlaps(spans []highlight, start, end int) bool {
	for _, h := range spans {
		if start < h.end && h.start < end {
			return true
		}
	}
	return false
}
